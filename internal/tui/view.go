package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	store := m.ctrl.StoreLocation()
	if store == "" {
		store = "no lock store"
	}
	b.WriteString(titleStyle.Render("taco"))
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("%s @ %s", m.ctrl.User(), store)))
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString(unknownStyle.Render("no testbenches loaded"))
		b.WriteString("\n")
	}

	idWidth := 0
	for _, r := range m.rows {
		idWidth = max(idWidth, lipgloss.Width(m.label(r)))
	}
	for i, r := range m.rows {
		if r.first {
			b.WriteString("\n")
		}
		line := lipgloss.NewStyle().Width(idWidth+2).Render(m.label(r)) + m.state(r.id)
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.message != "" {
		if m.isError {
			b.WriteString(errorStyle.Render(m.message))
		} else {
			b.WriteString(statusStyle.Render(m.message))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) label(r row) string {
	name := r.id
	if r.address != "" && r.address != r.id {
		name = fmt.Sprintf("%s (%s)", r.id, r.address)
	}
	if r.depth == 0 {
		return name
	}
	return strings.Repeat("  ", r.depth-1) + "└ " + name
}

func (m Model) state(id string) string {
	s, ok := m.status[id]
	switch {
	case !ok || !s.Known:
		return unknownStyle.Render("?")
	case s.Record.Free():
		return freeStyle.Render("free")
	}
	text := fmt.Sprintf("%s for %s", s.Record.Holder, FormatAge(m.clock.Since(s.Record.HeldSince)))
	if s.PID != 0 {
		text += fmt.Sprintf(" [pid %d]", s.PID)
	}
	if s.Record.Holder == m.ctrl.User() {
		return ownStyle.Render(text)
	}
	return lockedStyle.Render(text)
}

// FormatAge renders a lock age to whole seconds.
func FormatAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return d.Truncate(time.Second).String()
}
