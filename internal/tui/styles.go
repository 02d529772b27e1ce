package tui

import "github.com/charmbracelet/lipgloss"

var (
	freeColor   = lipgloss.Color("#10B981") // Green
	lockedColor = lipgloss.Color("#F87171") // Red
	ownColor    = lipgloss.Color("#60A5FA") // Blue
	mutedColor  = lipgloss.Color("#9CA3AF") // Gray
	accentColor = lipgloss.Color("#A78BFA") // Purple

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	freeStyle    = lipgloss.NewStyle().Foreground(freeColor)
	lockedStyle  = lipgloss.NewStyle().Foreground(lockedColor)
	ownStyle     = lipgloss.NewStyle().Foreground(ownColor).Bold(true)
	unknownStyle = lipgloss.NewStyle().Foreground(mutedColor)

	selectedStyle = lipgloss.NewStyle().Reverse(true)

	errorStyle  = lipgloss.NewStyle().Foreground(lockedColor)
	statusStyle = lipgloss.NewStyle().Foreground(mutedColor)
)
