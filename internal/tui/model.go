// Package tui implements the interactive watch view: a tree of testbenches
// with their lock holders, refreshed periodically.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/testbench-tools/taco/internal/access"
	"github.com/testbench-tools/taco/internal/clock"
	"github.com/testbench-tools/taco/internal/topology"
)

// Controller is the part of *access.Controller the view drives.
type Controller interface {
	Statuses(ctx context.Context, force bool) ([]access.Status, error)
	Acquire(ctx context.Context, id string) error
	UnsetLock(ctx context.Context, id string) error
	LaunchSession(ctx context.Context, id string) (int, error)
	LoadTopologyFile(ctx context.Context, path string) access.Result
	Topology() *topology.Topology
	User() string
	StoreLocation() string
}

// Options configures the view.
type Options struct {
	// TopologyFile is reloaded whenever Reload signals.
	TopologyFile string
	// Reload signals topology file changes; nil disables reloading.
	Reload <-chan struct{}
	// Tick is the redraw and refresh interval (default 1s).
	Tick  time.Duration
	Clock clock.Clock
}

type (
	tickMsg    time.Time
	refreshMsg struct{ force bool }
	reloadMsg  struct{}
)

// row is one line of the tree.
type row struct {
	id      string
	address string
	depth   int
	// first marks the first row of a block after the first.
	first bool
}

// Model is the bubbletea model of the watch view. All Controller calls
// happen inside Update.
type Model struct {
	ctx    context.Context
	ctrl   Controller
	opts   Options
	keys   keyMap
	help   help.Model
	clock  clock.Clock
	rows   []row
	status map[string]access.Status
	cursor int

	message string
	isError bool
}

// New returns the view for ctrl.
func New(ctx context.Context, ctrl Controller, opts Options) Model {
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	c := opts.Clock
	if c == nil {
		c = clock.Real()
	}
	m := Model{
		ctx:    ctx,
		ctrl:   ctrl,
		opts:   opts,
		keys:   defaultKeyMap(),
		help:   help.New(),
		clock:  c,
		status: make(map[string]access.Status),
	}
	m.rebuild()
	return m
}

// Run starts the view in the alternate screen and blocks until it quits.
func Run(ctx context.Context, ctrl Controller, opts Options) error {
	p := tea.NewProgram(New(ctx, ctrl, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.Tick, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForReload blocks on the reload channel in a command goroutine and
// turns each signal into a message for Update.
func (m Model) waitForReload() tea.Cmd {
	if m.opts.Reload == nil {
		return nil
	}
	ch := m.opts.Reload
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return reloadMsg{}
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return refreshMsg{force: true} },
		m.tick(),
		m.waitForReload(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.load(false)
		return m, m.tick()

	case refreshMsg:
		m.load(msg.force)
		return m, nil

	case reloadMsg:
		res := m.ctrl.LoadTopologyFile(m.ctx, m.opts.TopologyFile)
		m.rebuild()
		m.setResult(res)
		m.load(true)
		return m, m.waitForReload()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Refresh):
		m.load(true)
		if !m.isError {
			m.setMessage("refreshed")
		}

	case key.Matches(msg, m.keys.Lock):
		if id, ok := m.selected(); ok {
			m.apply(m.ctrl.Acquire(m.ctx, id), fmt.Sprintf("locked %s", id))
		}

	case key.Matches(msg, m.keys.Unlock):
		if id, ok := m.selected(); ok {
			m.apply(m.ctrl.UnsetLock(m.ctx, id), fmt.Sprintf("unlocked %s", id))
		}

	case key.Matches(msg, m.keys.Connect):
		if id, ok := m.selected(); ok {
			pid, err := m.ctrl.LaunchSession(m.ctx, id)
			m.apply(err, fmt.Sprintf("connected to %s (pid %d)", id, pid))
		}
	}
	return m, nil
}

func (m *Model) apply(err error, ok string) {
	if err != nil {
		m.setError(err)
		return
	}
	m.setMessage(ok)
	m.load(false)
}

func (m *Model) selected() (string, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return "", false
	}
	return m.rows[m.cursor].id, true
}

// load copies lock state out of the controller, which refreshes from the
// store when its cache is stale or force is set.
func (m *Model) load(force bool) {
	statuses, err := m.ctrl.Statuses(m.ctx, force)
	for _, s := range statuses {
		m.status[s.Resource.ID] = s
	}
	if err != nil {
		m.setError(err)
	}
}

// rebuild recomputes the tree rows from the controller's topology.
func (m *Model) rebuild() {
	m.rows = m.rows[:0]
	clear(m.status)
	var walk func(nodes []topology.Node, depth int, first bool)
	walk = func(nodes []topology.Node, depth int, first bool) {
		for i, n := range nodes {
			m.rows = append(m.rows, row{id: n.ID, address: n.Address, depth: depth, first: first && i == 0})
			walk(n.Children, depth+1, false)
		}
	}
	if t := m.ctrl.Topology(); t != nil {
		for i, b := range t.Blocks {
			walk(b.Nodes, 0, i > 0)
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = max(len(m.rows)-1, 0)
	}
}

func (m *Model) setMessage(s string) {
	m.message = s
	m.isError = false
}

func (m *Model) setError(err error) {
	m.message = err.Error()
	m.isError = true
}

func (m *Model) setResult(res access.Result) {
	m.message = res.Message
	m.isError = !res.OK
}
