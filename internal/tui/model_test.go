package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	"github.com/testbench-tools/taco/internal/access"
	"github.com/testbench-tools/taco/internal/clock"
	"github.com/testbench-tools/taco/internal/lockstore"
	"github.com/testbench-tools/taco/internal/topology"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeController struct {
	topo     *topology.Topology
	next     *topology.Topology
	records  map[string]lockstore.Record
	err      error
	calls    []string
	forced   []bool
	loadPath string
}

func (f *fakeController) Statuses(_ context.Context, force bool) ([]access.Status, error) {
	f.forced = append(f.forced, force)
	var out []access.Status
	for _, r := range f.topo.Resources() {
		rec, ok := f.records[r.ID]
		out = append(out, access.Status{Resource: r, Record: rec, Known: ok})
	}
	return out, nil
}

func (f *fakeController) Acquire(_ context.Context, id string) error {
	f.calls = append(f.calls, "lock "+id)
	return f.err
}

func (f *fakeController) UnsetLock(_ context.Context, id string) error {
	f.calls = append(f.calls, "unlock "+id)
	return f.err
}

func (f *fakeController) LaunchSession(_ context.Context, id string) (int, error) {
	f.calls = append(f.calls, "connect "+id)
	if f.err != nil {
		return 0, f.err
	}
	return 4242, nil
}

func (f *fakeController) LoadTopologyFile(_ context.Context, path string) access.Result {
	f.loadPath = path
	if f.next == nil {
		return access.Result{OK: false, Message: "bad topology"}
	}
	f.topo = f.next
	return access.Result{OK: true, Message: "loaded"}
}

func (f *fakeController) Topology() *topology.Topology { return f.topo }
func (f *fakeController) User() string                 { return "alice" }
func (f *fakeController) StoreLocation() string        { return "locks.db" }

func newFake() *fakeController {
	return &fakeController{
		topo: &topology.Topology{Blocks: []topology.Block{
			{Nodes: []topology.Node{
				{ID: "rack1", Address: "rack1", Children: []topology.Node{
					{ID: "bench1", Address: "b1.lab"},
				}},
			}},
			{Nodes: []topology.Node{{ID: "bench2", Address: "bench2"}}},
		}},
		records: map[string]lockstore.Record{
			"rack1":  {},
			"bench1": {Holder: "bob", HeldSince: t0.Add(-5 * time.Second)},
			"bench2": {Holder: "alice", HeldSince: t0.Add(-time.Minute)},
		},
	}
}

func newModel(f *fakeController, opts Options) Model {
	opts.Clock = clock.NewFake(t0)
	return New(context.Background(), f, opts)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return nm, cmd
}

func TestNewBuildsRows(t *testing.T) {
	m := newModel(newFake(), Options{})

	want := []row{
		{id: "rack1", address: "rack1", depth: 0},
		{id: "bench1", address: "b1.lab", depth: 1},
		{id: "bench2", address: "bench2", depth: 0, first: true},
	}
	if diff := cmp.Diff(want, m.rows, cmp.AllowUnexported(row{})); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	if m.opts.Tick != time.Second {
		t.Errorf("default tick = %v, want 1s", m.opts.Tick)
	}
}

func TestCursorBounds(t *testing.T) {
	m := newModel(newFake(), Options{})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	if m.cursor != 0 {
		t.Errorf("cursor after up at top = %d, want 0", m.cursor)
	}
	for range 5 {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	}
	if m.cursor != 2 {
		t.Errorf("cursor after many downs = %d, want 2", m.cursor)
	}
	m, _ = update(t, m, runes("k"))
	if m.cursor != 1 {
		t.Errorf("cursor after k = %d, want 1", m.cursor)
	}
}

func TestActionKeys(t *testing.T) {
	tests := []struct {
		key     string
		call    string
		message string
	}{
		{"l", "lock bench1", "locked bench1"},
		{"u", "unlock bench1", "unlocked bench1"},
		{"c", "connect bench1", "connected to bench1 (pid 4242)"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			f := newFake()
			m := newModel(f, Options{})
			m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
			m, _ = update(t, m, runes(tt.key))

			if diff := cmp.Diff([]string{tt.call}, f.calls); diff != "" {
				t.Errorf("calls mismatch (-want +got):\n%s", diff)
			}
			if m.message != tt.message || m.isError {
				t.Errorf("status = %q (error %v), want %q", m.message, m.isError, tt.message)
			}
			if len(f.forced) != 1 || f.forced[0] {
				t.Errorf("Statuses calls = %v, want one unforced", f.forced)
			}
		})
	}
}

func TestActionErrorShown(t *testing.T) {
	f := newFake()
	f.err = errors.New("store unavailable")
	m := newModel(f, Options{})

	m, _ = update(t, m, runes("l"))
	if !m.isError || m.message != "store unavailable" {
		t.Errorf("status = %q (error %v), want store error", m.message, m.isError)
	}
	if !strings.Contains(m.View(), "store unavailable") {
		t.Error("View() does not show the error")
	}
}

func TestRefreshKeyForces(t *testing.T) {
	f := newFake()
	m := newModel(f, Options{})

	m, _ = update(t, m, runes("r"))
	if diff := cmp.Diff([]bool{true}, f.forced); diff != "" {
		t.Errorf("forced mismatch (-want +got):\n%s", diff)
	}
	if m.message != "refreshed" {
		t.Errorf("message = %q, want refreshed", m.message)
	}
}

func TestTickLoadsAndReschedules(t *testing.T) {
	f := newFake()
	m := newModel(f, Options{Tick: 250 * time.Millisecond})

	m, cmd := update(t, m, tickMsg(t0))
	if cmd == nil {
		t.Fatal("tick returned no command")
	}
	if diff := cmp.Diff([]bool{false}, f.forced); diff != "" {
		t.Errorf("forced mismatch (-want +got):\n%s", diff)
	}
	if !m.status["bench1"].Known {
		t.Error("bench1 status not loaded")
	}
}

func TestQuit(t *testing.T) {
	m := newModel(newFake(), Options{})
	_, cmd := update(t, m, runes("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestReload(t *testing.T) {
	t.Run("new topology", func(t *testing.T) {
		f := newFake()
		f.next = &topology.Topology{Blocks: []topology.Block{
			{Nodes: []topology.Node{{ID: "solo", Address: "solo"}}},
		}}
		m := newModel(f, Options{TopologyFile: "benches.yaml"})
		m.cursor = 2

		m, _ = update(t, m, reloadMsg{})
		if f.loadPath != "benches.yaml" {
			t.Errorf("loaded %q, want benches.yaml", f.loadPath)
		}
		if len(m.rows) != 1 || m.rows[0].id != "solo" {
			t.Errorf("rows = %+v, want solo only", m.rows)
		}
		if m.cursor != 0 {
			t.Errorf("cursor = %d, want clamped to 0", m.cursor)
		}
		if m.isError {
			t.Errorf("unexpected error status %q", m.message)
		}
		if len(f.forced) != 1 || !f.forced[0] {
			t.Errorf("Statuses calls = %v, want one forced", f.forced)
		}
	})

	t.Run("failed load keeps rows", func(t *testing.T) {
		f := newFake()
		m := newModel(f, Options{TopologyFile: "benches.yaml"})

		m, _ = update(t, m, reloadMsg{})
		if len(m.rows) != 3 {
			t.Errorf("rows = %d, want 3", len(m.rows))
		}
		if !m.isError || m.message != "bad topology" {
			t.Errorf("status = %q (error %v), want load failure", m.message, m.isError)
		}
	})
}

func TestWaitForReload(t *testing.T) {
	if cmd := newModel(newFake(), Options{}).waitForReload(); cmd != nil {
		t.Error("waitForReload without a channel should be nil")
	}

	ch := make(chan struct{}, 1)
	m := newModel(newFake(), Options{Reload: ch})

	ch <- struct{}{}
	if _, ok := m.waitForReload()().(reloadMsg); !ok {
		t.Error("signal did not produce reloadMsg")
	}

	close(ch)
	if msg := m.waitForReload()(); msg != nil {
		t.Errorf("closed channel produced %T, want nil", msg)
	}
}

func TestView(t *testing.T) {
	m := newModel(newFake(), Options{})
	m, _ = update(t, m, tickMsg(t0))
	view := m.View()

	for _, want := range []string{
		"alice @ locks.db",
		"rack1",
		"└ bench1 (b1.lab)",
		"free",
		"bob for 5s",
		"alice for 1m0s",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestViewEmpty(t *testing.T) {
	f := newFake()
	f.topo = nil
	m := newModel(f, Options{})
	if !strings.Contains(m.View(), "no testbenches loaded") {
		t.Errorf("View() = %q, want empty notice", m.View())
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{1500 * time.Millisecond, "1s"},
		{90 * time.Second, "1m30s"},
		{-time.Second, "0s"},
	}
	for _, tt := range tests {
		if got := FormatAge(tt.in); got != tt.want {
			t.Errorf("FormatAge(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
