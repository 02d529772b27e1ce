package lockcache

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/testbench-tools/taco/internal/clock"
	"github.com/testbench-tools/taco/internal/lockstore"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestNewIsStale(t *testing.T) {
	c := New(clock.NewFake(t0), 10*time.Second)
	if !c.Stale() {
		t.Error("new cache should be stale")
	}
	if c.Len() != 0 {
		t.Errorf("new cache Len() = %d, want 0", c.Len())
	}
}

func TestNewDefaults(t *testing.T) {
	c := New(nil, 0)
	if c.Threshold() != DefaultThreshold {
		t.Errorf("Threshold() = %v, want %v", c.Threshold(), DefaultThreshold)
	}
}

func TestStaleness(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		stale   bool
	}{
		{"just refreshed", 0, false},
		{"within window", 5 * time.Second, false},
		{"just before threshold", 10*time.Second - time.Nanosecond, false},
		{"at threshold", 10 * time.Second, true},
		{"past threshold", 11 * time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := clock.NewFake(t0)
			c := New(clk, 10*time.Second)
			c.MarkRefreshed()
			clk.Advance(tt.elapsed)
			if got := c.Stale(); got != tt.stale {
				t.Errorf("Stale() after %v = %v, want %v", tt.elapsed, got, tt.stale)
			}
			if got := c.Age(); got != tt.elapsed {
				t.Errorf("Age() = %v, want %v", got, tt.elapsed)
			}
		})
	}
}

func TestPutGet(t *testing.T) {
	c := New(clock.NewFake(t0), 0)
	if _, ok := c.Get("a"); ok {
		t.Fatal("Get on empty cache reported a hit")
	}
	want := lockstore.Record{Holder: "alice", HeldSince: t0}
	c.Put("a", want)
	got, ok := c.Get("a")
	if !ok {
		t.Fatal("Get missed after Put")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge(t *testing.T) {
	c := New(clock.NewFake(t0), 0)
	c.Put("a", lockstore.Record{Holder: "alice", HeldSince: t0})
	c.Put("b", lockstore.Record{Holder: "bob", HeldSince: t0})

	later := t0.Add(time.Minute)
	c.Merge(map[string]lockstore.Record{
		"b": {HeldSince: later},
		"c": {Holder: "carol", HeldSince: later},
	})

	want := map[string]lockstore.Record{
		"a": {Holder: "alice", HeldSince: t0},
		"b": {HeldSince: later},
		"c": {Holder: "carol", HeldSince: later},
	}
	if diff := cmp.Diff(want, c.entries); diff != "" {
		t.Errorf("entries after Merge mismatch (-want +got):\n%s", diff)
	}
}

func TestReset(t *testing.T) {
	clk := clock.NewFake(t0)
	c := New(clk, 10*time.Second)
	c.Put("a", lockstore.Record{Holder: "alice"})
	c.MarkRefreshed()
	if c.Stale() {
		t.Fatal("cache stale right after MarkRefreshed")
	}

	c.Reset()
	if !c.Stale() {
		t.Error("cache not stale after Reset")
	}
	if c.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", c.Len())
	}
}
