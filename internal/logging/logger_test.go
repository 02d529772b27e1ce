package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("line is not valid JSON: %v: %q", err, line)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger(t *testing.T) {
	t.Run("creates log file and parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "taco.log")

		logger, err := NewLogger(path, LevelDebug, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		if _, err := os.Stat(path); err != nil {
			t.Errorf("log file was not created at %s: %v", path, err)
		}
	})

	t.Run("writes to stderr when path is empty", func(t *testing.T) {
		logger, err := NewLogger("", LevelInfo, RotationConfig{})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		if logger.sink.out != nil {
			t.Error("expected no closer when path is empty")
		}
		if err := logger.Close(); err != nil {
			t.Errorf("Close() = %v", err)
		}
	})
}

func TestLogLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taco.log")
	logger, err := NewLogger(path, "warn", RotationConfig{})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")
	logger.Close()

	entries := readEntries(t, path)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries (WARN and ERROR only), got %d", len(entries))
	}
	if entries[0]["level"] != LevelWarn || entries[1]["level"] != LevelError {
		t.Errorf("unexpected levels: %v, %v", entries[0]["level"], entries[1]["level"])
	}
}

func TestChildAttributes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taco.log")
	logger, err := NewLogger(path, LevelInfo, RotationConfig{})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	parent := logger.WithUser("alice")
	child := parent.WithResource("bench-1").WithComponent("access").With("pid", 4242, 7, "skipped")
	child.Info("session launched", "address", "10.0.0.7")
	parent.Info("parent entry")
	logger.Close()

	entries := readEntries(t, path)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	got := entries[0]
	want := map[string]any{
		"user":      "alice",
		"resource":  "bench-1",
		"component": "access",
		"pid":       float64(4242),
		"address":   "10.0.0.7",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("entry[%q] = %v, want %v", k, got[k], v)
		}
	}

	if _, ok := entries[1]["resource"]; ok {
		t.Error("child attributes leaked into parent logger")
	}
}

func TestCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taco.log")
	logger, err := NewLogger(path, LevelInfo, RotationConfig{})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	child := logger.WithUser("bob")

	if err := child.Close(); err != nil {
		t.Fatalf("first Close() = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestChildCloseClosesShared(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taco.log")
	logger, err := NewLogger(path, LevelInfo, RotationConfig{})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	child := logger.WithComponent("access")

	logger.Info("before close")
	if err := child.Close(); err != nil {
		t.Fatalf("child Close() = %v", err)
	}
	if logger.sink.out != nil || !logger.sink.closed {
		t.Error("parent still holds the log file after child Close")
	}
	logger.Info("after close")
	child.WithUser("bob").Info("after close")

	entries := readEntries(t, path)
	if len(entries) != 1 || entries[0]["msg"] != "before close" {
		t.Errorf("entries = %v, want only the entry written before Close", entries)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"error", LevelError},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.WithResource("x").Error("discarded")
	if err := logger.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
