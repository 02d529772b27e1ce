package topology

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleJSON = `[
  {
    "rack-b": {"address": "10.0.0.2", "login_name": "lab",
               "children": {"rack-b-dut2": {}, "rack-b-dut1": {"hostname": "dut1.lab"}}},
    "rack-a": {}
  },
  {"bench-z": {"login_name": "ops"}}
]`

const sampleYAML = `
- rack-b:
    address: 10.0.0.2
    login_name: lab
    children:
      rack-b-dut2: {}
      rack-b-dut1:
        hostname: dut1.lab
  rack-a:
- bench-z:
    login_name: ops
`

var sampleResources = []Resource{
	{ID: "rack-b", Address: "10.0.0.2", LoginName: "lab"},
	{ID: "rack-b-dut2", Address: "rack-b-dut2", Parent: "rack-b"},
	{ID: "rack-b-dut1", Address: "dut1.lab", Parent: "rack-b"},
	{ID: "rack-a", Address: "rack-a"},
	{ID: "bench-z", Address: "bench-z", LoginName: "ops"},
}

func TestParsePreservesOrder(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"json", sampleJSON, FormatJSON},
		{"yaml", sampleYAML, FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			top, err := Parse([]byte(tt.data), tt.format)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if len(top.Blocks) != 2 {
				t.Fatalf("got %d blocks, want 2", len(top.Blocks))
			}
			if diff := cmp.Diff(sampleResources, top.Resources()); diff != "" {
				t.Errorf("Resources mismatch (-want +got):\n%s", diff)
			}
			if top.Len() != 5 {
				t.Errorf("Len() = %d, want 5", top.Len())
			}
		})
	}
}

func TestParseDeepNesting(t *testing.T) {
	data := `[{"a": {"children": {"b": {"children": {"c": {"address": "c.lab"}}}}}}]`
	top, err := Parse([]byte(data), FormatJSON)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := []Resource{
		{ID: "a", Address: "a"},
		{ID: "b", Address: "b", Parent: "a"},
		{ID: "c", Address: "c.lab", Parent: "b"},
	}
	if diff := cmp.Diff(want, top.Resources()); diff != "" {
		t.Errorf("Resources mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEmptyList(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatYAML} {
		top, err := Parse([]byte("[]"), f)
		if err != nil {
			t.Fatalf("Parse(%v) failed: %v", f, err)
		}
		if len(top.Resources()) != 0 {
			t.Errorf("Parse(%v) returned resources %v", f, top.Resources())
		}
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"json not a list", `{"a": {}}`, FormatJSON},
		{"json block not an object", `[["a"]]`, FormatJSON},
		{"json entry not an object", `[{"a": "10.0.0.1"}]`, FormatJSON},
		{"json null entry", `[{"a": null}]`, FormatJSON},
		{"json unknown key", `[{"a": {"adress": "x"}}]`, FormatJSON},
		{"json address not a string", `[{"a": {"address": 10}}]`, FormatJSON},
		{"json both address and hostname", `[{"a": {"address": "x", "hostname": "y"}}]`, FormatJSON},
		{"json duplicate key", `[{"a": {"login_name": "x", "login_name": "y"}}]`, FormatJSON},
		{"json duplicate id across blocks", `[{"a": {}}, {"a": {}}]`, FormatJSON},
		{"json duplicate id in children", `[{"a": {"children": {"a": {}}}}]`, FormatJSON},
		{"json empty id", `[{"": {}}]`, FormatJSON},
		{"json truncated", `[{"a": {}`, FormatJSON},
		{"json trailing data", `[] []`, FormatJSON},
		{"json python literal", `[{'a': {}}]`, FormatJSON},
		{"json empty input", ``, FormatJSON},
		{"yaml not a list", "a: {}\n", FormatYAML},
		{"yaml entry is a list", "- a: [x]\n", FormatYAML},
		{"yaml unknown key", "- a:\n    user: x\n", FormatYAML},
		{"yaml address is a mapping", "- a:\n    address: {x: y}\n", FormatYAML},
		{"yaml duplicate id", "- a: {}\n- a: {}\n", FormatYAML},
		{"yaml empty input", "", FormatYAML},
		{"yaml syntax", "- a: {\n", FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.format)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("error %v does not match ErrInvalid", err)
			}
		})
	}
}

func TestFormatFor(t *testing.T) {
	tests := map[string]Format{
		"benches.json": FormatJSON,
		"benches.YAML": FormatYAML,
		"benches.yml":  FormatYAML,
		"benches.txt":  FormatJSON,
		"benches":      FormatJSON,
	}
	for path, want := range tests {
		if got := FormatFor(path); got != want {
			t.Errorf("FormatFor(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "benches.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0644); err != nil {
		t.Fatal(err)
	}
	top, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if diff := cmp.Diff(sampleResources, top.Resources()); diff != "" {
		t.Errorf("Resources mismatch (-want +got):\n%s", diff)
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "nope.json"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("LoadFile error = %v, want os.ErrNotExist", err)
		}
	})

	t.Run("invalid file names path", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		if err := os.WriteFile(bad, []byte(`[{"a": 1}]`), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := LoadFile(bad)
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("LoadFile error = %v, want ErrInvalid", err)
		}
	})
}

func TestNilTopology(t *testing.T) {
	var top *Topology
	if top.Resources() != nil {
		t.Error("nil topology returned resources")
	}
}
