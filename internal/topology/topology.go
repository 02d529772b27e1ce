// Package topology describes the testbenches a client knows about and how
// they are grouped for display.
//
// A topology file is a list of blocks. Each block maps testbench ids to an
// entry with an optional address, an optional login name and optional
// nested children:
//
//	[
//	  {"rack-1": {"address": "10.0.0.1", "login_name": "lab",
//	              "children": {"rack-1-dut": {}}}},
//	  {"bench-2": {}}
//	]
//
// The same structure may be written in YAML. The legacy key "hostname" is
// accepted in place of "address". Key order is preserved.
package topology

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resource is one testbench, flattened out of the tree.
type Resource struct {
	// ID is the user-facing identifier, unique within a topology.
	ID string
	// Address is the network address and the lock store key. It defaults
	// to ID.
	Address string
	// LoginName is the remote-desktop user, possibly empty.
	LoginName string
	// Parent is the id of the enclosing entry, or "" at the top level.
	Parent string
}

// Node is an entry of a block together with its nested children.
type Node struct {
	ID        string
	Address   string
	LoginName string
	Children  []Node
}

// Block is an ordered group of top-level entries.
type Block struct {
	Nodes []Node
}

// Topology is the ordered list of blocks loaded from a file.
type Topology struct {
	Blocks []Block
}

// Resources flattens the topology depth-first, each entry followed by its
// children, in file order.
func (t *Topology) Resources() []Resource {
	if t == nil {
		return nil
	}
	var out []Resource
	var walk func(parent string, nodes []Node)
	walk = func(parent string, nodes []Node) {
		for _, n := range nodes {
			addr := n.Address
			if addr == "" {
				addr = n.ID
			}
			out = append(out, Resource{
				ID:        n.ID,
				Address:   addr,
				LoginName: n.LoginName,
				Parent:    parent,
			})
			walk(n.ID, n.Children)
		}
	}
	for _, b := range t.Blocks {
		walk("", b.Nodes)
	}
	return out
}

// Len returns the number of entries at every depth.
func (t *Topology) Len() int { return len(t.Resources()) }

// Format selects the encoding of a topology file.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FormatFor picks the format from the file extension. Files without a
// recognized extension are read as JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ErrInvalid is matched by every parse and validation failure.
var ErrInvalid = errors.New("invalid topology")

// SyntaxError reports a malformed topology document.
type SyntaxError struct {
	// Pos is a byte offset for JSON or "line N" for YAML.
	Pos string
	Msg string
}

func (e *SyntaxError) Error() string {
	if e.Pos == "" {
		return "topology: " + e.Msg
	}
	return fmt.Sprintf("topology: %s: %s", e.Pos, e.Msg)
}

func (e *SyntaxError) Is(target error) bool { return target == ErrInvalid }

// Parse decodes a topology document and validates it.
func Parse(data []byte, f Format) (*Topology, error) {
	var (
		t   *Topology
		err error
	)
	switch f {
	case FormatJSON:
		t, err = parseJSON(data)
	case FormatYAML:
		t, err = parseYAML(data)
	default:
		return nil, fmt.Errorf("topology: unsupported format %v", f)
	}
	if err != nil {
		return nil, err
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadFile reads and parses the topology at path.
func LoadFile(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	t, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// validate rejects empty ids and ids used more than once at any depth, and
// fills in default addresses.
func (t *Topology) validate() error {
	seen := make(map[string]bool)
	var check func(nodes []Node) error
	check = func(nodes []Node) error {
		for i := range nodes {
			n := &nodes[i]
			if strings.TrimSpace(n.ID) == "" {
				return &SyntaxError{Msg: "empty testbench id"}
			}
			if seen[n.ID] {
				return &SyntaxError{Msg: fmt.Sprintf("duplicate testbench id %q", n.ID)}
			}
			seen[n.ID] = true
			if n.Address == "" {
				n.Address = n.ID
			}
			if err := check(n.Children); err != nil {
				return err
			}
		}
		return nil
	}
	for _, b := range t.Blocks {
		if err := check(b.Nodes); err != nil {
			return err
		}
	}
	return nil
}

// entry key names.
const (
	keyAddress   = "address"
	keyHostname  = "hostname"
	keyLoginName = "login_name"
	keyChildren  = "children"
)
