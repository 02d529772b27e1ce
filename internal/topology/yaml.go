package topology

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

func parseYAML(data []byte) (*Topology, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &SyntaxError{Msg: err.Error()}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &SyntaxError{Msg: "empty document"}
	}
	root := doc.Content[0]
	if root.Kind != yaml.SequenceNode {
		return nil, yamlErrorf(root, "expected a list of blocks, got %s", kindName(root))
	}

	t := &Topology{}
	for _, item := range root.Content {
		nodes, err := yamlNodes(item)
		if err != nil {
			return nil, err
		}
		t.Blocks = append(t.Blocks, Block{Nodes: nodes})
	}
	return t, nil
}

func yamlErrorf(n *yaml.Node, format string, args ...any) error {
	return &SyntaxError{Pos: fmt.Sprintf("line %d", n.Line), Msg: fmt.Sprintf(format, args...)}
}

func yamlNodes(m *yaml.Node) ([]Node, error) {
	if m.Kind != yaml.MappingNode {
		return nil, yamlErrorf(m, "expected a mapping of testbenches, got %s", kindName(m))
	}
	var out []Node
	for i := 0; i+1 < len(m.Content); i += 2 {
		k, v := m.Content[i], m.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, yamlErrorf(k, "testbench id must be a scalar")
		}
		n, err := yamlNode(k.Value, v)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func yamlNode(id string, v *yaml.Node) (Node, error) {
	n := Node{ID: id}
	// "bench: {}" and a bare "bench:" both denote an entry with no fields.
	if v.Kind == yaml.ScalarNode && v.Tag == "!!null" {
		return n, nil
	}
	if v.Kind != yaml.MappingNode {
		return n, yamlErrorf(v, "testbench %q: expected a mapping, got %s", id, kindName(v))
	}

	seen := make(map[string]bool)
	for i := 0; i+1 < len(v.Content); i += 2 {
		k, val := v.Content[i], v.Content[i+1]
		key := k.Value
		if seen[key] {
			return n, yamlErrorf(k, "testbench %q: duplicate key %q", id, key)
		}
		seen[key] = true

		var err error
		switch key {
		case keyAddress, keyHostname:
			if seen[keyAddress] && seen[keyHostname] {
				return n, yamlErrorf(k, "testbench %q: both %q and %q given", id, keyAddress, keyHostname)
			}
			n.Address, err = yamlString(id, key, val)
		case keyLoginName:
			n.LoginName, err = yamlString(id, key, val)
		case keyChildren:
			if val.Kind == yaml.ScalarNode && val.Tag == "!!null" {
				continue
			}
			n.Children, err = yamlNodes(val)
		default:
			err = yamlErrorf(k, "testbench %q: unknown key %q", id, key)
		}
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// yamlString accepts any non-null scalar, so unquoted numeric hostnames
// still read as their literal text.
func yamlString(id, key string, v *yaml.Node) (string, error) {
	if v.Kind != yaml.ScalarNode || v.Tag == "!!null" {
		return "", yamlErrorf(v, "testbench %q: %q must be a string, got %s", id, key, kindName(v))
	}
	return v.Value, nil
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.SequenceNode:
		return "a list"
	case yaml.MappingNode:
		return "a mapping"
	case yaml.AliasNode:
		return "an alias"
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return "null"
		}
		return fmt.Sprintf("scalar %q", n.Value)
	default:
		return "an empty document"
	}
}
