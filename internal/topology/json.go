package topology

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// jsonParser walks the token stream so that object key order survives.
type jsonParser struct {
	dec *json.Decoder
}

func parseJSON(data []byte) (*Topology, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	p := &jsonParser{dec: dec}

	if err := p.expectDelim('[', "a list of blocks"); err != nil {
		return nil, err
	}
	t := &Topology{}
	for dec.More() {
		nodes, err := p.nodes()
		if err != nil {
			return nil, err
		}
		t.Blocks = append(t.Blocks, Block{Nodes: nodes})
	}
	if err := p.expectDelim(']', "end of list"); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, p.errorf("unexpected data after topology")
	}
	return t, nil
}

func (p *jsonParser) errorf(format string, args ...any) error {
	return &SyntaxError{
		Pos: fmt.Sprintf("offset %d", p.dec.InputOffset()),
		Msg: fmt.Sprintf(format, args...),
	}
}

func (p *jsonParser) token() (json.Token, error) {
	tok, err := p.dec.Token()
	if errors.Is(err, io.EOF) {
		return nil, p.errorf("unexpected end of input")
	}
	if err != nil {
		return nil, &SyntaxError{Pos: fmt.Sprintf("offset %d", p.dec.InputOffset()), Msg: err.Error()}
	}
	return tok, nil
}

func (p *jsonParser) expectDelim(want json.Delim, what string) error {
	tok, err := p.token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return p.errorf("expected %s, got %v", what, describe(tok))
	}
	return nil
}

// nodes reads an object of id -> entry.
func (p *jsonParser) nodes() ([]Node, error) {
	if err := p.expectDelim('{', "an object of testbenches"); err != nil {
		return nil, err
	}
	var out []Node
	for p.dec.More() {
		tok, err := p.token()
		if err != nil {
			return nil, err
		}
		id := tok.(string) // object keys are always strings
		n, err := p.node(id)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, p.expectDelim('}', "end of object")
}

func (p *jsonParser) node(id string) (Node, error) {
	n := Node{ID: id}
	tok, err := p.token()
	if err != nil {
		return n, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return n, p.errorf("testbench %q: expected an object, got %v", id, describe(tok))
	}
	seen := make(map[string]bool)
	for p.dec.More() {
		tok, err := p.token()
		if err != nil {
			return n, err
		}
		key := tok.(string)
		if seen[key] {
			return n, p.errorf("testbench %q: duplicate key %q", id, key)
		}
		seen[key] = true

		switch key {
		case keyAddress, keyHostname:
			if seen[keyAddress] && seen[keyHostname] {
				return n, p.errorf("testbench %q: both %q and %q given", id, keyAddress, keyHostname)
			}
			if n.Address, err = p.str(id, key); err != nil {
				return n, err
			}
		case keyLoginName:
			if n.LoginName, err = p.str(id, key); err != nil {
				return n, err
			}
		case keyChildren:
			if n.Children, err = p.nodes(); err != nil {
				return n, err
			}
		default:
			return n, p.errorf("testbench %q: unknown key %q", id, key)
		}
	}
	return n, p.expectDelim('}', "end of object")
}

func (p *jsonParser) str(id, key string) (string, error) {
	tok, err := p.token()
	if err != nil {
		return "", err
	}
	s, ok := tok.(string)
	if !ok {
		return "", p.errorf("testbench %q: %q must be a string, got %v", id, key, describe(tok))
	}
	return s, nil
}

func describe(tok json.Token) string {
	switch v := tok.(type) {
	case json.Delim:
		return fmt.Sprintf("%q", v.String())
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("string %q", v)
	default:
		return fmt.Sprintf("%T %v", v, v)
	}
}
