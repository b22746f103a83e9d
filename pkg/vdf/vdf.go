// Package vdf implements an order-preserving codec for Valve's KeyValues
// text format, the format of Steam's config.vdf and appmanifest .acf files.
//
// Both the config merger and the descriptor generator require that unrelated
// keys survive a read-modify-write byte-for-byte in structure, so the
// document model is an ordered tree of nodes rather than a map.
package vdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/depotkit/depotkit/pkg/errors"
)

// Node is one entry of a KeyValues document: either a leaf ("key" "value")
// or a section ("key" { ... }). Child order is preserved.
type Node struct {
	Key      string
	Value    string
	Children []*Node
	Section  bool
}

// Document is the parsed form of one KeyValues file. Top-level files carry a
// single root section, but the parser accepts any number.
type Document struct {
	Nodes []*Node
}

// Child returns the first child with exactly the given key, or nil.
func (n *Node) Child(key string) *Node {
	for _, c := range n.Children {
		if c.Key == key {
			return c
		}
	}
	return nil
}

// ChildFold returns the first child matching the key case-insensitively.
// Steam writes Valve/Steam section names with inconsistent casing.
func (n *Node) ChildFold(key string) *Node {
	for _, c := range n.Children {
		if strings.EqualFold(c.Key, key) {
			return c
		}
	}
	return nil
}

// EnsureSection returns the child section with the given key, appending a
// new empty section when absent.
func (n *Node) EnsureSection(key string) *Node {
	if c := n.Child(key); c != nil {
		return c
	}
	c := &Node{Key: key, Section: true}
	n.Children = append(n.Children, c)
	return c
}

// SetLeaf sets the value of the child leaf with the given key, replacing an
// existing entry in place or appending a new one. Setting the same value
// twice leaves the document unchanged.
func (n *Node) SetLeaf(key, value string) {
	if c := n.Child(key); c != nil {
		c.Value = value
		c.Section = false
		c.Children = nil
		return
	}
	n.Children = append(n.Children, &Node{Key: key, Value: value})
}

// RemoveChild deletes the first child with the given key. It reports whether
// an entry was removed.
func (n *Node) RemoveChild(key string) bool {
	for i, c := range n.Children {
		if c.Key == key {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			return true
		}
	}
	return false
}

// Root returns the document's top-level section matching the key
// case-insensitively, or nil.
func (d *Document) Root(key string) *Node {
	for _, n := range d.Nodes {
		if strings.EqualFold(n.Key, key) {
			return n
		}
	}
	return nil
}

// Parse reads a KeyValues document. It fails with a CONFIG_FORMAT error on
// structural problems (unterminated strings, unbalanced braces, values
// without keys).
func Parse(data []byte) (*Document, error) {
	p := &parser{src: data}
	nodes, err := p.parseNodes(0)
	if err != nil {
		return nil, err
	}
	return &Document{Nodes: nodes}, nil
}

type parser struct {
	src  []byte
	pos  int
	line int
}

func (p *parser) errf(format string, args ...interface{}) error {
	return errors.Newf(errors.ErrConfigFormat, "line %d: %s", p.line+1, fmt.Sprintf(format, args...))
}

// parseNodes consumes nodes until EOF (depth 0) or a closing brace.
func (p *parser) parseNodes(depth int) ([]*Node, error) {
	var nodes []*Node
	for {
		tok, kind, err := p.nextToken()
		if err != nil {
			return nil, err
		}
		switch kind {
		case tokenEOF:
			if depth > 0 {
				return nil, p.errf("unexpected end of file, %d unclosed section(s)", depth)
			}
			return nodes, nil
		case tokenClose:
			if depth == 0 {
				return nil, p.errf("unexpected '}'")
			}
			return nodes, nil
		case tokenOpen:
			return nil, p.errf("unexpected '{' without a key")
		case tokenString:
			node, err := p.parseNodeBody(tok, depth)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		}
	}
}

// parseNodeBody parses what follows a key: either a value string or a
// braced child list.
func (p *parser) parseNodeBody(key string, depth int) (*Node, error) {
	tok, kind, err := p.nextToken()
	if err != nil {
		return nil, err
	}
	switch kind {
	case tokenString:
		return &Node{Key: key, Value: tok}, nil
	case tokenOpen:
		children, err := p.parseNodes(depth + 1)
		if err != nil {
			return nil, err
		}
		return &Node{Key: key, Section: true, Children: children}, nil
	case tokenClose:
		return nil, p.errf("key %q has no value", key)
	default:
		return nil, p.errf("key %q has no value", key)
	}
}

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenString
	tokenOpen
	tokenClose
)

func (p *parser) nextToken() (string, tokenKind, error) {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '\n':
			p.line++
			p.pos++
		case c == ' ' || c == '\t' || c == '\r':
			p.pos++
		case c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '/':
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.pos++
			}
		case c == '{':
			p.pos++
			return "", tokenOpen, nil
		case c == '}':
			p.pos++
			return "", tokenClose, nil
		case c == '"':
			s, err := p.readQuoted()
			if err != nil {
				return "", tokenEOF, err
			}
			return s, tokenString, nil
		default:
			return p.readBare(), tokenString, nil
		}
	}
	return "", tokenEOF, nil
}

func (p *parser) readQuoted() (string, error) {
	p.pos++ // opening quote
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case '"':
			p.pos++
			return b.String(), nil
		case '\\':
			if p.pos+1 >= len(p.src) {
				return "", p.errf("dangling escape at end of file")
			}
			p.pos++
			switch p.src[p.pos] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\\':
				b.WriteByte('\\')
			case '"':
				b.WriteByte('"')
			default:
				// Unknown escapes pass through verbatim, as Steam does.
				b.WriteByte('\\')
				b.WriteByte(p.src[p.pos])
			}
			p.pos++
		case '\n':
			return "", p.errf("unterminated string")
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errf("unterminated string")
}

// readBare consumes an unquoted token. Some hand-edited files omit quotes
// around simple keys.
func (p *parser) readBare() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '{' || c == '}' || c == '"' {
			break
		}
		p.pos++
	}
	return string(p.src[start:p.pos])
}

// Serialize renders the document in Steam's own output style: tab
// indentation, leaves as "key"\t\t"value", sections braced on their own
// lines, trailing newline.
func (d *Document) Serialize() []byte {
	var buf bytes.Buffer
	for _, n := range d.Nodes {
		writeNode(&buf, n, 0)
	}
	return buf.Bytes()
}

func writeNode(buf *bytes.Buffer, n *Node, level int) {
	indent := strings.Repeat("\t", level)
	if n.Section {
		fmt.Fprintf(buf, "%s\"%s\"\n%s{\n", indent, escape(n.Key), indent)
		for _, c := range n.Children {
			writeNode(buf, c, level+1)
		}
		fmt.Fprintf(buf, "%s}\n", indent)
		return
	}
	fmt.Fprintf(buf, "%s\"%s\"\t\t\"%s\"\n", indent, escape(n.Key), escape(n.Value))
}

func escape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
