package treesitter

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ritzau/codegraph/pkg/model"
)

// walk visits n and its descendants depth-first. Returning false from visit
// skips the children of that node.
func walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for i := range int(n.ChildCount()) {
		walk(n.Child(i), visit)
	}
}

// text returns the source of n, or "" for nil or out of range nodes.
func text(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if start > end || end > uint32(len(src)) {
		return ""
	}
	return string(src[start:end])
}

func spanOf(n *sitter.Node) model.Span {
	p := n.StartPoint()
	return model.Span{Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

// field returns the named child, tolerating a nil parent.
func field(n *sitter.Node, name string) *sitter.Node {
	if n == nil {
		return nil
	}
	return n.ChildByFieldName(name)
}

// fieldAll returns every child stored under the field name.
func fieldAll(n *sitter.Node, name string) []*sitter.Node {
	var out []*sitter.Node
	for i := range int(n.ChildCount()) {
		if n.FieldNameForChild(i) == name {
			if c := n.Child(i); c != nil {
				out = append(out, c)
			}
		}
	}
	return out
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := range int(n.NamedChildCount()) {
		if c := n.NamedChild(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// nodeKey identifies a node within one tree.
type nodeKey struct {
	start, end uint32
	typ        string
}

func keyOf(n *sitter.Node) nodeKey {
	return nodeKey{start: n.StartByte(), end: n.EndByte(), typ: n.Type()}
}

func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return keyOf(a) == keyOf(b)
}

// identifiers collects the text of leaves whose type is in types.
func identifiers(n *sitter.Node, src []byte, types map[string]bool) []string {
	var out []string
	walk(n, func(c *sitter.Node) bool {
		if types[c.Type()] {
			out = append(out, text(c, src))
		}
		return true
	})
	return out
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		switch s[0] {
		case '"', '\'', '`':
			if s[len(s)-1] == s[0] {
				return s[1 : len(s)-1]
			}
		}
	}
	return s
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}
