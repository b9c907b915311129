// Package profile attributes consumed cycles to a guessed call tree and
// renders it as folded stacks for flamegraph tooling.
package profile

import (
	"fmt"
	"io"
	"sort"
)

// Node is one call-tree vertex. Self counts cycles spent in the function
// itself; cycles of callees live in the children.
type Node struct {
	Name     string
	Self     uint64
	children map[string]*Node
}

func newNode(name string) *Node {
	return &Node{Name: name, children: make(map[string]*Node)}
}

// Child returns the child for name, creating it on first use. Repeated calls
// through the same edge share one node.
func (n *Node) Child(name string) *Node {
	if c, ok := n.children[name]; ok {
		return c
	}
	c := newNode(name)
	n.children[name] = c
	return c
}

// Children returns the child nodes sorted by name for stable output.
func (n *Node) Children() []*Node {
	out := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Cumulative is Self plus the cumulative cycles of all children.
func (n *Node) Cumulative() uint64 {
	total := n.Self
	for _, c := range n.children {
		total += c.Cumulative()
	}
	return total
}

// WriteFolded emits the tree in folded-stack form, one line per node with
// nonzero self cycles: semicolon-joined path, a space, the self count.
func (n *Node) WriteFolded(w io.Writer) error {
	return n.writeFolded(w, "")
}

func (n *Node) writeFolded(w io.Writer, prefix string) error {
	path := n.Name
	if prefix != "" {
		path = prefix + ";" + n.Name
	}
	if n.Self > 0 {
		if _, err := fmt.Fprintf(w, "%s %d\n", path, n.Self); err != nil {
			return err
		}
	}
	for _, c := range n.Children() {
		if err := c.writeFolded(w, path); err != nil {
			return err
		}
	}
	return nil
}
