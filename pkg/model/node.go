// Package model defines the checkbox tree data types shared by the loader,
// the tri-state model, the exporters and the terminal UI.
package model

// Node is one entry of a checkbox tree. Children are owned by their parent;
// a node with no children (nil or empty) is a leaf.
//
// The Default* flags are only read when a model is constructed, to seed the
// checked, secondary-checked and expanded sets.
type Node struct {
	ID       string  `json:"id" yaml:"id"`
	Label    string  `json:"label" yaml:"label"`
	Children []*Node `json:"children,omitempty" yaml:"children,omitempty"`

	DefaultChecked          bool `json:"defaultChecked,omitempty" yaml:"defaultChecked,omitempty"`
	DefaultSecondaryChecked bool `json:"defaultSecondaryChecked,omitempty" yaml:"defaultSecondaryChecked,omitempty"`
	DefaultExpanded         bool `json:"defaultExpanded,omitempty" yaml:"defaultExpanded,omitempty"`
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return n == nil || len(n.Children) == 0
}

// Leaf is a convenience constructor used by fixtures and tests.
func Leaf(id, label string) *Node {
	return &Node{ID: id, Label: label}
}

// Branch is a convenience constructor used by fixtures and tests.
func Branch(id, label string, children ...*Node) *Node {
	return &Node{ID: id, Label: label, Children: children}
}

// VisitFunc is called by Walk for every node. Returning false stops the walk.
type VisitFunc func(node, parent *Node, depth int) bool

type walkFrame struct {
	node   *Node
	parent *Node
	depth  int
}

// Walk visits every node reachable from roots in pre-order (parents before
// children, siblings in slice order). It uses an explicit stack so arbitrarily
// deep trees cannot overflow the goroutine stack. Walk does not guard against
// cycles; call Validate first on untrusted input.
func Walk(roots []*Node, fn VisitFunc) {
	stack := make([]walkFrame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, walkFrame{node: roots[i]})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.node == nil {
			continue
		}
		if !fn(f.node, f.parent, f.depth) {
			return
		}
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, walkFrame{node: f.node.Children[i], parent: f.node, depth: f.depth + 1})
		}
	}
}

// Count returns the number of nodes reachable from roots.
func Count(roots []*Node) int {
	n := 0
	Walk(roots, func(*Node, *Node, int) bool {
		n++
		return true
	})
	return n
}
