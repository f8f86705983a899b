package checktree

import (
	"github.com/vanderheijden86/checktree/pkg/model"
)

// Index is an immutable lookup structure over a validated forest.
//
// Nodes are laid out in pre-order, so the subtree of a node occupies the
// contiguous range order[pos[id]:end[id]]. Reversing that range yields a
// post-order, which is what the evaluator folds over.
type Index struct {
	roots  []*model.Node
	nodes  map[string]*model.Node
	parent map[string]string
	depth  map[string]int
	order  []string
	pos    map[string]int
	end    map[string]int
}

// NewIndex validates roots and builds the index.
func NewIndex(roots []*model.Node) (*Index, error) {
	if err := model.Validate(roots); err != nil {
		return nil, err
	}
	n := model.Count(roots)
	idx := &Index{
		roots:  roots,
		nodes:  make(map[string]*model.Node, n),
		parent: make(map[string]string, n),
		depth:  make(map[string]int, n),
		order:  make([]string, 0, n),
		pos:    make(map[string]int, n),
		end:    make(map[string]int, n),
	}
	model.Walk(roots, func(node, parent *model.Node, depth int) bool {
		idx.nodes[node.ID] = node
		if parent != nil {
			idx.parent[node.ID] = parent.ID
		}
		idx.depth[node.ID] = depth
		idx.pos[node.ID] = len(idx.order)
		idx.order = append(idx.order, node.ID)
		return true
	})

	// A subtree ends where the next node at the same or a shallower depth
	// begins.
	type pending struct {
		id    string
		depth int
	}
	var open []pending
	for i := 0; i < len(idx.order); i++ {
		id := idx.order[i]
		d := idx.depth[id]
		for len(open) > 0 && open[len(open)-1].depth >= d {
			idx.end[open[len(open)-1].id] = i
			open = open[:len(open)-1]
		}
		open = append(open, pending{id: id, depth: d})
	}
	for _, p := range open {
		idx.end[p.id] = len(idx.order)
	}
	return idx, nil
}

// Has reports whether id is part of the tree.
func (x *Index) Has(id string) bool {
	_, ok := x.nodes[id]
	return ok
}

// Node returns the node for id, or nil.
func (x *Index) Node(id string) *model.Node {
	return x.nodes[id]
}

// Roots returns the forest the index was built from.
func (x *Index) Roots() []*model.Node {
	return x.roots
}

// Parent returns the parent id and whether id has one.
func (x *Index) Parent(id string) (string, bool) {
	p, ok := x.parent[id]
	return p, ok
}

// Depth returns the depth of id (roots are 0), or -1 when unknown.
func (x *Index) Depth(id string) int {
	d, ok := x.depth[id]
	if !ok {
		return -1
	}
	return d
}

// Ancestors returns the ids from the parent of id up to its root.
func (x *Index) Ancestors(id string) []string {
	var out []string
	for {
		p, ok := x.parent[id]
		if !ok {
			return out
		}
		out = append(out, p)
		id = p
	}
}

// Subtree returns id followed by all of its descendants in pre-order.
// The returned slice aliases the index and must not be modified.
func (x *Index) Subtree(id string) []string {
	start, ok := x.pos[id]
	if !ok {
		return nil
	}
	return x.order[start:x.end[id]]
}

// IDs returns every id in pre-order. The slice must not be modified.
func (x *Index) IDs() []string {
	return x.order
}

// Len returns the number of nodes.
func (x *Index) Len() int {
	return len(x.order)
}
