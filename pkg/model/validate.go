package model

type validateFrame struct {
	node *Node
	exit bool
}

// Validate checks that roots form a finite forest with unique, non-empty ids.
//
// A node pointer reached again while it is still on the current root-to-node
// path is a cycle. A node reached twice through different parents is reported
// as a duplicate id, since its id would appear at two positions.
func Validate(roots []*Node) error {
	seen := make(map[string]struct{})
	onPath := make(map[*Node]struct{})
	var path []string

	stack := make([]validateFrame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, validateFrame{node: roots[i]})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.exit {
			delete(onPath, f.node)
			path = path[:len(path)-1]
			continue
		}

		n := f.node
		if n == nil {
			return &MalformedTreeError{Reason: ErrNilNode, Path: clonePath(path)}
		}
		if _, cyclic := onPath[n]; cyclic {
			return &MalformedTreeError{Reason: ErrCycle, ID: n.ID, Path: append(clonePath(path), n.ID)}
		}
		if n.ID == "" {
			return &MalformedTreeError{Reason: ErrEmptyID, Path: append(clonePath(path), n.Label)}
		}
		if _, dup := seen[n.ID]; dup {
			return &MalformedTreeError{Reason: ErrDuplicateID, ID: n.ID, Path: append(clonePath(path), n.ID)}
		}
		seen[n.ID] = struct{}{}
		onPath[n] = struct{}{}
		path = append(path, n.ID)

		stack = append(stack, validateFrame{node: n, exit: true})
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, validateFrame{node: n.Children[i]})
		}
	}
	return nil
}

func clonePath(p []string) []string {
	out := make([]string, len(p))
	copy(out, p)
	return out
}
