package checktree

import "github.com/vanderheijden86/checktree/pkg/debug"

// IsExpanded reports whether id is in the expanded set.
func (m *Model) IsExpanded(id string) bool {
	return m.expanded.Has(id)
}

// ToggleExpand flips the expansion of id and returns the new state.
// Leaves have nothing to expand; toggling one is a no-op that returns false.
func (m *Model) ToggleExpand(id string) (bool, error) {
	if ok, err := m.known(id); !ok {
		return false, err
	}
	want := !m.expanded.Has(id)
	if err := m.SetExpanded(id, want); err != nil {
		return false, err
	}
	return m.expanded.Has(id), nil
}

// SetExpanded expands or collapses id. An explicit user change takes the
// node out of the set that ClearRestore would collapse.
func (m *Model) SetExpanded(id string, expanded bool) error {
	if ok, err := m.known(id); !ok {
		return err
	}
	if m.idx.Node(id).IsLeaf() {
		return nil
	}
	m.searchExpanded.Remove(id)
	if m.expanded.Has(id) == expanded {
		return nil
	}
	op := OpCollapse
	if expanded {
		m.expanded.Add(id)
		op = OpExpand
	} else {
		m.expanded.Remove(id)
		m.allExpanded = false
	}
	debug.Log("%s %s", op, id)
	m.emit(op, id)
	return nil
}

// ExpandAll expands every interior node.
func (m *Model) ExpandAll() {
	for _, id := range m.idx.IDs() {
		if !m.idx.Node(id).IsLeaf() {
			m.expanded.Add(id)
		}
	}
	m.searchExpanded = NewIDSet()
	m.allExpanded = true
	m.emit(OpExpandAll, "")
}

// CollapseAll empties the expanded set.
func (m *Model) CollapseAll() {
	m.expanded = NewIDSet()
	m.searchExpanded = NewIDSet()
	m.allExpanded = false
	m.emit(OpCollapseAll, "")
}

// ToggleExpandAll collapses everything after an ExpandAll, and expands
// everything otherwise. It returns true when the tree ends up fully expanded.
func (m *Model) ToggleExpandAll() bool {
	if m.allExpanded {
		m.CollapseAll()
	} else {
		m.ExpandAll()
	}
	return m.allExpanded
}

// AllExpanded reports whether the last bulk expansion was ExpandAll and no
// node has been collapsed since.
func (m *Model) AllExpanded() bool {
	return m.allExpanded
}

// Visible returns the ids a tree view shows, in display order: every root,
// and the children of every expanded node whose ancestors are all expanded.
func (m *Model) Visible() []string {
	order := m.idx.IDs()
	out := make([]string, 0, len(order))
	for i := 0; i < len(order); {
		id := order[i]
		out = append(out, id)
		if m.idx.Node(id).IsLeaf() || m.expanded.Has(id) {
			i++
			continue
		}
		i = m.idx.end[id]
	}
	return out
}
