// Package checktree implements a tri-state checkbox tree.
//
// A Model owns three id sets over an immutable forest: the checked set, an
// independent secondary-checked set, and the expanded set. Interior status is
// never stored. It is derived from leaf membership on every read, so the sets
// only ever hold what the user wrote.
//
// A Model is not safe for concurrent use. Give every session its own.
package checktree

import (
	"github.com/google/uuid"

	"github.com/vanderheijden86/checktree/pkg/debug"
	"github.com/vanderheijden86/checktree/pkg/metrics"
	"github.com/vanderheijden86/checktree/pkg/model"
)

// Model is the tri-state tree state for one session.
type Model struct {
	id  string
	idx *Index

	checked   IDSet
	secondary IDSet
	expanded  IDSet

	// searchExpanded holds ids that ApplyQuery added to expanded and the user
	// has not touched since. Only ClearRestore reads it.
	searchExpanded IDSet
	query          string
	allExpanded    bool

	clearPolicy ClearPolicy
	strict      bool
	onChange    func(ChangeEvent)
}

// New validates roots and seeds the sets from the nodes' default flags.
// It fails with *model.MalformedTreeError on duplicate ids, cycles, empty
// ids or nil children.
func New(roots []*model.Node, opts ...Option) (*Model, error) {
	idx, err := NewIndex(roots)
	if err != nil {
		return nil, err
	}
	m := &Model{
		id:             uuid.NewString(),
		idx:            idx,
		checked:        NewIDSet(),
		secondary:      NewIDSet(),
		expanded:       NewIDSet(),
		searchExpanded: NewIDSet(),
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, id := range idx.IDs() {
		n := idx.Node(id)
		if n.DefaultChecked {
			m.checked.Add(id)
		}
		if n.DefaultSecondaryChecked {
			m.secondary.Add(id)
		}
		if n.DefaultExpanded && !n.IsLeaf() {
			m.expanded.Add(id)
		}
	}
	debug.Log("checktree %s: %d nodes, %d checked, %d secondary, %d expanded (clear=%s strict=%v)",
		m.id, idx.Len(), m.checked.Len(), m.secondary.Len(), m.expanded.Len(), m.clearPolicy, m.strict)
	return m, nil
}

// ID identifies this model instance in logs and exports.
func (m *Model) ID() string { return m.id }

// Index exposes the underlying read-only tree index.
func (m *Model) Index() *Index { return m.idx }

func (m *Model) Roots() []*model.Node { return m.idx.Roots() }
func (m *Model) Len() int             { return m.idx.Len() }

// IDs returns every node id in pre-order.
func (m *Model) IDs() []string {
	out := make([]string, m.idx.Len())
	copy(out, m.idx.IDs())
	return out
}

// Node returns the node for id, or nil when it is not part of the tree.
func (m *Model) Node(id string) *model.Node { return m.idx.Node(id) }

// Lookup is like Node but reports unknown ids as *model.NodeNotFoundError.
func (m *Model) Lookup(id string) (*model.Node, error) {
	if n := m.idx.Node(id); n != nil {
		return n, nil
	}
	return nil, &model.NodeNotFoundError{ID: id}
}

func (m *Model) Parent(id string) (string, bool) { return m.idx.Parent(id) }
func (m *Model) Ancestors(id string) []string    { return m.idx.Ancestors(id) }
func (m *Model) Depth(id string) int             { return m.idx.Depth(id) }

// Status returns the derived primary status of id.
func (m *Model) Status(id string) model.Status {
	return Evaluate(m.idx, m.checked, id)
}

// SecondaryStatus returns the derived secondary status of id.
func (m *Model) SecondaryStatus(id string) model.Status {
	return Evaluate(m.idx, m.secondary, id)
}

// StatusOf returns the status of id in the given layer.
func (m *Model) StatusOf(layer model.Layer, id string) model.Status {
	return Evaluate(m.idx, m.set(layer), id)
}

// Toggle flips the primary checkbox of id. See ToggleLayer.
func (m *Model) Toggle(id string) (IDSet, error) {
	return m.ToggleLayer(model.LayerPrimary, id)
}

// ToggleSecondary flips the secondary checkbox of id. See ToggleLayer.
func (m *Model) ToggleSecondary(id string) (IDSet, error) {
	return m.ToggleLayer(model.LayerSecondary, id)
}

// ToggleLayer checks id and its whole subtree unless id is currently
// checked, in which case the subtree is unchecked. Ancestors are not written;
// their status follows from the new leaf membership. It returns a copy of
// the layer's set after the write.
func (m *Model) ToggleLayer(layer model.Layer, id string) (IDSet, error) {
	defer metrics.Timer(metrics.Toggle)()

	set := m.set(layer)
	if ok, err := m.known(id); !ok {
		return set.Clone(), err
	}
	target := Evaluate(m.idx, set, id) != model.StatusChecked
	sub := m.idx.Subtree(id)
	for _, sid := range sub {
		if target {
			set.Add(sid)
		} else {
			set.Remove(sid)
		}
	}
	metrics.NodesWritten.Add(int64(len(sub)))
	debug.Log("toggle %s %s -> %v (%d nodes)", layer, id, target, len(sub))

	op := OpToggle
	if layer == model.LayerSecondary {
		op = OpToggleSecondary
	}
	m.emit(op, id)
	return set.Clone(), nil
}

// Checked returns a copy of the primary set.
func (m *Model) Checked() IDSet { return m.checked.Clone() }

// SecondaryChecked returns a copy of the secondary set.
func (m *Model) SecondaryChecked() IDSet { return m.secondary.Clone() }

// Expanded returns a copy of the expanded set.
func (m *Model) Expanded() IDSet { return m.expanded.Clone() }

// SearchExpanded returns a copy of the ids the current query expanded that
// the user has not touched since.
func (m *Model) SearchExpanded() IDSet { return m.searchExpanded.Clone() }

// StatusMap returns id -> {checked, indeterminate} for the primary layer.
func (m *Model) StatusMap() map[string]model.CheckState {
	return stateMap(EvaluateAll(m.idx, m.checked))
}

// SecondaryStatusMap returns id -> {checked, indeterminate} for the
// secondary layer.
func (m *Model) SecondaryStatusMap() map[string]model.CheckState {
	return stateMap(EvaluateAll(m.idx, m.secondary))
}

// Restore replaces the three sets, typically with a persisted session.
// Ids that are no longer part of the tree are dropped. The query is kept.
func (m *Model) Restore(checked, secondary, expanded []string) {
	m.checked = m.filterKnown(checked, false)
	m.secondary = m.filterKnown(secondary, false)
	m.expanded = m.filterKnown(expanded, true)
	m.searchExpanded = NewIDSet()
	m.allExpanded = false
	debug.Log("restore: %d checked, %d secondary, %d expanded", m.checked.Len(), m.secondary.Len(), m.expanded.Len())
	m.emit(OpRestore, "")
}

func (m *Model) filterKnown(ids []string, interiorOnly bool) IDSet {
	out := NewIDSet()
	for _, id := range ids {
		n := m.idx.Node(id)
		if n == nil || (interiorOnly && n.IsLeaf()) {
			continue
		}
		out.Add(id)
	}
	return out
}

func (m *Model) set(layer model.Layer) IDSet {
	if layer == model.LayerSecondary {
		return m.secondary
	}
	return m.checked
}

// known reports whether id exists. For unknown ids it returns an error only
// in strict mode.
func (m *Model) known(id string) (bool, error) {
	if m.idx.Has(id) {
		return true, nil
	}
	debug.Log("unknown node id %q (strict=%v)", id, m.strict)
	if m.strict {
		return false, &model.NodeNotFoundError{ID: id}
	}
	return false, nil
}

func (m *Model) emit(op Op, id string) {
	if m.onChange == nil {
		return
	}
	m.onChange(ChangeEvent{
		Op:        op,
		NodeID:    id,
		Query:     m.query,
		Primary:   m.StatusMap(),
		Secondary: m.SecondaryStatusMap(),
	})
}

func stateMap(statuses map[string]model.Status) map[string]model.CheckState {
	out := make(map[string]model.CheckState, len(statuses))
	for id, s := range statuses {
		out[id] = s.State()
	}
	return out
}
