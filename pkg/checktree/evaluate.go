package checktree

import (
	"github.com/vanderheijden86/checktree/pkg/metrics"
	"github.com/vanderheijden86/checktree/pkg/model"
)

// Evaluate derives the status of id from set.
//
// A leaf is checked exactly when it is in set. An interior node is checked
// when every child is checked, unchecked when every child is unchecked, and
// indeterminate otherwise. Set membership of interior ids is ignored.
//
// The fold walks the subtree in post-order (the reverse of its pre-order
// range) so no recursion is involved. Unknown ids are unchecked.
func Evaluate(idx *Index, set IDSet, id string) model.Status {
	defer metrics.Timer(metrics.Evaluate)()

	sub := idx.Subtree(id)
	switch len(sub) {
	case 0:
		return model.StatusUnchecked
	case 1:
		if set.Has(id) {
			return model.StatusChecked
		}
		return model.StatusUnchecked
	}
	statuses := make(map[string]model.Status, len(sub))
	foldReverse(idx, set, sub, statuses)
	return statuses[id]
}

// EvaluateAll derives the status of every node in one pass.
func EvaluateAll(idx *Index, set IDSet) map[string]model.Status {
	defer metrics.Timer(metrics.Evaluate)()

	statuses := make(map[string]model.Status, idx.Len())
	foldReverse(idx, set, idx.IDs(), statuses)
	return statuses
}

// foldReverse fills statuses for every id in ids, which must be a pre-order
// run closed under descendants.
func foldReverse(idx *Index, set IDSet, ids []string, statuses map[string]model.Status) {
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		n := idx.Node(id)
		if n.IsLeaf() {
			if set.Has(id) {
				statuses[id] = model.StatusChecked
			} else {
				statuses[id] = model.StatusUnchecked
			}
			continue
		}
		statuses[id] = combine(n.Children, statuses)
	}
}

func combine(children []*model.Node, statuses map[string]model.Status) model.Status {
	var checked, unchecked bool
	for _, c := range children {
		switch statuses[c.ID] {
		case model.StatusChecked:
			checked = true
		case model.StatusUnchecked:
			unchecked = true
		default:
			return model.StatusIndeterminate
		}
		if checked && unchecked {
			return model.StatusIndeterminate
		}
	}
	if checked {
		return model.StatusChecked
	}
	return model.StatusUnchecked
}
