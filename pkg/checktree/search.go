package checktree

import (
	"strings"

	"github.com/vanderheijden86/checktree/pkg/debug"
	"github.com/vanderheijden86/checktree/pkg/metrics"
	"github.com/vanderheijden86/checktree/pkg/model"
)

// ApplyQuery sets the search query and expands every ancestor of a matching
// node. Expansions are only ever added for a non-empty query; an empty query
// matches nothing and applies the clear policy instead. It returns a copy of
// the expanded set.
func (m *Model) ApplyQuery(query string) IDSet {
	defer metrics.Timer(metrics.Search)()

	m.query = query
	if query == "" {
		m.clearSearch()
		m.emit(OpQuery, "")
		return m.expanded.Clone()
	}

	matches := m.Matches()
	added := 0
	for _, id := range matches {
		for _, anc := range m.idx.Ancestors(id) {
			if m.expanded.Has(anc) {
				continue
			}
			m.expanded.Add(anc)
			m.searchExpanded.Add(anc)
			added++
		}
	}
	metrics.QueryMatches.Add(int64(len(matches)))
	debug.Log("query %q: %d matches, %d nodes expanded", query, len(matches), added)
	m.emit(OpQuery, "")
	return m.expanded.Clone()
}

func (m *Model) clearSearch() {
	switch m.clearPolicy {
	case ClearRestore:
		for id := range m.searchExpanded {
			m.expanded.Remove(id)
		}
		if len(m.searchExpanded) > 0 {
			m.allExpanded = false
		}
	case ClearReset:
		m.expanded = NewIDSet()
		m.allExpanded = false
	}
	debug.Log("query cleared (policy=%s, %d search expansions)", m.clearPolicy, m.searchExpanded.Len())
	m.searchExpanded = NewIDSet()
}

// Query returns the current search query.
func (m *Model) Query() string {
	return m.query
}

// IsMatching reports whether the label of id contains the current query,
// ignoring case. It is false for an empty query and for unknown ids.
func (m *Model) IsMatching(id string) bool {
	n := m.idx.Node(id)
	if n == nil {
		return false
	}
	return labelMatches(n, m.query)
}

// Matches returns the matching ids in pre-order.
func (m *Model) Matches() []string {
	if m.query == "" {
		return nil
	}
	needle := strings.ToLower(m.query)
	var out []string
	for _, id := range m.idx.IDs() {
		if strings.Contains(strings.ToLower(m.idx.Node(id).Label), needle) {
			out = append(out, id)
		}
	}
	return out
}

// HasMatchInSubtree reports whether id or any of its descendants matches.
func (m *Model) HasMatchInSubtree(id string) bool {
	if m.query == "" {
		return false
	}
	for _, sid := range m.idx.Subtree(id) {
		if labelMatches(m.idx.Node(sid), m.query) {
			return true
		}
	}
	return false
}

func labelMatches(n *model.Node, query string) bool {
	if query == "" {
		return false
	}
	return strings.Contains(strings.ToLower(n.Label), strings.ToLower(query))
}
