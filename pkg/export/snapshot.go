// Package export writes point-in-time snapshots of a checkbox tree to JSON,
// SQLite and SVG.
package export

import (
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/vanderheijden86/checktree/pkg/checktree"
	"github.com/vanderheijden86/checktree/pkg/model"
)

// NodeRow is one node of a snapshot in pre-order.
type NodeRow struct {
	ID        string       `json:"id"`
	Label     string       `json:"label"`
	Parent    string       `json:"parent,omitempty"`
	Depth     int          `json:"depth"`
	Leaf      bool         `json:"leaf"`
	Expanded  bool         `json:"expanded,omitempty"`
	Matching  bool         `json:"matching,omitempty"`
	Primary   model.Status `json:"primary"`
	Secondary model.Status `json:"secondary"`
}

// Snapshot is the full derived state of a model at one instant.
type Snapshot struct {
	ID        string                      `json:"id"`
	ModelID   string                      `json:"model_id"`
	CreatedAt time.Time                   `json:"created_at"`
	Source    string                      `json:"source,omitempty"`
	Query     string                      `json:"query,omitempty"`
	Nodes     []NodeRow                   `json:"nodes"`
	Primary   map[string]model.CheckState `json:"primary"`
	Secondary map[string]model.CheckState `json:"secondary"`
}

// NewSnapshot captures the current state of m. source names where the tree
// came from and is informational only.
func NewSnapshot(m *checktree.Model, source string) *Snapshot {
	primary := m.StatusMap()
	secondary := m.SecondaryStatusMap()

	snap := &Snapshot{
		ID:        uuid.NewString(),
		ModelID:   m.ID(),
		CreatedAt: time.Now().UTC(),
		Source:    source,
		Query:     m.Query(),
		Nodes:     make([]NodeRow, 0, m.Len()),
		Primary:   primary,
		Secondary: secondary,
	}
	for _, id := range m.IDs() {
		n := m.Node(id)
		parent, _ := m.Parent(id)
		snap.Nodes = append(snap.Nodes, NodeRow{
			ID:        id,
			Label:     n.Label,
			Parent:    parent,
			Depth:     m.Depth(id),
			Leaf:      n.IsLeaf(),
			Expanded:  m.IsExpanded(id),
			Matching:  m.IsMatching(id),
			Primary:   primary[id].Status(),
			Secondary: secondary[id].Status(),
		})
	}
	return snap
}

// Counts returns how many nodes are checked, unchecked and indeterminate in
// the given layer.
func (s *Snapshot) Counts(layer model.Layer) (checked, unchecked, indeterminate int) {
	for _, row := range s.Nodes {
		st := row.Primary
		if layer == model.LayerSecondary {
			st = row.Secondary
		}
		switch st {
		case model.StatusChecked:
			checked++
		case model.StatusIndeterminate:
			indeterminate++
		default:
			unchecked++
		}
	}
	return checked, unchecked, indeterminate
}

// WriteJSON writes snap as indented JSON.
func WriteJSON(w io.Writer, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// ReadJSON decodes a snapshot written by WriteJSON.
func ReadJSON(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
