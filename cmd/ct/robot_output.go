package main

import (
	"io"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/checktree/pkg/checktree"
	"github.com/vanderheijden86/checktree/pkg/model"
)

type robotCounts struct {
	Checked       int `json:"checked"`
	Indeterminate int `json:"indeterminate"`
	Unchecked     int `json:"unchecked"`
}

type robotStatusOutput struct {
	GeneratedAt string                      `json:"generated_at"`
	ModelID     string                      `json:"model_id"`
	Source      string                      `json:"source"`
	NodeCount   int                         `json:"node_count"`
	Query       string                      `json:"query,omitempty"`
	Matches     []string                    `json:"matches,omitempty"`
	Expanded    []string                    `json:"expanded"`
	Primary     map[string]model.CheckState `json:"primary"`
	Secondary   map[string]model.CheckState `json:"secondary"`
	Counts      map[string]robotCounts      `json:"counts"`
}

func newRobotStatusOutput(tm *checktree.Model, source string) robotStatusOutput {
	primary := tm.StatusMap()
	secondary := tm.SecondaryStatusMap()
	return robotStatusOutput{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		ModelID:     tm.ID(),
		Source:      source,
		NodeCount:   tm.Len(),
		Query:       tm.Query(),
		Matches:     tm.Matches(),
		Expanded:    tm.Expanded().Sorted(),
		Primary:     primary,
		Secondary:   secondary,
		Counts: map[string]robotCounts{
			model.LayerPrimary.String():   countStates(primary),
			model.LayerSecondary.String(): countStates(secondary),
		},
	}
}

func countStates(states map[string]model.CheckState) robotCounts {
	var c robotCounts
	for _, st := range states {
		switch st.Status() {
		case model.StatusChecked:
			c.Checked++
		case model.StatusIndeterminate:
			c.Indeterminate++
		default:
			c.Unchecked++
		}
	}
	return c
}

func writeRobotStatusOutput(w io.Writer, out robotStatusOutput) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
