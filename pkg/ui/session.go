package ui

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/checktree/pkg/checktree"
	"github.com/vanderheijden86/checktree/pkg/loader"
)

// SessionState is the persisted checkbox and expansion state of one tree.
//
// File format (JSON):
//
//	{
//	  "version": 1,
//	  "checked": ["a", "b"],
//	  "secondary": [],
//	  "expanded": ["root"]
//	}
//
// Only sets are stored; statuses are re-derived on load. Ids no longer in
// the tree are dropped. A corrupted or missing file means defaults.
type SessionState struct {
	Version   int      `json:"version"`
	Checked   []string `json:"checked"`
	Secondary []string `json:"secondary"`
	Expanded  []string `json:"expanded"`
}

// SessionStateVersion is the current schema version.
const SessionStateVersion = 1

// SessionStatePath returns where the session for treePath is kept. Trees
// inside a .checktree directory keep their session next to them; any other
// tree gets a file under stateDir keyed by its absolute path.
func SessionStatePath(treePath, stateDir string) string {
	if treePath == "" {
		return ""
	}
	abs, err := filepath.Abs(treePath)
	if err != nil {
		abs = treePath
	}
	dir := filepath.Dir(abs)
	if filepath.Base(dir) == ".checktree" {
		return filepath.Join(dir, loader.SessionFileName)
	}
	if stateDir == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(stateDir, "sessions", hex.EncodeToString(sum[:8])+".json")
}

// CaptureSession snapshots the sets of m.
func CaptureSession(m *checktree.Model) *SessionState {
	return &SessionState{
		Version:   SessionStateVersion,
		Checked:   m.Checked().Sorted(),
		Secondary: m.SecondaryChecked().Sorted(),
		Expanded:  m.Expanded().Sorted(),
	}
}

// Apply restores the state into m.
func (s *SessionState) Apply(m *checktree.Model) {
	if s == nil {
		return
	}
	m.Restore(s.Checked, s.Secondary, s.Expanded)
}

// LoadSessionState reads a session file. Missing, corrupted or future
// version files return nil.
func LoadSessionState(path string) *SessionState {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		log.Printf("warning: invalid session file %s, using defaults: %v", path, err)
		return nil
	}
	if state.Version != SessionStateVersion {
		log.Printf("warning: session file %s has version %d, using defaults", path, state.Version)
		return nil
	}
	return &state
}

// SaveSessionState writes state to path. Errors are logged but do not
// interrupt the user.
func SaveSessionState(path string, state *SessionState) {
	if path == "" || state == nil {
		return
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		log.Printf("warning: failed to marshal session state: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("warning: failed to create state directory: %v", err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Printf("warning: failed to write session state to %s: %v", path, err)
	}
}
