package ui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/checktree/pkg/checktree"
	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/testutil"
)

func TestSessionStatePath(t *testing.T) {
	repo := testutil.TempTreeDir(t)
	inRepo := filepath.Join(repo, ".checktree", "tree.json")
	if got, want := SessionStatePath(inRepo, "/state"), filepath.Join(repo, ".checktree", "state.json"); got != want {
		t.Errorf("tree in .checktree: got %q, want %q", got, want)
	}

	stateDir := t.TempDir()
	loose := filepath.Join(t.TempDir(), "tree.yaml")
	got := SessionStatePath(loose, stateDir)
	if filepath.Dir(got) != filepath.Join(stateDir, "sessions") || !strings.HasSuffix(got, ".json") {
		t.Errorf("loose tree: unexpected path %q", got)
	}
	if again := SessionStatePath(loose, stateDir); again != got {
		t.Errorf("path should be stable, got %q then %q", got, again)
	}
	other := filepath.Join(t.TempDir(), "tree.yaml")
	if SessionStatePath(other, stateDir) == got {
		t.Error("different trees should not share a session file")
	}

	if got := SessionStatePath("", stateDir); got != "" {
		t.Errorf("empty tree path: got %q", got)
	}
	if got := SessionStatePath(loose, ""); got != "" {
		t.Errorf("no state dir: got %q", got)
	}
}

func TestSessionState_SaveApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	src, err := checktree.New(testutil.Scenario())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.Toggle("D"); err != nil {
		t.Fatal(err)
	}
	if _, err := src.ToggleSecondary("B"); err != nil {
		t.Fatal(err)
	}
	if err := src.SetExpanded("A", true); err != nil {
		t.Fatal(err)
	}
	SaveSessionState(path, CaptureSession(src))

	state := LoadSessionState(path)
	if state == nil {
		t.Fatal("LoadSessionState returned nil")
	}
	// Ids that are gone from the tree are dropped on apply.
	state.Checked = append(state.Checked, "ghost")

	dst, err := checktree.New(testutil.Scenario())
	if err != nil {
		t.Fatal(err)
	}
	state.Apply(dst)

	testutil.AssertIDs(t, []string{"D"}, dst.Checked().Sorted())
	testutil.AssertStatus(t, dst, "C", model.StatusChecked)
	testutil.AssertIDs(t, []string{"B"}, dst.SecondaryChecked().Sorted())
	testutil.AssertIDs(t, []string{"A"}, dst.Expanded().Sorted())
}

func TestLoadSessionState_Invalid(t *testing.T) {
	dir := t.TempDir()

	if LoadSessionState(filepath.Join(dir, "missing.json")) != nil {
		t.Error("missing file should return nil")
	}
	if LoadSessionState("") != nil {
		t.Error("empty path should return nil")
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if LoadSessionState(corrupt) != nil {
		t.Error("corrupted file should return nil")
	}

	future := filepath.Join(dir, "future.json")
	if err := os.WriteFile(future, []byte(`{"version": 99, "checked": ["A"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if LoadSessionState(future) != nil {
		t.Error("unknown version should return nil")
	}
}

func TestSessionState_ApplyNil(t *testing.T) {
	m, err := checktree.New(testutil.Scenario())
	if err != nil {
		t.Fatal(err)
	}
	var s *SessionState
	s.Apply(m)
	if m.Checked().Len() != 0 {
		t.Error("nil state should leave the model alone")
	}
}
