package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vanderheijden86/checktree/pkg/model"
)

// StatusReader is the read side of a tri-state model.
type StatusReader interface {
	Status(id string) model.Status
}

// AssertStatus verifies the derived status of a node.
func AssertStatus(t *testing.T, m StatusReader, id string, want model.Status) {
	t.Helper()
	if got := m.Status(id); got != want {
		t.Errorf("status(%s): expected %v, got %v", id, want, got)
	}
}

// AssertIDs compares two id collections ignoring order.
func AssertIDs(t *testing.T, want, got []string) {
	t.Helper()
	if diff := cmp.Diff(sortedCopy(want), sortedCopy(got)); diff != "" {
		t.Errorf("id set mismatch (-want +got):\n%s", diff)
	}
}

// AssertUniform verifies that every id in ids has the given status.
func AssertUniform(t *testing.T, m StatusReader, ids []string, want model.Status) {
	t.Helper()
	for _, id := range ids {
		if got := m.Status(id); got != want {
			t.Errorf("status(%s): expected uniform %v, got %v", id, want, got)
		}
	}
}

// TempDir helpers

// TempTreeDir creates a temporary directory with a .checktree subdirectory
// and returns the repository path.
func TempTreeDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".checktree"), 0755); err != nil {
		t.Fatalf("failed to create .checktree dir: %v", err)
	}
	return dir
}

// WriteTreeFile writes roots to path. The format follows the extension:
// .jsonl gets flat records, anything else nested JSON.
func WriteTreeFile(t *testing.T, path string, roots []*model.Node) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	content := ToJSON(roots)
	if strings.HasSuffix(path, ".jsonl") {
		content = ToJSONL(roots)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write tree file: %v", err)
	}
	return path
}

// Leaves returns the ids of every leaf in pre-order.
func Leaves(roots []*model.Node) []string {
	var out []string
	model.Walk(roots, func(n, _ *model.Node, _ int) bool {
		if n.IsLeaf() {
			out = append(out, n.ID)
		}
		return true
	})
	return out
}

// IDs returns every id in pre-order.
func IDs(roots []*model.Node) []string {
	var out []string
	model.Walk(roots, func(n, _ *model.Node, _ int) bool {
		out = append(out, n.ID)
		return true
	})
	return out
}

func sortedCopy(ids []string) []string {
	out := append([]string{}, ids...)
	sort.Strings(out)
	return out
}
