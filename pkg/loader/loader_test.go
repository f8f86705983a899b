package loader_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/vanderheijden86/checktree/pkg/loader"
	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/testutil"
)

// =============================================================================
// Discovery Tests
// =============================================================================

func TestGetTreeDir_Default(t *testing.T) {
	t.Setenv(loader.TreeDirEnvVar, "")
	dir, err := loader.GetTreeDir("/repo")
	if err != nil {
		t.Fatal(err)
	}
	if dir != filepath.Join("/repo", ".checktree") {
		t.Errorf("expected /repo/.checktree, got %s", dir)
	}
}

func TestGetTreeDir_EnvOverride(t *testing.T) {
	t.Setenv(loader.TreeDirEnvVar, "/custom/trees")
	dir, err := loader.GetTreeDir("/repo")
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/custom/trees" {
		t.Errorf("expected env override, got %s", dir)
	}
}

func TestFindTreePath_NonExistentDirectory(t *testing.T) {
	_, err := loader.FindTreePath("/nonexistent/path/to/trees")
	if err == nil {
		t.Fatal("expected error for non-existent directory")
	}
	if !strings.Contains(err.Error(), "failed to read tree directory") {
		t.Errorf("expected 'failed to read tree directory' error, got: %v", err)
	}
}

func TestFindTreePath_EmptyDirectory(t *testing.T) {
	_, err := loader.FindTreePath(t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "no tree file found") {
		t.Errorf("expected 'no tree file found' error, got: %v", err)
	}
}

func TestFindTreePath_Preference(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{"id":"o"}`), 0644)
	os.WriteFile(filepath.Join(dir, "tree.jsonl"), []byte(`{"id":"l"}`), 0644)
	os.WriteFile(filepath.Join(dir, "tree.yaml"), []byte(`id: y`), 0644)
	os.WriteFile(filepath.Join(dir, "state.json"), []byte(`{"version":1}`), 0644)

	path, err := loader.FindTreePath(dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "tree.yaml" {
		t.Errorf("expected tree.yaml to win, got %s", path)
	}
}

func TestFindTreePath_SkipsEmptyPreferred(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "tree.json"), nil, 0644)
	os.WriteFile(filepath.Join(dir, "mine.yml"), []byte(`id: m`), 0644)

	path, err := loader.FindTreePath(dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "mine.yml" {
		t.Errorf("expected non-empty mine.yml, got %s", path)
	}
}

func TestFindTreePath_WarnsAboutBackups(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "tree.json"), []byte(`{"id":"a"}`), 0644)
	os.WriteFile(filepath.Join(dir, "tree.backup.json"), []byte(`{"id":"b"}`), 0644)

	var warnings []string
	if _, err := loader.FindTreePathWithWarnings(dir, func(msg string) {
		warnings = append(warnings, msg)
	}); err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "tree.backup.json") {
		t.Errorf("expected a backup warning, got %v", warnings)
	}
}

func TestLoadTree(t *testing.T) {
	repo := testutil.TempTreeDir(t)
	t.Setenv(loader.TreeDirEnvVar, "")
	testutil.WriteTreeFile(t, filepath.Join(repo, ".checktree", "tree.json"), testutil.Scenario())

	roots, err := loader.LoadTree(repo)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertIDs(t, []string{"A", "B", "C", "D"}, testutil.IDs(roots))
}

// =============================================================================
// Format Tests
// =============================================================================

func TestFormatFromPath(t *testing.T) {
	tests := map[string]loader.Format{
		"t.json":    loader.FormatJSON,
		"T.YAML":    loader.FormatYAML,
		"t.yml":     loader.FormatYAML,
		"t.jsonl":   loader.FormatJSONL,
		"t.ndjson":  loader.FormatJSONL,
		"t.txt":     loader.FormatUnknown,
		"no_suffix": loader.FormatUnknown,
	}
	for path, want := range tests {
		if got := loader.FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%s) = %v, want %v", path, got, want)
		}
	}
}

func TestParseJSONShapes(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{"single root", `{"id":"a","label":"A","children":[{"id":"b","label":"B"}]}`, []string{"a", "b"}},
		{"array", `[{"id":"a"},{"id":"b","children":[{"id":"c"}]}]`, []string{"a", "b", "c"}},
		{"nodes wrapper", `{"nodes":[{"id":"x"},{"id":"y"}]}`, []string{"x", "y"}},
		{"bom", "\xef\xbb\xbf" + `{"id":"a"}`, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roots, err := loader.Parse(strings.NewReader(tt.doc), loader.FormatJSON, loader.ParseOptions{})
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, testutil.IDs(roots)); diff != "" {
				t.Errorf("ids (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseJSONDefaults(t *testing.T) {
	doc := `{"id":"a","label":"A","defaultExpanded":true,"children":[
		{"id":"b","label":"B","defaultChecked":true},
		{"id":"c","label":"C","defaultSecondaryChecked":true}]}`
	roots, err := loader.Parse(strings.NewReader(doc), loader.FormatJSON, loader.ParseOptions{})
	if err != nil {
		t.Fatal(err)
	}
	a := roots[0]
	if !a.DefaultExpanded || !a.Children[0].DefaultChecked || !a.Children[1].DefaultSecondaryChecked {
		t.Errorf("default flags not decoded: %+v", a)
	}
}

func TestParseYAMLShapes(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{"single root", "id: a\nlabel: A\nchildren:\n  - id: b\n    label: B\n", []string{"a", "b"}},
		{"sequence", "- id: a\n- id: b\n  children:\n    - id: c\n", []string{"a", "b", "c"}},
		{"nodes wrapper", "nodes:\n  - id: x\n  - id: y\n", []string{"x", "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roots, err := loader.Parse(strings.NewReader(tt.doc), loader.FormatYAML, loader.ParseOptions{})
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, testutil.IDs(roots)); diff != "" {
				t.Errorf("ids (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRejectsMalformedNestedTrees(t *testing.T) {
	_, err := loader.Parse(strings.NewReader(`[{"id":"a"},{"id":"a"}]`), loader.FormatJSON, loader.ParseOptions{})
	if !errors.Is(err, model.ErrDuplicateID) {
		t.Errorf("expected duplicate id error, got %v", err)
	}
	_, err = loader.Parse(strings.NewReader("- id: a\n  children:\n    - id: a\n"), loader.FormatYAML, loader.ParseOptions{})
	if !errors.Is(err, model.ErrDuplicateID) {
		t.Errorf("expected duplicate id error from YAML, got %v", err)
	}
	_, err = loader.Parse(strings.NewReader(""), loader.FormatJSON, loader.ParseOptions{})
	if err == nil {
		t.Error("expected error for empty JSON document")
	}
	_, err = loader.Parse(strings.NewReader("42"), loader.FormatYAML, loader.ParseOptions{})
	if err == nil {
		t.Error("expected error for scalar YAML document")
	}
}

// =============================================================================
// Flat Record Tests
// =============================================================================

func TestParseFlatBuildsTree(t *testing.T) {
	content := testutil.ToJSONL(testutil.Scenario())
	roots, err := loader.Parse(strings.NewReader(content), loader.FormatJSONL, loader.ParseOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(testutil.Scenario(), roots, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip through JSONL changed the tree (-want +got):\n%s", diff)
	}
}

func TestParseFlatChildBeforeParent(t *testing.T) {
	content := `{"id":"c","label":"C","parent":"p"}
{"id":"p","label":"P"}
{"id":"d","label":"D","parent":"p"}
`
	roots, err := loader.Parse(strings.NewReader(content), loader.FormatJSONL, loader.ParseOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 1 || roots[0].ID != "p" {
		t.Fatalf("expected single root p, got %v", testutil.IDs(roots))
	}
	if diff := cmp.Diff([]string{"p", "c", "d"}, testutil.IDs(roots)); diff != "" {
		t.Errorf("children should keep record order (-want +got):\n%s", diff)
	}
}

func TestParseFlatSkipsBadLines(t *testing.T) {
	content := `{"id":"a","label":"A"}
{INVALID JSON}
{"label":"no id"}

{"id":"b","label":"B","parent":"a"}
`
	var warnings []string
	roots, err := loader.Parse(strings.NewReader(content), loader.FormatJSONL, loader.ParseOptions{
		WarningHandler: func(msg string) { warnings = append(warnings, msg) },
	})
	if err != nil {
		t.Fatalf("expected success even with bad lines, got %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, testutil.IDs(roots)); diff != "" {
		t.Errorf("ids (-want +got):\n%s", diff)
	}
	if len(warnings) != 2 {
		t.Errorf("expected 2 warnings, got %d: %v", len(warnings), warnings)
	}
}

func TestParseFlatLongLine(t *testing.T) {
	content := `{"id":"a","label":"` + strings.Repeat("x", 200) + `"}
{"id":"b","label":"B"}
`
	var warnings []string
	roots, err := loader.Parse(strings.NewReader(content), loader.FormatJSONL, loader.ParseOptions{
		BufferSize:     64,
		WarningHandler: func(msg string) { warnings = append(warnings, msg) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"b"}, testutil.IDs(roots)); diff != "" {
		t.Errorf("ids (-want +got):\n%s", diff)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "too long") {
		t.Errorf("expected a line-too-long warning, got %v", warnings)
	}
}

func TestAssembleOrphanBecomesRoot(t *testing.T) {
	var warnings []string
	roots, err := loader.Assemble([]loader.Record{
		{ID: "a", Label: "A"},
		{ID: "x", Label: "X", Parent: "ghost"},
	}, func(msg string) { warnings = append(warnings, msg) })
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "x"}, testutil.IDs(roots)); diff != "" {
		t.Errorf("ids (-want +got):\n%s", diff)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "ghost") {
		t.Errorf("expected orphan warning, got %v", warnings)
	}
}

func TestAssembleDetectsCycles(t *testing.T) {
	tests := []struct {
		name    string
		records []loader.Record
		path    []string
	}{
		{"self parent", []loader.Record{{ID: "a", Parent: "a"}}, []string{"a", "a"}},
		{"two node loop", []loader.Record{{ID: "r"}, {ID: "a", Parent: "b"}, {ID: "b", Parent: "a"}}, []string{"a", "b"}},
		{"three node loop", []loader.Record{{ID: "c", Parent: "b"}, {ID: "a", Parent: "c"}, {ID: "b", Parent: "a"}}, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Assemble(tt.records, func(string) {})
			var mte *model.MalformedTreeError
			if !errors.As(err, &mte) || !errors.Is(err, model.ErrCycle) {
				t.Fatalf("expected cycle error, got %v", err)
			}
			if diff := cmp.Diff(tt.path, mte.Path); diff != "" {
				t.Errorf("cycle members (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAssembleDuplicate(t *testing.T) {
	_, err := loader.Assemble([]loader.Record{{ID: "a"}, {ID: "a"}}, nil)
	if !errors.Is(err, model.ErrDuplicateID) {
		t.Errorf("expected duplicate id error, got %v", err)
	}
}

// =============================================================================
// File Tests
// =============================================================================

func TestLoadFileFormats(t *testing.T) {
	dir := t.TempDir()
	roots := testutil.QuickBalanced(3, 3)
	for _, name := range []string{"t.json", "t.jsonl"} {
		path := testutil.WriteTreeFile(t, filepath.Join(dir, name), roots)
		got, err := loader.LoadFile(path)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if model.Count(got) != 13 {
			t.Errorf("%s: expected 13 nodes, got %d", name, model.Count(got))
		}
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := loader.LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil ||
		!strings.Contains(err.Error(), "no tree found") {
		t.Errorf("expected missing file error, got %v", err)
	}
	if _, err := loader.LoadFile("tree.txt"); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected unsupported format error, got %v", err)
	}
}

func TestLoadFilesConcatenatesInOrder(t *testing.T) {
	dir := t.TempDir()
	first := testutil.WriteTreeFile(t, filepath.Join(dir, "a.json"), testutil.New(testutil.GeneratorConfig{IDPrefix: "a"}).Wide(2))
	second := testutil.WriteTreeFile(t, filepath.Join(dir, "b.jsonl"), testutil.New(testutil.GeneratorConfig{IDPrefix: "b"}).Wide(1))

	roots, err := loader.LoadFiles(context.Background(), []string{second, first})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"b0", "b1", "a0", "a1", "a2"}, testutil.IDs(roots)); diff != "" {
		t.Errorf("ids (-want +got):\n%s", diff)
	}
}

func TestLoadFilesReportsFailures(t *testing.T) {
	dir := t.TempDir()
	good := testutil.WriteTreeFile(t, filepath.Join(dir, "a.json"), testutil.Scenario())
	if _, err := loader.LoadFiles(context.Background(), []string{good, filepath.Join(dir, "nope.json")}); err == nil {
		t.Error("expected error for missing file")
	}
	// The same tree twice collides on every id.
	if _, err := loader.LoadFiles(context.Background(), []string{good, good}); !errors.Is(err, model.ErrDuplicateID) {
		t.Errorf("expected duplicate id across files, got %v", err)
	}
}

func TestSampleIsValid(t *testing.T) {
	roots := loader.Sample()
	if err := model.Validate(roots); err != nil {
		t.Fatalf("sample tree invalid: %v", err)
	}
	if got := model.Count(roots); got != 20 {
		t.Errorf("expected 20 sample nodes, got %d", got)
	}
}
