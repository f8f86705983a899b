package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/vanderheijden86/checktree/pkg/config"
	"github.com/vanderheijden86/checktree/pkg/export"
	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/testutil"
)

func TestStringList(t *testing.T) {
	var s stringList
	for _, v := range []string{"a", "b, c", " ,d,"} {
		if err := s.Set(v); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff(stringList{"a", "b", "c", "d"}, s); diff != "" {
		t.Errorf("stringList mismatch (-want +got):\n%s", diff)
	}
	if got := s.String(); got != "a,b,c,d" {
		t.Errorf("String() = %q", got)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := config.DefaultConfig()
	if err := applyFlagOverrides(&cfg, true, "RESET"); err != nil {
		t.Fatalf("applyFlagOverrides: %v", err)
	}
	if !cfg.Tree.StrictLookup {
		t.Error("--strict should enable strict lookup")
	}
	if cfg.Search.ClearPolicy != "reset" {
		t.Errorf("clear policy = %q, want reset", cfg.Search.ClearPolicy)
	}

	cfg = config.DefaultConfig()
	if err := applyFlagOverrides(&cfg, false, "sometimes"); err == nil {
		t.Error("unknown clear policy should be rejected")
	}
	if cfg.Search.ClearPolicy != "keep" {
		t.Errorf("a rejected override must not change the config, got %q", cfg.Search.ClearPolicy)
	}
}

func TestLoadRoots(t *testing.T) {
	t.Run("demo", func(t *testing.T) {
		roots, source, err := loadRoots("", true, config.DefaultConfig())
		if err != nil {
			t.Fatal(err)
		}
		if source != "demo" || model.Count(roots) == 0 {
			t.Errorf("demo: source=%q nodes=%d", source, model.Count(roots))
		}
	})

	t.Run("explicit file", func(t *testing.T) {
		path := testutil.WriteTreeFile(t, filepath.Join(t.TempDir(), "tree.json"), testutil.Scenario())
		roots, source, err := loadRoots(path, false, config.DefaultConfig())
		if err != nil {
			t.Fatal(err)
		}
		if source != path || model.Count(roots) != 4 {
			t.Errorf("file: source=%q nodes=%d", source, model.Count(roots))
		}
	})

	t.Run("configured default", func(t *testing.T) {
		path := testutil.WriteTreeFile(t, filepath.Join(t.TempDir(), "tree.jsonl"), testutil.Scenario())
		cfg := config.DefaultConfig()
		cfg.Tree.DefaultPath = path
		_, source, err := loadRoots("", false, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if source != path {
			t.Errorf("source = %q, want %q", source, path)
		}
	})

	t.Run("discovery", func(t *testing.T) {
		dir := t.TempDir()
		testutil.WriteTreeFile(t, filepath.Join(dir, "tree.json"), testutil.Scenario())
		t.Setenv("CHECKTREE_DIR", dir)

		_, source, err := loadRoots("", false, config.DefaultConfig())
		if err != nil {
			t.Fatal(err)
		}
		if source != filepath.Join(dir, "tree.json") {
			t.Errorf("source = %q", source)
		}
	})

	t.Run("nothing found", func(t *testing.T) {
		t.Setenv("CHECKTREE_DIR", t.TempDir())
		if _, _, err := loadRoots("", false, config.DefaultConfig()); err == nil {
			t.Error("expected an error when no tree exists")
		}
	})
}

func TestBuildModel(t *testing.T) {
	tm, err := buildModel(testutil.Scenario(), config.DefaultConfig(), []string{"C", "ghost"}, []string{"B"}, "d")
	if err != nil {
		t.Fatalf("buildModel: %v", err)
	}
	testutil.AssertStatus(t, tm, "D", model.StatusChecked)
	testutil.AssertStatus(t, tm, "A", model.StatusIndeterminate)
	if got := tm.SecondaryStatus("B"); got != model.StatusChecked {
		t.Errorf("secondary B = %v", got)
	}
	if got := tm.Query(); got != "d" {
		t.Errorf("query = %q", got)
	}
	if !tm.IsExpanded("C") {
		t.Error("query should expand the ancestors of D")
	}
}

func TestBuildModel_StrictUnknownID(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Tree.StrictLookup = true

	_, err := buildModel(testutil.Scenario(), cfg, []string{"ghost"}, nil, "")
	if !errors.Is(err, model.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "--toggle") {
		t.Errorf("error should name the flag: %v", err)
	}
}

func TestBuildModel_Malformed(t *testing.T) {
	roots := []*model.Node{model.Leaf("x", "X"), model.Leaf("x", "X again")}
	_, err := buildModel(roots, config.DefaultConfig(), nil, nil, "")
	var malformed *model.MalformedTreeError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedTreeError, got %v", err)
	}
}

func TestRobotStatusOutput(t *testing.T) {
	tm, err := buildModel(testutil.Scenario(), config.DefaultConfig(), []string{"D"}, nil, "D")
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := writeRobotStatusOutput(&buf, newRobotStatusOutput(tm, "tree.json")); err != nil {
		t.Fatal(err)
	}

	var got robotStatusOutput
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if got.Source != "tree.json" || got.NodeCount != 4 || got.ModelID == "" {
		t.Errorf("header fields: %+v", got)
	}
	if diff := cmp.Diff([]string{"D"}, got.Matches); diff != "" {
		t.Errorf("matches (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(model.CheckState{Indeterminate: true}, got.Primary["A"]); diff != "" {
		t.Errorf("A state (-want +got):\n%s", diff)
	}
	want := map[string]robotCounts{
		"primary":   {Checked: 2, Indeterminate: 1, Unchecked: 1},
		"secondary": {Unchecked: 4},
	}
	if diff := cmp.Diff(want, got.Counts); diff != "" {
		t.Errorf("counts (-want +got):\n%s", diff)
	}
}

func TestExportJobs(t *testing.T) {
	t.Setenv("CHECKTREE_DIR", "")
	tm, err := buildModel(testutil.Scenario(), config.DefaultConfig(), []string{"B"}, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	snap := export.NewSnapshot(tm, "test")
	dir := t.TempDir()
	targets := exportTargets{
		JSON:   filepath.Join(dir, "out", "snap.json"),
		SQLite: filepath.Join(dir, "out", "snap.sqlite3"),
		SVG:    filepath.Join(dir, "out", "snap.svg"),
	}
	if !targets.any() {
		t.Fatal("targets should report work")
	}

	jobs := targets.jobs(export.SVGOptions{Title: "t"})
	if len(jobs) != 3 || jobs[0].Format != export.FormatJSON || jobs[2].SVG.Title != "t" {
		t.Fatalf("jobs = %+v", jobs)
	}
	for _, job := range jobs {
		if err := runExportJob(job, snap, dir, false); err != nil {
			t.Fatalf("%s: %v", job.Format, err)
		}
	}
	for _, path := range []string{targets.JSON, targets.SQLite, targets.SVG} {
		if info, err := os.Stat(path); err != nil || info.Size() == 0 {
			t.Errorf("%s not written: %v", path, err)
		}
	}

	f, err := os.Open(targets.JSON)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	back, err := export.ReadJSON(f)
	if err != nil {
		t.Fatal(err)
	}
	if back.ID != snap.ID {
		t.Errorf("snapshot id = %q, want %q", back.ID, snap.ID)
	}
}

func TestWizardJobs(t *testing.T) {
	wcfg := &export.WizardConfig{
		Formats:     []string{export.FormatSVG, export.FormatJSON},
		OutputDir:   "out",
		BaseName:    "tree",
		VisibleOnly: true,
	}
	jobs := wizardJobs(wcfg, export.SVGOptions{})
	want := []exportJob{
		{Format: export.FormatJSON, Path: filepath.Join("out", "tree.json"), SVG: export.SVGOptions{VisibleOnly: true}},
		{Format: export.FormatSVG, Path: filepath.Join("out", "tree.svg"), SVG: export.SVGOptions{VisibleOnly: true}},
	}
	if diff := cmp.Diff(want, jobs); diff != "" {
		t.Errorf("jobs (-want +got):\n%s", diff)
	}
}

func writeHooks(t *testing.T, dir, content string) {
	t.Helper()
	treeDir := filepath.Join(dir, ".checktree")
	if err := os.MkdirAll(treeDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(treeDir, "hooks.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunExportJob_Hooks(t *testing.T) {
	t.Setenv("CHECKTREE_DIR", "")
	tm, err := buildModel(testutil.Scenario(), config.DefaultConfig(), []string{"C"}, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	snap := export.NewSnapshot(tm, "test")
	dir := t.TempDir()
	logPath := filepath.Join(dir, "hook.log")
	writeHooks(t, dir, `
hooks:
  post-export:
    - name: log
      command: echo "$CT_EXPORT_FORMAT $CT_NODE_COUNT $CT_CHECKED_COUNT" > "$HOOK_LOG"
      env:
        HOOK_LOG: `+logPath+`
`)

	job := exportJob{Format: export.FormatJSON, Path: filepath.Join(dir, "snap.json")}
	if err := runExportJob(job, snap, dir, false); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("post-export hook did not run: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != "json 4 2" {
		t.Errorf("hook saw %q, want %q", got, "json 4 2")
	}

	if err := os.Remove(logPath); err != nil {
		t.Fatal(err)
	}
	if err := runExportJob(job, snap, dir, true); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(logPath); !os.IsNotExist(err) {
		t.Error("--no-hooks should skip hooks")
	}
}

func TestRunExportJob_PreExportCancels(t *testing.T) {
	t.Setenv("CHECKTREE_DIR", "")
	tm, err := buildModel(testutil.Scenario(), config.DefaultConfig(), nil, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	writeHooks(t, dir, "hooks:\n  pre-export:\n    - name: gate\n      command: exit 1\n")

	job := exportJob{Format: export.FormatJSON, Path: filepath.Join(dir, "snap.json")}
	err = runExportJob(job, export.NewSnapshot(tm, "test"), dir, false)
	if err == nil || !strings.Contains(err.Error(), "cancelled") {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if _, err := os.Stat(job.Path); !os.IsNotExist(err) {
		t.Error("cancelled export must not write the file")
	}
}

func TestExportTargetsEmpty(t *testing.T) {
	if (exportTargets{}).any() {
		t.Error("empty targets should not report work")
	}
}

func TestAutoCloseDelay(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"250", 250 * time.Millisecond},
		{"0", 0},
		{"-5", 0},
		{"soon", 0},
	}
	for _, tt := range tests {
		if got := autoCloseDelay(tt.in); got != tt.want {
			t.Errorf("autoCloseDelay(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
