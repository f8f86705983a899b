package main_test

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type robotStatus struct {
	Source    string                     `json:"source"`
	NodeCount int                        `json:"node_count"`
	Query     string                     `json:"query"`
	Matches   []string                   `json:"matches"`
	Expanded  []string                   `json:"expanded"`
	Primary   map[string]map[string]bool `json:"primary"`
	Secondary map[string]map[string]bool `json:"secondary"`
}

func decodeStatus(t *testing.T, stdout string) robotStatus {
	t.Helper()
	var out robotStatus
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("robot output is not JSON: %v\n%s", err, stdout)
	}
	return out
}

func TestVersionAndHelp(t *testing.T) {
	dir := t.TempDir()

	stdout, _, code := runCt(t, dir, "--version")
	if code != 0 || !strings.HasPrefix(stdout, "ct ") {
		t.Errorf("--version: code=%d out=%q", code, stdout)
	}

	stdout, _, code = runCt(t, dir, "--help")
	if code != 0 || !strings.Contains(stdout, "Usage: ct") {
		t.Errorf("--help: code=%d out=%q", code, stdout)
	}
}

func TestRobotStatus_Discovery(t *testing.T) {
	dir := t.TempDir()
	treePath := writeScenario(t, dir)

	stdout, stderr, code := runCt(t, dir, "--robot-status", "--toggle", "D")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	out := decodeStatus(t, stdout)

	if out.NodeCount != 4 {
		t.Errorf("node_count = %d", out.NodeCount)
	}
	if got, _ := filepath.EvalSymlinks(out.Source); got != mustEval(t, treePath) {
		t.Errorf("source = %q, want %q", out.Source, treePath)
	}
	if !out.Primary["D"]["checked"] || !out.Primary["C"]["checked"] {
		t.Errorf("D and C should be checked: %v", out.Primary)
	}
	if !out.Primary["A"]["indeterminate"] || out.Primary["A"]["checked"] {
		t.Errorf("A should be indeterminate: %v", out.Primary["A"])
	}
	if out.Primary["B"]["checked"] || out.Primary["B"]["indeterminate"] {
		t.Errorf("B should be unchecked: %v", out.Primary["B"])
	}
}

func TestRobotStatus_ToggleTwiceAndSecondary(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir)

	stdout, stderr, code := runCt(t, dir, "--robot-status",
		"--toggle", "A", "--toggle", "C", "--toggle-secondary", "B")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	out := decodeStatus(t, stdout)

	if !out.Primary["B"]["checked"] || out.Primary["D"]["checked"] {
		t.Errorf("after A then C only B should stay checked: %v", out.Primary)
	}
	if !out.Primary["A"]["indeterminate"] {
		t.Errorf("A should be indeterminate: %v", out.Primary["A"])
	}
	if !out.Secondary["B"]["checked"] || !out.Secondary["A"]["indeterminate"] {
		t.Errorf("secondary layer: %v", out.Secondary)
	}
}

func TestRobotStatus_Query(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir)

	stdout, stderr, code := runCt(t, dir, "--robot-status", "--query", "MAIN")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	out := decodeStatus(t, stdout)

	if len(out.Matches) != 1 || out.Matches[0] != "D" {
		t.Errorf("matches = %v, want [D]", out.Matches)
	}
	if strings.Join(out.Expanded, ",") != "A,C" {
		t.Errorf("expanded = %v, want [A C]", out.Expanded)
	}
}

func TestDemoWithoutTTYPrintsStatus(t *testing.T) {
	stdout, stderr, code := runCt(t, t.TempDir(), "--demo")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	out := decodeStatus(t, stdout)
	if out.Source != "demo" || out.NodeCount == 0 {
		t.Errorf("demo status: source=%q nodes=%d", out.Source, out.NodeCount)
	}
}

func TestExitCodes(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"bad clear policy", []string{"--robot-status", "--clear-policy", "never"}, 2},
		{"demo and file", []string{"--demo", "--file", "x.json"}, 2},
		{"stray argument", []string{"--robot-status", "extra"}, 2},
		{"unknown flag", []string{"--nope"}, 2},
		{"strict unknown id", []string{"--robot-status", "--strict", "--toggle", "ghost"}, 1},
		{"lenient unknown id", []string{"--robot-status", "--toggle", "ghost"}, 0},
		{"missing file", []string{"--robot-status", "--file", "missing.json"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := runCt(t, dir, tt.args...)
			if code != tt.want {
				t.Errorf("exit = %d, want %d (stderr: %s)", code, tt.want, stderr)
			}
		})
	}
}

func TestCPUProfileCompleteInBatchMode(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"robot status", []string{"--robot-status"}, 0},
		{"export", []string{"--export-json", "snap.json"}, 0},
		{"failing lookup", []string{"--robot-status", "--strict", "--toggle", "ghost"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prof := filepath.Join(t.TempDir(), "cpu.pprof")
			args := append([]string{"--cpu-profile", prof}, tt.args...)
			_, stderr, code := runCt(t, dir, args...)
			if code != tt.want {
				t.Fatalf("exit = %d, want %d (stderr: %s)", code, tt.want, stderr)
			}

			f, err := os.Open(prof)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()
			zr, err := gzip.NewReader(f)
			if err != nil {
				t.Fatalf("profile is not gzip data: %v", err)
			}
			if _, err := io.ReadAll(zr); err != nil {
				t.Errorf("profile stream is truncated: %v", err)
			}
		})
	}
}

func TestMalformedTreeFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dup.json")
	dup := `[{"id": "x", "label": "one"}, {"id": "x", "label": "two"}]`
	if err := os.WriteFile(path, []byte(dup), 0o644); err != nil {
		t.Fatal(err)
	}

	_, stderr, code := runCt(t, dir, "--robot-status", "--file", path)
	if code != 1 {
		t.Errorf("exit = %d, want 1", code)
	}
	if !strings.Contains(stderr, "duplicate") {
		t.Errorf("stderr should explain the problem: %s", stderr)
	}
}

func TestExports(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir)
	out := filepath.Join(dir, "out")

	args := []string{
		"--toggle", "B",
		"--export-json", filepath.Join(out, "snap.json"),
		"--export-sqlite", filepath.Join(out, "snap.sqlite3"),
		"--export-svg", filepath.Join(out, "snap.svg"),
	}
	stdout, stderr, code := runCt(t, dir, args...)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if stdout != "" {
		t.Errorf("exports should not print status to stdout, got %q", stdout)
	}
	for _, name := range []string{"snap.json", "snap.sqlite3", "snap.svg"} {
		info, err := os.Stat(filepath.Join(out, name))
		if err != nil || info.Size() == 0 {
			t.Errorf("%s missing: %v", name, err)
		}
	}

	svg, err := os.ReadFile(filepath.Join(out, "snap.svg"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(svg), "<svg") || !strings.Contains(string(svg), "Readme") {
		t.Error("svg should render the tree labels")
	}

	// A second run appends to the same database.
	if _, stderr, code := runCt(t, dir, "--export-sqlite", filepath.Join(out, "snap.sqlite3")); code != 0 {
		t.Fatalf("second export exit %d: %s", code, stderr)
	}
}

func TestExportHooks(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir)
	hooksYAML := `hooks:
  pre-export:
    - name: gate
      command: test "$CT_EXPORT_FORMAT" = json
  post-export:
    - name: stamp
      command: echo "$CT_EXPORT_PATH" > hook.out
`
	if err := os.WriteFile(filepath.Join(dir, ".checktree", "hooks.yaml"), []byte(hooksYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	snap := filepath.Join(dir, "snap.json")
	if _, stderr, code := runCt(t, dir, "--export-json", snap); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	out, err := os.ReadFile(filepath.Join(dir, "hook.out"))
	if err != nil || strings.TrimSpace(string(out)) != snap {
		t.Errorf("post-export hook output = %q, %v", out, err)
	}

	svg := filepath.Join(dir, "snap.svg")
	_, stderr, code := runCt(t, dir, "--export-svg", svg)
	if code != 1 || !strings.Contains(stderr, "gate") {
		t.Errorf("pre-export gate should fail svg export: code=%d stderr=%s", code, stderr)
	}
	if _, err := os.Stat(svg); !os.IsNotExist(err) {
		t.Error("gated export must not be written")
	}

	if _, stderr, code := runCt(t, dir, "--no-hooks", "--export-svg", svg); code != 0 {
		t.Errorf("--no-hooks export failed: %s", stderr)
	}
}

func TestTUIAutoClose(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := scriptTUICommand(ctx)
	if cmd == nil {
		t.Skip("skipping: script command not available")
	}
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		"CT_TUI_AUTOCLOSE_MS=300",
		"XDG_CONFIG_HOME="+filepath.Join(dir, ".config"),
		"XDG_STATE_HOME="+filepath.Join(dir, ".state"),
	)

	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		t.Fatalf("TUI did not exit on its own: %s", out)
	}
	if err != nil {
		t.Skipf("skipping: pty harness failed: %v", err)
	}
	if !strings.Contains(string(out), "Project") {
		t.Errorf("TUI output should show the root label:\n%s", out)
	}
}

func mustEval(t *testing.T, path string) string {
	t.Helper()
	got, err := filepath.EvalSymlinks(path)
	if err != nil {
		t.Fatal(err)
	}
	return got
}
