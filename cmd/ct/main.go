package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/vanderheijden86/checktree/pkg/checktree"
	"github.com/vanderheijden86/checktree/pkg/config"
	"github.com/vanderheijden86/checktree/pkg/debug"
	"github.com/vanderheijden86/checktree/pkg/export"
	"github.com/vanderheijden86/checktree/pkg/hooks"
	"github.com/vanderheijden86/checktree/pkg/loader"
	"github.com/vanderheijden86/checktree/pkg/metrics"
	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/ui"
	"github.com/vanderheijden86/checktree/pkg/version"
	"github.com/vanderheijden86/checktree/pkg/watcher"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

func main() {
	os.Exit(run())
}

// run is main without os.Exit, so deferred cleanup such as stopping the CPU
// profile happens before the process exits.
func run() int {
	var toggles, secondaryToggles stringList

	cpuProfile := flag.String("cpu-profile", "", "Write CPU profile to file")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	fileFlag := flag.String("file", "", "Tree file (.json, .yaml, .yml, .jsonl); defaults to .checktree/ discovery")
	demo := flag.Bool("demo", false, "Use the built-in sample tree")
	query := flag.String("query", "", "Apply a search query before showing or exporting")
	flag.Var(&toggles, "toggle", "Toggle a node's primary checkbox (repeatable, comma separated)")
	flag.Var(&secondaryToggles, "toggle-secondary", "Toggle a node's secondary checkbox (repeatable, comma separated)")
	strict := flag.Bool("strict", false, "Treat unknown node ids as errors")
	clearPolicy := flag.String("clear-policy", "", "Expansion handling when a query is cleared: keep, restore or reset")
	robotStatus := flag.Bool("robot-status", false, "Print the status maps as JSON and exit")
	exportJSON := flag.String("export-json", "", "Write a JSON snapshot to file")
	exportSQLite := flag.String("export-sqlite", "", "Append a snapshot to a SQLite database")
	exportSVG := flag.String("export-svg", "", "Render the tree to an SVG file")
	exportWizard := flag.Bool("export-wizard", false, "Choose export formats interactively")
	noHooks := flag.Bool("no-hooks", false, "Skip export hooks from .checktree/hooks.yaml")
	flag.Parse()

	// CPU profiling support
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			return exitError
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			return exitError
		}
		defer pprof.StopCPUProfile()
	}

	if *help {
		fmt.Println("Usage: ct [options]")
		fmt.Println("\nBrowse and check a tree of items with tri-state checkboxes.")
		flag.PrintDefaults()
		return exitOK
	}

	if *versionFlag {
		fmt.Printf("ct %s\n", version.Version)
		return exitOK
	}

	if flag.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "Error: unexpected arguments: %s\n", strings.Join(flag.Args(), " "))
		return exitUsage
	}
	if *demo && *fileFlag != "" {
		fmt.Fprintln(os.Stderr, "Error: --demo and --file are mutually exclusive")
		return exitUsage
	}

	appCfg, cfgErr := config.Load()
	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "warning: %v (using defaults)\n", cfgErr)
		appCfg = config.DefaultConfig()
	}
	if err := applyFlagOverrides(&appCfg, *strict, *clearPolicy); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	roots, source, err := loadRoots(*fileFlag, *demo, appCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading tree: %v\n", err)
		fmt.Fprintln(os.Stderr, "Pass --file tree.json, create .checktree/tree.json, or run with --demo.")
		return exitError
	}

	exports := exportTargets{JSON: *exportJSON, SQLite: *exportSQLite, SVG: *exportSVG}
	interactive := term.IsTerminal(int(os.Stdout.Fd()))

	batch := exports.any() || *exportWizard
	if *robotStatus || batch || !interactive {
		tm, err := buildModel(roots, appCfg, toggles, secondaryToggles, *query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitError
		}
		code := runBatch(tm, appCfg, source, batchOptions{
			Exports: exports,
			Wizard:  *exportWizard,
			Robot:   *robotStatus || !batch,
			NoHooks: *noHooks,
		})
		if debug.Enabled() {
			debug.Log("%s", metrics.Summary())
		}
		return code
	}

	m, err := newTUIModel(roots, appCfg, source, toggles, secondaryToggles, *query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	defer m.Stop()

	if err := runTUIProgram(m); err != nil {
		fmt.Printf("Error running ct: %v\n", err)
		return exitError
	}
	return exitOK
}

// applyFlagOverrides layers command line settings over the config file.
func applyFlagOverrides(cfg *config.Config, strict bool, clearPolicy string) error {
	if strict {
		cfg.Tree.StrictLookup = true
	}
	if clearPolicy != "" {
		if _, err := checktree.ParseClearPolicy(clearPolicy); err != nil {
			return fmt.Errorf("--clear-policy: %w", err)
		}
		cfg.Search.ClearPolicy = strings.ToLower(clearPolicy)
	}
	return nil
}

// loadRoots resolves the tree to show: the demo tree, an explicit file, the
// configured default path, or discovery in .checktree/ (CHECKTREE_DIR). The
// returned source is the file path, or "demo".
func loadRoots(file string, demo bool, cfg config.Config) ([]*model.Node, string, error) {
	if demo {
		return loader.Sample(), "demo", nil
	}

	path := file
	if path == "" {
		path = cfg.Tree.DefaultPath
	}
	if path == "" {
		dir, err := loader.GetTreeDir("")
		if err != nil {
			return nil, "", err
		}
		path, err = loader.FindTreePath(dir)
		if err != nil {
			return nil, "", err
		}
	}

	roots, err := loader.LoadFile(path)
	if err != nil {
		return nil, "", err
	}
	return roots, path, nil
}

// buildModel creates the tree model and replays the command line toggles
// and query on it.
func buildModel(roots []*model.Node, cfg config.Config, toggles, secondary []string, query string) (*checktree.Model, error) {
	tm, err := checktree.New(roots, cfg.ModelOptions()...)
	if err != nil {
		return nil, err
	}
	if err := applyToggles(tm, toggles, secondary); err != nil {
		return nil, err
	}
	if query != "" {
		tm.ApplyQuery(query)
	}
	return tm, nil
}

func applyToggles(tm *checktree.Model, toggles, secondary []string) error {
	for _, id := range toggles {
		if _, err := tm.Toggle(id); err != nil {
			return fmt.Errorf("--toggle: %w", err)
		}
	}
	for _, id := range secondary {
		if _, err := tm.ToggleSecondary(id); err != nil {
			return fmt.Errorf("--toggle-secondary: %w", err)
		}
	}
	return nil
}

type exportTargets struct {
	JSON   string
	SQLite string
	SVG    string
}

func (e exportTargets) any() bool {
	return e.JSON != "" || e.SQLite != "" || e.SVG != ""
}

// exportJob is one file to write.
type exportJob struct {
	Format string
	Path   string
	SVG    export.SVGOptions
}

func (e exportTargets) jobs(svgOpts export.SVGOptions) []exportJob {
	var jobs []exportJob
	if e.JSON != "" {
		jobs = append(jobs, exportJob{Format: export.FormatJSON, Path: e.JSON})
	}
	if e.SQLite != "" {
		jobs = append(jobs, exportJob{Format: export.FormatSQLite, Path: e.SQLite})
	}
	if e.SVG != "" {
		jobs = append(jobs, exportJob{Format: export.FormatSVG, Path: e.SVG, SVG: svgOpts})
	}
	return jobs
}

// wizardJobs turns wizard answers into jobs, ordered by format name.
func wizardJobs(wcfg *export.WizardConfig, svgOpts export.SVGOptions) []exportJob {
	svgOpts.VisibleOnly = wcfg.VisibleOnly
	paths := wcfg.Paths()
	formats := make([]string, 0, len(paths))
	for f := range paths {
		formats = append(formats, f)
	}
	sort.Strings(formats)

	jobs := make([]exportJob, 0, len(formats))
	for _, f := range formats {
		jobs = append(jobs, exportJob{Format: f, Path: paths[f], SVG: svgOpts})
	}
	return jobs
}

// batchOptions carries the non-interactive mode switches.
type batchOptions struct {
	Exports exportTargets
	Wizard  bool
	Robot   bool
	NoHooks bool
	// HooksDir holds .checktree/hooks.yaml; empty means the working directory.
	HooksDir string
}

// runBatch handles every non-interactive mode and returns the exit code.
func runBatch(tm *checktree.Model, cfg config.Config, source string, opts batchOptions) int {
	snap := export.NewSnapshot(tm, source)
	svgOpts := export.SVGOptions{
		HideSecondary:  !cfg.UI.ShowSecondary,
		PrimaryLabel:   cfg.UI.PrimaryLabel,
		SecondaryLabel: cfg.UI.SecondaryLabel,
	}

	jobs := opts.Exports.jobs(svgOpts)
	if opts.Wizard {
		savePath := filepath.Join(config.ConfigDir(), "export-wizard.json")
		wcfg, err := export.RunWizard(savePath, cfg.Export.Dir)
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintln(os.Stderr, "Export cancelled")
			return exitOK
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitError
		}
		jobs = append(jobs, wizardJobs(wcfg, svgOpts)...)
	}

	for _, job := range jobs {
		if err := runExportJob(job, snap, opts.HooksDir, opts.NoHooks); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitError
		}
	}

	if opts.Robot {
		if err := writeRobotStatusOutput(os.Stdout, newRobotStatusOutput(tm, source)); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing status: %v\n", err)
			return exitError
		}
	}
	return exitOK
}

// runExportJob writes one file between the pre-export and post-export hooks.
// A failing pre-export hook cancels the write.
func runExportJob(job exportJob, snap *export.Snapshot, hooksDir string, noHooks bool) error {
	checked, _, _ := snap.Counts(model.LayerPrimary)
	hctx := hooks.ExportContext{
		ExportPath:   job.Path,
		ExportFormat: job.Format,
		NodeCount:    len(snap.Nodes),
		CheckedCount: checked,
		Query:        snap.Query,
		Timestamp:    snap.CreatedAt,
	}
	executor, err := hooks.RunHooks(hooksDir, hctx, noHooks)
	if err != nil {
		return fmt.Errorf("hooks: %w", err)
	}
	report := func() {
		if executor == nil {
			return
		}
		if s := executor.Summary(); s != "" {
			fmt.Fprint(os.Stderr, s)
		}
	}

	if executor != nil {
		if err := executor.RunPreExport(); err != nil {
			report()
			return fmt.Errorf("%s cancelled: %w", job.Path, err)
		}
	}
	if err := export.WriteFormat(job.Format, job.Path, snap, job.SVG); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", job.Path)

	if executor != nil {
		err := executor.RunPostExport()
		report()
		return err
	}
	return nil
}

// newTUIModel builds the interactive model, with a file watcher and session
// file when the tree came from disk.
func newTUIModel(roots []*model.Node, cfg config.Config, source string, toggles, secondary []string, query string) (ui.Model, error) {
	opts := ui.Options{Config: cfg, Query: query}
	if source != "demo" {
		opts.TreePath = source
		opts.StatePath = ui.SessionStatePath(source, config.StateDir())

		w, err := watcher.NewWatcher(source)
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: live reload disabled: %v\n", err)
		} else {
			opts.Watcher = w
		}
	}

	m, err := ui.NewModel(roots, opts)
	if err != nil {
		if opts.Watcher != nil {
			opts.Watcher.Stop()
		}
		return ui.Model{}, err
	}
	if err := applyToggles(m.Tree(), toggles, secondary); err != nil {
		m.Stop()
		return ui.Model{}, err
	}
	return m, nil
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set CT_TUI_AUTOCLOSE_MS.
	if ms := autoCloseDelay(os.Getenv("CT_TUI_AUTOCLOSE_MS")); ms > 0 {
		go func() {
			timer := time.NewTimer(ms)
			defer timer.Stop()

			select {
			case <-runDone:
				return
			case <-timer.C:
			}

			p.Quit()

			select {
			case <-runDone:
				return
			case <-time.After(2 * time.Second):
			}

			p.Kill()
		}()
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}

func autoCloseDelay(v string) time.Duration {
	if v == "" {
		return 0
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
