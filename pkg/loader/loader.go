package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/checktree/pkg/debug"
	"github.com/vanderheijden86/checktree/pkg/metrics"
	"github.com/vanderheijden86/checktree/pkg/model"
)

// TreeDirEnvVar is the name of the environment variable for a custom tree directory.
const TreeDirEnvVar = "CHECKTREE_DIR"

// PreferredTreeNames defines the priority order for looking up tree files.
var PreferredTreeNames = []string{"tree.json", "tree.yaml", "tree.yml", "tree.jsonl"}

// Format identifies a tree file encoding.
type Format int

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatYAML
	FormatJSONL
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	case FormatJSONL:
		return "jsonl"
	default:
		return "unknown"
	}
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".jsonl", ".ndjson":
		return FormatJSONL
	default:
		return FormatUnknown
	}
}

// GetTreeDir returns the tree directory path, respecting CHECKTREE_DIR.
// Otherwise it falls back to .checktree in repoPath (or cwd if empty).
func GetTreeDir(repoPath string) (string, error) {
	if envDir := os.Getenv(TreeDirEnvVar); envDir != "" {
		return envDir, nil
	}
	if repoPath == "" {
		var err error
		repoPath, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current working directory: %w", err)
		}
	}
	return filepath.Join(repoPath, ".checktree"), nil
}

// FindTreePath locates the tree file in dir.
func FindTreePath(dir string) (string, error) {
	return FindTreePathWithWarnings(dir, nil)
}

// FindTreePathWithWarnings is like FindTreePath but reports skipped backup
// files through warnFunc.
func FindTreePathWithWarnings(dir string, warnFunc func(msg string)) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read tree directory: %w", err)
	}

	var candidates []string
	var skipped []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if FormatFromPath(name) == FormatUnknown {
			continue
		}
		// state.json is the session file, not a tree.
		if name == SessionFileName {
			continue
		}
		if strings.Contains(name, ".backup") || strings.Contains(name, ".orig") || strings.HasSuffix(name, "~") {
			skipped = append(skipped, name)
			continue
		}
		candidates = append(candidates, name)
	}

	if len(skipped) > 0 && warnFunc != nil {
		warnFunc(fmt.Sprintf("ignoring backup files: %s", strings.Join(skipped, ", ")))
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no tree file found in %s", dir)
	}

	for _, preferred := range PreferredTreeNames {
		for _, name := range candidates {
			if name == preferred && nonEmpty(filepath.Join(dir, name)) {
				return filepath.Join(dir, name), nil
			}
		}
	}
	for _, name := range candidates {
		if nonEmpty(filepath.Join(dir, name)) {
			return filepath.Join(dir, name), nil
		}
	}
	return filepath.Join(dir, candidates[0]), nil
}

// SessionFileName is the name of the persisted UI session inside the tree
// directory. Discovery skips it.
const SessionFileName = "state.json"

func nonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// LoadTree reads the tree from the tree directory of repoPath.
func LoadTree(repoPath string) ([]*model.Node, error) {
	dir, err := GetTreeDir(repoPath)
	if err != nil {
		return nil, err
	}
	path, err := FindTreePath(dir)
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// DefaultMaxBufferSize is the default maximum JSONL line size (10MB).
const DefaultMaxBufferSize = 1024 * 1024 * 10

// ParseOptions configures parsing.
type ParseOptions struct {
	// WarningHandler is called with warning messages (malformed lines,
	// orphaned records). If nil, warnings are printed to os.Stderr.
	WarningHandler func(string)

	// BufferSize sets the maximum JSONL line size in bytes. Longer lines are
	// skipped with a warning. If 0, uses DefaultMaxBufferSize.
	BufferSize int
}

func (o ParseOptions) warn() func(string) {
	if o.WarningHandler != nil {
		return o.WarningHandler
	}
	if os.Getenv("CT_ROBOT") == "1" {
		return func(string) {}
	}
	return func(msg string) {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
	}
}

// LoadFile reads a tree file, choosing the format from its extension.
func LoadFile(path string) ([]*model.Node, error) {
	return LoadFileWithOptions(path, ParseOptions{})
}

// LoadFileWithOptions reads a tree file with custom options.
func LoadFileWithOptions(path string, opts ParseOptions) ([]*model.Node, error) {
	defer metrics.Timer(metrics.Load)()

	format := FormatFromPath(path)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unsupported tree file %s (want .json, .yaml, .yml or .jsonl)", path)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no tree found at %s", path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tree file: %w", err)
	}
	defer file.Close()

	roots, err := Parse(file, format, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	debug.Log("loaded %s (%s): %d roots, %d nodes", path, format, len(roots), model.Count(roots))
	return roots, nil
}

// Parse decodes a tree in the given format and validates it.
func Parse(r io.Reader, format Format, opts ParseOptions) ([]*model.Node, error) {
	var (
		roots []*model.Node
		err   error
	)
	switch format {
	case FormatJSON:
		roots, err = parseJSON(r)
	case FormatYAML:
		roots, err = parseYAML(r)
	case FormatJSONL:
		roots, err = parseFlat(r, opts)
	default:
		return nil, fmt.Errorf("unsupported format %s", format)
	}
	if err != nil {
		return nil, err
	}
	if err := model.Validate(roots); err != nil {
		return nil, err
	}
	return roots, nil
}

// LoadFiles loads several tree files concurrently and returns their roots
// concatenated in argument order. The first failure cancels the rest.
func LoadFiles(ctx context.Context, paths []string) ([]*model.Node, error) {
	results := make([][]*model.Node, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			roots, err := LoadFile(path)
			if err != nil {
				return err
			}
			results[i] = roots
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*model.Node
	for _, roots := range results {
		all = append(all, roots...)
	}
	if err := model.Validate(all); err != nil {
		return nil, fmt.Errorf("merging %d files: %w", len(paths), err)
	}
	return all, nil
}

// stripBOM removes the UTF-8 Byte Order Mark if present
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}
