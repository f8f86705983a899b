// Package hooks runs user commands around ct exports.
//
// Hooks live in hooks.yaml inside the tree directory (.checktree/, or
// CHECKTREE_DIR) and run before and after every exported file:
//
//	hooks:
//	  pre-export:
//	    - name: gate
//	      command: test "$CT_CHECKED_COUNT" -gt 0
//	  post-export:
//	    - command: cp "$CT_EXPORT_PATH" /srv/snapshots/
//	      timeout: 10s
//	      on_error: fail
package hooks

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/checktree/pkg/loader"
)

// ConfigFileName is the hooks file inside the tree directory.
const ConfigFileName = "hooks.yaml"

// DefaultTimeout applies to hooks without a timeout.
const DefaultTimeout = 30 * time.Second

// HookPhase is the point in an export at which a hook runs.
type HookPhase string

const (
	// PreExport runs before a file is written. Failure cancels that export.
	PreExport HookPhase = "pre-export"
	// PostExport runs after a file is written. Failure is reported but the
	// file stays.
	PostExport HookPhase = "post-export"
)

// on_error values.
const (
	OnErrorFail     = "fail"
	OnErrorContinue = "continue"
)

// defaultOnError is "fail" for gates and "continue" for notifications.
func (p HookPhase) defaultOnError() string {
	if p == PreExport {
		return OnErrorFail
	}
	return OnErrorContinue
}

// Hook is one configured command. Command runs under sh -c; Env values are
// expanded with os.ExpandEnv before they are added.
type Hook struct {
	Name    string            `yaml:"name" json:"name"`
	Command string            `yaml:"command" json:"command"`
	Timeout time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	OnError string            `yaml:"on_error,omitempty" json:"on_error,omitempty"`
}

// Config is the parsed hooks.yaml.
type Config struct {
	Hooks HooksByPhase `yaml:"hooks" json:"hooks"`
}

// HooksByPhase groups hooks by phase, in file order.
type HooksByPhase struct {
	PreExport  []Hook `yaml:"pre-export,omitempty" json:"pre-export,omitempty"`
	PostExport []Hook `yaml:"post-export,omitempty" json:"post-export,omitempty"`
}

// For returns the hooks of one phase, or nil for an unknown phase.
func (h HooksByPhase) For(phase HookPhase) []Hook {
	switch phase {
	case PreExport:
		return h.PreExport
	case PostExport:
		return h.PostExport
	}
	return nil
}

func (h HooksByPhase) empty() bool {
	return len(h.PreExport) == 0 && len(h.PostExport) == 0
}

// ExportContext describes one exported file. Hooks see it as CT_* variables.
type ExportContext struct {
	ExportPath   string    // CT_EXPORT_PATH
	ExportFormat string    // CT_EXPORT_FORMAT: json, sqlite or svg
	NodeCount    int       // CT_NODE_COUNT
	CheckedCount int       // CT_CHECKED_COUNT: nodes whose primary box is checked
	Query        string    // CT_QUERY
	Timestamp    time.Time // CT_TIMESTAMP (RFC3339)
}

// ToEnv renders the context as KEY=value pairs in a fixed order.
func (c ExportContext) ToEnv() []string {
	pairs := [][2]string{
		{"CT_EXPORT_PATH", c.ExportPath},
		{"CT_EXPORT_FORMAT", c.ExportFormat},
		{"CT_NODE_COUNT", strconv.Itoa(c.NodeCount)},
		{"CT_CHECKED_COUNT", strconv.Itoa(c.CheckedCount)},
		{"CT_QUERY", c.Query},
		{"CT_TIMESTAMP", c.Timestamp.Format(time.RFC3339)},
	}
	env := make([]string, len(pairs))
	for i, p := range pairs {
		env[i] = p[0] + "=" + p[1]
	}
	return env
}

// Loader reads hooks.yaml from a tree directory.
type Loader struct {
	projectDir string
	config     *Config
	warnings   []string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithProjectDir sets the directory holding .checktree/ (default: cwd).
func WithProjectDir(dir string) LoaderOption {
	return func(l *Loader) { l.projectDir = dir }
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	if l.projectDir == "" {
		l.projectDir, _ = os.Getwd()
	}
	return l
}

// Path returns the hooks file location, honoring CHECKTREE_DIR.
func (l *Loader) Path() string {
	dir, err := loader.GetTreeDir(l.projectDir)
	if err != nil {
		dir = filepath.Join(l.projectDir, ".checktree")
	}
	return filepath.Join(dir, ConfigFileName)
}

// Load reads the hooks file. A missing file means no hooks. Hooks without a
// command are dropped with a warning; the rest get their phase defaults.
func (l *Loader) Load() error {
	path := l.Path()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		l.config = &Config{}
		return nil
	case err != nil:
		return fmt.Errorf("read hooks: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Hooks.PreExport = l.prepare(PreExport, cfg.Hooks.PreExport)
	cfg.Hooks.PostExport = l.prepare(PostExport, cfg.Hooks.PostExport)
	l.config = &cfg
	return nil
}

func (l *Loader) prepare(phase HookPhase, in []Hook) []Hook {
	var out []Hook
	for i, h := range in {
		pos := i + 1
		if strings.TrimSpace(h.Command) == "" {
			l.warn("%s hook %d has no command, skipped", phase, pos)
			continue
		}
		if h.Name == "" {
			h.Name = fmt.Sprintf("%s-%d", phase, pos)
		}
		if h.Timeout <= 0 {
			h.Timeout = DefaultTimeout
		}
		switch h.OnError {
		case OnErrorFail, OnErrorContinue:
		case "":
			h.OnError = phase.defaultOnError()
		default:
			l.warn("%s hook %q: unknown on_error %q, using %q", phase, h.Name, h.OnError, phase.defaultOnError())
			h.OnError = phase.defaultOnError()
		}
		out = append(out, h)
	}
	return out
}

func (l *Loader) warn(format string, args ...any) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

// Config returns the loaded configuration, empty before Load.
func (l *Loader) Config() *Config {
	if l.config == nil {
		return &Config{}
	}
	return l.config
}

func (l *Loader) HasHooks() bool {
	return l.config != nil && !l.config.Hooks.empty()
}

// GetHooks returns the hooks of one phase.
func (l *Loader) GetHooks(phase HookPhase) []Hook {
	if l.config == nil {
		return nil
	}
	return l.config.Hooks.For(phase)
}

func (l *Loader) Warnings() []string {
	return l.warnings
}

// UnmarshalYAML accepts timeouts as Go durations ("5s") or bare seconds.
func (h *Hook) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name    string            `yaml:"name"`
		Command string            `yaml:"command"`
		Timeout string            `yaml:"timeout"`
		Env     map[string]string `yaml:"env"`
		OnError string            `yaml:"on_error"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	timeout, err := parseTimeout(raw.Timeout)
	if err != nil {
		return err
	}
	*h = Hook{
		Name:    raw.Name,
		Command: raw.Command,
		Timeout: timeout,
		Env:     raw.Env,
		OnError: raw.OnError,
	}
	return nil
}

func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: want a duration like 5s or a number of seconds", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
