// Package config handles loading and saving ct configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/ct/config.yaml
//   - State:   ~/.local/state/ct/ (session files for trees outside a repo)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/checktree/pkg/checktree"
)

const appName = "ct"

// TreeConfig controls how trees are loaded and looked up.
type TreeConfig struct {
	StrictLookup bool   `yaml:"strict_lookup,omitempty"` // Unknown ids are errors instead of no-ops
	DefaultPath  string `yaml:"default_path,omitempty"`  // Tree file used when --file is not given
}

// SearchConfig controls the search bar.
type SearchConfig struct {
	ClearPolicy string `yaml:"clear_policy,omitempty"` // keep, restore or reset
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	ShowSecondary  bool   `yaml:"show_secondary"`            // Render the secondary checkbox column
	PersistState   bool   `yaml:"persist_state,omitempty"`   // Save checked/expanded sets between runs
	PrimaryLabel   string `yaml:"primary_label,omitempty"`   // Column title for the primary layer
	SecondaryLabel string `yaml:"secondary_label,omitempty"` // Column title for the secondary layer
}

// ExportConfig holds exporter defaults.
type ExportConfig struct {
	Dir string `yaml:"dir,omitempty"` // Default output directory
}

// Config is the top-level configuration for ct.
type Config struct {
	Tree   TreeConfig   `yaml:"tree,omitempty"`
	Search SearchConfig `yaml:"search,omitempty"`
	UI     UIConfig     `yaml:"ui"`
	Export ExportConfig `yaml:"export,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Search: SearchConfig{
			ClearPolicy: checktree.ClearKeep.String(),
		},
		UI: UIConfig{
			ShowSecondary:  true,
			PrimaryLabel:   "Include",
			SecondaryLabel: "Watch",
		},
		Export: ExportConfig{
			Dir: ".",
		},
	}
}

// Validate reports settings that cannot be applied.
func (c Config) Validate() error {
	if _, err := checktree.ParseClearPolicy(c.Search.ClearPolicy); err != nil {
		return fmt.Errorf("search.clear_policy: %w", err)
	}
	return nil
}

// ClearPolicy returns the parsed search clear policy, falling back to
// ClearKeep for invalid values.
func (c Config) ClearPolicy() checktree.ClearPolicy {
	p, err := checktree.ParseClearPolicy(c.Search.ClearPolicy)
	if err != nil {
		return checktree.ClearKeep
	}
	return p
}

// ModelOptions translates the configuration into tree model options.
func (c Config) ModelOptions() []checktree.Option {
	return []checktree.Option{
		checktree.WithClearPolicy(c.ClearPolicy()),
		checktree.WithStrictLookup(c.Tree.StrictLookup),
	}
}

// ConfigDir returns the XDG config directory for ct.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// StateDir returns the XDG state directory for ct.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}

	cfg.Tree.DefaultPath = expandHome(cfg.Tree.DefaultPath)
	cfg.Export.Dir = expandHome(cfg.Export.Dir)
	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
