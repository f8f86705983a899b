package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	json "github.com/goccy/go-json"
	"golang.org/x/term"

	"github.com/vanderheijden86/checktree/pkg/metrics"
)

// Export formats selectable in the wizard.
const (
	FormatJSON   = "json"
	FormatSQLite = "sqlite"
	FormatSVG    = "svg"
)

var formatExt = map[string]string{
	FormatJSON:   ".json",
	FormatSQLite: ".sqlite3",
	FormatSVG:    ".svg",
}

// WizardConfig holds the choices collected by the export wizard.
type WizardConfig struct {
	Formats     []string `json:"formats"`
	OutputDir   string   `json:"output_dir"`
	BaseName    string   `json:"base_name"`
	VisibleOnly bool     `json:"visible_only,omitempty"`
}

// DefaultWizardConfig returns a JSON-only export into dir.
func DefaultWizardConfig(dir string) *WizardConfig {
	if dir == "" {
		dir = "."
	}
	return &WizardConfig{
		Formats:   []string{FormatJSON},
		OutputDir: dir,
		BaseName:  "checktree",
	}
}

// Validate reports unusable wizard choices.
func (c *WizardConfig) Validate() error {
	if len(c.Formats) == 0 {
		return errors.New("select at least one format")
	}
	for _, f := range c.Formats {
		if _, ok := formatExt[f]; !ok {
			return fmt.Errorf("unknown format %q", f)
		}
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return errors.New("output directory is required")
	}
	return validateBaseName(c.BaseName)
}

func validateBaseName(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("file name is required")
	}
	if strings.ContainsAny(s, `/\`) {
		return errors.New("file name must not contain path separators")
	}
	return nil
}

// Paths maps each selected format to its output file.
func (c *WizardConfig) Paths() map[string]string {
	out := make(map[string]string, len(c.Formats))
	for _, f := range c.Formats {
		out[f] = filepath.Join(c.OutputDir, strings.TrimSpace(c.BaseName)+formatExt[f])
	}
	return out
}

// WriteFormat writes snap to path in one of FormatJSON, FormatSQLite or
// FormatSVG. SQLite output appends to an existing database.
func WriteFormat(format, path string, snap *Snapshot, svgOpts SVGOptions) error {
	defer metrics.Timer(metrics.Export)()
	var err error
	switch format {
	case FormatJSON:
		err = SaveJSON(path, snap)
	case FormatSQLite:
		err = NewSQLiteExporter().Export(path, snap)
	case FormatSVG:
		err = SaveSVG(path, snap, svgOpts)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", format, err)
	}
	return nil
}

// SaveJSON writes snap to the file at path.
func SaveJSON(path string, snap *Snapshot) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteJSON(file, snap); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Wizard walks the user through choosing export formats.
type Wizard struct {
	config   *WizardConfig
	savePath string
}

// NewWizard creates a wizard that remembers its answers in savePath. An
// empty savePath disables remembering.
func NewWizard(savePath, defaultDir string) *Wizard {
	return &Wizard{
		config:   DefaultWizardConfig(defaultDir),
		savePath: savePath,
	}
}

// RunWizard runs a new wizard and returns the collected configuration.
func RunWizard(savePath, defaultDir string) (*WizardConfig, error) {
	return NewWizard(savePath, defaultDir).Run()
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// Run executes the interactive flow.
func (w *Wizard) Run() (*WizardConfig, error) {
	if w.savePath != "" {
		saved, err := LoadWizardConfig(w.savePath)
		if err == nil && saved != nil && saved.Validate() == nil {
			useSaved, err := w.offerSavedConfig(saved)
			if err != nil {
				return nil, err
			}
			if useSaved {
				w.config = saved
				return w.config, nil
			}
			w.config = saved
		}
	}

	form := newForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Export formats").
				Options(
					huh.NewOption("JSON snapshot", FormatJSON),
					huh.NewOption("SQLite database (appends)", FormatSQLite),
					huh.NewOption("SVG rendering", FormatSVG),
				).
				Validate(func(v []string) error {
					if len(v) == 0 {
						return errors.New("select at least one format")
					}
					return nil
				}).
				Value(&w.config.Formats),
			huh.NewInput().
				Title("Output directory").
				Value(&w.config.OutputDir).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("output directory is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("File name (without extension)").
				Value(&w.config.BaseName).
				Validate(validateBaseName),
			huh.NewConfirm().
				Title("Render only expanded rows in SVG?").
				Value(&w.config.VisibleOnly),
		),
	)
	if err := form.Run(); err != nil {
		return nil, err
	}
	if err := w.config.Validate(); err != nil {
		return nil, err
	}

	if w.savePath != "" {
		if err := SaveWizardConfig(w.savePath, w.config); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not save wizard settings: %v\n", err)
		}
	}
	return w.config, nil
}

func (w *Wizard) offerSavedConfig(saved *WizardConfig) (bool, error) {
	fmt.Println("Found previous export settings:")
	fmt.Printf("  Formats: %s\n", strings.Join(saved.Formats, ", "))
	fmt.Printf("  Output:  %s\n", saved.OutputDir)
	fmt.Printf("  Name:    %s\n", saved.BaseName)
	fmt.Println("")

	useSaved := true
	form := newForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Export with these settings?").
				Description("Select No to choose again").
				Value(&useSaved).
				Affirmative("Yes").
				Negative("No, reconfigure"),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return useSaved, nil
}

// LoadWizardConfig reads saved wizard settings. A missing file returns nil
// without error.
func LoadWizardConfig(path string) (*WizardConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var config WizardConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// SaveWizardConfig saves wizard settings for future runs.
func SaveWizardConfig(path string, config *WizardConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
