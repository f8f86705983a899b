package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/checktree/pkg/model"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns the given hex color for TrueColor terminals and
// lipgloss.NoColor{} otherwise, so 16/256-color terminals keep their own
// background.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor

	// Checkbox states
	Checked       lipgloss.AdaptiveColor
	Indeterminate lipgloss.AdaptiveColor
	Unchecked     lipgloss.AdaptiveColor

	// Search
	Match        lipgloss.AdaptiveColor
	CurrentMatch lipgloss.AdaptiveColor

	// UI Elements
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor

	// Styles
	Base     lipgloss.Style
	Selected lipgloss.Style
	Header   lipgloss.Style

	// Pre-computed row styles, created once instead of per frame
	MutedText    lipgloss.Style
	TreeGuide    lipgloss.Style
	Indicator    lipgloss.Style
	LabelText    lipgloss.Style
	MatchText    lipgloss.Style
	CurrentText  lipgloss.Style
	SelectedText lipgloss.Style
	StatusText   lipgloss.Style
	StatusError  lipgloss.Style
	SearchPrompt lipgloss.Style
	boxChecked   lipgloss.Style
	boxPartial   lipgloss.Style
	boxUnchecked lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive).
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"},

		Checked:       lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"},
		Indeterminate: lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"},
		Unchecked:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},

		Match:        lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"},
		CurrentMatch: lipgloss.AdaptiveColor{Light: "#7A5600", Dark: "#F1FA8C"},

		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Error:     lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})

	t.Selected = r.NewStyle().
		Background(t.Highlight).
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(t.Primary).
		Bold(true)

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true)

	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.TreeGuide = r.NewStyle().Foreground(t.Muted)
	t.Indicator = r.NewStyle().Foreground(t.Secondary)
	t.LabelText = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#E8E8E8"})
	t.MatchText = r.NewStyle().Foreground(t.Match)
	t.CurrentText = r.NewStyle().Foreground(t.CurrentMatch).Bold(true)
	t.SelectedText = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.StatusText = r.NewStyle().Foreground(t.Subtext)
	t.StatusError = r.NewStyle().Foreground(t.Error).Bold(true)
	t.SearchPrompt = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.boxChecked = r.NewStyle().Foreground(t.Checked).Bold(true)
	t.boxPartial = r.NewStyle().Foreground(t.Indeterminate).Bold(true)
	t.boxUnchecked = r.NewStyle().Foreground(t.Unchecked)

	return t
}

// Checkbox renders the three-character box for a status.
func (t Theme) Checkbox(s model.Status) string {
	switch s {
	case model.StatusChecked:
		return t.boxChecked.Render("[x]")
	case model.StatusIndeterminate:
		return t.boxPartial.Render("[-]")
	default:
		return t.boxUnchecked.Render("[ ]")
	}
}
