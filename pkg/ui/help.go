package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
)

var helpSections = []string{"Navigation", "Tree", "Search", "Other"}

// helpMarkdown renders the key map as a markdown document.
func helpMarkdown(k KeyMap, primary, secondary string) string {
	var sb strings.Builder
	sb.WriteString("# Keyboard shortcuts\n\n")
	fmt.Fprintf(&sb, "The first checkbox column is **%s**, the second is **%s**. ", primary, secondary)
	sb.WriteString("Toggling a node sets its whole subtree; parents show `[-]` when only part of their subtree is checked.\n\n")

	for i, group := range k.FullHelp() {
		title := "Other"
		if i < len(helpSections) {
			title = helpSections[i]
		}
		fmt.Fprintf(&sb, "## %s\n\n", title)
		sb.WriteString("| Key | Action |\n|---|---|\n")
		for _, b := range group {
			h := b.Help()
			fmt.Fprintf(&sb, "| `%s` | %s |\n", h.Key, h.Desc)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Help wraps at no less than helpMinWrap columns so the title and the key
// tables keep their shape on very narrow terminals; the viewport scrolls.
const (
	helpMinWrap = 40
	helpMaxWrap = 100
)

func helpWrap(width int) int {
	if width <= 0 {
		width = 80
	}
	return max(min(width-4, helpMaxWrap), helpMinWrap)
}

// renderHelp renders the help document for the given width. It falls back
// to the raw markdown when glamour cannot render.
func renderHelp(k KeyMap, primary, secondary string, width int) string {
	md := helpMarkdown(k, primary, secondary)
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(helpWrap(width)),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// shortHelpLine renders the one-line footer hint.
func shortHelpLine(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}
