package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/checktree/pkg/checktree"
	"github.com/vanderheijden86/checktree/pkg/metrics"
	"github.com/vanderheijden86/checktree/pkg/model"
)

// TreeView renders a checktree.Model as a scrollable list of rows.
//
// The view holds no tree state of its own. The flat list is re-derived from
// the model's expanded set after every change, and only the rows inside the
// viewport are rendered.
type TreeView struct {
	tree           *checktree.Model
	flatList       []string // Visible ids in display order
	cursor         int      // Index into flatList
	viewportOffset int      // Index of first rendered row
	width          int
	height         int
	theme          Theme

	showSecondary  bool
	primaryTitle   string
	secondaryTitle string

	matches    []string // Matching ids in pre-order
	matchIndex int      // Current match for n/N
}

// NewTreeView creates a view over tree.
func NewTreeView(tree *checktree.Model, theme Theme) TreeView {
	t := TreeView{
		tree:           tree,
		theme:          theme,
		showSecondary:  true,
		primaryTitle:   "Include",
		secondaryTitle: "Watch",
	}
	t.rebuildFlatList()
	return t
}

// SetColumns configures the checkbox columns.
func (t *TreeView) SetColumns(showSecondary bool, primary, secondary string) {
	t.showSecondary = showSecondary
	if primary != "" {
		t.primaryTitle = primary
	}
	if secondary != "" {
		t.secondaryTitle = secondary
	}
}

// SetSize updates the available area.
func (t *TreeView) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.ensureCursorVisible()
}

// SetTree swaps the underlying model, keeping the cursor on the same id when
// it still exists.
func (t *TreeView) SetTree(tree *checktree.Model) {
	selected := t.SelectedID()
	t.tree = tree
	t.rebuildFlatList()
	t.refreshMatches()
	if selected == "" || !t.SelectByID(selected) {
		t.clampCursor()
	}
	t.ensureCursorVisible()
}

// Tree returns the underlying model.
func (t *TreeView) Tree() *checktree.Model { return t.tree }

// Refresh re-derives the flat list after the model changed elsewhere.
func (t *TreeView) Refresh() {
	selected := t.SelectedID()
	t.rebuildFlatList()
	if selected == "" || !t.SelectByID(selected) {
		t.clampCursor()
	}
	t.ensureCursorVisible()
}

// ── Selection ──

// SelectedID returns the id under the cursor, or "".
func (t *TreeView) SelectedID() string {
	if t.cursor < 0 || t.cursor >= len(t.flatList) {
		return ""
	}
	return t.flatList[t.cursor]
}

// SelectByID moves the cursor to id. Returns false if id is not visible.
func (t *TreeView) SelectByID(id string) bool {
	for i, fid := range t.flatList {
		if fid == id {
			t.cursor = i
			t.ensureCursorVisible()
			return true
		}
	}
	return false
}

// Cursor returns the cursor position in the visible list.
func (t *TreeView) Cursor() int { return t.cursor }

// VisibleIDs returns the ids currently shown.
func (t *TreeView) VisibleIDs() []string {
	out := make([]string, len(t.flatList))
	copy(out, t.flatList)
	return out
}

// ── Navigation ──

func (t *TreeView) MoveDown() {
	if t.cursor < len(t.flatList)-1 {
		t.cursor++
	}
	t.ensureCursorVisible()
}

func (t *TreeView) MoveUp() {
	if t.cursor > 0 {
		t.cursor--
	}
	t.ensureCursorVisible()
}

func (t *TreeView) JumpToTop() {
	t.cursor = 0
	t.ensureCursorVisible()
}

func (t *TreeView) JumpToBottom() {
	t.cursor = len(t.flatList) - 1
	t.clampCursor()
	t.ensureCursorVisible()
}

// PageDown moves cursor down by half a viewport.
func (t *TreeView) PageDown() {
	t.cursor += t.halfPage()
	t.clampCursor()
	t.ensureCursorVisible()
}

// PageUp moves cursor up by half a viewport.
func (t *TreeView) PageUp() {
	t.cursor -= t.halfPage()
	t.clampCursor()
	t.ensureCursorVisible()
}

func (t *TreeView) halfPage() int {
	if n := t.height / 2; n >= 1 {
		return n
	}
	return 5
}

// JumpToParent moves the cursor to the parent of the selected node.
func (t *TreeView) JumpToParent() {
	parent, ok := t.tree.Parent(t.SelectedID())
	if !ok {
		return
	}
	t.SelectByID(parent)
}

// ExpandOrMoveToChild handles → / l: a collapsed interior node expands, an
// expanded one moves to its first child, a leaf does nothing.
func (t *TreeView) ExpandOrMoveToChild() {
	id := t.SelectedID()
	n := t.tree.Node(id)
	if n == nil || n.IsLeaf() {
		return
	}
	if !t.tree.IsExpanded(id) {
		_ = t.tree.SetExpanded(id, true)
		t.rebuildFlatList()
		t.ensureCursorVisible()
		return
	}
	t.SelectByID(n.Children[0].ID)
}

// CollapseOrJumpToParent handles ← / h: an expanded node collapses,
// anything else jumps to its parent.
func (t *TreeView) CollapseOrJumpToParent() {
	id := t.SelectedID()
	n := t.tree.Node(id)
	if n == nil {
		return
	}
	if !n.IsLeaf() && t.tree.IsExpanded(id) {
		_ = t.tree.SetExpanded(id, false)
		t.rebuildFlatList()
		t.ensureCursorVisible()
		return
	}
	t.JumpToParent()
}

// ToggleExpand flips the selected node's expansion.
func (t *TreeView) ToggleExpand() {
	id := t.SelectedID()
	if id == "" {
		return
	}
	_, _ = t.tree.ToggleExpand(id)
	t.Refresh()
}

// ToggleExpandAll expands everything, or collapses everything after a full
// expansion. Returns true when the tree is now fully expanded.
func (t *TreeView) ToggleExpandAll() bool {
	all := t.tree.ToggleExpandAll()
	t.Refresh()
	return all
}

// ToggleLayer toggles the selected node in the given layer.
func (t *TreeView) ToggleLayer(layer model.Layer) error {
	id := t.SelectedID()
	if id == "" {
		return nil
	}
	_, err := t.tree.ToggleLayer(layer, id)
	return err
}

// ── Search ──

// SetQuery runs the query against the model and moves to the first match.
func (t *TreeView) SetQuery(q string) {
	t.tree.ApplyQuery(q)
	t.matchIndex = 0
	t.refreshMatches()
	t.rebuildFlatList()
	if len(t.matches) > 0 {
		t.SelectByID(t.matches[0])
	} else {
		t.clampCursor()
	}
	t.ensureCursorVisible()
}

// Query returns the model's current query.
func (t *TreeView) Query() string { return t.tree.Query() }

// MatchCount returns the number of matching nodes.
func (t *TreeView) MatchCount() int { return len(t.matches) }

// MatchIndex returns the 0-based index of the focused match.
func (t *TreeView) MatchIndex() int { return t.matchIndex }

// NextMatch cycles forward through matches.
func (t *TreeView) NextMatch() {
	if len(t.matches) == 0 {
		return
	}
	t.matchIndex = (t.matchIndex + 1) % len(t.matches)
	t.focusMatch()
}

// PrevMatch cycles backward through matches.
func (t *TreeView) PrevMatch() {
	if len(t.matches) == 0 {
		return
	}
	t.matchIndex--
	if t.matchIndex < 0 {
		t.matchIndex = len(t.matches) - 1
	}
	t.focusMatch()
}

// focusMatch selects the current match. The user may have collapsed its
// ancestors since the query ran, so they are re-expanded first.
func (t *TreeView) focusMatch() {
	id := t.matches[t.matchIndex]
	for _, anc := range t.tree.Ancestors(id) {
		if !t.tree.IsExpanded(anc) {
			_ = t.tree.SetExpanded(anc, true)
		}
	}
	t.rebuildFlatList()
	t.SelectByID(id)
}

func (t *TreeView) refreshMatches() {
	t.matches = t.tree.Matches()
	if t.matchIndex >= len(t.matches) {
		t.matchIndex = 0
	}
}

// ── Rendering ──

// View renders the header row, the rows inside the viewport and a position
// indicator when the list scrolls.
func (t *TreeView) View() string {
	defer metrics.Timer(metrics.Render)()
	if t.tree == nil || len(t.flatList) == 0 {
		return t.renderEmptyState()
	}

	var sb strings.Builder
	sb.WriteString(t.RenderHeader())
	sb.WriteString("\n")

	start, end := t.visibleRange()
	for i := start; i < end; i++ {
		isSelected := i == t.cursor
		line := t.renderRow(t.flatList[i], isSelected)
		if isSelected {
			line = t.theme.Selected.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	if len(t.flatList) > t.effectiveVisibleCount() {
		sb.WriteString(t.renderPositionIndicator(start, end))
	}
	return sb.String()
}

func (t *TreeView) rowWidth() int {
	width := t.width
	if width <= 0 {
		width = 80
	}
	// One less than the terminal to avoid wrapping on the exact edge.
	return width - 1
}

// RenderHeader returns the column header row.
func (t *TreeView) RenderHeader() string {
	cols := padRight(truncateRunesHelper(t.primaryTitle, 3, ""), 4)
	if t.showSecondary {
		cols += padRight(truncateRunesHelper(t.secondaryTitle, 3, ""), 4)
	}
	return t.theme.Header.Width(t.rowWidth()).Render(" " + cols + "LABEL")
}

func (t *TreeView) renderRow(id string, isSelected bool) string {
	n := t.tree.Node(id)
	if n == nil {
		return ""
	}
	width := t.rowWidth()

	var left strings.Builder
	left.WriteString(" ")
	left.WriteString(t.theme.Checkbox(t.tree.Status(id)))
	left.WriteString(" ")
	if t.showSecondary {
		left.WriteString(t.theme.Checkbox(t.tree.SecondaryStatus(id)))
		left.WriteString(" ")
	}

	prefix := t.buildTreePrefix(id)
	left.WriteString(t.theme.TreeGuide.Render(prefix))
	left.WriteString(t.theme.Indicator.Render(t.expandIndicator(n)))
	left.WriteString(" ")

	used := lipgloss.Width(left.String())
	labelWidth := width - used
	if labelWidth < 5 {
		labelWidth = 5
	}
	label := truncateRunesHelper(n.Label, labelWidth, "…")

	style := t.theme.LabelText
	switch {
	case isSelected:
		style = t.theme.SelectedText
	case t.isCurrentMatch(id):
		style = t.theme.CurrentText
	case t.tree.IsMatching(id):
		style = t.theme.MatchText
	}
	left.WriteString(style.Render(label))

	return t.theme.Renderer.NewStyle().MaxWidth(width).Render(left.String())
}

func (t *TreeView) isCurrentMatch(id string) bool {
	return len(t.matches) > 0 && t.matchIndex < len(t.matches) && t.matches[t.matchIndex] == id
}

func (t *TreeView) expandIndicator(n *model.Node) string {
	if n.IsLeaf() {
		return "•"
	}
	if t.tree.IsExpanded(n.ID) {
		return "▾"
	}
	return "▸"
}

// buildTreePrefix draws the branch guides for id: a vertical bar for every
// ancestor level that has siblings below, then the node's own branch.
func (t *TreeView) buildTreePrefix(id string) string {
	ancestors := t.tree.Ancestors(id) // parent first
	if len(ancestors) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ancestors))
	parts = append(parts, branch(t.isLastChild(id)))
	for i := 0; i < len(ancestors)-1; i++ {
		if t.isLastChild(ancestors[i]) {
			parts = append(parts, "    ")
		} else {
			parts = append(parts, "│   ")
		}
	}
	// Built child-to-root; reverse to root-to-child.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "")
}

func branch(last bool) string {
	if last {
		return "└── "
	}
	return "├── "
}

func (t *TreeView) isLastChild(id string) bool {
	siblings := t.tree.Roots()
	if parent, ok := t.tree.Parent(id); ok {
		siblings = t.tree.Node(parent).Children
	}
	return len(siblings) > 0 && siblings[len(siblings)-1].ID == id
}

func (t *TreeView) renderPositionIndicator(start, end int) string {
	total := len(t.flatList)
	indicator := fmt.Sprintf(" %d-%d of %d", start+1, end, total)
	return t.theme.MutedText.Render(indicator)
}

func (t *TreeView) renderEmptyState() string {
	title := t.theme.Renderer.NewStyle().Foreground(t.theme.Primary).Bold(true)

	var sb strings.Builder
	sb.WriteString(title.Render("Tree"))
	sb.WriteString("\n\n")
	sb.WriteString(t.theme.MutedText.Render("No nodes to display."))
	sb.WriteString("\n\n")
	sb.WriteString(t.theme.MutedText.Render("Pass --file tree.json or run with --demo."))
	return sb.String()
}

// ── Viewport ──

func (t *TreeView) rebuildFlatList() {
	if t.tree == nil {
		t.flatList = nil
		return
	}
	t.flatList = t.tree.Visible()
}

func (t *TreeView) clampCursor() {
	if t.cursor >= len(t.flatList) {
		t.cursor = len(t.flatList) - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
}

// effectiveVisibleCount is the number of rows that fit under the header,
// leaving a line for the position indicator when the list scrolls.
func (t *TreeView) effectiveVisibleCount() int {
	visibleCount := t.height - 1
	if visibleCount <= 0 {
		visibleCount = 19
	}
	if len(t.flatList) > visibleCount {
		visibleCount--
	}
	if visibleCount < 1 {
		visibleCount = 1
	}
	return visibleCount
}

// visibleRange returns the [start, end) rows inside the viewport.
func (t *TreeView) visibleRange() (start, end int) {
	if len(t.flatList) == 0 {
		return 0, 0
	}
	visibleCount := t.effectiveVisibleCount()
	start = max(t.viewportOffset, 0)
	end = start + visibleCount
	if end > len(t.flatList) {
		end = len(t.flatList)
		start = max(end-visibleCount, 0)
	}
	return start, end
}

// ensureCursorVisible scrolls just enough to keep the cursor on screen.
func (t *TreeView) ensureCursorVisible() {
	if len(t.flatList) == 0 {
		t.viewportOffset = 0
		return
	}
	visibleCount := t.effectiveVisibleCount()
	if t.cursor < t.viewportOffset {
		t.viewportOffset = t.cursor
	}
	if t.cursor >= t.viewportOffset+visibleCount {
		t.viewportOffset = t.cursor - visibleCount + 1
	}
	maxOffset := max(len(t.flatList)-visibleCount, 0)
	t.viewportOffset = min(max(t.viewportOffset, 0), maxOffset)
}

// ViewportOffset returns the index of the first rendered row.
func (t *TreeView) ViewportOffset() int { return t.viewportOffset }
