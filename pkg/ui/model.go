// Package ui implements the ct terminal interface on Bubble Tea.
package ui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/checktree/pkg/checktree"
	"github.com/vanderheijden86/checktree/pkg/config"
	"github.com/vanderheijden86/checktree/pkg/debug"
	"github.com/vanderheijden86/checktree/pkg/loader"
	"github.com/vanderheijden86/checktree/pkg/metrics"
	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/watcher"
)

// FileChangedMsg is sent when the tree file changes on disk.
type FileChangedMsg struct{}

// FileWatchErrorMsg carries a watcher error, such as the tree file being
// removed.
type FileWatchErrorMsg struct{ Err error }

// WatchFileCmd waits for the next change or error from w.
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-w.Changed():
			return FileChangedMsg{}
		case err := <-w.Errors():
			return FileWatchErrorMsg{Err: err}
		}
	}
}

// Options configures a Model.
type Options struct {
	Config config.Config
	// TreePath is the file the tree was loaded from. Empty for the demo tree;
	// reloads are disabled then.
	TreePath string
	// StatePath is the session file. Empty disables persistence.
	StatePath string
	// Query is applied once at startup.
	Query   string
	Watcher *watcher.Watcher
	// Clipboard replaces the system clipboard, mainly for tests.
	Clipboard func(string) error
}

// sessionSaver persists the sets after every change. It is shared by
// pointer so the value-typed Model can be copied freely by Bubble Tea.
type sessionSaver struct {
	path string
	tree *checktree.Model
}

func (s *sessionSaver) onChange(ev checktree.ChangeEvent) {
	if s.path == "" || s.tree == nil || ev.Op == checktree.OpQuery {
		return
	}
	SaveSessionState(s.path, CaptureSession(s.tree))
}

// Model is the top-level Bubble Tea model.
type Model struct {
	tree   TreeView
	keys   KeyMap
	theme  Theme
	cfg    config.Config
	search textinput.Model
	help   viewport.Model

	searching bool
	showHelp  bool

	treePath  string
	session   *sessionSaver
	watcher   *watcher.Watcher
	clipboard func(string) error

	statusMsg     string
	statusIsError bool
	width         int
	height        int
}

// NewModel builds the tree model from roots and wraps it in the UI. A saved
// session, when enabled and present, is restored before the first frame.
func NewModel(roots []*model.Node, opts Options) (Model, error) {
	session := &sessionSaver{}
	if opts.Config.UI.PersistState {
		session.path = opts.StatePath
	}
	tm, err := newTreeModel(roots, opts.Config, session)
	if err != nil {
		return Model{}, err
	}
	if state := LoadSessionState(session.path); state != nil {
		state.Apply(tm)
		debug.Log("ui: restored session from %s", session.path)
	}
	session.tree = tm

	theme := DefaultTheme(lipgloss.DefaultRenderer())

	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "search labels"
	ti.CharLimit = 256
	ti.PromptStyle = theme.SearchPrompt

	m := Model{
		tree:      NewTreeView(tm, theme),
		keys:      DefaultKeyMap(),
		theme:     theme,
		cfg:       opts.Config,
		search:    ti,
		help:      viewport.New(80, 20),
		treePath:  opts.TreePath,
		session:   session,
		watcher:   opts.Watcher,
		clipboard: opts.Clipboard,
	}
	if m.clipboard == nil {
		m.clipboard = clipboard.WriteAll
	}
	m.tree.SetColumns(opts.Config.UI.ShowSecondary, opts.Config.UI.PrimaryLabel, opts.Config.UI.SecondaryLabel)
	if opts.Query != "" {
		m.tree.SetQuery(opts.Query)
		m.search.SetValue(opts.Query)
	}
	return m, nil
}

func newTreeModel(roots []*model.Node, cfg config.Config, session *sessionSaver) (*checktree.Model, error) {
	opts := append(cfg.ModelOptions(), checktree.WithOnChange(session.onChange))
	return checktree.New(roots, opts...)
}

// Tree returns the underlying tree model.
func (m Model) Tree() *checktree.Model { return m.tree.Tree() }

// TreeView returns the tree view, mainly for tests.
func (m Model) TreeView() *TreeView { return &m.tree }

// StatusMessage returns the footer message and whether it is an error.
func (m Model) StatusMessage() (string, bool) { return m.statusMsg, m.statusIsError }

// Stop releases the file watcher.
func (m Model) Stop() {
	if m.watcher != nil {
		m.watcher.Stop()
	}
}

func (m Model) Init() tea.Cmd {
	if m.watcher != nil {
		return WatchFileCmd(m.watcher)
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.tree.SetSize(msg.Width, max(msg.Height-1, 1))
		m.help.Width = msg.Width
		m.help.Height = max(msg.Height-1, 1)
		if m.showHelp {
			m.help.SetContent(m.renderHelp())
		}
		return m, nil

	case FileChangedMsg:
		m.reload()
		if m.watcher != nil {
			return m, WatchFileCmd(m.watcher)
		}
		return m, nil

	case FileWatchErrorMsg:
		m.statusMsg = fmt.Sprintf("Watch error: %v", msg.Err)
		m.statusIsError = true
		if m.watcher != nil {
			return m, WatchFileCmd(m.watcher)
		}
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			return m.updateHelp(msg)
		}
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateTree(msg)
	}
	return m, nil
}

func (m Model) updateHelp(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Help), key.Matches(msg, m.keys.Clear), msg.String() == "q":
		m.showHelp = false
		return m, nil
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.help, cmd = m.help.Update(msg)
	return m, cmd
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		m.setMatchStatus()
		return m, nil
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		m.clearQuery()
		return m, nil
	case tea.KeyCtrlC:
		return m, tea.Quit
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if after := m.search.Value(); after != before {
		m.tree.SetQuery(after)
		m.setMatchStatus()
	}
	return m, cmd
}

func (m Model) updateTree(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.statusIsError = false
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.tree.MoveUp()
	case key.Matches(msg, m.keys.Down):
		m.tree.MoveDown()
	case key.Matches(msg, m.keys.Left):
		m.tree.CollapseOrJumpToParent()
	case key.Matches(msg, m.keys.Right):
		m.tree.ExpandOrMoveToChild()
	case key.Matches(msg, m.keys.PageUp):
		m.tree.PageUp()
	case key.Matches(msg, m.keys.PageDown):
		m.tree.PageDown()
	case key.Matches(msg, m.keys.Top):
		m.tree.JumpToTop()
	case key.Matches(msg, m.keys.Bottom):
		m.tree.JumpToBottom()
	case key.Matches(msg, m.keys.ToggleExpand):
		m.tree.ToggleExpand()
	case key.Matches(msg, m.keys.ToggleAll):
		if m.tree.ToggleExpandAll() {
			m.statusMsg = "Expanded all"
		} else {
			m.statusMsg = "Collapsed all"
		}
	case key.Matches(msg, m.keys.TogglePrimary):
		m.toggle(model.LayerPrimary)
	case key.Matches(msg, m.keys.ToggleSecondary):
		if m.cfg.UI.ShowSecondary {
			m.toggle(model.LayerSecondary)
		}
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.search.SetValue(m.tree.Query())
		m.search.CursorEnd()
		cmd := m.search.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.NextMatch):
		m.tree.NextMatch()
		m.setMatchStatus()
	case key.Matches(msg, m.keys.PrevMatch):
		m.tree.PrevMatch()
		m.setMatchStatus()
	case key.Matches(msg, m.keys.Clear):
		if m.tree.Query() != "" {
			m.clearQuery()
		}
	case key.Matches(msg, m.keys.CopyID):
		if id := m.tree.SelectedID(); id != "" {
			m.copyToClipboard(id, fmt.Sprintf("Copied %s to clipboard", id))
		}
	case key.Matches(msg, m.keys.CopyChecked):
		ids := m.checkedIDs()
		if len(ids) == 0 {
			m.statusMsg = "Nothing checked"
			break
		}
		m.copyToClipboard(strings.Join(ids, "\n"), fmt.Sprintf("Copied %d checked ids to clipboard", len(ids)))
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		m.help.SetContent(m.renderHelp())
		m.help.GotoTop()
	}
	return m, nil
}

func (m *Model) toggle(layer model.Layer) {
	if err := m.tree.ToggleLayer(layer); err != nil {
		m.statusMsg = err.Error()
		m.statusIsError = true
		return
	}
	m.statusMsg = ""
}

func (m *Model) clearQuery() {
	m.search.SetValue("")
	m.tree.SetQuery("")
	m.statusMsg = fmt.Sprintf("Search cleared (%s)", m.cfg.ClearPolicy())
}

func (m *Model) setMatchStatus() {
	switch {
	case m.tree.Query() == "":
		m.statusMsg = ""
	case m.tree.MatchCount() == 0:
		m.statusMsg = "No matches"
	default:
		m.statusMsg = fmt.Sprintf("Match %d/%d", m.tree.MatchIndex()+1, m.tree.MatchCount())
	}
}

// checkedIDs returns the ids whose primary status is checked, in pre-order.
func (m Model) checkedIDs() []string {
	tm := m.tree.Tree()
	return derivedChecked(tm, tm.Checked())
}

// derivedChecked lists the ids whose evaluated status over set is checked.
// Raw membership is not enough: an interior id stays in the set after one of
// its descendants is cleared.
func derivedChecked(tm *checktree.Model, set checktree.IDSet) []string {
	statuses := checktree.EvaluateAll(tm.Index(), set)
	var out []string
	for _, id := range tm.IDs() {
		if statuses[id] == model.StatusChecked {
			out = append(out, id)
		}
	}
	return out
}

func (m *Model) copyToClipboard(text, ok string) {
	if err := m.clipboard(text); err != nil {
		m.statusMsg = fmt.Sprintf("Clipboard error: %v", err)
		m.statusIsError = true
		return
	}
	m.statusMsg = ok
}

// reload re-reads the tree file and carries the current sets and query over
// to the new tree. Ids that disappeared are dropped.
func (m *Model) reload() {
	if m.treePath == "" {
		return
	}
	defer debug.LogEnterExit("reload " + m.treePath)()
	old := m.tree.Tree()

	var warnings []string
	roots, err := loader.LoadFileWithOptions(m.treePath, loader.ParseOptions{
		WarningHandler: func(msg string) { warnings = append(warnings, msg) },
	})
	if err != nil {
		m.statusMsg = fmt.Sprintf("Reload error: %v", err)
		m.statusIsError = true
		return
	}
	tm, err := newTreeModel(roots, m.cfg, m.session)
	if err != nil {
		m.statusMsg = fmt.Sprintf("Reload error: %v", err)
		m.statusIsError = true
		return
	}

	// Detach persistence until the new tree carries the old state, so a
	// half-restored tree is never written.
	// Ancestors the query opened are left out of the restored set so that
	// ApplyQuery marks them again and the clear policy still sees them.
	m.session.tree = nil
	expanded := old.Expanded()
	for id := range old.SearchExpanded() {
		expanded.Remove(id)
	}
	tm.Restore(old.Checked().Sorted(), old.SecondaryChecked().Sorted(), expanded.Sorted())
	if q := old.Query(); q != "" {
		tm.ApplyQuery(q)
	}
	m.session.tree = tm
	SaveSessionState(m.session.path, CaptureSession(tm))

	m.tree.SetTree(tm)
	metrics.Reloads.Add(1)
	m.statusMsg = fmt.Sprintf("Reloaded %d nodes", tm.Len())
	if len(warnings) > 0 {
		m.statusMsg += fmt.Sprintf(" (%d warnings)", len(warnings))
	}
	m.statusIsError = false
	if debug.Enabled() {
		debug.Log("%s", metrics.Summary())
	}
}

func (m Model) renderHelp() string {
	return renderHelp(m.keys, m.primaryTitle(), m.secondaryTitle(), m.width)
}

func (m Model) primaryTitle() string {
	if m.cfg.UI.PrimaryLabel != "" {
		return m.cfg.UI.PrimaryLabel
	}
	return "Include"
}

func (m Model) secondaryTitle() string {
	if m.cfg.UI.SecondaryLabel != "" {
		return m.cfg.UI.SecondaryLabel
	}
	return "Watch"
}

func (m Model) View() string {
	if m.showHelp {
		return m.help.View() + "\n" + m.theme.MutedText.Render(" ↑/↓ scroll • esc close")
	}
	return m.tree.View() + "\n" + m.renderStatusBar()
}

func (m Model) renderStatusBar() string {
	if m.searching {
		info := ""
		switch {
		case m.tree.MatchCount() > 0:
			info = fmt.Sprintf(" [%d/%d]", m.tree.MatchIndex()+1, m.tree.MatchCount())
		case m.search.Value() != "":
			info = " [no matches]"
		}
		return m.search.View() + m.theme.MutedText.Render(info)
	}

	tm := m.tree.Tree()
	counts := fmt.Sprintf(" %s %d/%d", m.primaryTitle(), len(derivedChecked(tm, tm.Checked())), tm.Len())
	if m.cfg.UI.ShowSecondary {
		counts += fmt.Sprintf(" • %s %d/%d", m.secondaryTitle(), len(derivedChecked(tm, tm.SecondaryChecked())), tm.Len())
	}
	if q := tm.Query(); q != "" {
		counts += fmt.Sprintf(" • /%s", q)
	}

	bar := m.theme.Renderer.NewStyle().Background(ThemeBg("#282A36")).Foreground(ThemeFg("#F8F8F2"))
	left := bar.Render(counts)

	var right string
	switch {
	case m.statusMsg != "" && m.statusIsError:
		right = m.theme.StatusError.Render(m.statusMsg)
	case m.statusMsg != "":
		right = m.theme.StatusText.Render(m.statusMsg)
	default:
		right = m.theme.MutedText.Render(shortHelpLine(m.keys.ShortHelp()))
	}
	return left + "  " + right
}

