package checktree

import (
	"fmt"
	"strings"

	"github.com/vanderheijden86/checktree/pkg/model"
)

// Op names the mutation that produced a ChangeEvent.
type Op string

const (
	OpToggle          Op = "toggle"
	OpToggleSecondary Op = "toggle_secondary"
	OpExpand          Op = "expand"
	OpCollapse        Op = "collapse"
	OpExpandAll       Op = "expand_all"
	OpCollapseAll     Op = "collapse_all"
	OpQuery           Op = "query"
	OpRestore         Op = "restore"
)

// ChangeEvent is handed to the change callback after every mutation.
// Primary and Secondary are freshly computed status maps owned by the
// receiver.
type ChangeEvent struct {
	Op        Op
	NodeID    string
	Query     string
	Primary   map[string]model.CheckState
	Secondary map[string]model.CheckState
}

// ClearPolicy decides what happens to search-driven expansions when the
// query is cleared.
type ClearPolicy int

const (
	// ClearKeep leaves every expansion in place.
	ClearKeep ClearPolicy = iota
	// ClearRestore collapses nodes that were expanded by a search and not
	// touched by the user since.
	ClearRestore
	// ClearReset empties the expanded set.
	ClearReset
)

func (p ClearPolicy) String() string {
	switch p {
	case ClearKeep:
		return "keep"
	case ClearRestore:
		return "restore"
	case ClearReset:
		return "reset"
	default:
		return fmt.Sprintf("ClearPolicy(%d)", int(p))
	}
}

// ParseClearPolicy accepts "keep", "restore" or "reset" (case-insensitive).
// An empty string yields ClearKeep.
func ParseClearPolicy(s string) (ClearPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "keep":
		return ClearKeep, nil
	case "restore":
		return ClearRestore, nil
	case "reset":
		return ClearReset, nil
	default:
		return ClearKeep, fmt.Errorf("unknown clear policy %q (want keep, restore or reset)", s)
	}
}

// Option configures a Model.
type Option func(*Model)

// WithOnChange registers a callback invoked after every mutation.
func WithOnChange(fn func(ChangeEvent)) Option {
	return func(m *Model) {
		m.onChange = fn
	}
}

// WithClearPolicy sets the behavior of ApplyQuery("").
func WithClearPolicy(p ClearPolicy) Option {
	return func(m *Model) {
		m.clearPolicy = p
	}
}

// WithStrictLookup makes mutations on unknown ids fail with
// *model.NodeNotFoundError instead of being ignored.
func WithStrictLookup(strict bool) Option {
	return func(m *Model) {
		m.strict = strict
	}
}
