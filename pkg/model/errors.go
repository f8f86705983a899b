package model

import (
	"errors"
	"fmt"
	"strings"
)

// Reasons a tree can be rejected at construction time.
var (
	ErrDuplicateID = errors.New("duplicate node id")
	ErrCycle       = errors.New("cycle detected")
	ErrEmptyID     = errors.New("empty node id")
	ErrNilNode     = errors.New("nil node")
)

// ErrNodeNotFound is matched by NodeNotFoundError through errors.Is.
var ErrNodeNotFound = errors.New("node not found")

// MalformedTreeError reports input that cannot be turned into a tree model.
// Reason is one of the Err* sentinels above.
type MalformedTreeError struct {
	Reason error
	ID     string
	// Path holds the ids from a root down to the offending node, when known.
	Path []string
}

func (e *MalformedTreeError) Error() string {
	var sb strings.Builder
	sb.WriteString("malformed tree: ")
	sb.WriteString(e.Reason.Error())
	if e.ID != "" {
		fmt.Fprintf(&sb, " %q", e.ID)
	}
	if len(e.Path) > 0 {
		sb.WriteString(" (path: ")
		sb.WriteString(strings.Join(e.Path, " > "))
		sb.WriteString(")")
	}
	return sb.String()
}

func (e *MalformedTreeError) Unwrap() error { return e.Reason }

// NodeNotFoundError is returned by strict models for ids absent from the tree.
type NodeNotFoundError struct {
	ID string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node %q not found", e.ID)
}

func (e *NodeNotFoundError) Is(target error) bool {
	return target == ErrNodeNotFound
}
