package model

import "fmt"

// Status is the aggregate checked state of a node.
type Status int

const (
	StatusUnchecked Status = iota
	StatusChecked
	StatusIndeterminate
)

func (s Status) String() string {
	switch s {
	case StatusUnchecked:
		return "unchecked"
	case StatusChecked:
		return "checked"
	case StatusIndeterminate:
		return "indeterminate"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	switch s {
	case StatusUnchecked, StatusChecked, StatusIndeterminate:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("invalid status %d", int(s))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unchecked":
		*s = StatusUnchecked
	case "checked":
		*s = StatusChecked
	case "indeterminate":
		*s = StatusIndeterminate
	default:
		return fmt.Errorf("unknown status %q", string(text))
	}
	return nil
}

// State converts the status into the {checked, indeterminate} pair handed to
// change listeners and exporters.
func (s Status) State() CheckState {
	return CheckState{
		Checked:       s == StatusChecked,
		Indeterminate: s == StatusIndeterminate,
	}
}

// CheckState is the externally visible checkbox state of a node.
type CheckState struct {
	Checked       bool `json:"checked"`
	Indeterminate bool `json:"indeterminate"`
}

// Status converts the pair back into a Status.
func (c CheckState) Status() Status {
	switch {
	case c.Indeterminate:
		return StatusIndeterminate
	case c.Checked:
		return StatusChecked
	default:
		return StatusUnchecked
	}
}

// Layer selects one of the two independent boolean attributes tracked per node.
type Layer int

const (
	LayerPrimary Layer = iota
	LayerSecondary
)

func (l Layer) String() string {
	switch l {
	case LayerPrimary:
		return "primary"
	case LayerSecondary:
		return "secondary"
	default:
		return fmt.Sprintf("layer(%d)", int(l))
	}
}
