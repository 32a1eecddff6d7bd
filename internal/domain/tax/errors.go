package tax

import (
	"fmt"
	"strings"
)

// UnsupportedStateError is returned when a state code has no entry in the
// loaded snapshot. It carries the full supported list so callers can render
// guidance. State income tax never silently defaults; local and employer
// taxes fall back to zero/default config instead, since absence of a local
// tax is a valid real-world state.
type UnsupportedStateError struct {
	Code      string
	Supported []string
}

func (e *UnsupportedStateError) Error() string {
	return fmt.Sprintf("unsupported state %q (supported: %s)", e.Code, strings.Join(e.Supported, ", "))
}

// MissingFieldError marks a required employee field absent for the selected
// jurisdiction, such as a Maryland resident without a county.
type MissingFieldError struct {
	Field  string
	Detail string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q: %s", e.Field, e.Detail)
}

// InvariantError signals that rounding or cap math produced an impossible
// value. It is internal and never surfaced as business data.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("calculation invariant violated in %s: %s", e.Op, e.Detail)
}
