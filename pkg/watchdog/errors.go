package watchdog

import (
	"errors"
	"fmt"
)

// ErrNoFailSafe is reported on a trip when the watchdog has nothing to engage.
var ErrNoFailSafe = errors.New("watchdog: no fail-safe configured")

// PanicError wraps a value recovered from a panicking fail-safe.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("watchdog: fail-safe panicked: %v", e.Value)
}
