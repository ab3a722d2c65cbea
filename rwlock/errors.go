//go:build !solution

package rwlock

import (
	"errors"
	"fmt"
)

// ErrInterrupted is matched by every *InterruptedError.
var ErrInterrupted = errors.New("rwlock: interrupted while waiting")

// InterruptedError is the panic value of an acquire call whose context was
// done while the goroutine was waiting for the gate. The acquisition is not
// retried and the gate is not held.
type InterruptedError struct {
	Lock string
	Mode Mode
	Err  error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("rwlock %q: interrupted while waiting for %s gate: %v", e.Lock, e.Mode, e.Err)
}

// Unwrap makes errors.Is match both ErrInterrupted and the context error.
func (e *InterruptedError) Unwrap() []error {
	return []error{ErrInterrupted, e.Err}
}
