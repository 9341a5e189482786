package parallel

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrClosed         = errors.New("thread pool is closed")
	ErrThreadStart    = errors.New("failed to start worker thread")
	ErrInvalidOptions = errors.New("invalid thread pool options")
)

// PanicError reports a panic raised by a block callable.
// Range is the [start, end) sub-range the block was executing.
type PanicError struct {
	Value any    // Value passed to panic.
	Stack []byte // Stack of the panicking goroutine.
	Range [2]int // Block range, [0, 0] for scheduled work.
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	if e.Range[0] == 0 && e.Range[1] == 0 {
		return fmt.Sprintf("scheduled task panicked: %v", e.Value)
	}
	return fmt.Sprintf("block [%d, %d) panicked: %v", e.Range[0], e.Range[1], e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
