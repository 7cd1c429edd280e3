package practice

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrInvalidState  = errors.New("invalid session state")
	ErrEmptyWordList = errors.New("word list is empty")
)

// InvalidStateError reports an operation invoked in a state that does not
// support it, e.g. reading the current word before a list is loaded.
type InvalidStateError struct {
	Op    string
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("practice: %s: not allowed in %s state", e.Op, e.State)
}

// Unwrap lets callers match with errors.Is(err, ErrInvalidState).
func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }
