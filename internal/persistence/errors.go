package persistence

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrMissingID = errors.New("record has no id")
)

// Error reports a mutation that no tier accepted
type Error struct {
	Op   string
	Kind string
	ID   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("persistence: %s %s %q: %v", e.Op, e.Kind, e.ID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
