package lockstore

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is matched by errors for addresses that have no lock record.
	ErrNotFound = errors.New("lock record not found")

	// ErrMalformed is matched by errors for stores whose table is unusable.
	ErrMalformed = errors.New("malformed lock store")
)

// NotFoundError reports every requested address that is missing from the store.
type NotFoundError struct {
	Addresses []string
	Location  string
}

func (e *NotFoundError) Error() string {
	quoted := make([]string, len(e.Addresses))
	for i, a := range e.Addresses {
		quoted[i] = fmt.Sprintf("%q", a)
	}
	noun := "testbench"
	if len(e.Addresses) > 1 {
		noun = "testbenches"
	}
	return fmt.Sprintf("%s %s not found in lock store %q", noun, strings.Join(quoted, ", "), e.Location)
}

// Is reports ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// MalformedError describes why a store cannot be bound.
type MalformedError struct {
	Location string
	Reason   string
	Err      error
}

func (e *MalformedError) Error() string {
	msg := fmt.Sprintf("lock store %q is malformed: %s", e.Location, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports ErrMalformed.
func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

func (e *MalformedError) Unwrap() error { return e.Err }
