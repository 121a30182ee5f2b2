package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a request id is unknown
var ErrNotFound = errors.New("request not found")

// PersistenceError reports an I/O failure writing or reading the request
// store or the audit log. Failures are surfaced to the caller, never
// retried.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
