package domain

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("task not found")

// ConstraintError reports a write the storage layer rejected.
type ConstraintError struct {
	Op  string
	Err error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s: storage rejected write: %v", e.Op, e.Err)
}
func (e *ConstraintError) Unwrap() error { return e.Err }

// MigrationError is fatal to opening a store. From and To name the step
// that failed; the schema is left at From.
type MigrationError struct {
	From int
	To   int
	Err  error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migrate schema %d->%d: %v", e.From, e.To, e.Err)
}
func (e *MigrationError) Unwrap() error { return e.Err }
