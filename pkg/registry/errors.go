// Package registry error types, shared by all persistence implementations.
package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrEntryNotFound indicates no registry entry exists for the filename.
	ErrEntryNotFound = errors.New("registry entry not found")

	// ErrDuplicateEntry indicates an entry with the same filename already
	// exists.
	ErrDuplicateEntry = errors.New("registry entry already exists")
)

// EntryError wraps entry-related storage errors with operation context.
type EntryError struct {
	Op       string // Operation being performed (e.g., "Save", "Delete")
	Filename string
	Err      error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s operation failed for registry entry %s: %v", e.Op, e.Filename, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

func (e *EntryError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewEntryError creates an entry error with context.
func NewEntryError(op, filename string, err error) *EntryError {
	return &EntryError{Op: op, Filename: filename, Err: err}
}

// IsEntryNotFound checks whether an error indicates a missing entry.
func IsEntryNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound)
}
