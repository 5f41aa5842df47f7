package n8n

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the remote workflow does not exist.
var ErrNotFound = errors.New("workflow not found on n8n instance")

// ErrNotConfigured indicates the remote connection settings are missing or
// incomplete. This is an aggregate error: operations short-circuit on it
// before any per-item work.
var ErrNotConfigured = errors.New("n8n connection is not configured")

// APIError is an application-level rejection from the n8n API, e.g. a
// validation failure on a read-only field. Transport failures are plain
// wrapped errors instead.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("n8n API error: %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Is maps 404 responses onto ErrNotFound so callers can use errors.Is.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}

// IsNotFound checks whether an error indicates a missing remote workflow.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNotConfigured checks whether an error indicates missing connection
// settings.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}
