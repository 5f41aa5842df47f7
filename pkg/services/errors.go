// Package services provides the application service layer: request
// validation, confirmation gating, operation serialization, and the mapping
// of engine errors onto client-facing error classes.
package services

import (
	"errors"
	"fmt"

	"github.com/prodfactory/flowsync/pkg/bundle"
	"github.com/prodfactory/flowsync/pkg/importer"
	"github.com/prodfactory/flowsync/pkg/lock"
)

// Business logic errors. Validation errors map to 400 responses, conflicts
// to 409.
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest       = errors.New("invalid request")
	ErrFilenameRequired     = errors.New("workflow filename is required")
	ErrInvalidSyncMode      = errors.New("invalid sync mode")
	ErrInvalidResetMode     = errors.New("invalid reset mode")
	ErrConfirmationRequired = errors.New("reset requires an explicit confirmation phrase")
	ErrBaseURLRequired      = errors.New("n8n base URL is required")
	ErrAPIKeyRequired       = errors.New("n8n API key is required")

	// Business logic conflicts (409 Conflict).
	ErrOperationInProgress = errors.New("another operation is already in progress")
	ErrNotConfigured       = errors.New("n8n connection is not configured")
	ErrCyclicDependencies  = importer.ErrCyclicDependencies

	// ErrWorkflowNotFound is returned when no bundled definition exists for
	// the requested filename.
	ErrWorkflowNotFound = bundle.ErrDefinitionNotFound
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrFilenameRequired) ||
		errors.Is(err, ErrInvalidSyncMode) ||
		errors.Is(err, ErrInvalidResetMode) ||
		errors.Is(err, ErrConfirmationRequired) ||
		errors.Is(err, ErrBaseURLRequired) ||
		errors.Is(err, ErrAPIKeyRequired)
}

// IsConflictError checks if an error should map to HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrOperationInProgress) ||
		errors.Is(err, ErrNotConfigured) ||
		errors.Is(err, ErrCyclicDependencies) ||
		errors.Is(err, lock.ErrAlreadyLocked)
}

// IsNotFoundError checks if an error should map to HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}
