package models

import "time"

// ImportStatus represents the lifecycle state of a registry entry.
type ImportStatus string

const (
	ImportStatusPending          ImportStatus = "pending"           // Never imported, or reset for re-import
	ImportStatusImporting        ImportStatus = "importing"         // Create/update call in flight
	ImportStatusCreated          ImportStatus = "created"           // Created remotely, not yet activated
	ImportStatusUpdating         ImportStatus = "updating"          // Update call in flight
	ImportStatusImported         ImportStatus = "imported"          // Created/updated and activated
	ImportStatusActivationFailed ImportStatus = "activation_failed" // Exists remotely, activation rejected
	ImportStatusFailed           ImportStatus = "failed"            // Create/update rejected
	ImportStatusUpdateAvailable  ImportStatus = "update_available"  // Bundle version differs from last import
)

// RequiresRemoteID reports whether the status implies a non-empty remote
// workflow id on the entry. The invariant goes both ways: an entry has a
// remote id exactly when its status is one of these.
func (s ImportStatus) RequiresRemoteID() bool {
	switch s {
	case ImportStatusCreated, ImportStatusImported, ImportStatusUpdating,
		ImportStatusActivationFailed, ImportStatusUpdateAvailable:
		return true
	case ImportStatusPending, ImportStatusImporting, ImportStatusFailed:
		return false
	}

	return false
}

// RegistryEntry is the persisted record of one bundled workflow's import
// state. Entries are created on first import attempt, updated on every
// import/sync/reset, and only deleted by the reset controller.
type RegistryEntry struct {
	ID            string       `json:"id"`
	Filename      string       `json:"filename"      validate:"required"`
	LocalVersion  string       `json:"local_version"`
	N8NWorkflowID string       `json:"n8n_workflow_id,omitempty"`
	IsActive      bool         `json:"is_active"`
	ImportStatus  ImportStatus `json:"import_status" validate:"required"`
	LastImportAt  *time.Time   `json:"last_import_at,omitempty"`
	LastError     string       `json:"last_error,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// HasRemoteID reports whether the entry points at a remote workflow.
func (e *RegistryEntry) HasRemoteID() bool {
	return e.N8NWorkflowID != ""
}

// Consistent reports whether the entry satisfies the remote-id/status
// invariant.
func (e *RegistryEntry) Consistent() bool {
	return e.HasRemoteID() == e.ImportStatus.RequiresRemoteID()
}
