package models

// SyncMode selects how much the drift reconciler is allowed to mutate.
type SyncMode string

const (
	// SyncModeDetect reports drift without mutating the registry or the
	// remote instance, except for reflecting observed remote activation
	// state, which is always safe.
	SyncModeDetect SyncMode = "detect"
	// SyncModePull additionally adopts matching orphans into the registry.
	SyncModePull SyncMode = "pull"
	// SyncModeReconcile additionally resets entries whose remote workflow
	// was deleted so they become re-importable.
	SyncModeReconcile SyncMode = "reconcile"
)

// Valid reports whether the mode is one of the known sync modes.
func (m SyncMode) Valid() bool {
	return m == SyncModeDetect || m == SyncModePull || m == SyncModeReconcile
}

// Orphan is a remote workflow with no corresponding local registry entry.
type Orphan struct {
	N8NWorkflowID  string `json:"n8n_workflow_id"`
	Name           string `json:"name"`
	Active         bool   `json:"active"`
	MatchesBundle  bool   `json:"matches_bundle"`
	BundleFilename string `json:"bundle_filename,omitempty"`
	Adopted        bool   `json:"adopted"`
}

// Conflict is a finding that requires explicit operator choice: an orphan
// whose name matches a bundled workflow but whose content differs, or a
// duplicate of a workflow the registry already tracks.
type Conflict struct {
	Name          string `json:"name"`
	N8NWorkflowID string `json:"n8n_workflow_id,omitempty"`
	Reason        string `json:"reason"`
}

// SyncResult is the outcome of one drift reconciliation run. Orphans and
// conflicts are findings, not errors. Pulled counts only orphans adopted
// into the registry; entry resets after a remote deletion stay in Deleted.
type SyncResult struct {
	Mode         SyncMode   `json:"mode"`
	Total        int        `json:"total"`
	Synced       int        `json:"synced"`
	Deleted      int        `json:"deleted"`
	StateChanged int        `json:"state_changed"`
	Pulled       int        `json:"pulled"`
	Errors       []string   `json:"errors,omitempty"`
	Orphans      []Orphan   `json:"orphans,omitempty"`
	Conflicts    []Conflict `json:"conflicts,omitempty"`
	Messages     []string   `json:"messages,omitempty"`
}
