package models

// ResetMode selects the blast radius of a reset operation.
type ResetMode string

const (
	// ResetModeSoft clears the local registry only; the remote instance is
	// untouched. "Start the import over."
	ResetModeSoft ResetMode = "soft"
	// ResetModeFull deactivates and deletes every tracked remote workflow,
	// then clears the local registry. "Leave no trace."
	ResetModeFull ResetMode = "full"
	// ResetModeClearConfig clears the stored remote connection settings only.
	ResetModeClearConfig ResetMode = "clear_config"
	// ResetModeFactory is a full reset plus settings clearing.
	ResetModeFactory ResetMode = "factory"
)

// Valid reports whether the mode is one of the known reset modes.
func (m ResetMode) Valid() bool {
	switch m {
	case ResetModeSoft, ResetModeFull, ResetModeClearConfig, ResetModeFactory:
		return true
	}

	return false
}

// ResetResult is the bookkeeping of one reset run. Individual remote failures
// accumulate in Errors and never halt the teardown loop.
type ResetResult struct {
	Mode                ResetMode `json:"mode"`
	DeletedFromN8N      int       `json:"deleted_from_n8n"`
	ClearedFromRegistry int       `json:"cleared_from_registry"`
	SettingsReset       bool      `json:"settings_reset"`
	Errors              []string  `json:"errors,omitempty"`
	Warnings            []string  `json:"warnings,omitempty"`
}

// Success reports whether the reset completed without errors. Warnings do
// not affect success.
func (r *ResetResult) Success() bool {
	return len(r.Errors) == 0
}
