// Package registry provides the data storage abstraction for the local
// import registry: one entry per bundled workflow recording its last-known
// remote state, plus the stored remote connection settings.
package registry

import (
	"context"
	"time"

	"github.com/prodfactory/flowsync/pkg/models"
)

// Persistence is the storage contract. Implementations exist for the file
// system and PostgreSQL.
type Persistence interface {
	EntryRepository() EntryRepository
	SettingsRepository() SettingsRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// EntryRepository stores registry entries keyed by bundle filename.
type EntryRepository interface {
	GetAll(ctx context.Context) ([]*models.RegistryEntry, error)
	// GetByFilename returns (nil, nil) when no entry exists.
	GetByFilename(ctx context.Context, filename string) (*models.RegistryEntry, error)
	Save(ctx context.Context, entry *models.RegistryEntry) error
	Delete(ctx context.Context, filename string) error
	// Clear removes every entry and returns how many were removed.
	Clear(ctx context.Context) (int, error)
}

// Settings holds the remote connection configuration and setup flags.
type Settings struct {
	N8NBaseURL    string    `json:"n8n_base_url"`
	N8NAPIKey     string    `json:"n8n_api_key"`
	SetupComplete bool      `json:"setup_complete"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Configured reports whether the settings carry a usable remote connection.
func (s *Settings) Configured() bool {
	return s != nil && s.N8NBaseURL != "" && s.N8NAPIKey != ""
}

// SettingsRepository stores the singleton settings record.
type SettingsRepository interface {
	// Get returns (nil, nil) when no settings have been saved yet.
	Get(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, settings *Settings) error
	// Reset clears the stored settings entirely.
	Reset(ctx context.Context) error
}
