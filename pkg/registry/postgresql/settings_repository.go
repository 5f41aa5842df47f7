package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prodfactory/flowsync/pkg/registry"
)

// SettingsRepository stores the singleton settings row.
type SettingsRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSettingsRepository(db *sql.DB, logger *slog.Logger) *SettingsRepository {
	return &SettingsRepository{db: db, logger: logger}
}

func (r *SettingsRepository) Get(ctx context.Context) (*registry.Settings, error) {
	query := `
		SELECT n8n_base_url, n8n_api_key, setup_complete, updated_at
		FROM registry_settings
		WHERE id = 1
	`

	var settings registry.Settings

	err := r.db.QueryRowContext(ctx, query).Scan(
		&settings.N8NBaseURL,
		&settings.N8NAPIKey,
		&settings.SetupComplete,
		&settings.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to query settings: %w", err)
	}

	return &settings, nil
}

func (r *SettingsRepository) Save(ctx context.Context, settings *registry.Settings) error {
	settings.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO registry_settings (id, n8n_base_url, n8n_api_key, setup_complete, updated_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			n8n_base_url   = EXCLUDED.n8n_base_url
		  , n8n_api_key    = EXCLUDED.n8n_api_key
		  , setup_complete = EXCLUDED.setup_complete
		  , updated_at     = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		settings.N8NBaseURL,
		settings.N8NAPIKey,
		settings.SetupComplete,
		settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	return nil
}

func (r *SettingsRepository) Reset(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM registry_settings WHERE id = 1")
	if err != nil {
		return fmt.Errorf("failed to reset settings: %w", err)
	}

	return nil
}
