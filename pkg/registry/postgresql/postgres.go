// Package postgresql provides PostgreSQL persistence for the import
// registry.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver
	"github.com/prodfactory/flowsync/pkg/registry"
	"github.com/prodfactory/flowsync/pkg/registry/sqlbase"
)

// Persistence implements registry.Persistence on PostgreSQL.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	entryRepo    *EntryRepository
	settingsRepo *SettingsRepository
}

// NewPersistence opens a connection, runs migrations, and returns the
// persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:           database,
		logger:       logger,
		entryRepo:    NewEntryRepository(database, logger),
		settingsRepo: NewSettingsRepository(database, logger),
	}, nil
}

func (p *Persistence) EntryRepository() registry.EntryRepository {
	return p.entryRepo
}

func (p *Persistence) SettingsRepository() registry.SettingsRepository {
	return p.settingsRepo
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
