package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prodfactory/flowsync/pkg/models"
	"github.com/prodfactory/flowsync/pkg/registry"
)

// EntryRepository handles registry entry database operations.
type EntryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewEntryRepository(db *sql.DB, logger *slog.Logger) *EntryRepository {
	return &EntryRepository{db: db, logger: logger}
}

const entryColumns = `
	id
  , filename
  , local_version
  , n8n_workflow_id
  , is_active
  , import_status
  , last_import_at
  , last_error
  , created_at
  , updated_at
`

func (r *EntryRepository) GetAll(ctx context.Context) ([]*models.RegistryEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM registry_entries ORDER BY filename`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query registry entries: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.RegistryEntry, 0)

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registry entry: %w", err)
		}

		entries = append(entries, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating registry entries: %w", err)
	}

	return entries, nil
}

func (r *EntryRepository) GetByFilename(ctx context.Context, filename string) (*models.RegistryEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM registry_entries WHERE filename = $1`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, filename))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan registry entry: %w", err)
	}

	return entry, nil
}

func (r *EntryRepository) Save(ctx context.Context, entry *models.RegistryEntry) error {
	now := time.Now().UTC()

	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return registry.NewEntryError("Save", entry.Filename, err)
		}

		entry.ID = id.String()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}

	entry.UpdatedAt = now

	query := `
		INSERT INTO registry_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (filename) DO UPDATE SET
			local_version   = EXCLUDED.local_version
		  , n8n_workflow_id = EXCLUDED.n8n_workflow_id
		  , is_active       = EXCLUDED.is_active
		  , import_status   = EXCLUDED.import_status
		  , last_import_at  = EXCLUDED.last_import_at
		  , last_error      = EXCLUDED.last_error
		  , updated_at      = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Filename,
		entry.LocalVersion,
		nullString(entry.N8NWorkflowID),
		entry.IsActive,
		string(entry.ImportStatus),
		entry.LastImportAt,
		entry.LastError,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return registry.NewEntryError("Save", entry.Filename, err)
	}

	return nil
}

func (r *EntryRepository) Delete(ctx context.Context, filename string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM registry_entries WHERE filename = $1", filename)
	if err != nil {
		return registry.NewEntryError("Delete", filename, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return registry.NewEntryError("Delete", filename, err)
	}

	if affected == 0 {
		return registry.NewEntryError("Delete", filename, registry.ErrEntryNotFound)
	}

	return nil
}

func (r *EntryRepository) Clear(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM registry_entries")
	if err != nil {
		return 0, fmt.Errorf("failed to clear registry entries: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared registry entries: %w", err)
	}

	return int(affected), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (*models.RegistryEntry, error) {
	var (
		entry        models.RegistryEntry
		remoteID     sql.NullString
		lastImportAt sql.NullTime
		status       string
	)

	err := row.Scan(
		&entry.ID,
		&entry.Filename,
		&entry.LocalVersion,
		&remoteID,
		&entry.IsActive,
		&status,
		&lastImportAt,
		&entry.LastError,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.ImportStatus = models.ImportStatus(status)

	if remoteID.Valid {
		entry.N8NWorkflowID = remoteID.String
	}

	if lastImportAt.Valid {
		importedAt := lastImportAt.Time

		entry.LastImportAt = &importedAt
	}

	return &entry, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}

	return s
}
