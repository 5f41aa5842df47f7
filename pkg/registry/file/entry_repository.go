package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prodfactory/flowsync/pkg/models"
	"github.com/prodfactory/flowsync/pkg/registry"
)

const entriesDir = "entries"

// EntryRepository stores registry entries as JSON files named after the
// bundle filename they track.
type EntryRepository struct {
	root string
}

func NewEntryRepository(root string) *EntryRepository {
	return &EntryRepository{root: root}
}

func (r *EntryRepository) dir() string {
	return filepath.Join(r.root, entriesDir)
}

// entryPath flattens the bundle filename into a stable file name.
func (r *EntryRepository) entryPath(filename string) string {
	safe := strings.ReplaceAll(filepath.Base(filename), string(filepath.Separator), "_")

	return filepath.Join(r.dir(), safe+".entry.json")
}

func (r *EntryRepository) GetAll(ctx context.Context) ([]*models.RegistryEntry, error) {
	files, err := os.ReadDir(r.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return make([]*models.RegistryEntry, 0), nil
		}

		return nil, fmt.Errorf("failed to read registry directory: %w", err)
	}

	entries := make([]*models.RegistryEntry, 0, len(files))

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".entry.json") {
			continue
		}

		entry, err := r.read(filepath.Join(r.dir(), file.Name()))
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Filename < entries[j].Filename })

	return entries, nil
}

func (r *EntryRepository) GetByFilename(ctx context.Context, filename string) (*models.RegistryEntry, error) {
	entry, err := r.read(r.entryPath(filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
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

	if err := os.MkdirAll(r.dir(), 0o755); err != nil {
		return registry.NewEntryError("Save", entry.Filename, err)
	}

	payload, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return registry.NewEntryError("Save", entry.Filename, err)
	}

	if err := os.WriteFile(r.entryPath(entry.Filename), payload, 0o644); err != nil {
		return registry.NewEntryError("Save", entry.Filename, err)
	}

	return nil
}

func (r *EntryRepository) Delete(ctx context.Context, filename string) error {
	err := os.Remove(r.entryPath(filename))
	if err != nil {
		if os.IsNotExist(err) {
			return registry.NewEntryError("Delete", filename, registry.ErrEntryNotFound)
		}

		return registry.NewEntryError("Delete", filename, err)
	}

	return nil
}

func (r *EntryRepository) Clear(ctx context.Context) (int, error) {
	entries, err := r.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	cleared := 0

	for _, entry := range entries {
		if err := r.Delete(ctx, entry.Filename); err != nil {
			return cleared, err
		}

		cleared++
	}

	return cleared, nil
}

func (r *EntryRepository) read(path string) (*models.RegistryEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entry models.RegistryEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode registry entry %s: %w", path, err)
	}

	return &entry, nil
}
