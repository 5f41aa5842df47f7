// Package file provides file-based persistence for the import registry.
// Each entry is one JSON document under <root>/entries; settings live in a
// single settings.json. Suited to local development and tests.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/prodfactory/flowsync/pkg/registry"
)

// Persistence implements registry.Persistence on the file system.
type Persistence struct {
	root         string
	entryRepo    *EntryRepository
	settingsRepo *SettingsRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// A file:// prefix on the path is accepted and stripped.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		entryRepo:    NewEntryRepository(cleanRoot),
		settingsRepo: NewSettingsRepository(cleanRoot),
	}
}

func (p *Persistence) EntryRepository() registry.EntryRepository {
	return p.entryRepo
}

func (p *Persistence) SettingsRepository() registry.SettingsRepository {
	return p.settingsRepo
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close is a no-op for file persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}
