package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prodfactory/flowsync/pkg/registry"
)

const settingsFile = "settings.json"

// SettingsRepository stores the singleton settings document.
type SettingsRepository struct {
	root string
}

func NewSettingsRepository(root string) *SettingsRepository {
	return &SettingsRepository{root: root}
}

func (r *SettingsRepository) path() string {
	return filepath.Join(r.root, settingsFile)
}

func (r *SettingsRepository) Get(ctx context.Context) (*registry.Settings, error) {
	raw, err := os.ReadFile(r.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	var settings registry.Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	return &settings, nil
}

func (r *SettingsRepository) Save(ctx context.Context, settings *registry.Settings) error {
	settings.UpdatedAt = time.Now().UTC()

	if err := os.MkdirAll(r.root, 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	payload, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if err := os.WriteFile(r.path(), payload, 0o600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	return nil
}

func (r *SettingsRepository) Reset(ctx context.Context) error {
	err := os.Remove(r.path())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to reset settings: %w", err)
	}

	return nil
}
