package services_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodfactory/flowsync/pkg/bundle"
	"github.com/prodfactory/flowsync/pkg/drift"
	"github.com/prodfactory/flowsync/pkg/importer"
	"github.com/prodfactory/flowsync/pkg/lock"
	"github.com/prodfactory/flowsync/pkg/mocks"
	"github.com/prodfactory/flowsync/pkg/models"
	"github.com/prodfactory/flowsync/pkg/n8n"
	"github.com/prodfactory/flowsync/pkg/registry"
	"github.com/prodfactory/flowsync/pkg/registry/file"
	"github.com/prodfactory/flowsync/pkg/reset"
	"github.com/prodfactory/flowsync/pkg/services"
)

// busyLocker always reports the lock as held.
type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string, time.Duration) (lock.ReleaseFunc, error) {
	return nil, lock.ErrAlreadyLocked
}

type fixture struct {
	dir         string
	client      *mocks.N8NClient
	persistence registry.Persistence
	operations  *services.Operations
}

func newFixture(t *testing.T, locker lock.Locker) *fixture {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	loader := bundle.NewLoader(dir, logger)
	client := mocks.NewN8NClient()
	persistence := file.NewPersistence(t.TempDir())
	entries := persistence.EntryRepository()

	orchestrator := importer.NewOrchestrator(loader, client, entries, logger,
		importer.WithActivationPause(0))
	validator := importer.NewValidator(loader, nil, logger)
	reconciler := drift.NewReconciler(loader, client, entries, logger)
	controller := reset.NewController(client, entries, logger)

	return &fixture{
		dir:         dir,
		client:      client,
		persistence: persistence,
		operations: services.NewOperations(orchestrator, validator, reconciler, controller,
			persistence.SettingsRepository(), locker, logger),
	}
}

func writeWorkflow(t *testing.T, dir, filename, name string, deps ...string) {
	t.Helper()

	if deps == nil {
		deps = []string{}
	}

	dependencies, err := json.Marshal(deps)
	require.NoError(t, err)

	content := fmt.Sprintf(`{
		"name": %q,
		"nodes": [
			{"id": "n1", "name": "Webhook", "type": "n8n-nodes-base.webhook", "parameters": {"path": "p"}}
		],
		"connections": {},
		"dependencies": %s
	}`, name, dependencies)

	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o600))
}

func seedSettings(t *testing.T, persistence registry.Persistence) {
	t.Helper()

	require.NoError(t, persistence.SettingsRepository().Save(context.Background(), &registry.Settings{
		N8NBaseURL:    "https://n8n.example.com",
		N8NAPIKey:     "secret",
		SetupComplete: true,
	}))
}

func TestResetRequiresExactConfirmationPhrase(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name    string
		mode    string
		confirm string
	}{
		{"empty confirmation", "soft", ""},
		{"wrong phrase", "soft", "yes"},
		{"phrase for another mode", "full", "reset-soft"},
		{"case mismatch", "soft", "RESET-SOFT"},
		{"soft never bypasses confirmation", "soft", "reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.operations.Reset(context.Background(), services.ResetRequest{
				Mode:    tt.mode,
				Confirm: tt.confirm,
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, services.ErrConfirmationRequired)
			assert.True(t, services.IsValidationError(err))
		})
	}
}

func TestResetInvalidMode(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.operations.Reset(context.Background(), services.ResetRequest{
		Mode:    "nuke",
		Confirm: "reset-nuke",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrInvalidResetMode)
}

func TestResetClearConfigTouchesOnlySettings(t *testing.T) {
	f := newFixture(t, nil)
	seedSettings(t, f.persistence)

	require.NoError(t, f.persistence.EntryRepository().Save(context.Background(), &models.RegistryEntry{
		Filename:     "a.json",
		ImportStatus: models.ImportStatusPending,
	}))

	result, err := f.operations.Reset(context.Background(), services.ResetRequest{
		Mode:    "clear_config",
		Confirm: "reset-clear_config",
	})
	require.NoError(t, err)

	assert.True(t, result.SettingsReset)
	assert.Equal(t, 0, result.ClearedFromRegistry)
	assert.Equal(t, 0, result.DeletedFromN8N)

	settings, err := f.persistence.SettingsRepository().Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, settings)

	entries, err := f.persistence.EntryRepository().GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "registry entries survive clear_config")
}

func TestResetFactoryComposesFullPlusSettings(t *testing.T) {
	f := newFixture(t, nil)
	seedSettings(t, f.persistence)

	require.NoError(t, f.persistence.EntryRepository().Save(context.Background(), &models.RegistryEntry{
		Filename:      "a.json",
		N8NWorkflowID: "wf-a",
		ImportStatus:  models.ImportStatusImported,
	}))
	f.client.Seed(n8n.Workflow{ID: "wf-a", Name: "A"})

	result, err := f.operations.Reset(context.Background(), services.ResetRequest{
		Mode:    "factory",
		Confirm: "reset-factory",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ResetModeFactory, result.Mode)
	assert.Equal(t, 1, result.DeletedFromN8N)
	assert.Equal(t, 1, result.ClearedFromRegistry)
	assert.True(t, result.SettingsReset)

	settings, err := f.persistence.SettingsRepository().Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, settings)
}

func TestResetSoftPreservesSettingsByDefault(t *testing.T) {
	f := newFixture(t, nil)
	seedSettings(t, f.persistence)

	result, err := f.operations.Reset(context.Background(), services.ResetRequest{
		Mode:    "soft",
		Confirm: "reset-soft",
	})
	require.NoError(t, err)
	assert.False(t, result.SettingsReset)

	settings, err := f.persistence.SettingsRepository().Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, settings)
}

func TestResetFullClearsSettingsByDefault(t *testing.T) {
	f := newFixture(t, nil)
	seedSettings(t, f.persistence)

	result, err := f.operations.Reset(context.Background(), services.ResetRequest{
		Mode:    "full",
		Confirm: "reset-full",
	})
	require.NoError(t, err)
	assert.True(t, result.SettingsReset)

	settings, err := f.persistence.SettingsRepository().Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, settings)
}

func TestResetFullPreserveOverride(t *testing.T) {
	f := newFixture(t, nil)
	seedSettings(t, f.persistence)

	preserve := true
	result, err := f.operations.Reset(context.Background(), services.ResetRequest{
		Mode:              "full",
		Confirm:           "reset-full",
		PreserveN8NConfig: &preserve,
	})
	require.NoError(t, err)
	assert.False(t, result.SettingsReset)

	settings, err := f.persistence.SettingsRepository().Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, settings)
}

func TestSyncOrphanMatchingCanBeDisabled(t *testing.T) {
	f := newFixture(t, nil)
	writeWorkflow(t, f.dir, "a.json", "A")
	f.client.Seed(n8n.Workflow{
		ID:    "wf-orphan",
		Name:  "A",
		Nodes: []n8n.Node{{ID: "r1", Name: "Webhook", Type: "n8n-nodes-base.webhook"}},
	})

	includeOrphans := false
	result, err := f.operations.Sync(context.Background(), services.SyncRequest{
		Mode:           "pull",
		IncludeOrphans: &includeOrphans,
	})
	require.NoError(t, err)

	require.Len(t, result.Orphans, 1)
	assert.False(t, result.Orphans[0].MatchesBundle)
	assert.False(t, result.Orphans[0].Adopted)
}

func TestOperationsLockedMapsToConflict(t *testing.T) {
	f := newFixture(t, busyLocker{})
	writeWorkflow(t, f.dir, "a.json", "A")

	_, err := f.operations.ImportAll(context.Background(), services.BulkImportRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrOperationInProgress)
	assert.True(t, services.IsConflictError(err))

	_, err = f.operations.Sync(context.Background(), services.SyncRequest{Mode: "detect"})
	require.Error(t, err)
	assert.True(t, services.IsConflictError(err))

	_, err = f.operations.Reset(context.Background(), services.ResetRequest{
		Mode: "soft", Confirm: "reset-soft",
	})
	require.Error(t, err)
	assert.True(t, services.IsConflictError(err))
}

func TestSyncInvalidModeRejected(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.operations.Sync(context.Background(), services.SyncRequest{Mode: "yolo"})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrInvalidSyncMode)
}

func TestSyncDefaultsToDetect(t *testing.T) {
	f := newFixture(t, nil)
	writeWorkflow(t, f.dir, "a.json", "A")

	result, err := f.operations.Sync(context.Background(), services.SyncRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.SyncModeDetect, result.Mode)
}

func TestImportWorkflowRequiresFilename(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.operations.ImportWorkflow(context.Background(), services.ImportRequest{})
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestImportWorkflowEndToEnd(t *testing.T) {
	f := newFixture(t, nil)
	writeWorkflow(t, f.dir, "a.json", "A")

	result, err := f.operations.ImportWorkflow(context.Background(), services.ImportRequest{
		Filename: "a.json",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ImportOutcomeImported, result.Status)
	assert.NotEmpty(t, result.N8NWorkflowID)
}
