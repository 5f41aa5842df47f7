package reset_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodfactory/flowsync/pkg/mocks"
	"github.com/prodfactory/flowsync/pkg/models"
	"github.com/prodfactory/flowsync/pkg/n8n"
	"github.com/prodfactory/flowsync/pkg/registry"
	"github.com/prodfactory/flowsync/pkg/registry/file"
	"github.com/prodfactory/flowsync/pkg/reset"
)

type fixture struct {
	client     *mocks.N8NClient
	entries    registry.EntryRepository
	controller *reset.Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	client := mocks.NewN8NClient()
	entries := file.NewPersistence(t.TempDir()).EntryRepository()

	return &fixture{
		client:     client,
		entries:    entries,
		controller: reset.NewController(client, entries, logger),
	}
}

func (f *fixture) seed(t *testing.T, filename, remoteID string, active bool) {
	t.Helper()

	require.NoError(t, f.entries.Save(context.Background(), &models.RegistryEntry{
		Filename:      filename,
		N8NWorkflowID: remoteID,
		IsActive:      active,
		ImportStatus:  models.ImportStatusImported,
	}))

	if remoteID != "" {
		f.client.Seed(n8n.Workflow{ID: remoteID, Name: filename, Active: active})
	}
}

func TestSoftResetLeavesRemoteUntouched(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a.json", "wf-a", true)
	f.seed(t, "b.json", "wf-b", false)

	result, err := f.controller.Reset(context.Background(), models.ResetModeSoft)
	require.NoError(t, err)

	assert.True(t, result.Success())
	assert.Equal(t, 0, result.DeletedFromN8N)
	assert.Equal(t, 2, result.ClearedFromRegistry)

	assert.Empty(t, f.client.CallsOf("delete"))
	assert.Empty(t, f.client.CallsOf("deactivate"))
	assert.NotNil(t, f.client.Stored("wf-a"), "remote workflows survive a soft reset")

	entries, err := f.entries.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFullResetDeactivatesThenDeletes(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a.json", "wf-a", true)
	f.seed(t, "b.json", "wf-b", false)

	result, err := f.controller.Reset(context.Background(), models.ResetModeFull)
	require.NoError(t, err)

	assert.True(t, result.Success())
	assert.Equal(t, 2, result.DeletedFromN8N)
	assert.Equal(t, 2, result.ClearedFromRegistry)

	// Deactivation is attempted for every tracked workflow, active or not.
	assert.ElementsMatch(t, []string{"wf-a", "wf-b"}, f.client.CallsOf("deactivate"))
	assert.ElementsMatch(t, []string{"wf-a", "wf-b"}, f.client.CallsOf("delete"))
	assert.Nil(t, f.client.Stored("wf-a"))
	assert.Nil(t, f.client.Stored("wf-b"))
}

func TestFullResetDeactivatesDespiteStaleCache(t *testing.T) {
	f := newFixture(t)

	// The cached flag says inactive, but the workflow was activated outside
	// the importer. Deactivation must not trust the cache.
	require.NoError(t, f.entries.Save(context.Background(), &models.RegistryEntry{
		Filename:      "a.json",
		N8NWorkflowID: "wf-a",
		IsActive:      false,
		ImportStatus:  models.ImportStatusImported,
	}))
	f.client.Seed(n8n.Workflow{ID: "wf-a", Name: "A", Active: true})

	result, err := f.controller.Reset(context.Background(), models.ResetModeFull)
	require.NoError(t, err)

	assert.True(t, result.Success())
	assert.Equal(t, []string{"wf-a"}, f.client.CallsOf("deactivate"))
	assert.Equal(t, 1, result.DeletedFromN8N)
}

func TestFullResetContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a.json", "wf-a", false)
	f.seed(t, "b.json", "wf-b", false)
	f.seed(t, "c.json", "wf-c", false)

	f.client.DeleteFn = func(ctx context.Context, id string) error {
		if id == "wf-b" {
			return errors.New("remote refused")
		}

		return nil
	}

	result, err := f.controller.Reset(context.Background(), models.ResetModeFull)
	require.NoError(t, err)

	assert.False(t, result.Success())
	assert.Equal(t, 2, result.DeletedFromN8N)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "b.json")

	// Every workflow was attempted despite the mid-loop failure.
	assert.Len(t, f.client.CallsOf("delete"), 3)

	// The registry is cleared regardless of remote failures.
	assert.Equal(t, 3, result.ClearedFromRegistry)
}

func TestFullResetDeactivationFailureIsWarningOnly(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a.json", "wf-a", true)

	f.client.DeactivateFn = func(ctx context.Context, id string) error {
		return errors.New("deactivation refused")
	}

	result, err := f.controller.Reset(context.Background(), models.ResetModeFull)
	require.NoError(t, err)

	assert.True(t, result.Success())
	assert.Equal(t, 1, result.DeletedFromN8N)
	assert.NotEmpty(t, result.Warnings)
	assert.Len(t, f.client.CallsOf("delete"), 1, "the delete is still attempted")
}

func TestFullResetAlreadyDeletedCountsAsDeleted(t *testing.T) {
	f := newFixture(t)

	// Entry points at a workflow that no longer exists remotely.
	require.NoError(t, f.entries.Save(context.Background(), &models.RegistryEntry{
		Filename:      "a.json",
		N8NWorkflowID: "wf-gone",
		ImportStatus:  models.ImportStatusImported,
	}))

	result, err := f.controller.Reset(context.Background(), models.ResetModeFull)
	require.NoError(t, err)

	assert.True(t, result.Success())
	assert.Equal(t, 1, result.DeletedFromN8N)
	assert.NotEmpty(t, result.Warnings)
}

func TestResetRejectsCompositeModes(t *testing.T) {
	f := newFixture(t)

	for _, mode := range []models.ResetMode{models.ResetModeClearConfig, models.ResetModeFactory, "bogus"} {
		_, err := f.controller.Reset(context.Background(), mode)
		assert.Error(t, err, "mode %s must be rejected by the core controller", mode)
	}
}

func TestResetSkipsPendingEntries(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.entries.Save(context.Background(), &models.RegistryEntry{
		Filename:     "pending.json",
		ImportStatus: models.ImportStatusPending,
	}))

	result, err := f.controller.Reset(context.Background(), models.ResetModeFull)
	require.NoError(t, err)

	assert.Equal(t, 0, result.DeletedFromN8N)
	assert.Equal(t, 1, result.ClearedFromRegistry)
	assert.Empty(t, f.client.CallsOf("delete"))
}
