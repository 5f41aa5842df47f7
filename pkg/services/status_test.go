package services_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodfactory/flowsync/pkg/bundle"
	"github.com/prodfactory/flowsync/pkg/models"
	"github.com/prodfactory/flowsync/pkg/registry/file"
	"github.com/prodfactory/flowsync/pkg/services"
)

func newStatus(t *testing.T) (*services.Status, string, *file.Persistence) {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	persistence := file.NewPersistence(t.TempDir())

	return services.NewStatus(bundle.NewLoader(dir, logger), persistence), dir, persistence
}

func TestStatusListReportsPendingWithoutEntries(t *testing.T) {
	status, dir, _ := newStatus(t)
	writeWorkflow(t, dir, "a.json", "A")

	response, err := status.List(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, response.Total)
	require.Len(t, response.Workflows, 1)
	assert.Equal(t, models.ImportStatusPending, response.Workflows[0].ImportStatus)
	assert.False(t, response.Workflows[0].UpdateAvailable)
	assert.Equal(t, 1, response.Workflows[0].NodeCount)
}

func TestStatusUpdateAvailableDerivedFromVersionMismatch(t *testing.T) {
	status, dir, persistence := newStatus(t)
	writeWorkflow(t, dir, "a.json", "A")

	require.NoError(t, persistence.EntryRepository().Save(context.Background(), &models.RegistryEntry{
		Filename:      "a.json",
		N8NWorkflowID: "wf-a",
		ImportStatus:  models.ImportStatusImported,
		LocalVersion:  "stale-hash",
	}))

	workflow, err := status.Get(context.Background(), "a.json")
	require.NoError(t, err)

	assert.True(t, workflow.UpdateAvailable)
	assert.Equal(t, models.ImportStatusImported, workflow.ImportStatus)
}

func TestStatusUpdateAvailableRequiresImportedStatus(t *testing.T) {
	status, dir, persistence := newStatus(t)
	writeWorkflow(t, dir, "a.json", "A")

	// A failed entry has no baseline version to compare against.
	require.NoError(t, persistence.EntryRepository().Save(context.Background(), &models.RegistryEntry{
		Filename:     "a.json",
		ImportStatus: models.ImportStatusFailed,
		LocalVersion: "stale-hash",
	}))

	workflow, err := status.Get(context.Background(), "a.json")
	require.NoError(t, err)
	assert.False(t, workflow.UpdateAvailable)
}

func TestStatusGetUnknownFilename(t *testing.T) {
	status, dir, _ := newStatus(t)
	writeWorkflow(t, dir, "a.json", "A")

	_, err := status.Get(context.Background(), "missing.json")
	require.Error(t, err)
	assert.True(t, services.IsNotFoundError(err))

	_, err = status.Get(context.Background(), "")
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestStatusListIncludesGraphLevels(t *testing.T) {
	status, dir, _ := newStatus(t)
	writeWorkflow(t, dir, "a.json", "A", "B")
	writeWorkflow(t, dir, "b.json", "B")

	response, err := status.List(context.Background())
	require.NoError(t, err)
	require.Len(t, response.Workflows, 2)

	byName := map[string]services.WorkflowStatus{}
	for _, workflow := range response.Workflows {
		byName[workflow.Name] = workflow
	}

	assert.Greater(t, byName["A"].Level.Depth, byName["B"].Level.Depth)
	assert.Equal(t, []string{"B"}, byName["A"].Dependencies)
	assert.False(t, response.Graph.HasCycle)
}
