package importer_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodfactory/flowsync/pkg/bundle"
	"github.com/prodfactory/flowsync/pkg/importer"
	"github.com/prodfactory/flowsync/pkg/mocks"
	"github.com/prodfactory/flowsync/pkg/models"
	"github.com/prodfactory/flowsync/pkg/n8n"
	"github.com/prodfactory/flowsync/pkg/registry"
	"github.com/prodfactory/flowsync/pkg/registry/file"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func writeWorkflow(t *testing.T, dir, filename, name string, deps ...string) {
	t.Helper()

	depsJSON := ""
	for i, dep := range deps {
		if i > 0 {
			depsJSON += ", "
		}

		depsJSON += fmt.Sprintf("%q", dep)
	}

	content := fmt.Sprintf(`{
		"name": %q,
		"nodes": [
			{"id": "n1", "name": "Webhook", "type": "n8n-nodes-base.webhook", "parameters": {"path": %q}}
		],
		"connections": {},
		"dependencies": [%s]
	}`, name, "hooks/"+filename, depsJSON)

	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o600))
}

type fixture struct {
	dir          string
	loader       *bundle.Loader
	client       *mocks.N8NClient
	entries      registry.EntryRepository
	orchestrator *importer.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	logger := testLogger()
	loader := bundle.NewLoader(dir, logger)
	client := mocks.NewN8NClient()
	entries := file.NewPersistence(t.TempDir()).EntryRepository()

	return &fixture{
		dir:     dir,
		loader:  loader,
		client:  client,
		entries: entries,
		orchestrator: importer.NewOrchestrator(loader, client, entries, logger,
			importer.WithActivationPause(0)),
	}
}

func TestImportAllDependencyOrder(t *testing.T) {
	f := newFixture(t)
	writeWorkflow(t, f.dir, "a.json", "A", "B")
	writeWorkflow(t, f.dir, "b.json", "B", "C")
	writeWorkflow(t, f.dir, "c.json", "C")

	batch, err := f.orchestrator.ImportAll(context.Background(), importer.Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, batch.Total)
	assert.Equal(t, 3, batch.Activated)
	assert.Equal(t, 0, batch.Failed)
	assert.Empty(t, batch.Error)

	// Phase 1 creates dependencies first.
	assert.Equal(t, []string{"C", "B", "A"}, f.client.CallsOf("create"))

	// Phase 2 activates in the same order, after all creates.
	activations := f.client.CallsOf("activate")
	require.Len(t, activations, 3)

	for _, result := range batch.Results {
		assert.Equal(t, models.ImportOutcomeImported, result.Status)

		stored := f.client.Stored(result.N8NWorkflowID)
		require.NotNil(t, stored)
		assert.True(t, stored.Active)
	}
}

func TestImportAllPhaseOneGate(t *testing.T) {
	f := newFixture(t)
	writeWorkflow(t, f.dir, "a.json", "A")
	writeWorkflow(t, f.dir, "b.json", "B")

	f.client.CreateFn = func(ctx context.Context, workflow *n8n.Workflow) (*n8n.Workflow, error) {
		return nil, errors.New("remote rejected payload")
	}

	batch, err := f.orchestrator.ImportAll(context.Background(), importer.Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, batch.Failed)
	assert.NotEmpty(t, batch.Error)

	// The gate: no activation happens when phase 1 had failures.
	assert.Empty(t, f.client.CallsOf("activate"))
}

func TestImportAllCyclicBundleRefused(t *testing.T) {
	f := newFixture(t)
	writeWorkflow(t, f.dir, "a.json", "A", "B")
	writeWorkflow(t, f.dir, "b.json", "B", "A")

	batch, err := f.orchestrator.ImportAll(context.Background(), importer.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, importer.ErrCyclicDependencies)
	require.NotNil(t, batch)
	assert.NotEmpty(t, batch.Error)

	// No remote call of any kind happens for a cyclic bundle.
	assert.Empty(t, f.client.CallsOf("create"))
	assert.Empty(t, f.client.CallsOf("update"))
	assert.Empty(t, f.client.CallsOf("activate"))
}

func TestImportAllIdempotentSecondRunSkips(t *testing.T) {
	f := newFixture(t)
	writeWorkflow(t, f.dir, "a.json", "A")

	ctx := context.Background()

	first, err := f.orchestrator.ImportAll(ctx, importer.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Activated)

	second, err := f.orchestrator.ImportAll(ctx, importer.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, 0, second.Activated)

	// The unchanged workflow triggered no create, update, or activate on
	// the second run.
	assert.Len(t, f.client.CallsOf("create"), 1)
	assert.Empty(t, f.client.CallsOf("update"))
	assert.Len(t, f.client.CallsOf("activate"), 1)
}

func TestImportAllForceUpdateReimports(t *testing.T) {
	f := newFixture(t)
	writeWorkflow(t, f.dir, "a.json", "A")

	ctx := context.Background()

	_, err := f.orchestrator.ImportAll(ctx, importer.Options{})
	require.NoError(t, err)

	batch, err := f.orchestrator.ImportAll(ctx, importer.Options{ForceUpdate: true})
	require.NoError(t, err)

	assert.Equal(t, 1, batch.Updated+batch.Activated)
	assert.Len(t, f.client.CallsOf("update"), 1)
}

func TestImportSingleActivationFailure(t *testing.T) {
	f := newFixture(t)
	writeWorkflow(t, f.dir, "a.json", "A")

	f.client.ActivateFn = func(ctx context.Context, id string) error {
		return errors.New("no active trigger")
	}

	result, err := f.orchestrator.Import(context.Background(), "a.json", importer.Options{})
	require.NoError(t, err)

	assert.Equal(t, models.ImportOutcomeActivationFailed, result.Status)
	assert.NotEmpty(t, result.N8NWorkflowID, "the workflow stays created remotely")
	assert.Contains(t, result.Error, "no active trigger")

	entry, err := f.entries.GetByFilename(context.Background(), "a.json")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.ImportStatusActivationFailed, entry.ImportStatus)
	assert.True(t, entry.Consistent())
}

func TestImportSingleUpdatesExistingByName(t *testing.T) {
	f := newFixture(t)
	writeWorkflow(t, f.dir, "a.json", "A")

	f.client.Seed(n8n.Workflow{ID: "wf-existing", Name: "A", Active: true})

	result, err := f.orchestrator.Import(context.Background(), "a.json", importer.Options{})
	require.NoError(t, err)

	assert.Equal(t, models.ImportOutcomeImported, result.Status)
	assert.Equal(t, "wf-existing", result.N8NWorkflowID)
	assert.Len(t, f.client.CallsOf("update"), 1)
	assert.Empty(t, f.client.CallsOf("create"))
}

func TestImportSingleSkipUnchangedMakesNoRemoteCalls(t *testing.T) {
	f := newFixture(t)
	writeWorkflow(t, f.dir, "a.json", "A")

	ctx := context.Background()

	_, err := f.orchestrator.Import(ctx, "a.json", importer.Options{})
	require.NoError(t, err)

	callsBefore := len(f.client.Calls)

	result, err := f.orchestrator.Import(ctx, "a.json", importer.Options{})
	require.NoError(t, err)

	assert.Equal(t, models.ImportOutcomeSkipped, result.Status)
	assert.Len(t, f.client.Calls, callsBefore, "a skipped import issues no remote call")
}

func TestImportMissingDefinition(t *testing.T) {
	f := newFixture(t)

	_, err := f.orchestrator.Import(context.Background(), "missing.json", importer.Options{})
	assert.ErrorIs(t, err, bundle.ErrDefinitionNotFound)
}

func TestImportAllCancellation(t *testing.T) {
	f := newFixture(t)
	writeWorkflow(t, f.dir, "a.json", "A")
	writeWorkflow(t, f.dir, "b.json", "B")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.orchestrator.ImportAll(ctx, importer.Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
