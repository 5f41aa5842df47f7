package importer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodfactory/flowsync/pkg/bundle"
	"github.com/prodfactory/flowsync/pkg/importer"
	"github.com/prodfactory/flowsync/pkg/mocks"
)

type staticCatalog map[string]bool

func (c staticCatalog) Has(_ context.Context, nodeType string) (bool, error) {
	return c[nodeType], nil
}

func TestValidateCleanBundle(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "a.json", "A", "B")
	writeWorkflow(t, dir, "b.json", "B")

	validator := importer.NewValidator(
		bundle.NewLoader(dir, testLogger()),
		staticCatalog{"n8n-nodes-base.webhook": true},
		testLogger(),
	)

	report, err := validator.Validate(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Valid)
	assert.Equal(t, 2, report.Total)
	assert.Empty(t, report.Errors)
}

func TestValidateMissingNodeTypes(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "a.json", "A")

	validator := importer.NewValidator(
		bundle.NewLoader(dir, testLogger()),
		staticCatalog{}, // nothing installed
		testLogger(),
	)

	report, err := validator.Validate(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Valid)
	require.Len(t, report.Workflows, 1)
	require.NotEmpty(t, report.Workflows[0].Errors)
	assert.Contains(t, report.Workflows[0].Errors[0], "n8n-nodes-base.webhook")
}

func TestValidateAggregatesMissingNodeTypeCounts(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "a.json", "A")
	writeWorkflow(t, dir, "b.json", "B")

	validator := importer.NewValidator(
		bundle.NewLoader(dir, testLogger()),
		staticCatalog{}, // nothing installed
		testLogger(),
	)

	report, err := validator.Validate(context.Background())
	require.NoError(t, err)

	// Both workflows use the webhook node, so the type counts twice.
	assert.Equal(t, map[string]int{"n8n-nodes-base.webhook": 2}, report.MissingNodeTypes)
}

func TestValidateCycleIsHardStop(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "a.json", "A", "B")
	writeWorkflow(t, dir, "b.json", "B", "A")

	validator := importer.NewValidator(
		bundle.NewLoader(dir, testLogger()),
		staticCatalog{"n8n-nodes-base.webhook": true},
		testLogger(),
	)

	report, err := validator.Validate(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Valid)

	// Both files in the cycle carry the finding.
	for _, workflow := range report.Workflows {
		require.NotEmpty(t, workflow.Errors)
		assert.Contains(t, workflow.Errors[0], "cyclic")
	}
}

func TestValidateMalformedFileDoesNotAbortRun(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "good.json", "Good")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"nodes": []}`), 0o600))

	validator := importer.NewValidator(
		bundle.NewLoader(dir, testLogger()),
		staticCatalog{"n8n-nodes-base.webhook": true},
		testLogger(),
	)

	report, err := validator.Validate(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Valid)
	require.Len(t, report.Workflows, 2)

	// broken.json reports its schema violations; good.json stays clean.
	assert.NotEmpty(t, report.Workflows[0].Errors)
	assert.Empty(t, report.Workflows[1].Errors)
}

func TestValidateCredentialsWarning(t *testing.T) {
	dir := t.TempDir()

	content := `{
		"name": "With Credentials",
		"nodes": [
			{"id": "n1", "name": "Call", "type": "n8n-nodes-base.httpRequest",
			 "credentials": {"httpAuth": {"id": "c1", "name": "Auth"}}}
		],
		"connections": {}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "creds.json"), []byte(content), 0o600))

	validator := importer.NewValidator(
		bundle.NewLoader(dir, testLogger()),
		staticCatalog{"n8n-nodes-base.httpRequest": true},
		testLogger(),
	)

	report, err := validator.Validate(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Valid, "credential references warn, never block")
	require.Len(t, report.Workflows, 1)
	assert.NotEmpty(t, report.Workflows[0].Warnings)
}

func TestValidateCatalogFailureAborts(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "a.json", "A")

	client := mocks.NewN8NClient()
	client.NodeTypesFn = func(_ context.Context) ([]string, error) {
		return nil, errors.New("connection refused")
	}

	validator := importer.NewValidator(
		bundle.NewLoader(dir, testLogger()),
		importer.NewClientCatalog(client),
		testLogger(),
	)

	_, err := validator.Validate(context.Background())
	assert.Error(t, err)
}

func TestClientCatalogCaches(t *testing.T) {
	client := mocks.NewN8NClient()

	calls := 0
	client.NodeTypesFn = func(_ context.Context) ([]string, error) {
		calls++

		return []string{"n8n-nodes-base.webhook"}, nil
	}

	catalog := importer.NewClientCatalog(client)
	ctx := context.Background()

	for range 3 {
		ok, err := catalog.Has(ctx, "n8n-nodes-base.webhook")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	missing, err := catalog.Has(ctx, "n8n-nodes-base.unknown")
	require.NoError(t, err)
	assert.False(t, missing)

	assert.Equal(t, 1, calls, "the remote catalog is fetched once")
}
