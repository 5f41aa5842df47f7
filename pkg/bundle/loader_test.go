package bundle_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodfactory/flowsync/pkg/bundle"
	"github.com/prodfactory/flowsync/pkg/models"
)

const webhookDefinition = `{
	"name": "Order Intake",
	"nodes": [
		{
			"id": "n1",
			"name": "Webhook",
			"type": "n8n-nodes-base.webhook",
			"parameters": {"path": "orders/incoming"}
		},
		{
			"id": "n2",
			"name": "Post",
			"type": "n8n-nodes-base.httpRequest",
			"parameters": {"url": "https://example.com"},
			"credentials": {"httpAuth": {"id": "cred-1", "name": "Example"}}
		}
	],
	"connections": {"Webhook": {"main": [[{"node": "Post", "type": "main", "index": 0}]]}},
	"settings": {"executionOrder": "v1"},
	"dependencies": ["Billing"]
}`

func writeDefinition(t *testing.T, dir, filename, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o600))
}

func newLoader(t *testing.T, dir string) *bundle.Loader {
	t.Helper()

	return bundle.NewLoader(dir, slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func TestLoadNormalizes(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "order-intake.json", webhookDefinition)

	def, err := newLoader(t, dir).Load(context.Background(), "order-intake.json")
	require.NoError(t, err)

	assert.Equal(t, "order-intake.json", def.Filename)
	assert.Equal(t, "Order Intake", def.Name)
	assert.Equal(t, []string{"Billing"}, def.Dependencies)
	assert.Equal(t, []string{"orders/incoming"}, def.WebhookPaths)
	assert.True(t, def.HasCredentials)
	assert.NotEmpty(t, def.Version)

	// Credentials are stripped from every node.
	for _, node := range def.Nodes {
		assert.Empty(t, node.Credentials, "node %s must not carry credentials", node.Name)
	}
}

func TestLoadVersionIgnoresReadOnlyFields(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "a.json", webhookDefinition)

	// Same content re-exported with remote-managed read-only fields.
	reexported := `{
		"id": "remote-id-123",
		"active": true,
		"versionId": "v-9",
		"createdAt": "2026-01-01T00:00:00Z",
		"updatedAt": "2026-02-01T00:00:00Z",
		"tags": ["prod"],` + webhookDefinition[1:]
	writeDefinition(t, dir, "b.json", reexported)

	loader := newLoader(t, dir)
	ctx := context.Background()

	first, err := loader.Load(ctx, "a.json")
	require.NoError(t, err)
	second, err := loader.Load(ctx, "b.json")
	require.NoError(t, err)

	assert.Equal(t, first.Version, second.Version)
}

func TestLoadVersionChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "a.json", webhookDefinition)

	changed := `{
		"name": "Order Intake",
		"nodes": [
			{"id": "n1", "name": "Webhook", "type": "n8n-nodes-base.webhook", "parameters": {"path": "orders/v2"}}
		],
		"connections": {},
		"dependencies": ["Billing"]
	}`
	writeDefinition(t, dir, "b.json", changed)

	loader := newLoader(t, dir)
	ctx := context.Background()

	first, err := loader.Load(ctx, "a.json")
	require.NoError(t, err)
	second, err := loader.Load(ctx, "b.json")
	require.NoError(t, err)

	assert.NotEqual(t, first.Version, second.Version)
}

func TestLoadSchemaViolations(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "bad.json", `{"nodes": [], "connections": {}}`)

	_, err := newLoader(t, dir).Load(context.Background(), "bad.json")
	require.Error(t, err)

	var defErr *bundle.DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, "bad.json", defErr.Filename)
	assert.NotEmpty(t, defErr.Violations)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := newLoader(t, t.TempDir()).Load(context.Background(), "nope.json")
	assert.ErrorIs(t, err, bundle.ErrDefinitionNotFound)
}

func TestLoadAllFailsOnSingleBadFile(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "good.json", webhookDefinition)
	writeDefinition(t, dir, "broken.json", `{not json`)

	_, err := newLoader(t, dir).LoadAll(context.Background())
	assert.Error(t, err)
}

func TestFilenamesSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "b.json", webhookDefinition)
	writeDefinition(t, dir, "a.json", webhookDefinition)
	writeDefinition(t, dir, "notes.txt", "ignore me")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0o700))

	names, err := newLoader(t, dir).Filenames()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json", "b.json"}, names)
}

func TestByName(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "order-intake.json", webhookDefinition)

	byName, err := newLoader(t, dir).ByName(context.Background())
	require.NoError(t, err)
	require.Contains(t, byName, "Order Intake")
	assert.Equal(t, "order-intake.json", byName["Order Intake"].Filename)
}

func TestExtractWebhookPathsFormNodes(t *testing.T) {
	def := &models.WorkflowDefinition{
		Nodes: []*models.DefinitionNode{
			{ID: "n1", Name: "Form", Type: models.NodeTypeForm, Parameters: map[string]any{"path": "signup"}},
			{ID: "n2", Name: "Set", Type: "n8n-nodes-base.set"},
		},
	}

	assert.Equal(t, []string{"signup"}, def.ExtractWebhookPaths())
}
