// Package models defines the core domain models for bundled n8n workflow
// lifecycle management: definitions shipped in the bundle, the local import
// registry, and the result shapes returned by import, sync, and reset
// operations.
package models

import "sort"

// Node types that expose an externally reachable entry point. Webhook paths
// are extracted from the parameters of these nodes.
const (
	NodeTypeWebhook = "n8n-nodes-base.webhook"
	NodeTypeForm    = "n8n-nodes-base.formTrigger"
)

// NodeCredential references a stored n8n credential from a node. Credentials
// are stripped from definitions before transmission; the reference shape is
// kept so loaders can detect and report their presence.
type NodeCredential struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// DefinitionNode is a single node inside a bundled workflow definition.
type DefinitionNode struct {
	ID          string                    `json:"id"   validate:"required"`
	Name        string                    `json:"name" validate:"required"`
	Type        string                    `json:"type" validate:"required"`
	Parameters  map[string]any            `json:"parameters,omitempty"`
	Credentials map[string]NodeCredential `json:"credentials,omitempty"`
}

// WorkflowDefinition is an immutable workflow definition loaded from the
// bundle. The filename acts as the natural key within the bundle; the name
// must be unique in the remote n8n instance.
type WorkflowDefinition struct {
	Filename     string            `json:"filename"     validate:"required"`
	Name         string            `json:"name"         validate:"required,min=1"`
	Nodes        []*DefinitionNode `json:"nodes"`
	Connections  map[string]any    `json:"connections"`
	Settings     map[string]any    `json:"settings,omitempty"`
	Dependencies []string          `json:"dependencies,omitempty"`

	// Derived during loading.
	Version        string   `json:"version,omitempty"` // content hash of the normalized definition
	WebhookPaths   []string `json:"webhook_paths,omitempty"`
	HasCredentials bool     `json:"has_credentials"`
}

// NodeCount returns the number of nodes in the definition.
func (d *WorkflowDefinition) NodeCount() int {
	return len(d.Nodes)
}

// NodeTypes returns the distinct node types used by the definition, sorted.
func (d *WorkflowDefinition) NodeTypes() []string {
	seen := make(map[string]struct{}, len(d.Nodes))

	for _, node := range d.Nodes {
		seen[node.Type] = struct{}{}
	}

	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}

	sort.Strings(types)

	return types
}

// ExtractWebhookPaths returns the webhook entry-point paths configured on the
// definition's trigger nodes.
func (d *WorkflowDefinition) ExtractWebhookPaths() []string {
	paths := make([]string, 0)

	for _, node := range d.Nodes {
		if node.Type != NodeTypeWebhook && node.Type != NodeTypeForm {
			continue
		}

		if path, ok := node.Parameters["path"].(string); ok && path != "" {
			paths = append(paths, path)
		}
	}

	return paths
}
