// Package n8n provides the remote registry client contract against an n8n
// instance, plus its HTTP implementation. All operations surface transport
// and application failures as error values; the importer and reconciler
// catch them at the item boundary.
package n8n

import (
	"time"

	"github.com/prodfactory/flowsync/pkg/models"
)

// Node is a workflow node as the n8n API represents it.
type Node struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Workflow is a workflow as the n8n API represents it. Active, ID, and the
// timestamps are remote-managed: they must never be sent on create/update.
type Workflow struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Active      bool           `json:"active,omitempty"`
	Nodes       []Node         `json:"nodes"`
	Connections map[string]any `json:"connections"`
	Settings    map[string]any `json:"settings,omitempty"`
	CreatedAt   time.Time      `json:"createdAt,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt,omitempty"`
}

// NodeType is an installed node type as reported by the instance.
type NodeType struct {
	Name string `json:"name"`
}

// FromDefinition converts a normalized bundled definition into the payload
// shape the n8n API accepts for create and update calls.
func FromDefinition(def *models.WorkflowDefinition) *Workflow {
	nodes := make([]Node, 0, len(def.Nodes))

	for _, node := range def.Nodes {
		nodes = append(nodes, Node{
			ID:         node.ID,
			Name:       node.Name,
			Type:       node.Type,
			Parameters: node.Parameters,
		})
	}

	settings := def.Settings
	if settings == nil {
		// The public API rejects a null settings object.
		settings = map[string]any{}
	}

	connections := def.Connections
	if connections == nil {
		connections = map[string]any{}
	}

	return &Workflow{
		Name:        def.Name,
		Nodes:       nodes,
		Connections: connections,
		Settings:    settings,
	}
}

// NodeTypes returns the distinct node types used by the remote workflow.
func (w *Workflow) NodeTypes() map[string]struct{} {
	types := make(map[string]struct{}, len(w.Nodes))
	for _, node := range w.Nodes {
		types[node.Type] = struct{}{}
	}

	return types
}
