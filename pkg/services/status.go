package services

import (
	"context"
	"time"

	"github.com/prodfactory/flowsync/pkg/bundle"
	"github.com/prodfactory/flowsync/pkg/graph"
	"github.com/prodfactory/flowsync/pkg/models"
	"github.com/prodfactory/flowsync/pkg/registry"
)

// WorkflowStatus is the joined view of one bundled workflow: its definition
// metadata, its registry state, and its position in the dependency graph.
type WorkflowStatus struct {
	Filename      string              `json:"filename"`
	Name          string              `json:"name"`
	ImportStatus  models.ImportStatus `json:"import_status"`
	N8NWorkflowID string              `json:"n8n_workflow_id,omitempty"`
	IsActive      bool                `json:"is_active"`
	// UpdateAvailable is derived at read time: the bundled content hash no
	// longer matches the version recorded at the last successful import.
	UpdateAvailable bool        `json:"update_available"`
	Dependencies    []string    `json:"dependencies,omitempty"`
	Level           graph.Level `json:"level"`
	NodeCount       int         `json:"node_count"`
	HasCredentials  bool        `json:"has_credentials"`
	WebhookPaths    []string    `json:"webhook_paths,omitempty"`
	LastImportAt    *time.Time  `json:"last_import_at,omitempty"`
	LastError       string      `json:"last_error,omitempty"`
}

// StatusResponse is the full bundle status including the graph analysis.
type StatusResponse struct {
	Total     int              `json:"total"`
	Workflows []WorkflowStatus `json:"workflows"`
	Graph     graph.Analysis   `json:"graph"`
}

// Status reads the bundle and the registry and reports their joined state.
type Status struct {
	loader      *bundle.Loader
	persistence registry.Persistence
}

// NewStatus creates a new status service.
func NewStatus(loader *bundle.Loader, persistence registry.Persistence) *Status {
	return &Status{
		loader:      loader,
		persistence: persistence,
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Status) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := s.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List returns the status of every bundled workflow in filename order.
// Workflows with no registry entry report as pending.
func (s *Status) List(ctx context.Context) (*StatusResponse, error) {
	defs, err := s.loader.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := s.persistence.EntryRepository().GetAll(ctx)
	if err != nil {
		return nil, err
	}

	byFilename := make(map[string]*models.RegistryEntry, len(entries))
	for _, entry := range entries {
		byFilename[entry.Filename] = entry
	}

	analysis := graph.Analyze(defs)
	levels := graph.Levels(defs)

	response := &StatusResponse{
		Total:     len(defs),
		Workflows: make([]WorkflowStatus, 0, len(defs)),
		Graph:     analysis,
	}

	for _, def := range defs {
		status := WorkflowStatus{
			Filename:       def.Filename,
			Name:           def.Name,
			ImportStatus:   models.ImportStatusPending,
			Dependencies:   def.Dependencies,
			Level:          levels[def.Name],
			NodeCount:      def.NodeCount(),
			HasCredentials: def.HasCredentials,
			WebhookPaths:   def.WebhookPaths,
		}

		if entry, ok := byFilename[def.Filename]; ok {
			status.ImportStatus = entry.ImportStatus
			status.N8NWorkflowID = entry.N8NWorkflowID
			status.IsActive = entry.IsActive
			status.LastImportAt = entry.LastImportAt
			status.LastError = entry.LastError
			status.UpdateAvailable = entry.ImportStatus == models.ImportStatusImported &&
				entry.LocalVersion != def.Version
		}

		response.Workflows = append(response.Workflows, status)
	}

	return response, nil
}

// Get returns the status of a single bundled workflow.
func (s *Status) Get(ctx context.Context, filename string) (*WorkflowStatus, error) {
	if filename == "" {
		return nil, &ServiceError{Op: "status.get", Err: ErrFilenameRequired}
	}

	response, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	for i := range response.Workflows {
		if response.Workflows[i].Filename == filename {
			return &response.Workflows[i], nil
		}
	}

	return nil, &ServiceError{Op: "status.get", Message: filename, Err: ErrWorkflowNotFound}
}
