// Package reset tears down imported state: it clears the local import
// registry and, in full mode, removes every registry-tracked workflow from
// the n8n instance first.
package reset

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/prodfactory/flowsync/pkg/eventbus"
	"github.com/prodfactory/flowsync/pkg/events"
	"github.com/prodfactory/flowsync/pkg/models"
	"github.com/prodfactory/flowsync/pkg/n8n"
	"github.com/prodfactory/flowsync/pkg/otelhelper"
	"github.com/prodfactory/flowsync/pkg/registry"
)

// Controller executes reset runs. Deletion is best effort: every tracked
// workflow is attempted regardless of earlier failures, and each failure is
// captured independently on the result.
type Controller struct {
	client  n8n.Client
	entries registry.EntryRepository
	bus     eventbus.EventBus
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures a Controller.
type Option func(*Controller)

// WithEventBus publishes a ResetCompleted event after every run.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(c *Controller) { c.bus = bus }
}

func NewController(
	client n8n.Client,
	entries registry.EntryRepository,
	logger *slog.Logger,
	opts ...Option,
) *Controller {
	controller := &Controller{
		client:  client,
		entries: entries,
		logger:  logger.With("module", "reset"),
		tracer:  otel.Tracer("flowsync/reset"),
	}

	for _, opt := range opts {
		opt(controller)
	}

	return controller
}

// Reset runs one teardown in the given mode. Soft mode clears the registry
// and leaves the remote instance untouched; full mode deletes every tracked
// remote workflow first. Composite modes (clear_config, factory) are
// resolved by the service layer before reaching here.
func (c *Controller) Reset(ctx context.Context, mode models.ResetMode) (*models.ResetResult, error) {
	if mode != models.ResetModeSoft && mode != models.ResetModeFull {
		return nil, fmt.Errorf("invalid reset mode %q", mode)
	}

	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "reset.run",
		attribute.String(otelhelper.ResetModeKey, string(mode)))
	defer span.End()

	result := &models.ResetResult{Mode: mode}

	if mode == models.ResetModeFull {
		entries, err := c.entries.GetAll(ctx)
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, err
		}

		for _, entry := range entries {
			if !entry.HasRemoteID() {
				continue
			}

			c.deleteRemote(ctx, entry, result)
		}
	}

	cleared, err := c.entries.Clear(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to clear registry: %v", err))
	} else {
		result.ClearedFromRegistry = cleared
	}

	c.publish(ctx, result)

	c.logger.InfoContext(ctx, "Reset finished",
		"mode", mode, "deleted_from_n8n", result.DeletedFromN8N,
		"cleared_from_registry", result.ClearedFromRegistry, "errors", len(result.Errors))

	return result, nil
}

// deleteRemote deactivates and deletes one remote workflow. Deactivation is
// always attempted, since the cached activation flag can lag behind the
// remote state; a failure is a warning only and the delete still runs. A
// workflow that is already gone counts as deleted.
func (c *Controller) deleteRemote(ctx context.Context, entry *models.RegistryEntry, result *models.ResetResult) {
	if err := c.client.Deactivate(ctx, entry.N8NWorkflowID); err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("failed to deactivate workflow %s before deletion: %v", entry.Filename, err))
	}

	if err := c.client.Delete(ctx, entry.N8NWorkflowID); err != nil {
		if n8n.IsNotFound(err) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("workflow %s was already deleted from n8n", entry.Filename))
			result.DeletedFromN8N++

			return
		}

		result.Errors = append(result.Errors,
			fmt.Sprintf("failed to delete workflow %s: %v", entry.Filename, err))

		return
	}

	result.DeletedFromN8N++

	c.logger.InfoContext(ctx, "Deleted remote workflow",
		"filename", entry.Filename, "n8n_workflow_id", entry.N8NWorkflowID)
}

func (c *Controller) publish(ctx context.Context, result *models.ResetResult) {
	if c.bus == nil {
		return
	}

	event := events.ResetCompleted{
		ID:             uuid.New().String(),
		Timestamp:      time.Now().UTC(),
		Mode:           string(result.Mode),
		DeletedFromN8N: result.DeletedFromN8N,
		Cleared:        result.ClearedFromRegistry,
		Errors:         len(result.Errors),
	}

	if err := c.bus.Publish(ctx, event.ID, event); err != nil {
		c.logger.WarnContext(ctx, "Failed to publish reset event", "error", err)
	}
}
