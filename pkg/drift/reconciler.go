// Package drift compares the import registry against the live n8n instance
// and reconciles the differences: remotely deleted workflows, activation
// state changes, and orphans created outside the importer.
package drift

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/prodfactory/flowsync/pkg/bundle"
	"github.com/prodfactory/flowsync/pkg/eventbus"
	"github.com/prodfactory/flowsync/pkg/events"
	"github.com/prodfactory/flowsync/pkg/models"
	"github.com/prodfactory/flowsync/pkg/n8n"
	"github.com/prodfactory/flowsync/pkg/otelhelper"
	"github.com/prodfactory/flowsync/pkg/registry"
)

// Reconciler detects and resolves drift between the registry and the remote
// instance. Detect never mutates anything beyond the cached activation
// state; pull and reconcile write back what they observe.
type Reconciler struct {
	loader  *bundle.Loader
	client  n8n.Client
	entries registry.EntryRepository
	bus     eventbus.EventBus
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithEventBus publishes a SyncCompleted event after every run.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(r *Reconciler) { r.bus = bus }
}

func NewReconciler(
	loader *bundle.Loader,
	client n8n.Client,
	entries registry.EntryRepository,
	logger *slog.Logger,
	opts ...Option,
) *Reconciler {
	reconciler := &Reconciler{
		loader:  loader,
		client:  client,
		entries: entries,
		logger:  logger.With("module", "drift"),
		tracer:  otel.Tracer("flowsync/drift"),
	}

	for _, opt := range opts {
		opt(reconciler)
	}

	return reconciler
}

// SyncOption tunes a single reconciliation pass.
type SyncOption func(*syncConfig)

type syncConfig struct {
	matchOrphans bool
}

// WithOrphanMatching toggles matching orphans against bundled definitions.
// When disabled, orphans are still reported but never matched or adopted.
func WithOrphanMatching(enabled bool) SyncOption {
	return func(c *syncConfig) { c.matchOrphans = enabled }
}

// Sync runs one reconciliation pass in the given mode. The remote listing
// is the source of truth for live state; the bundle is the source of truth
// for content. A conflict (same name, different content) is always reported
// and never resolved automatically.
func (r *Reconciler) Sync(ctx context.Context, mode models.SyncMode, opts ...SyncOption) (*models.SyncResult, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("invalid sync mode %q", mode)
	}

	config := syncConfig{matchOrphans: true}
	for _, opt := range opts {
		opt(&config)
	}

	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "drift.sync",
		attribute.String(otelhelper.SyncModeKey, string(mode)))
	defer span.End()

	remote, err := r.client.List(ctx)
	if err != nil {
		err = fmt.Errorf("failed to list remote workflows: %w", err)
		otelhelper.SetError(span, err)

		return nil, err
	}

	entries, err := r.entries.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	defsByName, err := r.loader.ByName(ctx)
	if err != nil {
		return nil, err
	}

	result := &models.SyncResult{
		Mode:  mode,
		Total: len(entries),
	}

	remoteByID := make(map[string]*n8n.Workflow, len(remote))
	for i := range remote {
		remoteByID[remote[i].ID] = &remote[i]
	}

	claimed := make(map[string]bool, len(entries))

	for _, entry := range entries {
		if !entry.HasRemoteID() {
			continue
		}

		workflow, exists := remoteByID[entry.N8NWorkflowID]
		if !exists {
			r.reconcileDeleted(ctx, mode, entry, result)

			continue
		}

		claimed[workflow.ID] = true
		r.reconcileState(ctx, entry, workflow, result)
	}

	for i := range remote {
		if claimed[remote[i].ID] {
			continue
		}

		r.reconcileOrphan(ctx, mode, config, &remote[i], defsByName, remoteByID, result)
	}

	r.publish(ctx, result)

	r.logger.InfoContext(ctx, "Sync finished",
		"mode", mode, "synced", result.Synced, "state_changed", result.StateChanged,
		"deleted", result.Deleted, "pulled", result.Pulled,
		"orphans", len(result.Orphans), "conflicts", len(result.Conflicts), "errors", len(result.Errors))

	return result, nil
}

// reconcileDeleted handles an entry whose remote workflow no longer exists.
// Only reconcile mode resets the entry so the next import recreates it.
func (r *Reconciler) reconcileDeleted(ctx context.Context, mode models.SyncMode, entry *models.RegistryEntry, result *models.SyncResult) {
	result.Deleted++
	result.Messages = append(result.Messages,
		fmt.Sprintf("workflow %s (remote id %s) was deleted from n8n", entry.Filename, entry.N8NWorkflowID))

	if mode != models.SyncModeReconcile {
		return
	}

	entry.N8NWorkflowID = ""
	entry.IsActive = false
	entry.ImportStatus = models.ImportStatusPending
	entry.LastError = ""

	if err := r.entries.Save(ctx, entry); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("failed to reset entry %s: %v", entry.Filename, err))

		return
	}

	result.Messages = append(result.Messages,
		fmt.Sprintf("workflow %s reset to pending; the next import recreates it", entry.Filename))
}

// reconcileState refreshes the cached activation flag. The flag is a cache
// of observed remote state, so it is updated in every mode.
func (r *Reconciler) reconcileState(ctx context.Context, entry *models.RegistryEntry, workflow *n8n.Workflow, result *models.SyncResult) {
	if entry.IsActive == workflow.Active {
		result.Synced++

		return
	}

	result.StateChanged++
	result.Messages = append(result.Messages,
		fmt.Sprintf("workflow %s changed activation state in n8n: active=%t", entry.Filename, workflow.Active))

	entry.IsActive = workflow.Active

	if err := r.entries.Save(ctx, entry); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("failed to update entry %s: %v", entry.Filename, err))
	}
}

// reconcileOrphan handles a remote workflow no registry entry claims. An
// orphan matching a bundled definition by name and content is adopted in
// pull and reconcile modes; a content mismatch, or a definition whose entry
// is already bound to a live remote workflow, is a conflict left to the
// operator.
func (r *Reconciler) reconcileOrphan(
	ctx context.Context,
	mode models.SyncMode,
	config syncConfig,
	workflow *n8n.Workflow,
	defsByName map[string]*models.WorkflowDefinition,
	remoteByID map[string]*n8n.Workflow,
	result *models.SyncResult,
) {
	orphan := models.Orphan{
		N8NWorkflowID: workflow.ID,
		Name:          workflow.Name,
		Active:        workflow.Active,
	}

	if !config.matchOrphans {
		result.Orphans = append(result.Orphans, orphan)

		return
	}

	def, matches := defsByName[workflow.Name]
	if matches {
		orphan.MatchesBundle = true
		orphan.BundleFilename = def.Filename

		if !contentEquivalent(def, workflow) {
			result.Conflicts = append(result.Conflicts, models.Conflict{
				Name:          workflow.Name,
				N8NWorkflowID: workflow.ID,
				Reason:        "remote workflow shares its name with a bundled definition but differs in content",
			})
			result.Orphans = append(result.Orphans, orphan)

			return
		}

		duplicate, err := r.boundToLiveRemote(ctx, def, workflow, remoteByID)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("failed to check binding for orphan %s: %v", workflow.Name, err))
			result.Orphans = append(result.Orphans, orphan)

			return
		}

		if duplicate {
			result.Conflicts = append(result.Conflicts, models.Conflict{
				Name:          workflow.Name,
				N8NWorkflowID: workflow.ID,
				Reason:        "a live remote workflow with this name is already tracked; the duplicate needs operator resolution",
			})
			result.Orphans = append(result.Orphans, orphan)

			return
		}

		if mode != models.SyncModeDetect {
			if err := r.adopt(ctx, def, workflow); err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("failed to adopt orphan %s: %v", workflow.Name, err))
			} else {
				orphan.Adopted = true
				result.Pulled++
			}
		}
	}

	result.Orphans = append(result.Orphans, orphan)
}

// boundToLiveRemote reports whether the definition's registry entry already
// tracks a different remote workflow that still exists in the listing.
// Adopting over such a binding would strand the tracked workflow.
func (r *Reconciler) boundToLiveRemote(
	ctx context.Context,
	def *models.WorkflowDefinition,
	workflow *n8n.Workflow,
	remoteByID map[string]*n8n.Workflow,
) (bool, error) {
	entry, err := r.entries.GetByFilename(ctx, def.Filename)
	if err != nil {
		return false, err
	}

	if entry == nil || !entry.HasRemoteID() || entry.N8NWorkflowID == workflow.ID {
		return false, nil
	}

	_, live := remoteByID[entry.N8NWorkflowID]

	return live, nil
}

// adopt binds an orphaned remote workflow to its bundled definition.
func (r *Reconciler) adopt(ctx context.Context, def *models.WorkflowDefinition, workflow *n8n.Workflow) error {
	entry, err := r.entries.GetByFilename(ctx, def.Filename)
	if err != nil {
		return err
	}

	if entry == nil {
		entry = &models.RegistryEntry{Filename: def.Filename}
	}

	now := time.Now().UTC()
	entry.N8NWorkflowID = workflow.ID
	entry.IsActive = workflow.Active
	entry.ImportStatus = models.ImportStatusImported
	entry.LocalVersion = def.Version
	entry.LastImportAt = &now
	entry.LastError = ""

	return r.entries.Save(ctx, entry)
}

// contentEquivalent compares a bundled definition with a remote workflow by
// structure: node count and the set of node types. Parameter-level diffs
// are invisible here; a same-shape workflow is treated as the same content.
func contentEquivalent(def *models.WorkflowDefinition, workflow *n8n.Workflow) bool {
	if len(def.Nodes) != len(workflow.Nodes) {
		return false
	}

	defTypes := def.NodeTypes()
	remoteTypes := workflow.NodeTypes()

	if len(defTypes) != len(remoteTypes) {
		return false
	}

	for _, nodeType := range defTypes {
		if _, ok := remoteTypes[nodeType]; !ok {
			return false
		}
	}

	return true
}

func (r *Reconciler) publish(ctx context.Context, result *models.SyncResult) {
	if r.bus == nil {
		return
	}

	event := events.SyncCompleted{
		ID:           uuid.New().String(),
		Timestamp:    time.Now().UTC(),
		Mode:         string(result.Mode),
		Synced:       result.Synced,
		Deleted:      result.Deleted,
		StateChanged: result.StateChanged,
		Pulled:       result.Pulled,
		Orphans:      len(result.Orphans),
	}

	if err := r.bus.Publish(ctx, event.ID, event); err != nil {
		r.logger.WarnContext(ctx, "Failed to publish sync event", "error", err)
	}
}
