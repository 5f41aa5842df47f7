// Package importer drives the import of bundled workflow definitions into a
// remote n8n instance: single-item imports with skip/update semantics and
// the two-phase bulk protocol (create everything inactive, then activate in
// dependency order) that avoids activating a workflow before the workflows
// it calls exist and are active.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/prodfactory/flowsync/pkg/bundle"
	"github.com/prodfactory/flowsync/pkg/eventbus"
	"github.com/prodfactory/flowsync/pkg/events"
	"github.com/prodfactory/flowsync/pkg/graph"
	"github.com/prodfactory/flowsync/pkg/models"
	"github.com/prodfactory/flowsync/pkg/n8n"
	"github.com/prodfactory/flowsync/pkg/otelhelper"
	"github.com/prodfactory/flowsync/pkg/registry"
)

// ErrCyclicDependencies indicates the bundle's dependency graph contains a
// cycle. Import never proceeds past validation in that case.
var ErrCyclicDependencies = errors.New("bundle has cyclic workflow dependencies")

const defaultActivationPause = 300 * time.Millisecond

// Options controls a single import call or a bulk run.
type Options struct {
	// ForceUpdate re-imports a workflow even when the bundled version
	// matches the last imported one.
	ForceUpdate bool
	// SkipActivation suppresses the activation call after a successful
	// create/update. The two-phase bulk flow sets this during phase 1.
	SkipActivation bool
}

// Orchestrator owns the import state machine. All collaborators are
// injected; there is no package-level client or config.
type Orchestrator struct {
	loader          *bundle.Loader
	client          n8n.Client
	entries         registry.EntryRepository
	bus             eventbus.EventBus
	logger          *slog.Logger
	tracer          trace.Tracer
	activationPause time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEventBus mirrors bulk progress events onto the event bus.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithActivationPause overrides the pause inserted after each activation,
// which gives the remote webhook router time to index the newly active
// entry point before the next dependent activation.
func WithActivationPause(pause time.Duration) Option {
	return func(o *Orchestrator) { o.activationPause = pause }
}

func NewOrchestrator(
	loader *bundle.Loader,
	client n8n.Client,
	entries registry.EntryRepository,
	logger *slog.Logger,
	opts ...Option,
) *Orchestrator {
	orchestrator := &Orchestrator{
		loader:          loader,
		client:          client,
		entries:         entries,
		logger:          logger.With("module", "importer"),
		tracer:          otel.Tracer("flowsync/importer"),
		activationPause: defaultActivationPause,
	}

	for _, opt := range opts {
		opt(orchestrator)
	}

	return orchestrator
}

// Import imports a single bundled workflow by filename. Per-item remote
// failures are recorded on the returned result, not returned as errors;
// only loader and registry failures surface as errors.
func (o *Orchestrator) Import(ctx context.Context, filename string, opts Options) (*models.ItemResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "importer.import",
		attribute.String(otelhelper.WorkflowFileKey, filename))
	defer span.End()

	def, err := o.loader.Load(ctx, filename)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	entry, err := o.lookupEntry(ctx, def)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if skippable(entry, def, opts) {
		o.logger.InfoContext(ctx, "Workflow unchanged, skipping import",
			"filename", def.Filename, "name", def.Name)

		return &models.ItemResult{
			Filename:      def.Filename,
			Name:          def.Name,
			Status:        models.ImportOutcomeSkipped,
			N8NWorkflowID: entry.N8NWorkflowID,
		}, nil
	}

	remote, err := o.remoteByName(ctx)
	if err != nil {
		return nil, err
	}

	return o.importOne(ctx, def, entry, opts, remote), nil
}

// ImportAll runs the two-phase bulk import over the whole bundle. A cyclic
// bundle returns ErrCyclicDependencies before any remote call; per-item
// failures land on the individual results, and a phase-1 failure sets the
// batch error and suppresses phase 2 entirely.
func (o *Orchestrator) ImportAll(ctx context.Context, opts Options) (*models.BatchResult, error) {
	return o.run(ctx, opts, func(events.ImportProgress) {})
}

// skippable reports whether the entry is already imported at the bundled
// version. Skipped items issue no remote calls at all.
func skippable(entry *models.RegistryEntry, def *models.WorkflowDefinition, opts Options) bool {
	return !opts.ForceUpdate &&
		entry.HasRemoteID() &&
		entry.ImportStatus == models.ImportStatusImported &&
		entry.LocalVersion == def.Version
}

// lookupEntry fetches or initializes the registry entry for a definition.
func (o *Orchestrator) lookupEntry(ctx context.Context, def *models.WorkflowDefinition) (*models.RegistryEntry, error) {
	entry, err := o.entries.GetByFilename(ctx, def.Filename)
	if err != nil {
		return nil, err
	}

	if entry == nil {
		entry = &models.RegistryEntry{
			Filename:     def.Filename,
			ImportStatus: models.ImportStatusPending,
		}
	}

	return entry, nil
}

// remoteByName fetches the remote listing once and indexes it by name.
func (o *Orchestrator) remoteByName(ctx context.Context) (map[string]n8n.Workflow, error) {
	listing, err := o.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote workflows: %w", err)
	}

	byName := make(map[string]n8n.Workflow, len(listing))
	for _, workflow := range listing {
		byName[workflow.Name] = workflow
	}

	return byName, nil
}

// importOne runs the create-or-update leg of the state machine for one
// definition and, unless suppressed, the activation leg. Every remote
// failure is caught here and recorded on the result and the entry.
func (o *Orchestrator) importOne(
	ctx context.Context,
	def *models.WorkflowDefinition,
	entry *models.RegistryEntry,
	opts Options,
	remote map[string]n8n.Workflow,
) *models.ItemResult {
	result := &models.ItemResult{Filename: def.Filename, Name: def.Name}
	payload := n8n.FromDefinition(def)

	existing, exists := remote[def.Name]

	if exists {
		entry.ImportStatus = models.ImportStatusUpdating
		entry.N8NWorkflowID = existing.ID
	} else {
		entry.ImportStatus = models.ImportStatusImporting
	}

	if err := o.entries.Save(ctx, entry); err != nil {
		return o.fail(ctx, entry, result, fmt.Errorf("failed to persist registry entry: %w", err))
	}

	if exists {
		updated, err := o.client.Update(ctx, existing.ID, payload)
		if err != nil {
			return o.fail(ctx, entry, result, err)
		}

		entry.IsActive = updated.Active
		result.Status = models.ImportOutcomeUpdated

		o.logger.InfoContext(ctx, "Updated remote workflow",
			"filename", def.Filename, "name", def.Name, "n8n_workflow_id", existing.ID)
	} else {
		created, err := o.client.Create(ctx, payload)
		if err != nil {
			return o.fail(ctx, entry, result, err)
		}

		entry.N8NWorkflowID = created.ID
		entry.IsActive = false
		result.Status = models.ImportOutcomeCreated
		remote[def.Name] = *created

		o.logger.InfoContext(ctx, "Created remote workflow",
			"filename", def.Filename, "name", def.Name, "n8n_workflow_id", created.ID)
	}

	now := time.Now().UTC()
	entry.ImportStatus = models.ImportStatusCreated
	entry.LocalVersion = def.Version
	entry.LastImportAt = &now
	entry.LastError = ""
	result.N8NWorkflowID = entry.N8NWorkflowID

	if err := o.entries.Save(ctx, entry); err != nil {
		return o.fail(ctx, entry, result, fmt.Errorf("failed to persist registry entry: %w", err))
	}

	if opts.SkipActivation {
		return result
	}

	return o.activate(ctx, entry, result)
}

// activate runs the activation leg. Activation failures leave the workflow
// created remotely; the entry records activation_failed and keeps its
// remote id.
func (o *Orchestrator) activate(ctx context.Context, entry *models.RegistryEntry, result *models.ItemResult) *models.ItemResult {
	if err := o.client.Activate(ctx, entry.N8NWorkflowID); err != nil {
		entry.ImportStatus = models.ImportStatusActivationFailed
		entry.LastError = err.Error()
		result.Status = models.ImportOutcomeActivationFailed
		result.Error = err.Error()

		o.logger.WarnContext(ctx, "Workflow activation failed",
			"filename", entry.Filename, "n8n_workflow_id", entry.N8NWorkflowID, "error", err)

		if saveErr := o.entries.Save(ctx, entry); saveErr != nil {
			o.logger.ErrorContext(ctx, "Failed to persist activation failure",
				"filename", entry.Filename, "error", saveErr)
		}

		return result
	}

	entry.ImportStatus = models.ImportStatusImported
	entry.IsActive = true
	entry.LastError = ""
	result.Status = models.ImportOutcomeImported

	if err := o.entries.Save(ctx, entry); err != nil {
		o.logger.ErrorContext(ctx, "Failed to persist activation",
			"filename", entry.Filename, "error", err)
	}

	return result
}

// fail records a per-item failure on the entry and the result. The failure
// never propagates as an error: sibling imports continue.
func (o *Orchestrator) fail(ctx context.Context, entry *models.RegistryEntry, result *models.ItemResult, err error) *models.ItemResult {
	entry.ImportStatus = models.ImportStatusFailed
	entry.LastError = err.Error()

	// The status/remote-id invariant: a failed entry keeps no remote id.
	// If the create succeeded remotely but bookkeeping failed, sync will
	// rediscover the workflow as an orphan.
	entry.N8NWorkflowID = ""
	entry.IsActive = false

	result.Status = models.ImportOutcomeFailed
	result.Error = err.Error()

	o.logger.ErrorContext(ctx, "Workflow import failed",
		"filename", entry.Filename, "error", err)

	if saveErr := o.entries.Save(ctx, entry); saveErr != nil {
		o.logger.ErrorContext(ctx, "Failed to persist import failure",
			"filename", entry.Filename, "error", saveErr)
	}

	return result
}

// pause sleeps for the post-activation pause, honoring cancellation.
func (o *Orchestrator) pause(ctx context.Context) error {
	if o.activationPause <= 0 {
		return nil
	}

	timer := time.NewTimer(o.activationPause)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// cycleError formats the detected cycles into a single batch error.
func cycleError(analysis graph.Analysis) error {
	described := make([]string, 0, len(analysis.Cycles))
	for _, cycle := range analysis.Cycles {
		described = append(described, strings.Join(cycle, " -> "))
	}

	return fmt.Errorf("%w: %s", ErrCyclicDependencies, strings.Join(described, "; "))
}
