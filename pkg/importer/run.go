package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/prodfactory/flowsync/pkg/events"
	"github.com/prodfactory/flowsync/pkg/graph"
	"github.com/prodfactory/flowsync/pkg/models"
	"github.com/prodfactory/flowsync/pkg/n8n"
	"github.com/prodfactory/flowsync/pkg/otelhelper"
)

// emitFunc receives each progress event as the bulk run produces it.
type emitFunc func(events.ImportProgress)

// run is the shared two-phase bulk core behind ImportAll and
// ImportAllStream. It emits progress events through emit and mirrors them
// onto the event bus when one is configured. Exactly one terminal event
// (completed or failed) ends every run.
func (o *Orchestrator) run(ctx context.Context, opts Options, emit emitFunc) (*models.BatchResult, error) {
	runID := uuid.New().String()

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "importer.import_all",
		attribute.String("flowsync.import.run_id", runID))
	defer span.End()

	defs, err := o.loader.LoadAll(ctx)
	if err != nil {
		o.emit(ctx, emit, events.ImportProgress{
			ID:        runID,
			Type:      events.ImportFailedEvent,
			Timestamp: time.Now().UTC(),
			Error:     err.Error(),
		})

		return nil, err
	}

	batch := &models.BatchResult{Total: len(defs)}

	o.emit(ctx, emit, events.ImportProgress{
		ID:        runID,
		Type:      events.ImportStartedEvent,
		Timestamp: time.Now().UTC(),
		Total:     len(defs),
	})

	analysis := graph.Analyze(defs)
	if analysis.HasCycle {
		err := cycleError(analysis)
		batch.Error = err.Error()
		otelhelper.SetError(span, err)

		o.emit(ctx, emit, events.ImportProgress{
			ID:        runID,
			Type:      events.ImportFailedEvent,
			Timestamp: time.Now().UTC(),
			Error:     err.Error(),
		})

		return batch, err
	}

	o.emit(ctx, emit, events.ImportProgress{
		ID:        runID,
		Type:      events.ImportValidatedEvent,
		Timestamp: time.Now().UTC(),
		Total:     len(defs),
	})

	byName := make(map[string]*models.WorkflowDefinition, len(defs))
	for _, def := range defs {
		byName[def.Name] = def
	}

	remote, err := o.remoteByName(ctx)
	if err != nil {
		batch.Error = err.Error()

		o.emit(ctx, emit, events.ImportProgress{
			ID:        runID,
			Type:      events.ImportFailedEvent,
			Timestamp: time.Now().UTC(),
			Error:     err.Error(),
		})

		return batch, err
	}

	results, err := o.runCreatePhase(ctx, runID, analysis.Order, byName, opts, remote, emit)
	if err != nil {
		batch.Results = results
		batch.Recount()
		batch.Error = err.Error()

		o.emit(ctx, emit, events.ImportProgress{
			ID:        runID,
			Type:      events.ImportFailedEvent,
			Timestamp: time.Now().UTC(),
			Error:     err.Error(),
		})

		return batch, err
	}

	batch.Results = results

	// Phase 1 gate: a single create/update failure suppresses all
	// activations. Nothing new goes live on top of a broken batch.
	if failures := countFailed(results); failures > 0 {
		batch.Recount()
		batch.Error = fmt.Sprintf("phase 1 failed: %d of %d workflows could not be created or updated; activation skipped", failures, len(defs))

		o.emit(ctx, emit, events.ImportProgress{
			ID:        runID,
			Type:      events.ImportFailedEvent,
			Timestamp: time.Now().UTC(),
			Error:     batch.Error,
		})

		return batch, nil
	}

	if !opts.SkipActivation {
		if err := o.runActivatePhase(ctx, runID, results, emit); err != nil {
			batch.Recount()
			batch.Error = err.Error()

			o.emit(ctx, emit, events.ImportProgress{
				ID:        runID,
				Type:      events.ImportFailedEvent,
				Timestamp: time.Now().UTC(),
				Error:     err.Error(),
			})

			return batch, err
		}
	}

	batch.Recount()

	o.emit(ctx, emit, events.ImportProgress{
		ID:        runID,
		Type:      events.ImportCompletedEvent,
		Timestamp: time.Now().UTC(),
		Total:     len(defs),
	})

	o.logger.InfoContext(ctx, "Bulk import finished",
		"total", batch.Total, "created", batch.Created, "updated", batch.Updated,
		"skipped", batch.Skipped, "activated", batch.Activated, "failed", batch.Failed)

	return batch, nil
}

// runCreatePhase creates or updates every workflow in dependency order with
// activation suppressed. Per-item failures land on the results; only
// cancellation and registry access errors abort the loop.
func (o *Orchestrator) runCreatePhase(
	ctx context.Context,
	runID string,
	order []string,
	byName map[string]*models.WorkflowDefinition,
	opts Options,
	remote map[string]n8n.Workflow,
	emit emitFunc,
) ([]*models.ItemResult, error) {
	o.emit(ctx, emit, events.ImportProgress{
		ID:        runID,
		Type:      events.ImportPhaseChangedEvent,
		Timestamp: time.Now().UTC(),
		Phase:     1,
	})

	results := make([]*models.ItemResult, 0, len(order))
	phaseOpts := Options{ForceUpdate: opts.ForceUpdate, SkipActivation: true}

	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		def := byName[name]

		o.emit(ctx, emit, events.ImportProgress{
			ID:        runID,
			Type:      events.ImportWorkflowStartedEvent,
			Timestamp: time.Now().UTC(),
			Phase:     1,
			Filename:  def.Filename,
			Name:      def.Name,
		})

		entry, err := o.lookupEntry(ctx, def)
		if err != nil {
			return results, err
		}

		var result *models.ItemResult

		if skippable(entry, def, phaseOpts) {
			result = &models.ItemResult{
				Filename:      def.Filename,
				Name:          def.Name,
				Status:        models.ImportOutcomeSkipped,
				N8NWorkflowID: entry.N8NWorkflowID,
			}
		} else {
			result = o.importOne(ctx, def, entry, phaseOpts, remote)
		}

		results = append(results, result)

		o.emit(ctx, emit, events.ImportProgress{
			ID:        runID,
			Type:      events.ImportWorkflowCompletedEvent,
			Timestamp: time.Now().UTC(),
			Phase:     1,
			Filename:  result.Filename,
			Name:      result.Name,
			Status:    string(result.Status),
			Error:     result.Error,
		})
	}

	return results, nil
}

// runActivatePhase activates every workflow created or updated in phase 1,
// in the same dependency order, pausing after each activation. Skipped
// items are already live and are not touched again.
func (o *Orchestrator) runActivatePhase(ctx context.Context, runID string, results []*models.ItemResult, emit emitFunc) error {
	o.emit(ctx, emit, events.ImportProgress{
		ID:        runID,
		Type:      events.ImportPhaseChangedEvent,
		Timestamp: time.Now().UTC(),
		Phase:     2,
	})

	for _, result := range results {
		if result.Status != models.ImportOutcomeCreated && result.Status != models.ImportOutcomeUpdated {
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		o.emit(ctx, emit, events.ImportProgress{
			ID:        runID,
			Type:      events.ImportWorkflowStartedEvent,
			Timestamp: time.Now().UTC(),
			Phase:     2,
			Filename:  result.Filename,
			Name:      result.Name,
		})

		entry, err := o.entries.GetByFilename(ctx, result.Filename)
		if err != nil {
			return err
		}

		if entry == nil {
			return fmt.Errorf("registry entry for %s disappeared between phases", result.Filename)
		}

		o.activate(ctx, entry, result)

		o.emit(ctx, emit, events.ImportProgress{
			ID:        runID,
			Type:      events.ImportWorkflowCompletedEvent,
			Timestamp: time.Now().UTC(),
			Phase:     2,
			Filename:  result.Filename,
			Name:      result.Name,
			Status:    string(result.Status),
			Error:     result.Error,
		})

		if result.Status == models.ImportOutcomeImported {
			if err := o.pause(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

// emit delivers a progress event to the run's consumer and, when an event
// bus is configured, to the bus. Bus failures are logged, never fatal: the
// import itself must not fail because a broker is down.
func (o *Orchestrator) emit(ctx context.Context, emit emitFunc, event events.ImportProgress) {
	emit(event)

	if o.bus == nil {
		return
	}

	if err := o.bus.Publish(ctx, event.ID, event); err != nil {
		o.logger.WarnContext(ctx, "Failed to publish import progress event",
			"event_type", event.Type, "error", err)
	}
}

func countFailed(results []*models.ItemResult) int {
	failed := 0

	for _, result := range results {
		if result.Status == models.ImportOutcomeFailed {
			failed++
		}
	}

	return failed
}
