package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/prodfactory/flowsync/pkg/drift"
	"github.com/prodfactory/flowsync/pkg/events"
	"github.com/prodfactory/flowsync/pkg/importer"
	"github.com/prodfactory/flowsync/pkg/lock"
	"github.com/prodfactory/flowsync/pkg/models"
	"github.com/prodfactory/flowsync/pkg/registry"
	"github.com/prodfactory/flowsync/pkg/reset"
)

const (
	// operationsLock serializes import, sync, and reset against each other.
	// The engines assume exclusive access to the registry while they run.
	operationsLock = "operations"
	lockTTL        = 15 * time.Minute
)

// Operations fronts the three engines. It validates requests, serializes
// runs through the locker, and resolves composite reset modes.
type Operations struct {
	orchestrator *importer.Orchestrator
	bundleCheck  *importer.Validator
	reconciler   *drift.Reconciler
	controller   *reset.Controller
	settings     registry.SettingsRepository
	locker       lock.Locker
	validate     *validator.Validate
	logger       *slog.Logger
}

// NewOperations creates a new operations service.
func NewOperations(
	orchestrator *importer.Orchestrator,
	bundleCheck *importer.Validator,
	reconciler *drift.Reconciler,
	controller *reset.Controller,
	settings registry.SettingsRepository,
	locker lock.Locker,
	logger *slog.Logger,
) *Operations {
	if locker == nil {
		locker = lock.NoopLocker{}
	}

	return &Operations{
		orchestrator: orchestrator,
		bundleCheck:  bundleCheck,
		reconciler:   reconciler,
		controller:   controller,
		settings:     settings,
		locker:       locker,
		validate:     validator.New(),
		logger:       logger.With("module", "services"),
	}
}

// ImportRequest imports a single bundled workflow.
type ImportRequest struct {
	Filename       string `json:"filename"        validate:"required"`
	ForceUpdate    bool   `json:"force_update"`
	SkipActivation bool   `json:"skip_activation"`
}

// BulkImportRequest imports the whole bundle.
type BulkImportRequest struct {
	ForceUpdate    bool `json:"force_update"`
	SkipActivation bool `json:"skip_activation"`
}

// SyncRequest runs one drift reconciliation pass. Mode defaults to detect.
// IncludeOrphans defaults to true; when false, orphans are reported but
// never matched against the bundle or adopted.
type SyncRequest struct {
	Mode           string `json:"mode" validate:"omitempty,oneof=detect pull reconcile"`
	IncludeOrphans *bool  `json:"include_orphans,omitempty"`
}

// ResetRequest tears down imported state. Confirm must be the exact phrase
// "reset-<mode>"; anything else rejects the request before any side effect.
// PreserveN8NConfig overrides the per-mode default: soft keeps the stored
// connection settings, full clears them.
type ResetRequest struct {
	Mode              string `json:"mode"    validate:"required,oneof=soft full clear_config factory"`
	Confirm           string `json:"confirm"`
	PreserveN8NConfig *bool  `json:"preserve_n8n_config,omitempty"`
}

// ImportWorkflow imports a single workflow by bundle filename.
func (o *Operations) ImportWorkflow(ctx context.Context, req ImportRequest) (*models.ItemResult, error) {
	if err := o.validate.Struct(req); err != nil {
		return nil, &ServiceError{Op: "import", Message: err.Error(), Err: ErrInvalidRequest}
	}

	release, err := o.acquire(ctx, "import")
	if err != nil {
		return nil, err
	}
	defer o.release(ctx, release)

	return o.orchestrator.Import(ctx, req.Filename, importer.Options{
		ForceUpdate:    req.ForceUpdate,
		SkipActivation: req.SkipActivation,
	})
}

// ImportAll runs the two-phase bulk import over the whole bundle.
func (o *Operations) ImportAll(ctx context.Context, req BulkImportRequest) (*models.BatchResult, error) {
	release, err := o.acquire(ctx, "import-all")
	if err != nil {
		return nil, err
	}
	defer o.release(ctx, release)

	return o.orchestrator.ImportAll(ctx, importer.Options{
		ForceUpdate:    req.ForceUpdate,
		SkipActivation: req.SkipActivation,
	})
}

// ImportAllStream runs the bulk import and streams progress events. The
// operation lock is held until the stream's terminal event has been
// forwarded and the returned channel is closed.
func (o *Operations) ImportAllStream(ctx context.Context, req BulkImportRequest) (<-chan events.ImportProgress, error) {
	release, err := o.acquire(ctx, "import-all-stream")
	if err != nil {
		return nil, err
	}

	inner := o.orchestrator.ImportAllStream(ctx, importer.Options{
		ForceUpdate:    req.ForceUpdate,
		SkipActivation: req.SkipActivation,
	})

	stream := make(chan events.ImportProgress)

	go func() {
		defer close(stream)
		defer o.release(ctx, release)

		for event := range inner {
			select {
			case stream <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return stream, nil
}

// ValidateBundle runs the read-only pre-import checks. No lock is taken:
// validation has no side effects.
func (o *Operations) ValidateBundle(ctx context.Context) (*importer.Report, error) {
	return o.bundleCheck.Validate(ctx)
}

// Sync runs one drift reconciliation pass.
func (o *Operations) Sync(ctx context.Context, req SyncRequest) (*models.SyncResult, error) {
	if err := o.validate.Struct(req); err != nil {
		return nil, &ServiceError{Op: "sync", Message: err.Error(), Err: ErrInvalidSyncMode}
	}

	mode := models.SyncMode(req.Mode)
	if req.Mode == "" {
		mode = models.SyncModeDetect
	}

	release, err := o.acquire(ctx, "sync")
	if err != nil {
		return nil, err
	}
	defer o.release(ctx, release)

	opts := []drift.SyncOption{}
	if req.IncludeOrphans != nil {
		opts = append(opts, drift.WithOrphanMatching(*req.IncludeOrphans))
	}

	return o.reconciler.Sync(ctx, mode, opts...)
}

// Reset tears down imported state after confirmation. Composite modes are
// resolved here: clear_config touches only the stored settings, factory is
// a full reset followed by settings clearing.
func (o *Operations) Reset(ctx context.Context, req ResetRequest) (*models.ResetResult, error) {
	if err := o.validate.Struct(req); err != nil {
		return nil, &ServiceError{Op: "reset", Message: err.Error(), Err: ErrInvalidResetMode}
	}

	if expected := "reset-" + req.Mode; req.Confirm != expected {
		return nil, &ServiceError{
			Op:      "reset",
			Message: fmt.Sprintf("confirm with the exact phrase %q", expected),
			Err:     ErrConfirmationRequired,
		}
	}

	release, err := o.acquire(ctx, "reset")
	if err != nil {
		return nil, err
	}
	defer o.release(ctx, release)

	mode := models.ResetMode(req.Mode)

	switch mode {
	case models.ResetModeClearConfig:
		result := &models.ResetResult{Mode: mode}

		if err := o.settings.Reset(ctx); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to reset settings: %v", err))
		} else {
			result.SettingsReset = true
		}

		return result, nil
	case models.ResetModeFactory:
		result, err := o.controller.Reset(ctx, models.ResetModeFull)
		if err != nil {
			return nil, err
		}

		result.Mode = mode

		if err := o.settings.Reset(ctx); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to reset settings: %v", err))
		} else {
			result.SettingsReset = true
		}

		return result, nil
	case models.ResetModeSoft, models.ResetModeFull:
		result, err := o.controller.Reset(ctx, mode)
		if err != nil {
			return nil, err
		}

		preserve := mode == models.ResetModeSoft
		if req.PreserveN8NConfig != nil {
			preserve = *req.PreserveN8NConfig
		}

		if !preserve {
			if err := o.settings.Reset(ctx); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("failed to reset settings: %v", err))
			} else {
				result.SettingsReset = true
			}
		}

		return result, nil
	}

	return nil, &ServiceError{Op: "reset", Message: req.Mode, Err: ErrInvalidResetMode}
}

// acquire takes the operations lock, mapping contention to a conflict error.
func (o *Operations) acquire(ctx context.Context, op string) (lock.ReleaseFunc, error) {
	release, err := o.locker.Acquire(ctx, operationsLock, lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrAlreadyLocked) {
			return nil, &ServiceError{Op: op, Err: ErrOperationInProgress}
		}

		return nil, fmt.Errorf("failed to acquire operations lock: %w", err)
	}

	return release, nil
}

// release frees the operations lock even when the request context is
// already canceled.
func (o *Operations) release(ctx context.Context, release lock.ReleaseFunc) {
	if err := release(context.WithoutCancel(ctx)); err != nil {
		o.logger.Warn("Failed to release operations lock", "error", err)
	}
}
