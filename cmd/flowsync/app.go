package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/prodfactory/flowsync/pkg/bundle"
	"github.com/prodfactory/flowsync/pkg/cmd"
	"github.com/prodfactory/flowsync/pkg/drift"
	"github.com/prodfactory/flowsync/pkg/importer"
	"github.com/prodfactory/flowsync/pkg/log"
	"github.com/prodfactory/flowsync/pkg/registry"
	"github.com/prodfactory/flowsync/pkg/reset"
	"github.com/prodfactory/flowsync/pkg/services"
)

// app holds the wired services for one CLI invocation.
type app struct {
	persistence registry.Persistence
	status      *services.Status
	operations  *services.Operations
}

// errImportIncomplete makes the process exit non-zero when a batch carried
// failures, while still printing the full result.
var errImportIncomplete = errors.New("import finished with failures")

func bootstrap(ctx context.Context, command *cli.Command) (*app, func(), error) {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("cli")

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}

	client, err := cmd.NewN8NClient(ctx, logger, persistence.SettingsRepository(),
		command.String("n8n-url"), command.String("n8n-api-key"))
	if err != nil {
		cleanup()

		return nil, nil, err
	}

	bus, err := cmd.NewEventBus(command.String("event-bus"), "flowsync", logger)
	if err != nil {
		cleanup()

		return nil, nil, err
	}

	locker, err := cmd.NewLocker(command.String("redis-url"))
	if err != nil {
		cleanup()

		return nil, nil, err
	}

	loader := bundle.NewLoader(command.String("bundle-dir"), logger)
	entries := persistence.EntryRepository()

	orchestratorOpts := []importer.Option{}
	reconcilerOpts := []drift.Option{}
	controllerOpts := []reset.Option{}

	if bus != nil {
		orchestratorOpts = append(orchestratorOpts, importer.WithEventBus(bus))
		reconcilerOpts = append(reconcilerOpts, drift.WithEventBus(bus))
		controllerOpts = append(controllerOpts, reset.WithEventBus(bus))
	}

	orchestrator := importer.NewOrchestrator(loader, client, entries, logger, orchestratorOpts...)
	validator := importer.NewValidator(loader, importer.NewClientCatalog(client), logger)
	reconciler := drift.NewReconciler(loader, client, entries, logger, reconcilerOpts...)
	controller := reset.NewController(client, entries, logger, controllerOpts...)

	operations := services.NewOperations(orchestrator, validator, reconciler, controller,
		persistence.SettingsRepository(), locker, logger)

	return &app{
		persistence: persistence,
		status:      services.NewStatus(loader, persistence),
		operations:  operations,
	}, cleanup, nil
}

// printJSON writes an indented result document to stdout. Logs go to
// stderr, so stdout stays machine-readable.
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}

func runList(ctx context.Context, command *cli.Command) error {
	application, cleanup, err := bootstrap(ctx, command)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := application.status.List(ctx)
	if err != nil {
		return err
	}

	return printJSON(result)
}

func runImport(ctx context.Context, command *cli.Command) error {
	filename := command.Args().First()
	if filename == "" {
		return errors.New("usage: flowsync import <filename>")
	}

	application, cleanup, err := bootstrap(ctx, command)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := application.operations.ImportWorkflow(ctx, services.ImportRequest{
		Filename:       filename,
		ForceUpdate:    command.Bool("force"),
		SkipActivation: command.Bool("skip-activation"),
	})
	if err != nil {
		return err
	}

	if err := printJSON(result); err != nil {
		return err
	}

	if result.Failed() {
		return errImportIncomplete
	}

	return nil
}

func runImportAll(ctx context.Context, command *cli.Command) error {
	application, cleanup, err := bootstrap(ctx, command)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := application.operations.ImportAll(ctx, services.BulkImportRequest{
		ForceUpdate:    command.Bool("force"),
		SkipActivation: command.Bool("skip-activation"),
	})
	if result != nil {
		if printErr := printJSON(result); printErr != nil {
			return printErr
		}
	}

	if err != nil {
		return err
	}

	if result.Error != "" || result.Failed > 0 {
		return errImportIncomplete
	}

	return nil
}

func runValidate(ctx context.Context, command *cli.Command) error {
	application, cleanup, err := bootstrap(ctx, command)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := application.operations.ValidateBundle(ctx)
	if err != nil {
		return err
	}

	if err := printJSON(report); err != nil {
		return err
	}

	if !report.Valid {
		return errors.New("bundle validation failed")
	}

	return nil
}

func runSync(ctx context.Context, command *cli.Command) error {
	application, cleanup, err := bootstrap(ctx, command)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := application.operations.Sync(ctx, services.SyncRequest{
		Mode: command.String("mode"),
	})
	if err != nil {
		return err
	}

	return printJSON(result)
}

func runReset(ctx context.Context, command *cli.Command) error {
	application, cleanup, err := bootstrap(ctx, command)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := application.operations.Reset(ctx, services.ResetRequest{
		Mode:    command.String("mode"),
		Confirm: command.String("confirm"),
	})
	if err != nil {
		return err
	}

	if err := printJSON(result); err != nil {
		return err
	}

	if !result.Success() {
		return fmt.Errorf("reset finished with %d errors", len(result.Errors))
	}

	return nil
}
