package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/prodfactory/flowsync/pkg/bundle"
	"github.com/prodfactory/flowsync/pkg/cmd"
	"github.com/prodfactory/flowsync/pkg/drift"
	"github.com/prodfactory/flowsync/pkg/importer"
	"github.com/prodfactory/flowsync/pkg/log"
	"github.com/prodfactory/flowsync/pkg/otelhelper"
	"github.com/prodfactory/flowsync/pkg/reset"
	"github.com/prodfactory/flowsync/pkg/services"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	app := &cli.Command{
		Name:                  "flowsync-api",
		Usage:                 "HTTP API for bundled n8n workflow management",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "bundle-dir",
				Usage:   "Directory containing the bundled workflow JSON files",
				Value:   "./workflows",
				Sources: cli.EnvVars("FLOWSYNC_BUNDLE_DIR"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Registry store URL (file path or postgres://...)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "n8n-url",
				Usage:   "n8n instance base URL (falls back to stored settings)",
				Sources: cli.EnvVars("N8N_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "n8n-api-key",
				Usage:   "n8n API key (falls back to stored settings)",
				Sources: cli.EnvVars("N8N_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel, empty to disable)",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the operation lock (empty for in-process only)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing flowsync API")

			tracerProvider, err := otelhelper.InitTracer(ctx, "flowsync-api")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
				}
			}()

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			client, err := cmd.NewN8NClient(ctx, logger, persistence.SettingsRepository(),
				command.String("n8n-url"), command.String("n8n-api-key"))
			if err != nil {
				return err
			}

			bus, err := cmd.NewEventBus(command.String("event-bus"), "flowsync-api", logger)
			if err != nil {
				return err
			}

			if bus != nil {
				defer func() {
					if err := bus.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
					}
				}()
			}

			locker, err := cmd.NewLocker(command.String("redis-url"))
			if err != nil {
				return err
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

			api := NewAPI(
				logger,
				services.NewStatus(loader, persistence),
				services.NewSetup(persistence.SettingsRepository()),
				operations,
			)

			return api.Start(command.Int("port"))
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
