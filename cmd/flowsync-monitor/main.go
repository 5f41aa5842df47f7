// Package main provides the flowsync monitor: a daemon that periodically
// reconciles the registry against the remote n8n instance.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/prodfactory/flowsync/pkg/bundle"
	"github.com/prodfactory/flowsync/pkg/cmd"
	"github.com/prodfactory/flowsync/pkg/drift"
	"github.com/prodfactory/flowsync/pkg/log"
	"github.com/prodfactory/flowsync/pkg/models"
	"github.com/prodfactory/flowsync/pkg/otelhelper"
)

func main() {
	logger := log.WithModule("monitor")

	app := &cli.Command{
		Name:                  "flowsync-monitor",
		Usage:                 "Periodically detect and reconcile workflow drift",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron schedule for sync runs",
				Value:   "@every 5m",
				Sources: cli.EnvVars("FLOWSYNC_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "mode",
				Usage:   "Sync mode for scheduled runs (detect, pull, reconcile)",
				Value:   "detect",
				Sources: cli.EnvVars("FLOWSYNC_SYNC_MODE"),
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
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			mode := models.SyncMode(command.String("mode"))
			if !mode.Valid() {
				return cli.Exit("invalid sync mode: "+command.String("mode"), 1)
			}

			logger.InfoContext(ctx, "Initializing flowsync monitor",
				"schedule", command.String("schedule"), "mode", mode)

			tracerProvider, err := otelhelper.InitTracer(ctx, "flowsync-monitor")
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

			bus, err := cmd.NewEventBus(command.String("event-bus"), "flowsync-monitor", logger)
			if err != nil {
				return err
			}

			loader := bundle.NewLoader(command.String("bundle-dir"), logger)

			reconcilerOpts := []drift.Option{}
			if bus != nil {
				reconcilerOpts = append(reconcilerOpts, drift.WithEventBus(bus))
			}

			reconciler := drift.NewReconciler(loader, client, persistence.EntryRepository(),
				logger, reconcilerOpts...)

			runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			scheduler := cron.New()

			_, err = scheduler.AddFunc(command.String("schedule"), func() {
				result, err := reconciler.Sync(runCtx, mode)
				if err != nil {
					logger.ErrorContext(runCtx, "Scheduled sync failed", "error", err)

					return
				}

				if result.Deleted > 0 || result.StateChanged > 0 || len(result.Orphans) > 0 {
					logger.WarnContext(runCtx, "Drift detected",
						"deleted", result.Deleted, "state_changed", result.StateChanged,
						"orphans", len(result.Orphans), "conflicts", len(result.Conflicts))
				}
			})
			if err != nil {
				return err
			}

			scheduler.Start()
			defer scheduler.Stop()

			<-runCtx.Done()

			logger.Info("Shutting down flowsync monitor")

			if bus != nil {
				if err := bus.Close(); err != nil {
					logger.Error("Failed to close event bus", "error", err)
				}
			}

			return nil
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
