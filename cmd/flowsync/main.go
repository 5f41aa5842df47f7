// Package main provides the flowsync CLI: import, validate, sync, and reset
// a bundle of n8n workflow definitions against a remote instance.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/prodfactory/flowsync/pkg/log"
)

func main() {
	logger := log.WithModule("cli")

	app := &cli.Command{
		Name:                  "flowsync",
		Usage:                 "Manage bundled n8n workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "bundle-dir",
				Usage:   "Directory containing the bundled workflow JSON files",
				Value:   "./workflows",
				Sources: cli.EnvVars("FLOWSYNC_BUNDLE_DIR"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Registry store URL (file path or postgres://...)",
				Value:   "./data",
				Sources: cli.EnvVars("DATABASE_URL"),
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
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List bundled workflows with their registry status",
				Action: func(ctx context.Context, command *cli.Command) error {
					return runList(ctx, command)
				},
			},
			{
				Name:      "import",
				Usage:     "Import a single workflow by bundle filename",
				ArgsUsage: "<filename>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-import even when the bundled version is unchanged",
					},
					&cli.BoolFlag{
						Name:  "skip-activation",
						Usage: "Create or update without activating",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					return runImport(ctx, command)
				},
			},
			{
				Name:  "import-all",
				Usage: "Import the whole bundle in dependency order (two phases)",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-import workflows whose bundled version is unchanged",
					},
					&cli.BoolFlag{
						Name:  "skip-activation",
						Usage: "Stop after phase 1, activate nothing",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					return runImportAll(ctx, command)
				},
			},
			{
				Name:  "validate",
				Usage: "Validate the bundle without importing anything",
				Action: func(ctx context.Context, command *cli.Command) error {
					return runValidate(ctx, command)
				},
			},
			{
				Name:  "sync",
				Usage: "Reconcile the registry against the remote instance",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Sync mode (detect, pull, reconcile)",
						Value: "detect",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					return runSync(ctx, command)
				},
			},
			{
				Name:  "reset",
				Usage: "Tear down imported state",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Reset mode (soft, full, clear_config, factory)",
						Value: "soft",
					},
					&cli.StringFlag{
						Name:  "confirm",
						Usage: "Confirmation phrase, exactly \"reset-<mode>\"",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					return runReset(ctx, command)
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
