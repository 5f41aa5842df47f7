// Package cmd provides common initialization for the command-line binaries:
// persistence, event bus, locker, and n8n client construction from flags.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prodfactory/flowsync/pkg/registry"
	"github.com/prodfactory/flowsync/pkg/registry/file"
	"github.com/prodfactory/flowsync/pkg/registry/postgresql"
)

// NewPersistence selects the registry store by URL scheme: postgres:// goes
// to PostgreSQL, anything else is treated as a file path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (registry.Persistence, error) {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		persistence, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres registry: %w", err)
		}

		return persistence, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parseProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
