package cmd

import (
	"context"
	"log/slog"

	"github.com/prodfactory/flowsync/pkg/n8n"
	"github.com/prodfactory/flowsync/pkg/registry"
)

// NewN8NClient builds the remote client. Explicit flags win over the stored
// settings; the stored settings are the fallback so the API can be set up
// once and reused by every binary.
func NewN8NClient(
	ctx context.Context,
	logger *slog.Logger,
	settings registry.SettingsRepository,
	baseURL, apiKey string,
) (*n8n.HTTPClient, error) {
	config := n8n.Config{BaseURL: baseURL, APIKey: apiKey}

	if config.BaseURL == "" || config.APIKey == "" {
		stored, err := settings.Get(ctx)
		if err != nil {
			return nil, err
		}

		if stored != nil {
			if config.BaseURL == "" {
				config.BaseURL = stored.N8NBaseURL
			}

			if config.APIKey == "" {
				config.APIKey = stored.N8NAPIKey
			}
		}
	}

	return n8n.NewHTTPClient(config, logger)
}
