package services

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/prodfactory/flowsync/pkg/registry"
)

// Setup manages the stored n8n connection settings.
type Setup struct {
	settings registry.SettingsRepository
	validate *validator.Validate
}

// NewSetup creates a new setup service.
func NewSetup(settings registry.SettingsRepository) *Setup {
	return &Setup{
		settings: settings,
		validate: validator.New(),
	}
}

// SaveSettingsRequest stores the remote connection configuration.
type SaveSettingsRequest struct {
	BaseURL string `json:"base_url" validate:"required,url"`
	APIKey  string `json:"api_key"  validate:"required"`
}

// SettingsResponse is the stored configuration with the API key redacted.
type SettingsResponse struct {
	BaseURL       string    `json:"base_url,omitempty"`
	APIKeySet     bool      `json:"api_key_set"`
	SetupComplete bool      `json:"setup_complete"`
	UpdatedAt     time.Time `json:"updated_at,omitzero"`
}

// Get returns the stored settings. An unconfigured system returns an empty
// response, not an error.
func (s *Setup) Get(ctx context.Context) (*SettingsResponse, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	if settings == nil {
		return &SettingsResponse{}, nil
	}

	return &SettingsResponse{
		BaseURL:       settings.N8NBaseURL,
		APIKeySet:     settings.N8NAPIKey != "",
		SetupComplete: settings.SetupComplete,
		UpdatedAt:     settings.UpdatedAt,
	}, nil
}

// Save validates and stores the remote connection configuration, marking
// setup as complete.
func (s *Setup) Save(ctx context.Context, req SaveSettingsRequest) (*SettingsResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, &ServiceError{Op: "settings.save", Message: err.Error(), Err: ErrInvalidRequest}
	}

	settings := &registry.Settings{
		N8NBaseURL:    req.BaseURL,
		N8NAPIKey:     req.APIKey,
		SetupComplete: true,
		UpdatedAt:     time.Now().UTC(),
	}

	if err := s.settings.Save(ctx, settings); err != nil {
		return nil, err
	}

	return &SettingsResponse{
		BaseURL:       settings.N8NBaseURL,
		APIKeySet:     true,
		SetupComplete: true,
		UpdatedAt:     settings.UpdatedAt,
	}, nil
}
