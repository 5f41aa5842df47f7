package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Config holds the connection settings for one n8n instance. It is threaded
// explicitly through every operation; there is no package-level client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Validate checks the config is complete enough to build a client.
func (c Config) Validate() error {
	if c.BaseURL == "" || c.APIKey == "" {
		return ErrNotConfigured
	}

	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid n8n base URL %q: %w", c.BaseURL, err)
	}

	return nil
}

// Client is the remote registry contract. Implementations must return errors
// for both transport failures and application rejections, never panic.
type Client interface {
	List(ctx context.Context) ([]Workflow, error)
	Get(ctx context.Context, id string) (*Workflow, error)
	Create(ctx context.Context, workflow *Workflow) (*Workflow, error)
	Update(ctx context.Context, id string, workflow *Workflow) (*Workflow, error)
	Delete(ctx context.Context, id string) error
	Activate(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
	ListInstalledNodeTypes(ctx context.Context) ([]string, error)
}

// HTTPClient talks to the n8n public REST API (v1).
type HTTPClient struct {
	config Config
	http   *http.Client
	logger *slog.Logger
}

// NewHTTPClient builds a client for the given instance config.
func NewHTTPClient(config Config, logger *slog.Logger) (*HTTPClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &HTTPClient{
		config: config,
		http:   &http.Client{Timeout: timeout},
		logger: logger.With("module", "n8n_client"),
	}, nil
}

type listResponse struct {
	Data       []Workflow `json:"data"`
	NextCursor string     `json:"nextCursor"`
}

// List returns the full remote workflow listing, following the API's cursor
// pagination to the end.
func (c *HTTPClient) List(ctx context.Context) ([]Workflow, error) {
	workflows := make([]Workflow, 0)
	cursor := ""

	for {
		path := "/api/v1/workflows?limit=100"
		if cursor != "" {
			path += "&cursor=" + url.QueryEscape(cursor)
		}

		var page listResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}

		workflows = append(workflows, page.Data...)

		if page.NextCursor == "" {
			return workflows, nil
		}

		cursor = page.NextCursor
	}
}

func (c *HTTPClient) Get(ctx context.Context, id string) (*Workflow, error) {
	var workflow Workflow
	if err := c.do(ctx, http.MethodGet, "/api/v1/workflows/"+url.PathEscape(id), nil, &workflow); err != nil {
		return nil, err
	}

	return &workflow, nil
}

func (c *HTTPClient) Create(ctx context.Context, workflow *Workflow) (*Workflow, error) {
	var created Workflow
	if err := c.do(ctx, http.MethodPost, "/api/v1/workflows", workflow, &created); err != nil {
		return nil, err
	}

	return &created, nil
}

func (c *HTTPClient) Update(ctx context.Context, id string, workflow *Workflow) (*Workflow, error) {
	var updated Workflow
	if err := c.do(ctx, http.MethodPut, "/api/v1/workflows/"+url.PathEscape(id), workflow, &updated); err != nil {
		return nil, err
	}

	return &updated, nil
}

func (c *HTTPClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/workflows/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) Activate(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/workflows/"+url.PathEscape(id)+"/activate", nil, nil)
}

func (c *HTTPClient) Deactivate(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/workflows/"+url.PathEscape(id)+"/deactivate", nil, nil)
}

// ListInstalledNodeTypes reads the node type catalog the instance reports.
func (c *HTTPClient) ListInstalledNodeTypes(ctx context.Context) ([]string, error) {
	var nodeTypes []NodeType
	if err := c.do(ctx, http.MethodGet, "/types/nodes.json", nil, &nodeTypes); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(nodeTypes))
	for _, nodeType := range nodeTypes {
		names = append(names, nodeType.Name)
	}

	return names, nil
}

// do executes one API call. Non-2xx responses become *APIError with the
// message the API reported; transport failures are wrapped as-is.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader

	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}

		payload = bytes.NewReader(encoded)
	}

	endpoint := strings.TrimRight(c.config.BaseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("X-N8N-API-KEY", c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("n8n request failed: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.WarnContext(ctx, "Failed to close response body", "error", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read n8n response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Message:    apiMessage(raw),
		}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode n8n response: %w", err)
	}

	return nil
}

// apiMessage pulls the human-readable message out of an error payload,
// falling back to the raw body.
func apiMessage(raw []byte) string {
	var payload struct {
		Message string `json:"message"`
	}

	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}

	return strings.TrimSpace(string(raw))
}
