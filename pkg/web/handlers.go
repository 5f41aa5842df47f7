// Package web provides the HTTP handlers for the workflow lifecycle API.
package web

import (
	"bufio"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/prodfactory/flowsync/pkg/services"
)

type APIHandlers struct {
	statusService *services.Status
	setupService  *services.Setup
	operations    *services.Operations
}

func NewAPIHandlers(
	statusService *services.Status,
	setupService *services.Setup,
	operations *services.Operations,
) *APIHandlers {
	return &APIHandlers{
		statusService: statusService,
		setupService:  setupService,
		operations:    operations,
	}
}

// GetWorkflows lists every bundled workflow joined with its registry state.
func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	result, err := h.statusService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// GetWorkflow returns the joined state of a single bundled workflow.
func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	filename := c.Params("filename")
	if filename == "" {
		return badRequest(c, "Workflow filename is required")
	}

	status, err := h.statusService.Get(c.Context(), filename)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(status)
}

// ImportWorkflow imports a single workflow by bundle filename.
func (h *APIHandlers) ImportWorkflow(c fiber.Ctx) error {
	var req services.ImportRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	result, err := h.operations.ImportWorkflow(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	// Per-item failures are embedded in the result, not surfaced as HTTP
	// errors: the request itself succeeded.
	return c.JSON(result)
}

// ImportAll runs the two-phase bulk import over the whole bundle.
func (h *APIHandlers) ImportAll(c fiber.Ctx) error {
	var req services.BulkImportRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	result, err := h.operations.ImportAll(c.Context(), req)
	if err != nil {
		if result == nil {
			return handleServiceError(c, err)
		}

		// A batch that ran but stopped (cyclic bundle, remote outage)
		// still carries its partial results.
		return c.Status(fiber.StatusConflict).JSON(result)
	}

	return c.JSON(result)
}

// ImportAllStream runs the bulk import and streams progress events as JSON
// lines. The stream always ends with exactly one terminal event.
func (h *APIHandlers) ImportAllStream(c fiber.Ctx) error {
	req := services.BulkImportRequest{
		ForceUpdate:    fiber.Query[bool](c, "force_update"),
		SkipActivation: fiber.Query[bool](c, "skip_activation"),
	}

	stream, err := h.operations.ImportAllStream(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, "application/x-ndjson")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		encoder := json.NewEncoder(w)

		for event := range stream {
			if err := encoder.Encode(event); err != nil {
				return
			}

			if err := w.Flush(); err != nil {
				return
			}
		}
	})
}

// ValidateBundle runs the read-only pre-import checks.
func (h *APIHandlers) ValidateBundle(c fiber.Ctx) error {
	report, err := h.operations.ValidateBundle(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(report)
}

// Sync runs one drift reconciliation pass.
func (h *APIHandlers) Sync(c fiber.Ctx) error {
	var req services.SyncRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	result, err := h.operations.Sync(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// Reset tears down imported state after explicit confirmation.
func (h *APIHandlers) Reset(c fiber.Ctx) error {
	var req services.ResetRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	result, err := h.operations.Reset(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// GetSettings returns the stored n8n connection settings, API key redacted.
func (h *APIHandlers) GetSettings(c fiber.Ctx) error {
	settings, err := h.setupService.Get(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(settings)
}

// SaveSettings stores the n8n connection settings.
func (h *APIHandlers) SaveSettings(c fiber.Ctx) error {
	var req services.SaveSettingsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	settings, err := h.setupService.Save(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(settings)
}

// HealthCheck reports the health of the persistence layer.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.statusService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "flowsync API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "flowsync API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
