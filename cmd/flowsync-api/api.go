// Package main provides the flowsync API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/prodfactory/flowsync/pkg/services"
	"github.com/prodfactory/flowsync/pkg/web"
)

type API struct {
	logger        *slog.Logger
	statusService *services.Status
	setupService  *services.Setup
	operations    *services.Operations
}

func NewAPI(
	logger *slog.Logger,
	statusService *services.Status,
	setupService *services.Setup,
	operations *services.Operations,
) *API {
	return &API{
		logger:        logger,
		statusService: statusService,
		setupService:  setupService,
		operations:    operations,
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.statusService, a.setupService, a.operations)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("flowsync API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/import", handlers.ImportWorkflow)
	w.Post("/import-all", handlers.ImportAll)
	w.Get("/import-all/stream", handlers.ImportAllStream)
	w.Post("/validate", handlers.ValidateBundle)
	w.Post("/sync", handlers.Sync)
	w.Post("/reset", handlers.Reset)
	w.Get("/:filename", handlers.GetWorkflow)

	app.Get("/settings", handlers.GetSettings)
	app.Put("/settings", handlers.SaveSettings)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
