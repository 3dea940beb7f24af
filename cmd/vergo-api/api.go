// Package main provides the Vergo API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/vergohq/vergo/pkg/eventbus"
	"github.com/vergohq/vergo/pkg/identity"
	"github.com/vergohq/vergo/pkg/locks"
	"github.com/vergohq/vergo/pkg/persistence"
	"github.com/vergohq/vergo/pkg/services"
	"github.com/vergohq/vergo/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	identity    identity.Identity
	eventBus    eventbus.EventBus
	locker      locks.Locker
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	id identity.Identity,
	eventBus eventbus.EventBus,
	locker locks.Locker,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:      logger,
		persistence: p,
		identity:    id,
		eventBus:    eventBus,
		locker:      locker,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	versionService := services.NewVersions(a.persistence, a.identity, a.eventBus, a.logger)
	branchService := services.NewBranches(a.persistence, a.identity, a.eventBus, a.locker, a.logger)
	controlService := services.NewControl(a.persistence, a.identity, a.eventBus, a.locker, a.tracer, a.logger)

	handlers := web.NewAPIHandlers(versionService, branchService, controlService, a.validate, a.persistence)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Vergo API")
	})

	w := app.Group("/workflows/:workflowId")
	w.Post("/init", handlers.InitWorkflow)
	w.Get("/branches", handlers.ListBranches)
	w.Post("/branches", handlers.CreateBranch)
	w.Get("/branches/default", handlers.GetDefaultBranch)
	w.Get("/versions", handlers.ListVersions)
	w.Post("/versions", handlers.CreateVersion)
	w.Post("/branches/:branchId/rollback", handlers.Rollback)

	b := app.Group("/branches/:id")
	b.Get("/", handlers.GetBranch)
	b.Post("/archive", handlers.ArchiveBranch)
	b.Post("/head", handlers.AdvanceHead)
	b.Post("/merge", handlers.Merge)

	v := app.Group("/versions/:id")
	v.Get("/", handlers.GetVersion)
	v.Post("/tags", handlers.TagVersion)
	v.Get("/diff/:otherId", handlers.DiffVersions)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
