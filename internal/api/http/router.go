package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/ticket-dashboard/internal/api/http/handlers"
	"github.com/spec-kit/ticket-dashboard/internal/auth"
	"github.com/spec-kit/ticket-dashboard/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Webhooks       *handlers.WebhooksHandler
	AuthMiddleware *auth.AuthMiddleware
	WebhookGuard   *auth.WebhookGuard
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health", cfg.Health.Health)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api")
	api.Get("/health", cfg.Health.Health)

	tickets := api.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireScope(auth.ScopeTicketsRead))
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/search", cfg.Tickets.Search)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/summary", cfg.Tickets.Summary)
	tickets.Get("/:id/conversations", cfg.Tickets.Conversations)
	tickets.Get("/:id/analyses", cfg.Tickets.History)
	tickets.Get("/:id/history", cfg.Tickets.Timeline)
	tickets.Post("/:id/analyze", auth.RequireScope(auth.ScopeTicketsAnalyze), cfg.Tickets.Analyze)

	hooks := api.Group("/webhooks")
	hooks.Post("/freshservice/ticket-created", cfg.WebhookGuard.Handle, cfg.Webhooks.TicketCreated)
	hooks.Post("/freshservice/ticket-updated", cfg.WebhookGuard.Handle, cfg.Webhooks.TicketUpdated)
	hooks.Get("/test", cfg.Webhooks.Test)
	hooks.Post("/test-analysis/:id", cfg.AuthMiddleware.Handle, auth.RequireScope(auth.ScopeTicketsAnalyze), cfg.Webhooks.TestAnalysis)

	api.Get("/freshservice/groups", cfg.AuthMiddleware.Handle, auth.RequireScope(auth.ScopeTicketsRead), cfg.Webhooks.Groups)
}
