package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/ticket-dashboard/internal/observability"
)

// RegisterRoutes wires the dashboard routes.
func RegisterRoutes(app *fiber.App, h *Handler, metrics *observability.Metrics) {
	app.Get("/healthz", h.Health)
	if metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	}

	app.Get("/", h.Dashboard)
	app.Post("/tickets/more", h.LoadMore)
	app.Post("/tickets/search", h.Search)

	ticket := app.Group("/ticket/:id")
	ticket.Get("", h.Ticket)
	ticket.Get("/summary", h.Summary)
	ticket.Post("/reply", h.Reply)
	ticket.Post("/analyze", h.Analyze)
	ticket.Post("/analysis/back", h.AnalysisBack)
	ticket.Post("/analysis/close", h.AnalysisClose)

	app.Get("/login", h.LoginForm)
	app.Post("/login", h.Login)
	app.Post("/logout", h.Logout)
}
