package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Comments       *handlers.CommentsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Every /api route except login is
// authenticated and then checked against the role gate.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	api := app.Group("/api")
	api.Post("/auth/login", cfg.Auth.Login)

	protected := api.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/users/current", auth.Require(auth.OpCurrentUser), cfg.Auth.CurrentUser)

	tickets := protected.Group("/tickets")
	tickets.Get("/", auth.Require(auth.OpListTickets), cfg.Tickets.ListTickets)
	tickets.Get("/search", auth.Require(auth.OpSearchTickets), cfg.Tickets.SearchTickets)
	tickets.Post("/", auth.Require(auth.OpCreateTicket), cfg.Tickets.CreateTicket)
	tickets.Get("/:id", auth.Require(auth.OpGetTicket), cfg.Tickets.GetTicket)
	tickets.Put("/:id/status", auth.Require(auth.OpUpdateStatus), cfg.Tickets.UpdateStatus)
	tickets.Delete("/:id", auth.Require(auth.OpDeleteTicket), cfg.Tickets.DeleteTicket)
	tickets.Get("/:id/audit", auth.Require(auth.OpViewAuditLog), cfg.Tickets.AuditLog)

	comments := protected.Group("/comments")
	comments.Post("/", auth.Require(auth.OpAddComment), cfg.Comments.AddComment)
	comments.Get("/ticket/:id", auth.Require(auth.OpListComments), cfg.Comments.ListForTicket)
}
