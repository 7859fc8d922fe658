package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/observability"
)

// ServerConfig configures the fiber application.
type ServerConfig struct {
	AppName        string
	RequestTimeout time.Duration
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Routes         RouteConfig
}

// NewApp builds a fiber app with the standard middleware chain and routes.
func NewApp(cfg ServerConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: true,
		Immutable:             true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})
	RegisterMiddlewares(app, cfg.Logger, cfg.Metrics, cfg.RequestTimeout)
	RegisterRoutes(app, cfg.Routes)
	return app
}
