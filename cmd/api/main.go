package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-desk/internal/api/http"
	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/repository/memory"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var store repository.UnitOfWork
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, cfg.Postgres.DSN, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = repository.NewStore(pg.Pool)
	} else {
		store = memory.NewStore()
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	dispatcher := events.NewInMemoryDispatcher()
	var publisher service.EventPublisher
	if p := events.NewRedisPublisher(redis.Client, cfg.Notification.RedisChannel); p != nil {
		publisher = p
		logger.Info("publishing ticket events", zap.String("channel", p.Channel()))
	}
	notifications := service.NewNotificationService(logger, publisher)
	notifier := worker.NewNotificationWorker(dispatcher, notifications, logger, cfg.Notification.QueueSize)
	notifier.Start(ctx)

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{Store: store, Logger: logger})
	if err := authService.Bootstrap(ctx, cfg.Bootstrap); err != nil {
		logger.Fatal("failed to provision bootstrap users", zap.Error(err))
	}
	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	commentService := service.NewCommentService(service.CommentDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	metrics := observability.NewMetrics()
	app := httptransport.NewApp(httptransport.ServerConfig{
		AppName:        cfg.App.Name,
		RequestTimeout: cfg.App.RequestTimeout(),
		Logger:         logger,
		Metrics:        metrics,
		Routes: httptransport.RouteConfig{
			Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
			Auth:           handlers.NewAuthHandler(authService),
			Tickets:        handlers.NewTicketsHandler(ticketService),
			Comments:       handlers.NewCommentsHandler(commentService),
			AuthMiddleware: auth.NewAuthMiddleware(authService),
		},
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.Bool("postgres", pg.Enabled()), zap.Bool("redis", redis.Enabled()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	notifier.Stop()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
