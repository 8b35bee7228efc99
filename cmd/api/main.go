package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpticket-service/internal/api/http"
	"github.com/spec-kit/helpticket-service/internal/api/http/handlers"
	"github.com/spec-kit/helpticket-service/internal/auth"
	"github.com/spec-kit/helpticket-service/internal/cache"
	"github.com/spec-kit/helpticket-service/internal/config"
	"github.com/spec-kit/helpticket-service/internal/events"
	"github.com/spec-kit/helpticket-service/internal/observability"
	"github.com/spec-kit/helpticket-service/internal/persistence"
	"github.com/spec-kit/helpticket-service/internal/repository"
	"github.com/spec-kit/helpticket-service/internal/repository/memory"
	"github.com/spec-kit/helpticket-service/internal/service"
	"github.com/spec-kit/helpticket-service/internal/storage"
	"github.com/spec-kit/helpticket-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
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

	var store repository.Transactor
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = repository.NewPostgresStore(pool)
	} else {
		store = memory.NewStore()
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var calendarCache service.CalendarCache
	if redis.Client != nil {
		calendarCache = cache.NewCalendarCache(redis.Client, cfg.Redis.CalendarTTL(), logger)
	}

	var evidence handlers.EvidenceUploader
	if cfg.Storage.Enabled() {
		evidenceStore, err := storage.NewEvidenceStore(ctx, cfg.Storage)
		if err != nil {
			logger.Warn("evidence storage unavailable; uploads disabled", zap.Error(err))
		} else {
			evidence = evidenceStore
			logger.Info("evidence storage ready", zap.String("bucket", cfg.Storage.Bucket))
		}
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartNotificationWorker(dispatcher, logger, cfg.Notification)
	metrics := observability.NewMetrics()

	configService := service.NewTicketConfigService(service.ConfigDependencies{
		Store:      store,
		Cache:      calendarCache,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err := configService.EnsureDefaults(ctx, cfg.Calendar); err != nil {
		logger.Fatal("failed to seed calendar config", zap.Error(err))
	}
	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Calendars:  configService,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: cfg.App.BodyLimitMB * 1024 * 1024,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Tickets:        handlers.NewHelpTicketsHandler(ticketService, configService, evidence, logger),
		Config:         handlers.NewConfigHandler(configService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
