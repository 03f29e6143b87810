package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/itsm-sla/internal/api/http"
	"github.com/spec-kit/itsm-sla/internal/api/http/handlers"
	"github.com/spec-kit/itsm-sla/internal/config"
	"github.com/spec-kit/itsm-sla/internal/events"
	"github.com/spec-kit/itsm-sla/internal/observability"
	"github.com/spec-kit/itsm-sla/internal/persistence"
	"github.com/spec-kit/itsm-sla/internal/repository"
	"github.com/spec-kit/itsm-sla/internal/repository/memstore"
	"github.com/spec-kit/itsm-sla/internal/service"
	"github.com/spec-kit/itsm-sla/internal/webhook"
	"github.com/spec-kit/itsm-sla/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
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

	var store repository.Store
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = repository.NewPostgresStore(pg.PoolHandle())
	} else {
		store = memstore.New()
	}

	var (
		redis  *persistence.Redis
		locker worker.Locker
	)
	if cfg.Redis.Addr != "" {
		redis = persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		locker = redis
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	resolver := service.NewSLAResolver(store, logger, nil)
	slaService := service.NewSLAService(service.SLADependencies{
		Store:      store,
		Resolver:   resolver,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		Store:         store,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Logger:        logger,
		FallbackGroup: cfg.SLA.FallbackGroup,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		SLA:        slaService,
		Assignment: assignmentService,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Store:      store,
		Webhook:    webhook.NewClient(cfg.Notification.WebhookTimeout, cfg.Notification.MaxAttempts, logger),
		Dispatcher: dispatcher,
		Config:     cfg.Notification,
		Metrics:    metrics,
		Logger:     logger,
	})

	if cfg.App.SeedDefaults {
		seeded, err := service.NewSeeder(resolver, assignmentService, logger).Seed(ctx)
		if err != nil {
			logger.Fatal("failed to seed defaults", zap.Error(err))
		}
		logger.Info("defaults seeded", zap.Int("groups", seeded.Groups), zap.Int("mappings", seeded.Mappings))
	}

	notifier := worker.StartNotificationWorker(ctx, notificationService, cfg.Notification, logger)
	defer notifier.Stop()

	sweeper := worker.NewSweepWorker(slaService, locker, cfg.SLA, logger)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(ctx)
	}()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:        handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:       handlers.NewTicketsHandler(ticketService),
		SLA:           handlers.NewSLAHandler(slaService, resolver),
		Assignment:    handlers.NewAssignmentHandler(assignmentService),
		Users:         handlers.NewUsersHandler(assignmentService),
		Notifications: handlers.NewNotificationsHandler(notificationService),
		Metrics:       metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	cancel()
	<-sweepDone
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
