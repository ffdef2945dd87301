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

	httptransport "github.com/spec-kit/table-reservation/internal/api/http"
	"github.com/spec-kit/table-reservation/internal/api/http/handlers"
	"github.com/spec-kit/table-reservation/internal/auth"
	"github.com/spec-kit/table-reservation/internal/config"
	"github.com/spec-kit/table-reservation/internal/events"
	"github.com/spec-kit/table-reservation/internal/observability"
	"github.com/spec-kit/table-reservation/internal/persistence"
	"github.com/spec-kit/table-reservation/internal/ratelimit"
	"github.com/spec-kit/table-reservation/internal/repository"
	"github.com/spec-kit/table-reservation/internal/service"
	"github.com/spec-kit/table-reservation/internal/worker"
)

const shutdownTimeout = 10 * time.Second

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

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var reservationRepo repository.ReservationRepository
	if pg.Enabled() {
		reservationRepo = repository.NewReservationRepository(pg.Pool)
	} else {
		reservationRepo = repository.NewMemoryReservationRepository()
	}

	location, err := cfg.Reservation.Location()
	if err != nil {
		logger.Fatal("invalid reservation timezone", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()
	var (
		forwarders []events.EventHandler
		forwarder  *worker.EventForwarder
	)
	if cfg.Broker.URL != "" {
		publisher := events.NewAMQPPublisher(cfg.Broker.URL, cfg.Broker.Exchange, cfg.Broker.DialTimeout, logger.Named("amqp"))
		defer publisher.Close()
		forwarder = worker.NewEventForwarder(publisher.Handle, cfg.Broker.QueueSize, 0, logger.Named("forwarder"))
		forwarder.Start(ctx)
		forwarders = append(forwarders, forwarder.Enqueue)
		logger.Info("forwarding reservation events", zap.String("exchange", cfg.Broker.Exchange))
	}
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger.Named("audit"), forwarders...))

	reservationService := service.NewReservationService(service.ReservationDependencies{
		ReservationRepo: reservationRepo,
		Dispatcher:      dispatcher,
		Logger:          logger.Named("reservations"),
		Location:        location,
	})

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokenManager)

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:           logger,
		Metrics:          metrics,
		Timeout:          cfg.App.RequestTimeout(),
		CORSAllowOrigins: cfg.App.CORSAllowOrigins,
	})

	var rateLimit fiber.Handler
	if cfg.RateLimit.Enabled {
		rateLimit = httptransport.RateLimitMiddleware(newLimiter(cfg.RateLimit, redis), cfg.RateLimit.Capacity, logger)
	}

	deps := map[string]handlers.Pinger{"store": reservationRepo, "postgres": pg, "redis": redis}
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:            handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps, metrics),
		Reservations:      handlers.NewReservationsHandler(reservationService),
		AdminReservations: handlers.NewAdminReservationsHandler(reservationService),
		AuthMiddleware:    authMiddleware,
		RateLimit:         rateLimit,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	cancel()
	if forwarder != nil {
		<-forwarder.Done()
	}
}

func newLimiter(cfg config.RateLimitConfig, redis *persistence.Redis) ratelimit.Limiter {
	limiterCfg := ratelimit.Config{
		Capacity:       cfg.Capacity,
		RefillInterval: cfg.RefillInterval,
		TTL:            cfg.TTL,
		Prefix:         cfg.Prefix,
	}
	if redis.Enabled() {
		return ratelimit.NewRedisLimiter(redis.Client, limiterCfg)
	}
	return ratelimit.NewLocalLimiter(limiterCfg)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
