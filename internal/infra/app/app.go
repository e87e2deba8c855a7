// Package app assembles the gateway: configuration, storage backends,
// security monitor, session manager and the HTTP transport. All state lives
// in constructed objects; nothing here is a package-level singleton.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/passgage/auth-gateway/internal/core/port"
	"github.com/passgage/auth-gateway/internal/infra/config"
	"github.com/passgage/auth-gateway/internal/infra/database"
	"github.com/passgage/auth-gateway/internal/infra/kafka"
	"github.com/passgage/auth-gateway/internal/infra/logger"
	redisinfra "github.com/passgage/auth-gateway/internal/infra/redis"
	"github.com/passgage/auth-gateway/internal/infra/security"
	"github.com/passgage/auth-gateway/internal/infra/telemetry"
	"github.com/passgage/auth-gateway/internal/infra/upstream"
	memoryrepo "github.com/passgage/auth-gateway/internal/repository/memory"
	postgresrepo "github.com/passgage/auth-gateway/internal/repository/postgres"
	redisrepo "github.com/passgage/auth-gateway/internal/repository/redis"
	"github.com/passgage/auth-gateway/internal/transport/http/handlers"
	"github.com/passgage/auth-gateway/internal/transport/http/middleware"
	"github.com/passgage/auth-gateway/internal/transport/http/routes"
	"github.com/passgage/auth-gateway/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// App owns the assembled gateway and its shutdown order.
type App struct {
	cfg    *config.AppConfig
	logger *zap.Logger
	server *http.Server

	sessions *usecase.SessionManager
	monitor  *usecase.SecurityMonitor

	closers []func(context.Context) error
}

// New wires the gateway from configuration. Dispatcher may be nil, in which
// case the logging stub is used.
func New(ctx context.Context, cfg *config.AppConfig, dispatcher port.CommandDispatcher) (*App, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{cfg: cfg, logger: log}

	registry := prometheus.NewRegistry()
	metrics, err := telemetry.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	if cfg.Telemetry.TracingEnabled {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		a.closers = append(a.closers, tp.Shutdown)
	}

	cipher, err := security.NewCredentialCipher(security.CipherConfig{
		Key:        cfg.Crypto.Key,
		Passphrase: cfg.Crypto.Passphrase,
		Salt:       cfg.Crypto.Salt,
	})
	if err != nil {
		return nil, fmt.Errorf("init credential cipher: %w", err)
	}

	health := handlers.NewHealthHandler(log)

	var (
		sessionStore port.SessionStore
		attemptStore port.AttemptStore
	)
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		client, err := redisinfra.NewClient(cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })

		sessionStore = redisrepo.NewSessionStore(client.Client(), cfg.Redis.SessionPrefix)
		attemptStore = redisrepo.NewAttemptStore(client.Client(), redisrepo.AttemptStoreConfig{
			KeyPrefix: cfg.Redis.AttemptPrefix,
			TTL:       cfg.Security.Lookback,
		})
		health.WithCheck("redis", client.HealthCheck)
	default:
		sessionStore = memoryrepo.NewSessionStore()
		attemptStore = memoryrepo.NewAttemptStore()
	}

	monitor := usecase.NewSecurityMonitor(usecase.SecurityConfig{
		RateWindow:         cfg.Security.RateWindow,
		RateCap:            cfg.Security.RateCap,
		FreeRetries:        cfg.Security.FreeRetries,
		MinWait:            cfg.Security.MinWait,
		MaxWait:            cfg.Security.MaxWait,
		Lookback:           cfg.Security.Lookback,
		CleanupInterval:    cfg.Security.CleanupInterval,
		CleanupAge:         cfg.Security.CleanupAge,
		EventRetention:     cfg.Security.EventRetention,
		MaxEvents:          cfg.Security.MaxEvents,
		VolumeThreshold:    cfg.Security.VolumeThreshold,
		FailureRatePercent: cfg.Security.FailureRatePercent,
		SessionFanoutCap:   cfg.Security.SessionFanoutCap,
	}, attemptStore, log).WithMetrics(metrics)

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka, log)
		if err != nil {
			return nil, fmt.Errorf("init kafka producer: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return producer.Close() })
		monitor.WithPublisher(kafka.NewEventPublisher(producer, cfg.App, log))
	} else {
		monitor.WithPublisher(kafka.NewStubPublisher(log))
	}

	if cfg.Audit.Enabled {
		pool, err := database.NewPostgresPool(ctx, cfg.Audit.Postgres, log)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		monitor.WithAuditStore(postgresrepo.NewSecurityEventStore(pool))
		health.WithCheck("postgres", pool.Ping)
	}

	sessions := usecase.NewSessionManager(sessionStore, cipher, cfg.Session.Timeout, log).
		WithSweepInterval(cfg.Session.SweepInterval).
		WithTokenBytes(cfg.Session.TokenBytes).
		WithMetrics(metrics)

	resolver := usecase.NewAuthContextResolver(cipher)

	if dispatcher == nil {
		dispatcher = upstream.NewStubDispatcher(log)
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	routes.Register(engine, routes.Deps{
		Logger:      log,
		RPC:         handlers.NewRPCHandler(sessions, monitor, resolver, dispatcher, log),
		Sessions:    handlers.NewSessionHandler(sessions, monitor, log),
		Security:    handlers.NewSecurityHandler(monitor, log),
		Health:      health,
		Admission:   monitor,
		RateLimit:   cfg.Security.RateCap,
		CORSOrigins: cfg.CORS.AllowedOrigins,
		HTTPMetrics: httpMetrics,
		Registry:    registry,
	})

	a.sessions = sessions
	a.monitor = monitor
	a.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Run starts the sweepers and the HTTP server and blocks until the context
// is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	a.sessions.StartSweeper(ctx)
	a.monitor.StartSweeper(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("gateway listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", zap.Error(err))
	}

	for _, closer := range a.closers {
		if err := closer(shutdownCtx); err != nil {
			a.logger.Warn("closer failed", zap.Error(err))
		}
	}

	_ = a.logger.Sync()
	return nil
}
