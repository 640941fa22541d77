package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mwangaza12/meditime/internal/api"
	"github.com/mwangaza12/meditime/internal/appointment"
	"github.com/mwangaza12/meditime/internal/complaint"
	"github.com/mwangaza12/meditime/internal/config"
	"github.com/mwangaza12/meditime/internal/db"
	"github.com/mwangaza12/meditime/internal/live"
	"github.com/mwangaza12/meditime/internal/metrics"
	redisclient "github.com/mwangaza12/meditime/internal/redis"
	"github.com/mwangaza12/meditime/internal/session"
	"github.com/mwangaza12/meditime/internal/user"
	"github.com/mwangaza12/meditime/pkg/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("version", version).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	issuer := session.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)

	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	appointments := appointment.NewService(appointment.NewPgRepository(pgPool), locker, cfg, logger, m)
	complaints := complaint.NewService(complaint.NewPgRepository(pgPool), logger)
	users := user.NewService(user.NewPgRepository(pgPool), issuer, logger)

	broker := redisclient.NewBroker(rdb, logger)
	liveServer := live.NewServer(live.NewHub(), broker, logger, m)
	defer liveServer.Close()

	go func() {
		if err := broker.Run(rootCtx, liveServer.Deliver); err != nil {
			logger.Error().Err(err).Msg("live broker stopped")
		}
	}()

	health := api.NewHealthHandler(
		func(ctx context.Context) error { return pgPool.Ping(ctx) },
		func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		cfg.Env,
		version,
	)

	router := api.NewRouter(api.RouterConfig{
		Appointments: appointments,
		Complaints:   complaints,
		Auth:         users,
		Verifier:     issuer,
		Live:         liveServer,
		Health:       health,
		Metrics:      m,
		Gatherer:     registry,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return
	}

	logger.Info().Msg("api-server stopped")
}
