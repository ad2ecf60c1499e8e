package main

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/crewbase/crewbase/pkg/api"
	"github.com/crewbase/crewbase/pkg/auth"
	"github.com/crewbase/crewbase/pkg/config"
	"github.com/crewbase/crewbase/pkg/database"
	"github.com/crewbase/crewbase/pkg/guard"
	"github.com/crewbase/crewbase/pkg/middleware"
	"github.com/crewbase/crewbase/pkg/observability"
	"github.com/crewbase/crewbase/pkg/orgs"
	"github.com/crewbase/crewbase/pkg/teams"
	"github.com/crewbase/crewbase/pkg/users"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, os.Stdout)

	db, err := sql.Open("postgres", cfg.DB.URL)
	if err != nil {
		logger.WithError(err).Error("failed to open database")
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	if err := db.Ping(); err != nil {
		logger.WithError(err).Error("database is unreachable")
		os.Exit(1)
	}
	if err := database.RunMigrations(context.Background(), db); err != nil {
		logger.WithError(err).Error("migrations failed")
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		// Redis only backs the blacklist and rate limiter, so a cold start
		// without it is allowed. The readiness probe reports it as degraded.
		logger.WithError(err).Warn("redis is unreachable at startup")
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			metrics.ObserveDBStats(db.Stats())
		}
	}()

	userStore := users.NewPostgresStore(db)
	teamStore := teams.NewPostgresStore(db)
	orgStore := orgs.NewPostgresStore(db)
	resetStore := auth.NewPostgresResetStore(db)

	codec := auth.NewTokenCodec(cfg.Auth.Secret)
	blacklist := auth.NewBlacklist(redisClient)
	limiter := auth.NewLimiter(redisClient, cfg.Auth.ResetLimitWindow)
	totp := auth.NewTOTPProvider(cfg.Auth.TOTPIssuer)
	deliverer := auth.NewLogDeliverer(logger)

	authService := auth.NewService(
		userStore, resetStore,
		codec, blacklist, limiter, totp, deliverer,
		logger, metrics, cfg.Auth, cfg.Debug,
	)

	authorizer := guard.NewGuard(guard.NewResolver(teamStore), logger, metrics)
	authMW := middleware.NewAuthMiddleware(codec, blacklist, userStore, logger, metrics)
	server := api.NewServer(authService, authorizer, teamStore, orgStore, authMW, logger, metrics)

	appServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      metrics.InstrumentHandler("api", server.Router()),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	healthMux.Handle("/metrics", observability.Handler(registry))
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.WithField("addr", appServer.Addr).Info("starting api server")
		if err := appServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		logger.WithField("addr", healthServer.Addr).Info("starting health server")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.WithError(err).Error("server failed")
		os.Exit(1)
	case sig := <-stop:
		logger.WithField("signal", sig.String()).Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := appServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("api server shutdown was not clean")
	}
	if err := healthServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("health server shutdown was not clean")
	}
	logger.Info("shutdown complete")
}
