package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chris/wallet-ledger/pkg/app"
	"github.com/chris/wallet-ledger/pkg/config"
	"github.com/chris/wallet-ledger/pkg/handlers"
	"github.com/chris/wallet-ledger/pkg/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", slog.Any("error", err))
		os.Exit(1)
	}

	opts := handlers.Options{
		Logger:         logger,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Metrics:        promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}),
	}
	if cfg.JWTSecret != "" {
		opts.JWTSecret = []byte(cfg.JWTSecret)
	} else {
		logger.Warn("JWT_SECRET not set; requests run as the system actor")
	}
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", slog.Any("error", err))
			os.Exit(1)
		}
		cache := redis.NewClient(redisOpts)
		defer cache.Close()
		opts.Cache = cache
	}

	router := handlers.NewRouter(handlers.Services{
		Wallets:      a.Ledger,
		History:      a.Ledger,
		Transactions: a.Settlement,
		Payouts:      a.Payouts,
	}, opts)

	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", srv.Addr), slog.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
	a.Close()
}
