package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"invoice-bookkeeping-backend/internal/config"
	handler "invoice-bookkeeping-backend/internal/handlers"
	"invoice-bookkeeping-backend/internal/idempotency"
	"invoice-bookkeeping-backend/internal/logger"
	"invoice-bookkeeping-backend/internal/metrics"
	"invoice-bookkeeping-backend/internal/migration"
	"invoice-bookkeeping-backend/internal/routes"
	"invoice-bookkeeping-backend/internal/services/stats"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zlog, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB(cfg.Database, zlog)
	if err != nil {
		return err
	}
	defer func() { _ = config.CloseDB(db) }()

	if err := migration.Bootstrap(cfg.Database, db, zlog); err != nil {
		return err
	}

	m := metrics.New()
	agg := stats.NewAggregator(db, zlog, stats.WithMetrics(m), stats.WithTolerance(cfg.Stats.DriftTolerance))
	ctx := context.Background()
	if err := agg.EnsureSnapshot(ctx); err != nil {
		return fmt.Errorf("init stats snapshot: %w", err)
	}

	store, err := idempotency.NewStore(cfg.Redis, zlog)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	handler.SetupValidator()
	router := routes.NewRouter(db, routes.Deps{
		Config:      cfg,
		Logger:      zlog,
		Metrics:     m,
		Idempotency: store,
		Stats:       agg,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("http server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		zlog.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	zlog.Info("server exited")
	return nil
}
