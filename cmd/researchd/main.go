package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/praxis-labs/deepresearch/internal/config"
	"github.com/praxis-labs/deepresearch/internal/httpapi"
	"github.com/praxis-labs/deepresearch/internal/oracle"
	"github.com/praxis-labs/deepresearch/internal/research"
	"github.com/praxis-labs/deepresearch/internal/retriever"
	"github.com/praxis-labs/deepresearch/internal/session"
	"github.com/praxis-labs/deepresearch/internal/streaming"
	"github.com/praxis-labs/deepresearch/internal/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "researchd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := buildLogger(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	if err := tracing.Initialize(cfg.Observability.Tracing, logger); err != nil {
		logger.Warn("Tracing disabled", zap.Error(err))
	}

	store, err := buildStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("build store: %w", err)
	}
	defer store.Close()

	oracleClient := oracle.NewClient(oracle.Config{
		BaseURL:      cfg.Oracle.BaseURL,
		DefaultModel: cfg.Oracle.Model,
		Provider:     cfg.Oracle.Provider,
		Timeout:      cfg.Oracle.Timeout,
	}, logger)

	var ret retriever.Retriever
	switch cfg.Retriever.Mode {
	case "http":
		ret = retriever.NewClient(retriever.Config{
			BaseURL: cfg.Retriever.BaseURL,
			Timeout: cfg.Retriever.Timeout,
			TopK:    cfg.Retriever.TopK,
		}, logger)
	case "stub", "":
		ret = retriever.NewStub()
	default:
		return fmt.Errorf("unknown retriever mode %q", cfg.Retriever.Mode)
	}

	streamMgr := streaming.NewManager(cfg.Streaming.RingCapacity)

	orch := research.New(oracleClient, ret, logger,
		research.WithStore(store),
		research.WithEventSink(streamMgr),
		research.WithOptions(research.Options{
			MaxSubQuestions: cfg.Research.MaxSubQuestions,
			SearchTopK:      cfg.Research.SearchTopK,
			PhaseTimeout:    cfg.Research.PhaseTimeout,
		}),
	)

	mux := http.NewServeMux()
	httpapi.NewResearchHandler(orch, store, logger, cfg.Research.DefaultMaxIterations).RegisterRoutes(mux)
	httpapi.NewStreamingHandler(streamMgr, logger).RegisterRoutes(mux)

	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Service.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.MetricsPort),
		Handler: promhttp.Handler(),
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("HTTP API listening", zap.Int("port", cfg.Service.HTTPPort))
		if err := apiSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	go func() {
		logger.Info("Metrics listening", zap.Int("port", cfg.Service.MetricsPort))
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	// Hot-reload only touches log level signalling; structural changes
	// (ports, backends) need a restart.
	config.Watch(logger, func(next *config.Config) {
		logger.Info("Configuration updated",
			zap.String("log_level", next.Observability.Logging.Level))
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("Server error, shutting down", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := apiSrv.Shutdown(ctx); err != nil {
		logger.Warn("API server shutdown incomplete", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(ctx); err != nil {
		logger.Warn("Metrics server shutdown incomplete", zap.Error(err))
	}
	if err := tracing.Shutdown(ctx); err != nil {
		logger.Warn("Tracing shutdown incomplete", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}

func buildLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func buildStore(cfg *config.Config, logger *zap.Logger) (session.Store, error) {
	switch cfg.Store.Backend {
	case "redis":
		return session.NewRedisStore(cfg.Store.Redis.Addr, cfg.Store.Redis.TTL, logger)
	case "postgres":
		return session.NewPostgresStore(cfg.Store.Postgres.DSN(), logger)
	case "memory", "":
		return session.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
