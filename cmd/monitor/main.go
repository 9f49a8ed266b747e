package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	httpadapter "github.com/fabianodin23-lab/senapred-monitor/internal/adapter/http"
	kafkaadapter "github.com/fabianodin23-lab/senapred-monitor/internal/adapter/kafka"
	"github.com/fabianodin23-lab/senapred-monitor/internal/adapter/senapred"
	"github.com/fabianodin23-lab/senapred-monitor/internal/config"
	"github.com/fabianodin23-lab/senapred-monitor/internal/observability"
	"github.com/fabianodin23-lab/senapred-monitor/internal/pipeline"
	"github.com/fabianodin23-lab/senapred-monitor/internal/reconcile"
	"github.com/fabianodin23-lab/senapred-monitor/internal/store"
)

func main() {
	// Optional .env for local runs; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	st := store.Open(cfg.StatePath, logger)
	engine := reconcile.New(st, reconcile.Policy{
		MaxAgeDays: cfg.MaxAgeDays,
		Categories: cfg.CategoryFilter,
		Regions:    cfg.RegionFilter,
	}, logger)

	fetcher := senapred.NewClient(cfg.IndexURL, cfg.BaseURL, cfg.FetchTimeout, cfg.FetchRetries, logger)

	// Change-event publishing is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var sink pipeline.EventSink
	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		kafkaWriter = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		sink = kafkaWriter
		logger.Info("kafka change-event publishing enabled", "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka change-event publishing disabled")
	}

	monitor := pipeline.New(fetcher, engine, st, sink, pipeline.NewLogNotifier(logger), logger, metrics, pipeline.Options{
		Interval:     cfg.PollInterval,
		MaxAgeDays:   cfg.MaxAgeDays,
		HistoryLimit: cfg.HistoryLimit,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RunOnce {
		result, err := monitor.RunCycle(ctx)
		if err != nil {
			logger.Error("cycle failed", "error", err)
			os.Exit(1)
		}
		logger.Info("single cycle complete", "extracted", result.Extracted, "events", len(result.Events))
		return
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, monitor, monitor, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start poll loop.
	go func() {
		if err := monitor.Run(ctx); err != nil {
			logger.Error("monitor error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
