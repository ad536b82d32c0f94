package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/DEMONNN69/hmpi-map-engine/internal/adapter/backend"
	"github.com/DEMONNN69/hmpi-map-engine/internal/adapter/httpadapter"
	kafkaadapter "github.com/DEMONNN69/hmpi-map-engine/internal/adapter/kafka"
	"github.com/DEMONNN69/hmpi-map-engine/internal/aggregate"
	"github.com/DEMONNN69/hmpi-map-engine/internal/config"
	"github.com/DEMONNN69/hmpi-map-engine/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client := backend.NewClient(cfg.BackendBaseURL, backend.StaticToken(cfg.BackendToken),
		cfg.RequestTimeout, cfg.RequestsPerSec, metrics, logger)

	// Page cache is opt-in (PAGE_CACHE_SIZE > 0).
	var source aggregate.PageSource = client
	if cfg.PageCacheSize > 0 {
		source = backend.NewCachedPageFetcher(client, cfg.PageCacheSize, metrics)
		logger.Info("page cache enabled", "size", cfg.PageCacheSize)
	}

	// Kafka export (feature-flagged via KAFKA_EXPORT_ENABLED / KAFKA_BROKERS).
	var exporter aggregate.Exporter
	var writer *kafkaadapter.Writer
	if cfg.ExportEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		exporter = writer
		logger.Info("kafka export enabled", "topic", cfg.KafkaSinkTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka export disabled")
	}

	agg := aggregate.New(source, exporter, logger, metrics, cfg.PageSize, cfg.PageFields)

	srv := httpadapter.NewServer(cfg.HTTPAddr, agg, client, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the initial full scan.
	agg.Start(ctx)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
