package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/nordsat/world-mosaic/internal/adapter/http"
	kafkaadapter "github.com/nordsat/world-mosaic/internal/adapter/kafka"
	"github.com/nordsat/world-mosaic/internal/aggregator"
	"github.com/nordsat/world-mosaic/internal/config"
	"github.com/nordsat/world-mosaic/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		logger.Error("failed to load mosaic settings", "error", err, "path", cfg.SettingsPath)
		os.Exit(1)
	}

	reader := kafkaadapter.NewReader(cfg, logger)

	// Announcements are feature-flagged via MOSAIC_SINK_TOPIC.
	var publisher aggregator.MosaicPublisher
	var writer *kafkaadapter.Writer
	if cfg.MosaicSinkTopic != "" {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("mosaic announcements enabled", "topic", cfg.MosaicSinkTopic)
	} else {
		logger.Info("mosaic announcements disabled")
	}

	runner := aggregator.New(reader, publisher, aggregator.Params{
		Area:         settings.Area(),
		Limits:       settings.SatelliteLimits(),
		Blend:        settings.BlendConfig(),
		NumExpected:  settings.NumExpected,
		Timeout:      settings.Timeout(),
		OutPattern:   settings.OutPattern,
		PollInterval: cfg.PollInterval,
	}, logger, metrics, clockwork.NewRealClock())

	srv := httpadapter.NewServer(cfg, runner, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the aggregation loop. On a startup error the loop exits
	// without ever reporting ready, so the readiness probe flags it.
	go func() {
		if err := runner.Run(ctx); err != nil {
			logger.Error("aggregator error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
