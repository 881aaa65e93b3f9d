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

	"github.com/couchcryptid/colorbar-timeseries/internal/adapter/fetch"
	httpadapter "github.com/couchcryptid/colorbar-timeseries/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/colorbar-timeseries/internal/adapter/kafka"
	"github.com/couchcryptid/colorbar-timeseries/internal/catalog"
	"github.com/couchcryptid/colorbar-timeseries/internal/colorbar"
	"github.com/couchcryptid/colorbar-timeseries/internal/config"
	"github.com/couchcryptid/colorbar-timeseries/internal/imagestore"
	"github.com/couchcryptid/colorbar-timeseries/internal/observability"
	"github.com/couchcryptid/colorbar-timeseries/internal/timeseries"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	cat, err := catalog.Load(cfg.ManifestPath)
	if err != nil {
		logger.Error("failed to load manifest", "path", cfg.ManifestPath, "error", err)
		os.Exit(1)
	}
	if cfg.RasterBase != "" {
		cat.SetBase(cfg.RasterBase)
	}
	logger.Info("manifest loaded", "path", cfg.ManifestPath, "domains", cat.Domains(), "raster_base", cat.Base())

	fetcher := fetch.NewClient(cfg.FetchTimeout, logger)
	cache := imagestore.NewCache(fetcher, logger, metrics)
	scheduler := imagestore.NewScheduler(cache, cfg.PrefetchWorkers, logger, metrics)

	calibrator := colorbar.NewCachedCalibrator(
		colorbar.NewCalibrator(colorbar.Options{
			TickColumnOffset: cfg.LegendTickOffset,
			TickSkipRows:     cfg.LegendTickSkip,
			StratifiedMargin: cfg.LegendStratifiedMargin,
		}, logger, metrics),
		cfg.CalibrationCacheSize,
		metrics,
	)

	engine := timeseries.New(cat, cache, scheduler, calibrator, logger, metrics,
		timeseries.Options{MaxImageHeight: cfg.MaxImageHeight})

	// Publishing is feature-flagged via KAFKA_BROKERS.
	var publisher httpadapter.Publisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.PublishEnabled() {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg, logger, metrics)
		publisher = kafkaPublisher
		logger.Info("result publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaResultsTopic)
	} else {
		logger.Info("result publishing disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, engine, publisher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	scheduler.Stop()
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
