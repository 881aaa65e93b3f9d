package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Raster catalog and image loading.
	ManifestPath    string
	RasterBase      string
	FetchTimeout    time.Duration
	PrefetchWorkers int

	// Legend calibration.
	CalibrationCacheSize   int
	LegendTickOffset       int
	LegendTickSkip         int
	LegendStratifiedMargin int
	MaxImageHeight         int

	// Result publishing is disabled when KafkaBrokers is empty.
	KafkaBrokers      []string
	KafkaResultsTopic string
}

// PublishEnabled reports whether finished series are published to Kafka.
func (c *Config) PublishEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("FETCH_TIMEOUT", "30s"))
	if err != nil || fetchTimeout <= 0 {
		return nil, errors.New("invalid FETCH_TIMEOUT")
	}

	cfg := &Config{
		HTTPAddr:          sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:          sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:   shutdownTimeout,
		ManifestPath:      sharedcfg.EnvOrDefault("MANIFEST_PATH", "rasters.yaml"),
		RasterBase:        os.Getenv("RASTER_BASE"),
		FetchTimeout:      fetchTimeout,
		KafkaResultsTopic: sharedcfg.EnvOrDefault("KAFKA_RESULTS_TOPIC", "timeseries-results"),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	var errs []error
	intVar := func(dst *int, name string, def, lowest int) {
		n, err := parseInt(name, def, lowest)
		if err != nil {
			errs = append(errs, err)
			return
		}
		*dst = n
	}
	intVar(&cfg.PrefetchWorkers, "PREFETCH_WORKERS", 4, 1)
	intVar(&cfg.CalibrationCacheSize, "CALIBRATION_CACHE_SIZE", 64, 1)
	intVar(&cfg.LegendTickOffset, "LEGEND_TICK_OFFSET", 5, 1)
	intVar(&cfg.LegendTickSkip, "LEGEND_TICK_SKIP", 5, 0)
	intVar(&cfg.LegendStratifiedMargin, "LEGEND_STRATIFIED_MARGIN", 10, 0)
	intVar(&cfg.MaxImageHeight, "MAX_IMAGE_HEIGHT", 10000, 0)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if cfg.ManifestPath == "" {
		return nil, errors.New("MANIFEST_PATH is required")
	}
	if cfg.PublishEnabled() && cfg.KafkaResultsTopic == "" {
		return nil, errors.New("KAFKA_RESULTS_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// parseInt reads an integer variable, rejecting values below lowest.
func parseInt(name string, def, lowest int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lowest {
		return 0, fmt.Errorf("invalid %s: %q", name, s)
	}
	return n, nil
}
