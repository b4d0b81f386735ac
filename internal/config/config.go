package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
// Compositing behavior lives in the settings file named by SettingsPath,
// not here; the environment only wires the service into its deployment.
type Config struct {
	KafkaBrokers    []string
	TileTopics      []string
	KafkaGroupID    string
	MosaicSinkTopic string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	PollInterval    time.Duration
	SettingsPath    string
}

// Load reads configuration from environment variables, applying defaults
// where unset. MOSAIC_SETTINGS is required. An empty MOSAIC_SINK_TOPIC
// disables mosaic event publishing.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDurationEnv("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parseDurationEnv("POLL_INTERVAL", "1s")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:    splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		TileTopics:      splitList(envOrDefault("TILE_TOPICS", "tile-notifications")),
		KafkaGroupID:    envOrDefault("KAFKA_GROUP_ID", "world-mosaic"),
		MosaicSinkTopic: os.Getenv("MOSAIC_SINK_TOPIC"),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		PollInterval:    pollInterval,
		SettingsPath:    os.Getenv("MOSAIC_SETTINGS"),
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if len(cfg.TileTopics) == 0 {
		return nil, errors.New("TILE_TOPICS is required")
	}
	if cfg.SettingsPath == "" {
		return nil, errors.New("MOSAIC_SETTINGS is required")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// splitList splits a comma-separated value, trimming whitespace and
// dropping empty entries.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDurationEnv(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}
