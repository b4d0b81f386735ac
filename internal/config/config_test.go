package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBroker    = "localhost:9092"
	testSettingsPath = "/etc/world-mosaic/settings.yaml"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MOSAIC_SETTINGS", testSettingsPath)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"tile-notifications"}, cfg.TileTopics)
	assert.Equal(t, "world-mosaic", cfg.KafkaGroupID)
	assert.Empty(t, cfg.MosaicSinkTopic)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, testSettingsPath, cfg.SettingsPath)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("TILE_TOPICS", "tiles-eu, tiles-us ,tiles-asia")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("MOSAIC_SINK_TOPIC", "mosaic-events")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("MOSAIC_SETTINGS", testSettingsPath)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"tiles-eu", "tiles-us", "tiles-asia"}, cfg.TileTopics)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, "mosaic-events", cfg.MosaicSinkTopic)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
}

func TestLoad_MissingSettingsPath(t *testing.T) {
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MOSAIC_SETTINGS")
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("MOSAIC_SETTINGS", testSettingsPath)
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("MOSAIC_SETTINGS", testSettingsPath)
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidPollInterval(t *testing.T) {
	t.Setenv("MOSAIC_SETTINGS", testSettingsPath)
	t.Setenv("POLL_INTERVAL", "0s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POLL_INTERVAL")
}

func TestLoad_BlankTopicList(t *testing.T) {
	t.Setenv("MOSAIC_SETTINGS", testSettingsPath)
	t.Setenv("TILE_TOPICS", " , ,")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TILE_TOPICS")
}
