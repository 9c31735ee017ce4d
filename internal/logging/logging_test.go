package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"kplays-api/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("whatever"))
}

func TestNewJSONInProduction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.AppConfig{Name: "kplays-api", Environment: "production", LogLevel: "info"}, &buf)

	logger.Info("cache populated", "key", "games_cache")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "cache populated", line["msg"])
	assert.Equal(t, "games_cache", line["key"])
	assert.Equal(t, "kplays-api", line["service"])
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.AppConfig{Environment: "production", LogLevel: "warn"}, &buf)

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewPrettyInDevelopment(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.AppConfig{Environment: "development"}, &buf)

	logger.Info("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}
