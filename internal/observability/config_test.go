package observability

import (
	"testing"

	"github.com/smallbiznis/taskhub/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("LOG_LEVEL", "")

	cfg := LoadConfig(config.Config{Environment: "development"})

	assert.Equal(t, "taskhub", cfg.ServiceName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.OtelEnabled)
	assert.True(t, cfg.Debug())
}

func TestLoadConfigEnablesExportWithEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_ENABLED", "")

	cfg := LoadConfig(config.Config{AppName: "taskhub-api", Environment: "production"})

	assert.Equal(t, "taskhub-api", cfg.ServiceName)
	assert.True(t, cfg.OtelEnabled)
	assert.False(t, cfg.Debug())
}
