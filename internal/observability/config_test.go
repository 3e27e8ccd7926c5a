package observability

import (
	"testing"

	"github.com/smallbiznis/marketplace/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment: "Development",
		Telemetry:   config.TelemetryConfig{LogLevel: "info", SamplingRatio: 0.1},
	})

	assert.Equal(t, "marketplace", cfg.ServiceName)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.Equal(t, "/metrics", cfg.MetricsPath)
	assert.False(t, cfg.OtelEnabled)
	assert.True(t, cfg.Debug())
}

func TestLoadConfigTelemetry(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppName:     "marketplace-api",
		Environment: "production",
		Telemetry: config.TelemetryConfig{
			LogLevel:      "warn",
			OTLPEndpoint:  "collector:4318",
			OTLPProtocol:  "http/protobuf",
			OtelEnabled:   true,
			SamplingRatio: 0.5,
			MetricsPath:   "internal/metrics",
		},
	})

	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, 0.5, cfg.OtelSamplingRatio)
	assert.Equal(t, "/internal/metrics", cfg.MetricsPath)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigRejectsBadSampling(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment: "production",
		Telemetry:   config.TelemetryConfig{OtelEnabled: true, SamplingRatio: 4},
	})

	// Without an endpoint there is nowhere to export to.
	assert.False(t, cfg.OtelEnabled)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
}
