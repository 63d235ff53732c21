package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"", "   "} {
		providers, err := NewProviders(ctx, endpoint, "test-service", false)
		require.NoError(t, err)
		assert.NotNil(t, providers.TracerProvider)
		assert.NotNil(t, providers.MeterProvider)
		assert.NotNil(t, providers.LoggerProvider)
		assert.NoError(t, providers.Shutdown(ctx))
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name         string
		endpoint     string
		override     bool
		wantTarget   string
		wantInsecure bool
	}{
		{"bare host port", "localhost:4317", false, "localhost:4317", true},
		{"http", "http://collector:4317", false, "collector:4317", true},
		{"https", "https://collector:4317", false, "collector:4317", false},
		{"https override", "https://collector:4317", true, "collector:4317", true},
		{"path dropped", "http://collector:4317/v1/traces", false, "collector:4317", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := parseEndpoint(tt.endpoint, tt.override)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTarget, c.target)
			assert.Equal(t, tt.wantInsecure, c.insecure)
		})
	}
}

func TestParseEndpoint_Invalid(t *testing.T) {
	for _, endpoint := range []string{"http://", "http://[invalid", "://invalid"} {
		_, err := parseEndpoint(endpoint, false)
		assert.Error(t, err, endpoint)
	}
}

func TestNewProviders_WithEndpoint(t *testing.T) {
	// Exporters connect lazily, so construction succeeds without a collector.
	ctx := context.Background()
	providers, err := NewProviders(ctx, "localhost:4317", "test-service", false)
	require.NoError(t, err)
	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.LoggerProvider)

	shutdownCtx, cancel := context.WithCancel(ctx)
	cancel()
	_ = providers.Shutdown(shutdownCtx)
}

func TestSetGlobal(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	(&Providers{TracerProvider: tp}).SetGlobal()
	assert.Same(t, tp, otel.GetTracerProvider())
	assert.NotNil(t, otel.GetTextMapPropagator())
}
