package telemetry

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/decisiond/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), config.TelemetryConfig{}, "test")
	require.NoError(t, err)

	_, span := tel.Tracer("x").Start(context.Background(), "noop")
	span.End()
	assert.False(t, span.SpanContext().IsSampled())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_ExportsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	cfg := config.Default().Telemetry
	cfg.Enabled = true

	tel, err := New(context.Background(), cfg, "test", WithSpanExporter(exp))
	require.NoError(t, err)

	_, span := tel.Tracer("decisiond/test").Start(context.Background(), "workflow.create")
	span.End()
	require.NoError(t, tel.Shutdown(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "workflow.create", spans[0].Name)
}

func TestValidate(t *testing.T) {
	cfg := config.Default().Telemetry
	cfg.Enabled = true
	assert.NoError(t, Validate(cfg))

	cfg.Endpoint = "otel.example.com:4317"
	assert.Error(t, Validate(cfg), "insecure remote endpoint")

	cfg.Insecure = false
	assert.NoError(t, Validate(cfg))

	cfg.SampleRate = 2
	assert.Error(t, Validate(cfg))
}

func TestIsLocalEndpoint(t *testing.T) {
	assert.True(t, isLocalEndpoint("localhost:4317"))
	assert.True(t, isLocalEndpoint("127.0.0.1:4317"))
	assert.True(t, isLocalEndpoint("[::1]:4317"))
	assert.False(t, isLocalEndpoint("collector:4317"))
}
