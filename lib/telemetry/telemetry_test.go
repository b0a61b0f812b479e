package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
)

func TestSetupWithoutEndpoints(t *testing.T) {
	ctx := context.Background()
	tel, err := Setup(ctx, "fedgrants-test", Config{})
	require.NoError(t, err)

	_, span := tel.TracerProvider.Tracer("test").Start(ctx, "span")
	require.True(t, span.SpanContext().IsSampled())
	span.End()

	require.NoError(t, tel.Shutdown(ctx))
}

func TestConfigDefaults(t *testing.T) {
	require.Equal(t, 5*time.Second, Config{}.metricInterval())
	require.Equal(t, time.Minute, Config{MetricIntervalSeconds: 60}.metricInterval())

	require.Equal(t, trace.AlwaysSample().Description(), Config{}.sampler().Description())
	require.Contains(t, Config{SampleRatio: 0.25}.sampler().Description(), "TraceIDRatioBased{0.25}")

	require.False(t, OtlpConnConfig{}.configured())
	require.True(t, OtlpConnConfig{HttpEndpoint: "http://localhost:4318"}.configured())
}
