package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Options{Service: "doceria"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupInstallsProviders(t *testing.T) {
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	shutdown, err := Setup(context.Background(), Options{
		Service:  "doceria",
		Endpoint: "http://127.0.0.1:4318",
	})
	require.NoError(t, err)

	assert.IsType(t, &sdktrace.TracerProvider{}, otel.GetTracerProvider())
	assert.IsType(t, &sdkmetric.MeterProvider{}, otel.GetMeterProvider())

	// nothing listens on the endpoint; only the call matters here
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = shutdown(ctx)
}

func TestSetupRejectsBadEndpoint(t *testing.T) {
	_, err := Setup(context.Background(), Options{Endpoint: "collector"})
	assert.Error(t, err)
}

func TestParseEndpoint(t *testing.T) {
	c, err := parseEndpoint("http://collector:4318/v1/traces")
	require.NoError(t, err)
	assert.Equal(t, collector{host: "collector:4318", insecure: true, path: "/v1/traces"}, c)
	assert.Len(t, c.traceOptions(), 3)
	assert.Len(t, c.metricOptions(), 2)

	c, err = parseEndpoint("https://collector:4318")
	require.NoError(t, err)
	assert.Len(t, c.traceOptions(), 1)
	assert.Len(t, c.metricOptions(), 1)

	_, err = parseEndpoint("collector")
	assert.Error(t, err)
}
