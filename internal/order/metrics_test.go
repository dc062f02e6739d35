package order

import (
	"context"
	"testing"

	"doceria/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func installReader(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(mp)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = mp.Shutdown(context.Background())
	})
	return reader
}

// counterValue sums the data points of name whose attributes include attrs.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
		points:
			for _, dp := range sum.DataPoints {
				for _, kv := range attrs {
					if v, ok := dp.Attributes.Value(kv.Key); !ok || v.Emit() != kv.Value.Emit() {
						continue points
					}
				}
				total += dp.Value
			}
		}
	}
	return total
}

func TestCheckoutMetrics(t *testing.T) {
	reader := installReader(t)

	f := newFixture(t)
	svc := NewService(f.ledger, f.carts, logger.Discard())
	ctx := context.Background()

	_, err := svc.Checkout(ctx, memStore{}, CheckoutRequest{Customer: contact})
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, int64(1), counterValue(t, reader, "doceria.checkout.failures", attribute.String("reason", "empty_cart")))
	assert.Zero(t, counterValue(t, reader, "doceria.orders.placed"))

	st := memStore{}
	f.fill(t, st)
	_, err = svc.Checkout(ctx, st, CheckoutRequest{Customer: Customer{Name: "Ana"}})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, int64(1), counterValue(t, reader, "doceria.checkout.failures", attribute.String("reason", "validation")))

	_, err = svc.Checkout(ctx, st, CheckoutRequest{Customer: contact})
	require.NoError(t, err)
	assert.Equal(t, int64(1), counterValue(t, reader, "doceria.orders.placed"))
	assert.Equal(t, int64(2), counterValue(t, reader, "doceria.checkout.failures"))
}
