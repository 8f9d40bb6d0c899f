package metrics_test

import (
	"context"
	"testing"

	"github.com/marcelsud/webhook-dispatcher/dispatch"
	"github.com/marcelsud/webhook-dispatcher/hooks"
	"github.com/marcelsud/webhook-dispatcher/metrics"
	"github.com/marcelsud/webhook-dispatcher/payload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type stubDeliverer struct {
	outcome dispatch.Outcome
}

func (s stubDeliverer) Deliver(context.Context, hooks.Hook, payload.Payload, string) dispatch.Outcome {
	return s.outcome
}

func collectSum(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
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
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func newTestRecorder(t *testing.T) (*metrics.Recorder, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	recorder, err := metrics.NewRecorder(provider.Meter("test"))
	require.NoError(t, err)
	return recorder, reader
}

func TestRecorder_Report(t *testing.T) {
	recorder, reader := newTestRecorder(t)
	ctx := context.Background()

	recorder.Report(ctx, dispatch.Failure{Lane: "webhooks", State: dispatch.Exhausted})
	recorder.Report(ctx, dispatch.Failure{Lane: "webhooks", State: dispatch.Failed})

	assert.Equal(t, int64(2), collectSum(t, reader, "webhook.dispatch.failures"))
}

func TestRecorder_Instrument(t *testing.T) {
	recorder, reader := newTestRecorder(t)
	ctx := context.Background()

	deliverer := recorder.Instrument(stubDeliverer{outcome: dispatch.Success(200)})
	for i := 0; i < 3; i++ {
		outcome := deliverer.Deliver(ctx, hooks.Hook{ID: "hook-1"}, payload.Normalize(nil), "push")
		assert.Equal(t, dispatch.Delivered, outcome.Kind)
	}

	assert.Equal(t, int64(3), collectSum(t, reader, "webhook.delivery.attempts"))
}
