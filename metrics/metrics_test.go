package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/milosriki/geminivideo-sub001/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestFactory creates a MetricsFactory backed by a real SDK meter provider
// with a ManualReader so emitted instruments can be asserted on.
func newTestFactory(t *testing.T) (*MetricsFactory, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("test-resilience")

	factory, err := NewMetricsFactory(meter, log.NewNop())
	require.NoError(t, err)

	return factory, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}

	return nil
}

func TestNewMetricsFactory_NilMeter(t *testing.T) {
	_, err := NewMetricsFactory(nil, log.NewNop())
	assert.ErrorIs(t, err, ErrNilMeter)
}

func TestNopFactory_RecordsWithoutError(t *testing.T) {
	factory := NewNopFactory()

	require.NoError(t, factory.RecordBreakerRejection(context.Background(), "openai"))
	require.NoError(t, factory.SetRetryQueueDepth(context.Background(), 3))
}

func TestCounter_AddWithLabels(t *testing.T) {
	factory, reader := newTestFactory(t)
	ctx := context.Background()

	require.NoError(t, factory.RecordBreakerStateChange(ctx, "openai", "closed", "open"))
	require.NoError(t, factory.RecordBreakerStateChange(ctx, "openai", "closed", "open"))

	rm := collect(t, reader)
	m := findMetric(rm, MetricBreakerStateChanges.Name)
	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.EqualValues(t, 2, sum.DataPoints[0].Value)
}

func TestHistogram_RecordsLatency(t *testing.T) {
	factory, reader := newTestFactory(t)

	require.NoError(t, factory.RecordBreakerCallDuration(context.Background(), "meta-ads", "success", 120*time.Millisecond))

	rm := collect(t, reader)
	m := findMetric(rm, MetricBreakerCallDuration.Name)
	require.NotNil(t, m)

	hist, ok := m.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.EqualValues(t, 1, hist.DataPoints[0].Count)
	assert.EqualValues(t, 120, hist.DataPoints[0].Sum)
}

func TestGauge_SetDepth(t *testing.T) {
	factory, reader := newTestFactory(t)

	require.NoError(t, factory.SetRetryQueueDepth(context.Background(), 7))
	require.NoError(t, factory.SetRetryQueueDepth(context.Background(), 4))

	rm := collect(t, reader)
	m := findMetric(rm, MetricRetryQueueDepth.Name)
	require.NotNil(t, m)

	gauge, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.EqualValues(t, 4, gauge.DataPoints[0].Value)
}

func TestInstrumentCaching(t *testing.T) {
	factory, _ := newTestFactory(t)

	first, err := factory.Counter(MetricBreakerRejections)
	require.NoError(t, err)

	second, err := factory.Counter(MetricBreakerRejections)
	require.NoError(t, err)

	// Same underlying instrument is reused across builders.
	assert.Equal(t, first.counter, second.counter)
}

func TestSelectDefaultBuckets(t *testing.T) {
	assert.Equal(t, DefaultDepthBuckets, selectDefaultBuckets("fallback.queue.depth"))
	assert.Equal(t, DefaultLatencyBuckets, selectDefaultBuckets("breaker.call.duration"))
	assert.Equal(t, DefaultLatencyBuckets, selectDefaultBuckets("something.else"))
}
