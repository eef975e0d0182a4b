package metrics

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

func newManualOTelSink(t *testing.T) (*OTelSink, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return NewOTelSink(provider.Meter("test")), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %q not collected", name)
	return metricdata.Metrics{}
}

func TestOTelSink_CounterWithAttributes(t *testing.T) {
	sink, reader := newManualOTelSink(t)

	c := sink.Counter(ingestgate.MetricKafkaProducerErrors, map[string]string{ingestgate.DimensionTopic: "events"})
	c.Increment(1, 1.0)
	c.Increment(1, 1.0)

	m := collect(t, reader, ingestgate.MetricKafkaProducerErrors)
	sum, ok := m.Data.(metricdata.Sum[float64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, 2.0, sum.DataPoints[0].Value)
	v, ok := sum.DataPoints[0].Attributes.Value(attribute.Key("topic"))
	require.True(t, ok)
	assert.Equal(t, "events", v.AsString())
}

func TestOTelSink_ZeroIncrementCreatesSeries(t *testing.T) {
	sink, reader := newManualOTelSink(t)

	sink.Counter(ingestgate.MetricConfigDBErrors, nil)

	m := collect(t, reader, ingestgate.MetricConfigDBErrors)
	sum := m.Data.(metricdata.Sum[float64])
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, 0.0, sum.DataPoints[0].Value)
}

func TestOTelSink_Sampling(t *testing.T) {
	sink, reader := newManualOTelSink(t)
	sink.random = func() float64 { return 0.0 }

	sink.Counter("kafka.producer.errors", nil).Increment(1, 0.1)

	sum := collect(t, reader, "kafka.producer.errors").Data.(metricdata.Sum[float64])
	assert.InDelta(t, 10.0, sum.DataPoints[0].Value, 1e-9)
}

func TestOTelSink_Timer(t *testing.T) {
	sink, reader := newManualOTelSink(t)

	sink.Timer().Time(ingestgate.MetricPublishTime, 1.0)()

	m := collect(t, reader, ingestgate.MetricPublishTime)
	assert.Equal(t, "ms", m.Unit)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestNewOTelStdoutProvider_FlushesOnShutdown(t *testing.T) {
	var buf bytes.Buffer
	provider, err := NewOTelStdoutProvider(&buf, 0)
	require.NoError(t, err)

	NewOTelSink(provider.Meter("test")).Counter("kafka.producer.dropped", nil).Increment(4, 1.0)
	require.NoError(t, provider.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "kafka.producer.dropped")
}
