package metrics

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

// OTelSink records counters and timers through an OpenTelemetry meter.
type OTelSink struct {
	meter  metric.Meter
	random func() float64
	drops  *dropReporter

	mu         sync.Mutex
	counters   map[string]metric.Float64Counter
	histograms map[string]metric.Float64Histogram
}

// NewOTelSink creates a sink backed by meter.
func NewOTelSink(meter metric.Meter, opts ...SinkOption) *OTelSink {
	return &OTelSink{
		meter:      meter,
		drops:      newDropReporter(opts),
		counters:   make(map[string]metric.Float64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

// NewOTelStdoutProvider builds a meter provider that periodically writes
// metrics to w. Callers must Shutdown the provider to flush.
func NewOTelStdoutProvider(w io.Writer, interval time.Duration) (*sdkmetric.MeterProvider, error) {
	if w == nil {
		w = os.Stdout
	}
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w), stdoutmetric.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
	}
	if interval <= 0 {
		interval = time.Minute
	}
	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), nil
}

// Counter implements ingestgate.MetricsSink.
func (s *OTelSink) Counter(name string, dimensions map[string]string) ingestgate.Counter {
	s.mu.Lock()
	counter, ok := s.counters[name]
	if !ok {
		var err error
		counter, err = s.meter.Float64Counter(name)
		if err != nil {
			s.mu.Unlock()
			s.drops.report(name, err)
			return nopCounter{}
		}
		s.counters[name] = counter
	}
	s.mu.Unlock()

	c := &otelCounter{
		counter: counter,
		attrs:   metric.WithAttributeSet(attributeSet(dimensions)),
		random:  s.random,
	}
	// Zero add so the series exists before the first real increment.
	counter.Add(context.Background(), 0, c.attrs)
	return c
}

// Timer implements ingestgate.MetricsSink.
func (s *OTelSink) Timer() ingestgate.Timer {
	return otelTimer{sink: s}
}

func (s *OTelSink) histogram(name string) (metric.Float64Histogram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.histograms[name]; ok {
		return h, nil
	}
	h, err := s.meter.Float64Histogram(name, metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	s.histograms[name] = h
	return h, nil
}

type otelCounter struct {
	counter metric.Float64Counter
	attrs   metric.MeasurementOption
	random  func() float64
}

func (c *otelCounter) Increment(amount, sampleRate float64) {
	if amount < 0 {
		return
	}
	if ok, scale := sample(sampleRate, c.random); ok {
		c.counter.Add(context.Background(), amount*scale, c.attrs)
	}
}

type otelTimer struct {
	sink *OTelSink
}

func (t otelTimer) Time(name string, sampleRate float64) func() {
	start := time.Now()
	return func() {
		if ok, _ := sample(sampleRate, t.sink.random); !ok {
			return
		}
		h, err := t.sink.histogram(name)
		if err != nil {
			t.sink.drops.report(name, err)
			return
		}
		h.Record(context.Background(), float64(time.Since(start))/float64(time.Millisecond))
	}
}

func attributeSet(dimensions map[string]string) attribute.Set {
	keys := make([]string, 0, len(dimensions))
	for k := range dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	kvs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		kvs = append(kvs, attribute.String(k, dimensions[k]))
	}
	return attribute.NewSet(kvs...)
}
