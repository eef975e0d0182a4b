package metrics

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vvka-141/ingestgate/internal/logging"
	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

// Backend names accepted by NewSink.
const (
	BackendPrometheus = "prometheus"
	BackendOTel       = "otel"
	BackendNone       = "none"
)

// meterName is the instrumentation scope for the otel backend.
const meterName = "github.com/vvka-141/ingestgate"

type nopSink struct{}

type nopCounter struct{}

type nopTimer struct{}

// Nop returns a sink that discards all metrics.
func Nop() ingestgate.MetricsSink {
	return nopSink{}
}

func (nopSink) Counter(string, map[string]string) ingestgate.Counter { return nopCounter{} }
func (nopSink) Timer() ingestgate.Timer                             { return nopTimer{} }
func (nopCounter) Increment(float64, float64)                       {}
func (nopTimer) Time(string, float64) func()                        { return func() {} }

// SinkOption configures the prometheus and otel sinks.
type SinkOption func(*dropReporter)

// WithLogger logs every metric the backend refuses, once per metric name.
func WithLogger(logger ingestgate.Logger) SinkOption {
	return func(r *dropReporter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// dropReporter logs metrics that could not be registered or recorded.
type dropReporter struct {
	logger ingestgate.Logger

	mu   sync.Mutex
	seen map[string]bool
}

func newDropReporter(opts []SinkOption) *dropReporter {
	r := &dropReporter{logger: logging.NewNullLogger(), seen: make(map[string]bool)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *dropReporter) report(name string, err error) {
	r.mu.Lock()
	first := !r.seen[name]
	r.seen[name] = true
	r.mu.Unlock()

	if first {
		r.logger.Error("metric %s dropped: %v", name, err)
	}
}

// NewSink selects a sink by backend name. An empty backend means prometheus.
// The returned shutdown func flushes the backend and is never nil.
func NewSink(backend string, reg prometheus.Registerer, otelOut io.Writer, opts ...SinkOption) (ingestgate.MetricsSink, func(context.Context) error, error) {
	noShutdown := func(context.Context) error { return nil }

	switch backend {
	case "", BackendPrometheus:
		return NewPrometheusSink(reg, opts...), noShutdown, nil
	case BackendOTel:
		provider, err := NewOTelStdoutProvider(otelOut, 30*time.Second)
		if err != nil {
			return nil, noShutdown, err
		}
		return NewOTelSink(provider.Meter(meterName), opts...), provider.Shutdown, nil
	case BackendNone:
		return Nop(), noShutdown, nil
	default:
		return nil, noShutdown, fmt.Errorf("%w: unknown metrics backend %q", ingestgate.ErrInvalidConfig, backend)
	}
}
