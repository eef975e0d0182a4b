package metrics

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

// DefaultBuckets are the histogram buckets used for timers, in milliseconds.
var DefaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// PrometheusSink registers one CounterVec per counter name and one
// HistogramVec per timer name with the given registerer.
type PrometheusSink struct {
	reg    prometheus.Registerer
	random func() float64
	drops  *dropReporter

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusSink creates a sink. A nil registerer uses the default one.
func NewPrometheusSink(reg prometheus.Registerer, opts ...SinkOption) *PrometheusSink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusSink{
		reg:        reg,
		drops:      newDropReporter(opts),
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Counter implements ingestgate.MetricsSink. The series is created on this
// call, so a counter that only ever sees zero increments is still exported.
func (s *PrometheusSink) Counter(name string, dimensions map[string]string) ingestgate.Counter {
	labels := labelNames(dimensions)
	vec, err := s.counterVec(name, labels)
	if err != nil {
		s.drops.report(name, err)
		return nopCounter{}
	}
	counter, err := vec.GetMetricWith(prometheus.Labels(dimensions))
	if err != nil {
		s.drops.report(name, err)
		return nopCounter{}
	}
	return &promCounter{counter: counter, random: s.random}
}

// Timer implements ingestgate.MetricsSink.
func (s *PrometheusSink) Timer() ingestgate.Timer {
	return promTimer{sink: s}
}

func (s *PrometheusSink) counterVec(name string, labels []string) (*prometheus.CounterVec, error) {
	key := name + "{" + strings.Join(labels, ",") + "}"

	s.mu.Lock()
	defer s.mu.Unlock()
	if vec, ok := s.counters[key]; ok {
		return vec, nil
	}

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: promName(name) + "_total",
		Help: "Count of " + name + ".",
	}, labels)
	if err := s.reg.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		vec = existing
	}
	s.counters[key] = vec
	return vec, nil
}

func (s *PrometheusSink) histogram(name string) (*prometheus.HistogramVec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if vec, ok := s.histograms[name]; ok {
		return vec, nil
	}

	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    promName(name),
		Help:    "Duration of " + name + " in milliseconds.",
		Buckets: DefaultBuckets,
	}, nil)
	if err := s.reg.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, err
		}
		vec = existing
	}
	s.histograms[name] = vec
	return vec, nil
}

type promCounter struct {
	counter prometheus.Counter
	random  func() float64
}

func (c *promCounter) Increment(amount, sampleRate float64) {
	if amount < 0 {
		return
	}
	if ok, scale := sample(sampleRate, c.random); ok {
		c.counter.Add(amount * scale)
	}
}

type promTimer struct {
	sink *PrometheusSink
}

func (t promTimer) Time(name string, sampleRate float64) func() {
	start := time.Now()
	return func() {
		if ok, _ := sample(sampleRate, t.sink.random); !ok {
			return
		}
		vec, err := t.sink.histogram(name)
		if err != nil {
			t.sink.drops.report(name, err)
			return
		}
		vec.WithLabelValues().Observe(float64(time.Since(start)) / float64(time.Millisecond))
	}
}

func labelNames(dimensions map[string]string) []string {
	names := make([]string, 0, len(dimensions))
	for k := range dimensions {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
