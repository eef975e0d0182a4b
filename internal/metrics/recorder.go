package metrics

import (
	"maps"
	"sync"

	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

// Event is one recorded counter increment.
type Event struct {
	Name       string
	Dimensions map[string]string
	Amount     float64
	SampleRate float64
}

// Timing is one recorded timer observation.
type Timing struct {
	Name       string
	SampleRate float64
}

// Recorder keeps every increment and timing in memory, unsampled.
type Recorder struct {
	mu      sync.Mutex
	events  []Event
	timings []Timing
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Counter implements ingestgate.MetricsSink.
func (r *Recorder) Counter(name string, dimensions map[string]string) ingestgate.Counter {
	return &recordedCounter{rec: r, name: name, dims: maps.Clone(dimensions)}
}

// Timer implements ingestgate.MetricsSink.
func (r *Recorder) Timer() ingestgate.Timer {
	return recordedTimer{rec: r}
}

// Events returns a copy of all increments for name.
func (r *Recorder) Events(name string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of increments for name with exactly dims.
func (r *Recorder) Count(name string, dims map[string]string) int {
	n := 0
	for _, e := range r.Events(name) {
		if sameDims(e.Dimensions, dims) {
			n++
		}
	}
	return n
}

// Total returns the sum of increments for name with exactly dims.
func (r *Recorder) Total(name string, dims map[string]string) float64 {
	var total float64
	for _, e := range r.Events(name) {
		if sameDims(e.Dimensions, dims) {
			total += e.Amount
		}
	}
	return total
}

// Timings returns how many stopped timers were recorded for name.
func (r *Recorder) Timings(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.timings {
		if t.Name == name {
			n++
		}
	}
	return n
}

// Reset discards everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.timings = nil
}

func sameDims(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	return maps.Equal(a, b)
}

type recordedCounter struct {
	rec  *Recorder
	name string
	dims map[string]string
}

func (c *recordedCounter) Increment(amount, sampleRate float64) {
	c.rec.mu.Lock()
	defer c.rec.mu.Unlock()
	c.rec.events = append(c.rec.events, Event{
		Name:       c.name,
		Dimensions: c.dims,
		Amount:     amount,
		SampleRate: sampleRate,
	})
}

type recordedTimer struct {
	rec *Recorder
}

func (t recordedTimer) Time(name string, sampleRate float64) func() {
	return func() {
		t.rec.mu.Lock()
		defer t.rec.mu.Unlock()
		t.rec.timings = append(t.rec.timings, Timing{Name: name, SampleRate: sampleRate})
	}
}
