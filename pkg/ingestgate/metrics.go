package ingestgate

// MetricsSink is the narrow observability backend consumed by the resilient clients.
// A single sink is created at startup and passed to each client; there is no
// process-wide default.
type MetricsSink interface {
	// Counter returns the counter for name with the given dimensions.
	// Dimension keys must be stable strings.
	Counter(name string, dimensions map[string]string) Counter

	// Timer returns a timer that records durations against named metrics.
	Timer() Timer
}

// Counter is an append-only counter, safe for concurrent increments.
type Counter interface {
	// Increment adds amount. sampleRate in (0, 1] is the fraction of calls
	// that are actually recorded; backends scale accordingly.
	Increment(amount float64, sampleRate float64)
}

// Timer records durations in milliseconds.
type Timer interface {
	// Time starts timing name and returns a function that records the
	// elapsed time when called.
	Time(name string, sampleRate float64) (stop func())
}
