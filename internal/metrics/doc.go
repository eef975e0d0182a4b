// Package metrics implements ingestgate.MetricsSink on top of Prometheus and
// OpenTelemetry, plus an in-memory Recorder for tests.
//
// Counter increments follow statsd sampling: an increment with sample rate r
// is recorded with probability r and scaled by 1/r, so totals stay unbiased.
// A sink is created once at startup and handed to every client; there is no
// package-level default.
package metrics
