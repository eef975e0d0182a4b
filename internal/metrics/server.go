package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck checks one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Health status values reported by /healthz.
const (
	StatusHealthy     = "healthy"
	StatusUnavailable = "unavailable"
)

// HealthReport is the /healthz response body.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Server exposes /metrics and /healthz over HTTP.
type Server struct {
	checks       []HealthCheck
	checkTimeout time.Duration
	server       *http.Server
}

// NewServer creates a server listening on addr. A nil gatherer serves the
// default registry.
func NewServer(addr string, gatherer prometheus.Gatherer, checks ...HealthCheck) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	s := &Server{
		checks:       checks,
		checkTimeout: 5 * time.Second,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// CheckHealth runs every check and aggregates the result. Any failure makes
// the whole report unavailable.
func (s *Server) CheckHealth(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()

	report := HealthReport{Status: StatusHealthy, Checks: make(map[string]string, len(s.checks))}
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			report.Status = StatusUnavailable
			report.Checks[c.Name] = err.Error()
			continue
		}
		report.Checks[c.Name] = StatusHealthy
	}
	return report
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.CheckHealth(r.Context())
	w.Header().Set("Content-Type", "application/json")

	if report.Status == StatusUnavailable {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	_ = json.NewEncoder(w).Encode(report)
}
