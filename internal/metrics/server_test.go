package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_Healthz(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		wantStatus int
		wantBody   string
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantBody:   StatusHealthy,
		},
		{
			name: "all healthy",
			checks: []HealthCheck{
				{Name: "broker", Check: func(context.Context) error { return nil }},
				{Name: "store", Check: func(context.Context) error { return nil }},
			},
			wantStatus: http.StatusOK,
			wantBody:   StatusHealthy,
		},
		{
			name: "one failing",
			checks: []HealthCheck{
				{Name: "broker", Check: func(context.Context) error { return nil }},
				{Name: "store", Check: func(context.Context) error { return errors.New("connection refused") }},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   StatusUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(":0", prometheus.NewRegistry(), tt.checks...)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var report HealthReport
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
			assert.Equal(t, tt.wantBody, report.Status)
			assert.Len(t, report.Checks, len(tt.checks))
		})
	}
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheusSink(reg).Counter("kafka.producer.init_errors", map[string]string{"topic": "events"}).Increment(2, 1)

	srv := NewServer(":0", reg)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `kafka_producer_init_errors_total{topic="events"} 2`))
}

func TestServer_StopBeforeStart(t *testing.T) {
	srv := NewServer("127.0.0.1:0", nil)
	assert.NoError(t, srv.Stop(context.Background()))
}
