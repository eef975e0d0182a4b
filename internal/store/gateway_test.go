package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/ingestgate/internal/logging"
	"github.com/vvka-141/ingestgate/internal/metrics"
	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

func newTestGateway(t *testing.T, cfg ingestgate.StoreConfig) (*Gateway, *metrics.Recorder, *bytes.Buffer) {
	t.Helper()
	rec := metrics.NewRecorder()
	var buf bytes.Buffer
	logger := logging.NewConsoleLogger(true, logging.WithWriter(&buf), logging.WithNoColor(), logging.WithoutTime())
	g := NewGatewayFromDB(nil, cfg, Deps{Logger: logger, Sink: rec})
	return g, rec, &buf
}

// scriptedOp returns errs in order, then succeeds with value.
func scriptedOp(value string, errs ...error) (Operation[string], *int) {
	calls := 0
	return func(ctx context.Context, q sqlx.ExtContext) (string, error) {
		calls++
		if calls <= len(errs) {
			return "", errs[calls-1]
		}
		return value, nil
	}, &calls
}

func errorTotal(rec *metrics.Recorder) float64 {
	return rec.Total(ingestgate.MetricConfigDBErrors, nil)
}

func TestWrap_Success(t *testing.T) {
	g, rec, _ := newTestGateway(t, ingestgate.StoreConfig{})
	op, calls := scriptedOp("row")

	got, err := Wrap(g, "get", op)(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, "row", got)
	assert.Equal(t, 1, *calls)
	assert.Equal(t, 1, rec.Count(ingestgate.MetricConfigDBErrors, nil))
	assert.Zero(t, errorTotal(rec))
	assert.Equal(t, 1, rec.Timings(ingestgate.MetricConfigDBTime))
}

func TestWrap_DomainErrorPassesThroughUncounted(t *testing.T) {
	for _, sentinel := range []error{ingestgate.ErrAlreadyExists, ingestgate.ErrDoesNotExist, ingestgate.ErrInvalidUpdate} {
		t.Run(sentinel.Error(), func(t *testing.T) {
			g, rec, buf := newTestGateway(t, ingestgate.StoreConfig{})
			domainErr := fmt.Errorf("notification method x: %w", sentinel)
			op, calls := scriptedOp("unused", domainErr)

			_, err := Wrap(g, "create", op)(context.Background(), nil)

			assert.Same(t, domainErr, err)
			assert.Equal(t, 1, *calls)
			assert.Empty(t, rec.Events(ingestgate.MetricConfigDBErrors))
			assert.Equal(t, 1, rec.Timings(ingestgate.MetricConfigDBTime))
			assert.Empty(t, buf.String())
		})
	}
}

func TestWrap_DriverDefectReissuedOnce(t *testing.T) {
	g, rec, _ := newTestGateway(t, ingestgate.StoreConfig{})
	op, calls := scriptedOp("row", errors.New("Package sequence number wrong"))

	got, err := Wrap(g, "list", op)(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, "row", got)
	assert.Equal(t, 2, *calls)
	assert.Equal(t, float64(1), errorTotal(rec))
	assert.Equal(t, 1, rec.Timings(ingestgate.MetricConfigDBTime), "one timing per logical call")
}

func TestWrap_DriverDefectFromMySQLSentinel(t *testing.T) {
	g, rec, _ := newTestGateway(t, ingestgate.StoreConfig{})
	op, calls := scriptedOp("row", mysql.ErrPktSync)

	got, err := Wrap(g, "list", op)(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, "row", got)
	assert.Equal(t, 2, *calls)
	assert.Equal(t, float64(1), errorTotal(rec))
}

func TestWrap_DriverDefectCapped(t *testing.T) {
	tests := []struct {
		name      string
		max       int
		wantCalls int
	}{
		{name: "default cap", max: 0, wantCalls: ingestgate.DefaultMaxDefectRetries + 1},
		{name: "configured cap", max: 1, wantCalls: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, rec, buf := newTestGateway(t, ingestgate.StoreConfig{MaxDefectRetries: tt.max})
			defect := mysql.ErrPktSyncMul
			op := func(ctx context.Context, q sqlx.ExtContext) (int, error) { return 0, defect }
			calls := 0
			counted := func(ctx context.Context, q sqlx.ExtContext) (int, error) {
				calls++
				return op(ctx, q)
			}

			_, err := Wrap(g, "get", counted)(context.Background(), nil)

			assert.Same(t, defect, err)
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, float64(tt.wantCalls), errorTotal(rec))
			assert.Contains(t, buf.String(), "driver defect persisted")
		})
	}
}

func TestWrap_CustomDefectSignature(t *testing.T) {
	g, rec, _ := newTestGateway(t, ingestgate.StoreConfig{DefectSignatures: []string{"bad handshake echo"}})
	op, calls := scriptedOp("ok", errors.New("driver: bad handshake echo"))

	got, err := Wrap(g, "get", op)(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, *calls)
	assert.Equal(t, float64(1), errorTotal(rec))
}

func TestWrap_OtherErrorsCountedAndReturnedUnchanged(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantClass string
	}{
		{name: "connection", err: &pgconn.PgError{Code: "08006", Message: "connection failure"}, wantClass: ingestgate.ClassTransientInfrastructure.String()},
		{name: "auth", err: &mysql.MySQLError{Number: 1045, Message: "Access denied"}, wantClass: ingestgate.ClassPermanentConfiguration.String()},
		{name: "unknown", err: errors.New("syntax error near SELEKT"), wantClass: ingestgate.ClassUnknown.String()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, rec, buf := newTestGateway(t, ingestgate.StoreConfig{})
			op, calls := scriptedOp("unused", tt.err)

			_, err := Wrap(g, "update", op)(context.Background(), nil)

			assert.Same(t, tt.err, err)
			assert.Equal(t, 1, *calls, "only driver defects are re-issued")
			assert.Equal(t, float64(1), errorTotal(rec))
			assert.Contains(t, buf.String(), "update failed ("+tt.wantClass+")")
		})
	}
}

func TestWrap_DefectStopsOnCancelledContext(t *testing.T) {
	g, rec, _ := newTestGateway(t, ingestgate.StoreConfig{MaxDefectRetries: 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	op, calls := scriptedOp("row", mysql.ErrPktSync, mysql.ErrPktSync)

	_, err := Wrap(g, "get", op)(ctx, nil)

	assert.ErrorIs(t, err, mysql.ErrPktSync)
	assert.Equal(t, 1, *calls)
	assert.Equal(t, float64(1), errorTotal(rec))
}

type fakeConnector struct {
	connectErr error
	closed     int
}

func (c *fakeConnector) Connect(ctx context.Context) (*sqlx.DB, error) {
	if c.connectErr != nil {
		return nil, c.connectErr
	}
	return sqlx.Open("mysql", "user:pw@tcp(127.0.0.1:1)/config")
}

func (c *fakeConnector) Close() error {
	c.closed++
	return nil
}

func TestNewGateway_ConnectFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewConsoleLogger(false, logging.WithWriter(&buf), logging.WithNoColor(), logging.WithoutTime())
	cause := fmt.Errorf("%w: dial tcp: connection refused", ingestgate.ErrConnectionFailed)
	conn := &fakeConnector{connectErr: cause}

	g, err := NewGateway(context.Background(), ingestgate.StoreConfig{}, conn, Deps{Logger: logger})

	assert.Nil(t, g)
	var repoErr *ingestgate.RepositoryError
	require.ErrorAs(t, err, &repoErr)
	assert.ErrorIs(t, err, ingestgate.ErrRepository)
	assert.ErrorIs(t, err, ingestgate.ErrConnectionFailed)
	assert.Equal(t, 1, conn.closed)
	assert.Equal(t, 1, strings.Count(buf.String(), "failed to connect to store"))
}

func TestNewGateway_InvalidConfig(t *testing.T) {
	cfg := ingestgate.StoreConfig{Driver: ingestgate.StoreDriverPostgres, URL: "ftp://nowhere"}

	g, err := NewGateway(context.Background(), cfg, nil, Deps{})

	assert.Nil(t, g)
	assert.ErrorIs(t, err, ingestgate.ErrRepository)
}

func TestGateway_CloseIdempotent(t *testing.T) {
	conn := &fakeConnector{}
	g, err := NewGateway(context.Background(), ingestgate.StoreConfig{}, conn, Deps{})
	require.NoError(t, err)
	assert.Equal(t, "mysql", g.DB().DriverName())

	require.NoError(t, g.Close())
	require.NoError(t, g.Close())
	assert.Equal(t, 1, conn.closed)
}

func TestGateway_PingCountsFailure(t *testing.T) {
	rec := metrics.NewRecorder()
	conn := &fakeConnector{}
	g, err := NewGateway(context.Background(), ingestgate.StoreConfig{}, conn, Deps{Sink: rec})
	require.NoError(t, err)
	defer g.Close()

	err = g.Ping(context.Background())

	assert.Error(t, err)
	assert.Equal(t, float64(1), errorTotal(rec))
}

func TestDialect(t *testing.T) {
	d, dir, err := dialect("pgx")
	require.NoError(t, err)
	assert.Equal(t, "postgres", string(d))
	assert.Equal(t, "migrations/postgres", dir)

	d, dir, err = dialect("mysql")
	require.NoError(t, err)
	assert.Equal(t, "mysql", string(d))
	assert.Equal(t, "migrations/mysql", dir)

	_, _, err = dialect("sqlite3")
	assert.ErrorIs(t, err, ingestgate.ErrInvalidConfig)
}
