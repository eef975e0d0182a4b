package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

// Connection pool configuration constants
const (
	// DefaultMaxOpenConns bounds concurrent connections to the store.
	DefaultMaxOpenConns = 10

	// DefaultMaxIdleConns keeps a few warm connections around.
	DefaultMaxIdleConns = 2

	// DefaultConnMaxIdleTime recycles connections idle for longer than this.
	DefaultConnMaxIdleTime = 5 * time.Minute
)

// Connector creates the database engine. Connect pings once and never
// retries; Close releases resources the connector owns besides the engine.
type Connector interface {
	Connect(ctx context.Context) (*sqlx.DB, error)
	Close() error
}

// NewConnector is a factory function that creates the appropriate Connector
// based on the driver and AuthMethod of cfg.
func NewConnector(cfg ingestgate.StoreConfig, logger ingestgate.Logger) (Connector, error) {
	ep, err := ResolveEndpoint(cfg)
	if err != nil {
		return nil, err
	}

	if ep.Driver == ingestgate.StoreDriverMySQL {
		return NewMySQLConnector(ep, cfg), nil
	}

	switch cfg.AuthMethod {
	case ingestgate.AuthMethodStandard:
		return NewPostgresConnector(ep, cfg), nil
	case ingestgate.AuthMethodAWSIAM:
		return newAWSConnector(ep, cfg, logger)
	case ingestgate.AuthMethodGoogleIAM:
		return newGoogleConnector(ep, cfg)
	case ingestgate.AuthMethodAzureEntraID:
		return newAzureConnector(ep, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported auth method %v: %w", cfg.AuthMethod, ingestgate.ErrUnsupportedAuthMethod)
	}
}

// MySQLConnector opens a go-sql-driver/mysql engine.
type MySQLConnector struct {
	endpoint Endpoint
	config   ingestgate.StoreConfig
}

// NewMySQLConnector creates a MySQL connector for ep.
func NewMySQLConnector(ep Endpoint, cfg ingestgate.StoreConfig) *MySQLConnector {
	return &MySQLConnector{endpoint: ep, config: cfg}
}

// Connect opens the engine and pings once.
func (c *MySQLConnector) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.Open(string(ingestgate.StoreDriverMySQL), BuildMySQLDSN(c.endpoint, c.config.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql engine: %w", err)
	}
	configureDB(db, c.config)

	if err := ping(ctx, db, c.config.ConnectTimeout); err != nil {
		_ = db.Close()
		return nil, wrapConnectionError(err, c.endpoint)
	}
	return db, nil
}

// Close is a no-op; the engine owns every MySQL resource.
func (c *MySQLConnector) Close() error {
	return nil
}

// PostgresConnector opens a pgx pool wrapped as a database/sql engine.
type PostgresConnector struct {
	endpoint Endpoint
	config   ingestgate.StoreConfig
	pool     *pgxpool.Pool
}

// NewPostgresConnector creates a connector for username/password authentication.
func NewPostgresConnector(ep Endpoint, cfg ingestgate.StoreConfig) *PostgresConnector {
	return &PostgresConnector{endpoint: ep, config: cfg}
}

// Connect opens the pool and pings once.
func (c *PostgresConnector) Connect(ctx context.Context) (*sqlx.DB, error) {
	poolConfig, err := pgxpool.ParseConfig(BuildPostgresURL(c.endpoint, c.config.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	configurePool(poolConfig, c.config)

	db, pool, err := openPostgres(ctx, poolConfig, c.config.ConnectTimeout)
	if err != nil {
		return nil, wrapConnectionError(err, c.endpoint)
	}
	c.pool = pool
	return db, nil
}

// Close releases the pgx pool. Closing the sql engine does not.
func (c *PostgresConnector) Close() error {
	if c.pool != nil {
		c.pool.Close()
		c.pool = nil
	}
	return nil
}

func openPostgres(ctx context.Context, poolConfig *pgxpool.Config, timeout time.Duration) (*sqlx.DB, *pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}

	pingCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx"), pool, nil
}

func configurePool(poolConfig *pgxpool.Config, cfg ingestgate.StoreConfig) {
	maxConns := cfg.MaxOpenConns
	if maxConns <= 0 {
		maxConns = DefaultMaxOpenConns
	}
	poolConfig.MaxConns = int32(maxConns)
	poolConfig.MaxConnIdleTime = DefaultConnMaxIdleTime
}

func configureDB(db *sqlx.DB, cfg ingestgate.StoreConfig) {
	maxOpen, maxIdle := cfg.MaxOpenConns, cfg.MaxIdleConns
	if maxOpen <= 0 {
		maxOpen = DefaultMaxOpenConns
	}
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdleConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxIdleTime(DefaultConnMaxIdleTime)
}

func ping(ctx context.Context, db *sqlx.DB, timeout time.Duration) error {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	return db.PingContext(ctx)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// wrapConnectionError wraps raw driver connection errors with actionable guidance.
// The result matches ErrConnectionFailed and the raw error stays reachable
// through errors.Is/As.
func wrapConnectionError(err error, ep Endpoint) error {
	errStr := strings.ToLower(err.Error())
	addr := ep.Addr()

	var guidance string
	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused"):
		guidance = fmt.Sprintf(`connection refused to %s

Possible causes:
  - The %s server is not running
  - Wrong host or port
  - Firewall blocking the connection`, addr, ep.Driver)

	case strings.Contains(errStr, "no such host") || strings.Contains(errStr, "no host"):
		guidance = fmt.Sprintf(`cannot resolve host "%s"

Possible causes:
  - Hostname is misspelled
  - DNS is not configured or reachable`, ep.Host)

	case strings.Contains(errStr, "password authentication failed") || strings.Contains(errStr, "access denied"):
		guidance = fmt.Sprintf(`authentication failed for database "%s"

Possible causes:
  - Wrong password or expired cloud token
  - Wrong username
  - User does not have access to the database`, ep.Database)

	case strings.Contains(errStr, "does not exist") || strings.Contains(errStr, "unknown database"):
		guidance = fmt.Sprintf(`database "%s" does not exist

Create it first, then run "ingestgate migrate".`, ep.Database)

	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out") || strings.Contains(errStr, "deadline exceeded"):
		guidance = fmt.Sprintf(`connection timed out to %s

Possible causes:
  - Server is overloaded or unresponsive
  - Firewall silently dropping packets
  - Wrong host/port (server not listening)`, addr)

	case strings.Contains(errStr, "ssl") || strings.Contains(errStr, "tls"):
		guidance = `SSL/TLS connection error

Possible causes:
  - Server requires SSL but sslmode is wrong
  - Certificate verification failed`

	case strings.Contains(errStr, "too many connections"):
		guidance = fmt.Sprintf(`too many connections to database "%s"

Possible causes:
  - max_connections limit reached on the server
  - Another service is leaking connections`, ep.Database)

	default:
		return fmt.Errorf("%w: failed to connect to database: %w", ingestgate.ErrConnectionFailed, err)
	}

	return fmt.Errorf("%w: %s\n\nOriginal error: %w", ingestgate.ErrConnectionFailed, guidance, err)
}
