package db

import (
	"context"
	"fmt"
	"net"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

// GoogleCloudSQLConnector connects to Cloud SQL for PostgreSQL with IAM
// database authentication through the Cloud SQL Go Connector.
type GoogleCloudSQLConnector struct {
	endpoint Endpoint
	config   ingestgate.StoreConfig
	instance string
	dialer   *cloudsqlconn.Dialer
	pool     *pgxpool.Pool
}

// NewGoogleCloudSQLConnector creates a connector for Google Cloud SQL IAM authentication.
// instance is the instance connection name in format: project:region:instance
func NewGoogleCloudSQLConnector(ep Endpoint, cfg ingestgate.StoreConfig, instance string) *GoogleCloudSQLConnector {
	return &GoogleCloudSQLConnector{
		endpoint: ep,
		config:   cfg,
		instance: instance,
	}
}

// Connect establishes the engine. The Cloud SQL dialer handles
// authentication and TLS; Close releases it.
func (c *GoogleCloudSQLConnector) Connect(ctx context.Context) (*sqlx.DB, error) {
	dialer, err := cloudsqlconn.NewDialer(ctx, cloudsqlconn.WithIAMAuthN())
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud SQL dialer: %w", err)
	}

	dsn := fmt.Sprintf(
		"host=%s user=%s dbname=%s sslmode=disable",
		c.instance,
		c.endpoint.Username,
		c.endpoint.Database,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		dialer.Close()
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}

	poolConfig.ConnConfig.DialFunc = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(ctx, c.instance)
	}
	configurePool(poolConfig, c.config)

	db, pool, err := openPostgres(ctx, poolConfig, c.config.ConnectTimeout)
	if err != nil {
		dialer.Close()
		return nil, fmt.Errorf("failed to connect to Cloud SQL instance %s: %w", c.instance, err)
	}

	c.dialer = dialer
	c.pool = pool
	return db, nil
}

// Close releases the pool and the Cloud SQL dialer.
func (c *GoogleCloudSQLConnector) Close() error {
	if c.pool != nil {
		c.pool.Close()
		c.pool = nil
	}
	if c.dialer != nil {
		c.dialer.Close()
		c.dialer = nil
	}
	return nil
}

// newGoogleConnector creates a GoogleCloudSQLConnector for Google Cloud SQL IAM authentication.
func newGoogleConnector(ep Endpoint, cfg ingestgate.StoreConfig) (Connector, error) {
	if cfg.GoogleInstance == "" {
		return nil, fmt.Errorf("%w: Google Cloud SQL IAM auth requires database.google_instance (project:region:instance)", ingestgate.ErrInvalidConfig)
	}
	if ep.Username == "" {
		return nil, fmt.Errorf("%w: Google Cloud SQL IAM auth requires a database username", ingestgate.ErrInvalidConfig)
	}

	return NewGoogleCloudSQLConnector(ep, cfg, cfg.GoogleInstance), nil
}
