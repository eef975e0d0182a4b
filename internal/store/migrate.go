package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

//go:embed migrations
var migrationsFS embed.FS

// dialect maps the engine's driver name to the goose dialect and the
// embedded migrations directory.
func dialect(driverName string) (goose.Dialect, string, error) {
	switch driverName {
	case "pgx", "postgres":
		return goose.DialectPostgres, "migrations/postgres", nil
	case "mysql":
		return goose.DialectMySQL, "migrations/mysql", nil
	default:
		return "", "", fmt.Errorf("no migrations for driver %q: %w", driverName, ingestgate.ErrInvalidConfig)
	}
}

func newProvider(g *Gateway) (*goose.Provider, error) {
	d, dir, err := dialect(g.db.DriverName())
	if err != nil {
		return nil, err
	}
	sub, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	provider, err := goose.NewProvider(d, g.db.DB, sub)
	if err != nil {
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	return provider, nil
}

// Migrate applies every pending migration for the gateway's dialect and
// returns the number applied.
func Migrate(ctx context.Context, g *Gateway) (int, error) {
	provider, err := newProvider(g)
	if err != nil {
		return 0, err
	}
	results, err := Do(ctx, g, "migrate", func(ctx context.Context, _ sqlx.ExtContext) ([]*goose.MigrationResult, error) {
		return provider.Up(ctx)
	})
	if err != nil {
		return len(results), fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		g.logger.Verbose("applied migration %s in %s", r.Source.Path, r.Duration)
	}
	return len(results), nil
}

// SchemaVersion returns the current migration version of the store.
func SchemaVersion(ctx context.Context, g *Gateway) (int64, error) {
	provider, err := newProvider(g)
	if err != nil {
		return 0, err
	}
	return Do(ctx, g, "schema_version", func(ctx context.Context, _ sqlx.ExtContext) (int64, error) {
		return provider.GetDBVersion(ctx)
	})
}
