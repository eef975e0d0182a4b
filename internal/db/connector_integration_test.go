//go:build integration

package db

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/ingestgate/internal/retry"
	"github.com/vvka-141/ingestgate/internal/testinfra"
	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

var pgContainer *testinfra.PostgresContainer

func TestMain(m *testing.M) {
	ctx := context.Background()

	ctr, err := testinfra.StartPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start postgres: %v\n", err)
		os.Exit(1)
	}
	pgContainer = ctr

	code := m.Run()
	ctr.Terminate(ctx) //nolint:errcheck
	os.Exit(code)
}

func TestIntegration_PostgresDiscreteFields(t *testing.T) {
	connector, err := NewConnector(pgContainer.StoreConfig(), nil)
	require.NoError(t, err)
	defer connector.Close()

	engine, err := connector.Connect(context.Background())
	require.NoError(t, err)
	defer engine.Close()

	var version string
	require.NoError(t, engine.Get(&version, "SELECT version()"))
	assert.Contains(t, version, "PostgreSQL")
	assert.Equal(t, "pgx", engine.DriverName())
}

func TestIntegration_PostgresURL(t *testing.T) {
	cfg := ingestgate.StoreConfig{
		URL: fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=disable",
			testinfra.PostgresUser, testinfra.PostgresPassword, pgContainer.Host, pgContainer.Port, testinfra.PostgresDB),
	}
	connector, err := NewConnector(cfg, nil)
	require.NoError(t, err)
	defer connector.Close()

	engine, err := connector.Connect(context.Background())
	require.NoError(t, err)
	defer engine.Close()

	var one int
	require.NoError(t, engine.Get(&one, engine.Rebind("SELECT ?::int"), 1))
	assert.Equal(t, 1, one)
}

func TestIntegration_PostgresWrongPassword(t *testing.T) {
	cfg := pgContainer.StoreConfig()
	cfg.Password = "definitely-wrong-password"

	connector, err := NewConnector(cfg, nil)
	require.NoError(t, err)
	defer connector.Close()

	_, err = connector.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ingestgate.ErrConnectionFailed)
	assert.Equal(t, ingestgate.ClassPermanentConfiguration, retry.NewStoreErrorClassifier().Classify(err))
}
