package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/vvka-141/ingestgate/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply configuration store migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	rt, err := newClients(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	ctx := commandContext(cmd)
	g, err := rt.gateway(ctx)
	if err != nil {
		return err
	}
	defer g.Close()

	applied, err := store.Migrate(ctx, g)
	if err != nil {
		return err
	}
	version, err := store.SchemaVersion(ctx, g)
	if err != nil {
		return err
	}
	logger.Info("applied %d migration(s), schema version %d", applied, version)
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
