package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/ingestgate/internal/metrics"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose /metrics and /healthz until interrupted",
	Long: `Serve starts the metrics and health endpoint. /healthz pings the broker and
the configuration store configured in the same file and answers 503 when
either is unavailable. Stops on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default metrics.listen)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks, cleanup, err := rt.healthChecks(ctx)
	defer cleanup()
	if err != nil {
		return err
	}

	addr := serveListen
	if addr == "" {
		addr = cfg.Metrics.Listen
	}
	server := metrics.NewServer(addr, rt.registry, checks...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	logger.Info("serving /metrics and /healthz on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}
