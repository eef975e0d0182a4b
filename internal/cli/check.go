package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/ingestgate/internal/metrics"
)

var checkTimeout time.Duration

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Connect to the broker and the configuration store once",
	Long: `Check builds a publisher and a store gateway from the configuration, pings
both and prints one line per dependency. Dependencies without an endpoint
in the configuration are skipped.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", time.Minute, "Overall time allowed for the checks")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := context.WithTimeout(commandContext(cmd), checkTimeout)
	defer cancel()

	checks, cleanup, err := rt.healthChecks(ctx)
	defer cleanup()
	if err != nil {
		return err
	}
	if len(checks) == 0 {
		return fmt.Errorf("nothing to check: configure kafka.uri or the database section")
	}

	out := cmd.OutOrStdout()
	var errs []error
	for _, c := range checks {
		if err := c.Check(ctx); err != nil {
			fmt.Fprintf(out, "%-8s %s: %v\n", c.Name, metrics.StatusUnavailable, err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "%-8s %s\n", c.Name, metrics.StatusHealthy)
	}
	return errors.Join(errs...)
}

// healthChecks builds a check per configured dependency. cleanup releases
// every client that was built and is never nil.
func (r *clients) healthChecks(ctx context.Context) ([]metrics.HealthCheck, func(), error) {
	var (
		checks   []metrics.HealthCheck
		closers  []func() error
		finalize = func() {
			for _, c := range closers {
				if err := c(); err != nil {
					r.logger.Error("close: %v", err)
				}
			}
		}
	)

	if r.cfg.Kafka.URI != "" {
		pub, err := r.publisher("")
		if err != nil {
			return nil, finalize, err
		}
		closers = append(closers, pub.Close)
		r.logger.Verbose("checking broker %s", describeBroker(r.cfg.Broker()))
		checks = append(checks, metrics.HealthCheck{Name: "broker", Check: pub.Ping})
	}

	if r.storeConfigured() {
		g, err := r.gateway(ctx)
		if err != nil {
			return nil, finalize, err
		}
		closers = append(closers, g.Close)
		checks = append(checks, metrics.HealthCheck{Name: "store", Check: g.Ping})
	}

	return checks, finalize, nil
}
