package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var publishFlags struct {
	topic string
	batch bool
}

var publishCmd = &cobra.Command{
	Use:   "publish [FILE|-]",
	Short: "Publish one message per input line",
	Long: `Publish reads messages from FILE, or standard input when FILE is "-" or
omitted, one message per line. Empty lines are skipped.

By default every line is published on its own. With --batch all lines are
sent as a single batch, which honours kafka.drop_data.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVarP(&publishFlags.topic, "topic", "t", "", "Topic or stream (default kafka.topic)")
	publishCmd.Flags().BoolVar(&publishFlags.batch, "batch", false, "Send all lines as one batch")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	in, closeIn, err := openInput(cmd, args)
	if err != nil {
		return err
	}
	defer closeIn()

	messages, err := readMessages(in)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		logger.Info("nothing to publish")
		return nil
	}

	rt, err := newClients(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	pub, err := rt.publisher(publishFlags.topic)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := pub.Close(); cerr != nil {
			logger.Error("close publisher: %v", cerr)
		}
	}()

	ctx := commandContext(cmd)
	start := time.Now()
	if publishFlags.batch {
		if err := pub.PublishBatch(ctx, messages); err != nil {
			return err
		}
	} else {
		for i, m := range messages {
			if err := pub.PublishOne(ctx, m); err != nil {
				return fmt.Errorf("message %d: %w", i+1, err)
			}
		}
	}

	logger.Info("published %d message(s) to %s in %s", len(messages), pub.Topic(), time.Since(start).Round(time.Millisecond))
	return nil
}

func openInput(cmd *cobra.Command, args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// readMessages returns every non-empty line of r.
func readMessages(r io.Reader) ([][]byte, error) {
	var messages [][]byte
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		messages = append(messages, append([]byte(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return messages, nil
}
