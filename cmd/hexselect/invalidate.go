package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/hexselect/internal/dataset"
	"github.com/mohammed-shakir/hexselect/internal/invalidation"
	"github.com/mohammed-shakir/hexselect/internal/invalidation/kafkaconsumer"
)

var (
	flagOp      string
	flagDataset string
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Publish a dataset invalidation event to Kafka",
	RunE:  runInvalidate,
}

func init() {
	invalidateCmd.Flags().StringVar(&flagOp, "op", invalidation.OpReload, "event op: reload|evict")
	invalidateCmd.Flags().StringVar(&flagDataset, "dataset", dataset.DefaultID, "dataset id")
	rootCmd.AddCommand(invalidateCmd)
}

func runInvalidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	host, _ := os.Hostname()
	ev := invalidation.Event{
		Version: 1,
		Op:      flagOp,
		Dataset: flagDataset,
		TS:      time.Now().UTC(),
		Source:  "cli@" + host,
	}
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	pub, err := kafkaconsumer.NewPublisher(cfg.Invalidation.Brokers, cfg.Invalidation.Topic)
	if err != nil {
		return err
	}
	defer func() { _ = pub.Close() }()

	partition, offset, err := pub.Publish(ev)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published %s %s to %s (partition %d, offset %d)\n",
		ev.Op, ev.Dataset, cfg.Invalidation.Topic, partition, offset)
	return nil
}
