// Package kafkaconsumer applies dataset invalidation events from Kafka to
// the dataset registry and the hotness tracker.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/hexselect/internal/cache/keys"
	"github.com/mohammed-shakir/hexselect/internal/core/model"
	obs "github.com/mohammed-shakir/hexselect/internal/core/observability"
	"github.com/mohammed-shakir/hexselect/internal/invalidation"
	mylog "github.com/mohammed-shakir/hexselect/internal/logger"
)

type DatasetEvicter interface {
	Evict(id string) bool
}

type HotnessResetter interface {
	Reset(keys ...string)
}

type Consumer struct {
	cfg      Config
	logger   *slog.Logger
	datasets DatasetEvicter
	hot      HotnessResetter
	seen     *tsDedupe
}

func New(cfg Config, logger *slog.Logger, datasets DatasetEvicter, hot HotnessResetter) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Consumer{
		cfg:      cfg,
		logger:   logger.With("component", "kafka_consumer"),
		datasets: datasets,
		hot:      hot,
		seen:     newTSDedupe(cfg.DedupeSize),
	}
}

// Start consumes until ctx is done, retrying the group session on errors.
func (c *Consumer) Start(ctx context.Context) error {
	if c.datasets == nil {
		return errors.New("kafkaconsumer: missing dataset registry")
	}
	if len(c.cfg.Brokers) == 0 {
		return errors.New("kafkaconsumer: no brokers configured")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("kafka invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil && ctx.Err() == nil {
			obs.IncKafkaConsumerError("session")
			c.logger.Error("kafka consumer error", "err", err, "topic", c.cfg.Topic)
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
		}
		if ctx.Err() != nil {
			c.logger.Info("kafka invalidation consumer shutting down")
			return nil
		}
	}
}

// ProcessOne applies a single event. A returned error leaves the message
// unmarked so it is redelivered.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	ctx = mylog.WithComponent(ctx, "kafka_consumer")

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.IncKafkaConsumerError("decode")
		c.logger.ErrorContext(ctx, "kafka message undecodable",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return fmt.Errorf("json decode: %w", err)
	}
	if err := ev.Validate(); err != nil {
		obs.IncKafkaConsumerError("invalid")
		obs.ObserveInvalidation(ev.Op, err)
		c.logger.ErrorContext(ctx, "kafka event invalid",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return fmt.Errorf("invalid event: %w", err)
	}

	if !c.seen.shouldApply(ev.Dataset, ev.TS) {
		c.logger.DebugContext(ctx, "stale invalidation skipped", "dataset", ev.Dataset, "ts", ev.TS)
		return nil
	}

	evicted := c.datasets.Evict(ev.Dataset)
	if c.hot != nil {
		hk := make([]string, 0, len(model.Methods))
		for _, m := range model.Methods {
			hk = append(hk, keys.HotKey(ev.Dataset, string(m)))
		}
		c.hot.Reset(hk...)
	}

	obs.ObserveInvalidation(ev.Op, nil)
	c.logger.InfoContext(ctx, "dataset invalidated",
		"event", "invalidation", "op", ev.Op, "dataset", ev.Dataset,
		"evicted", evicted, "source", ev.Source)
	return nil
}
