package kafkaconsumer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/hexselect/internal/invalidation"
)

// Publisher sends invalidation events, keyed by dataset so events for one
// dataset stay on one partition.
type Publisher struct {
	topic    string
	producer sarama.SyncProducer
}

func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 3

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create producer: %w", err)
	}
	return NewPublisherWith(p, topic), nil
}

func NewPublisherWith(p sarama.SyncProducer, topic string) *Publisher {
	if topic == "" {
		topic = Config{}.withDefaults().Topic
	}
	return &Publisher{topic: topic, producer: p}
}

func (p *Publisher) Publish(ev invalidation.Event) (partition int32, offset int64, err error) {
	if ev.Version == 0 {
		ev.Version = 1
	}
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	if err := ev.Validate(); err != nil {
		return 0, 0, fmt.Errorf("invalid event: %w", err)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return 0, 0, fmt.Errorf("encode event: %w", err)
	}
	partition, offset, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.Dataset),
		Value: sarama.ByteEncoder(b),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("send event: %w", err)
	}
	return partition, offset, nil
}

func (p *Publisher) Close() error { return p.producer.Close() }
