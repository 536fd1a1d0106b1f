// Package runevents streams executed selections to Kafka for downstream
// consumers (dashboards, audits).
package runevents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/hexselect/internal/core/observability"
	"github.com/mohammed-shakir/hexselect/internal/history"
)

const DefaultTopic = "hexselect-runs"

// Event is the wire form of one run.
type Event struct {
	Version int `json:"version"`
	history.Run
}

// Publisher queues events and hands them to an async producer. Publish
// never blocks; a full queue drops the event.
type Publisher struct {
	topic  string
	events chan history.Run
	prod   sarama.AsyncProducer
	logger *slog.Logger

	stopped   chan struct{}
	closeOnce sync.Once
	closeErr  error

	mu      sync.Mutex
	dropped int
}

func NewPublisher(brokers []string, topic string, queueSize int, logger *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("runevents: create async producer: %w", err)
	}
	return NewPublisherWith(prod, topic, queueSize, logger), nil
}

// NewPublisherWith wraps an existing producer.
func NewPublisherWith(prod sarama.AsyncProducer, topic string, queueSize int, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		topic:   topic,
		events:  make(chan history.Run, queueSize),
		prod:    prod,
		logger:  logger.With("component", "runevents"),
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for r := range p.events {
			b, err := json.Marshal(Event{Version: 1, Run: r})
			if err != nil {
				p.logger.Warn("marshal run event", "err", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(r.Dataset),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		for err := range p.prod.Errors() {
			if err != nil {
				observability.IncRunEvent("error")
				p.logger.Warn("run event producer error", "err", err)
			}
		}
	}()

	return p
}

func (p *Publisher) Publish(r history.Run) {
	select {
	case p.events <- r:
		observability.IncRunEvent("queued")
	default:
		observability.IncRunEvent("dropped")
		p.mu.Lock()
		p.dropped++
		n := p.dropped
		p.mu.Unlock()
		if n == 1 || n%1000 == 0 {
			p.logger.Warn("run event queue full, dropping", "dropped", n)
		}
	}
}

// Dropped reports how many events were discarded on a full queue.
func (p *Publisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Close drains queued events and closes the producer. Publish must not be
// called afterwards.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		close(p.events)
		<-p.stopped
		if err := p.prod.Close(); err != nil {
			p.closeErr = fmt.Errorf("runevents: close producer: %w", err)
		}
	})
	return p.closeErr
}
