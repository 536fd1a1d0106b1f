package runevents

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammed-shakir/hexselect/internal/core/observability"
	"github.com/mohammed-shakir/hexselect/internal/history"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestPublisher_SendsKeyedJSON(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	prod := mocks.NewAsyncProducer(t, cfg)

	var got []byte
	var key string
	prod.ExpectInputWithMessageCheckerFunctionAndSucceed(func(m *sarama.ProducerMessage) error {
		k, _ := m.Key.Encode()
		key = string(k)
		got, _ = m.Value.Encode()
		if m.Topic != DefaultTopic {
			t.Errorf("topic=%s", m.Topic)
		}
		return nil
	})

	p := NewPublisherWith(prod, "", 4, quietLogger())
	p.Publish(history.Run{User: "ana", Dataset: "default", Method: "B", Total: 7, CreatedAt: time.Unix(0, 0).UTC()})

	select {
	case <-prod.Successes():
	case <-time.After(2 * time.Second):
		t.Fatal("event was not produced")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if key != "default" {
		t.Fatalf("key=%q", key)
	}
	var ev Event
	if err := json.Unmarshal(got, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Version != 1 || ev.User != "ana" || ev.Method != "B" || ev.Total != 7 {
		t.Fatalf("event=%+v", ev)
	}
}

func TestPublisher_DropsWhenQueueFull(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, mocks.NewTestConfig())
	p := &Publisher{
		topic:   DefaultTopic,
		events:  make(chan history.Run, 1),
		prod:    prod,
		logger:  quietLogger(),
		stopped: make(chan struct{}),
	}
	// no drain goroutine: the second publish has nowhere to go
	p.Publish(history.Run{Dataset: "a"})
	p.Publish(history.Run{Dataset: "b"})
	if p.Dropped() != 1 {
		t.Fatalf("dropped=%d want 1", p.Dropped())
	}
	_ = prod.Close()
}

func TestPublisher_DropsAreExported(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.Init(reg)
	before := runEventCount(t, reg, "dropped")

	prod := mocks.NewAsyncProducer(t, mocks.NewTestConfig())
	p := &Publisher{
		topic:   DefaultTopic,
		events:  make(chan history.Run),
		prod:    prod,
		logger:  quietLogger(),
		stopped: make(chan struct{}),
	}
	p.Publish(history.Run{Dataset: "a"})
	p.Publish(history.Run{Dataset: "b"})
	_ = prod.Close()

	if got := runEventCount(t, reg, "dropped"); got != before+2 {
		t.Fatalf("run_events_total{outcome=dropped}=%v want %v", got, before+2)
	}
}

func runEventCount(t *testing.T, g prometheus.Gatherer, outcome string) float64 {
	t.Helper()
	mfs, err := g.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "run_events_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
