package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/mohammed-shakir/hexselect/internal/invalidation"
)

type fakeRegistry struct {
	mu      sync.Mutex
	evicted []string
}

func (f *fakeRegistry) Evict(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evicted = append(f.evicted, id)
	return true
}

type fakeHot struct {
	mu    sync.Mutex
	reset [][]string
}

func (f *fakeHot) Reset(keys ...string) {
	f.mu.Lock()
	f.reset = append(f.reset, keys)
	f.mu.Unlock()
}

type sess struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *sess) Claims() map[string][]int32 { return nil }
func (s *sess) MemberID() string           { return "" }
func (s *sess) GenerationID() int32        { return 0 }
func (s *sess) MarkMessage(m *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, m.Offset)
	s.mu.Unlock()
}
func (s *sess) ResetOffset(_ string, _ int32, _ int64, _ string) {}
func (s *sess) MarkOffset(_ string, _ int32, _ int64, _ string)  {}
func (s *sess) Context() context.Context                         { return s.ctx }
func (s *sess) Errors() <-chan error                             { return nil }
func (s *sess) Commit()                                          {}

type claim struct {
	part int32
	msgs chan *sarama.ConsumerMessage
}

func (c *claim) Topic() string                            { return "hexselect-datasets" }
func (c *claim) Partition() int32                         { return c.part }
func (c *claim) InitialOffset() int64                     { return 0 }
func (c *claim) HighWaterMarkOffset() int64               { return 0 }
func (c *claim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func eventBytes(op, dataset string, ts time.Time) []byte {
	b, _ := json.Marshal(invalidation.Event{Version: 1, Op: op, Dataset: dataset, TS: ts})
	return b
}

func newConsumerForTest() (*Consumer, *fakeRegistry, *fakeHot) {
	reg := &fakeRegistry{}
	hot := &fakeHot{}
	c := New(Config{Brokers: []string{"x"}}, slog.Default(), reg, hot)
	return c, reg, hot
}

func TestProcessOne_EvictsAndResetsHotness(t *testing.T) {
	c, reg, hot := newConsumerForTest()
	msg := &sarama.ConsumerMessage{Offset: 1, Value: eventBytes(invalidation.OpReload, "default", t0)}

	if err := c.ProcessOne(context.Background(), msg); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if len(reg.evicted) != 1 || reg.evicted[0] != "default" {
		t.Fatalf("evicted=%v", reg.evicted)
	}
	want := []string{"default:A", "default:B", "default:C"}
	if len(hot.reset) != 1 || fmt.Sprint(hot.reset[0]) != fmt.Sprint(want) {
		t.Fatalf("hotness reset=%v want %v", hot.reset, want)
	}
}

func TestProcessOne_Errors(t *testing.T) {
	c, reg, _ := newConsumerForTest()
	ctx := context.Background()

	if err := c.ProcessOne(ctx, &sarama.ConsumerMessage{Value: []byte("{nope")}); err == nil {
		t.Fatalf("expected decode error")
	}
	if err := c.ProcessOne(ctx, &sarama.ConsumerMessage{Value: eventBytes("update", "default", t0)}); err == nil {
		t.Fatalf("expected validation error")
	}
	if len(reg.evicted) != 0 {
		t.Fatalf("bad events must not evict, got %v", reg.evicted)
	}
}

func TestProcessOne_SkipsStaleEvents(t *testing.T) {
	c, reg, _ := newConsumerForTest()
	ctx := context.Background()

	for _, ts := range []time.Time{t0, t0, t0.Add(-time.Minute), t0.Add(time.Second)} {
		if err := c.ProcessOne(ctx, &sarama.ConsumerMessage{Value: eventBytes(invalidation.OpEvict, "u-1", ts)}); err != nil {
			t.Fatalf("ProcessOne: %v", err)
		}
	}
	if len(reg.evicted) != 2 {
		t.Fatalf("want 2 applied events (first and newest), got %v", reg.evicted)
	}
}

func TestConsumeClaim_OrderAndCommitAfterWork(t *testing.T) {
	c, _, _ := newConsumerForTest()
	g := &groupHandler{process: c.ProcessOne}
	s := &sess{ctx: t.Context()}

	ch := make(chan *sarama.ConsumerMessage, 3)
	ch <- &sarama.ConsumerMessage{Offset: 10, Value: eventBytes(invalidation.OpReload, "default", t0)}
	ch <- &sarama.ConsumerMessage{Offset: 11, Value: eventBytes(invalidation.OpReload, "default", t0.Add(time.Second))}
	ch <- &sarama.ConsumerMessage{Offset: 12, Value: []byte("garbage")}
	close(ch)

	if err := g.ConsumeClaim(s, &claim{msgs: ch}); err == nil {
		t.Fatalf("expected error on undecodable message")
	}
	if len(s.marked) != 2 || s.marked[0] != 10 || s.marked[1] != 11 {
		t.Fatalf("marked offsets=%v want [10 11]", s.marked)
	}
}

func TestConsumeClaim_ContextDone(t *testing.T) {
	c, _, _ := newConsumerForTest()
	g := &groupHandler{process: c.ProcessOne}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := g.ConsumeClaim(&sess{ctx: ctx}, &claim{msgs: make(chan *sarama.ConsumerMessage)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestStart_RequiresDependencies(t *testing.T) {
	c := New(Config{Brokers: []string{"x"}}, nil, nil, nil)
	if err := c.Start(context.Background()); err == nil {
		t.Fatalf("expected error without registry")
	}
	c = New(Config{}, nil, &fakeRegistry{}, nil)
	if err := c.Start(context.Background()); err == nil {
		t.Fatalf("expected error without brokers")
	}
}

func TestPublisher_SendsKeyedEvent(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev invalidation.Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Version != 1 || ev.Op != invalidation.OpEvict || ev.Dataset != "default" || ev.TS.IsZero() {
			return fmt.Errorf("unexpected event %+v", ev)
		}
		return nil
	})

	p := NewPublisherWith(sp, "")
	if _, _, err := p.Publish(invalidation.Event{Op: invalidation.OpEvict, Dataset: "default"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, _, err := p.Publish(invalidation.Event{Op: "bogus", Dataset: "default"}); err == nil {
		t.Fatalf("expected validation error before send")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
