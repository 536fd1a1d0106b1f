// Package cache stores rendered selection results in Redis with a TTL
// chosen from the hotness of the query.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/hexselect/internal/core/model"
	"github.com/mohammed-shakir/hexselect/internal/core/observability"
	"github.com/mohammed-shakir/hexselect/pkg/adaptive"
)

type Interface interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type Results struct {
	store     Interface
	decider   adaptive.Decider
	view      adaptive.HotnessView
	opTimeout time.Duration
	logger    *slog.Logger
}

func NewResults(store Interface, decider adaptive.Decider, view adaptive.HotnessView, opTimeout time.Duration, logger *slog.Logger) *Results {
	if logger == nil {
		logger = slog.Default()
	}
	if opTimeout <= 0 {
		opTimeout = 250 * time.Millisecond
	}
	return &Results{store: store, decider: decider, view: view, opTimeout: opTimeout, logger: logger}
}

// Get returns a cached result. Store and decode errors count as misses.
func (r *Results) Get(ctx context.Context, key string) (*model.Result, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	raw, ok, err := r.store.Get(ctx, key)
	if err != nil {
		r.logger.WarnContext(ctx, "result cache get failed", "key", key, "err", err)
		observability.IncCacheMiss()
		return nil, false
	}
	if !ok {
		observability.IncCacheMiss()
		return nil, false
	}
	var res model.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		r.logger.WarnContext(ctx, "result cache entry undecodable", "key", key, "err", err)
		observability.IncCacheMiss()
		return nil, false
	}
	observability.IncCacheHit()
	res.Cached = true
	return &res, true
}

// Put stores res unless the decider bypasses it for hotKeys.
func (r *Results) Put(ctx context.Context, key string, hotKeys []string, res *model.Result) adaptive.Decision {
	dec, reason := r.decider.Decide(adaptive.Query{Keys: hotKeys}, r.view)
	if dec.Type != adaptive.DecisionFill {
		r.logger.DebugContext(ctx, "result cache bypass", "key", key, "reason", string(reason))
		return dec
	}

	raw, err := json.Marshal(res)
	if err != nil {
		r.logger.WarnContext(ctx, "result cache encode failed", "key", key, "err", err)
		return adaptive.Decision{Type: adaptive.DecisionBypass}
	}

	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	if err := r.store.Set(ctx, key, raw, dec.TTL); err != nil {
		r.logger.WarnContext(ctx, "result cache set failed", "key", key, "err", err)
		return adaptive.Decision{Type: adaptive.DecisionBypass}
	}
	r.logger.DebugContext(ctx, "result cached", "key", key, "ttl", dec.TTL, "reason", string(reason))
	return dec
}
