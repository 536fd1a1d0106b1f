// Package metricswrap reports tracker size as a gauge and logs keys that
// cross the hot threshold.
package metricswrap

import (
	"fmt"
	"log/slog"

	xx "github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/hexselect/internal/core/observability"
	"github.com/mohammed-shakir/hexselect/internal/hotness"
)

type Sizer interface{ Size() int }

type Config struct {
	// zero disables threshold logging
	HotThreshold float64
	// fraction of hot increments that get logged, by key hash
	LogSample float64
}

type WithMetrics struct {
	inner  hotness.Interface
	cfg    Config
	logger *slog.Logger
}

var _ hotness.Interface = (*WithMetrics)(nil)

func New(inner hotness.Interface, cfg Config, logger *slog.Logger) *WithMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &WithMetrics{inner: inner, cfg: cfg, logger: logger}
}

func (w *WithMetrics) Inc(key string) {
	w.inner.Inc(key)
	if w.cfg.HotThreshold > 0 {
		score := w.inner.Score(key)
		if score >= w.cfg.HotThreshold && shouldLog(w.cfg.LogSample, key) {
			w.logger.Info("hot key above threshold",
				"event", "hotness_threshold",
				"key", key,
				"key_hash", fmt.Sprintf("%08x", xx.Sum64String(key)),
				"score", score)
		}
	}
	w.report()
}

func (w *WithMetrics) Score(key string) float64 {
	return w.inner.Score(key)
}

func (w *WithMetrics) Reset(keys ...string) {
	w.inner.Reset(keys...)
	w.report()
}

func (w *WithMetrics) report() {
	if s, ok := w.inner.(Sizer); ok {
		observability.SetHotKeysGauge(s.Size())
	}
}

func shouldLog(sample float64, key string) bool {
	if sample <= 0 {
		return false
	}
	if sample >= 1 {
		return true
	}
	const denom = 10000
	threshold := uint64(sample*denom + 0.5)
	if threshold == 0 {
		return false
	}
	return xx.Sum64String(key)%denom < threshold
}
