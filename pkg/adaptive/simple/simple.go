// Package simple is a threshold decider: the hottest key picks the TTL band.
package simple

import (
	"time"

	"github.com/mohammed-shakir/hexselect/pkg/adaptive"
)

type Config struct {
	Threshold float64
	TTLCold   time.Duration
	TTLWarm   time.Duration
	TTLHot    time.Duration
}

type SimpleDecider struct {
	cfg Config
}

var _ adaptive.Decider = (*SimpleDecider)(nil)

func New(cfg Config) *SimpleDecider {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 1
	}
	return &SimpleDecider{cfg: cfg}
}

// Decide maps the max score over q.Keys onto a TTL: at least 4x threshold is
// hot, at least threshold is warm, anything else is cold. A zero TTL for
// the chosen band bypasses the cache.
func (d *SimpleDecider) Decide(q adaptive.Query, view adaptive.HotnessView) (adaptive.Decision, adaptive.Reason) {
	if len(q.Keys) == 0 {
		return adaptive.Decision{Type: adaptive.DecisionBypass}, adaptive.ReasonNoKeys
	}
	maxScore := 0.0
	for i, k := range q.Keys {
		s := view.Score(k)
		if i == 0 || s > maxScore {
			maxScore = s
		}
	}

	var (
		ttl    time.Duration
		reason adaptive.Reason
	)
	switch {
	case maxScore >= 4*d.cfg.Threshold:
		ttl, reason = d.cfg.TTLHot, adaptive.ReasonHot
	case maxScore >= d.cfg.Threshold:
		ttl, reason = d.cfg.TTLWarm, adaptive.ReasonWarm
	default:
		ttl, reason = d.cfg.TTLCold, adaptive.ReasonCold
	}
	if ttl <= 0 {
		return adaptive.Decision{Type: adaptive.DecisionBypass}, adaptive.ReasonNoTTLOn
	}
	return adaptive.Decision{Type: adaptive.DecisionFill, TTL: ttl}, reason
}
