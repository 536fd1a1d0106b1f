// Package adaptive decides how long a selection result may be cached
// based on how hot its query key is.
package adaptive

import "time"

type HotnessView interface {
	Score(key string) float64
}

type Query struct {
	// hotness keys touched by the request, e.g. "default:A"
	Keys []string
}

type DecisionType int

const (
	DecisionBypass DecisionType = iota
	DecisionFill
)

func (d DecisionType) String() string {
	if d == DecisionFill {
		return "fill"
	}
	return "bypass"
}

type Reason string

const (
	ReasonNoKeys  Reason = "no_keys"
	ReasonCold    Reason = "cold"
	ReasonWarm    Reason = "warm"
	ReasonHot     Reason = "hot"
	ReasonNoTTLOn Reason = "ttl_disabled"
)

type Decision struct {
	Type DecisionType
	TTL  time.Duration
}

type Decider interface {
	Decide(q Query, view HotnessView) (Decision, Reason)
}
