package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/hexselect/internal/cache/keys"
	"github.com/mohammed-shakir/hexselect/internal/core/model"
	"github.com/mohammed-shakir/hexselect/internal/selection"
)

const (
	DefaultMinCategory = 2
	DefaultTopN        = 100
	DefaultLimit       = 10
	MaxLimit           = 1000
)

// ErrInvalidRequest marks errors caused by the caller's parameters.
var ErrInvalidRequest = errors.New("invalid request")

type Request struct {
	DatasetID    string
	Method       model.Method
	State        string
	Municipality string
	BBox         *model.BBox
	Polygon      *model.Polygon
	Thresholds   selection.Thresholds
	Weights      selection.Weights
	TopN         int
	Limit        int
	User         string
}

// DefaultWeights are the AE/POB/AFL weights offered when none are given.
func DefaultWeights() selection.Weights {
	return selection.Weights{AE: 0.4, POB: 0.3, AFL: 0.3}
}

// DefaultThresholds activates every category at "M".
func DefaultThresholds() selection.Thresholds {
	ae, pob, afl := DefaultMinCategory, DefaultMinCategory, DefaultMinCategory
	return selection.Thresholds{MinAE: &ae, MinPOB: &pob, MinAFL: &afl}
}

// normalize validates the parameters shared by every method. Callers fill
// in defaults; a zero TopN or Limit is rejected, not defaulted. TopN only
// matters to method C and is checked there.
func (r *Request) normalize() error {
	r.State = strings.TrimSpace(r.State)
	r.Municipality = strings.TrimSpace(r.Municipality)

	if r.Limit < 1 || r.Limit > MaxLimit {
		return fmt.Errorf("%w: limit must be within 1..%d (got %d)", ErrInvalidRequest, MaxLimit, r.Limit)
	}
	for name, v := range map[string]*int{"min_ae": r.Thresholds.MinAE, "min_pob": r.Thresholds.MinPOB, "min_afl": r.Thresholds.MinAFL} {
		if v != nil && (*v < 1 || *v > 4) {
			return fmt.Errorf("%w: %s must be within 1..4 (got %d)", ErrInvalidRequest, name, *v)
		}
	}
	for name, v := range map[string]float64{"w_ae": r.Weights.AE, "w_pob": r.Weights.POB, "w_afl": r.Weights.AFL} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s must be within 0..1 (got %g)", ErrInvalidRequest, name, v)
		}
	}
	if r.BBox != nil && r.Polygon != nil {
		return fmt.Errorf("%w: bbox and polygon are mutually exclusive", ErrInvalidRequest)
	}
	return nil
}

func (r Request) checkTopN() error {
	if r.Method == model.MethodIntersection && r.TopN < 1 {
		return fmt.Errorf("%w: top_n must be >= 1 (got %d)", ErrInvalidRequest, r.TopN)
	}
	return nil
}

// Params are the parameters that shape the result of r.Method; unrelated
// knobs are left out so they do not split the cache.
func (r Request) Params() keys.Params {
	p := keys.Params{
		"state":        strings.ToLower(r.State),
		"municipality": strings.ToLower(r.Municipality),
		"limit":        strconv.Itoa(r.Limit),
	}
	if r.BBox != nil {
		p["bbox"] = r.BBox.String()
	}
	if r.Polygon != nil {
		p["polygon"] = r.Polygon.GeoJSON
	}
	switch r.Method {
	case model.MethodHierarchical:
		p["min_ae"] = intParam(r.Thresholds.MinAE)
		p["min_pob"] = intParam(r.Thresholds.MinPOB)
		p["min_afl"] = intParam(r.Thresholds.MinAFL)
	case model.MethodWeighted:
		n := r.Weights.Normalize()
		p["w"] = fmt.Sprintf("%.6f,%.6f,%.6f", n.AE, n.POB, n.AFL)
	case model.MethodIntersection:
		p["top_n"] = strconv.Itoa(r.TopN)
	}
	return p
}

func intParam(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
