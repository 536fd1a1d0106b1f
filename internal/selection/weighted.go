package selection

import (
	"math"
	"sort"

	"github.com/mohammed-shakir/hexselect/internal/core/model"
)

type Weights struct {
	AE  float64
	POB float64
	AFL float64
}

// Normalize scales the weights to sum 1; all-zero weights become equal.
func (w Weights) Normalize() Weights {
	total := w.AE + w.POB + w.AFL
	if total == 0 {
		return Weights{AE: 1.0 / 3, POB: 1.0 / 3, AFL: 1.0 / 3}
	}
	return Weights{AE: w.AE / total, POB: w.POB / total, AFL: w.AFL / total}
}

type Scored struct {
	model.Hexagon
	Score     float64
	ScoreNorm float64
}

// Weighted scores every row and ranks by ScoreNorm (0..100) descending.
// Rows with a missing category score NaN and sort last.
func Weighted(rows []model.Hexagon, w Weights) []Scored {
	n := w.Normalize()
	out := make([]Scored, len(rows))
	maxScore := math.NaN()
	for i, h := range rows {
		s := math.NaN()
		if h.CatAE.Valid && h.CatPOB.Valid && h.CatAFL.Valid {
			s = float64(h.CatAE.Value)*n.AE + float64(h.CatPOB.Value)*n.POB + float64(h.CatAFL.Value)*n.AFL
		}
		out[i] = Scored{Hexagon: h, Score: s}
		if !math.IsNaN(s) && (math.IsNaN(maxScore) || s > maxScore) {
			maxScore = s
		}
	}

	for i := range out {
		switch {
		case math.IsNaN(maxScore) || maxScore <= 0:
			out[i].ScoreNorm = 0
		default:
			out[i].ScoreNorm = 100 * out[i].Score / maxScore
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return nanLastGreater(out[i].ScoreNorm, out[j].ScoreNorm)
	})
	return out
}

func nanLastGreater(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a > b
}

func nanLastLess(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a < b
}
