package selection

import "github.com/mohammed-shakir/hexselect/internal/core/model"

// Thresholds are per-category minimums on the 1..4 scale; nil disables one.
type Thresholds struct {
	MinAE  *int
	MinPOB *int
	MinAFL *int
}

// Hierarchical keeps the rows meeting every active minimum. A missing
// category never meets an active minimum.
func Hierarchical(rows []model.Hexagon, t Thresholds) []model.Hexagon {
	if t.MinAE == nil && t.MinPOB == nil && t.MinAFL == nil {
		return rows
	}
	out := make([]model.Hexagon, 0, len(rows)/2)
	for _, h := range rows {
		if meets(h.CatAE, t.MinAE) && meets(h.CatPOB, t.MinPOB) && meets(h.CatAFL, t.MinAFL) {
			out = append(out, h)
		}
	}
	return out
}

func meets(c model.Category, minimum *int) bool {
	if minimum == nil {
		return true
	}
	return c.Valid && c.Value >= *minimum
}
