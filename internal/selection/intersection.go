package selection

import (
	"fmt"
	"sort"

	"github.com/mohammed-shakir/hexselect/internal/core/model"
)

type Coincidence struct {
	model.Hexagon
	Count int
	InAE  bool
	InPOB bool
	InAFL bool
}

// Intersection finds the rows whose cell is in the Top-N of at least two
// of the three municipal rankings (lower rank is better). Output is sorted
// by coincidence count descending, ties keep input order.
func Intersection(rows []model.Hexagon, topN int) ([]Coincidence, error) {
	if topN < 1 {
		return nil, fmt.Errorf("top_n must be >= 1 (got %d)", topN)
	}

	ae := topCells(rows, topN, func(h model.Hexagon) float64 { return h.RankAE })
	pob := topCells(rows, topN, func(h model.Hexagon) float64 { return h.RankPOB })
	afl := topCells(rows, topN, func(h model.Hexagon) float64 { return h.RankAFL })

	out := make([]Coincidence, 0)
	for _, h := range rows {
		if h.Cell == "" {
			continue
		}
		_, inAE := ae[h.Cell]
		_, inPOB := pob[h.Cell]
		_, inAFL := afl[h.Cell]
		c := btoi(inAE) + btoi(inPOB) + btoi(inAFL)
		if c < 2 {
			continue
		}
		out = append(out, Coincidence{Hexagon: h, Count: c, InAE: inAE, InPOB: inPOB, InAFL: inAFL})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

func topCells(rows []model.Hexagon, n int, rank func(model.Hexagon) float64) map[string]struct{} {
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return nanLastLess(rank(rows[order[a]]), rank(rows[order[b]]))
	})
	if n > len(order) {
		n = len(order)
	}
	set := make(map[string]struct{}, n)
	for _, i := range order[:n] {
		if c := rows[i].Cell; c != "" {
			set[c] = struct{}{}
		}
	}
	return set
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
