// Package selection implements the hexagon selection methods: the
// state/municipality prefilter, the hierarchical category filter (A), the
// weighted score (B) and the Top-N ranking intersection (C).
package selection

import (
	"strings"

	"github.com/mohammed-shakir/hexselect/internal/core/model"
)

// GeoFilter narrows a dataset before any method runs. Empty fields do not
// filter. Cells, when non-nil, restricts rows to a spatial cover.
type GeoFilter struct {
	State        string
	Municipality string
	Cells        map[string]struct{}
}

func (f GeoFilter) active() bool {
	return strings.TrimSpace(f.State) != "" || strings.TrimSpace(f.Municipality) != "" || f.Cells != nil
}

// Prefilter keeps rows matching the filter (case-insensitive names), in
// their original order.
func Prefilter(rows []model.Hexagon, f GeoFilter) []model.Hexagon {
	if !f.active() {
		return rows
	}
	state := strings.TrimSpace(f.State)
	muni := strings.TrimSpace(f.Municipality)

	out := make([]model.Hexagon, 0, len(rows)/4)
	for _, h := range rows {
		if state != "" && !strings.EqualFold(h.State, state) {
			continue
		}
		if muni != "" && !strings.EqualFold(h.Municipality, muni) {
			continue
		}
		if f.Cells != nil {
			if _, ok := f.Cells[h.Cell]; !ok {
				continue
			}
		}
		out = append(out, h)
	}
	return out
}
