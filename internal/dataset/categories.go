package dataset

import (
	"sort"
	"strings"

	"github.com/mohammed-shakir/hexselect/internal/core/model"
)

// B (bajo), M (medio), A (alto), A+ (muy alto)
var categoryScale = map[string]int{
	"B":  1,
	"M":  2,
	"A":  3,
	"A+": 4,
}

// ConvertCategory maps B/M/A/A+ onto 1..4. Anything else is missing.
func ConvertCategory(raw string) model.Category {
	v, ok := categoryScale[strings.TrimSpace(raw)]
	if !ok {
		return model.Category{}
	}
	return model.Category{Value: v, Valid: true}
}

// States lists the distinct non-empty state names, sorted.
func States(ds *model.Dataset) []string {
	seen := make(map[string]struct{})
	for _, h := range ds.Rows {
		if h.State != "" {
			seen[h.State] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// Municipalities lists the distinct municipalities of state, or of the
// whole dataset when state is empty.
func Municipalities(ds *model.Dataset, state string) []string {
	seen := make(map[string]struct{})
	for _, h := range ds.Rows {
		if state != "" && h.State != state {
			continue
		}
		if h.Municipality != "" {
			seen[h.Municipality] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
