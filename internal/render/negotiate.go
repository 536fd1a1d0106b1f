package render

import (
	"strconv"
	"strings"
)

type Format int

const (
	FormatJSON Format = iota
	FormatGeoJSON
	FormatCSV
)

func (f Format) ContentType() string {
	switch f {
	case FormatGeoJSON:
		return "application/geo+json"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/json"
	}
}

func (f Format) String() string {
	switch f {
	case FormatGeoJSON:
		return "geojson"
	case FormatCSV:
		return "csv"
	default:
		return "json"
	}
}

// Negotiate picks the output format: explicit ?format= wins, then the
// Accept header by q-value, then def.
func Negotiate(formatParam, accept string, def Format) Format {
	if f, ok := byName(formatParam); ok {
		return f
	}

	best, bestQ := def, -1.0
	for part := range strings.SplitSeq(strings.ToLower(accept), ",") {
		token := strings.TrimSpace(part)
		if token == "" {
			continue
		}
		mt, params, _ := strings.Cut(token, ";")
		mt = strings.TrimSpace(mt)
		q := 1.0
		for p := range strings.SplitSeq(params, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
			if !ok || strings.TrimSpace(k) != "q" {
				continue
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				q = f
			}
		}
		f, ok := byMediaType(mt)
		if !ok || q <= 0 {
			continue
		}
		if q > bestQ {
			best, bestQ = f, q
		}
	}
	return best
}

func byName(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, true
	case "geojson", "geo+json":
		return FormatGeoJSON, true
	case "csv":
		return FormatCSV, true
	}
	return byMediaType(strings.ToLower(strings.TrimSpace(s)))
}

func byMediaType(mt string) (Format, bool) {
	switch mt {
	case "application/json":
		return FormatJSON, true
	case "application/geo+json":
		return FormatGeoJSON, true
	case "text/csv":
		return FormatCSV, true
	}
	return 0, false
}

// ParseFormat resolves a format name or media type.
func ParseFormat(s string) (Format, bool) { return byName(s) }
