package h3mapper

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/hexselect/internal/core/model"
	"github.com/mohammed-shakir/hexselect/internal/mapper"
)

type Mapper struct{}

var _ mapper.Interface = (*Mapper)(nil)

func New() *Mapper { return &Mapper{} }

// CellsForBBox covers a lon/lat box with cells at res.
func (m *Mapper) CellsForBBox(bb model.BBox, res int) (model.Cells, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	outer := h3.GeoLoop{
		{Lat: bb.Y1, Lng: bb.X1},
		{Lat: bb.Y1, Lng: bb.X2},
		{Lat: bb.Y2, Lng: bb.X2},
		{Lat: bb.Y2, Lng: bb.X1},
	}
	return cover([]h3.GeoPolygon{{GeoLoop: outer}}, res)
}

// CellsForPolygon covers a GeoJSON Polygon or MultiPolygon with cells at res.
func (m *Mapper) CellsForPolygon(poly model.Polygon, res int) (model.Cells, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	polys, err := parseGeoJSON(poly.GeoJSON)
	if err != nil {
		return nil, err
	}
	return cover(polys, res)
}

func parseGeoJSON(raw string) ([]h3.GeoPolygon, error) {
	var hdr struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal([]byte(raw), &hdr); err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}

	var rings [][][][]float64 // [poly][ring][i][lon,lat]
	switch hdr.Type {
	case "Polygon":
		var one [][][]float64
		if err := json.Unmarshal(hdr.Coordinates, &one); err != nil {
			return nil, fmt.Errorf("parse polygon coords: %w", err)
		}
		rings = [][][][]float64{one}
	case "MultiPolygon":
		if err := json.Unmarshal(hdr.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("parse multipolygon coords: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported GeoJSON type: %s", hdr.Type)
	}
	if len(rings) == 0 {
		return nil, errors.New("empty multipolygon")
	}

	out := make([]h3.GeoPolygon, 0, len(rings))
	for pi, polyRings := range rings {
		if len(polyRings) == 0 {
			return nil, fmt.Errorf("polygon %d is empty", pi)
		}
		outer := toLoop(polyRings[0])
		if len(outer) < 3 {
			return nil, fmt.Errorf("polygon %d outer ring has < 4 vertices", pi)
		}
		gp := h3.GeoPolygon{GeoLoop: outer}
		for i := 1; i < len(polyRings); i++ {
			hole := toLoop(polyRings[i])
			if len(hole) < 3 {
				return nil, fmt.Errorf("polygon %d hole %d has < 4 vertices", pi, i-1)
			}
			gp.Holes = append(gp.Holes, hole)
		}
		out = append(out, gp)
	}
	return out, nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

// GeoJSON ring [[lon,lat], ...] to loop; the closing vertex is dropped.
func toLoop(coords [][]float64) h3.GeoLoop {
	loop := make(h3.GeoLoop, 0, len(coords))
	for _, xy := range coords {
		if len(xy) != 2 {
			continue
		}
		loop = append(loop, h3.LatLng{Lat: xy[1], Lng: xy[0]})
	}
	if n := len(loop); n >= 2 && loop[0] == loop[n-1] {
		loop = loop[:n-1]
	}
	return loop
}

// cover polyfills every polygon and returns the union sorted.
func cover(polys []h3.GeoPolygon, res int) (model.Cells, error) {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, p := range polys {
		idx, err := h3.PolygonToCells(p, res)
		if err != nil {
			return nil, fmt.Errorf("h3 polyfill: %w", err)
		}
		for _, c := range idx {
			s := c.String()
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out, nil
}
