// Package render turns selection results into map layers (GeoJSON), CSV
// downloads and negotiated HTTP payloads.
package render

import (
	"fmt"

	"github.com/mohammed-shakir/hexselect/internal/core/model"
)

const (
	DefaultZoom  = 13
	DefaultTiles = "OpenStreetMap"

	hexColor     = "#FF0000"
	markerStroke = "#000000"
	markerFill   = "#FFFFFF"
)

type CellGeometry interface {
	CellToLatLng(cell string) (lat, lng float64, err error)
	CellToPolygon(cell string) ([][2]float64, error)
}

type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// FeatureCollection carries map view hints as foreign members.
type FeatureCollection struct {
	Type     string      `json:"type"`
	Title    string      `json:"title,omitempty"`
	Center   *[2]float64 `json:"center,omitempty"` // [lat, lng]
	Zoom     int         `json:"zoom"`
	Tiles    string      `json:"tiles"`
	Features []Feature   `json:"features"`
}

// MapLayer draws every row as a red hexagon plus a numbered centroid
// marker. Rows whose cell cannot be resolved are skipped with a warning.
func MapLayer(g CellGeometry, rows []model.ResultRow, title string) (FeatureCollection, []string) {
	fc := FeatureCollection{
		Type:     "FeatureCollection",
		Title:    title,
		Zoom:     DefaultZoom,
		Tiles:    DefaultTiles,
		Features: []Feature{},
	}
	if len(rows) == 0 {
		return fc, []string{fmt.Sprintf("no hexagons to show on the map (%s)", title)}
	}

	var warnings []string
	var sumLat, sumLng float64
	valid := 0
	for i, r := range rows {
		idx := r.Index
		if idx == 0 {
			idx = i + 1
		}
		if r.Cell == "" {
			continue
		}
		lat, lng, err := g.CellToLatLng(r.Cell)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("could not get coordinates for hexagon %s: %v", r.Cell, err))
			continue
		}
		ring, err := g.CellToPolygon(r.Cell)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("could not process hexagon %s: %v", r.Cell, err))
			continue
		}
		sumLat += lat
		sumLng += lng
		valid++

		popup := fmt.Sprintf("<b>Hexágono #%d</b><br><b>ID H3:</b> %s<br><b>Latitud:</b> %.6f<br><b>Longitud:</b> %.6f",
			idx, r.Cell, lat, lng)

		fc.Features = append(fc.Features,
			Feature{
				Type:     "Feature",
				Geometry: Geometry{Type: "Polygon", Coordinates: [][][2]float64{ring}},
				Properties: map[string]any{
					"kind":        "hexagon",
					"index":       idx,
					"h3_09":       r.Cell,
					"latitud":     lat,
					"longitud":    lng,
					"popup":       popup,
					"tooltip":     fmt.Sprintf("Hexágono #%d: %s", idx, r.Cell),
					"color":       hexColor,
					"weight":      2,
					"fill":        true,
					"fillColor":   hexColor,
					"fillOpacity": 0.3,
				},
			},
			Feature{
				Type:     "Feature",
				Geometry: Geometry{Type: "Point", Coordinates: [2]float64{lng, lat}},
				Properties: map[string]any{
					"kind":        "marker",
					"index":       idx,
					"label":       fmt.Sprint(idx),
					"h3_09":       r.Cell,
					"popup":       popup,
					"tooltip":     fmt.Sprintf("#%d - Lat: %.6f, Lon: %.6f", idx, lat, lng),
					"radius":      8,
					"color":       markerStroke,
					"fillColor":   markerFill,
					"fillOpacity": 1.0,
				},
			},
		)
	}

	if valid == 0 {
		warnings = append(warnings, fmt.Sprintf("no valid hexagons could be processed for the map (%s)", title))
		return fc, warnings
	}
	fc.Center = &[2]float64{sumLat / float64(valid), sumLng / float64(valid)}
	return fc, warnings
}
