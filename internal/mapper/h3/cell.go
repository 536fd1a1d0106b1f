package h3mapper

import (
	"fmt"
	"strings"

	h3 "github.com/uber/h3-go/v4"
)

// ParseCell parses and validates an H3 index string.
func ParseCell(s string) (h3.Cell, error) {
	s = strings.TrimSpace(s)
	var c h3.Cell
	if s == "" {
		return c, fmt.Errorf("invalid h3 cell %q", s)
	}
	if err := c.UnmarshalText([]byte(s)); err != nil {
		return c, fmt.Errorf("invalid h3 cell %q: %w", s, err)
	}
	if !c.IsValid() {
		return c, fmt.Errorf("invalid h3 cell %q", s)
	}
	return c, nil
}

// CellToLatLng returns the cell centroid in degrees.
func (m *Mapper) CellToLatLng(cell string) (float64, float64, error) {
	c, err := ParseCell(cell)
	if err != nil {
		return 0, 0, err
	}
	ll, err := c.LatLng()
	if err != nil {
		return 0, 0, fmt.Errorf("h3 centroid: %w", err)
	}
	return ll.Lat, ll.Lng, nil
}

// CellToPolygon returns the boundary as closed [lon,lat] vertices
// (last vertex repeats the first).
func (m *Mapper) CellToPolygon(cell string) ([][2]float64, error) {
	c, err := ParseCell(cell)
	if err != nil {
		return nil, err
	}
	b, err := c.Boundary()
	if err != nil {
		return nil, fmt.Errorf("h3 boundary: %w", err)
	}
	ring := make([][2]float64, 0, len(b)+1)
	for _, v := range b {
		ring = append(ring, [2]float64{v.Lng, v.Lat})
	}
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring, nil
}

// Resolution of a cell string.
func (m *Mapper) Resolution(cell string) (int, error) {
	c, err := ParseCell(cell)
	if err != nil {
		return 0, err
	}
	return c.Resolution(), nil
}
