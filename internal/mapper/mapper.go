// Package mapper converts between geometric coordinates and H3 cells.
package mapper

import (
	"github.com/mohammed-shakir/hexselect/internal/core/model"
)

// Interface is the full cell toolbox; consumers declare the subset they
// need.
type Interface interface {
	CellsForBBox(bb model.BBox, res int) (model.Cells, error)
	CellsForPolygon(poly model.Polygon, res int) (model.Cells, error)
	CellToLatLng(cell string) (lat, lng float64, err error)
	CellToPolygon(cell string) ([][2]float64, error)
	Resolution(cell string) (int, error)
	ToParent(cell string, parentRes int) (string, error)
	ToChildren(cell string, childRes int) (model.Cells, error)
}
