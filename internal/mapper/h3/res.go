package h3mapper

import (
	"fmt"
	"sort"

	"github.com/mohammed-shakir/hexselect/internal/core/model"
)

func (m *Mapper) ToParent(cell string, parentRes int) (string, error) {
	if err := validateRes(parentRes); err != nil {
		return "", err
	}
	c, err := ParseCell(cell)
	if err != nil {
		return "", err
	}
	cur := c.Resolution()
	if parentRes > cur {
		return "", fmt.Errorf("parentRes %d must be <= cell resolution %d", parentRes, cur)
	}
	if parentRes == cur {
		return c.String(), nil
	}
	p, err := c.Parent(parentRes)
	if err != nil {
		return "", fmt.Errorf("h3 parent: %w", err)
	}
	return p.String(), nil
}

func (m *Mapper) ToChildren(cell string, childRes int) (model.Cells, error) {
	if err := validateRes(childRes); err != nil {
		return nil, err
	}
	c, err := ParseCell(cell)
	if err != nil {
		return nil, err
	}
	cur := c.Resolution()
	if childRes < cur {
		return nil, fmt.Errorf("childRes %d must be >= cell resolution %d", childRes, cur)
	}
	if childRes == cur {
		return model.Cells{c.String()}, nil
	}
	kids, err := c.Children(childRes)
	if err != nil {
		return nil, fmt.Errorf("h3 children: %w", err)
	}
	out := make([]string, 0, len(kids))
	for _, k := range kids {
		out = append(out, k.String())
	}
	sort.Strings(out)
	return out, nil
}
