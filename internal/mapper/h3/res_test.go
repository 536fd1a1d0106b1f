package h3mapper

import (
	"reflect"
	"slices"
	"sort"
	"testing"

	h3 "github.com/uber/h3-go/v4"
)

func TestHierarchy_ParentContainsCell(t *testing.T) {
	m := New()

	cell, err := h3.LatLngToCell(h3.LatLng{Lat: 20.6767, Lng: -103.3475}, 9)
	if err != nil {
		t.Fatalf("LatLngToCell: %v", err)
	}
	cellStr := cell.String()

	parent, err := m.ToParent(cellStr, 8)
	if err != nil {
		t.Fatalf("ToParent: %v", err)
	}
	children, err := m.ToChildren(parent, 9)
	if err != nil {
		t.Fatalf("ToChildren: %v", err)
	}
	if !slices.Contains(children, cellStr) {
		t.Fatalf("children of %s at res 9 do not include %s", parent, cellStr)
	}
	if !sort.StringsAreSorted([]string(children)) {
		t.Fatalf("children must be sorted")
	}
}

func TestHierarchy_SameResolutionIsIdentity(t *testing.T) {
	m := New()
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: 25.6866, Lng: -100.3161}, 7)
	if err != nil {
		t.Fatalf("LatLngToCell: %v", err)
	}
	s := cell.String()

	p, err := m.ToParent(s, 7)
	if err != nil || p != s {
		t.Fatalf("ToParent same res = %q, %v", p, err)
	}
	kids, err := m.ToChildren(s, 7)
	if err != nil || !reflect.DeepEqual([]string(kids), []string{s}) {
		t.Fatalf("ToChildren same res = %v, %v", kids, err)
	}
}

func TestHierarchy_BadTransitions(t *testing.T) {
	m := New()
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: 19.4326, Lng: -99.1332}, 9)
	if err != nil {
		t.Fatalf("LatLngToCell: %v", err)
	}
	if _, err := m.ToParent(cell.String(), 10); err == nil {
		t.Fatalf("expected error for parentRes > current res")
	}
	if _, err := m.ToChildren(cell.String(), 8); err == nil {
		t.Fatalf("expected error for childRes < current res")
	}
	if _, err := m.ToParent("not-a-cell", 3); err == nil {
		t.Fatalf("expected error for invalid cell")
	}
}
