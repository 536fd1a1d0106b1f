// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type BBox struct {
	X1, Y1 float64
	X2, Y2 float64
	SRID   string
}

// String representation matching the bbox query parameter
func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f,%s", b.X1, b.Y1, b.X2, b.Y2, b.SRID)
}

type Polygon struct {
	GeoJSON string
}

type Cells []string

// Category is a municipal category converted to the 1..4 scale.
// Valid is false when the raw value was blank or unknown.
type Category struct {
	Value int
	Valid bool
}

func (c Category) String() string {
	if !c.Valid {
		return ""
	}
	return strconv.Itoa(c.Value)
}

// Ptr returns nil for a missing category.
func (c Category) Ptr() *int {
	if !c.Valid {
		return nil
	}
	v := c.Value
	return &v
}

// Hexagon is one dataset row. Values holds every raw column in header
// order with the categories rewritten to their numeric form.
type Hexagon struct {
	State        string
	Municipality string
	Cell         string

	CatAE  Category
	CatPOB Category
	CatAFL Category

	// NaN when missing
	RankAE  float64
	RankPOB float64
	RankAFL float64

	Values []string
}

type Dataset struct {
	ID       string
	Source   string
	Hash     uint64
	Columns  []string
	Rows     []Hexagon
	LoadedAt time.Time

	// set for datasets read from disk
	ModTime time.Time
	Size    int64
}

func (d *Dataset) HashHex() string {
	return fmt.Sprintf("%016x", d.Hash)
}

type Method string

const (
	MethodHierarchical Method = "A"
	MethodWeighted     Method = "B"
	MethodIntersection Method = "C"
)

var Methods = []Method{MethodHierarchical, MethodWeighted, MethodIntersection}

func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A", "HIERARCHICAL":
		return MethodHierarchical, nil
	case "B", "WEIGHTED":
		return MethodWeighted, nil
	case "C", "INTERSECTION":
		return MethodIntersection, nil
	default:
		return "", fmt.Errorf("unknown method %q (want A|B|C)", s)
	}
}

// ResultRow is one selected hexagon. Nil pointers mean the value is
// missing or does not apply to the method.
type ResultRow struct {
	Index        int      `json:"index"`
	Cell         string   `json:"h3_09"`
	State        string   `json:"noment,omitempty"`
	Municipality string   `json:"nomgeo,omitempty"`
	Lat          *float64 `json:"latitud"`
	Lng          *float64 `json:"longitud"`

	CatAE  *int `json:"catMunActEcon,omitempty"`
	CatPOB *int `json:"catMunPob,omitempty"`
	CatAFL *int `json:"catMunAfluLog,omitempty"`

	Score     *float64 `json:"score,omitempty"`
	ScoreNorm *float64 `json:"score_norm,omitempty"`

	Coincidences int   `json:"coincidencias,omitempty"`
	InAE         *bool `json:"esta_en_AE,omitempty"`
	InPOB        *bool `json:"esta_en_POB,omitempty"`
	InAFL        *bool `json:"esta_en_AFL,omitempty"`

	Values []string `json:"values,omitempty"`
}

type Result struct {
	Method    Method      `json:"method"`
	DatasetID string      `json:"dataset"`
	Columns   []string    `json:"columns,omitempty"`
	Filtered  int         `json:"filtered"`
	Total     int         `json:"total"`
	Rows      []ResultRow `json:"rows"`
	Warnings  []string    `json:"warnings,omitempty"`
	Cached    bool        `json:"cached"`
}
