package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/hexselect/internal/core/model"
	"github.com/mohammed-shakir/hexselect/internal/engine"
)

// ParseSelectRequest reads the selection parameters of /select and
// /select/all. Method is only required when requireMethod is set.
func ParseSelectRequest(r *http.Request, requireMethod bool) (engine.Request, string, error) {
	q := r.URL.Query()
	var warn string

	req := engine.Request{
		State:        strings.TrimSpace(q.Get("state")),
		Municipality: strings.TrimSpace(q.Get("municipality")),
	}

	if raw := strings.TrimSpace(q.Get("method")); raw != "" || requireMethod {
		if raw == "" {
			return req, "", errors.New("missing required parameter: method")
		}
		m, err := model.ParseMethod(raw)
		if err != nil {
			return req, "", err
		}
		req.Method = m
	}

	rawBBox := strings.TrimSpace(q.Get("bbox"))
	rawPoly := strings.TrimSpace(q.Get("polygon"))

	// drop bbox if polygon is given (polygon wins)
	if rawBBox != "" && rawPoly != "" {
		warn = "both bbox and polygon supplied; preferring polygon"
		rawBBox = ""
	}
	if rawBBox != "" {
		bb, err := parseBBOX(rawBBox)
		if err != nil {
			return req, warn, fmt.Errorf("invalid bbox: %w", err)
		}
		req.BBox = &bb
	}
	if rawPoly != "" {
		p, err := parsePolygon(rawPoly)
		if err != nil {
			return req, warn, fmt.Errorf("invalid polygon: %w", err)
		}
		req.Polygon = &p
	}

	var err error
	if req.Thresholds.MinAE, err = thresholdParam(q, "min_ae"); err != nil {
		return req, warn, err
	}
	if req.Thresholds.MinPOB, err = thresholdParam(q, "min_pob"); err != nil {
		return req, warn, err
	}
	if req.Thresholds.MinAFL, err = thresholdParam(q, "min_afl"); err != nil {
		return req, warn, err
	}

	def := engine.DefaultWeights()
	if req.Weights.AE, err = floatParam(q, "w_ae", def.AE); err != nil {
		return req, warn, err
	}
	if req.Weights.POB, err = floatParam(q, "w_pob", def.POB); err != nil {
		return req, warn, err
	}
	if req.Weights.AFL, err = floatParam(q, "w_afl", def.AFL); err != nil {
		return req, warn, err
	}

	if req.TopN, err = intParam(q, "top_n", engine.DefaultTopN); err != nil {
		return req, warn, err
	}
	if req.Limit, err = intParam(q, "limit", engine.DefaultLimit); err != nil {
		return req, warn, err
	}
	return req, warn, nil
}

// thresholdParam defaults to M (2); "off" disables the criterion.
func thresholdParam(q url.Values, name string) (*int, error) {
	raw := strings.TrimSpace(q.Get(name))
	switch strings.ToLower(raw) {
	case "":
		v := engine.DefaultMinCategory
		return &v, nil
	case "off", "none":
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: expected 1..4 or off, got %q", name, raw)
	}
	return &n, nil
}

func floatParam(q url.Values, name string, def float64) (float64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return def, nil
	}
	f, err := parseFloat(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return f, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: expected an integer, got %q", name, raw)
	}
	return n, nil
}

func parseBBOX(bboxParam string) (model.BBox, error) {
	parts := strings.Split(bboxParam, ",")
	if len(parts) == 4 {
		parts = append(parts, "EPSG:4326")
	}
	if len(parts) != 5 {
		return model.BBox{}, errors.New("expected comma-separated values: x1,y1,x2,y2[,EPSG:4326]")
	}
	xMin, err := parseFloat(parts[0])
	if err != nil {
		return model.BBox{}, fmt.Errorf("x1: %w", err)
	}
	yMin, err := parseFloat(parts[1])
	if err != nil {
		return model.BBox{}, fmt.Errorf("y1: %w", err)
	}
	xMax, err := parseFloat(parts[2])
	if err != nil {
		return model.BBox{}, fmt.Errorf("x2: %w", err)
	}
	yMax, err := parseFloat(parts[3])
	if err != nil {
		return model.BBox{}, fmt.Errorf("y2: %w", err)
	}

	srid := strings.ToUpper(strings.TrimSpace(parts[4]))
	if srid != "EPSG:4326" {
		return model.BBox{}, fmt.Errorf("only EPSG:4326 is supported (got %q)", srid)
	}

	if !(xMin >= -180 && xMin <= 180 && xMax >= -180 && xMax <= 180) {
		return model.BBox{}, errors.New("longitude must be in [-180,180]")
	}
	if !(yMin >= -90 && yMin <= 90 && yMax >= -90 && yMax <= 90) {
		return model.BBox{}, errors.New("latitude must be in [-90,90]")
	}
	if xMax <= xMin || yMax <= yMin {
		return model.BBox{}, errors.New("coordinates must satisfy x2>x1 and y2>y1")
	}
	return model.BBox{X1: xMin, Y1: yMin, X2: xMax, Y2: yMax, SRID: srid}, nil
}

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	return f, nil
}

func parsePolygon(raw string) (model.Polygon, error) {
	var tmp struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(raw), &tmp); err != nil {
		return model.Polygon{}, fmt.Errorf("parse json: %w", err)
	}
	t := strings.TrimSpace(tmp.Type)
	switch t {
	case "Polygon", "MultiPolygon":
		return model.Polygon{GeoJSON: raw}, nil
	default:
		return model.Polygon{}, fmt.Errorf(`unsupported GeoJSON "type": %q (must be Polygon or MultiPolygon)`, t)
	}
}
