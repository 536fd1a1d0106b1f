package router

import (
	"net/http/httptest"
	"testing"

	"github.com/mohammed-shakir/hexselect/internal/core/model"
	"github.com/mohammed-shakir/hexselect/internal/engine"
)

func TestParseBBOX_Valid(t *testing.T) {
	bb, err := parseBBOX("-103.4,20.6,-103.3,20.7,EPSG:4326")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := model.BBox{X1: -103.4, Y1: 20.6, X2: -103.3, Y2: 20.7, SRID: "EPSG:4326"}
	if bb != want {
		t.Fatalf("got %+v want %+v", bb, want)
	}
	if _, err := parseBBOX("-103.4,20.6,-103.3,20.7"); err != nil {
		t.Fatalf("srid should default to EPSG:4326: %v", err)
	}
}

func TestParseBBOX_Invalid(t *testing.T) {
	for _, raw := range []string{
		"-103.4,20.6,-103.3,20.7,EPSG:3857",
		"-103.3,20.6,-103.4,20.7",
		"-190,20.6,-103.3,20.7",
		"a,b,c,d",
		"1,2,3",
	} {
		if _, err := parseBBOX(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestParsePolygon_TypeChecks(t *testing.T) {
	if _, err := parsePolygon(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := parsePolygon(`{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,1],[0,0]]]]}`); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := parsePolygon(`{"type":"LineString","coordinates":[[0,0],[1,1]]}`); err == nil {
		t.Fatal("expected error for non-polygon type")
	}
}

func TestParseSelectRequest_Defaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/datasets/default/select?method=b&state=Jalisco", nil)
	req, warn, err := ParseSelectRequest(r, true)
	if err != nil || warn != "" {
		t.Fatalf("err=%v warn=%q", err, warn)
	}
	if req.Method != model.MethodWeighted || req.State != "Jalisco" {
		t.Fatalf("unexpected %+v", req)
	}
	if req.Weights != engine.DefaultWeights() || req.TopN != engine.DefaultTopN || req.Limit != engine.DefaultLimit {
		t.Fatalf("defaults not applied: %+v", req)
	}
	if req.Thresholds.MinAE == nil || *req.Thresholds.MinAE != 2 {
		t.Fatalf("threshold default should be 2: %+v", req.Thresholds)
	}
}

func TestParseSelectRequest_Overrides(t *testing.T) {
	r := httptest.NewRequest("GET",
		"/x?method=A&min_ae=4&min_pob=off&w_afl=0.9&top_n=5&limit=3"+
			"&bbox=-103.4,20.6,-103.3,20.7&polygon=%7B%22type%22%3A%22Polygon%22%7D", nil)
	req, warn, err := ParseSelectRequest(r, true)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if warn == "" || req.BBox != nil || req.Polygon == nil {
		t.Fatalf("polygon should win over bbox with a warning: warn=%q req=%+v", warn, req)
	}
	if *req.Thresholds.MinAE != 4 || req.Thresholds.MinPOB != nil || *req.Thresholds.MinAFL != 2 {
		t.Fatalf("thresholds=%+v", req.Thresholds)
	}
	if req.Weights.AFL != 0.9 || req.TopN != 5 || req.Limit != 3 {
		t.Fatalf("unexpected %+v", req)
	}
}

func TestParseSelectRequest_Errors(t *testing.T) {
	for _, u := range []string{
		"/x",
		"/x?method=Z",
		"/x?method=A&min_ae=alto",
		"/x?method=B&w_ae=heavy",
		"/x?method=C&top_n=ten",
		"/x?method=A&bbox=1,2",
		"/x?method=A&polygon=%7B%7D",
	} {
		if _, _, err := ParseSelectRequest(httptest.NewRequest("GET", u, nil), true); err == nil {
			t.Fatalf("expected error for %s", u)
		}
	}
	if _, _, err := ParseSelectRequest(httptest.NewRequest("GET", "/x", nil), false); err != nil {
		t.Fatalf("method optional for select/all: %v", err)
	}
}
