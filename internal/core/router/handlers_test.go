package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mohammed-shakir/hexselect/internal/auth"
	"github.com/mohammed-shakir/hexselect/internal/dataset"
	"github.com/mohammed-shakir/hexselect/internal/engine"
	"github.com/mohammed-shakir/hexselect/internal/history"
	h3mapper "github.com/mohammed-shakir/hexselect/internal/mapper/h3"
)

const testCSV = `noment,nomgeo,h3_09,catMunActEcon,catMunPob,catMunAfluLog,rankMunActEco,rankMunPob,rankMunAfluLog
Jalisco,Guadalajara,8949ab59a3bffff,A+,A+,A,1,2,3
Jalisco,Zapopan,8948a2d8c4bffff,M,M,M,2,1,50
Jalisco,Guadalajara,8928308280fffff,B,B,B,3,3,1
Sonora,Hermosillo,8928308283bffff,A,,A,4,4,2
`

type fakeRuns struct{ runs []history.Run }

func (f fakeRuns) Recent(_ context.Context, limit int) ([]history.Run, error) {
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

type testServer struct {
	srv  *httptest.Server
	auth *auth.Authenticator
}

func newTestServer(t *testing.T, authEnabled bool, runs Runs) *testServer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(testCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg, err := dataset.NewRegistry(dataset.Config{DefaultPath: path, MaxUploadBytes: 4096}, logger)
	if err != nil {
		t.Fatal(err)
	}
	geo := h3mapper.New()
	a := auth.New(auth.Config{Enabled: authEnabled, Users: map[string]string{"ana": "secret"}}, logger)
	h := New(Deps{
		Registry: reg,
		Engine:   engine.New(reg, geo, engine.Options{Logger: logger}),
		Geo:      geo,
		Auth:     a,
		History:  runs,
		Logger:   logger,

		MaxUploadBytes: 4096,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, auth: a}
}

func (ts *testServer) get(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, ts.srv.URL+path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestSession_LoginFlow(t *testing.T) {
	ts := newTestServer(t, true, nil)

	resp := ts.get(t, "/v1/datasets", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", resp.StatusCode)
	}

	for body, want := range map[string]int{
		`{"user":"","password":""}`:         http.StatusBadRequest,
		`{"user":"ana","password":"wrong"}`: http.StatusUnauthorized,
		`not json`:                          http.StatusBadRequest,
	} {
		r, err := http.Post(ts.srv.URL+"/v1/session", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		_ = r.Body.Close()
		if r.StatusCode != want {
			t.Fatalf("body %s: got %d want %d", body, r.StatusCode, want)
		}
	}

	r, err := http.Post(ts.srv.URL+"/v1/session", "application/json",
		strings.NewReader(`{"user":"ana","password":"secret"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = r.Body.Close() }()
	if r.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", r.StatusCode)
	}
	var s auth.Session
	decode(t, r, &s)
	if s.Token == "" || s.User != "ana" {
		t.Fatalf("unexpected session %+v", s)
	}
	var sawCookie bool
	for _, c := range r.Cookies() {
		if c.Name == auth.CookieName && c.Value == s.Token {
			sawCookie = true
		}
	}
	if !sawCookie {
		t.Fatal("session cookie not set")
	}

	var me map[string]string
	decode(t, ts.get(t, "/v1/session", s.Token), &me)
	if me["user"] != "ana" {
		t.Fatalf("session user = %q", me["user"])
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.srv.URL+"/v1/session", nil)
	req.Header.Set("Authorization", "Bearer "+s.Token)
	del, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = del.Body.Close()
	if del.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status %d", del.StatusCode)
	}
	if got := ts.get(t, "/v1/session", s.Token).StatusCode; got != http.StatusUnauthorized {
		t.Fatalf("token still valid after logout: %d", got)
	}
}

func TestStatesAndMunicipalities(t *testing.T) {
	ts := newTestServer(t, false, nil)

	var states map[string][]string
	decode(t, ts.get(t, "/v1/datasets/default/states", ""), &states)
	if strings.Join(states["states"], ",") != "Jalisco,Sonora" {
		t.Fatalf("states = %v", states["states"])
	}

	var munis struct {
		Municipalities []string `json:"municipalities"`
	}
	decode(t, ts.get(t, "/v1/datasets/default/municipalities?state=Jalisco", ""), &munis)
	if strings.Join(munis.Municipalities, ",") != "Guadalajara,Zapopan" {
		t.Fatalf("municipalities = %v", munis.Municipalities)
	}

	if got := ts.get(t, "/v1/datasets/nope/states", "").StatusCode; got != http.StatusNotFound {
		t.Fatalf("unknown dataset: got %d want 404", got)
	}
}

func TestSelect_JSON(t *testing.T) {
	ts := newTestServer(t, false, nil)
	resp := ts.get(t, "/v1/datasets/default/select?method=A&state=Jalisco", "")
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status %d: %s", resp.StatusCode, b)
	}
	var res struct {
		Method string `json:"method"`
		Total  int    `json:"total"`
		Rows   []struct {
			Cell string   `json:"h3_09"`
			Lat  *float64 `json:"latitud"`
		} `json:"rows"`
	}
	decode(t, resp, &res)
	if res.Method != "A" || res.Total != 2 || len(res.Rows) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	for _, r := range res.Rows {
		if r.Lat == nil {
			t.Fatalf("row %s missing latitud", r.Cell)
		}
	}
}

func TestSelect_CSVDownload(t *testing.T) {
	ts := newTestServer(t, false, nil)
	resp := ts.get(t, "/v1/datasets/default/select?method=B&format=csv", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	cd := resp.Header.Get("Content-Disposition")
	if !strings.Contains(cd, "top10_metodo_B_") || !strings.HasSuffix(cd, `_hexagonos.csv"`) {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(body), "noment,nomgeo,h3_09") || !strings.Contains(string(body), "score_norm") {
		t.Fatalf("unexpected csv:\n%s", body)
	}
}

func TestSelect_GeoJSONWarnsOnEmptyFilter(t *testing.T) {
	ts := newTestServer(t, false, nil)
	resp := ts.get(t, "/v1/datasets/default/select?method=A&state=Yucatan&format=geojson", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if resp.Header.Get(warningsHeader) == "" {
		t.Fatal("expected warnings header")
	}
	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	decode(t, resp, &fc)
	if fc.Type != "FeatureCollection" || len(fc.Features) != 0 {
		t.Fatalf("unexpected collection %+v", fc)
	}
}

func TestSelect_BadParams(t *testing.T) {
	ts := newTestServer(t, false, nil)
	for _, q := range []string{
		"method=Z",
		"method=A&min_ae=9",
		"method=A&format=xml",
		"method=B&w_ae=2",
		"method=C&top_n=0",
		"method=A&limit=0",
	} {
		if got := ts.get(t, "/v1/datasets/default/select?"+q, "").StatusCode; got != http.StatusBadRequest {
			t.Fatalf("%s: got %d want 400", q, got)
		}
	}
}

func TestSelectAll(t *testing.T) {
	ts := newTestServer(t, false, nil)
	var out struct {
		Methods []methodOutcome `json:"methods"`
	}
	decode(t, ts.get(t, "/v1/datasets/default/select/all?top_n=2", ""), &out)
	if len(out.Methods) != 3 {
		t.Fatalf("expected 3 methods, got %d", len(out.Methods))
	}
	for _, m := range out.Methods {
		if m.Error != "" || m.Result == nil {
			t.Fatalf("method %s failed: %s", m.Method, m.Error)
		}
	}

	resp := ts.get(t, "/v1/datasets/default/select/all?top_n=-5", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bad top_n should only fail C, got status %d", resp.StatusCode)
	}
	out.Methods = nil
	decode(t, resp, &out)
	for _, m := range out.Methods {
		failed := m.Error != ""
		if failed != (m.Method == "C") || (m.Result == nil) != failed {
			t.Fatalf("method %s: error=%q result=%v", m.Method, m.Error, m.Result != nil)
		}
	}
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t, false, nil)

	r, err := http.Post(ts.srv.URL+"/v1/datasets", "text/csv", strings.NewReader(testCSV))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = r.Body.Close() }()
	if r.StatusCode != http.StatusCreated {
		t.Fatalf("raw upload status %d", r.StatusCode)
	}
	var info datasetInfo
	decode(t, r, &info)
	if info.Rows != 4 || !strings.HasPrefix(info.ID, "u-") {
		t.Fatalf("unexpected info %+v", info)
	}
	if got := ts.get(t, "/v1/datasets/"+info.ID+"/select?method=C", "").StatusCode; got != http.StatusOK {
		t.Fatalf("select on upload: %d", got)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "bad.csv")
	_, _ = fw.Write([]byte("a,b,c\n1,2,3\n"))
	_ = mw.Close()
	bad, err := http.Post(ts.srv.URL+"/v1/datasets", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(bad.Body)
	_ = bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest || !strings.Contains(string(body), "missing required columns") {
		t.Fatalf("missing columns: %d %s", bad.StatusCode, body)
	}

	big, err := http.Post(ts.srv.URL+"/v1/datasets", "text/csv", strings.NewReader(strings.Repeat("x", 5000)))
	if err != nil {
		t.Fatal(err)
	}
	_ = big.Body.Close()
	if big.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized upload: got %d want 413", big.StatusCode)
	}
}

func TestUpload_OversizedMultipart(t *testing.T) {
	ts := newTestServer(t, false, nil)
	for _, size := range []int{5000, 80 << 10} {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, _ := mw.CreateFormFile("file", "big.csv")
		_, _ = fw.Write(bytes.Repeat([]byte("x"), size))
		_ = mw.Close()
		r, err := http.Post(ts.srv.URL+"/v1/datasets", mw.FormDataContentType(), &buf)
		if err != nil {
			t.Fatal(err)
		}
		_ = r.Body.Close()
		if r.StatusCode != http.StatusRequestEntityTooLarge {
			t.Fatalf("%d byte multipart upload: got %d want 413", size, r.StatusCode)
		}
	}
}

func TestCell(t *testing.T) {
	ts := newTestServer(t, false, nil)
	var info cellInfo
	resp := ts.get(t, "/v1/cells/8928308280fffff", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	decode(t, resp, &info)
	if info.Resolution != 9 || info.Parent == "" {
		t.Fatalf("unexpected cell info %+v", info)
	}
	if len(info.Children) != 7 {
		t.Fatalf("want 7 children at res 10, got %v", info.Children)
	}
	if n := len(info.Boundary); n < 7 || info.Boundary[0] != info.Boundary[n-1] {
		t.Fatalf("boundary not closed: %v", info.Boundary)
	}
	if got := ts.get(t, "/v1/cells/nothex", "").StatusCode; got != http.StatusBadRequest {
		t.Fatalf("invalid cell: got %d want 400", got)
	}
}

func TestRuns(t *testing.T) {
	disabled := newTestServer(t, false, nil)
	if got := disabled.get(t, "/v1/runs", "").StatusCode; got != http.StatusNotFound {
		t.Fatalf("history disabled: got %d want 404", got)
	}

	ts := newTestServer(t, false, fakeRuns{runs: []history.Run{{ID: 2, Method: "B"}, {ID: 1, Method: "A"}}})
	var out struct {
		Runs []history.Run `json:"runs"`
	}
	decode(t, ts.get(t, "/v1/runs?limit=1", ""), &out)
	if len(out.Runs) != 1 || out.Runs[0].ID != 2 {
		t.Fatalf("runs = %+v", out.Runs)
	}
	if got := ts.get(t, "/v1/runs?limit=-3", "").StatusCode; got != http.StatusBadRequest {
		t.Fatalf("bad limit: got %d", got)
	}
}
