package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/hexselect/internal/auth"
	"github.com/mohammed-shakir/hexselect/internal/core/model"
	"github.com/mohammed-shakir/hexselect/internal/dataset"
	"github.com/mohammed-shakir/hexselect/internal/engine"
	"github.com/mohammed-shakir/hexselect/internal/history"
	mylog "github.com/mohammed-shakir/hexselect/internal/logger"
	"github.com/mohammed-shakir/hexselect/internal/render"
)

const (
	warningsHeader = "X-Hexselect-Warnings"

	// slack for multipart boundaries and part headers
	multipartOverhead = 64 << 10
)

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		User     string `json:"user"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	s, err := a.Auth.Login(body.User, body.Password)
	if err != nil {
		writeError(w, r, a.Logger, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, s)
}

func (a *api) session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"user": auth.UserFromContext(r.Context())})
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	a.Auth.Logout(auth.TokenFromRequest(r))
	http.SetCookie(w, &http.Cookie{Name: auth.CookieName, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

type datasetInfo struct {
	ID      string   `json:"id"`
	Rows    int      `json:"rows"`
	Hash    string   `json:"hash"`
	Columns []string `json:"columns"`
}

func (a *api) listDatasets(w http.ResponseWriter, _ *http.Request) {
	ids := a.Registry.IDs()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"datasets": ids})
}

func (a *api) uploadDataset(w http.ResponseWriter, r *http.Request) {
	if a.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes+multipartOverhead)
	}
	body := r.Body
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		f, _, err := r.FormFile("file")
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				writeError(w, r, a.Logger, err)
				return
			}
			http.Error(w, "multipart upload needs a file field", http.StatusBadRequest)
			return
		}
		defer func() { _ = f.Close() }()
		body = f
	}
	ds, err := a.Registry.Upload(r.Context(), body)
	if err != nil {
		writeError(w, r, a.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, datasetInfo{
		ID: ds.ID, Rows: len(ds.Rows), Hash: ds.HashHex(), Columns: ds.Columns,
	})
}

func (a *api) states(w http.ResponseWriter, r *http.Request) {
	ds, err := a.Registry.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, a.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"states": dataset.States(ds)})
}

func (a *api) municipalities(w http.ResponseWriter, r *http.Request) {
	ds, err := a.Registry.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, a.Logger, err)
		return
	}
	state := strings.TrimSpace(r.URL.Query().Get("state"))
	writeJSON(w, http.StatusOK, map[string]any{
		"state":          state,
		"municipalities": dataset.Municipalities(ds, state),
	})
}

// parse reads the shared selection parameters and the response format.
func (a *api) parse(w http.ResponseWriter, r *http.Request, requireMethod bool) (engine.Request, render.Format, bool) {
	req, warn, err := ParseSelectRequest(r, requireMethod)
	if warn != "" {
		a.Logger.WarnContext(r.Context(), warn)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return req, 0, false
	}
	formatParam := strings.TrimSpace(r.URL.Query().Get("format"))
	if formatParam != "" {
		if _, ok := render.ParseFormat(formatParam); !ok {
			http.Error(w, fmt.Sprintf("unsupported format %q (want json|geojson|csv)", formatParam), http.StatusBadRequest)
			return req, 0, false
		}
	}
	req.DatasetID = chi.URLParam(r, "id")
	req.User = auth.UserFromContext(r.Context())
	return req, render.Negotiate(formatParam, r.Header.Get("Accept"), render.FormatJSON), true
}

func (a *api) selectOne(w http.ResponseWriter, r *http.Request) {
	req, format, ok := a.parse(w, r, true)
	if !ok {
		return
	}
	ctx := mylog.WithDataset(r.Context(), req.DatasetID)
	ctx = mylog.WithMethod(ctx, string(req.Method))

	res, err := a.Engine.Run(ctx, req)
	if err != nil {
		writeError(w, r, a.Logger, err)
		return
	}

	switch format {
	case render.FormatCSV:
		setWarnings(w, res.Warnings)
		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, render.FileName(res)))
		if err := render.WriteCSV(w, res); err != nil {
			a.Logger.ErrorContext(ctx, "write csv", "err", err)
		}
	case render.FormatGeoJSON:
		fc, warnings := render.MapLayer(a.Geo, res.Rows, layerTitle(res))
		setWarnings(w, append(append([]string{}, res.Warnings...), warnings...))
		w.Header().Set("Content-Type", format.ContentType())
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(fc)
	default:
		setWarnings(w, res.Warnings)
		writeJSON(w, http.StatusOK, res)
	}
}

type methodOutcome struct {
	Method model.Method  `json:"method"`
	Result *model.Result `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func (a *api) selectAll(w http.ResponseWriter, r *http.Request) {
	req, _, ok := a.parse(w, r, false)
	if !ok {
		return
	}
	ctx := mylog.WithDataset(r.Context(), req.DatasetID)
	outs, err := a.Engine.RunAll(ctx, req)
	if err != nil {
		writeError(w, r, a.Logger, err)
		return
	}
	resp := make([]methodOutcome, 0, len(outs))
	for _, o := range outs {
		mo := methodOutcome{Method: o.Method, Result: o.Result}
		if o.Err != nil {
			mo.Error = o.Err.Error()
		}
		resp = append(resp, mo)
	}
	writeJSON(w, http.StatusOK, map[string]any{"dataset": req.DatasetID, "methods": resp})
}

type cellInfo struct {
	Cell       string       `json:"cell"`
	Resolution int          `json:"resolution"`
	Lat        float64      `json:"lat"`
	Lng        float64      `json:"lng"`
	Boundary   [][2]float64 `json:"boundary"`
	Parent     string       `json:"parent,omitempty"`
	Children   []string     `json:"children,omitempty"`
}

const maxResolution = 15

func (a *api) cell(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cell")
	res, err := a.Geo.Resolution(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	lat, lng, err := a.Geo.CellToLatLng(id)
	if err != nil {
		writeError(w, r, a.Logger, err)
		return
	}
	boundary, err := a.Geo.CellToPolygon(id)
	if err != nil {
		writeError(w, r, a.Logger, err)
		return
	}
	info := cellInfo{Cell: id, Resolution: res, Lat: lat, Lng: lng, Boundary: boundary}
	if res > 0 {
		if info.Parent, err = a.Geo.ToParent(id, res-1); err != nil {
			writeError(w, r, a.Logger, err)
			return
		}
	}
	if res < maxResolution {
		if info.Children, err = a.Geo.ToChildren(id, res+1); err != nil {
			writeError(w, r, a.Logger, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *api) runs(w http.ResponseWriter, r *http.Request) {
	if a.History == nil {
		http.Error(w, "run history is disabled", http.StatusNotFound)
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := a.History.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, a.Logger, err)
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func setWarnings(w http.ResponseWriter, warnings []string) {
	for _, s := range warnings {
		w.Header().Add(warningsHeader, s)
	}
}

func layerTitle(res *model.Result) string {
	return fmt.Sprintf("Top %d hexagons, method %s", len(res.Rows), res.Method)
}
