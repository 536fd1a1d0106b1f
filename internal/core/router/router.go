// Package router serves the /v1 HTTP API: sessions, datasets, selections,
// cell lookups and run history.
package router

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/hexselect/internal/auth"
	"github.com/mohammed-shakir/hexselect/internal/core/model"
	"github.com/mohammed-shakir/hexselect/internal/engine"
	"github.com/mohammed-shakir/hexselect/internal/history"
)

type Registry interface {
	Get(ctx context.Context, id string) (*model.Dataset, error)
	Upload(ctx context.Context, body io.Reader) (*model.Dataset, error)
	IDs() []string
}

type Selector interface {
	Run(ctx context.Context, req engine.Request) (*model.Result, error)
	RunAll(ctx context.Context, req engine.Request) ([]engine.Outcome, error)
}

type Geo interface {
	CellToLatLng(cell string) (lat, lng float64, err error)
	CellToPolygon(cell string) ([][2]float64, error)
	Resolution(cell string) (int, error)
	ToParent(cell string, parentRes int) (string, error)
	ToChildren(cell string, childRes int) (model.Cells, error)
}

type Runs interface {
	Recent(ctx context.Context, limit int) ([]history.Run, error)
}

// Deps are the collaborators of the API. History may be nil.
type Deps struct {
	Registry Registry
	Engine   Selector
	Geo      Geo
	Auth     *auth.Authenticator
	History  Runs
	Logger   *slog.Logger

	// MaxUploadBytes caps the request body of POST /v1/datasets; 0 leaves
	// the cap to the registry alone.
	MaxUploadBytes int64
}

type api struct {
	Deps
}

// New mounts every /v1 route on a fresh chi router.
func New(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	a := &api{Deps: d}

	r := chi.NewRouter()
	r.Post("/v1/session", a.login)
	r.Group(func(r chi.Router) {
		r.Use(d.Auth.Require())

		r.Get("/v1/session", a.session)
		r.Delete("/v1/session", a.logout)

		r.Get("/v1/datasets", a.listDatasets)
		r.Post("/v1/datasets", a.uploadDataset)
		r.Route("/v1/datasets/{id}", func(r chi.Router) {
			r.Get("/states", a.states)
			r.Get("/municipalities", a.municipalities)
			r.Get("/select", a.selectOne)
			r.Get("/select/all", a.selectAll)
		})

		r.Get("/v1/cells/{cell}", a.cell)
		r.Get("/v1/runs", a.runs)
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
