// Package engine runs a selection request end to end: dataset lookup,
// prefilter, method, enrichment, result cache and history.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mohammed-shakir/hexselect/internal/cache/keys"
	"github.com/mohammed-shakir/hexselect/internal/core/model"
	"github.com/mohammed-shakir/hexselect/internal/core/observability"
	"github.com/mohammed-shakir/hexselect/internal/history"
	mylog "github.com/mohammed-shakir/hexselect/internal/logger"
	"github.com/mohammed-shakir/hexselect/internal/selection"
	"github.com/mohammed-shakir/hexselect/pkg/adaptive"
)

const WarnEmptyFilter = "no hexagons for the selected filter"

type Datasets interface {
	Get(ctx context.Context, id string) (*model.Dataset, error)
}

type Geo interface {
	CellsForBBox(bb model.BBox, res int) (model.Cells, error)
	CellsForPolygon(poly model.Polygon, res int) (model.Cells, error)
	CellToLatLng(cell string) (lat, lng float64, err error)
	Resolution(cell string) (int, error)
}

type ResultCache interface {
	Get(ctx context.Context, key string) (*model.Result, bool)
	Put(ctx context.Context, key string, hotKeys []string, res *model.Result) adaptive.Decision
}

type Hotness interface {
	Inc(key string)
}

type History interface {
	Record(ctx context.Context, r history.Run) (int64, error)
}

// Events receives every executed run; it must not block.
type Events interface {
	Publish(r history.Run)
}

type Options struct {
	Cache   ResultCache
	Hotness Hotness
	History History
	Events  Events
	Logger  *slog.Logger
}

type Engine struct {
	datasets Datasets
	geo      Geo
	cache    ResultCache
	hot      Hotness
	history  History
	events   Events
	logger   *slog.Logger
}

func New(datasets Datasets, geo Geo, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		datasets: datasets,
		geo:      geo,
		cache:    opts.Cache,
		hot:      opts.Hotness,
		history:  opts.History,
		events:   opts.Events,
		logger:   opts.Logger.With("component", "engine"),
	}
}

// Run executes one method.
func (e *Engine) Run(ctx context.Context, req Request) (*model.Result, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}
	if _, err := model.ParseMethod(string(req.Method)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	ds, err := e.datasets.Get(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, ds, req)
}

// Outcome is one method's share of RunAll.
type Outcome struct {
	Method model.Method
	Result *model.Result
	Err    error
}

// RunAll executes A, B and C with the same filter. Errors that concern a
// single method, such as a bad top_n for C, are reported in its Outcome;
// shared request errors and dataset errors fail the whole call.
func (e *Engine) RunAll(ctx context.Context, req Request) ([]Outcome, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}
	ds, err := e.datasets.Get(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}
	out := make([]Outcome, 0, len(model.Methods))
	for _, m := range model.Methods {
		r := req
		r.Method = m
		res, err := e.run(ctx, ds, r)
		out = append(out, Outcome{Method: m, Result: res, Err: err})
	}
	return out, nil
}

func (e *Engine) run(ctx context.Context, ds *model.Dataset, req Request) (*model.Result, error) {
	ctx = mylog.WithDataset(ctx, ds.ID)
	ctx = mylog.WithMethod(ctx, string(req.Method))
	if err := req.checkTopN(); err != nil {
		return nil, err
	}
	start := time.Now()

	hotKey := keys.HotKey(ds.ID, string(req.Method))
	if e.hot != nil {
		e.hot.Inc(hotKey)
	}

	var cacheKey string
	if e.cache != nil {
		cacheKey = keys.ResultKey(ds.Hash, string(req.Method), req.Params())
		if res, ok := e.cache.Get(ctx, cacheKey); ok {
			// keyed by content hash; uploads of the same bytes share entries
			res.DatasetID = ds.ID
			e.logger.DebugContext(ctx, "result cache hit", "key", cacheKey)
			e.record(ctx, ds, req, res)
			return res, nil
		}
	}

	res, err := e.execute(ctx, ds, req)
	observability.ObserveSelection(string(req.Method), err, totalOf(res), time.Since(start).Seconds())
	if err != nil {
		e.logger.WarnContext(ctx, "selection failed", "err", err)
		return nil, err
	}

	if e.cache != nil {
		e.cache.Put(ctx, cacheKey, []string{hotKey}, res)
	}
	e.record(ctx, ds, req, res)
	e.logger.InfoContext(ctx, "selection done",
		"filtered", res.Filtered, "total", res.Total, "rows", len(res.Rows),
		"took_ms", time.Since(start).Milliseconds())
	return res, nil
}

func (e *Engine) execute(ctx context.Context, ds *model.Dataset, req Request) (*model.Result, error) {
	res := &model.Result{
		Method:    req.Method,
		DatasetID: ds.ID,
		Columns:   ds.Columns,
		Rows:      []model.ResultRow{},
	}

	filter := selection.GeoFilter{State: req.State, Municipality: req.Municipality}
	rows := selection.Prefilter(ds.Rows, filter)
	if req.BBox != nil || req.Polygon != nil {
		cells, err := e.spatialCells(ctx, rows, req)
		if err != nil {
			return nil, err
		}
		rows = selection.Prefilter(rows, selection.GeoFilter{Cells: cells})
	}
	res.Filtered = len(rows)
	if len(rows) == 0 {
		res.Warnings = append(res.Warnings, WarnEmptyFilter)
		return res, nil
	}

	switch req.Method {
	case model.MethodHierarchical:
		kept := selection.Hierarchical(rows, req.Thresholds)
		res.Total = len(kept)
		for i, h := range head(kept, req.Limit) {
			res.Rows = append(res.Rows, baseRow(i, h))
		}
	case model.MethodWeighted:
		scored := selection.Weighted(rows, req.Weights)
		res.Total = len(scored)
		for i, s := range head(scored, req.Limit) {
			r := baseRow(i, s.Hexagon)
			r.Score = floatPtr(s.Score)
			r.ScoreNorm = floatPtr(s.ScoreNorm)
			res.Rows = append(res.Rows, r)
		}
	case model.MethodIntersection:
		co, err := selection.Intersection(rows, req.TopN)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		res.Total = len(co)
		for i, c := range head(co, req.Limit) {
			r := model.ResultRow{
				Index:        i + 1,
				Cell:         c.Cell,
				State:        c.State,
				Municipality: c.Municipality,
				Coincidences: c.Count,
				InAE:         boolPtr(c.InAE),
				InPOB:        boolPtr(c.InPOB),
				InAFL:        boolPtr(c.InAFL),
			}
			res.Rows = append(res.Rows, r)
		}
	default:
		return nil, fmt.Errorf("%w: unknown method %q", ErrInvalidRequest, req.Method)
	}

	res.Warnings = append(res.Warnings, e.enrich(res.Rows)...)
	return res, nil
}

// spatialCells returns the cells covering the request's bbox or polygon
// at the dataset's own resolution.
func (e *Engine) spatialCells(ctx context.Context, rows []model.Hexagon, req Request) (map[string]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := datasetResolution(e.geo, rows)

	var cells model.Cells
	var err error
	if req.BBox != nil {
		if cells, err = e.geo.CellsForBBox(*req.BBox, res); err != nil {
			return nil, fmt.Errorf("%w: bbox: %v", ErrInvalidRequest, err)
		}
	} else {
		if cells, err = e.geo.CellsForPolygon(*req.Polygon, res); err != nil {
			return nil, fmt.Errorf("%w: polygon: %v", ErrInvalidRequest, err)
		}
	}
	out := make(map[string]struct{}, len(cells))
	for _, c := range cells {
		out[c] = struct{}{}
	}
	return out, nil
}

func datasetResolution(g Geo, rows []model.Hexagon) int {
	for _, h := range rows {
		if r, err := g.Resolution(h.Cell); err == nil {
			return r
		}
	}
	return 9
}

func (e *Engine) enrich(rows []model.ResultRow) []string {
	var warnings []string
	for i := range rows {
		lat, lng, err := e.geo.CellToLatLng(rows[i].Cell)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("could not get coordinates for hexagon %s: %v", rows[i].Cell, err))
			continue
		}
		rows[i].Lat = &lat
		rows[i].Lng = &lng
	}
	return warnings
}

func (e *Engine) record(ctx context.Context, ds *model.Dataset, req Request, res *model.Result) {
	if e.history == nil && e.events == nil {
		return
	}
	run := history.Run{
		User:         req.User,
		Dataset:      ds.ID,
		Method:       string(req.Method),
		State:        req.State,
		Municipality: req.Municipality,
		Params:       req.Params(),
		Total:        res.Total,
		Cached:       res.Cached,
		CreatedAt:    time.Now().UTC(),
	}
	if e.events != nil {
		e.events.Publish(run)
	}
	if e.history == nil {
		return
	}
	if _, err := e.history.Record(ctx, run); err != nil && !errors.Is(err, context.Canceled) {
		e.logger.WarnContext(ctx, "history record failed", "err", err)
	}
}

func baseRow(i int, h model.Hexagon) model.ResultRow {
	return model.ResultRow{
		Index:        i + 1,
		Cell:         h.Cell,
		State:        h.State,
		Municipality: h.Municipality,
		CatAE:        h.CatAE.Ptr(),
		CatPOB:       h.CatPOB.Ptr(),
		CatAFL:       h.CatAFL.Ptr(),
		Values:       h.Values,
	}
}

func head[T any](s []T, n int) []T {
	if n < len(s) {
		return s[:n]
	}
	return s
}

func totalOf(r *model.Result) int {
	if r == nil {
		return 0
	}
	return r.Total
}

func floatPtr(f float64) *float64 {
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

func boolPtr(b bool) *bool { return &b }
