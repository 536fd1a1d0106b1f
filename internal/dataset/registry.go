package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/hexselect/internal/core/model"
	"github.com/mohammed-shakir/hexselect/internal/core/observability"
)

// DefaultID names the dataset read from the configured path.
const DefaultID = "default"

var (
	ErrNotFound = errors.New("dataset not found")
	ErrTooLarge = errors.New("dataset exceeds upload limit")
)

type Config struct {
	DefaultPath    string
	Size           int
	MaxUploadBytes int64
}

// Registry caches parsed datasets. The default dataset is revalidated
// against the file's mtime and size on every Get; uploads are keyed by
// content hash so the same bytes always map to the same id.
type Registry struct {
	cfg    Config
	logger *slog.Logger
	cache  *lru.Cache[string, *model.Dataset]
	group  singleflight.Group
}

func NewRegistry(cfg Config, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Size <= 0 {
		cfg.Size = 16
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 64 << 20
	}
	c, err := lru.NewWithEvict(cfg.Size, func(id string, _ *model.Dataset) {
		observability.DropDataset(id)
	})
	if err != nil {
		return nil, fmt.Errorf("dataset lru: %w", err)
	}
	return &Registry{cfg: cfg, logger: logger, cache: c}, nil
}

func (r *Registry) Get(ctx context.Context, id string) (*model.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dataset get: %w", err)
	}
	id = strings.TrimSpace(id)
	if id == "" || id == DefaultID {
		return r.loadPath(DefaultID, r.cfg.DefaultPath)
	}
	if ds, ok := r.cache.Get(id); ok {
		observability.IncDatasetLoad("upload", "hit")
		return ds, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
}

func (r *Registry) loadPath(id, path string) (*model.Dataset, error) {
	fi, err := os.Stat(path)
	if err != nil {
		observability.IncDatasetLoad("file", "error")
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat dataset %s: %w", path, err)
	}

	if ds, ok := r.cache.Get(id); ok && ds.ModTime.Equal(fi.ModTime()) && ds.Size == fi.Size() {
		observability.IncDatasetLoad("file", "hit")
		return ds, nil
	}

	v, err, _ := r.group.Do(id, func() (any, error) {
		prev, had := r.cache.Peek(id)
		if had && prev.ModTime.Equal(fi.ModTime()) && prev.Size == fi.Size() {
			return prev, nil
		}
		start := time.Now()

		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open dataset %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()

		ds, err := Parse(f, id, path)
		observability.ObserveDatasetParse("file", time.Since(start).Seconds())
		if err != nil {
			return nil, fmt.Errorf("parse dataset %s: %w", path, err)
		}
		ds.ModTime = fi.ModTime()
		ds.Size = fi.Size()
		r.cache.Add(id, ds)
		observability.SetDatasetRows(id, len(ds.Rows))

		outcome := "load"
		if had {
			outcome = "reload"
		}
		observability.IncDatasetLoad("file", outcome)
		r.logger.Info("dataset loaded",
			"dataset", id, "path", path, "rows", len(ds.Rows),
			"hash", ds.HashHex(), "outcome", outcome,
			"took_ms", time.Since(start).Milliseconds())
		return ds, nil
	})
	if err != nil {
		observability.IncDatasetLoad("file", "error")
		return nil, err
	}
	return v.(*model.Dataset), nil
}

// Upload parses and registers an uploaded CSV.
func (r *Registry) Upload(ctx context.Context, body io.Reader) (*model.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dataset upload: %w", err)
	}
	raw, err := io.ReadAll(io.LimitReader(body, r.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(raw)) > r.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, r.cfg.MaxUploadBytes)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmpty
	}

	id := fmt.Sprintf("u-%016x", xxhash.Sum64(raw))
	if ds, ok := r.cache.Get(id); ok {
		observability.IncDatasetLoad("upload", "hit")
		return ds, nil
	}

	v, err, _ := r.group.Do(id, func() (any, error) {
		start := time.Now()
		ds, err := parseBytes(raw, id, "upload")
		observability.ObserveDatasetParse("upload", time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		r.cache.Add(id, ds)
		observability.SetDatasetRows(id, len(ds.Rows))
		observability.IncDatasetLoad("upload", "load")
		r.logger.Info("dataset uploaded", "dataset", id, "rows", len(ds.Rows), "bytes", len(raw))
		return ds, nil
	})
	if err != nil {
		observability.IncDatasetLoad("upload", "error")
		return nil, err
	}
	return v.(*model.Dataset), nil
}

// Evict drops a dataset; the default dataset is re-read on next Get.
func (r *Registry) Evict(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		id = DefaultID
	}
	ok := r.cache.Remove(id)
	if ok {
		r.logger.Info("dataset evicted", "dataset", id)
	}
	return ok
}

func (r *Registry) IDs() []string {
	return r.cache.Keys()
}
