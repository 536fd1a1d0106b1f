// Package history keeps a SQLite log of executed selections.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	user_name    TEXT NOT NULL,
	dataset      TEXT NOT NULL,
	method       TEXT NOT NULL,
	state        TEXT NOT NULL DEFAULT '',
	municipality TEXT NOT NULL DEFAULT '',
	params       TEXT NOT NULL DEFAULT '{}',
	total        INTEGER NOT NULL,
	cached       INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`

type Run struct {
	ID           int64             `json:"id"`
	User         string            `json:"user"`
	Dataset      string            `json:"dataset"`
	Method       string            `json:"method"`
	State        string            `json:"state,omitempty"`
	Municipality string            `json:"municipality,omitempty"`
	Params       map[string]string `json:"params,omitempty"`
	Total        int               `json:"total"`
	Cached       bool              `json:"cached"`
	CreatedAt    time.Time         `json:"created_at"`
}

type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Record(ctx context.Context, r Run) (int64, error) {
	params := "{}"
	if len(r.Params) > 0 {
		b, err := json.Marshal(r.Params)
		if err != nil {
			return 0, fmt.Errorf("encode params: %w", err)
		}
		params = string(b)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	cached := 0
	if r.Cached {
		cached = 1
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO runs
		(user_name, dataset, method, state, municipality, params, total, cached, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.User, r.Dataset, r.Method, r.State, r.Municipality, params, r.Total, cached,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_name, dataset, method, state, municipality,
		params, total, cached, created_at FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		var (
			r       Run
			params  string
			cached  int
			created string
		)
		if err := rows.Scan(&r.ID, &r.User, &r.Dataset, &r.Method, &r.State, &r.Municipality,
			&params, &r.Total, &cached, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if params != "" && params != "{}" {
			if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
				return nil, fmt.Errorf("decode params of run %d: %w", r.ID, err)
			}
		}
		r.Cached = cached == 1
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			r.CreatedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
