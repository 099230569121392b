// Package sqlite is the embedded ledger backend for single-node setups.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"lectern/internal/models"
	"lectern/internal/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS renders (
  id TEXT PRIMARY KEY,
  composition_id TEXT NOT NULL,
  input_props TEXT NOT NULL DEFAULT '{}',
  serve_url TEXT NOT NULL DEFAULT '',
  region TEXT NOT NULL DEFAULT '',
  function_name TEXT NOT NULL DEFAULT '',
  bucket TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS renders_created_at_idx ON renders (created_at DESC);
CREATE TABLE IF NOT EXISTS previews (
  object_id TEXT PRIMARY KEY,
  url TEXT NOT NULL,
  voice_id TEXT NOT NULL DEFAULT '',
  size_bytes INTEGER NOT NULL,
  provider TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);
`

type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the database file at path.
func Open(ctx context.Context, path string) (*Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.Config("ledger.dsn", "sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "ledger.sqlite.open", "create ledger directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeConfig, "ledger.sqlite.open", "open sqlite ledger")
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "ledger.sqlite.migrate", "create ledger tables")
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Driver() string { return "sqlite" }

func (l *Ledger) Ping(ctx context.Context) error { return l.db.PingContext(ctx) }

func (l *Ledger) Close() error { return l.db.Close() }

// RecordRender stores rec. Recording the same render twice is a no-op.
func (l *Ledger) RecordRender(ctx context.Context, rec models.RenderRecord) error {
	props := rec.InputProps
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return errors.Wrap(err, "ledger.sqlite.record_render", "encode input props")
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO renders (id, composition_id, input_props, serve_url, region, function_name, bucket, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CompositionID, string(raw), rec.ServeURL, rec.Region, rec.Function, rec.Bucket, rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return errors.Wrap(err, "ledger.sqlite.record_render", "insert render")
	}
	return nil
}

func (l *Ledger) RecordPreview(ctx context.Context, rec models.PreviewRecord) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO previews (object_id, url, voice_id, size_bytes, provider, created_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(object_id) DO UPDATE SET url = excluded.url, size_bytes = excluded.size_bytes`,
		rec.ObjectID, rec.URL, rec.VoiceID, rec.Size, rec.Provider, rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return errors.Wrap(err, "ledger.sqlite.record_preview", "insert preview")
	}
	return nil
}

const selectRender = `SELECT id, composition_id, input_props, serve_url, region, function_name, bucket, created_at FROM renders`

type scanner interface {
	Scan(dest ...any) error
}

func scanRender(row scanner) (models.RenderRecord, error) {
	var (
		r         models.RenderRecord
		props     string
		createdMs int64
	)
	if err := row.Scan(&r.ID, &r.CompositionID, &props, &r.ServeURL, &r.Region, &r.Function, &r.Bucket, &createdMs); err != nil {
		return models.RenderRecord{}, err
	}
	if err := json.Unmarshal([]byte(props), &r.InputProps); err != nil {
		return models.RenderRecord{}, err
	}
	r.CreatedAt = time.UnixMilli(createdMs).UTC()
	return r, nil
}

func (l *Ledger) ListRenders(ctx context.Context, limit int) ([]models.RenderRecord, error) {
	rows, err := l.db.QueryContext(ctx, selectRender+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "ledger.sqlite.list_renders", "query renders")
	}
	defer rows.Close()

	out := []models.RenderRecord{}
	for rows.Next() {
		r, err := scanRender(rows)
		if err != nil {
			return nil, errors.Wrap(err, "ledger.sqlite.list_renders", "scan render")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "ledger.sqlite.list_renders", "iterate renders")
	}
	return out, nil
}

func (l *Ledger) GetRender(ctx context.Context, id string) (models.RenderRecord, error) {
	r, err := scanRender(l.db.QueryRowContext(ctx, selectRender+` WHERE id = ?`, id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return models.RenderRecord{}, errors.NotFound("render", id)
		}
		return models.RenderRecord{}, errors.Wrap(err, "ledger.sqlite.get_render", "query render")
	}
	return r, nil
}
