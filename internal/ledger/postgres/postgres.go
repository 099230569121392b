// Package postgres is the Postgres ledger backend.
package postgres

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lectern/internal/models"
	"lectern/internal/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS renders (
	id             TEXT PRIMARY KEY,
	composition_id TEXT NOT NULL,
	input_props    JSONB NOT NULL DEFAULT '{}'::jsonb,
	serve_url      TEXT NOT NULL DEFAULT '',
	region         TEXT NOT NULL DEFAULT '',
	function_name  TEXT NOT NULL DEFAULT '',
	bucket         TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS renders_created_at_idx ON renders (created_at DESC);

CREATE TABLE IF NOT EXISTS previews (
	object_id  TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	voice_id   TEXT NOT NULL DEFAULT '',
	size_bytes BIGINT NOT NULL,
	provider   TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

type Ledger struct {
	db *pgxpool.Pool
}

// Open connects to dsn and creates the ledger tables when missing.
func Open(ctx context.Context, dsn string) (*Ledger, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.Config("ledger.dsn", "postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeConfig, "ledger.postgres.open", "invalid postgres dsn")
	}
	l := New(pool)
	if err := l.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return l, nil
}

func New(db *pgxpool.Pool) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Migrate(ctx context.Context) error {
	if _, err := l.db.Exec(ctx, schema); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "ledger.postgres.migrate", "create ledger tables")
	}
	return nil
}

func (l *Ledger) Driver() string { return "postgres" }

func (l *Ledger) Ping(ctx context.Context) error { return l.db.Ping(ctx) }

func (l *Ledger) Close() error {
	l.db.Close()
	return nil
}

// RecordRender stores rec. Recording the same render twice is a no-op.
func (l *Ledger) RecordRender(ctx context.Context, rec models.RenderRecord) error {
	props := rec.InputProps
	if props == nil {
		props = map[string]any{}
	}
	_, err := l.db.Exec(ctx, `
		INSERT INTO renders (id, composition_id, input_props, serve_url, region, function_name, bucket, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, rec.ID, rec.CompositionID, props, rec.ServeURL, rec.Region, rec.Function, rec.Bucket, rec.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil
		}
		return errors.Wrap(err, "ledger.postgres.record_render", "insert render")
	}
	return nil
}

func (l *Ledger) RecordPreview(ctx context.Context, rec models.PreviewRecord) error {
	_, err := l.db.Exec(ctx, `
		INSERT INTO previews (object_id, url, voice_id, size_bytes, provider, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (object_id) DO UPDATE SET url = EXCLUDED.url, size_bytes = EXCLUDED.size_bytes
	`, rec.ObjectID, rec.URL, rec.VoiceID, rec.Size, rec.Provider, rec.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "ledger.postgres.record_preview", "insert preview")
	}
	return nil
}

func (l *Ledger) ListRenders(ctx context.Context, limit int) ([]models.RenderRecord, error) {
	rows, err := l.db.Query(ctx, `
		SELECT id, composition_id, input_props, serve_url, region, function_name, bucket, created_at
		FROM renders
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		if IsUndefinedTable(err) {
			return []models.RenderRecord{}, nil
		}
		return nil, errors.Wrap(err, "ledger.postgres.list_renders", "query renders")
	}
	defer rows.Close()

	out := []models.RenderRecord{}
	for rows.Next() {
		var r models.RenderRecord
		if err := rows.Scan(&r.ID, &r.CompositionID, &r.InputProps, &r.ServeURL, &r.Region, &r.Function, &r.Bucket, &r.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "ledger.postgres.list_renders", "scan render")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "ledger.postgres.list_renders", "iterate renders")
	}
	return out, nil
}

func (l *Ledger) GetRender(ctx context.Context, id string) (models.RenderRecord, error) {
	var r models.RenderRecord
	err := l.db.QueryRow(ctx, `
		SELECT id, composition_id, input_props, serve_url, region, function_name, bucket, created_at
		FROM renders
		WHERE id=$1
	`, id).Scan(&r.ID, &r.CompositionID, &r.InputProps, &r.ServeURL, &r.Region, &r.Function, &r.Bucket, &r.CreatedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return models.RenderRecord{}, errors.NotFound("render", id)
		}
		return models.RenderRecord{}, errors.Wrap(err, "ledger.postgres.get_render", "query render")
	}
	return r, nil
}
