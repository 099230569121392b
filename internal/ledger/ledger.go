// Package ledger keeps a local record of dispatched renders and stored
// previews. Render progress is never stored here.
package ledger

import (
	"context"
	"strings"

	"lectern/internal/config"
	"lectern/internal/ledger/postgres"
	"lectern/internal/ledger/sqlite"
	"lectern/internal/models"
	"lectern/internal/pkg/errors"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type Store interface {
	RecordRender(ctx context.Context, rec models.RenderRecord) error
	RecordPreview(ctx context.Context, rec models.PreviewRecord) error
	// ListRenders returns the most recent renders first.
	ListRenders(ctx context.Context, limit int) ([]models.RenderRecord, error)
	GetRender(ctx context.Context, id string) (models.RenderRecord, error)
	Driver() string
	Ping(ctx context.Context) error
	Close() error
}

// Open connects the configured backend and prepares its schema.
func Open(ctx context.Context, cfg config.Ledger) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "none":
		return Noop{}, nil
	case "postgres":
		l, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return l, nil
	case "sqlite":
		l, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, errors.Config("ledger.driver", "unknown ledger driver "+cfg.Driver)
	}
}

// ClampLimit maps a requested page size into [1, MaxListLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

// Noop accepts records and discards them. Reads report the ledger as
// disabled.
type Noop struct{}

func (Noop) RecordRender(context.Context, models.RenderRecord) error { return nil }
func (Noop) RecordPreview(context.Context, models.PreviewRecord) error { return nil }

func (Noop) ListRenders(context.Context, int) ([]models.RenderRecord, error) {
	return nil, disabled()
}

func (Noop) GetRender(context.Context, string) (models.RenderRecord, error) {
	return models.RenderRecord{}, disabled()
}

func (Noop) Driver() string { return "none" }
func (Noop) Ping(context.Context) error { return nil }
func (Noop) Close() error { return nil }

func disabled() error {
	return errors.New(errors.CodeUnavailable, "render ledger is disabled").WithField("setting", "ledger.driver")
}
