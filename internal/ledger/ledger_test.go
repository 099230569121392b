package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"lectern/internal/config"
	"lectern/internal/models"
	"lectern/internal/pkg/errors"
)

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultListLimit},
		{-5, DefaultListLimit},
		{1, 1},
		{200, 200},
		{201, MaxListLimit},
	}
	for _, tt := range tests {
		if got := ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("none", func(t *testing.T) {
		s, err := Open(ctx, config.Ledger{Driver: "none"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.Driver() != "none" {
			t.Errorf("expected noop ledger, got %s", s.Driver())
		}
		if err := s.RecordRender(ctx, models.RenderRecord{ID: "r"}); err != nil {
			t.Errorf("noop record should succeed: %v", err)
		}
		if _, err := s.GetRender(ctx, "r"); !errors.IsCode(err, errors.CodeUnavailable) {
			t.Errorf("expected unavailable, got %v", err)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := Open(ctx, config.Ledger{Driver: "SQLite", DSN: filepath.Join(t.TempDir(), "l.db")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer s.Close()
		if s.Driver() != "sqlite" {
			t.Errorf("expected sqlite, got %s", s.Driver())
		}
		if err := s.Ping(ctx); err != nil {
			t.Errorf("ping: %v", err)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := Open(ctx, config.Ledger{Driver: "mysql", DSN: "x"})
		if !errors.IsCode(err, errors.CodeConfig) {
			t.Fatalf("expected config error, got %v", err)
		}
	})
}
