package storage

import (
	"context"
	"testing"

	"lectern/internal/config"
)

func TestNewStore(t *testing.T) {
	t.Run("localfs", func(t *testing.T) {
		store, closeFn, err := NewStore(context.Background(), config.Storage{
			Provider:      "localfs",
			LocalRoot:     t.TempDir(),
			PublicBaseURL: "http://localhost:8080",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer closeFn()
		if store.Provider() != "localfs" {
			t.Errorf("expected localfs, got %s", store.Provider())
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, closeFn, err := NewStore(context.Background(), config.Storage{Provider: "s3"})
		if err == nil {
			t.Fatal("expected error for unknown provider")
		}
		closeFn()
	})
}
