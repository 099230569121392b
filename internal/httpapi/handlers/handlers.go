// Package handlers implements the lectern HTTP endpoints.
package handlers

import (
	"context"

	"github.com/redis/go-redis/v9"

	"lectern/internal/compositions"
	"lectern/internal/ledger"
	"lectern/internal/pkg/logger"
	"lectern/internal/ports"
	"lectern/internal/proxy"
	"lectern/internal/render"
	"lectern/internal/speech"
)

type CompositionResolver interface {
	Resolve(ctx context.Context) (compositions.Bundle, error)
}

type RenderDispatcher interface {
	Dispatch(ctx context.Context, compositionID string, inputProps map[string]any, target render.Target) (render.RenderJob, error)
	DispatchBundle(ctx context.Context, bundle compositions.Bundle, compositionID string, inputProps map[string]any, target render.Target) (render.RenderJob, error)
	PollProgress(ctx context.Context, renderID string, target render.Target) (render.Progress, error)
}

type PreviewSynthesizer interface {
	SynthesizePreview(ctx context.Context, text, voiceID string) (speech.Preview, error)
}

type MediaProxy interface {
	Fetch(ctx context.Context, rawURL string) (*proxy.Resource, error)
	FetchMedia(ctx context.Context, mediaID string) (*proxy.Resource, error)
}

type Deps struct {
	Log          *logger.Logger
	Compositions CompositionResolver
	Renders      RenderDispatcher
	Previews     PreviewSynthesizer
	Proxy        MediaProxy
	Store        ports.MediaStore
	Ledger       ledger.Store
	// RDB is optional; nil reports redis as disabled in health checks.
	RDB     redis.Cmdable
	Version string
}

type Handler struct {
	log          *logger.Logger
	compositions CompositionResolver
	renders      RenderDispatcher
	previews     PreviewSynthesizer
	proxy        MediaProxy
	store        ports.MediaStore
	ledger       ledger.Store
	rdb          redis.Cmdable
	version      string
}

func New(d Deps) *Handler {
	if d.Log == nil {
		d.Log = logger.Discard()
	}
	if d.Ledger == nil {
		d.Ledger = ledger.Noop{}
	}
	if d.Version == "" {
		d.Version = "dev"
	}
	return &Handler{
		log:          d.Log,
		compositions: d.Compositions,
		renders:      d.Renders,
		previews:     d.Previews,
		proxy:        d.Proxy,
		store:        d.Store,
		ledger:       d.Ledger,
		rdb:          d.RDB,
		version:      d.Version,
	}
}
