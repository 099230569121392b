// Package compositions bundles the rendering project and lists the
// compositions it declares.
package compositions

import (
	"context"
	"fmt"
	"strings"

	"lectern/internal/pkg/errors"
	"lectern/internal/pkg/logger"
	"lectern/internal/ports"
)

type Composition struct {
	ID               string `json:"id"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	DurationInFrames int    `json:"duration_in_frames"`
	FPS              int    `json:"fps"`
}

// Bundle is one bundling pass: where the bundle is served from and what it
// declares.
type Bundle struct {
	ServeURL     string        `json:"serve_url"`
	Compositions []Composition `json:"compositions"`
}

// Has reports whether the bundle declares id.
func (b Bundle) Has(id string) bool {
	for _, c := range b.Compositions {
		if c.ID == id {
			return true
		}
	}
	return false
}

type Resolver struct {
	bundler    ports.Bundler
	entryPoint string
	log        *logger.Logger
}

func NewResolver(bundler ports.Bundler, entryPoint string, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Discard()
	}
	return &Resolver{bundler: bundler, entryPoint: entryPoint, log: log.WithComponent("compositions")}
}

// Resolve bundles the entry point and lists its compositions. Every failure
// is a single BUNDLE error; nothing is retried.
func (r *Resolver) Resolve(ctx context.Context) (Bundle, error) {
	if r.bundler == nil {
		return Bundle{}, errors.Config("bundler.service_url", "bundler is not configured")
	}
	if strings.TrimSpace(r.entryPoint) == "" {
		return Bundle{}, errors.Config("bundler.entry_point", "bundle entry point is not configured")
	}

	serveURL, err := r.bundler.Bundle(ctx, r.entryPoint)
	if err != nil {
		return Bundle{}, bundleErr(err, "bundle failed")
	}

	metas, err := r.bundler.ListCompositions(ctx, serveURL)
	if err != nil {
		return Bundle{}, bundleErr(err, "list compositions failed")
	}

	list := make([]Composition, 0, len(metas))
	seen := make(map[string]bool, len(metas))
	for _, m := range metas {
		if err := check(m); err != nil {
			return Bundle{}, errors.WrapWithCode(err, errors.CodeBundle, "compositions.resolve", err.Error()).
				WithField("composition_id", m.ID)
		}
		if seen[m.ID] {
			return Bundle{}, errors.Newf(errors.CodeBundle, "duplicate composition id %q", m.ID).
				WithField("composition_id", m.ID)
		}
		seen[m.ID] = true
		list = append(list, Composition(m))
	}

	r.log.FromContext(ctx).Info("compositions resolved", "serve_url", serveURL, "count", len(list))
	return Bundle{ServeURL: serveURL, Compositions: list}, nil
}

// bundleErr keeps CONFIG errors as they are and turns anything else into a
// BUNDLE error whose message includes the underlying cause.
func bundleErr(err error, msg string) error {
	if errors.IsCode(err, errors.CodeConfig) {
		return err
	}
	return errors.WrapWithCode(err, errors.CodeBundle, "compositions.resolve", fmt.Sprintf("%s: %v", msg, err))
}

func check(m ports.CompositionMeta) error {
	switch {
	case strings.TrimSpace(m.ID) == "":
		return fmt.Errorf("composition without id")
	case m.Width <= 0 || m.Height <= 0:
		return fmt.Errorf("composition %q has invalid size %dx%d", m.ID, m.Width, m.Height)
	case m.DurationInFrames <= 0:
		return fmt.Errorf("composition %q has invalid duration %d", m.ID, m.DurationInFrames)
	case m.FPS <= 0:
		return fmt.Errorf("composition %q has invalid fps %d", m.ID, m.FPS)
	}
	return nil
}
