package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"lectern/internal/compositions"
	"lectern/internal/httpkit"
	"lectern/internal/ledger"
	"lectern/internal/pkg/errors"
	"lectern/internal/render"
)

// CreateRenderRequest may carry the serve_url returned by GET /compositions
// to reuse that bundle instead of building a new one.
type CreateRenderRequest struct {
	CompositionID string         `json:"composition_id"`
	ServeURL      string         `json:"serve_url"`
	InputProps    map[string]any `json:"input_props"`
	Target        render.Target  `json:"target"`
}

func (h *Handler) PostRender(w http.ResponseWriter, r *http.Request) error {
	if h.renders == nil {
		return errors.Config("render.service_url", "render service is not configured")
	}

	var req CreateRenderRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.CompositionID) == "" {
		return errors.ValidationField("composition_id", "composition_id is required")
	}

	compositionID := strings.TrimSpace(req.CompositionID)
	var (
		job render.RenderJob
		err error
	)
	if serveURL := strings.TrimSpace(req.ServeURL); serveURL != "" {
		if u, perr := url.Parse(serveURL); perr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.ValidationField("serve_url", "serve_url must be an absolute http(s) URL")
		}
		job, err = h.renders.DispatchBundle(r.Context(), compositions.Bundle{ServeURL: serveURL}, compositionID, req.InputProps, req.Target)
	} else {
		job, err = h.renders.Dispatch(r.Context(), compositionID, req.InputProps, req.Target)
	}
	if err != nil {
		return err
	}

	httpkit.WriteJSON(w, http.StatusCreated, map[string]any{"render": job})
	return nil
}

func (h *Handler) ListRenders(w http.ResponseWriter, r *http.Request) error {
	limit := ledger.DefaultListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > ledger.MaxListLimit {
			return errors.ValidationField("limit", "limit must be between 1 and 200")
		}
		limit = v
	}

	renders, err := h.ledger.ListRenders(r.Context(), limit)
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"renders": renders, "limit": limit})
	return nil
}

func (h *Handler) GetRender(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "renderId")

	rec, err := h.ledger.GetRender(r.Context(), id)
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"render": rec})
	return nil
}

// GetProgress polls the render service once. Target fields missing from the
// query are taken from the ledger record when there is one.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) error {
	if h.renders == nil {
		return errors.Config("render.service_url", "render service is not configured")
	}
	ctx := r.Context()
	id := chi.URLParam(r, "renderId")
	q := r.URL.Query()

	target := render.Target{
		Region:   strings.TrimSpace(q.Get("region")),
		Function: strings.TrimSpace(q.Get("function")),
		Bucket:   strings.TrimSpace(q.Get("bucket")),
	}
	if target.Function == "" || target.Bucket == "" {
		if rec, err := h.ledger.GetRender(ctx, id); err == nil {
			target.Region = firstNonEmpty(target.Region, rec.Region)
			target.Function = firstNonEmpty(target.Function, rec.Function)
			target.Bucket = firstNonEmpty(target.Bucket, rec.Bucket)
		}
	}

	p, err := h.renders.PollProgress(ctx, id, target)
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"render_id": id,
		"state":     p.State(),
		"progress":  p,
	})
	return nil
}

func firstNonEmpty(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
