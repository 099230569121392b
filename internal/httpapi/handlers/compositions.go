package handlers

import (
	"net/http"

	"lectern/internal/httpkit"
	"lectern/internal/pkg/errors"
)

// ListCompositions bundles the project and lists what it declares.
func (h *Handler) ListCompositions(w http.ResponseWriter, r *http.Request) error {
	if h.compositions == nil {
		return errors.Config("bundler.service_url", "bundler is not configured")
	}
	bundle, err := h.compositions.Resolve(r.Context())
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, bundle)
	return nil
}
