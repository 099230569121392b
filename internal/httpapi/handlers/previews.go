package handlers

import (
	"net/http"

	"lectern/internal/httpkit"
	"lectern/internal/pkg/errors"
)

type CreatePreviewRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

func (h *Handler) PostPreview(w http.ResponseWriter, r *http.Request) error {
	if h.previews == nil {
		return errors.Config("tts.api_key", "speech synthesis is not configured")
	}

	var req CreatePreviewRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		return err
	}

	p, err := h.previews.SynthesizePreview(r.Context(), req.Text, req.VoiceID)
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusCreated, p)
	return nil
}
