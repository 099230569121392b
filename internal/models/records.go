package models

import "time"

// RenderRecord is a dispatched render as kept in the ledger. Progress is
// never stored; it is always read from the render service.
type RenderRecord struct {
	ID            string         `json:"id"`
	CompositionID string         `json:"composition_id"`
	InputProps    map[string]any `json:"input_props"`
	ServeURL      string         `json:"serve_url,omitempty"`
	Region        string         `json:"region"`
	Function      string         `json:"function"`
	Bucket        string         `json:"bucket"`
	CreatedAt     time.Time      `json:"created_at"`
}

type PreviewRecord struct {
	ObjectID  string    `json:"object_id"`
	URL       string    `json:"url"`
	VoiceID   string    `json:"voice_id,omitempty"`
	Size      int64     `json:"size"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}
