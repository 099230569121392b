// Package tts is the HTTP client for the text-to-speech service.
package tts

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"

	"lectern/internal/clients"
	"lectern/internal/ports"
)

// DefaultVoiceID is used when neither the caller nor the configuration
// names a voice.
const DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

const filePermissions = 0o600

type speechRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id,omitempty"`
}

type HTTPClient struct {
	base         clients.Base
	model        string
	defaultVoice string
}

var _ ports.SpeechSynthesizer = (*HTTPClient)(nil)

// NewHTTPClient returns a client for baseURL. An empty defaultVoice falls
// back to DefaultVoiceID. hc may be nil.
func NewHTTPClient(baseURL, apiKey, model, defaultVoice string, hc *http.Client) *HTTPClient {
	if defaultVoice == "" {
		defaultVoice = DefaultVoiceID
	}
	return &HTTPClient{
		base:         clients.NewBase(baseURL, apiKey, hc),
		model:        model,
		defaultVoice: defaultVoice,
	}
}

// Configured reports whether both the service URL and API key are set.
func (c *HTTPClient) Configured() bool {
	return c.base.Configured() && c.base.APIKey != ""
}

// SynthesizeToFile streams the synthesized audio into in.Path.
func (c *HTTPClient) SynthesizeToFile(ctx context.Context, in ports.SynthesisInput) (int64, error) {
	if strings.TrimSpace(in.Text) == "" {
		return 0, fmt.Errorf("text cannot be empty")
	}
	if in.Path == "" {
		return 0, fmt.Errorf("output path cannot be empty")
	}
	voice := in.VoiceID
	if voice == "" {
		voice = c.defaultVoice
	}

	req, err := c.base.NewRequest(ctx, http.MethodPost, "/v1/text-to-speech/"+url.PathEscape(voice),
		speechRequest{Text: in.Text, ModelID: c.model})
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "audio/mpeg")

	res, err := c.base.HTTP.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send request to tts service: %w", err)
	}
	defer res.Body.Close()

	if err := clients.CheckStatus(res); err != nil {
		return 0, err
	}

	mediaType, _, _ := mime.ParseMediaType(res.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "audio/") && mediaType != "application/octet-stream" {
		return 0, fmt.Errorf("unexpected content type: expected audio, got %q", res.Header.Get("Content-Type"))
	}

	f, err := os.OpenFile(in.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermissions)
	if err != nil {
		return 0, fmt.Errorf("create audio file: %w", err)
	}

	n, copyErr := io.Copy(f, res.Body)
	closeErr := f.Close()
	if copyErr != nil {
		return n, fmt.Errorf("write audio file: %w", copyErr)
	}
	if closeErr != nil {
		return n, fmt.Errorf("close audio file: %w", closeErr)
	}
	return n, nil
}
