// Package clients holds the JSON-over-HTTP plumbing shared by the render,
// bundler and TTS service clients.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 4 << 10

// StatusError is returned when a service answers with a non-2xx status.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// Base is an authenticated JSON client for one service. The http.Client
// carries no Timeout; the caller's context bounds every request.
type Base struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// NewBase returns a Base with a timeout-free http.Client when hc is nil.
func NewBase(baseURL, apiKey string, hc *http.Client) Base {
	if hc == nil {
		hc = &http.Client{}
	}
	return Base{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    hc,
	}
}

// Configured reports whether the service URL is set.
func (b Base) Configured() bool {
	return b.BaseURL != ""
}

// NewRequest builds a request against path with auth and JSON headers. A nil
// body sends no payload.
func (b Base) NewRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.BaseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if b.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.APIKey)
	}
	return req, nil
}

// DoJSON sends body as JSON and decodes a 2xx response into out (if non-nil).
func (b Base) DoJSON(ctx context.Context, method, path string, body, out any) error {
	req, err := b.NewRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	res, err := b.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if err := CheckStatus(res); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CheckStatus turns a non-2xx response into a *StatusError, reading the
// service's error message from a JSON body when there is one.
func CheckStatus(res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	return &StatusError{Status: res.StatusCode, Message: errorMessage(raw)}
}

func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   any    `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Message != "":
			return body.Message
		case body.Detail != "":
			return body.Detail
		}
		switch v := body.Error.(type) {
		case string:
			return v
		case map[string]any:
			if m, ok := v["message"].(string); ok {
				return m
			}
		}
	}
	return strings.TrimSpace(string(raw))
}
