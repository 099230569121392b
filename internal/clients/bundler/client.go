// Package bundler is the HTTP client for the composition bundling service.
package bundler

import (
	"context"
	"net/http"
	"net/url"

	"lectern/internal/clients"
	"lectern/internal/pkg/errors"
	"lectern/internal/ports"
)

type bundleRequest struct {
	EntryPoint string `json:"entryPoint"`
}

type bundleResponse struct {
	ServeURL string `json:"serveUrl"`
}

type composition struct {
	ID               string `json:"id"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	DurationInFrames int    `json:"durationInFrames"`
	FPS              int    `json:"fps"`
}

type compositionsResponse struct {
	Compositions []composition `json:"compositions"`
}

type HTTPClient struct {
	base clients.Base
}

var _ ports.Bundler = (*HTTPClient)(nil)

func NewHTTPClient(baseURL, apiKey string, hc *http.Client) *HTTPClient {
	return &HTTPClient{base: clients.NewBase(baseURL, apiKey, hc)}
}

func (c *HTTPClient) Bundle(ctx context.Context, entryPoint string) (string, error) {
	if !c.base.Configured() {
		return "", errors.Config("bundler.service_url", "bundler service url is not configured")
	}

	var res bundleResponse
	if err := c.base.DoJSON(ctx, http.MethodPost, "/bundles", bundleRequest{EntryPoint: entryPoint}, &res); err != nil {
		return "", err
	}
	if res.ServeURL == "" {
		return "", errors.New(errors.CodeBundle, "bundler returned no serve url")
	}
	return res.ServeURL, nil
}

func (c *HTTPClient) ListCompositions(ctx context.Context, serveURL string) ([]ports.CompositionMeta, error) {
	if !c.base.Configured() {
		return nil, errors.Config("bundler.service_url", "bundler service url is not configured")
	}

	var res compositionsResponse
	path := "/compositions?serveUrl=" + url.QueryEscape(serveURL)
	if err := c.base.DoJSON(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}

	out := make([]ports.CompositionMeta, 0, len(res.Compositions))
	for _, comp := range res.Compositions {
		out = append(out, ports.CompositionMeta{
			ID:               comp.ID,
			Width:            comp.Width,
			Height:           comp.Height,
			DurationInFrames: comp.DurationInFrames,
			FPS:              comp.FPS,
		})
	}
	return out, nil
}
