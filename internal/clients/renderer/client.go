// Package renderer is the HTTP client for the remote serverless render
// service.
package renderer

import (
	"context"
	"net/http"
	"net/url"

	"lectern/internal/clients"
	contract "lectern/internal/contracts/renderer"
	"lectern/internal/pkg/errors"
	"lectern/internal/ports"
)

type HTTPClient struct {
	base clients.Base
}

var _ ports.RenderService = (*HTTPClient)(nil)

// NewHTTPClient returns a client for baseURL. hc may be nil.
func NewHTTPClient(baseURL, apiKey string, hc *http.Client) *HTTPClient {
	return &HTTPClient{base: clients.NewBase(baseURL, apiKey, hc)}
}

func (c *HTTPClient) StartRender(ctx context.Context, in ports.StartRenderInput) (ports.StartRenderOutput, error) {
	if !c.base.Configured() {
		return ports.StartRenderOutput{}, errors.Config("render.service_url", "render service url is not configured")
	}

	req := contract.StartRequest{
		ServeURL:     in.ServeURL,
		Composition:  in.CompositionID,
		InputProps:   in.InputProps,
		Region:       in.Target.Region,
		FunctionName: in.Target.Function,
		BucketName:   in.Target.Bucket,
		Codec:        "h264",
	}
	if req.InputProps == nil {
		req.InputProps = map[string]any{}
	}

	var res contract.StartResponse
	if err := c.base.DoJSON(ctx, http.MethodPost, "/renders", req, &res); err != nil {
		return ports.StartRenderOutput{}, err
	}
	if res.RenderID == "" {
		return ports.StartRenderOutput{}, errors.New(errors.CodeDispatch, "render service returned no render id")
	}
	return ports.StartRenderOutput{RenderID: res.RenderID, BucketName: res.BucketName}, nil
}

func (c *HTTPClient) RenderProgress(ctx context.Context, renderID string, target ports.RenderTarget) (ports.RemoteProgress, error) {
	if !c.base.Configured() {
		return ports.RemoteProgress{}, errors.Config("render.service_url", "render service url is not configured")
	}

	q := url.Values{}
	q.Set("region", target.Region)
	q.Set("functionName", target.Function)
	q.Set("bucketName", target.Bucket)
	path := "/renders/" + url.PathEscape(renderID) + "/progress?" + q.Encode()

	var res contract.ProgressResponse
	if err := c.base.DoJSON(ctx, http.MethodGet, path, nil, &res); err != nil {
		return ports.RemoteProgress{}, err
	}

	msgs := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		msgs = append(msgs, e.Message)
	}

	return ports.RemoteProgress{
		Done:                  res.Done,
		OverallProgress:       res.OverallProgress,
		Errors:                msgs,
		FatalErrorEncountered: res.FatalErrorEncountered,
		Costs: ports.RenderCosts{
			AccruedSoFar: res.Costs.AccruedSoFar,
			DisplayCost:  res.Costs.DisplayCost,
			Currency:     res.Costs.Currency,
		},
		OutputFile:    res.OutputFile,
		ElapsedMillis: res.ElapsedMilliseconds,
	}, nil
}
