package renderer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"lectern/internal/clients"
	contract "lectern/internal/contracts/renderer"
	apperrors "lectern/internal/pkg/errors"
	"lectern/internal/ports"
)

func TestStartRender(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/renders" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req contract.StartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Composition != "VideoLecture" || req.BucketName != "my-bucket" || req.InputProps["script"] != "hello" {
			t.Errorf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(contract.StartResponse{RenderID: "r-1", BucketName: "my-bucket"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "k", nil)
	out, err := c.StartRender(context.Background(), ports.StartRenderInput{
		ServeURL:      "https://bundle.example/site",
		CompositionID: "VideoLecture",
		InputProps:    map[string]any{"script": "hello"},
		Target:        ports.RenderTarget{Region: "us-east-1", Function: "fn", Bucket: "my-bucket"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.RenderID != "r-1" {
		t.Errorf("expected render id r-1, got %q", out.RenderID)
	}
}

func TestStartRenderRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(contract.ErrorResponse{Message: "function not found"})
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, "", nil).StartRender(context.Background(), ports.StartRenderInput{CompositionID: "x"})

	var se *clients.StatusError
	if !errors.As(err, &se) || se.Message != "function not found" {
		t.Fatalf("expected status error with message, got %v", err)
	}
}

func TestRenderProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/renders/r-1/progress" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("bucketName") != "my-bucket" || r.URL.Query().Get("functionName") != "fn" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{
			"done": false,
			"overallProgress": 0.25,
			"errors": [{"message":"chunk 3 timed out"}],
			"fatalErrorEncountered": false,
			"costs": {"accruedSoFar": 0.012, "displayCost": "$0.01", "currency": "USD"},
			"outputFile": null,
			"elapsedMilliseconds": 4500
		}`))
	}))
	defer srv.Close()

	p, err := NewHTTPClient(srv.URL, "", nil).RenderProgress(context.Background(), "r-1",
		ports.RenderTarget{Region: "us-east-1", Function: "fn", Bucket: "my-bucket"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.OverallProgress != 0.25 || p.ElapsedMillis != 4500 || p.OutputFile != nil {
		t.Errorf("unexpected progress %+v", p)
	}
	if len(p.Errors) != 1 || p.Errors[0] != "chunk 3 timed out" {
		t.Errorf("unexpected errors %v", p.Errors)
	}
	if p.Costs.Currency != "USD" {
		t.Errorf("unexpected costs %+v", p.Costs)
	}
}

func TestUnconfigured(t *testing.T) {
	c := NewHTTPClient("", "", nil)

	if _, err := c.StartRender(context.Background(), ports.StartRenderInput{}); !apperrors.IsCode(err, apperrors.CodeConfig) {
		t.Errorf("expected config error, got %v", err)
	}
	if _, err := c.RenderProgress(context.Background(), "r", ports.RenderTarget{}); !apperrors.IsCode(err, apperrors.CodeConfig) {
		t.Errorf("expected config error, got %v", err)
	}
}
