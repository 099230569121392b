package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"lectern/internal/ports"
)

func TestSynthesizeToFile(t *testing.T) {
	audio := bytes.Repeat([]byte{0xff, 0xfb, 0x90, 0x64}, 512)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/text-to-speech/"+DefaultVoiceID {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing auth header")
		}
		var req speechRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Text != "Hello world" || req.ModelID != "m1" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key", "m1", "", nil)
	if !c.Configured() {
		t.Fatal("expected client to be configured")
	}

	path := filepath.Join(t.TempDir(), "out.mp3")
	n, err := c.SynthesizeToFile(context.Background(), ports.SynthesisInput{Text: "Hello world", Path: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != int64(len(audio)) {
		t.Errorf("expected %d bytes, got %d", len(audio), n)
	}
	written, _ := os.ReadFile(path)
	if !bytes.Equal(written, audio) {
		t.Error("file contents differ from response body")
	}
}

func TestSynthesizeRejectsNonAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>login</html>"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "out.mp3")
	_, err := NewHTTPClient(srv.URL, "key", "", "v", nil).SynthesizeToFile(context.Background(),
		ports.SynthesisInput{Text: "hi", Path: path})
	if err == nil {
		t.Fatal("expected content type error")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("expected no file to be created for a rejected response")
	}
}

func TestSynthesizeServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"invalid api key"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, "key", "", "v", nil).SynthesizeToFile(context.Background(),
		ports.SynthesisInput{Text: "hi", Path: filepath.Join(t.TempDir(), "x.mp3")})
	if err == nil || err.Error() != "http 401: invalid api key" {
		t.Fatalf("expected service error, got %v", err)
	}
}

func TestConfigured(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		key     string
		wantCfg bool
	}{
		{"both", "https://tts.example", "k", true},
		{"no key", "https://tts.example", "", false},
		{"no url", "", "k", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewHTTPClient(tt.url, tt.key, "", "", nil).Configured(); got != tt.wantCfg {
				t.Errorf("expected %v, got %v", tt.wantCfg, got)
			}
		})
	}
}
