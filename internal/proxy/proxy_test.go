package proxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"lectern/internal/media"
	"lectern/internal/pkg/errors"
)

type stubResolver struct {
	obj media.MediaObject
	err error
}

func (s stubResolver) Resolve(context.Context, string) (media.MediaObject, error) {
	return s.obj, s.err
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/videos/lecture1.mp4":
			if r.Header.Get("Range") != "bytes=0-3" {
				t.Errorf("expected range to be forwarded, got %q", r.Header.Get("Range"))
			}
			w.Header().Set("Content-Type", "video/mp4")
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write([]byte("mp4!"))
		case "/raw":
			w.Header()["Content-Type"] = nil
			_, _ = w.Write([]byte("bytes"))
		default:
			http.Error(w, "gone", http.StatusGone)
		}
	}))
	defer srv.Close()

	p := New(srv.Client(), nil, nil)

	t.Run("streams upstream body", func(t *testing.T) {
		ctx := WithRange(context.Background(), "bytes=0-3")
		res, err := p.Fetch(ctx, srv.URL+"/videos/lecture1.mp4")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer res.Body.Close()

		body, _ := io.ReadAll(res.Body)
		if string(body) != "mp4!" {
			t.Errorf("unexpected body %q", body)
		}
		if res.Status != http.StatusPartialContent || res.ContentType != "video/mp4" {
			t.Errorf("unexpected resource %+v", res)
		}
		if res.Filename != "lecture1.mp4" {
			t.Errorf("expected filename lecture1.mp4, got %q", res.Filename)
		}
	})

	t.Run("defaults content type", func(t *testing.T) {
		res, err := p.Fetch(context.Background(), srv.URL+"/raw")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer res.Body.Close()
		if res.ContentType != DefaultContentType {
			t.Errorf("expected %s, got %s", DefaultContentType, res.ContentType)
		}
		if res.Filename != "" {
			t.Errorf("expected no filename, got %q", res.Filename)
		}
	})

	t.Run("upstream status is kept", func(t *testing.T) {
		_, err := p.Fetch(context.Background(), srv.URL+"/missing.mp3")
		if !errors.IsCode(err, errors.CodeFetch) {
			t.Fatalf("expected fetch error, got %v", err)
		}
		if got := errors.GetHTTPStatus(err); got != http.StatusGone {
			t.Errorf("expected status 410, got %d", got)
		}
	})
}

func TestFetchNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := New(nil, nil, nil).Fetch(context.Background(), addr+"/a.mp3")
	if !errors.IsCode(err, errors.CodeFetch) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if got := errors.GetHTTPStatus(err); got != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", got)
	}
}

func TestFetchRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://host/a.mp3", "/relative/a.mp3", "http://"} {
		t.Run(raw, func(t *testing.T) {
			_, err := New(nil, nil, nil).Fetch(context.Background(), raw)
			if !errors.IsCode(err, errors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestFetchAllowedHosts(t *testing.T) {
	var hits, leaked int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/hop":
			u, _ := url.Parse("http://" + r.Host + "/secret")
			u.Host = "localhost:" + u.Port()
			http.Redirect(w, r, u.String(), http.StatusFound)
		case "/secret":
			leaked++
			_, _ = w.Write([]byte("internal"))
		default:
			hits++
			_, _ = w.Write([]byte("ok"))
		}
	}))
	defer srv.Close()

	t.Run("host outside the list is rejected before any request", func(t *testing.T) {
		p := New(&http.Client{}, nil, nil, WithAllowedHosts("media.example.com"))
		_, err := p.Fetch(context.Background(), srv.URL+"/admin")
		if !errors.IsCode(err, errors.CodeValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if hits != 0 {
			t.Errorf("expected no upstream request, got %d", hits)
		}
	})

	t.Run("listed host is fetched", func(t *testing.T) {
		p := New(&http.Client{}, nil, nil, WithAllowedHosts(" 127.0.0.1 "))
		res, err := p.Fetch(context.Background(), srv.URL+"/audio.mp3")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		res.Body.Close()
		if hits != 1 {
			t.Errorf("expected one upstream request, got %d", hits)
		}
	})

	t.Run("redirect off the list is not followed", func(t *testing.T) {
		hc := &http.Client{}
		p := New(hc, nil, nil, WithAllowedHosts("127.0.0.1"))
		hc.CheckRedirect = p.CheckRedirect

		_, err := p.Fetch(context.Background(), srv.URL+"/hop")
		if !errors.IsCode(err, errors.CodeFetch) {
			t.Fatalf("expected fetch error, got %v", err)
		}
		if leaked != 0 {
			t.Errorf("redirect target was contacted %d times", leaked)
		}
	})

	t.Run("empty list allows any host", func(t *testing.T) {
		p := New(nil, nil, nil, WithAllowedHosts("", " "))
		if !p.HostAllowed("anything.example") {
			t.Error("expected any host to be allowed")
		}
	})
}

func TestFetchMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3"))
	}))
	defer srv.Close()

	t.Run("resolved object", func(t *testing.T) {
		// Drive-style URLs carry no filename; the media id fills in.
		r := stubResolver{obj: media.MediaObject{ID: "voice.mp3", Bucket: "audios", PublicURL: srv.URL + "/uc?id=abc"}}
		res, err := New(srv.Client(), r, nil).FetchMedia(context.Background(), "voice.mp3")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer res.Body.Close()
		if res.Filename != "voice.mp3" {
			t.Errorf("expected filename from media id, got %q", res.Filename)
		}
	})

	t.Run("not found passes through", func(t *testing.T) {
		r := stubResolver{err: errors.NotFound("media", "lecture1.mp4")}
		_, err := New(srv.Client(), r, nil).FetchMedia(context.Background(), "lecture1.mp4")
		if !errors.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestFilenameFromURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://cdn.example/audios/voice.mp3", "voice.mp3"},
		{"https://cdn.example/videos/My%20Lecture%20(1).mp4?token=x", "My Lecture (1).mp4"},
		{"https://cdn.example/uc?id=abc&export=download", ""},
		{"https://cdn.example/", ""},
		{"https://cdn.example/.hidden.mp3", ""},
		{"https://cdn.example/a/%22quoted%22.mp3", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			if err != nil {
				t.Fatal(err)
			}
			if got := FilenameFromURL(u); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
