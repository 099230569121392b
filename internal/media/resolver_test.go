package media

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"testing"

	"lectern/internal/pkg/errors"
	"lectern/internal/ports"
)

// fakeStore records PublicURL lookups and answers from a fixed object set.
type fakeStore struct {
	objects map[string]bool // bucket + "/" + key
	fail    error
	calls   []string
}

func (f *fakeStore) Provider() string { return "fake" }

func (f *fakeStore) PublicURL(_ context.Context, bucket, key string) (string, error) {
	f.calls = append(f.calls, bucket)
	if f.fail != nil {
		return "", f.fail
	}
	if f.objects[bucket+"/"+key] {
		return "https://cdn.example/" + bucket + "/" + key, nil
	}
	return "", fmt.Errorf("%s/%s: %w", bucket, key, ports.ErrObjectNotFound)
}

func (f *fakeStore) Upload(context.Context, ports.UploadInput) (ports.UploadOutput, error) {
	return ports.UploadOutput{}, nil
}

func (f *fakeStore) Open(context.Context, string, string) (io.ReadCloser, ports.ObjectInfo, error) {
	return nil, ports.ObjectInfo{}, ports.ErrObjectNotFound
}

func TestCandidates(t *testing.T) {
	tests := []struct {
		id   string
		want []string
	}{
		{"voice.mp3", []string{"audios", "videos"}},
		{"VOICE.WAV", []string{"audios", "videos"}},
		{"take.ogg", []string{"audios", "videos"}},
		{"lecture1.mp4", []string{"videos", "audios"}},
		{"clip.webm", []string{"videos", "audios"}},
		{"no-extension", []string{"videos", "audios"}},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := Candidates(tt.id); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Candidates(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		objects    map[string]bool
		wantBucket string
		wantCalls  []string
	}{
		{
			name:       "audio in primary bucket",
			id:         "voice.mp3",
			objects:    map[string]bool{"audios/voice.mp3": true},
			wantBucket: "audios",
			wantCalls:  []string{"audios"},
		},
		{
			name:       "audio only in videos",
			id:         "voice.mp3",
			objects:    map[string]bool{"videos/voice.mp3": true},
			wantBucket: "videos",
			wantCalls:  []string{"audios", "videos"},
		},
		{
			name:       "video only in audios",
			id:         "lecture.mp4",
			objects:    map[string]bool{"audios/lecture.mp4": true},
			wantBucket: "audios",
			wantCalls:  []string{"videos", "audios"},
		},
		{
			name:       "video in both prefers primary",
			id:         "lecture.mp4",
			objects:    map[string]bool{"audios/lecture.mp4": true, "videos/lecture.mp4": true},
			wantBucket: "videos",
			wantCalls:  []string{"videos"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{objects: tt.objects}
			obj, err := NewResolver(store, nil).Resolve(context.Background(), tt.id)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if obj.Bucket != tt.wantBucket {
				t.Errorf("expected bucket %s, got %s", tt.wantBucket, obj.Bucket)
			}
			if obj.PublicURL != "https://cdn.example/"+tt.wantBucket+"/"+tt.id {
				t.Errorf("unexpected url %s", obj.PublicURL)
			}
			if !reflect.DeepEqual(store.calls, tt.wantCalls) {
				t.Errorf("expected lookups %v, got %v", tt.wantCalls, store.calls)
			}
		})
	}
}

func TestResolveAbsentEverywhere(t *testing.T) {
	store := &fakeStore{}

	_, err := NewResolver(store, nil).Resolve(context.Background(), "lecture1.mp4")

	if !errors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !reflect.DeepEqual(store.calls, []string{"videos", "audios"}) {
		t.Errorf("expected exactly videos then audios, got %v", store.calls)
	}
}

func TestResolveStorageFailureStops(t *testing.T) {
	store := &fakeStore{fail: fmt.Errorf("connection reset")}

	_, err := NewResolver(store, nil).Resolve(context.Background(), "voice.mp3")

	if !errors.IsCode(err, errors.CodeFetch) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if len(store.calls) != 1 {
		t.Errorf("expected search to stop after first failure, got %v", store.calls)
	}
}

func TestResolveValidation(t *testing.T) {
	for _, id := range []string{"", "   ", "../secret.mp3"} {
		t.Run(id, func(t *testing.T) {
			store := &fakeStore{}
			_, err := NewResolver(store, nil).Resolve(context.Background(), id)
			if !errors.IsCode(err, errors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if len(store.calls) != 0 {
				t.Errorf("expected no storage calls, got %v", store.calls)
			}
		})
	}
}
