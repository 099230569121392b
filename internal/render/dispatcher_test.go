package render

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"lectern/internal/compositions"
	"lectern/internal/models"
	"lectern/internal/pkg/errors"
	"lectern/internal/ports"
)

type fakeService struct {
	startIn     ports.StartRenderInput
	startOut    ports.StartRenderOutput
	startErr    error
	starts      int
	progress    ports.RemoteProgress
	progressErr error
	polledID    string
	polled      ports.RenderTarget
}

func (f *fakeService) StartRender(_ context.Context, in ports.StartRenderInput) (ports.StartRenderOutput, error) {
	f.starts++
	f.startIn = in
	return f.startOut, f.startErr
}

func (f *fakeService) RenderProgress(_ context.Context, id string, t ports.RenderTarget) (ports.RemoteProgress, error) {
	f.polledID = id
	f.polled = t
	return f.progress, f.progressErr
}

type staticBundles struct {
	bundle compositions.Bundle
	err    error
}

func (s staticBundles) Resolve(context.Context) (compositions.Bundle, error) {
	return s.bundle, s.err
}

type countingBundles struct {
	BundleSource
	calls int
}

func (c *countingBundles) Resolve(ctx context.Context) (compositions.Bundle, error) {
	c.calls++
	return c.BundleSource.Resolve(ctx)
}

type memJournal struct {
	recs []models.RenderRecord
	err  error
}

func (m *memJournal) RecordRender(_ context.Context, rec models.RenderRecord) error {
	m.recs = append(m.recs, rec)
	return m.err
}

var lectureBundle = compositions.Bundle{
	ServeURL:     "https://bundles.example/site/",
	Compositions: []compositions.Composition{{ID: "VideoLecture", Width: 1920, Height: 1080, DurationInFrames: 300, FPS: 30}},
}

func TestDispatchAndPoll(t *testing.T) {
	svc := &fakeService{
		startOut: ports.StartRenderOutput{RenderID: "r-123", BucketName: "my-bucket"},
		progress: ports.RemoteProgress{OverallProgress: 0.25, ElapsedMillis: 1500},
	}
	journal := &memJournal{}
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	d := NewDispatcher(Deps{
		Service:  svc,
		Bundles:  staticBundles{bundle: lectureBundle},
		Journal:  journal,
		Defaults: Target{Region: "us-east-1", Function: "render-fn"},
		Now:      func() time.Time { return created },
	})

	props := map[string]any{"script": "hello"}
	job, err := d.Dispatch(context.Background(), "VideoLecture", props, Target{Bucket: "my-bucket"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.ID != "r-123" || job.CompositionID != "VideoLecture" || !job.CreatedAt.Equal(created) {
		t.Errorf("unexpected job %+v", job)
	}
	if !reflect.DeepEqual(job.InputProps, props) {
		t.Errorf("expected props to be kept, got %v", job.InputProps)
	}
	want := Target{Region: "us-east-1", Function: "render-fn", Bucket: "my-bucket"}
	if svc.startIn.Target != want || svc.startIn.ServeURL != lectureBundle.ServeURL {
		t.Errorf("unexpected start input %+v", svc.startIn)
	}
	if len(journal.recs) != 1 || journal.recs[0].ID != "r-123" || journal.recs[0].Bucket != "my-bucket" {
		t.Errorf("expected render to be recorded, got %+v", journal.recs)
	}

	p, err := d.PollProgress(context.Background(), job.ID, job.Target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.polledID != "r-123" || svc.polled != want {
		t.Errorf("unexpected poll %s %+v", svc.polledID, svc.polled)
	}
	if p.Done || p.OverallProgress < 0 || p.OverallProgress >= 1 {
		t.Errorf("expected in-progress snapshot, got %+v", p)
	}
	if p.ElapsedSeconds != 1.5 || p.State() != StateInProgress {
		t.Errorf("unexpected normalization %+v", p)
	}
}

func TestDispatchErrors(t *testing.T) {
	tests := []struct {
		name        string
		composition string
		target      Target
		bundles     BundleSource
		svc         *fakeService
		wantCode    errors.Code
		wantStarts  int
		wantBundles int
	}{
		{
			name:        "missing composition",
			composition: "",
			target:      Target{Function: "fn", Bucket: "b"},
			bundles:     staticBundles{bundle: lectureBundle},
			svc:         &fakeService{},
			wantCode:    errors.CodeValidation,
		},
		{
			name:        "unknown composition",
			composition: "Outro",
			target:      Target{Function: "fn", Bucket: "b"},
			bundles:     staticBundles{bundle: lectureBundle},
			svc:         &fakeService{},
			wantCode:    errors.CodeValidation,
			wantBundles: 1,
		},
		{
			name:        "missing bucket",
			composition: "VideoLecture",
			target:      Target{Function: "fn"},
			bundles:     staticBundles{bundle: lectureBundle},
			svc:         &fakeService{},
			wantCode:    errors.CodeDispatch,
		},
		{
			name:        "missing function",
			composition: "VideoLecture",
			target:      Target{Bucket: "b"},
			bundles:     staticBundles{bundle: lectureBundle},
			svc:         &fakeService{},
			wantCode:    errors.CodeDispatch,
		},
		{
			name:        "bundle fails",
			composition: "VideoLecture",
			target:      Target{Function: "fn", Bucket: "b"},
			bundles:     staticBundles{err: errors.New(errors.CodeBundle, "bundle failed: boom")},
			svc:         &fakeService{},
			wantCode:    errors.CodeBundle,
			wantBundles: 1,
		},
		{
			name:        "missing target skips bundling",
			composition: "VideoLecture",
			target:      Target{},
			bundles:     staticBundles{err: errors.New(errors.CodeBundle, "bundle failed: boom")},
			svc:         &fakeService{},
			wantCode:    errors.CodeDispatch,
		},
		{
			name:        "no render service skips bundling",
			composition: "VideoLecture",
			target:      Target{Function: "fn", Bucket: "b"},
			bundles:     staticBundles{bundle: lectureBundle},
			wantCode:    errors.CodeConfig,
		},
		{
			name:        "remote start fails once",
			composition: "VideoLecture",
			target:      Target{Function: "fn", Bucket: "b"},
			bundles:     staticBundles{bundle: lectureBundle},
			svc:         &fakeService{startErr: fmt.Errorf("http 500: lambda throttled")},
			wantCode:    errors.CodeDispatch,
			wantBundles: 1,
			wantStarts:  1,
		},
		{
			name:        "unconfigured service",
			composition: "VideoLecture",
			target:      Target{Function: "fn", Bucket: "b"},
			bundles:     staticBundles{bundle: lectureBundle},
			svc:         &fakeService{startErr: errors.Config("render.service_url", "not set")},
			wantCode:    errors.CodeConfig,
			wantBundles: 1,
			wantStarts:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundles := &countingBundles{BundleSource: tt.bundles}
			deps := Deps{Bundles: bundles}
			if tt.svc != nil {
				deps.Service = tt.svc
			}
			d := NewDispatcher(deps)
			_, err := d.Dispatch(context.Background(), tt.composition, nil, tt.target)
			if !errors.IsCode(err, tt.wantCode) {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
			if bundles.calls != tt.wantBundles {
				t.Errorf("expected %d bundle calls, got %d", tt.wantBundles, bundles.calls)
			}
			if tt.svc != nil && tt.svc.starts != tt.wantStarts {
				t.Errorf("expected %d start calls, got %d", tt.wantStarts, tt.svc.starts)
			}
		})
	}
}

func TestDispatchJournalFailureIsNotAnError(t *testing.T) {
	svc := &fakeService{startOut: ports.StartRenderOutput{RenderID: "r-1"}}
	d := NewDispatcher(Deps{
		Service: svc,
		Journal: &memJournal{err: fmt.Errorf("ledger down")},
	})

	job, err := d.DispatchBundle(context.Background(), lectureBundle, "VideoLecture", nil, Target{Function: "fn", Bucket: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.ID != "r-1" || job.InputProps == nil {
		t.Errorf("unexpected job %+v", job)
	}
}

func TestPollProgressErrors(t *testing.T) {
	d := NewDispatcher(Deps{Service: &fakeService{progressErr: fmt.Errorf("connection refused")}})

	_, err := d.PollProgress(context.Background(), "r-1", Target{})
	if !errors.IsCode(err, errors.CodeProgressQuery) {
		t.Fatalf("expected progress query error, got %v", err)
	}

	_, err = d.PollProgress(context.Background(), " ", Target{})
	if !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	out := "https://s3.example/out.mp4"

	tests := []struct {
		name   string
		in     ports.RemoteProgress
		done   bool
		errMsg string
		state  State
	}{
		{
			name:  "in progress",
			in:    ports.RemoteProgress{OverallProgress: 0.4, ElapsedMillis: 2500},
			state: StateInProgress,
		},
		{
			name:  "completed",
			in:    ports.RemoteProgress{Done: true, OverallProgress: 1, OutputFile: &out},
			done:  true,
			state: StateCompleted,
		},
		{
			name: "fatal forces done",
			in: ports.RemoteProgress{
				OverallProgress:       0.3,
				FatalErrorEncountered: true,
				Errors:                []string{"chunk 3 failed", "timeout"},
			},
			done:   true,
			errMsg: "chunk 3 failed; timeout",
			state:  StateFatalError,
		},
		{
			name:   "fatal without messages",
			in:     ports.RemoteProgress{FatalErrorEncountered: true},
			done:   true,
			errMsg: "render failed",
			state:  StateFatalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Normalize(tt.in)
			if p.Done != tt.done || p.Error != tt.errMsg || p.State() != tt.state {
				t.Errorf("unexpected progress %+v", p)
			}
			if p.ElapsedSeconds != float64(tt.in.ElapsedMillis)/1000 {
				t.Errorf("unexpected elapsed seconds %v", p.ElapsedSeconds)
			}
			if p.Errors == nil {
				t.Error("errors should never be nil")
			}
		})
	}

	t.Run("join is deterministic", func(t *testing.T) {
		in := ports.RemoteProgress{FatalErrorEncountered: true, Errors: []string{"a", "b", "c"}}
		first := Normalize(in).Error
		for i := 0; i < 10; i++ {
			if got := Normalize(in).Error; got != first {
				t.Fatalf("join changed: %q vs %q", got, first)
			}
		}
	})

	t.Run("progress is clamped", func(t *testing.T) {
		if got := Normalize(ports.RemoteProgress{OverallProgress: 1.7}).OverallProgress; got != 1 {
			t.Errorf("expected 1, got %v", got)
		}
		if got := Normalize(ports.RemoteProgress{OverallProgress: -0.2}).OverallProgress; got != 0 {
			t.Errorf("expected 0, got %v", got)
		}
	})
}
