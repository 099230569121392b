package ports

import "context"

// RenderTarget identifies the serverless deployment that executes a render.
type RenderTarget struct {
	Region   string `json:"region"`
	Function string `json:"function"`
	Bucket   string `json:"bucket"`
}

type StartRenderInput struct {
	ServeURL      string
	CompositionID string
	InputProps    map[string]any
	Target        RenderTarget
}

type StartRenderOutput struct {
	RenderID   string
	BucketName string
}

type RenderCosts struct {
	AccruedSoFar float64
	DisplayCost  string
	Currency     string
}

// RemoteProgress is the render service's progress report before
// normalization.
type RemoteProgress struct {
	Done                  bool
	OverallProgress       float64
	Errors                []string
	FatalErrorEncountered bool
	Costs                 RenderCosts
	OutputFile            *string
	ElapsedMillis         int64
}

// RenderService starts remote renders and reports their progress.
type RenderService interface {
	StartRender(ctx context.Context, in StartRenderInput) (StartRenderOutput, error)
	RenderProgress(ctx context.Context, renderID string, target RenderTarget) (RemoteProgress, error)
}

type CompositionMeta struct {
	ID               string
	Width            int
	Height           int
	DurationInFrames int
	FPS              int
}

// Bundler builds a servable bundle from an entry point and introspects the
// compositions it declares.
type Bundler interface {
	Bundle(ctx context.Context, entryPoint string) (serveURL string, err error)
	ListCompositions(ctx context.Context, serveURL string) ([]CompositionMeta, error)
}

type SynthesisInput struct {
	Text    string
	VoiceID string
	// Path is the local file the synthesized audio is written to.
	Path string
}

// SpeechSynthesizer turns text into an audio file on local disk.
type SpeechSynthesizer interface {
	// Configured reports whether credentials are present. No network call.
	Configured() bool
	SynthesizeToFile(ctx context.Context, in SynthesisInput) (bytesWritten int64, err error)
}
