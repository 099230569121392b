// Package speech synthesizes short voice previews and publishes them to the
// audio bucket.
package speech

import (
	"context"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"lectern/internal/clients"
	"lectern/internal/models"
	"lectern/internal/pkg/errors"
	"lectern/internal/pkg/ids"
	"lectern/internal/pkg/logger"
	"lectern/internal/ports"
)

// MaxTextLength bounds preview text in characters.
const MaxTextLength = 5000

const namePrefix = "preview"

// Preview is a synthesized clip stored in the audios bucket.
type Preview struct {
	ObjectID  string    `json:"object_id"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	VoiceID   string    `json:"voice_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Journal records stored previews.
type Journal interface {
	RecordPreview(ctx context.Context, rec models.PreviewRecord) error
}

type Deps struct {
	Synth ports.SpeechSynthesizer
	Store ports.MediaStore
	// Journal is optional.
	Journal Journal
	Log     *logger.Logger

	// MinAudioBytes is the smallest output accepted as real audio.
	MinAudioBytes int64
	// TempDir holds in-flight synthesis output; "" means os.TempDir().
	TempDir string
	Now     func() time.Time
}

type Service struct {
	synth    ports.SpeechSynthesizer
	store    ports.MediaStore
	journal  Journal
	log      *logger.Logger
	minBytes int64
	tempDir  string
	now      func() time.Time
}

func New(d Deps) *Service {
	if d.Log == nil {
		d.Log = logger.Discard()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.MinAudioBytes <= 0 {
		d.MinAudioBytes = 1024
	}
	return &Service{
		synth:    d.Synth,
		store:    d.Store,
		journal:  d.Journal,
		log:      d.Log.WithComponent("speech"),
		minBytes: d.MinAudioBytes,
		tempDir:  d.TempDir,
		now:      d.Now,
	}
}

// SynthesizePreview turns text into speech, stores it under a fresh name in
// the audios bucket and returns its public URL. The local artifact is
// removed on every path.
func (s *Service) SynthesizePreview(ctx context.Context, text, voiceID string) (Preview, error) {
	if s.synth == nil || !s.synth.Configured() {
		return Preview{}, errors.Config("tts.api_key", "speech synthesis credentials are not configured")
	}
	if s.store == nil {
		return Preview{}, errors.Config("storage.provider", "media storage is not configured")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Preview{}, errors.ValidationField("text", "text is required")
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return Preview{}, errors.ValidationField("text", "text is too long").WithField("max", MaxTextLength)
	}
	voiceID = strings.TrimSpace(voiceID)

	now := s.now()
	objectID := ids.NewIDAt(namePrefix, now) + ".mp3"
	log := s.log.FromContext(ctx).With("object_id", objectID)

	tmp, err := os.CreateTemp(s.tempDir, "lectern-preview-*.mp3")
	if err != nil {
		return Preview{}, errors.Wrap(err, "speech.tempfile", "create temp audio file")
	}
	tmpPath := tmp.Name()
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove temp audio file", "path", tmpPath, "error", err)
		}
	}()
	if err := tmp.Close(); err != nil {
		return Preview{}, errors.Wrap(err, "speech.tempfile", "close temp audio file")
	}

	written, err := s.synth.SynthesizeToFile(ctx, ports.SynthesisInput{Text: text, VoiceID: voiceID, Path: tmpPath})
	if err != nil {
		e := errors.WrapWithCode(err, errors.CodeSynthesis, "speech.synthesize", "speech synthesis failed")
		var se *clients.StatusError
		if errors.As(err, &se) {
			e = e.WithField("upstream_status", se.Status)
		}
		return Preview{}, e
	}

	size := written
	if info, err := os.Stat(tmpPath); err == nil {
		size = info.Size()
	}
	if size < s.minBytes {
		return Preview{}, errors.Newf(errors.CodeEmptyAudio, "synthesized audio is too small (%d bytes)", size).
			WithField("size", size).
			WithField("min_bytes", s.minBytes)
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return Preview{}, errors.Wrap(err, "speech.upload", "open temp audio file")
	}
	defer f.Close()

	out, err := s.store.Upload(ctx, ports.UploadInput{
		Bucket:      ports.BucketAudios,
		Key:         objectID,
		ContentType: "audio/mpeg",
		Reader:      f,
		Size:        size,
		Upsert:      true,
	})
	if err != nil {
		return Preview{}, errors.WrapWithCode(err, errors.CodeUpload, "speech.upload", "upload preview audio").
			WithField("bucket", ports.BucketAudios)
	}
	if out.Key != "" {
		objectID = out.Key
	}

	url, err := s.store.PublicURL(ctx, ports.BucketAudios, objectID)
	if err != nil {
		return Preview{}, errors.WrapWithCode(err, errors.CodeUpload, "speech.public_url", "resolve preview public url").
			WithField("bucket", ports.BucketAudios)
	}

	p := Preview{ObjectID: objectID, URL: url, Size: size, VoiceID: voiceID, CreatedAt: now.UTC()}
	log.Info("preview stored", "size", size, "provider", s.store.Provider())

	if s.journal != nil {
		rec := models.PreviewRecord{
			ObjectID:  p.ObjectID,
			URL:       p.URL,
			VoiceID:   p.VoiceID,
			Size:      p.Size,
			Provider:  s.store.Provider(),
			CreatedAt: p.CreatedAt,
		}
		if err := s.journal.RecordPreview(ctx, rec); err != nil {
			log.Warn("failed to record preview", "error", err)
		}
	}
	return p, nil
}
