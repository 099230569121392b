// Package media resolves media ids to public URLs across the audio and
// video buckets.
package media

import (
	"context"
	"path"
	"strings"

	"lectern/internal/pkg/errors"
	"lectern/internal/pkg/logger"
	"lectern/internal/ports"
)

// MediaObject is a stored media file located in one bucket.
type MediaObject struct {
	ID        string `json:"id"`
	Bucket    string `json:"bucket"`
	PublicURL string `json:"public_url"`
}

var audioExtensions = map[string]bool{".mp3": true, ".wav": true, ".ogg": true}

// Category returns the bucket a media id belongs to by its extension.
func Category(mediaID string) string {
	if audioExtensions[strings.ToLower(path.Ext(mediaID))] {
		return ports.BucketAudios
	}
	return ports.BucketVideos
}

// Candidates returns the buckets to try, primary category first.
func Candidates(mediaID string) []string {
	if Category(mediaID) == ports.BucketAudios {
		return []string{ports.BucketAudios, ports.BucketVideos}
	}
	return []string{ports.BucketVideos, ports.BucketAudios}
}

// LookupFunc asks storage for the public URL of the object in bucket.
type LookupFunc func(ctx context.Context, bucket string) (string, error)

// FirstFound tries each bucket in order and returns the first hit. A miss
// (ports.ErrObjectNotFound) moves on; any other failure stops the search.
func FirstFound(ctx context.Context, mediaID string, buckets []string, lookup LookupFunc) (MediaObject, error) {
	for _, bucket := range buckets {
		url, err := lookup(ctx, bucket)
		if err == nil {
			return MediaObject{ID: mediaID, Bucket: bucket, PublicURL: url}, nil
		}
		if !errors.Is(err, ports.ErrObjectNotFound) {
			return MediaObject{}, errors.WrapWithCode(err, errors.CodeFetch, "media.resolve", "storage lookup failed").
				WithField("bucket", bucket)
		}
	}
	return MediaObject{}, errors.NotFound("media", mediaID).WithField("buckets", strings.Join(buckets, ","))
}

// Resolver locates media objects in storage.
type Resolver struct {
	store ports.MediaStore
	log   *logger.Logger
}

func NewResolver(store ports.MediaStore, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Discard()
	}
	return &Resolver{store: store, log: log.WithComponent("media")}
}

// Resolve finds mediaID in its primary bucket, then in the other one.
func (r *Resolver) Resolve(ctx context.Context, mediaID string) (MediaObject, error) {
	mediaID = strings.TrimSpace(mediaID)
	if mediaID == "" {
		return MediaObject{}, errors.ValidationField("mediaId", "mediaId is required")
	}
	if err := ports.ValidateObjectPath(ports.BucketVideos, mediaID); err != nil {
		return MediaObject{}, errors.ValidationField("mediaId", err.Error())
	}

	buckets := Candidates(mediaID)
	obj, err := FirstFound(ctx, mediaID, buckets, func(ctx context.Context, bucket string) (string, error) {
		return r.store.PublicURL(ctx, bucket, mediaID)
	})
	if err != nil {
		return MediaObject{}, err
	}

	if obj.Bucket != buckets[0] {
		r.log.FromContext(ctx).Info("media found in fallback bucket",
			"media_id", mediaID, "expected", buckets[0], "bucket", obj.Bucket)
	}
	return obj, nil
}
