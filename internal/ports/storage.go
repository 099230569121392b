package ports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"
)

// Bucket names the two media categories kept in object storage.
const (
	BucketAudios = "audios"
	BucketVideos = "videos"
)

// ErrObjectNotFound is returned (possibly wrapped) when a key is absent
// from a bucket.
var ErrObjectNotFound = errors.New("object not found")

type UploadInput struct {
	Bucket      string
	Key         string
	ContentType string
	Reader      io.Reader
	Size        int64
	// Upsert replaces an existing object with the same key instead of failing.
	Upsert bool
}

type UploadOutput struct {
	// Key as stored; gdrive keeps the name and reports the Drive file id in
	// ProviderID.
	Key        string
	ProviderID string
	Size       int64
}

type ObjectInfo struct {
	Key         string
	ContentType string
	Size        int64
	ModTime     time.Time
}

// MediaStore is the object storage contract (localfs, natsobj, gdrive).
type MediaStore interface {
	Provider() string

	// PublicURL returns a URL any client can GET the object from, or an
	// error wrapping ErrObjectNotFound when the key is absent.
	PublicURL(ctx context.Context, bucket, key string) (string, error)
	Upload(ctx context.Context, in UploadInput) (UploadOutput, error)
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error)
}

// ValidateObjectPath rejects bucket and key values that could escape the
// bucket namespace on path-based backends.
func ValidateObjectPath(bucket, key string) error {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return fmt.Errorf("invalid bucket %q", bucket)
	}
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return fmt.Errorf("invalid object key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid object key %q", key)
		}
	}
	return nil
}

// ServedURL is the public URL of an object streamed back by this service's
// GET /storage/{bucket}/{key} route.
func ServedURL(publicBase, bucket, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.TrimRight(publicBase, "/") + "/storage/" + url.PathEscape(bucket) + "/" + strings.Join(parts, "/")
}

var mediaTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
}

// ContentTypeByKey infers a media type from the key's extension, or "".
func ContentTypeByKey(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ct, ok := mediaTypes[ext]; ok {
		return ct
	}
	return mime.TypeByExtension(ext)
}
