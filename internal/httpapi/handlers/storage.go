package handlers

import (
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	"lectern/internal/pkg/errors"
	"lectern/internal/ports"
)

// ServeObject streams a stored object for backends whose public URLs point
// back at this service.
func (h *Handler) ServeObject(w http.ResponseWriter, r *http.Request) error {
	if h.store == nil {
		return errors.Config("storage.provider", "media storage is not configured")
	}
	bucket := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "*")
	if bucket != ports.BucketAudios && bucket != ports.BucketVideos {
		return errors.NotFound("bucket", bucket)
	}
	if err := ports.ValidateObjectPath(bucket, key); err != nil {
		return errors.ValidationField("key", err.Error())
	}

	rc, info, err := h.store.Open(r.Context(), bucket, key)
	if err != nil {
		if errors.Is(err, ports.ErrObjectNotFound) {
			return errors.NotFound("object", bucket+"/"+key)
		}
		return errors.WrapWithCode(err, errors.CodeFetch, "storage.open", "open stored object")
	}
	defer rc.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	w.Header().Set("Cache-Control", proxyCacheControl)

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, path.Base(key), info.ModTime, rs)
		return nil
	}

	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = io.Copy(w, rc)
	}
	return nil
}
