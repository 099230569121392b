package handlers

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"lectern/internal/pkg/errors"
	"lectern/internal/proxy"
)

const proxyCacheControl = "public, max-age=3600"

// Proxy streams a media object (?mediaId=) or an arbitrary upstream URL
// (?url=) back with permissive CORS headers.
func (h *Handler) Proxy(w http.ResponseWriter, r *http.Request) error {
	if h.proxy == nil {
		return errors.Config("storage.provider", "media proxy is not configured")
	}

	q := r.URL.Query()
	mediaID := strings.TrimSpace(q.Get("mediaId"))
	rawURL := strings.TrimSpace(q.Get("url"))
	ctx := proxy.WithRange(r.Context(), r.Header.Get("Range"))

	var (
		res *proxy.Resource
		err error
	)
	switch {
	case mediaID != "" && rawURL != "":
		return errors.Validation("pass either mediaId or url, not both")
	case mediaID != "":
		res, err = h.proxy.FetchMedia(ctx, mediaID)
	case rawURL != "":
		res, err = h.proxy.Fetch(ctx, rawURL)
	default:
		return errors.ValidationField("mediaId", "mediaId or url is required")
	}
	if err != nil {
		return err
	}
	defer res.Body.Close()

	hdr := w.Header()
	hdr.Set("Content-Type", res.ContentType)
	hdr.Set("Cache-Control", proxyCacheControl)
	if res.ContentLength >= 0 {
		hdr.Set("Content-Length", strconv.FormatInt(res.ContentLength, 10))
	}
	if res.ContentRange != "" {
		hdr.Set("Content-Range", res.ContentRange)
	}
	if cd := contentDisposition(res.Filename); cd != "" {
		hdr.Set("Content-Disposition", cd)
	}
	w.WriteHeader(res.Status)

	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := io.Copy(w, res.Body); err != nil {
		// Headers are out; the client sees a truncated body.
		h.log.FromContext(r.Context()).Warn("proxy stream interrupted", "error", err)
	}
	return nil
}

// contentDisposition quotes plain ASCII names and falls back to RFC 2231
// encoding for anything else.
func contentDisposition(name string) string {
	if name == "" {
		return ""
	}
	for _, c := range name {
		if c < 0x20 || c > 0x7e || c == '"' || c == '\\' {
			return mime.FormatMediaType("inline", map[string]string{"filename": name})
		}
	}
	return `inline; filename="` + name + `"`
}
