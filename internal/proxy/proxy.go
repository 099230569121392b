// Package proxy fetches media from upstream URLs so browsers can read it
// without cross-origin restrictions.
package proxy

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	"lectern/internal/media"
	"lectern/internal/pkg/errors"
	"lectern/internal/pkg/logger"
)

// DefaultContentType is used when the upstream sends none.
const DefaultContentType = "application/octet-stream"

// Resource is an upstream response being streamed back to a client. The
// caller must close Body.
type Resource struct {
	Status        int
	ContentType   string
	ContentLength int64
	ContentRange  string
	Filename      string
	Body          io.ReadCloser
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// MediaResolver locates a media id in storage.
type MediaResolver interface {
	Resolve(ctx context.Context, mediaID string) (media.MediaObject, error)
}

type Proxy struct {
	http     Doer
	resolver MediaResolver
	log      *logger.Logger
	allowed  map[string]bool
}

type Option func(*Proxy)

// WithAllowedHosts restricts Fetch to the given host names. Ports are
// ignored. No hosts means any host.
func WithAllowedHosts(hosts ...string) Option {
	return func(p *Proxy) {
		for _, h := range hosts {
			h = strings.ToLower(strings.TrimSpace(h))
			if h == "" {
				continue
			}
			if p.allowed == nil {
				p.allowed = map[string]bool{}
			}
			p.allowed[h] = true
		}
	}
}

// New returns a Proxy. A nil client gets a timeout-free *http.Client; the
// request context bounds every fetch.
func New(hc Doer, resolver MediaResolver, log *logger.Logger, opts ...Option) *Proxy {
	if hc == nil {
		hc = &http.Client{}
	}
	if log == nil {
		log = logger.Discard()
	}
	p := &Proxy{http: hc, resolver: resolver, log: log.WithComponent("proxy")}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HostAllowed reports whether Fetch may contact host.
func (p *Proxy) HostAllowed(host string) bool {
	if len(p.allowed) == 0 {
		return true
	}
	return p.allowed[strings.ToLower(host)]
}

// CheckRedirect keeps redirects inside the allowed hosts. It is meant for
// the CheckRedirect field of the *http.Client given to New.
func (p *Proxy) CheckRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return errors.New(errors.CodeFetch, "stopped after 10 redirects")
	}
	if !p.HostAllowed(req.URL.Hostname()) {
		return errors.New(errors.CodeFetch, "redirect to a host that is not allowed").WithField("host", req.URL.Host)
	}
	return nil
}

// Fetch opens rawURL upstream. Network failures are FETCH errors with 502;
// non-2xx answers are FETCH errors carrying the upstream status.
func (p *Proxy) Fetch(ctx context.Context, rawURL string) (*Resource, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.ValidationField("url", "url must be an absolute http(s) URL")
	}
	if !p.HostAllowed(u.Hostname()) {
		return nil, errors.ValidationField("url", "host "+u.Hostname()+" is not allowed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeFetch, "proxy.fetch", "build upstream request")
	}
	if rng := rangeFromContext(ctx); rng != "" {
		req.Header.Set("Range", rng)
	}

	res, err := p.http.Do(req)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeFetch, "proxy.fetch", "upstream request failed").
			WithField("host", u.Host)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))
		res.Body.Close()
		return nil, errors.Newf(errors.CodeFetch, "upstream responded %d", res.StatusCode).
			WithStatus(res.StatusCode).
			WithField("host", u.Host).
			WithField("upstream_status", res.StatusCode)
	}

	ct := res.Header.Get("Content-Type")
	if ct == "" {
		ct = DefaultContentType
	}
	return &Resource{
		Status:        res.StatusCode,
		ContentType:   ct,
		ContentLength: res.ContentLength,
		ContentRange:  res.Header.Get("Content-Range"),
		Filename:      FilenameFromURL(u),
		Body:          res.Body,
	}, nil
}

// FetchMedia resolves mediaID across buckets and fetches its public URL.
func (p *Proxy) FetchMedia(ctx context.Context, mediaID string) (*Resource, error) {
	if p.resolver == nil {
		return nil, errors.Config("storage.provider", "media resolution is not configured")
	}
	obj, err := p.resolver.Resolve(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	res, err := p.Fetch(ctx, obj.PublicURL)
	if err != nil {
		return nil, err
	}
	if res.Filename == "" {
		res.Filename = path.Base(obj.ID)
	}
	return res, nil
}

var plausibleName = regexp.MustCompile(`^[\w\-. ()]{1,200}\.[A-Za-z0-9]{1,8}$`)

// FilenameFromURL returns the last path segment when it looks like a file
// name, or "".
func FilenameFromURL(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	if !plausibleName.MatchString(name) || strings.HasPrefix(name, ".") {
		return ""
	}
	return name
}

type rangeKey struct{}

// WithRange forwards a client Range header to the upstream fetch.
func WithRange(ctx context.Context, rng string) context.Context {
	if rng == "" {
		return ctx
	}
	return context.WithValue(ctx, rangeKey{}, rng)
}

func rangeFromContext(ctx context.Context) string {
	s, _ := ctx.Value(rangeKey{}).(string)
	return s
}
