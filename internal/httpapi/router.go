package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"lectern/internal/httpapi/handlers"
	"lectern/internal/httpkit"
	"lectern/internal/pkg/logger"
	"lectern/internal/pkg/middleware"
)

type Deps struct {
	Handlers handlers.Deps
	Log      *logger.Logger
	CORS     httpkit.CORSOptions
	// PreviewLimiter throttles POST /previews per client IP; nil disables it.
	PreviewLimiter middleware.Limiter
	// Gate wraps the JSON API routes and /proxy (auth lives outside this
	// service). Pre-flight requests are answered before it runs.
	Gate func(http.Handler) http.Handler
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.Discard()
	}
	if d.Handlers.Log == nil {
		d.Handlers.Log = log
	}
	h := handlers.New(d.Handlers)
	wrap := func(fn middleware.ErrorHandlerFunc) http.HandlerFunc {
		return middleware.WrapHandler(log, fn)
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))
	r.Use(corsByRoute(httpkit.CORS(d.CORS)))

	// ---- HEALTH ----
	r.Get("/health", h.Health)

	// ---- MEDIA (any origin) ----
	r.Get("/storage/{bucket}/*", wrap(h.ServeObject))
	r.Head("/storage/{bucket}/*", wrap(h.ServeObject))

	// ---- API ----
	r.Group(func(r chi.Router) {
		if d.Gate != nil {
			r.Use(d.Gate)
		}

		r.Get("/proxy", wrap(h.Proxy))
		r.Head("/proxy", wrap(h.Proxy))

		r.Get("/compositions", wrap(h.ListCompositions))

		r.Post("/renders", wrap(h.PostRender))
		r.Get("/renders", wrap(h.ListRenders))
		r.Get("/renders/{renderId}", wrap(h.GetRender))
		r.Get("/renders/{renderId}/progress", wrap(h.GetProgress))

		preview := r
		if d.PreviewLimiter != nil {
			preview = r.With(middleware.RateLimit(log, d.PreviewLimiter))
		}
		preview.Post("/previews", wrap(h.PostPreview))
	})

	return r
}

// corsByRoute applies permissive CORS to media routes and api to the rest.
// Both answer OPTIONS themselves, before routing.
func corsByRoute(api func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		apiNext := api(next)
		mediaNext := httpkit.PermissiveCORS(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isMediaPath(r.URL.Path) {
				mediaNext.ServeHTTP(w, r)
				return
			}
			apiNext.ServeHTTP(w, r)
		})
	}
}

func isMediaPath(p string) bool {
	return p == "/proxy" || strings.HasPrefix(p, "/storage/")
}
