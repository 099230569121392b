package main

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"lectern/internal/app"
	"lectern/internal/config"
	"lectern/internal/httpapi"
	"lectern/internal/httpapi/handlers"
	"lectern/internal/httpkit"
	"lectern/internal/pkg/logger"
	"lectern/internal/pkg/middleware"
	"lectern/internal/pkg/shutdown"
	"lectern/internal/ratelimit"
)

var version = "0.1.0"

func main() {
	config.LoadDotEnv()

	cfg, err := config.Load("")
	if err != nil {
		logger.NewDefault().LogFatal("failed to load configuration", err)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		AddSource:   cfg.Log.Source,
		ServiceName: "lectern-api",
	})

	log.Info("starting lectern API", "version", version)

	ctx := context.Background()

	shutdownMgr := shutdown.NewManager(log, time.Duration(cfg.HTTP.ShutdownTimeoutSeconds)*time.Second)

	deps, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.LogFatal("failed to initialize services", err)
	}
	for _, c := range deps.Closers() {
		shutdownMgr.Register(c.Name, c.Close)
	}

	// A nil *redis.Client must stay a nil interface.
	var rdb redis.Cmdable
	if deps.RDB != nil {
		rdb = deps.RDB
	}

	var limiter middleware.Limiter
	if cfg.RateLimit.PreviewsPerMinute > 0 {
		limiter = ratelimit.New(rdb, "previews", cfg.RateLimit.PreviewsPerMinute, log)
	}

	hd := handlers.Deps{
		Log:          log,
		Compositions: deps.Compositions,
		Renders:      deps.Renders,
		Previews:     deps.Speech,
		Proxy:        deps.Proxy,
		Store:        deps.Store,
		Ledger:       deps.Ledger,
		RDB:          rdb,
		Version:      version,
	}

	var gate func(http.Handler) http.Handler
	if cfg.HTTP.APIToken != "" {
		gate = middleware.BearerToken(log, cfg.HTTP.APIToken)
	} else {
		log.Warn("API_TOKEN is not set; the API and /proxy accept any caller")
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Handlers: hd,
		Log:      log,
		CORS: httpkit.CORSOptions{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "Accept", middleware.RequestIDHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAgeSeconds:  600,
			DebugHeader:    cfg.CORS.Debug,
		},
		PreviewLimiter: limiter,
		Gate:           gate,
	})

	// No WriteTimeout: proxied media and long bundling calls stream for as
	// long as the client stays connected.
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}
