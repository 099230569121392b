// Package app builds the lectern services from configuration. Both the API
// server and the operator CLI start from here.
package app

import (
	"context"
	"net/http"

	"github.com/redis/go-redis/v9"

	"lectern/internal/clients/bundler"
	"lectern/internal/clients/renderer"
	"lectern/internal/clients/tts"
	"lectern/internal/compositions"
	"lectern/internal/config"
	"lectern/internal/ledger"
	"lectern/internal/media"
	"lectern/internal/pkg/errors"
	"lectern/internal/pkg/logger"
	"lectern/internal/proxy"
	"lectern/internal/render"
	"lectern/internal/speech"
	"lectern/internal/storage"
)

// Deps holds every constructed collaborator. Nothing here is global.
type Deps struct {
	Config *config.Config
	Log    *logger.Logger

	Store  storage.Store
	Ledger ledger.Store
	// RDB is nil when redis.addr is empty.
	RDB *redis.Client

	Resolver     *media.Resolver
	Proxy        *proxy.Proxy
	Speech       *speech.Service
	Compositions *compositions.Resolver
	Renders      *render.Dispatcher

	closers []Closer
}

// Closer releases one resource opened by Build.
type Closer struct {
	Name  string
	Close func(context.Context) error
}

// Build connects storage, the ledger and redis, then wires the components.
// On error everything opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *Deps, err error) {
	if log == nil {
		log = logger.Discard()
	}
	d := &Deps{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			d.Close(ctx)
		}
	}()

	store, closeStore, err := storage.NewStore(ctx, cfg.Storage)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeConfig, "app.storage", "initialize storage provider").
			WithField("setting", "storage.provider")
	}
	d.Store = store
	d.addCloser("storage", func(context.Context) error { closeStore(); return nil })
	log.Info("storage provider initialized", "provider", store.Provider())

	led, err := ledger.Open(ctx, cfg.Ledger)
	if err != nil {
		return nil, err
	}
	d.Ledger = led
	d.addCloser("ledger", func(context.Context) error { return led.Close() })
	log.Info("render ledger ready", "driver", led.Driver())

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.RDB = rdb
		d.addCloser("redis", func(context.Context) error { return rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			// Rate limiting falls back to process memory.
			log.Warn("redis unreachable at startup", "addr", cfg.Redis.Addr, "error", err)
		}
	}

	// No client timeouts; request contexts bound every call.
	hc := &http.Client{}

	d.Resolver = media.NewResolver(store, log)
	proxyClient := &http.Client{}
	d.Proxy = proxy.New(proxyClient, d.Resolver, log, proxy.WithAllowedHosts(cfg.Proxy.AllowedHosts...))
	proxyClient.CheckRedirect = d.Proxy.CheckRedirect

	d.Speech = speech.New(speech.Deps{
		Synth:         tts.NewHTTPClient(cfg.TTS.ServiceURL, cfg.TTS.APIKey, cfg.TTS.Model, cfg.TTS.VoiceID, hc),
		Store:         store,
		Journal:       led,
		Log:           log,
		MinAudioBytes: cfg.TTS.MinAudioBytes,
	})

	d.Compositions = compositions.NewResolver(
		bundler.NewHTTPClient(cfg.Bundler.ServiceURL, cfg.Bundler.APIKey, hc),
		cfg.Bundler.EntryPoint,
		log,
	)

	d.Renders = render.NewDispatcher(render.Deps{
		Service: renderer.NewHTTPClient(cfg.Render.ServiceURL, cfg.Render.APIKey, hc),
		Bundles: d.Compositions,
		Journal: led,
		Defaults: render.Target{
			Region:   cfg.Render.Region,
			Function: cfg.Render.Function,
			Bucket:   cfg.Render.Bucket,
		},
		Log: log,
	})

	return d, nil
}

func (d *Deps) addCloser(name string, fn func(context.Context) error) {
	d.closers = append(d.closers, Closer{Name: name, Close: fn})
}

// Closers returns cleanup functions in the order they were opened, for
// registration with a shutdown manager.
func (d *Deps) Closers() []Closer {
	return d.closers
}

// Close releases every resource in reverse order, logging failures.
func (d *Deps) Close(ctx context.Context) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		c := d.closers[i]
		if err := c.Close(ctx); err != nil {
			d.Log.Warn("close failed", "resource", c.Name, "error", err)
		}
	}
	d.closers = nil
}
