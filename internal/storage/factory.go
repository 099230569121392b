package storage

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"lectern/internal/adapters/storage/gdrive"
	"lectern/internal/adapters/storage/localfs"
	"lectern/internal/adapters/storage/natsobj"
	"lectern/internal/config"
)

// NewStore builds the backend selected by cfg.Provider. The returned close
// function releases connections held by the backend and is never nil.
func NewStore(ctx context.Context, cfg config.Storage) (Store, func(), error) {
	noop := func() {}

	switch cfg.Provider {
	case "", "localfs":
		return localfs.New(cfg.LocalRoot, cfg.PublicBaseURL), noop, nil

	case "natsobj":
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("lectern"))
		if err != nil {
			return nil, noop, fmt.Errorf("connect nats: %w", err)
		}
		js, err := nc.JetStream()
		if err != nil {
			nc.Close()
			return nil, noop, fmt.Errorf("jetstream: %w", err)
		}
		store, err := natsobj.New(js, cfg.PublicBaseURL)
		if err != nil {
			nc.Close()
			return nil, noop, err
		}
		return store, nc.Close, nil

	case "gdrive":
		store, err := newGDriveStore(ctx, cfg.GDrive)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}

func newGDriveStore(ctx context.Context, cfg config.GDrive) (Store, error) {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}

	tok := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	httpClient := conf.Client(context.Background(), tok)

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return gdrive.New(ctx, srv, cfg.FolderID)
}
