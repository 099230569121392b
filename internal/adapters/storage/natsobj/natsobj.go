// Package natsobj stores media in NATS JetStream object stores, one store
// per bucket.
package natsobj

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"lectern/internal/ports"
)

// Store implements ports.MediaStore. Objects are served back through the
// API's storage route.
type Store struct {
	stores     map[string]nats.ObjectStore
	publicBase string
}

var _ ports.MediaStore = (*Store)(nil)

// New creates (or binds to) an object store for every bucket.
func New(js nats.JetStreamContext, publicBase string, buckets ...string) (*Store, error) {
	if len(buckets) == 0 {
		buckets = []string{ports.BucketAudios, ports.BucketVideos}
	}

	s := &Store{stores: make(map[string]nats.ObjectStore, len(buckets)), publicBase: publicBase}
	for _, bucket := range buckets {
		store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
			Bucket:      bucket,
			Description: fmt.Sprintf("lectern %s media", bucket),
			Storage:     nats.FileStorage,
			Replicas:    1,
		})
		if err != nil {
			if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
				return nil, fmt.Errorf("create object store bucket %q: %w", bucket, err)
			}
			store, err = js.ObjectStore(bucket)
			if err != nil {
				return nil, fmt.Errorf("bind object store bucket %q: %w", bucket, err)
			}
		}
		s.stores[bucket] = store
	}
	return s, nil
}

func (s *Store) Provider() string { return "natsobj" }

func (s *Store) bucket(bucket, key string) (nats.ObjectStore, error) {
	if err := ports.ValidateObjectPath(bucket, key); err != nil {
		return nil, err
	}
	store, ok := s.stores[bucket]
	if !ok {
		return nil, fmt.Errorf("bucket %q: %w", bucket, ports.ErrObjectNotFound)
	}
	return store, nil
}

func (s *Store) PublicURL(ctx context.Context, bucket, key string) (string, error) {
	store, err := s.bucket(bucket, key)
	if err != nil {
		return "", err
	}
	if _, err := store.GetInfo(key, nats.Context(ctx)); err != nil {
		return "", mapErr(bucket, key, err)
	}
	return ports.ServedURL(s.publicBase, bucket, key), nil
}

func (s *Store) Upload(ctx context.Context, in ports.UploadInput) (ports.UploadOutput, error) {
	store, err := s.bucket(in.Bucket, in.Key)
	if err != nil {
		return ports.UploadOutput{}, err
	}
	if !in.Upsert {
		if _, err := store.GetInfo(in.Key, nats.Context(ctx)); err == nil {
			return ports.UploadOutput{}, fmt.Errorf("object %s/%s already exists", in.Bucket, in.Key)
		}
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = ports.ContentTypeByKey(in.Key)
	}
	meta := &nats.ObjectMeta{Name: in.Key}
	if contentType != "" {
		meta.Headers = nats.Header{}
		meta.Headers.Set("Content-Type", contentType)
	}

	info, err := store.Put(meta, in.Reader, nats.Context(ctx))
	if err != nil {
		return ports.UploadOutput{}, fmt.Errorf("put object %s/%s: %w", in.Bucket, in.Key, err)
	}
	return ports.UploadOutput{Key: in.Key, Size: int64(info.Size)}, nil
}

func (s *Store) Open(ctx context.Context, bucket, key string) (io.ReadCloser, ports.ObjectInfo, error) {
	store, err := s.bucket(bucket, key)
	if err != nil {
		return nil, ports.ObjectInfo{}, err
	}
	obj, err := store.Get(key, nats.Context(ctx))
	if err != nil {
		return nil, ports.ObjectInfo{}, mapErr(bucket, key, err)
	}

	info := ports.ObjectInfo{Key: key}
	if oi, err := obj.Info(); err == nil {
		info.Size = int64(oi.Size)
		info.ModTime = oi.ModTime
		if oi.Headers != nil {
			info.ContentType = oi.Headers.Get("Content-Type")
		}
	}
	if info.ContentType == "" {
		info.ContentType = ports.ContentTypeByKey(key)
	}
	return obj, info, nil
}

func mapErr(bucket, key string, err error) error {
	if errors.Is(err, nats.ErrObjectNotFound) || errors.Is(err, jetstream.ErrObjectNotFound) {
		return fmt.Errorf("%s/%s: %w", bucket, key, ports.ErrObjectNotFound)
	}
	return fmt.Errorf("%s/%s: %w", bucket, key, err)
}
