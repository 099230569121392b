package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"lectern/internal/ports"
)

// LocalFS implements ports.MediaStore on the local filesystem. Objects live
// at root/bucket/key and are served back through the API's storage route.
type LocalFS struct {
	root       string
	publicBase string
}

var _ ports.MediaStore = (*LocalFS)(nil)

func New(root, publicBase string) *LocalFS {
	return &LocalFS{root: root, publicBase: publicBase}
}

func (l *LocalFS) Provider() string { return "localfs" }

func (l *LocalFS) path(bucket, key string) (string, error) {
	if err := ports.ValidateObjectPath(bucket, key); err != nil {
		return "", err
	}
	return filepath.Join(l.root, bucket, filepath.FromSlash(key)), nil
}

func (l *LocalFS) PublicURL(ctx context.Context, bucket, key string) (string, error) {
	p, err := l.path(bucket, key)
	if err != nil {
		return "", err
	}
	st, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s/%s: %w", bucket, key, ports.ErrObjectNotFound)
		}
		return "", err
	}
	if st.IsDir() {
		return "", fmt.Errorf("%s/%s: %w", bucket, key, ports.ErrObjectNotFound)
	}
	return ports.ServedURL(l.publicBase, bucket, key), nil
}

// Upload writes to a temp file in the destination directory and renames it
// into place, so readers never observe a partial object.
func (l *LocalFS) Upload(ctx context.Context, in ports.UploadInput) (ports.UploadOutput, error) {
	dst, err := l.path(in.Bucket, in.Key)
	if err != nil {
		return ports.UploadOutput{}, err
	}
	if !in.Upsert {
		if _, err := os.Stat(dst); err == nil {
			return ports.UploadOutput{}, fmt.Errorf("object %s/%s already exists", in.Bucket, in.Key)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ports.UploadOutput{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return ports.UploadOutput{}, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, in.Reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return ports.UploadOutput{}, err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return ports.UploadOutput{}, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return ports.UploadOutput{}, err
	}

	return ports.UploadOutput{Key: in.Key, Size: n}, nil
}

func (l *LocalFS) Open(ctx context.Context, bucket, key string) (io.ReadCloser, ports.ObjectInfo, error) {
	p, err := l.path(bucket, key)
	if err != nil {
		return nil, ports.ObjectInfo{}, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ports.ObjectInfo{}, fmt.Errorf("%s/%s: %w", bucket, key, ports.ErrObjectNotFound)
		}
		return nil, ports.ObjectInfo{}, err
	}

	info := ports.ObjectInfo{Key: key}
	if st, statErr := f.Stat(); statErr == nil {
		if st.IsDir() {
			f.Close()
			return nil, ports.ObjectInfo{}, fmt.Errorf("%s/%s: %w", bucket, key, ports.ErrObjectNotFound)
		}
		info.Size = st.Size()
		info.ModTime = st.ModTime()
	}

	// Prefer extension-based type. If empty, sniff first bytes.
	info.ContentType = ports.ContentTypeByKey(key)
	if info.ContentType == "" {
		buf := make([]byte, 512)
		n, _ := f.Read(buf)
		_, _ = f.Seek(0, io.SeekStart)
		info.ContentType = http.DetectContentType(buf[:n])
	}

	return f, info, nil
}
