package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"lectern/internal/ports"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Client implements ports.MediaStore backed by Google Drive. Each bucket is
// a folder under the configured root folder and the object key is the file
// name inside it. Uploaded files are shared with anyone holding the link.
type Client struct {
	srv     *drive.Service
	folders map[string]string
}

var _ ports.MediaStore = (*Client)(nil)

// New resolves (creating when missing) one folder per bucket under
// rootFolderID. An empty rootFolderID means the Drive root.
func New(ctx context.Context, srv *drive.Service, rootFolderID string, buckets ...string) (*Client, error) {
	if len(buckets) == 0 {
		buckets = []string{ports.BucketAudios, ports.BucketVideos}
	}
	if rootFolderID == "" {
		rootFolderID = "root"
	}

	c := &Client{srv: srv, folders: make(map[string]string, len(buckets))}
	for _, bucket := range buckets {
		id, err := c.ensureFolder(ctx, rootFolderID, bucket)
		if err != nil {
			return nil, fmt.Errorf("gdrive folder %q: %w", bucket, err)
		}
		c.folders[bucket] = id
	}
	return c, nil
}

func (c *Client) Provider() string { return "gdrive" }

func (c *Client) ensureFolder(ctx context.Context, parent, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and '%s' in parents and trashed = false",
		escapeQuery(name), folderMimeType, escapeQuery(parent))
	list, err := c.srv.Files.List().Q(q).Fields("files(id,name)").PageSize(1).
		SupportsAllDrives(true).IncludeItemsFromAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}

	created, err := c.srv.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parent},
	}).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return created.Id, nil
}

func (c *Client) find(ctx context.Context, bucket, key string) (*drive.File, error) {
	if err := ports.ValidateObjectPath(bucket, key); err != nil {
		return nil, err
	}
	folder, ok := c.folders[bucket]
	if !ok {
		return nil, fmt.Errorf("bucket %q: %w", bucket, ports.ErrObjectNotFound)
	}

	q := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false", escapeQuery(key), escapeQuery(folder))
	list, err := c.srv.Files.List().Q(q).
		Fields("files(id,name,mimeType,size,modifiedTime,webContentLink)").
		PageSize(1).SupportsAllDrives(true).IncludeItemsFromAllDrives(true).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gdrive lookup failed: %w", err)
	}
	if len(list.Files) == 0 {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, ports.ErrObjectNotFound)
	}
	return list.Files[0], nil
}

func (c *Client) PublicURL(ctx context.Context, bucket, key string) (string, error) {
	f, err := c.find(ctx, bucket, key)
	if err != nil {
		return "", err
	}
	if f.WebContentLink != "" {
		return f.WebContentLink, nil
	}
	return "https://drive.google.com/uc?id=" + f.Id + "&export=download", nil
}

func (c *Client) Upload(ctx context.Context, in ports.UploadInput) (ports.UploadOutput, error) {
	existing, err := c.find(ctx, in.Bucket, in.Key)
	if err != nil && !isNotFound(err) {
		return ports.UploadOutput{}, err
	}
	if existing != nil && !in.Upsert {
		return ports.UploadOutput{}, fmt.Errorf("object %s/%s already exists", in.Bucket, in.Key)
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = ports.ContentTypeByKey(in.Key)
	}
	var media []googleapi.MediaOption
	if contentType != "" {
		media = append(media, googleapi.ContentType(contentType))
	}

	var stored *drive.File
	if existing != nil {
		stored, err = c.srv.Files.Update(existing.Id, &drive.File{}).
			Media(in.Reader, media...).SupportsAllDrives(true).Fields("id,size").Context(ctx).Do()
	} else {
		stored, err = c.srv.Files.Create(&drive.File{Name: in.Key, Parents: []string{c.folders[in.Bucket]}}).
			Media(in.Reader, media...).SupportsAllDrives(true).Fields("id,size").Context(ctx).Do()
	}
	if err != nil {
		return ports.UploadOutput{}, fmt.Errorf("gdrive upload failed: %w", err)
	}

	if existing == nil {
		_, err = c.srv.Permissions.Create(stored.Id, &drive.Permission{Type: "anyone", Role: "reader"}).
			SupportsAllDrives(true).Context(ctx).Do()
		if err != nil {
			return ports.UploadOutput{}, fmt.Errorf("gdrive share failed: %w", err)
		}
	}

	size := stored.Size
	if size == 0 {
		size = in.Size
	}
	return ports.UploadOutput{Key: in.Key, ProviderID: stored.Id, Size: size}, nil
}

func (c *Client) Open(ctx context.Context, bucket, key string) (io.ReadCloser, ports.ObjectInfo, error) {
	f, err := c.find(ctx, bucket, key)
	if err != nil {
		return nil, ports.ObjectInfo{}, err
	}

	resp, err := c.srv.Files.Get(f.Id).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, ports.ObjectInfo{}, fmt.Errorf("gdrive download failed: %w", err)
	}

	info := ports.ObjectInfo{
		Key:         key,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}
	if info.ContentType == "" {
		info.ContentType = f.MimeType
	}
	return resp.Body, info, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ports.ErrObjectNotFound)
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
