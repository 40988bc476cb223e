package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	// URL returns the public address of an object.
	URL(key string) string
	Bucket() string
}

// ImageStore uploads product images to an ObjectStorage backend under a
// "products/" prefix and hands back public URLs.
type ImageStore struct {
	backend ObjectStorage
	prefix  string
	now     func() time.Time
}

func NewImageStore(backend ObjectStorage) *ImageStore {
	return &ImageStore{backend: backend, prefix: "products", now: time.Now}
}

// EnsureBucket ensures the configured bucket exists.
func (s *ImageStore) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Upload stores one image and returns its public URL.
func (s *ImageStore) Upload(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error) {
	key := s.objectKey(filename)
	if err := s.backend.Put(ctx, key, r, size, contentType); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return s.backend.URL(key), nil
}

// Remove deletes an object previously returned by Upload. URLs that do not
// belong to the backend are ignored.
func (s *ImageStore) Remove(ctx context.Context, url string) error {
	base := s.backend.URL("")
	if !strings.HasPrefix(url, base) {
		return nil
	}
	return s.backend.Delete(ctx, strings.TrimPrefix(url, base))
}

// objectKey builds products/2006/01/<uuid><ext>.
func (s *ImageStore) objectKey(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(s.prefix, s.now().UTC().Format("2006/01"), uuid.NewString()+ext)
}
