package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	ObjectURL(key string) string
	Bucket() string
}

// MediaStore persists user media (avatars, covers, thumbnails) in an
// object-storage backend and hands back the public URL stored on the
// user record.
type MediaStore struct {
	backend ObjectStorage
}

// NewMediaStore constructs a MediaStore over the provided backend.
func NewMediaStore(backend ObjectStorage) *MediaStore {
	return &MediaStore{backend: backend}
}

// EnsureBucket ensures the configured bucket exists.
func (s *MediaStore) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Upload stores one media object under a per-user, per-kind key and
// returns its public URL. kind is "avatar" or "cover".
func (s *MediaStore) Upload(ctx context.Context, kind string, userKey, filename string, r io.Reader, size int64, contentType string) (string, error) {
	key := objectKey(kind, userKey, filename)
	if err := s.backend.Put(ctx, key, r, size, contentType); err != nil {
		return "", err
	}
	return s.backend.ObjectURL(key), nil
}

// Remove deletes the object a previously returned URL points at. URLs
// that do not resolve to an object in the configured bucket are
// ignored, so records carrying externally hosted media survive a
// replacement untouched.
func (s *MediaStore) Remove(ctx context.Context, objectURL string) error {
	key, ok := s.objectKeyFromURL(objectURL)
	if !ok {
		return nil
	}
	return s.backend.Delete(ctx, key)
}

// objectKeyFromURL inverts ObjectURL: every backend serves objects at
// a path of the form /<bucket>/<key>.
func (s *MediaStore) objectKeyFromURL(objectURL string) (string, bool) {
	u, err := url.Parse(objectURL)
	if err != nil {
		return "", false
	}
	prefix := "/" + s.backend.Bucket() + "/"
	if !strings.HasPrefix(u.Path, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(u.Path, prefix)
	if key == "" {
		return "", false
	}
	return key, true
}

// Bucket returns the configured bucket name.
func (s *MediaStore) Bucket() string {
	return s.backend.Bucket()
}

func objectKey(kind, userKey, filename string) string {
	ext := path.Ext(filename)
	return fmt.Sprintf("%s/%s-%d%s", kind, userKey, time.Now().UnixNano(), ext)
}
