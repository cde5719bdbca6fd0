package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
)

// ErrObjectNotFound indicates the key has no stored object.
var ErrObjectNotFound = errors.New("platform/storage: object not found")

// GCS stores objects in a Google Cloud Storage bucket. It assumes Application
// Default Credentials are configured.
type GCS struct {
	client *gcs.Client
	bucket string
}

// NewGCS creates a storage client bound to bucket.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("platform/storage: gcs bucket required")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("platform/storage: create gcs client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Put uploads payload under key.
func (s *GCS) Put(ctx context.Context, key string, payload []byte, contentType string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("platform/storage: write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("platform/storage: finalize %s: %w", key, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}

// Open streams the object; the payload is never buffered whole.
func (s *GCS) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("platform/storage: open %s: %w", key, err)
	}
	return r, nil
}

// Close releases the underlying client.
func (s *GCS) Close() error {
	return s.client.Close()
}
