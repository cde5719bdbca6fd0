// Package storage persists raw import payloads in durable object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// ObjectStore is the durable object storage consumed by the import pipeline.
type ObjectStore interface {
	// Put stores payload under key and returns a locator URL.
	Put(ctx context.Context, key string, payload []byte, contentType string) (string, error)
	// Open streams the object stored under key. Callers must close the reader.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Close releases client resources.
	Close() error
}

// Config selects and configures an ObjectStore backend.
type Config struct {
	Driver string
	Bucket string
	Dir    string
}

// New builds the configured backend.
func New(ctx context.Context, cfg Config) (ObjectStore, error) {
	switch cfg.Driver {
	case "gcs":
		return NewGCS(ctx, cfg.Bucket)
	case "fs", "":
		return NewFilesystem(cfg.Dir)
	default:
		return nil, fmt.Errorf("platform/storage: unsupported driver %q", cfg.Driver)
	}
}

// ImportKey returns the batch-scoped key for an uploaded file.
func ImportKey(clientID, batchID, fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload.csv"
	}
	return path.Join("imports", clientID, batchID, base)
}

func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("platform/storage: invalid key %q", key)
	}
	return cleaned, nil
}
