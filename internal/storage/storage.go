package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/templui/docvault/internal/config"
)

var ErrObjectNotFound = errors.New("object not found")

// Storage is the blob store behind stored files. Keys are slash-separated.
type Storage interface {
	// Save stores size bytes read from r under key, replacing any previous object.
	// A failed Save leaves no object behind.
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Open returns a reader over the object at key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object at key. Missing objects are not an error.
	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)
}

// Presigner is implemented by backends that can hand out time-limited download links.
type Presigner interface {
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// New creates the storage backend selected by STORAGE_DRIVER.
func New(c *config.Config) (Storage, error) {
	switch c.StorageDriver {
	case config.StorageDriverS3:
		slog.Info("initializing S3 storage",
			"bucket", c.S3Bucket,
			"region", c.S3Region,
			"endpoint", c.S3Endpoint,
		)
		return NewS3Storage(S3Config{
			Region:        c.S3Region,
			Bucket:        c.S3Bucket,
			AccessKey:     c.S3AccessKey,
			SecretKey:     c.S3SecretKey,
			Endpoint:      c.S3Endpoint,
			PresignExpiry: c.S3PresignExpiry,
		})
	case config.StorageDriverLocal:
		slog.Info("initializing local storage", "path", c.StoragePath)
		return NewLocalStorage(c.StoragePath)
	}
	return nil, fmt.Errorf("unknown storage driver %q", c.StorageDriver)
}
