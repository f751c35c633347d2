package storage

import (
	"context"
	"io"
)

// ObjectStore is the narrow contract the pipeline needs from its object
// storage tier. Backed by minio in production and by an in-memory store in
// tests and development.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Remove(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}
