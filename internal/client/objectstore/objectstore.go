package objectstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Download when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// Client stores reassembled upload artifacts by key.
type Client interface {
	Upload(ctx context.Context, key string, content io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
