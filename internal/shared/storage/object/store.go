package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Open when no object exists at the key.
var ErrNotFound = errors.New("object not found")

// ObjectStore stores generated deliverables and serves uploaded documents.
// Keys are slash-separated and relative to the store root.
type ObjectStore interface {
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}
