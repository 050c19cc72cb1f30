package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Get when no bytes exist for the key.
var ErrObjectNotFound = errors.New("object not found")

// BlobStorage is the byte store behind share records. Keys are opaque to the
// vault; it only ever round-trips the key a Put produced.
type BlobStorage interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Get returns a reader over the object's bytes. The caller must close it
	// on every exit path.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
