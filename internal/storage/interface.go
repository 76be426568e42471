package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage stores small documents by key. Objects are read and written whole.
type ObjectStorage interface {
	// Prepare makes the backing bucket usable, creating it where the provider allows.
	Prepare(ctx context.Context) error
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}
