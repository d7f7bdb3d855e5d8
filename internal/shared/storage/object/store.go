package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound indicates no object exists at the storage key.
var ErrNotFound = errors.New("object not found")

// ObjectStore defines the contract for reading and writing binary objects by key.
type ObjectStore interface {
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Put(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
}
