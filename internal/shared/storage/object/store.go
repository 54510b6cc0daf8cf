package object

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by Open and Delete when the key does not exist.
var ErrNotFound = errors.New("object not found")

// Info describes a stored object.
type Info struct {
	Key        string
	SizeBytes  int64
	ModifiedAt time.Time
}

// ObjectStore is the contract for the document folder and the cache file.
type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]Info, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Delete(ctx context.Context, storageKey string) error
}
