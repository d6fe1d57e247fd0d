package storage

import (
	"context"
	"time"
)

// ObjectInfo describes a stored object's bookkeeping metadata.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
}

// Backend is the key/path-shaped storage abstraction both the local
// filesystem and an S3-compatible remote object store satisfy
// identically (spec.md §4.4, "Backends").
type Backend interface {
	// Get returns the full contents of key. Returns an error satisfying
	// errors.Is(err, ErrNotExist) if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes data to key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte) error

	// List returns every object whose key has the given prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Copy duplicates src to dst without removing src.
	Copy(ctx context.Context, src, dst string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// ErrNotExist is returned by Get when the key does not exist.
var ErrNotExist = errNotExist{}

type errNotExist struct{}

func (errNotExist) Error() string { return "storage: object does not exist" }
