// Package storage provides object storage for exported schemas.
package storage

import (
	"context"

	engerrors "github.com/arkilian/roomsql/internal/errors"
)

// ErrObjectNotFound is returned by Get for a missing key. Match it with
// errors.Is; the returned error carries the key in its details.
var ErrObjectNotFound = engerrors.NewStorageError(engerrors.CodeObjectNotFound, "object not found", nil)

// ObjectStorage abstracts object storage operations.
// Implementations are S3 and the local filesystem.
type ObjectStorage interface {
	// Put stores data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the object stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}

func notFound(key string) error {
	return ErrObjectNotFound.WithDetails(map[string]interface{}{"key": key})
}
