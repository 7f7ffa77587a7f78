package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	engerrors "github.com/arkilian/roomsql/internal/errors"
)

// LocalStorage implements ObjectStorage using the local filesystem. Keys are
// slash-separated paths below the base directory.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local filesystem storage.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Put writes data to a temporary file next to the object and renames it into
// place, so readers never see a partial export.
func (l *LocalStorage) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dest, err := l.fullPath(key)
	if err != nil {
		return engerrors.NewStorageError(engerrors.CodeUploadFailed, "invalid key", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return engerrors.NewStorageError(engerrors.CodeUploadFailed, "failed to create directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".put-*")
	if err != nil {
		return engerrors.NewStorageError(engerrors.CodeUploadFailed, "failed to create file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return engerrors.NewStorageError(engerrors.CodeUploadFailed, "failed to write object", err)
	}
	if err := tmp.Close(); err != nil {
		return engerrors.NewStorageError(engerrors.CodeUploadFailed, "failed to write object", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return engerrors.NewStorageError(engerrors.CodeUploadFailed, "failed to move object into place", err)
	}
	return nil
}

// Get reads an object from local storage.
func (l *LocalStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := l.fullPath(key)
	if err != nil {
		return nil, engerrors.NewStorageError(engerrors.CodeDownloadFailed, "invalid key", err)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(key)
		}
		return nil, engerrors.NewStorageError(engerrors.CodeDownloadFailed, "failed to read object", err)
	}
	return data, nil
}

// Delete removes an object from local storage.
func (l *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := l.fullPath(key)
	if err != nil {
		return engerrors.NewStorageError(engerrors.CodeDeleteFailed, "invalid key", err)
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			// S3 Delete is idempotent, so we don't return an error
			return nil
		}
		return engerrors.NewStorageError(engerrors.CodeDeleteFailed, "failed to delete object", err)
	}
	return nil
}

// Exists checks if an object exists in local storage.
func (l *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	path, err := l.fullPath(key)
	if err != nil {
		return false, engerrors.NewStorageError(engerrors.CodeDownloadFailed, "invalid key", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, engerrors.NewStorageError(engerrors.CodeDownloadFailed, "failed to stat object", err)
	}
	return !info.IsDir(), nil
}

// List returns the keys starting with prefix. Like S3, prefix is matched
// against the whole key, not just directory names.
func (l *LocalStorage) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string
	err := filepath.WalkDir(l.basePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".put-") {
			return nil
		}
		rel, err := filepath.Rel(l.basePath, path)
		if err != nil {
			return err
		}
		if key := filepath.ToSlash(rel); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, engerrors.NewStorageError(engerrors.CodeListFailed, "failed to list objects", err)
	}

	sort.Strings(keys)
	return keys, nil
}

// fullPath maps key to a path below the base directory and rejects keys that
// would leave it.
func (l *LocalStorage) fullPath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty key")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes the storage root", key)
	}
	return filepath.Join(l.basePath, clean), nil
}
