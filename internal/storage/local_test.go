package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	engerrors "github.com/arkilian/roomsql/internal/errors"
)

func TestLocalStorage_PutGet(t *testing.T) {
	baseDir := t.TempDir()
	storage, err := NewLocalStorage(baseDir)
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	ctx := context.Background()
	key := "schemas/app.rsq"
	content := []byte("hello world")

	if err := storage.Put(ctx, key, content); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	exists, err := storage.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	got, err := storage.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q, want %q", got, content)
	}

	// Overwrite
	if err := storage.Put(ctx, key, []byte("v2")); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	got, _ = storage.Get(ctx, key)
	if string(got) != "v2" {
		t.Errorf("expected overwritten content, got %q", got)
	}

	if _, err := os.Stat(filepath.Join(baseDir, "schemas", "app.rsq")); err != nil {
		t.Errorf("expected object on disk: %v", err)
	}

	if err := storage.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	exists, err = storage.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists after delete failed: %v", err)
	}
	if exists {
		t.Error("expected object to not exist after delete")
	}

	// Deleting again is not an error
	if err := storage.Delete(ctx, key); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
}

func TestLocalStorage_GetNotFound(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	_, err = storage.Get(context.Background(), "nonexistent/object.rsq")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	if engerrors.GetCategory(err) != engerrors.ErrCategoryStorage {
		t.Errorf("expected storage category, got %q", engerrors.GetCategory(err))
	}
}

func TestLocalStorage_List(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	ctx := context.Background()
	for _, key := range []string{"schemas/b.rsq", "schemas/a.rsq", "schemas-old/c.rsq", "other/d.rsq"} {
		if err := storage.Put(ctx, key, []byte(key)); err != nil {
			t.Fatalf("Put %s failed: %v", key, err)
		}
	}

	tests := []struct {
		prefix string
		want   []string
	}{
		{"schemas/", []string{"schemas/a.rsq", "schemas/b.rsq"}},
		{"schemas", []string{"schemas-old/c.rsq", "schemas/a.rsq", "schemas/b.rsq"}},
		{"", []string{"other/d.rsq", "schemas-old/c.rsq", "schemas/a.rsq", "schemas/b.rsq"}},
		{"missing/", nil},
	}
	for _, tt := range tests {
		got, err := storage.List(ctx, tt.prefix)
		if err != nil {
			t.Fatalf("List(%q) failed: %v", tt.prefix, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("List(%q) = %v, want %v", tt.prefix, got, tt.want)
		}
	}
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	ctx := context.Background()
	for _, key := range []string{"", "../outside", "a/../../outside"} {
		if err := storage.Put(ctx, key, []byte("x")); err == nil {
			t.Errorf("expected Put(%q) to fail", key)
		}
	}
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := storage.Put(ctx, "k", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, err := storage.List(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
