package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestLocalStorage_PutOpen(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	ctx := context.Background()

	objectPath := "images/poster.png"
	content := []byte("hello world")
	if err := storage.Put(ctx, objectPath, bytes.NewReader(content), "image/png"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	exists, err := storage.Exists(ctx, objectPath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	rc, err := storage.Open(ctx, objectPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	got, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q, want %q", got, content)
	}

	if err := storage.Delete(ctx, objectPath); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	exists, _ = storage.Exists(ctx, objectPath)
	if exists {
		t.Error("expected object to be deleted")
	}
}

func TestLocalStorage_PutOverwrites(t *testing.T) {
	storage, _ := NewLocalStorage(t.TempDir())
	ctx := context.Background()

	_ = storage.Put(ctx, "images/a", strings.NewReader("first"), "")
	if err := storage.Put(ctx, "images/a", strings.NewReader("second"), ""); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	rc, err := storage.Open(ctx, "images/a")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "second" {
		t.Errorf("got %q, want second", got)
	}
}

func TestLocalStorage_OpenNotFound(t *testing.T) {
	storage, _ := NewLocalStorage(t.TempDir())

	_, err := storage.Open(context.Background(), "images/missing")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalStorage_DeleteMissingIsNoop(t *testing.T) {
	storage, _ := NewLocalStorage(t.TempDir())

	if err := storage.Delete(context.Background(), "images/missing"); err != nil {
		t.Errorf("expected no error deleting a missing object, got %v", err)
	}
}

func TestLocalStorage_PathTraversal(t *testing.T) {
	base := t.TempDir()
	storage, _ := NewLocalStorage(base)
	ctx := context.Background()

	// cleaned relative to the base, so the object stays inside it
	if err := storage.Put(ctx, "../../escape", strings.NewReader("x"), ""); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	exists, err := storage.Exists(ctx, "escape")
	if err != nil || !exists {
		t.Errorf("expected object rooted at base, exists=%v err=%v", exists, err)
	}
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	storage, _ := NewLocalStorage(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := storage.Put(ctx, "images/a", strings.NewReader("x"), ""); err == nil {
		t.Error("expected error for cancelled context")
	}
}
