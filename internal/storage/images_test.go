package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aabubakar17/meetEasy/internal/config"
	apperrors "github.com/aabubakar17/meetEasy/internal/errors"
)

func newTestImages(t *testing.T) *Images {
	t.Helper()
	local, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	im := NewImages(local, "/images/")
	im.newID = func() string { return "0000-uuid" }
	return im
}

func TestImages_Key(t *testing.T) {
	im := newTestImages(t)

	tests := []struct {
		name string
		want string
	}{
		{"poster.png", "images/poster.png0000-uuid"},
		{"dir/poster.png", "images/poster.png0000-uuid"},
		{`C:\Users\me\poster.png`, "images/poster.png0000-uuid"},
		{"", "images/0000-uuid"},
	}
	for _, tt := range tests {
		if got := im.Key(tt.name); got != tt.want {
			t.Errorf("Key(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestImages_UploadReadRemove(t *testing.T) {
	im := newTestImages(t)
	ctx := context.Background()

	url, err := im.Upload(ctx, "poster.png", strings.NewReader("png-bytes"), "image/png")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if url != "/images/images/poster.png0000-uuid" {
		t.Errorf("unexpected url %q", url)
	}

	key, ok := im.KeyFromURL(url)
	if !ok {
		t.Fatalf("expected url %q to map back to a key", url)
	}
	rc, err := im.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "png-bytes" {
		t.Errorf("got %q", body)
	}

	if err := im.Remove(ctx, url); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := im.Read(ctx, key); err != ErrObjectNotFound {
		t.Errorf("expected ErrObjectNotFound after remove, got %v", err)
	}
}

func TestImages_RemoveForeignURLIsNoop(t *testing.T) {
	im := newTestImages(t)

	for _, url := range []string{"", "https://cdn.example.com/x.png", "/images/other/x.png"} {
		if err := im.Remove(context.Background(), url); err != nil {
			t.Errorf("Remove(%q) returned %v", url, err)
		}
	}
}

func TestImages_UploadFailureIsStorageError(t *testing.T) {
	im := newTestImages(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := im.Upload(ctx, "a.png", strings.NewReader("x"), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if apperrors.GetCategory(err) != apperrors.ErrCategoryStorage {
		t.Errorf("expected storage category, got %v", apperrors.GetCategory(err))
	}
}

func TestOpen_Local(t *testing.T) {
	im, err := Open(context.Background(), config.StorageConfig{
		Type:          "local",
		Path:          t.TempDir(),
		PublicBaseURL: "https://img.example.com/",
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if got := im.URL("images/a"); got != "https://img.example.com/images/a" {
		t.Errorf("unexpected url %q", got)
	}
}

func TestOpen_UnknownType(t *testing.T) {
	if _, err := Open(context.Background(), config.StorageConfig{Type: "ftp"}); err == nil {
		t.Error("expected error for unknown storage type")
	}
}
