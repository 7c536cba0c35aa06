package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/aabubakar17/meetEasy/internal/config"
	apperrors "github.com/aabubakar17/meetEasy/internal/errors"
)

// ImagePrefix is the key prefix under which event images are stored.
const ImagePrefix = "images/"

// Images stores event images and maps object keys to public URLs.
type Images struct {
	store   ObjectStorage
	baseURL string
	newID   func() string
}

// NewImages wraps an object store. baseURL is prepended to keys to form
// public image URLs.
func NewImages(store ObjectStorage, baseURL string) *Images {
	return &Images{
		store:   store,
		baseURL: baseURL,
		newID:   func() string { return uuid.NewString() },
	}
}

// Open creates the object store described by cfg and wraps it.
func Open(ctx context.Context, cfg config.StorageConfig) (*Images, error) {
	var store ObjectStorage
	switch cfg.Type {
	case "local":
		local, err := NewLocalStorage(cfg.Path)
		if err != nil {
			return nil, err
		}
		store = local
	case "s3":
		s3store, err := NewS3Storage(ctx, cfg.S3.Bucket, S3Config{
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		store = s3store
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
	return NewImages(store, cfg.PublicBaseURL), nil
}

// Key builds the object key for an uploaded file: the base name of the
// original file followed by a random UUID.
func (im *Images) Key(originalName string) string {
	name := path.Base(strings.ReplaceAll(originalName, "\\", "/"))
	if name == "." || name == "/" {
		name = ""
	}
	return ImagePrefix + name + im.newID()
}

// URL returns the public URL of an object key.
func (im *Images) URL(key string) string {
	return im.baseURL + key
}

// KeyFromURL reports the object key behind url when url points into this
// store.
func (im *Images) KeyFromURL(url string) (string, bool) {
	if url == "" || !strings.HasPrefix(url, im.baseURL) {
		return "", false
	}
	key := strings.TrimPrefix(url, im.baseURL)
	if !strings.HasPrefix(key, ImagePrefix) {
		return "", false
	}
	return key, true
}

// Upload stores an image and returns its public URL.
func (im *Images) Upload(ctx context.Context, originalName string, r io.Reader, contentType string) (string, error) {
	key := im.Key(originalName)
	if err := im.store.Put(ctx, key, r, contentType); err != nil {
		return "", apperrors.NewStorageError(apperrors.CodeUploadFailed, "failed to store image", err)
	}
	return im.URL(key), nil
}

// Remove deletes the image behind url if it lives in this store. URLs
// pointing elsewhere are left alone.
func (im *Images) Remove(ctx context.Context, url string) error {
	key, ok := im.KeyFromURL(url)
	if !ok {
		return nil
	}
	if err := im.store.Delete(ctx, key); err != nil {
		return apperrors.NewStorageError(apperrors.CodeUploadFailed, "failed to delete image", err)
	}
	return nil
}

// Read opens the image stored under key.
func (im *Images) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	if !strings.HasPrefix(key, ImagePrefix) {
		return nil, ErrObjectNotFound
	}
	return im.store.Open(ctx, key)
}
