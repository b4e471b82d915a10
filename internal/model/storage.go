package model

import (
	"context"
	"io"
)

// PhotoCache stores photo bytes fetched from the backend, keyed by photo path.
// Download returns ErrNotFound for absent keys.
type PhotoCache interface {
	Upload(ctx context.Context, key, contentType string, reader io.Reader, size int64) error
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// PhotoSource downloads photos from the backend by their stored path.
type PhotoSource interface {
	FetchPhoto(ctx context.Context, photoPath string) ([]byte, string, error)
}
