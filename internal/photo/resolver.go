// Package photo serves user photos with a cache and a placeholder fallback.
package photo

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"sync"

	"github.com/dtroode/userdir/internal/logger"
	"github.com/dtroode/userdir/internal/model"
)

const placeholderSize = 96

// Image is a photo ready to be served.
type Image struct {
	Data        []byte
	ContentType string
	Placeholder bool
}

// Resolver fetches photos from the backend, optionally through a cache.
type Resolver struct {
	source model.PhotoSource
	cache  model.PhotoCache
	logger *logger.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache serves photos from cache and stores fetched ones there.
func WithCache(cache model.PhotoCache) Option {
	return func(r *Resolver) { r.cache = cache }
}

// NewResolver creates a Resolver over source.
func NewResolver(source model.PhotoSource, logger *logger.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		source: source,
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetch returns the photo at photoPath. It never fails: on any problem the placeholder is returned.
func (r *Resolver) Fetch(ctx context.Context, photoPath string) Image {
	if photoPath == "" {
		return Placeholder()
	}

	if img, ok := r.fromCache(ctx, photoPath); ok {
		return img
	}

	data, contentType, err := r.source.FetchPhoto(ctx, photoPath)
	if err != nil {
		r.logger.Warn("failed to fetch photo", "photo_path", photoPath, "error", err)
		return Placeholder()
	}
	if len(data) == 0 {
		return Placeholder()
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	if r.cache != nil {
		err := r.cache.Upload(ctx, photoPath, contentType, bytes.NewReader(data), int64(len(data)))
		if err != nil {
			r.logger.Warn("failed to cache photo", "photo_path", photoPath, "error", err)
		}
	}

	return Image{Data: data, ContentType: contentType}
}

// Forget evicts a cached photo.
func (r *Resolver) Forget(ctx context.Context, photoPath string) {
	if r.cache == nil || photoPath == "" {
		return
	}
	if err := r.cache.Delete(ctx, photoPath); err != nil {
		r.logger.Warn("failed to evict photo", "photo_path", photoPath, "error", err)
	}
}

func (r *Resolver) fromCache(ctx context.Context, photoPath string) (Image, bool) {
	if r.cache == nil {
		return Image{}, false
	}

	rc, contentType, err := r.cache.Download(ctx, photoPath)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			r.logger.Warn("failed to read cached photo", "photo_path", photoPath, "error", err)
		}
		return Image{}, false
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil || len(data) == 0 {
		if err != nil {
			r.logger.Warn("failed to read cached photo", "photo_path", photoPath, "error", err)
		}
		return Image{}, false
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return Image{Data: data, ContentType: contentType}, true
}

var placeholderPNG = sync.OnceValue(func() []byte {
	img := image.NewRGBA(image.Rect(0, 0, placeholderSize, placeholderSize))
	bg := color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
	fg := color.RGBA{R: 0x9e, G: 0x9e, B: 0x9e, A: 0xff}

	center := placeholderSize / 2
	for y := 0; y < placeholderSize; y++ {
		for x := 0; x < placeholderSize; x++ {
			img.Set(x, y, bg)
			dx, dy := x-center, y-center
			head := dx*dx+(dy+12)*(dy+12) <= 16*16
			body := y > center+10 && dx*dx <= 30*30
			if head || body {
				img.Set(x, y, fg)
			}
		}
	}

	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
})

// Placeholder returns the image shown when a user has no usable photo.
func Placeholder() Image {
	return Image{
		Data:        placeholderPNG(),
		ContentType: "image/png",
		Placeholder: true,
	}
}
