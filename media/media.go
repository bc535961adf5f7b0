// Package media validates uploaded images and writes them to a sink.
package media

import (
	"bytes"
	"context"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("only jpeg, png and gif images are allowed")
)

// allowed maps accepted MIME types to the extension used for stored objects.
var allowed = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// Store persists an object and returns the URL clients should use for it.
type Store interface {
	Put(ctx context.Context, name string, body io.Reader, size int64, contentType string) (string, error)
}

// Image is an upload that passed validation.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// ReadImage reads at most maxBytes from r and sniffs the content. The
// client-declared type is ignored.
func ReadImage(r io.Reader, maxBytes int64) (Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Image{}, errors.Wrap(err, "read upload")
	}
	if int64(len(data)) > maxBytes {
		return Image{}, ErrTooLarge
	}

	detected := mimetype.Detect(data)
	for contentType, ext := range allowed {
		if detected.Is(contentType) {
			return Image{
				Name:        uuid.NewString() + ext,
				ContentType: contentType,
				Data:        data,
			}, nil
		}
	}
	return Image{}, errors.Wrapf(ErrUnsupportedType, "got %s", detected.String())
}

// Save writes img to store and returns its public URL.
func Save(ctx context.Context, store Store, img Image) (string, error) {
	return store.Put(ctx, img.Name, bytes.NewReader(img.Data), int64(len(img.Data)), img.ContentType)
}
