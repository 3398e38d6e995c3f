// Package loader provides the screenshot loading adapter.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/0xcro3dile/shotfind/internal/domain/entities"
)

// DefaultMaxBytes caps the size of an image sent to the vision model.
const DefaultMaxBytes = 50 << 20

// ImageLoader reads image files and checks that they decode.
type ImageLoader struct {
	maxBytes int64
}

// NewImageLoader creates a loader rejecting files over maxBytes.
// A non-positive maxBytes uses DefaultMaxBytes.
func NewImageLoader(maxBytes int64) *ImageLoader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &ImageLoader{maxBytes: maxBytes}
}

// Load reads the image at path. Only the header is decoded, to learn the
// format and dimensions; the raw bytes are passed on unchanged.
func (l *ImageLoader) Load(ctx context.Context, path string) (*entities.Screenshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > l.maxBytes {
		return nil, fmt.Errorf("%s is %d bytes, over the %d byte limit", filepath.Base(path), info.Size(), l.maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}

	return &entities.Screenshot{
		Path:    path,
		Data:    data,
		Format:  format,
		Width:   cfg.Width,
		Height:  cfg.Height,
		ModTime: info.ModTime(),
	}, nil
}
