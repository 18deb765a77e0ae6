package imaging

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/image-release-tools/internal/apperr"
)

// Format is the target encoding for generated images.
type Format string

const (
	FormatKeep Format = "keep"
	FormatJPG  Format = "jpg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// ParseFormat accepts the names used in release requests. An empty string means
// FormatKeep.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "keep", "keep-original", "original":
		return FormatKeep, nil
	case "jpg", "jpeg":
		return FormatJPG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	case "bmp":
		return FormatBMP, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	}
	return "", fmt.Errorf("unknown image format %q", s)
}

// Extension returns the file extension (with dot) an image originally stored at
// srcName is written with.
func (f Format) Extension(srcName string) string {
	switch f {
	case FormatJPG:
		return ".jpg"
	case FormatPNG:
		return ".png"
	case FormatWebP:
		return ".webp"
	case FormatBMP:
		return ".bmp"
	case FormatTIFF:
		return ".tiff"
	}
	ext := strings.ToLower(filepath.Ext(srcName))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".gif", ".webp":
		return ext
	}
	return ".png"
}

// Codec loads source images and writes generated ones.
type Codec struct {
	cache       *ImageCache
	jpegQuality int
}

// NewCodec returns a codec reading through cache. A nil cache gets a fresh one.
func NewCodec(cache *ImageCache, jpegQuality int) *Codec {
	if cache == nil {
		cache = NewImageCache()
	}
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = 95
	}
	return &Codec{cache: cache, jpegQuality: jpegQuality}
}

// Cache exposes the underlying image cache.
func (c *Codec) Cache() *ImageCache { return c.cache }

// Load decodes the image at path. Failures are apperr IO errors.
func (c *Codec) Load(path string) (image.Image, error) {
	img, err := c.cache.Load(path)
	if err != nil {
		return nil, apperr.IO("imaging.Load", fmt.Errorf("%s: %w", path, err))
	}
	return img, nil
}

// Save encodes img to path with the extension required by f and returns the
// path actually written. Parent directories are created. WebP is written
// lossless.
func (c *Codec) Save(img image.Image, path string, f Format) (string, error) {
	ext := f.Extension(path)
	out := strings.TrimSuffix(path, filepath.Ext(path)) + ext

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", apperr.IO("imaging.Save", err)
	}
	if ext == ".webp" {
		if err := saveWebP(img, out); err != nil {
			return "", apperr.IO("imaging.Save", fmt.Errorf("failed to encode %s: %w", out, err))
		}
		return out, nil
	}
	if err := imaging.Save(img, out, imaging.JPEGQuality(c.jpegQuality)); err != nil {
		return "", apperr.IO("imaging.Save", fmt.Errorf("failed to encode %s: %w", out, err))
	}
	return out, nil
}

func saveWebP(img image.Image, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return nativewebp.Encode(f, img, &nativewebp.Options{})
}
