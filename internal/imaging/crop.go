package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// Crop cuts r out of img. r is relative to the top-left corner of img, so
// callers need not care whether img came from a sub-image. The result has
// bounds starting at (0,0).
func Crop(img image.Image, r image.Rectangle) (image.Image, error) {
	b := img.Bounds()
	if r.Empty() {
		return nil, fmt.Errorf("empty crop region %v", r)
	}
	if !r.In(image.Rect(0, 0, b.Dx(), b.Dy())) {
		return nil, fmt.Errorf("crop region %v outside image size %dx%d", r, b.Dx(), b.Dy())
	}
	return imaging.Crop(img, r.Add(b.Min)), nil
}

// PreviewResult contains a downscaled rendering of an image.
type PreviewResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Preview encodes img as base64 PNG, shrinking it so that neither side exceeds
// maxSide. A maxSide of zero keeps the original size.
func Preview(img image.Image, maxSide int) (*PreviewResult, error) {
	b := img.Bounds()
	if maxSide > 0 && (b.Dx() > maxSide || b.Dy() > maxSide) {
		img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}

	return &PreviewResult{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
