package imaging

import (
	"encoding/base64"
	"image"
	"testing"
)

func TestCrop(t *testing.T) {
	img := createPatternImage(100, 100)

	cropped, err := Crop(img, image.Rect(50, 0, 100, 50))
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	b := cropped.Bounds()
	if b.Dx() != 50 || b.Dy() != 50 || b.Min.X != 0 || b.Min.Y != 0 {
		t.Errorf("unexpected bounds %v", b)
	}
	r, g, _, _ := cropped.At(10, 10).RGBA()
	if r>>8 != 0 || g>>8 != 255 {
		t.Errorf("expected green quadrant, got r=%d g=%d", r>>8, g>>8)
	}

	// sub-images are cropped relative to their own origin
	sub := img.SubImage(image.Rect(50, 50, 100, 100))
	got, err := Crop(sub, image.Rect(0, 0, 10, 10))
	if err != nil {
		t.Fatalf("Crop sub-image: %v", err)
	}
	if r, g, b, _ := got.At(5, 5).RGBA(); r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("expected white quadrant, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestCrop_InvalidRegions(t *testing.T) {
	img := createPatternImage(50, 50)
	tests := []struct {
		name string
		r    image.Rectangle
	}{
		{"outside", image.Rectangle{Max: image.Pt(60, 10)}},
		{"negative", image.Rectangle{Min: image.Pt(-1, 0), Max: image.Pt(10, 10)}},
		{"inverted", image.Rectangle{Min: image.Pt(20, 20), Max: image.Pt(10, 30)}},
		{"empty", image.Rectangle{Min: image.Pt(10, 10), Max: image.Pt(10, 20)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Crop(img, tt.r); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPreview(t *testing.T) {
	img := createPatternImage(400, 200)

	res, err := Preview(img, 100)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if res.Width != 100 || res.Height != 50 {
		t.Errorf("got %dx%d, want 100x50", res.Width, res.Height)
	}
	if res.MimeType != "image/png" {
		t.Errorf("mime type %q", res.MimeType)
	}
	if _, err := base64.StdEncoding.DecodeString(res.ImageBase64); err != nil {
		t.Errorf("invalid base64: %v", err)
	}

	full, err := Preview(createPatternImage(30, 30), 0)
	if err != nil {
		t.Fatal(err)
	}
	if full.Width != 30 {
		t.Errorf("maxSide=0 should keep size, got %d", full.Width)
	}
}
