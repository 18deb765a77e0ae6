package transform

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"testing"
)

// markedImage returns a black image with a single white pixel at (mx,my).
func markedImage(w, h, mx, my int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.Black)
		}
	}
	img.Set(mx, my, color.White)
	return img
}

// brightest returns the center of the brightest pixel.
func brightest(img image.Image) (float64, float64) {
	b := img.Bounds()
	best, bx, by := -1, 0, 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if v := int(r + g + bl); v > best {
				best, bx, by = v, x-b.Min.X, y-b.Min.Y
			}
		}
	}
	return float64(bx) + 0.5, float64(by) + 0.5
}

func applyKind(t *testing.T, c *Catalog, k Kind, p Params, img image.Image) image.Image {
	t.Helper()
	s, _ := c.Lookup(k)
	out, err := s.Apply(img, p, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("%s Apply failed: %v", k, err)
	}
	return out
}

// TestGeometry_TracksPixels checks that each geometric mapper sends a marked
// pixel where the pixel operation actually puts it.
func TestGeometry_TracksPixels(t *testing.T) {
	c := NewCatalog()
	tests := []struct {
		name string
		kind Kind
		p    Params
		tol  float64
	}{
		{"flip h", FlipHorizontal, NoParams{}, 0.01},
		{"flip v", FlipVertical, NoParams{}, 0.01},
		{"rotate 90", Rotate, DegreesParams{Degrees: 90}, 0.01},
		{"rotate 30", Rotate, DegreesParams{Degrees: 30}, 1.5},
		{"crop", Crop, CropParams{OffsetX: 10, OffsetY: 20, Scale: 50}, 0.01},
		{"zoom", Zoom, ZoomParams{Factor: 2}, 1.5},
		{"resize", Resize, ResizeParams{Width: 160, Height: 40}, 1.5},
		{"shear", Shear, DegreesParams{Degrees: 20}, 1.5},
		{"shear negative", Shear, DegreesParams{Degrees: -20}, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := markedImage(80, 60, 30, 25)
			out := applyKind(t, c, tt.kind, tt.p, src)

			s, _ := c.Lookup(tt.kind)
			ob := out.Bounds()
			m := s.Geometry(tt.p, 80, 60, ob.Dx(), ob.Dy())
			gx, gy := m(30.5, 25.5)
			wx, wy := brightest(out)
			if math.Abs(gx-wx) > tt.tol || math.Abs(gy-wy) > tt.tol {
				t.Errorf("mapper says (%.2f,%.2f), pixel landed at (%.2f,%.2f)", gx, gy, wx, wy)
			}
		})
	}
}

func TestFlipHorizontal_ScenarioBox(t *testing.T) {
	c := NewCatalog()
	s, _ := c.Lookup(FlipHorizontal)
	m := s.Geometry(NoParams{}, 100, 50, 100, 50)
	x1, _ := m(10, 10)
	x2, _ := m(50, 30)
	if x1 != 90 || x2 != 50 {
		t.Errorf("got x1=%v x2=%v, want 90 and 50", x1, x2)
	}
}

func TestRotate_GrowsCanvas(t *testing.T) {
	c := NewCatalog()
	out := applyKind(t, c, Rotate, DegreesParams{Degrees: 45}, markedImage(100, 50, 0, 0))
	if out.Bounds().Dx() <= 100 || out.Bounds().Dy() <= 50 {
		t.Errorf("expected expanded canvas, got %v", out.Bounds())
	}
}

func TestShear_CenterIsFixed(t *testing.T) {
	c := NewCatalog()
	s, _ := c.Lookup(Shear)
	m := s.Geometry(DegreesParams{Degrees: 20}, 100, 50, 120, 50)
	x, y := m(50, 25)
	if math.Abs(x-60) > 1e-9 || math.Abs(y-25) > 1e-9 {
		t.Errorf("center mapped to (%v,%v), want (60,25)", x, y)
	}
	xb, _ := m(50, 50)
	if xb >= 60 {
		t.Errorf("rows below center should move left, got %v", xb)
	}
	xt, _ := m(50, 0)
	if xt <= 60 {
		t.Errorf("rows above center should move right, got %v", xt)
	}
}

// TestShear_TracksPixelsFarFromCenter marks pixels near the top and bottom
// edges, where a sign error in the shear term is largest.
func TestShear_TracksPixelsFarFromCenter(t *testing.T) {
	c := NewCatalog()
	s, _ := c.Lookup(Shear)
	p := DegreesParams{Degrees: 20}
	for _, pt := range []image.Point{{30, 50}, {30, 5}} {
		out := applyKind(t, c, Shear, p, markedImage(80, 60, pt.X, pt.Y))
		ob := out.Bounds()
		gx, gy := s.Geometry(p, 80, 60, ob.Dx(), ob.Dy())(float64(pt.X)+0.5, float64(pt.Y)+0.5)
		wx, wy := brightest(out)
		if math.Abs(gx-wx) > 1.5 || math.Abs(gy-wy) > 1.5 {
			t.Errorf("%v: mapper says (%.2f,%.2f), pixel landed at (%.2f,%.2f)", pt, gx, gy, wx, wy)
		}
	}
}

func TestPhotometricKinds_KeepSize(t *testing.T) {
	c := NewCatalog()
	src := markedImage(32, 24, 3, 4)
	for _, s := range c.Specs() {
		if s.Category != Photometric {
			continue
		}
		out := applyKind(t, c, s.Kind, s.Defaults, src)
		if out.Bounds().Dx() != 32 || out.Bounds().Dy() != 24 {
			t.Errorf("%s changed size to %v", s.Kind, out.Bounds())
		}
	}
}

func TestCropRect_ClampsToImage(t *testing.T) {
	r := cropRect(CropParams{OffsetX: 20, OffsetY: 20, Scale: 80}, 10, 10)
	if r.Max.X > 10 || r.Max.Y > 10 || r.Dx() != 8 {
		t.Errorf("got %v", r)
	}
}
