package imaging

import (
	"image"
	"image/color"
	"testing"
)

func TestDrawOutlines(t *testing.T) {
	img := solid(100, 100, color.RGBA{0, 0, 0, 255})
	red := color.RGBA{255, 0, 0, 255}

	box := Outline{Points: []image.Point{{20, 20}, {60, 20}, {60, 50}, {20, 50}}}
	out := DrawOutlines(img, []Outline{box}, red)

	for _, p := range []image.Point{{40, 20}, {60, 35}, {40, 50}, {20, 35}, {20, 20}, {60, 50}} {
		if got := out.RGBAAt(p.X, p.Y); got != red {
			t.Errorf("edge pixel %v = %v, want red", p, got)
		}
	}
	if got := out.RGBAAt(40, 35); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("interior pixel = %v, want untouched", got)
	}
	// source is not modified
	if r, _, _, _ := img.At(40, 20).RGBA(); r != 0 {
		t.Error("DrawOutlines modified its input")
	}
}

func TestDrawOutlines_DiagonalAndClipping(t *testing.T) {
	img := solid(20, 20, color.RGBA{0, 0, 0, 255})
	green := color.RGBA{0, 255, 0, 255}

	tri := Outline{Points: []image.Point{{0, 0}, {30, 30}, {0, 19}}}
	out := DrawOutlines(img, []Outline{tri}, green)

	for i := 0; i < 20; i++ {
		if got := out.RGBAAt(i, i); got != green {
			t.Fatalf("diagonal pixel (%d,%d) = %v", i, i, got)
		}
	}
}

func TestDrawOutlines_Label(t *testing.T) {
	img := solid(60, 60, color.RGBA{128, 128, 128, 255})
	o := Outline{Points: []image.Point{{10, 10}, {50, 10}, {50, 50}, {10, 50}}, Label: "12"}
	out := DrawOutlines(img, []Outline{o}, color.RGBA{255, 0, 0, 255})

	hasWhite := false
	for y := 12; y < 19; y++ {
		for x := 12; x < 20; x++ {
			if out.RGBAAt(x, y) == (color.RGBA{255, 255, 255, 255}) {
				hasWhite = true
			}
		}
	}
	if !hasWhite {
		t.Error("label glyphs not drawn")
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		hex     string
		wantR   uint8
		wantG   uint8
		wantB   uint8
		wantA   uint8
		wantErr bool
	}{
		{"#FF0000", 255, 0, 0, 255, false},
		{"#00FF00", 0, 255, 0, 255, false},
		{"FF0000", 255, 0, 0, 255, false},    // without #
		{"#FF000080", 255, 0, 0, 128, false}, // with alpha
		{"", 0, 0, 0, 0, true},
		{"#FFF", 0, 0, 0, 0, true},
		{"#GGGGGG", 0, 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.hex, func(t *testing.T) {
			c, err := ParseHexColor(tt.hex)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.R != tt.wantR || c.G != tt.wantG || c.B != tt.wantB || c.A != tt.wantA {
				t.Errorf("got (%d,%d,%d,%d), want (%d,%d,%d,%d)",
					c.R, c.G, c.B, c.A, tt.wantR, tt.wantG, tt.wantB, tt.wantA)
			}
		})
	}
}
