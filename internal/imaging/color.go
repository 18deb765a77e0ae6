package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/adjust"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// ShiftHue rotates the hue of every pixel by degrees in HSV space. Saturation,
// value and alpha are preserved. Positive values rotate red toward green.
func ShiftHue(img image.Image, degrees float64) *image.RGBA {
	return adjust.Apply(img, func(c color.RGBA) color.RGBA {
		if c.A == 0 {
			return c
		}
		col, ok := colorful.MakeColor(c)
		if !ok {
			return c
		}
		h, s, v := col.Hsv()
		h = math.Mod(h+degrees, 360)
		if h < 0 {
			h += 360
		}
		r, g, b := colorful.Hsv(h, s, v).Clamped().RGB255()
		// color.RGBA is alpha-premultiplied; colorful works on straight colors.
		return color.RGBA{
			R: premultiply(r, c.A),
			G: premultiply(g, c.A),
			B: premultiply(b, c.A),
			A: c.A,
		}
	})
}

func premultiply(v, a uint8) uint8 {
	if a == 255 {
		return v
	}
	return uint8(uint32(v) * uint32(a) / 255)
}
