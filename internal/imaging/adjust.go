package imaging

import (
	"image"
	"image/color"
	"math/rand"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/histogram"
	"github.com/anthonynsimon/bild/transform"
)

// Equalize performs per-channel histogram equalization. Channels with a single
// intensity are left unchanged. Alpha is preserved.
func Equalize(img image.Image) *image.RGBA {
	h := histogram.NewRGBAHistogram(img)
	lutR := equalizeLUT(h.R.Bins)
	lutG := equalizeLUT(h.G.Bins)
	lutB := equalizeLUT(h.B.Bins)

	return adjust.Apply(img, func(c color.RGBA) color.RGBA {
		return color.RGBA{R: lutR[c.R], G: lutG[c.G], B: lutB[c.B], A: c.A}
	})
}

// equalizeLUT builds the classic CDF remapping table for a 256-bin histogram.
func equalizeLUT(bins []int) [256]uint8 {
	var lut [256]uint8
	total, cdfMin := 0, 0
	for _, n := range bins {
		total += n
	}
	for _, n := range bins {
		if n > 0 {
			cdfMin = n
			break
		}
	}

	cum := 0
	for i := 0; i < 256 && i < len(bins); i++ {
		cum += bins[i]
		if total == cdfMin {
			lut[i] = uint8(i)
			continue
		}
		v := float64(cum-cdfMin) / float64(total-cdfMin) * 255
		if v < 0 {
			v = 0
		}
		lut[i] = uint8(v + 0.5)
	}
	return lut
}

// AddNoise replaces roughly percent% of the pixels with random opaque colors.
// The result is fully determined by rng.
func AddNoise(img image.Image, percent float64, rng *rand.Rand) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	p := percent / 100
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if rng.Float64() < p {
				dst.SetNRGBA(x, y, color.NRGBA{
					R: uint8(rng.Intn(256)),
					G: uint8(rng.Intn(256)),
					B: uint8(rng.Intn(256)),
					A: 255,
				})
				continue
			}
			dst.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

// ShearH shears img horizontally by degrees about its center. The output is
// widened so that no source pixel is lost.
func ShearH(img image.Image, degrees float64) *image.RGBA {
	return transform.ShearH(img, degrees)
}
