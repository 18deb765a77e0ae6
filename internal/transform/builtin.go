package transform

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/image-release-tools/internal/annotation"
	pix "github.com/ironsheep/image-release-tools/internal/imaging"
)

func builtins() []*Spec {
	return []*Spec{
		{
			Kind:     FlipHorizontal,
			Category: Geometric,
			Defaults: NoParams{},
			Apply: func(img image.Image, _ Params, _ *rand.Rand) (image.Image, error) {
				return imaging.FlipH(img), nil
			},
			Geometry: func(_ Params, srcW, _, _, _ int) annotation.Mapper {
				w := float64(srcW)
				return func(x, y float64) (float64, float64) { return w - x, y }
			},
		},
		{
			Kind:     FlipVertical,
			Category: Geometric,
			Defaults: NoParams{},
			Apply: func(img image.Image, _ Params, _ *rand.Rand) (image.Image, error) {
				return imaging.FlipV(img), nil
			},
			Geometry: func(_ Params, _, srcH, _, _ int) annotation.Mapper {
				h := float64(srcH)
				return func(x, y float64) (float64, float64) { return x, h - y }
			},
		},
		dualDegrees(&Spec{
			Kind:     Rotate,
			Category: Geometric,
			Defaults: DegreesParams{Degrees: 15},
			Apply: func(img image.Image, p Params, _ *rand.Rand) (image.Image, error) {
				return imaging.Rotate(img, p.(DegreesParams).Degrees, color.Black), nil
			},
			Geometry: rotateGeometry,
		}, 180),
		dualDegrees(&Spec{
			Kind:     Shear,
			Category: Geometric,
			Defaults: DegreesParams{Degrees: 10},
			Apply: func(img image.Image, p Params, _ *rand.Rand) (image.Image, error) {
				return pix.ShearH(img, p.(DegreesParams).Degrees), nil
			},
			Geometry: shearGeometry,
		}, 59),
		{
			Kind:     Crop,
			Category: Geometric,
			Dual:     true,
			Rule:     "mirror offset_x within [0, 100-scale]",
			Defaults: CropParams{OffsetX: 0, OffsetY: 0, Scale: 80},
			Apply: func(img image.Image, p Params, _ *rand.Rand) (image.Image, error) {
				b := img.Bounds()
				return pix.Crop(img, cropRect(p.(CropParams), b.Dx(), b.Dy()))
			},
			Geometry: func(p Params, srcW, srcH, _, _ int) annotation.Mapper {
				r := cropRect(p.(CropParams), srcW, srcH)
				x0, y0 := float64(r.Min.X), float64(r.Min.Y)
				return func(x, y float64) (float64, float64) { return x - x0, y - y0 }
			},
			validate: func(p Params) error {
				c := p.(CropParams)
				if c.Scale < 1 || c.Scale > 100 {
					return fmt.Errorf("scale %.2f outside [1,100]", c.Scale)
				}
				limit := 100 - c.Scale
				if c.OffsetX < 0 || c.OffsetX > limit || c.OffsetY < 0 || c.OffsetY > limit {
					return fmt.Errorf("offsets (%.2f,%.2f) outside [0,%.2f]", c.OffsetX, c.OffsetY, limit)
				}
				return nil
			},
			value: func(p Params) float64 { return p.(CropParams).OffsetX },
			withValue: func(p Params, v float64) Params {
				c := p.(CropParams)
				c.OffsetX = v
				return c
			},
			derive: func(p Params) Params {
				c := p.(CropParams)
				c.OffsetX = (100 - c.Scale) - c.OffsetX
				return c
			},
		},
		{
			Kind:     Zoom,
			Category: Geometric,
			Defaults: ZoomParams{Factor: 1.2},
			Apply: func(img image.Image, p Params, _ *rand.Rand) (image.Image, error) {
				b := img.Bounds()
				cropped, err := pix.Crop(img, zoomRect(p.(ZoomParams).Factor, b.Dx(), b.Dy()))
				if err != nil {
					return nil, err
				}
				return imaging.Resize(cropped, b.Dx(), b.Dy(), imaging.Lanczos), nil
			},
			Geometry: func(p Params, srcW, srcH, dstW, dstH int) annotation.Mapper {
				r := zoomRect(p.(ZoomParams).Factor, srcW, srcH)
				sx := float64(dstW) / float64(r.Dx())
				sy := float64(dstH) / float64(r.Dy())
				x0, y0 := float64(r.Min.X), float64(r.Min.Y)
				return func(x, y float64) (float64, float64) { return (x - x0) * sx, (y - y0) * sy }
			},
			validate: func(p Params) error {
				if f := p.(ZoomParams).Factor; f < 1 || f > 5 {
					return fmt.Errorf("factor %.2f outside [1,5]", f)
				}
				return nil
			},
		},
		{
			Kind:     Resize,
			Category: Geometric,
			Defaults: ResizeParams{Width: 640, Height: 640},
			Apply: func(img image.Image, p Params, _ *rand.Rand) (image.Image, error) {
				r := p.(ResizeParams)
				return imaging.Resize(img, r.Width, r.Height, imaging.Lanczos), nil
			},
			Geometry: func(_ Params, srcW, srcH, dstW, dstH int) annotation.Mapper {
				sx := float64(dstW) / float64(srcW)
				sy := float64(dstH) / float64(srcH)
				return func(x, y float64) (float64, float64) { return x * sx, y * sy }
			},
			validate: func(p Params) error {
				r := p.(ResizeParams)
				if r.Width < 1 || r.Height < 1 || r.Width > 16384 || r.Height > 16384 {
					return fmt.Errorf("size %dx%d outside [1,16384]", r.Width, r.Height)
				}
				return nil
			},
		},
		dualPercent(Brightness, 20, func(img image.Image, v float64) image.Image {
			return imaging.AdjustBrightness(img, v)
		}),
		dualPercent(Contrast, 20, func(img image.Image, v float64) image.Image {
			return imaging.AdjustContrast(img, v)
		}),
		{
			Kind:     Gamma,
			Category: Photometric,
			Dual:     true,
			Rule:     "reciprocal",
			Defaults: GammaParams{Gamma: 1.5},
			Apply: func(img image.Image, p Params, _ *rand.Rand) (image.Image, error) {
				return imaging.AdjustGamma(img, p.(GammaParams).Gamma), nil
			},
			validate: func(p Params) error {
				if g := p.(GammaParams).Gamma; g < 0.1 || g > 10 {
					return fmt.Errorf("gamma %.3f outside [0.1,10]", g)
				}
				return nil
			},
			value:     func(p Params) float64 { return p.(GammaParams).Gamma },
			withValue: func(_ Params, v float64) Params { return GammaParams{Gamma: v} },
			derive:    func(p Params) Params { return GammaParams{Gamma: 1 / p.(GammaParams).Gamma} },
		},
		dualPercent(Saturation, 25, func(img image.Image, v float64) image.Image {
			return imaging.AdjustSaturation(img, v)
		}),
		dualDegrees(&Spec{
			Kind:     Hue,
			Category: Photometric,
			Defaults: DegreesParams{Degrees: 20},
			Apply: func(img image.Image, p Params, _ *rand.Rand) (image.Image, error) {
				return pix.ShiftHue(img, p.(DegreesParams).Degrees), nil
			},
		}, 180),
		{
			Kind:     Equalize,
			Category: Photometric,
			Defaults: NoParams{},
			Apply: func(img image.Image, _ Params, _ *rand.Rand) (image.Image, error) {
				return pix.Equalize(img), nil
			},
		},
		{
			Kind:     Grayscale,
			Category: Photometric,
			Defaults: NoParams{},
			Apply: func(img image.Image, _ Params, _ *rand.Rand) (image.Image, error) {
				return imaging.Grayscale(img), nil
			},
		},
		sigma(Blur, func(img image.Image, s float64) image.Image { return imaging.Blur(img, s) }),
		sigma(Sharpen, func(img image.Image, s float64) image.Image { return imaging.Sharpen(img, s) }),
		{
			Kind:     Noise,
			Category: Photometric,
			Defaults: PercentParams{Percent: 5},
			Apply: func(img image.Image, p Params, rng *rand.Rand) (image.Image, error) {
				if rng == nil {
					rng = rand.New(rand.NewSource(1))
				}
				return pix.AddNoise(img, p.(PercentParams).Percent, rng), nil
			},
			validate: func(p Params) error {
				if v := p.(PercentParams).Percent; v < 0 || v > 100 {
					return fmt.Errorf("percent %.2f outside [0,100]", v)
				}
				return nil
			},
		},
	}
}

func dualPercent(k Kind, def float64, fn func(image.Image, float64) image.Image) *Spec {
	return &Spec{
		Kind:     k,
		Category: Photometric,
		Dual:     true,
		Rule:     "negate",
		Defaults: PercentParams{Percent: def},
		Apply: func(img image.Image, p Params, _ *rand.Rand) (image.Image, error) {
			return fn(img, p.(PercentParams).Percent), nil
		},
		validate: func(p Params) error {
			if v := p.(PercentParams).Percent; v < -100 || v > 100 {
				return fmt.Errorf("percent %.2f outside [-100,100]", v)
			}
			return nil
		},
		value:     func(p Params) float64 { return p.(PercentParams).Percent },
		withValue: func(_ Params, v float64) Params { return PercentParams{Percent: v} },
		derive:    func(p Params) Params { return PercentParams{Percent: -p.(PercentParams).Percent} },
	}
}

func dualDegrees(s *Spec, limit float64) *Spec {
	s.Dual = true
	s.Rule = "negate"
	s.validate = func(p Params) error {
		if v := p.(DegreesParams).Degrees; v < -limit || v > limit {
			return fmt.Errorf("degrees %.2f outside [-%g,%g]", v, limit, limit)
		}
		return nil
	}
	s.value = func(p Params) float64 { return p.(DegreesParams).Degrees }
	s.withValue = func(_ Params, v float64) Params { return DegreesParams{Degrees: v} }
	s.derive = func(p Params) Params { return DegreesParams{Degrees: -p.(DegreesParams).Degrees} }
	return s
}

func sigma(k Kind, fn func(image.Image, float64) image.Image) *Spec {
	return &Spec{
		Kind:     k,
		Category: Photometric,
		Defaults: SigmaParams{Sigma: 1},
		Apply: func(img image.Image, p Params, _ *rand.Rand) (image.Image, error) {
			return fn(img, p.(SigmaParams).Sigma), nil
		},
		validate: func(p Params) error {
			if s := p.(SigmaParams).Sigma; s <= 0 || s > 50 {
				return fmt.Errorf("sigma %.2f outside (0,50]", s)
			}
			return nil
		},
	}
}

// rotateGeometry maps points for imaging.Rotate, which turns counter-clockwise
// about the image center and grows the canvas to fit.
func rotateGeometry(p Params, srcW, srcH, dstW, dstH int) annotation.Mapper {
	sin, cos := math.Sincos(p.(DegreesParams).Degrees * math.Pi / 180)
	scx, scy := float64(srcW)/2, float64(srcH)/2
	dcx, dcy := float64(dstW)/2, float64(dstH)/2
	return func(x, y float64) (float64, float64) {
		dx, dy := x-scx, y-scy
		return dcx + dx*cos + dy*sin, dcy - dx*sin + dy*cos
	}
}

// shearGeometry maps points for bild's horizontal shear about the center: rows
// below the center move left for positive angles.
func shearGeometry(p Params, srcW, srcH, dstW, dstH int) annotation.Mapper {
	k := math.Tan(p.(DegreesParams).Degrees * math.Pi / 180)
	scx, scy := float64(srcW)/2, float64(srcH)/2
	dcx := float64(dstW) / 2
	sy := float64(dstH) / float64(srcH)
	return func(x, y float64) (float64, float64) {
		return dcx + (x - scx) - k*(y-scy), y * sy
	}
}

func cropRect(c CropParams, w, h int) image.Rectangle {
	x0 := int(math.Round(c.OffsetX / 100 * float64(w)))
	y0 := int(math.Round(c.OffsetY / 100 * float64(h)))
	cw := int(math.Round(c.Scale / 100 * float64(w)))
	ch := int(math.Round(c.Scale / 100 * float64(h)))
	if cw < 1 {
		cw = 1
	}
	if ch < 1 {
		ch = 1
	}
	if x0+cw > w {
		x0 = w - cw
	}
	if y0+ch > h {
		y0 = h - ch
	}
	return image.Rect(x0, y0, x0+cw, y0+ch)
}

func zoomRect(factor float64, w, h int) image.Rectangle {
	cw := int(math.Round(float64(w) / factor))
	ch := int(math.Round(float64(h) / factor))
	if cw < 1 {
		cw = 1
	}
	if ch < 1 {
		ch = 1
	}
	x0, y0 := (w-cw)/2, (h-ch)/2
	return image.Rect(x0, y0, x0+cw, y0+ch)
}
