package transform

// Kind identifies a transformation in the catalog.
type Kind string

const (
	FlipHorizontal Kind = "flip_horizontal"
	FlipVertical   Kind = "flip_vertical"
	Rotate         Kind = "rotate"
	Shear          Kind = "shear"
	Crop           Kind = "crop"
	Zoom           Kind = "zoom"
	Resize         Kind = "resize"
	Brightness     Kind = "brightness"
	Contrast       Kind = "contrast"
	Gamma          Kind = "gamma"
	Saturation     Kind = "saturation"
	Hue            Kind = "hue"
	Equalize       Kind = "equalize"
	Grayscale      Kind = "grayscale"
	Blur           Kind = "blur"
	Sharpen        Kind = "sharpen"
	Noise          Kind = "noise"
)

// Category separates pixel-only kinds from kinds that move pixels around.
type Category string

const (
	Photometric Category = "photometric"
	Geometric   Category = "geometric"
)

// Params is the closed set of typed parameter structs.
type Params interface {
	params()
}

// NoParams is used by kinds without parameters.
type NoParams struct{}

// PercentParams is a percentage: -100..100 for the sliders, 0..100 for noise.
type PercentParams struct {
	Percent float64 `json:"percent"`
}

// DegreesParams is an angle in degrees for rotate, shear and hue.
type DegreesParams struct {
	Degrees float64 `json:"degrees"`
}

// GammaParams holds the gamma exponent; 1 leaves the image unchanged.
type GammaParams struct {
	Gamma float64 `json:"gamma"`
}

// SigmaParams is the Gaussian radius for blur and sharpen.
type SigmaParams struct {
	Sigma float64 `json:"sigma"`
}

// ResizeParams is the target size in pixels.
type ResizeParams struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CropParams selects a square-proportioned window: Scale percent of each side,
// starting OffsetX/OffsetY percent from the top-left corner.
type CropParams struct {
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
	Scale   float64 `json:"scale"`
}

// ZoomParams enlarges the center of the image by Factor, keeping its size.
type ZoomParams struct {
	Factor float64 `json:"factor"`
}

func (NoParams) params()      {}
func (PercentParams) params() {}
func (DegreesParams) params() {}
func (GammaParams) params()   {}
func (SigmaParams) params()   {}
func (ResizeParams) params()  {}
func (CropParams) params()    {}
func (ZoomParams) params()    {}
