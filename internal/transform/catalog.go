package transform

import (
	"fmt"
	"image"
	"math/rand"
	"sort"

	"github.com/go-viper/mapstructure/v2"

	"github.com/ironsheep/image-release-tools/internal/annotation"
	"github.com/ironsheep/image-release-tools/internal/apperr"
)

// ApplyFunc transforms pixels. rng is only consulted by stochastic kinds.
type ApplyFunc func(img image.Image, p Params, rng *rand.Rand) (image.Image, error)

// GeometryFunc returns the point mapper for one application of a geometric kind.
type GeometryFunc func(p Params, srcW, srcH, dstW, dstH int) annotation.Mapper

// Spec describes one catalog entry.
type Spec struct {
	Kind     Kind
	Category Category
	// Dual is true when the kind supports user/auto value pairs.
	Dual bool
	// Rule documents the auto-value derivation for dual kinds.
	Rule string

	Defaults Params
	Apply    ApplyFunc
	Geometry GeometryFunc

	validate  func(Params) error
	value     func(Params) float64
	withValue func(Params, float64) Params
	derive    func(Params) Params
}

// Catalog maps kinds to specs and fixes their canonical order.
type Catalog struct {
	specs map[Kind]*Spec
	order []Kind
}

// NewCatalog returns a catalog with every built-in kind registered.
func NewCatalog() *Catalog {
	c := &Catalog{specs: make(map[Kind]*Spec)}
	for _, s := range builtins() {
		if err := c.Register(s); err != nil {
			panic(err)
		}
	}
	return c
}

// Register adds a spec. Registration order is the catalog order.
func (c *Catalog) Register(s *Spec) error {
	if s.Kind == "" || s.Apply == nil || s.Defaults == nil {
		return fmt.Errorf("transform: incomplete spec for %q", s.Kind)
	}
	if _, dup := c.specs[s.Kind]; dup {
		return fmt.Errorf("transform: %q already registered", s.Kind)
	}
	if s.Category == Geometric && s.Geometry == nil {
		return fmt.Errorf("transform: geometric kind %q needs a geometry function", s.Kind)
	}
	if s.Dual && (s.value == nil || s.withValue == nil || s.derive == nil) {
		return fmt.Errorf("transform: dual kind %q needs value and derivation rules", s.Kind)
	}
	c.specs[s.Kind] = s
	c.order = append(c.order, s.Kind)
	return nil
}

// Lookup returns the spec for k.
func (c *Catalog) Lookup(k Kind) (*Spec, bool) {
	s, ok := c.specs[k]
	return s, ok
}

// Kinds returns all kinds in catalog order.
func (c *Catalog) Kinds() []Kind {
	out := make([]Kind, len(c.order))
	copy(out, c.order)
	return out
}

// Index returns the catalog position of k, or -1.
func (c *Catalog) Index(k Kind) int {
	for i, o := range c.order {
		if o == k {
			return i
		}
	}
	return -1
}

// Specs returns every spec in catalog order.
func (c *Catalog) Specs() []*Spec {
	out := make([]*Spec, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.specs[k])
	}
	return out
}

// KindInfo is the public description of a catalog entry.
type KindInfo struct {
	Kind     Kind                   `json:"kind"`
	Category Category               `json:"category"`
	Dual     bool                   `json:"dual"`
	Rule     string                 `json:"auto_value_rule,omitempty"`
	Defaults map[string]interface{} `json:"defaults"`
}

// Describe lists every kind in catalog order.
func (c *Catalog) Describe() []KindInfo {
	out := make([]KindInfo, 0, len(c.order))
	for _, s := range c.Specs() {
		out = append(out, KindInfo{
			Kind:     s.Kind,
			Category: s.Category,
			Dual:     s.Dual,
			Rule:     s.Rule,
			Defaults: Encode(s.Defaults),
		})
	}
	return out
}

// Decode turns an authored parameter map into the kind's typed params, starting
// from the kind's defaults. Unknown keys and out-of-range values are
// configuration errors.
func (c *Catalog) Decode(k Kind, raw map[string]interface{}) (Params, error) {
	s, ok := c.specs[k]
	if !ok {
		return nil, apperr.Configuration("transform.Decode", "unknown transformation kind %q", k)
	}
	p, err := decodeParams(s.Defaults, raw)
	if err != nil {
		return nil, apperr.Configuration("transform.Decode", "%s: %v", k, err)
	}
	if err := c.Validate(k, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks p against the kind's ranges.
func (c *Catalog) Validate(k Kind, p Params) error {
	s, ok := c.specs[k]
	if !ok {
		return apperr.Configuration("transform.Validate", "unknown transformation kind %q", k)
	}
	if s.validate == nil {
		return nil
	}
	if err := s.validate(p); err != nil {
		return apperr.Configuration("transform.Validate", "%s: %v", k, err)
	}
	return nil
}

// Value returns the primary scalar of a dual kind's params.
func (c *Catalog) Value(k Kind, p Params) (float64, error) {
	s, err := c.dualSpec(k)
	if err != nil {
		return 0, err
	}
	return s.value(p), nil
}

// WithValue returns p with its primary scalar replaced by v, validated.
func (c *Catalog) WithValue(k Kind, p Params, v float64) (Params, error) {
	s, err := c.dualSpec(k)
	if err != nil {
		return nil, err
	}
	out := s.withValue(p, v)
	if err := c.Validate(k, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Derive applies the kind's auto-value rule to p.
func (c *Catalog) Derive(k Kind, p Params) (Params, error) {
	s, err := c.dualSpec(k)
	if err != nil {
		return nil, err
	}
	out := s.derive(p)
	if err := c.Validate(k, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Catalog) dualSpec(k Kind) (*Spec, error) {
	s, ok := c.specs[k]
	if !ok {
		return nil, apperr.Configuration("transform", "unknown transformation kind %q", k)
	}
	if !s.Dual {
		return nil, apperr.Configuration("transform", "%q does not support dual values", k)
	}
	return s, nil
}

// SortKinds orders kinds by catalog position; unknown kinds sort last by name.
func (c *Catalog) SortKinds(kinds []Kind) {
	sort.SliceStable(kinds, func(i, j int) bool {
		a, b := c.Index(kinds[i]), c.Index(kinds[j])
		if a < 0 && b < 0 {
			return kinds[i] < kinds[j]
		}
		if a < 0 || b < 0 {
			return b < 0
		}
		return a < b
	})
}

// decodeParams copies def and overlays raw onto the copy.
func decodeParams(def Params, raw map[string]interface{}) (Params, error) {
	switch d := def.(type) {
	case NoParams:
		if len(raw) > 0 {
			return nil, fmt.Errorf("takes no parameters")
		}
		return d, nil
	case PercentParams:
		return decodeInto(d, raw)
	case DegreesParams:
		return decodeInto(d, raw)
	case GammaParams:
		return decodeInto(d, raw)
	case SigmaParams:
		return decodeInto(d, raw)
	case ResizeParams:
		return decodeInto(d, raw)
	case CropParams:
		return decodeInto(d, raw)
	case ZoomParams:
		return decodeInto(d, raw)
	}
	return nil, fmt.Errorf("unsupported params type %T", def)
}

func decodeInto[T Params](p T, raw map[string]interface{}) (Params, error) {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, err
	}
	return p, nil
}

// Encode flattens typed params back into an authored map.
func Encode(p Params) map[string]interface{} {
	out := make(map[string]interface{})
	if p == nil {
		return out
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &out, TagName: "json"})
	if err != nil {
		return out
	}
	_ = dec.Decode(p)
	return out
}
