package augment

import (
	"fmt"
	"image"
	"log/slog"
	"math/rand"

	"github.com/ironsheep/image-release-tools/internal/annotation"
	"github.com/ironsheep/image-release-tools/internal/apperr"
	pix "github.com/ironsheep/image-release-tools/internal/imaging"
	"github.com/ironsheep/image-release-tools/internal/logging"
	"github.com/ironsheep/image-release-tools/internal/planner"
	"github.com/ironsheep/image-release-tools/internal/transform"
)

// Result is the outcome of applying one config to one image.
type Result struct {
	Image         image.Image
	Width         int
	Height        int
	Annotations   []annotation.Annotation
	ConfigID      string
	SourceImageID string
	// Applied lists the kinds that ran, Skipped the ones the catalog did not know.
	Applied []transform.Kind
	Skipped []transform.Kind
	// Dropped counts annotations removed as degenerate.
	Dropped int
}

// Engine applies configs using a catalog and a codec.
type Engine struct {
	catalog *transform.Catalog
	codec   *pix.Codec
	log     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger replaces the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New returns an engine. codec may be nil when only Apply is used.
func New(catalog *transform.Catalog, codec *pix.Codec, opts ...Option) *Engine {
	e := &Engine{catalog: catalog, codec: codec}
	for _, o := range opts {
		o(e)
	}
	if e.log == nil {
		e.log = logging.L()
	}
	return e
}

// Apply runs cfg on img and carries anns along. seed drives stochastic steps
// such as noise, so the same inputs always give the same pixels.
//
// A step whose kind is not in the catalog is logged and skipped; the remaining
// steps still run. A step that fails is a transform error and aborts the call.
func (e *Engine) Apply(img image.Image, cfg planner.Config, anns []annotation.Annotation, seed int64) (*Result, error) {
	if img == nil {
		return nil, apperr.Transform("augment.Apply", "nil image")
	}
	res := &Result{ConfigID: cfg.ID}
	rng := rand.New(rand.NewSource(seed))

	cur := img
	b := cur.Bounds()
	w, h := b.Dx(), b.Dy()
	current := make([]annotation.Annotation, len(anns))
	for i, a := range anns {
		current[i] = a.Clone()
	}

	for _, step := range cfg.Steps {
		spec, ok := e.catalog.Lookup(step.Kind)
		if !ok || spec.Apply == nil {
			e.log.Warn("skipping unknown transformation", "kind", step.Kind, "config", cfg.ID)
			res.Skipped = append(res.Skipped, step.Kind)
			continue
		}

		out, err := spec.Apply(cur, step.Params, rng)
		if err != nil {
			return nil, apperr.Transform("augment.Apply", "%s: %v", step.Kind, err)
		}
		ob := out.Bounds()
		nw, nh := ob.Dx(), ob.Dy()
		if nw <= 0 || nh <= 0 {
			return nil, apperr.Transform("augment.Apply", "%s produced an empty image", step.Kind)
		}

		if spec.Category == transform.Geometric && spec.Geometry != nil && len(current) > 0 {
			current = annotation.Map(current, spec.Geometry(step.Params, w, h, nw, nh))
		}
		cur, w, h = out, nw, nh
		res.Applied = append(res.Applied, step.Kind)
	}

	kept, dropped := annotation.Sanitize(current, w, h)
	if dropped > 0 {
		e.log.Debug("dropped degenerate annotations", "config", cfg.ID, "count", dropped)
	}

	res.Image = cur
	res.Width, res.Height = w, h
	res.Annotations = kept
	res.Dropped = dropped
	return res, nil
}

// ApplyFile loads the image at path through the engine's codec and applies
// cfg. Load failures are IO errors.
func (e *Engine) ApplyFile(imageID, path string, cfg planner.Config, anns []annotation.Annotation, seed int64) (*Result, error) {
	if e.codec == nil {
		return nil, apperr.IO("augment.ApplyFile", fmt.Errorf("no codec configured"))
	}
	img, err := e.codec.Load(path)
	if err != nil {
		return nil, err
	}
	res, err := e.Apply(img, cfg, anns, seed)
	if err != nil {
		return nil, err
	}
	res.SourceImageID = imageID
	return res, nil
}
