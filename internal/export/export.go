// Package export writes release labels in training formats.
//
// Encoders write into the release tree laid out by the pack package:
// image files live under images/{split}/ and encoders put their label files
// under labels/{split}/ plus any format-level files at the tree root.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ironsheep/image-release-tools/internal/annotation"
	"github.com/ironsheep/image-release-tools/internal/apperr"
)

// Format names.
const (
	FormatYOLO    = "yolo"
	FormatYOLOSeg = "yolo-seg"
	FormatCOCO    = "coco"
)

// Task types used by ChooseFormat.
const (
	TaskDetection    = "detection"
	TaskSegmentation = "segmentation"
)

// Item is one image of the release as written to disk.
type Item struct {
	// Filename is the name under images/{split}/.
	Filename    string
	Split       string
	Width       int
	Height      int
	Annotations []annotation.Annotation
}

// Batch is everything an encoder needs for one release.
type Batch struct {
	Items []Item
	// Classes fixes the class index order. Use Classes to derive it.
	Classes []string
}

// Encoder writes labels for a batch below dir and returns the written paths
// relative to dir.
type Encoder interface {
	Name() string
	Encode(dir string, b Batch) ([]string, error)
}

// Registry maps format names to encoders.
type Registry struct {
	encoders map[string]Encoder
}

// NewRegistry returns a registry with the built-in encoders.
func NewRegistry() *Registry {
	r := &Registry{encoders: make(map[string]Encoder)}
	r.Register(YOLO{})
	r.Register(YOLO{Segmentation: true})
	r.Register(COCO{})
	return r
}

// Register adds or replaces an encoder under its name.
func (r *Registry) Register(e Encoder) {
	r.encoders[e.Name()] = e
}

// Lookup returns the encoder for name. Unknown names are configuration errors.
func (r *Registry) Lookup(name string) (Encoder, error) {
	e, ok := r.encoders[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, apperr.Configuration("export.Lookup",
			"unknown export format %q (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	return e, nil
}

// Names lists registered formats alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.encoders))
	for n := range r.encoders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ChooseFormat picks the export format from the task type and the annotation
// shapes present:
//
//	segmentation with polygons   -> yolo-seg
//	detection with boxes only    -> yolo
//	anything else                -> coco
func ChooseFormat(task string, hasPolygons, hasBoxes bool) string {
	switch strings.ToLower(task) {
	case TaskSegmentation:
		if hasPolygons {
			return FormatYOLOSeg
		}
	case TaskDetection:
		if hasBoxes && !hasPolygons {
			return FormatYOLO
		}
	}
	return FormatCOCO
}

// Shapes reports which annotation variants appear in the batch.
func (b Batch) Shapes() (hasPolygons, hasBoxes bool) {
	for _, it := range b.Items {
		for _, a := range it.Annotations {
			switch a.Kind {
			case annotation.KindPolygon:
				hasPolygons = true
			case annotation.KindBox:
				hasBoxes = true
			}
		}
	}
	return hasPolygons, hasBoxes
}

// Classes returns the sorted set of class names used by items.
func Classes(items []Item) []string {
	seen := make(map[string]bool)
	var out []string
	for _, it := range items {
		for _, a := range it.Annotations {
			if !seen[a.Class] {
				seen[a.Class] = true
				out = append(out, a.Class)
			}
		}
	}
	sort.Strings(out)
	return out
}

func classIndex(classes []string) map[string]int {
	idx := make(map[string]int, len(classes))
	for i, c := range classes {
		idx[c] = i
	}
	return idx
}

func lookupClass(idx map[string]int, class string) (int, error) {
	i, ok := idx[class]
	if !ok {
		return 0, fmt.Errorf("class %q missing from class list", class)
	}
	return i, nil
}
