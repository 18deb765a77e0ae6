package export

import (
	"encoding/json"
	"path/filepath"
	"sort"

	"github.com/ironsheep/image-release-tools/internal/annotation"
	"github.com/ironsheep/image-release-tools/internal/apperr"
)

// COCO writes one annotations.json per split holding boxes and polygons.
type COCO struct{}

// Name implements Encoder.
func (COCO) Name() string { return FormatCOCO }

type cocoFile struct {
	Images      []cocoImage      `json:"images"`
	Annotations []cocoAnnotation `json:"annotations"`
	Categories  []cocoCategory   `json:"categories"`
}

type cocoImage struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type cocoAnnotation struct {
	ID           int         `json:"id"`
	ImageID      int         `json:"image_id"`
	CategoryID   int         `json:"category_id"`
	BBox         [4]float64  `json:"bbox"`
	Area         float64     `json:"area"`
	Segmentation [][]float64 `json:"segmentation,omitempty"`
	IsCrowd      int         `json:"iscrowd"`
}

type cocoCategory struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Encode implements Encoder. Category ids start at 1 in class order.
func (COCO) Encode(dir string, b Batch) ([]string, error) {
	idx := classIndex(b.Classes)
	var cats []cocoCategory
	for i, c := range b.Classes {
		cats = append(cats, cocoCategory{ID: i + 1, Name: c})
	}

	files := make(map[string]*cocoFile)
	for _, it := range b.Items {
		f := files[it.Split]
		if f == nil {
			f = &cocoFile{Images: []cocoImage{}, Annotations: []cocoAnnotation{}, Categories: cats}
			files[it.Split] = f
		}
		imgID := len(f.Images) + 1
		f.Images = append(f.Images, cocoImage{ID: imgID, FileName: it.Filename, Width: it.Width, Height: it.Height})

		for _, a := range it.Annotations {
			ci, err := lookupClass(idx, a.Class)
			if err != nil {
				return nil, apperr.Packaging("export.coco", err)
			}
			bx := a.Bounds()
			ca := cocoAnnotation{
				ID:         len(f.Annotations) + 1,
				ImageID:    imgID,
				CategoryID: ci + 1,
				BBox:       [4]float64{bx.XMin, bx.YMin, bx.Width(), bx.Height()},
				Area:       bx.Width() * bx.Height(),
			}
			if a.Kind == annotation.KindPolygon {
				seg := make([]float64, 0, 2*len(a.Points))
				for _, p := range a.Points {
					seg = append(seg, p.X, p.Y)
				}
				ca.Segmentation = [][]float64{seg}
				ca.Area = polygonArea(a.Points)
			}
			f.Annotations = append(f.Annotations, ca)
		}
	}

	splits := make([]string, 0, len(files))
	for s := range files {
		splits = append(splits, s)
	}
	sort.Strings(splits)

	var written []string
	for _, s := range splits {
		data, err := json.MarshalIndent(files[s], "", "  ")
		if err != nil {
			return nil, apperr.Packaging("export.coco", err)
		}
		rel := filepath.Join("labels", s, "annotations.json")
		if err := writeFile(filepath.Join(dir, rel), data); err != nil {
			return nil, apperr.Packaging("export.coco", err)
		}
		written = append(written, rel)
	}
	return written, nil
}

// polygonArea is the shoelace area.
func polygonArea(pts []annotation.Point) float64 {
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	if sum < 0 {
		sum = -sum
	}
	return sum / 2
}
