package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/image-release-tools/internal/annotation"
	"github.com/ironsheep/image-release-tools/internal/apperr"
)

// YOLO writes one text file per image with normalized coordinates. In
// segmentation mode every annotation becomes a polygon line; boxes are written
// as their four corners.
type YOLO struct {
	Segmentation bool
}

// Name implements Encoder.
func (y YOLO) Name() string {
	if y.Segmentation {
		return FormatYOLOSeg
	}
	return FormatYOLO
}

type yoloDataFile struct {
	Path  string         `yaml:"path"`
	Train string         `yaml:"train,omitempty"`
	Val   string         `yaml:"val,omitempty"`
	Test  string         `yaml:"test,omitempty"`
	NC    int            `yaml:"nc"`
	Names map[int]string `yaml:"names"`
}

// Encode implements Encoder. It also writes data.yaml at the tree root.
func (y YOLO) Encode(dir string, b Batch) ([]string, error) {
	op := "export." + y.Name()
	idx := classIndex(b.Classes)
	splits := make(map[string]bool)
	labels := make(map[string]string)
	var written []string

	for _, it := range b.Items {
		if it.Width <= 0 || it.Height <= 0 {
			return nil, apperr.Packaging(op, fmt.Errorf("%s: invalid size %dx%d", it.Filename, it.Width, it.Height))
		}
		var lines []string
		for _, a := range it.Annotations {
			ci, err := lookupClass(idx, a.Class)
			if err != nil {
				return nil, apperr.Packaging(op, err)
			}
			lines = append(lines, y.line(ci, a, float64(it.Width), float64(it.Height)))
		}

		stem := strings.TrimSuffix(it.Filename, filepath.Ext(it.Filename))
		rel := filepath.Join("labels", it.Split, stem+".txt")
		if prev, dup := labels[strings.ToLower(rel)]; dup {
			return nil, apperr.Packaging(op, fmt.Errorf("%s and %s share label file %s", prev, it.Filename, rel))
		}
		labels[strings.ToLower(rel)] = it.Filename
		content := strings.Join(lines, "\n")
		if content != "" {
			content += "\n"
		}
		if err := writeFile(filepath.Join(dir, rel), []byte(content)); err != nil {
			return nil, apperr.Packaging(op, err)
		}
		written = append(written, rel)
		splits[it.Split] = true
	}

	data := yoloDataFile{Path: ".", NC: len(b.Classes), Names: make(map[int]string, len(b.Classes))}
	for i, c := range b.Classes {
		data.Names[i] = c
	}
	if splits["train"] {
		data.Train = "images/train"
	}
	if splits["val"] {
		data.Val = "images/val"
	}
	if splits["test"] {
		data.Test = "images/test"
	}
	out, err := yaml.Marshal(data)
	if err != nil {
		return nil, apperr.Packaging(op, err)
	}
	if err := writeFile(filepath.Join(dir, "data.yaml"), out); err != nil {
		return nil, apperr.Packaging(op, err)
	}
	return append(written, "data.yaml"), nil
}

func (y YOLO) line(class int, a annotation.Annotation, w, h float64) string {
	fields := []string{strconv.Itoa(class)}
	if y.Segmentation {
		pts := a.Points
		if a.Kind != annotation.KindPolygon {
			pts = a.Box.Corners()
		}
		for _, p := range pts {
			fields = append(fields, norm(p.X/w), norm(p.Y/h))
		}
		return strings.Join(fields, " ")
	}
	bx := a.Bounds()
	fields = append(fields,
		norm((bx.XMin+bx.XMax)/2/w),
		norm((bx.YMin+bx.YMax)/2/h),
		norm(bx.Width()/w),
		norm(bx.Height()/h),
	)
	return strings.Join(fields, " ")
}

func norm(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
