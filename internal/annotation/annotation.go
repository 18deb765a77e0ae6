// Package annotation models bounding-box and polygon labels and the geometry
// helpers that keep them consistent with transformed pixels.
//
// # Coordinate System
//
// Coordinates are float64 pixel positions with the origin at the top-left corner,
// X increasing rightward and Y increasing downward. A box spans
// [XMin, XMax] × [YMin, YMax]; valid boxes satisfy XMin < XMax and YMin < YMax.
package annotation

import (
	"fmt"
	"math"
)

// Kind tags the variant held by an Annotation.
type Kind string

const (
	KindBox     Kind = "box"
	KindPolygon Kind = "polygon"
)

// Point is a polygon vertex in pixel space.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Box is an axis-aligned bounding box.
type Box struct {
	XMin float64 `json:"x_min" yaml:"x_min"`
	YMin float64 `json:"y_min" yaml:"y_min"`
	XMax float64 `json:"x_max" yaml:"x_max"`
	YMax float64 `json:"y_max" yaml:"y_max"`
}

// Width returns XMax - XMin.
func (b Box) Width() float64 { return b.XMax - b.XMin }

// Height returns YMax - YMin.
func (b Box) Height() float64 { return b.YMax - b.YMin }

// Corners returns the four corners clockwise from the top-left.
func (b Box) Corners() []Point {
	return []Point{
		{b.XMin, b.YMin},
		{b.XMax, b.YMin},
		{b.XMax, b.YMax},
		{b.XMin, b.YMax},
	}
}

// Annotation is either a box or a polygon, selected by Kind.
type Annotation struct {
	Kind       Kind    `json:"kind" yaml:"kind"`
	Class      string  `json:"class" yaml:"class"`
	Confidence float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Box        Box     `json:"box,omitempty" yaml:"box,omitempty"`
	Points     []Point `json:"points,omitempty" yaml:"points,omitempty"`
}

// NewBox builds a box annotation.
func NewBox(class string, xMin, yMin, xMax, yMax float64) Annotation {
	return Annotation{Kind: KindBox, Class: class, Confidence: 1, Box: Box{xMin, yMin, xMax, yMax}}
}

// NewPolygon builds a polygon annotation. The points slice is copied.
func NewPolygon(class string, pts ...Point) Annotation {
	cp := make([]Point, len(pts))
	copy(cp, pts)
	return Annotation{Kind: KindPolygon, Class: class, Confidence: 1, Points: cp}
}

// Clone returns a deep copy.
func (a Annotation) Clone() Annotation {
	out := a
	if a.Points != nil {
		out.Points = make([]Point, len(a.Points))
		copy(out.Points, a.Points)
	}
	return out
}

// Bounds returns the enclosing box for either variant.
func (a Annotation) Bounds() Box {
	if a.Kind != KindPolygon {
		return a.Box
	}
	return envelope(a.Points)
}

// Validate checks that the variant is known and structurally usable.
func (a Annotation) Validate() error {
	switch a.Kind {
	case KindBox:
		if a.Box.XMin >= a.Box.XMax || a.Box.YMin >= a.Box.YMax {
			return fmt.Errorf("degenerate box %+v", a.Box)
		}
	case KindPolygon:
		if len(a.Points) < 3 {
			return fmt.Errorf("polygon needs at least 3 points, got %d", len(a.Points))
		}
	default:
		return fmt.Errorf("unknown annotation kind %q", a.Kind)
	}
	return nil
}

func envelope(pts []Point) Box {
	if len(pts) == 0 {
		return Box{}
	}
	b := Box{XMin: math.Inf(1), YMin: math.Inf(1), XMax: math.Inf(-1), YMax: math.Inf(-1)}
	for _, p := range pts {
		b.XMin = math.Min(b.XMin, p.X)
		b.YMin = math.Min(b.YMin, p.Y)
		b.XMax = math.Max(b.XMax, p.X)
		b.YMax = math.Max(b.YMax, p.Y)
	}
	return b
}
