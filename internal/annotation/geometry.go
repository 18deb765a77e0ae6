package annotation

import "math"

// Mapper maps a source point to its position after a geometric transform.
type Mapper func(x, y float64) (float64, float64)

// Map applies m to every annotation and returns new annotations.
//
// Polygons map point by point. Boxes map their four corners and take the
// enclosing envelope, so mirroring transforms swap min and max naturally:
// flipping [10,50] horizontally in a 100-wide image yields [50,90].
func Map(anns []Annotation, m Mapper) []Annotation {
	out := make([]Annotation, 0, len(anns))
	for _, a := range anns {
		c := a.Clone()
		switch a.Kind {
		case KindPolygon:
			for i, p := range c.Points {
				c.Points[i].X, c.Points[i].Y = m(p.X, p.Y)
			}
		default:
			corners := a.Box.Corners()
			for i, p := range corners {
				corners[i].X, corners[i].Y = m(p.X, p.Y)
			}
			c.Box = envelope(corners)
		}
		out = append(out, c)
	}
	return out
}

// Sanitize clamps every coordinate to [0,width]×[0,height] and drops boxes with
// no area and polygons left with fewer than three distinct points. It returns
// the kept annotations and the number dropped.
func Sanitize(anns []Annotation, width, height int) ([]Annotation, int) {
	w, h := float64(width), float64(height)
	kept := make([]Annotation, 0, len(anns))
	dropped := 0
	for _, a := range anns {
		c := a.Clone()
		switch c.Kind {
		case KindPolygon:
			pts := c.Points[:0]
			for _, p := range c.Points {
				q := Point{X: clamp(p.X, 0, w), Y: clamp(p.Y, 0, h)}
				if len(pts) > 0 && pts[len(pts)-1] == q {
					continue
				}
				pts = append(pts, q)
			}
			if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
				pts = pts[:len(pts)-1]
			}
			c.Points = pts
			if len(c.Points) < 3 {
				dropped++
				continue
			}
		case KindBox:
			c.Box = Box{
				XMin: clamp(c.Box.XMin, 0, w),
				YMin: clamp(c.Box.YMin, 0, h),
				XMax: clamp(c.Box.XMax, 0, w),
				YMax: clamp(c.Box.YMax, 0, h),
			}
			if c.Box.XMin >= c.Box.XMax || c.Box.YMin >= c.Box.YMax {
				dropped++
				continue
			}
		default:
			dropped++
			continue
		}
		kept = append(kept, c)
	}
	return kept, dropped
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// Classes returns the distinct class names in first-seen order.
func Classes(anns []Annotation) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range anns {
		if !seen[a.Class] {
			seen[a.Class] = true
			out = append(out, a.Class)
		}
	}
	return out
}
