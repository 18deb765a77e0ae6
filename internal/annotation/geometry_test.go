package annotation

import (
	"math"
	"testing"
)

const eps = 1e-9

func boxesEqual(a, b Box, tol float64) bool {
	return math.Abs(a.XMin-b.XMin) <= tol && math.Abs(a.YMin-b.YMin) <= tol &&
		math.Abs(a.XMax-b.XMax) <= tol && math.Abs(a.YMax-b.YMax) <= tol
}

func TestMap_FlipSwapsMinMax(t *testing.T) {
	anns := []Annotation{NewBox("car", 10, 10, 50, 30)}
	flip := func(x, y float64) (float64, float64) { return 100 - x, y }

	got := Map(anns, flip)
	want := Box{XMin: 50, YMin: 10, XMax: 90, YMax: 30}
	if !boxesEqual(got[0].Box, want, eps) {
		t.Errorf("got %+v, want %+v", got[0].Box, want)
	}
	if anns[0].Box.XMin != 10 {
		t.Error("Map mutated its input")
	}
}

func TestMap_Polygon(t *testing.T) {
	anns := []Annotation{NewPolygon("roof", Point{0, 0}, Point{10, 0}, Point{5, 8})}
	scale := func(x, y float64) (float64, float64) { return x * 2, y / 2 }

	got := Map(anns, scale)
	want := []Point{{0, 0}, {20, 0}, {10, 4}}
	for i, p := range got[0].Points {
		if p != want[i] {
			t.Errorf("point %d: got %+v, want %+v", i, p, want[i])
		}
	}
}

func TestSanitize_ClampsAndDrops(t *testing.T) {
	anns := []Annotation{
		NewBox("a", -5, -5, 20, 20),   // clamped to [0,0,20,20]
		NewBox("b", 120, 10, 150, 30), // entirely outside: collapses to zero width
		NewBox("c", 30, 30, 30, 40),   // zero width
		NewPolygon("d", Point{-10, -10}, Point{-5, -10}, Point{-5, -5}), // collapses to one point
		NewPolygon("e", Point{10, 10}, Point{90, 10}, Point{50, 60}),
	}

	kept, dropped := Sanitize(anns, 100, 50)
	if dropped != 3 {
		t.Errorf("dropped: got %d, want 3", dropped)
	}
	if len(kept) != 2 {
		t.Fatalf("kept: got %d, want 2", len(kept))
	}
	if !boxesEqual(kept[0].Box, Box{0, 0, 20, 20}, eps) {
		t.Errorf("clamped box: got %+v", kept[0].Box)
	}
	if kept[1].Points[2].Y != 50 {
		t.Errorf("polygon point not clamped to height: %+v", kept[1].Points[2])
	}
}

func TestSanitize_NeverEmitsDegenerateBoxes(t *testing.T) {
	anns := []Annotation{
		{Kind: KindBox, Class: "x", Box: Box{XMin: 40, YMin: 10, XMax: 20, YMax: 30}},
		{Kind: KindBox, Class: "y", Box: Box{XMin: 10, YMin: 30, XMax: 20, YMax: 30}},
	}
	kept, dropped := Sanitize(anns, 100, 100)
	if len(kept) != 0 || dropped != 2 {
		t.Errorf("got kept=%d dropped=%d, want 0 and 2", len(kept), dropped)
	}
}

func TestBounds_Polygon(t *testing.T) {
	a := NewPolygon("p", Point{3, 9}, Point{7, 1}, Point{1, 4})
	want := Box{XMin: 1, YMin: 1, XMax: 7, YMax: 9}
	if a.Bounds() != want {
		t.Errorf("got %+v, want %+v", a.Bounds(), want)
	}
}

func TestValidate(t *testing.T) {
	if err := NewBox("a", 0, 0, 1, 1).Validate(); err != nil {
		t.Errorf("valid box rejected: %v", err)
	}
	if err := NewBox("a", 1, 0, 1, 1).Validate(); err == nil {
		t.Error("degenerate box accepted")
	}
	if err := NewPolygon("p", Point{0, 0}, Point{1, 1}).Validate(); err == nil {
		t.Error("two-point polygon accepted")
	}
	if err := (Annotation{Kind: "ellipse"}).Validate(); err == nil {
		t.Error("unknown kind accepted")
	}
}

func TestClasses_FirstSeenOrder(t *testing.T) {
	anns := []Annotation{NewBox("dog", 0, 0, 1, 1), NewBox("cat", 0, 0, 1, 1), NewBox("dog", 0, 0, 1, 1)}
	got := Classes(anns)
	if len(got) != 2 || got[0] != "dog" || got[1] != "cat" {
		t.Errorf("got %v", got)
	}
}
