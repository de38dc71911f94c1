package geom

import (
	"math"
	"testing"
)

func sp(x, y, t, p float64) StrokePoint {
	return StrokePoint{Point: Point{X: x, Y: y}, T: t, P: p}
}

func TestRect_ExpandFold(t *testing.T) {
	box := Empty()
	if !box.IsNegative() {
		t.Fatal("Empty should be negative")
	}
	box.ExpandWith(Rect{MinX: 1, MaxX: 2, MinY: 3, MaxY: 4})
	box.ExpandWithPoint(Point{X: -1, Y: 10})
	want := Rect{MinX: -1, MaxX: 2, MinY: 3, MaxY: 10}
	if box != want {
		t.Errorf("box = %+v, want %+v", box, want)
	}
	box.ExpandWith(Empty())
	if box != want {
		t.Errorf("expanding with Empty changed box: %+v", box)
	}
}

func TestRect_Derived(t *testing.T) {
	r := RectFromXYWH(10, 20, 30, 40)
	if r.Width() != 30 || r.Height() != 40 || r.MidX() != 25 || r.MidY() != 40 {
		t.Errorf("unexpected derived values for %+v", r)
	}
	r.Translate(Vector{X: -10, Y: 5})
	if r.MinX != 0 || r.MaxY != 65 {
		t.Errorf("translate = %+v", r)
	}
	if s := r.Scaled(2); s.MaxX != 60 || s.MinY != 50 {
		t.Errorf("scaled = %+v", s)
	}
}

func TestRect_Contains(t *testing.T) {
	r := Rect{MinX: 0, MaxX: 10, MinY: 0, MaxY: 10}
	if !r.Contains(Point{X: 0, Y: 5}, false) {
		t.Error("border point should be inside when not strict")
	}
	if r.Contains(Point{X: 0, Y: 5}, true) {
		t.Error("border point should be outside when strict")
	}
	if r.Contains(Point{X: 11, Y: 5}, false) {
		t.Error("outside point reported inside")
	}
}

func TestRect_IntersectsBorder(t *testing.T) {
	r := Rect{MinX: 0, MaxX: 10, MinY: 0, MaxY: 10}
	if !r.IntersectsBorder(Point{X: -5, Y: 5}, Point{X: 5, Y: 5}) {
		t.Error("segment crossing left edge not detected")
	}
	if r.IntersectsBorder(Point{X: 2, Y: 2}, Point{X: 8, Y: 8}) {
		t.Error("segment fully inside should not cross the border")
	}
	if !r.Touches(Point{X: 2, Y: 2}, Point{X: 8, Y: 8}) {
		t.Error("segment fully inside should touch")
	}
}

func TestSegmentsIntersect(t *testing.T) {
	tests := []struct {
		name         string
		p, p2, q, q2 Point
		want         bool
	}{
		{"crossing", Point{0, 0}, Point{10, 10}, Point{0, 10}, Point{10, 0}, true},
		{"disjoint", Point{0, 0}, Point{1, 1}, Point{5, 5}, Point{6, 0}, false},
		{"parallel", Point{0, 0}, Point{10, 0}, Point{0, 1}, Point{10, 1}, false},
		{"collinear overlap", Point{0, 0}, Point{10, 0}, Point{5, 0}, Point{15, 0}, true},
		{"collinear apart", Point{0, 0}, Point{1, 0}, Point{5, 0}, Point{6, 0}, false},
		{"shared endpoint", Point{0, 0}, Point{1, 1}, Point{1, 1}, Point{2, 0}, true},
		{"touching T", Point{0, 0}, Point{10, 0}, Point{5, 0}, Point{5, 5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SegmentsIntersect(tt.p, tt.p2, tt.q, tt.q2); got != tt.want {
				t.Errorf("SegmentsIntersect = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStroke_BoundingBoxAndTranslate(t *testing.T) {
	s := NewStroke(sp(1, 5, 0, 0), sp(4, 2, 1, 0), sp(3, 9, 2, 0))
	want := Rect{MinX: 1, MaxX: 4, MinY: 2, MaxY: 9}
	if got := s.BoundingBox(); got != want {
		t.Fatalf("box = %+v, want %+v", got, want)
	}
	s.Translate(Vector{X: 10, Y: 0})
	if got := s.BoundingBox(); got.MinX != 11 || got.MaxX != 14 {
		t.Errorf("translated box = %+v", got)
	}
	if !NewStroke().BoundingBox().IsNegative() {
		t.Error("empty stroke should have a negative box")
	}
}

func TestStroke_Clone(t *testing.T) {
	s := NewStroke(sp(1, 1, 0, 0))
	c := s.Clone()
	c.Points[0].X = 99
	if s.Points[0].X != 1 {
		t.Error("clone shares vertices with original")
	}
}

func TestChoppedVertical_InterpolatesBoundary(t *testing.T) {
	s := NewStroke(sp(0, 0, 0, 0), sp(10, 10, 10, 1))
	pieces := s.ChoppedVertical(">=", 5)
	if len(pieces) != 1 {
		t.Fatalf("len(pieces) = %d, want 1", len(pieces))
	}
	got := pieces[0].Points
	if len(got) != 2 {
		t.Fatalf("points = %+v", got)
	}
	if got[0].X != 5 || got[0].Y != 5 || got[0].T != 5 || got[0].P != 0.5 {
		t.Errorf("boundary vertex = %+v", got[0])
	}
	if got[1] != s.Points[1] {
		t.Errorf("kept vertex = %+v", got[1])
	}
}

func TestChoppedVertical_SplitsIntoRuns(t *testing.T) {
	// zig-zag crossing x=5 four times
	s := NewStroke(sp(0, 0, 0, 0), sp(10, 0, 1, 0), sp(0, 1, 2, 0), sp(10, 1, 3, 0))
	left := s.ChoppedVertical("<", 5)
	if len(left) != 2 {
		t.Fatalf("len(left) = %d, want 2", len(left))
	}
	right := s.ChoppedVertical(">", 5)
	if len(right) != 2 {
		t.Fatalf("len(right) = %d, want 2", len(right))
	}
	for _, piece := range append(left, right...) {
		for _, v := range piece.Points {
			if v.X != 0 && v.X != 5 && v.X != 10 {
				t.Errorf("unexpected vertex %+v", v)
			}
		}
	}
}

func TestChoppedVertical_NothingKept(t *testing.T) {
	s := NewStroke(sp(0, 0, 0, 0), sp(1, 0, 0, 0))
	if got := s.ChoppedVertical(">", 5); len(got) != 0 {
		t.Errorf("expected no pieces, got %d", len(got))
	}
}

func TestChoppedVertical_RoundTrip(t *testing.T) {
	s := NewStroke(sp(0, 0, 0, 0), sp(3, 4, 1, 0.2), sp(7, 0, 2, 0.4), sp(9, 6, 3, 0.6), sp(1, 10, 4, 0.8))
	const c = 5.0

	seen := map[Point]int{}
	for _, dir := range []string{">=", "<="} {
		for _, piece := range s.ChoppedVertical(dir, c) {
			for _, v := range piece.Points {
				seen[v.Point]++
			}
		}
	}

	for _, v := range s.Points {
		if seen[v.Point] != 1 {
			t.Errorf("original vertex %+v seen %d times, want 1", v.Point, seen[v.Point])
		}
		delete(seen, v.Point)
	}
	// What remains are the interpolated boundary vertices, each shared by both sides.
	if len(seen) != 2 {
		t.Fatalf("boundary vertices = %v, want 2", seen)
	}
	for pt, n := range seen {
		if math.Abs(pt.X-c) > 1e-12 {
			t.Errorf("boundary vertex %+v not on cutoff", pt)
		}
		if n != 2 {
			t.Errorf("boundary vertex %+v seen %d times, want 2", pt, n)
		}
	}
}

func TestChopAllAndBoundingBoxOf(t *testing.T) {
	strokes := []*Stroke{
		NewStroke(sp(0, 0, 0, 0), sp(10, 0, 0, 0)),
		NewStroke(sp(0, 2, 0, 0), sp(10, 2, 0, 0)),
	}
	chopped := ChopAll(strokes, "<=", 6)
	box := BoundingBoxOf(chopped)
	want := Rect{MinX: 0, MaxX: 6, MinY: 0, MaxY: 2}
	if box != want {
		t.Errorf("box = %+v, want %+v", box, want)
	}
	if !BoundingBoxOf(nil).IsNegative() {
		t.Error("box of no strokes should be negative")
	}
}
