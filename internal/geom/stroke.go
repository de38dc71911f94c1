package geom

import "fmt"

// StrokePoint is a sampled ink vertex: position, timestamp and normalised pressure.
type StrokePoint struct {
	Point
	T float64 `json:"t"`
	P float64 `json:"p"`
}

// Scaled returns the vertex with its position multiplied by mul.
func (v StrokePoint) Scaled(mul float64) StrokePoint {
	return StrokePoint{Point: v.Point.Scaled(mul), T: v.T, P: v.P}
}

// Stroke is one polyline of ink. It owns its vertices.
type Stroke struct {
	Points []StrokePoint `json:"points"`
}

// NewStroke creates a stroke from the given vertices.
func NewStroke(points ...StrokePoint) *Stroke {
	return &Stroke{Points: points}
}

// BoundingBox computes the box of all vertices. It is never cached.
// A stroke without vertices yields a negative rectangle.
func (s *Stroke) BoundingBox() Rect {
	box := Empty()
	for _, v := range s.Points {
		box.ExpandWithPoint(v.Point)
	}
	return box
}

// Translate moves every vertex by d.
func (s *Stroke) Translate(d Vector) {
	for i := range s.Points {
		s.Points[i].Point = s.Points[i].Point.Add(d)
	}
}

// Clone returns a deep copy.
func (s *Stroke) Clone() *Stroke {
	out := &Stroke{Points: make([]StrokePoint, len(s.Points))}
	copy(out.Points, s.Points)
	return out
}

// Scaled returns a deep copy with every vertex position multiplied by mul.
func (s *Stroke) Scaled(mul float64) *Stroke {
	out := &Stroke{Points: make([]StrokePoint, len(s.Points))}
	for i, v := range s.Points {
		out.Points[i] = v.Scaled(mul)
	}
	return out
}

// IntersectsSegment reports whether any segment of the stroke crosses a→b.
func (s *Stroke) IntersectsSegment(a, b Point) bool {
	for i := 0; i+1 < len(s.Points); i++ {
		if SegmentsIntersect(a, b, s.Points[i].Point, s.Points[i+1].Point) {
			return true
		}
	}
	return false
}

// Chopped keeps the runs of vertices for which keep holds and drops the rest.
// Every time the polyline crosses from a kept vertex to a dropped one (or back),
// crossing(kept, dropped) supplies the boundary vertex that terminates the run,
// so the resulting pieces end exactly at the boundary instead of at the last
// kept sample.
func (s *Stroke) Chopped(crossing func(kept, dropped StrokePoint) StrokePoint, keep func(StrokePoint) bool) []*Stroke {
	var out []*Stroke
	vs := s.Points
	i := 0
	for i < len(vs) {
		var piece []StrokePoint
		if keep(vs[i]) {
			piece = append(piece, vs[i])
			i++
		} else {
			for i < len(vs) && !keep(vs[i]) {
				i++
			}
			if i == len(vs) {
				break
			}
			piece = append(piece, crossing(vs[i], vs[i-1]))
		}

		for ; i < len(vs); i++ {
			if !keep(vs[i]) {
				piece = append(piece, crossing(vs[i-1], vs[i]))
				break
			}
			piece = append(piece, vs[i])
		}
		out = append(out, &Stroke{Points: piece})
	}
	return out
}

// ChoppedVertical splits the stroke at the vertical line x = cutoff and keeps
// the pieces on the side selected by keepWhen (">", ">=", "<" or "<=").
// Boundary vertices are linearly interpolated; their timestamp and pressure
// are the mean of the two straddling vertices.
func (s *Stroke) ChoppedVertical(keepWhen string, cutoff float64) []*Stroke {
	var keep func(StrokePoint) bool
	switch keepWhen {
	case ">":
		keep = func(v StrokePoint) bool { return v.X > cutoff }
	case ">=":
		keep = func(v StrokePoint) bool { return v.X >= cutoff }
	case "<":
		keep = func(v StrokePoint) bool { return v.X < cutoff }
	case "<=":
		keep = func(v StrokePoint) bool { return v.X <= cutoff }
	default:
		panic(fmt.Sprintf("geom: unknown chop direction %q", keepWhen))
	}
	crossing := func(a, b StrokePoint) StrokePoint {
		return StrokePoint{
			Point: pointOnLineAtX(a.Point, b.Point, cutoff),
			T:     (a.T + b.T) / 2,
			P:     (a.P + b.P) / 2,
		}
	}
	return s.Chopped(crossing, keep)
}

// pointOnLineAtX returns the point of line a-b with the given x. Segments with
// equal x never straddle a vertical cutoff, so a returns unchanged for them.
func pointOnLineAtX(a, b Point, x float64) Point {
	if a.X == b.X {
		return a
	}
	m := (b.Y - a.Y) / (b.X - a.X)
	return Point{X: x, Y: m*(x-a.X) + a.Y}
}

// ChopAll applies ChoppedVertical to every stroke and flattens the result.
func ChopAll(strokes []*Stroke, keepWhen string, cutoff float64) []*Stroke {
	var out []*Stroke
	for _, s := range strokes {
		out = append(out, s.ChoppedVertical(keepWhen, cutoff)...)
	}
	return out
}

// BoundingBoxOf returns the union of the strokes' boxes (negative when there are none).
func BoundingBoxOf(strokes []*Stroke) Rect {
	box := Empty()
	for _, s := range strokes {
		box.ExpandWith(s.BoundingBox())
	}
	return box
}
