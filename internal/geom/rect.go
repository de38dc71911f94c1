// Package geom provides the 2-D primitives shared by the expression tree:
// points, axis-aligned rectangles, line-segment intersection and ink strokes.
package geom

import "math"

// Point is a plain 2-D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vector is a Point used as a displacement.
type Vector = Point

// Add returns p displaced by v.
func (p Point) Add(v Vector) Point {
	return Point{X: p.X + v.X, Y: p.Y + v.Y}
}

// Sub returns the displacement from q to p.
func (p Point) Sub(q Point) Vector {
	return Vector{X: p.X - q.X, Y: p.Y - q.Y}
}

// Scaled returns p with both coordinates multiplied by mul.
func (p Point) Scaled(mul float64) Point {
	return Point{X: p.X * mul, Y: p.Y * mul}
}

// Rect is an axis-aligned bounding box.
//
// A rectangle with MinX > MaxX is "negative". Empty returns one as the
// neutral element of an ExpandWith fold; consumers never observe it.
type Rect struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

// Empty returns the neutral element for ExpandWith.
func Empty() Rect {
	return Rect{MinX: math.Inf(1), MaxX: math.Inf(-1), MinY: math.Inf(1), MaxY: math.Inf(-1)}
}

// RectFromXYWH builds a rectangle from an origin and a size.
func RectFromXYWH(x, y, w, h float64) Rect {
	return Rect{MinX: x, MaxX: x + w, MinY: y, MaxY: y + h}
}

func (r Rect) Width() float64  { return r.MaxX - r.MinX }
func (r Rect) Height() float64 { return r.MaxY - r.MinY }
func (r Rect) MidX() float64   { return (r.MinX + r.MaxX) / 2 }
func (r Rect) MidY() float64   { return (r.MinY + r.MaxY) / 2 }

// IsNegative reports whether r is still the neutral element (nothing was folded into it).
func (r Rect) IsNegative() bool {
	return r.MinX > r.MaxX || r.MinY > r.MaxY
}

// ExpandWith grows r in place to contain o. Negative rectangles are ignored.
func (r *Rect) ExpandWith(o Rect) {
	if o.IsNegative() {
		return
	}
	r.MinX = math.Min(r.MinX, o.MinX)
	r.MaxX = math.Max(r.MaxX, o.MaxX)
	r.MinY = math.Min(r.MinY, o.MinY)
	r.MaxY = math.Max(r.MaxY, o.MaxY)
}

// ExpandWithPoint grows r in place to contain p.
func (r *Rect) ExpandWithPoint(p Point) {
	r.ExpandWith(Rect{MinX: p.X, MaxX: p.X, MinY: p.Y, MaxY: p.Y})
}

// Expanded returns a copy of r grown to contain o.
func (r Rect) Expanded(o Rect) Rect {
	r.ExpandWith(o)
	return r
}

// Translate moves r in place by d.
func (r *Rect) Translate(d Vector) {
	r.MinX += d.X
	r.MaxX += d.X
	r.MinY += d.Y
	r.MaxY += d.Y
}

// Translated returns a copy of r moved by d.
func (r Rect) Translated(d Vector) Rect {
	r.Translate(d)
	return r
}

// Scaled returns r with every edge multiplied by mul.
func (r Rect) Scaled(mul float64) Rect {
	return Rect{MinX: r.MinX * mul, MaxX: r.MaxX * mul, MinY: r.MinY * mul, MaxY: r.MaxY * mul}
}

// Contains reports whether pt lies inside r. With strict set, points on the
// border are outside.
func (r Rect) Contains(pt Point, strict bool) bool {
	if strict {
		return pt.X > r.MinX && pt.X < r.MaxX && pt.Y > r.MinY && pt.Y < r.MaxY
	}
	return pt.X >= r.MinX && pt.X <= r.MaxX && pt.Y >= r.MinY && pt.Y <= r.MaxY
}

// IntersectsBorder reports whether the segment a→b crosses any edge of r.
func (r Rect) IntersectsBorder(a, b Point) bool {
	topLeft := Point{X: r.MinX, Y: r.MinY}
	topRight := Point{X: r.MaxX, Y: r.MinY}
	bottomLeft := Point{X: r.MinX, Y: r.MaxY}
	bottomRight := Point{X: r.MaxX, Y: r.MaxY}
	return SegmentsIntersect(a, b, topLeft, topRight) ||
		SegmentsIntersect(a, b, topRight, bottomRight) ||
		SegmentsIntersect(a, b, bottomRight, bottomLeft) ||
		SegmentsIntersect(a, b, bottomLeft, topLeft)
}

// Touches reports whether the segment a→b has any point inside r.
func (r Rect) Touches(a, b Point) bool {
	return r.Contains(a, false) || r.Contains(b, false) || r.IntersectsBorder(a, b)
}
