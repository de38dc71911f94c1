package session

import (
	"math"

	"github.com/starford/inkmath/internal/geom"
)

const (
	scribbleRotations = 100
	scribbleRatio     = 3
)

// IsScribble reports whether a stroke is dense enough to be read as an
// eraser gesture: its path length exceeds scribbleRatio times the smallest
// diagonal of its bounding box over a sweep of rotations, and keeps doing so
// for at least hold time units.
//
// The length skips the first segment, which is usually a pen-down jitter.
func IsScribble(points []geom.StrokePoint, hold float64) bool {
	var boxes [scribbleRotations]geom.Rect
	for i := range boxes {
		boxes[i] = geom.Empty()
	}
	sin, cos := rotations()

	var length float64
	since := math.NaN()
	for i, v := range points {
		if i >= 2 {
			prev := points[i-1]
			length += math.Hypot(v.X-prev.X, v.Y-prev.Y)
		}
		minDiag := math.Inf(1)
		for r := range boxes {
			boxes[r].ExpandWithPoint(geom.Point{
				X: v.X*cos[r] - v.Y*sin[r],
				Y: v.X*sin[r] + v.Y*cos[r],
			})
			minDiag = min(minDiag, math.Hypot(boxes[r].Width(), boxes[r].Height()))
		}
		if minDiag == 0 || length/minDiag <= scribbleRatio {
			since = math.NaN()
			continue
		}
		if math.IsNaN(since) {
			since = v.T
		}
		if v.T-since >= hold {
			return true
		}
	}
	return false
}

func rotations() (sin, cos [scribbleRotations]float64) {
	for r := range scribbleRotations {
		sin[r], cos[r] = math.Sincos(math.Pi / scribbleRotations * float64(r))
	}
	return sin, cos
}

// eraserPath drops pressure and time from a stroke.
func eraserPath(points []geom.StrokePoint) []geom.Point {
	out := make([]geom.Point, len(points))
	for i, v := range points {
		out[i] = v.Point
	}
	return out
}
