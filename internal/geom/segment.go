package geom

// SegmentsIntersect reports whether segment p→p2 intersects q→q2.
//
// It uses the cross product parametrisation p + t·r = q + u·s. Collinear
// segments intersect when they share an endpoint or their projections on
// either axis overlap.
func SegmentsIntersect(p, p2, q, q2 Point) bool {
	r := p2.Sub(p)
	s := q2.Sub(q)

	uNumerator := cross(q.Sub(p), r)
	denominator := cross(r, s)

	if uNumerator == 0 && denominator == 0 {
		if p == q || p == q2 || p2 == q || p2 == q2 {
			return true
		}
		return !allEqual(q.X-p.X < 0, q.X-p2.X < 0, q2.X-p.X < 0, q2.X-p2.X < 0) ||
			!allEqual(q.Y-p.Y < 0, q.Y-p2.Y < 0, q2.Y-p.Y < 0, q2.Y-p2.Y < 0)
	}

	if denominator == 0 {
		// parallel
		return false
	}

	u := uNumerator / denominator
	t := cross(q.Sub(p), s) / denominator

	return t >= 0 && t <= 1 && u >= 0 && u <= 1
}

func cross(a, b Vector) float64 {
	return a.X*b.Y - a.Y*b.X
}

func allEqual(first bool, rest ...bool) bool {
	for _, v := range rest {
		if v != first {
			return false
		}
	}
	return true
}
