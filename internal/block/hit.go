package block

import (
	"github.com/starford/inkmath/internal/geom"
)

// HitTest returns the blocks owning a stroke that the eraser
// polyline crosses. A block is only examined against segments that start or
// end inside its box or cross its border.
func HitTest(root Block, eraser []geom.Point) []Block {
	var out []Block
	hit := make(Set)
	for i := 1; i < len(eraser); i++ {
		a, b := eraser[i-1], eraser[i]
		for n := range DFS(root) {
			if isVoid(n) || hit.Has(n) {
				continue
			}
			c := n.Common()
			if !c.Box.Touches(a, b) {
				continue
			}
			for _, s := range c.Strokes {
				if s.IntersectsSegment(a, b) {
					hit[n] = struct{}{}
					out = append(out, n)
					break
				}
			}
		}
	}
	return out
}
