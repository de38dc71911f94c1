package block

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/inkmath/internal/geom"
)

// ChildResized tells parent that child's box changed from orig to its current
// value. The parent reflows its own ink and its other children, refits its
// box and, if that changed, notifies its own parent in turn.
//
// It panics when parent has no children or child is not one of them.
func ChildResized(parent, child Block, orig geom.Rect) {
	switch p := parent.(type) {
	case *Deleted:
		slog.Warn("block: resize notification reached a deleted block", slog.String("id", p.ID))
		return
	case *Leaf, *Unsolved:
		panic(fmt.Sprintf("block: %s %q has no children to resize", parent.Kind(), parent.Common().ID))
	}
	mustBeChild(parent, child)

	before := parent.Common().Box
	switch p := parent.(type) {
	case *Group:
		p.childResized(child, orig)
	case *Fraction:
		p.recenter(child, orig)
		p.chopBar(p.nuDenWith(child, orig), before)
	case *Radical:
		if child == p.Exponent {
			p.layoutExponent(orig)
		} else {
			p.layoutOperand(orig)
		}
	case *Relation:
		if child == p.Left {
			p.shiftRight(p.Left.Common().Box.MaxX - orig.MaxX)
		}
	case *Result, *Operator, *MixedFraction, *Percentage, *Script, *System, *Matrix, *Function, *Fence:
		// Content moves with its own ink; only the box follows.
	default:
		panic(fmt.Sprintf("block: unhandled variant %T", parent))
	}
	refit(parent)
	propagate(parent, before)
}

func mustBeChild(parent, child Block) {
	if !slices.Contains(parent.Children(), child) {
		panic(fmt.Sprintf("block: %s %q is not a child of %s %q",
			child.Kind(), child.Common().ID, parent.Kind(), parent.Common().ID))
	}
}

// propagate notifies b's parent when b's box moved away from before.
func propagate(b Block, before geom.Rect) {
	if b.Common().Box == before {
		return
	}
	if p := b.Common().Parent(); p != nil {
		ChildResized(p, b, before)
	}
}

// gapShift is how far the siblings after index i move when operand i, whose
// boxes are given, has collapsed to nothing. Void operands carry a negative
// box and are skipped when looking for neighbours. Without a solid operand
// before it, the next solid one is pulled to i's left edge; otherwise the
// shift closes i's width plus the smaller of the gaps around it. Nothing
// moves when no solid operand follows.
func gapShift(boxes []geom.Rect, i int) float64 {
	if boxes[i].IsNegative() {
		return 0
	}
	prev, next := -1, -1
	for j := i - 1; j >= 0 && prev < 0; j-- {
		if !boxes[j].IsNegative() {
			prev = j
		}
	}
	for j := i + 1; j < len(boxes) && next < 0; j++ {
		if !boxes[j].IsNegative() {
			next = j
		}
	}
	switch {
	case next < 0:
		return 0
	case prev < 0:
		return boxes[i].MinX - boxes[next].MinX
	}
	before := boxes[i].MinX - boxes[prev].MaxX
	after := boxes[next].MinX - boxes[i].MaxX
	return -boxes[i].Width() - min(before, after)
}

// operandBoxes collects the operands' boxes for gapShift.
func operandBoxes(operands []Block) []geom.Rect {
	boxes := make([]geom.Rect, len(operands))
	for i, o := range operands {
		if isVoid(o) {
			boxes[i] = geom.Empty()
		} else {
			boxes[i] = o.Common().Box
		}
	}
	return boxes
}

func (b *Group) childResized(child Block, orig geom.Rect) {
	i := slices.Index(b.Operands, child)
	boxes := operandBoxes(b.Operands)
	boxes[i] = orig

	var dx float64
	if isVoid(child) || child.Common().Box.Width() == 0 {
		dx = gapShift(boxes, i)
	} else {
		dx = child.Common().Box.MaxX - orig.MaxX
	}
	for _, o := range b.Operands[i+1:] {
		translateX(o, dx)
	}
}

// nuDenWith is the union of numerator and denominator with child's box
// replaced by orig.
func (b *Fraction) nuDenWith(child Block, orig geom.Rect) geom.Rect {
	box := geom.Empty()
	for _, c := range []Block{b.Numerator, b.Denominator} {
		switch {
		case c == child:
			if !orig.IsNegative() && orig.Width() > 0 {
				box.ExpandWith(orig)
			}
		case !isVoid(c):
			box.ExpandWith(c.Common().Box)
		}
	}
	return box
}

func (b *Fraction) nuDen() geom.Rect {
	box := geom.Empty()
	for _, c := range []Block{b.Numerator, b.Denominator} {
		if !isVoid(c) {
			box.ExpandWith(c.Common().Box)
		}
	}
	return box
}

// recenter moves child toward the bar's centre, by no more than its change in width.
func (b *Fraction) recenter(child Block, orig geom.Rect) {
	if isVoid(child) {
		return
	}
	box := child.Common().Box
	limit := max(box.Width()-orig.Width(), orig.Width()-box.Width())
	dx := min(max(b.Box.MidX()-box.MidX(), -limit), limit)
	translateX(child, dx)
}

// chopBar trims the fraction bar on each side by as much as numerator and
// denominator together have receded from their extent at origNuDen. before
// is the fraction's box at that time.
func (b *Fraction) chopBar(origNuDen, before geom.Rect) {
	cur := b.nuDen()
	if cur.IsNegative() || origNuDen.IsNegative() {
		return
	}
	switch {
	case cur.MinX > origNuDen.MinX:
		b.Strokes = geom.ChopAll(b.Strokes, ">=", before.MinX+(cur.MinX-origNuDen.MinX))
	case cur.MinX < origNuDen.MinX:
		// TODO: extend the bar leftward when numerator or denominator grow.
	}
	switch {
	case cur.MaxX < origNuDen.MaxX:
		b.Strokes = geom.ChopAll(b.Strokes, "<=", before.MaxX-(origNuDen.MaxX-cur.MaxX))
	case cur.MaxX > origNuDen.MaxX:
		// TODO: extend the bar rightward when numerator or denominator grow.
	}
}

// layoutExponent shifts the root sign and operand after the index changed
// from orig, then pins the index's right edge to the sign's new hook. Indexes
// narrower than a third of the radical's height do not move anything.
func (b *Radical) layoutExponent(orig geom.Rect) {
	ref := b.Box.Height() / 3
	var width float64
	if !isVoid(b.Exponent) {
		width = b.Exponent.Common().Box.Width()
	}
	dx := max(ref, width) - max(ref, orig.Width())
	translateStrokes(&b.Node, dx)
	translateX(b.Operand, dx)
	if !isVoid(b.Exponent) {
		translateX(b.Exponent, orig.MaxX+dx-b.Exponent.Common().Box.MaxX)
	}
}

// layoutOperand shortens the root sign's overline when the operand shrank.
func (b *Radical) layoutOperand(orig geom.Rect) {
	maxX := orig.MinX
	if !isVoid(b.Operand) {
		maxX = b.Operand.Common().Box.MaxX
	}
	if maxX < orig.MaxX {
		b.Strokes = geom.ChopAll(b.Strokes, "<=", b.Box.MaxX+(maxX-orig.MaxX))
	}
	// TODO: extend the overline when the operand grows.
}

// shiftRight moves the connective and the right side together.
func (b *Relation) shiftRight(dx float64) {
	translateStrokes(&b.Node, dx)
	translateX(b.Right, dx)
}
