package block

import (
	"fmt"
	"log/slog"

	"github.com/starford/inkmath/internal/geom"
)

// Delete removes every target from the tree rooted at root and returns the
// new root. The result is a Deleted tombstone when the root itself went away.
func Delete(root Block, targets []Block) Block {
	if len(targets) == 0 {
		return root
	}
	return PerformDelete(root, Ancestors(targets), NewSet(targets...))
}

// PerformDelete deletes the targets found under b. path holds every proper
// ancestor of a target; subtrees outside path and target are not visited.
//
// It returns b itself (mutated in place), a surviving child that replaces b,
// or a Deleted tombstone. Survivors and tombstones carry b's parent reference.
func PerformDelete(b Block, path, target Set) Block {
	switch v := b.(type) {
	case *Deleted:
		if target.Has(v) {
			slog.Warn("block: delete targets a block that is already deleted", slog.String("id", v.ID))
		}
		return v
	case *Unsolved:
		if target.Has(v) {
			slog.Warn("block: delete targets an unsolved block", slog.String("id", v.ID))
		}
		return v
	}
	if target.Has(b) {
		return tombstone(b)
	}

	switch v := b.(type) {
	case *Result:
		v.Expressions = dropDeleted(v.Expressions, path, target)
		refit(v)
		return v
	case *Leaf:
		return v
	case *Operator:
		return v.performDelete(path, target)
	case *Group:
		return v.performDelete(path, target)
	case *Fraction:
		return v.performDelete(path, target)
	case *MixedFraction:
		return v.performDelete(path, target)
	case *Percentage:
		v.Operand = fixedSlot(v, v.Operand, path, target)
		refit(v)
		return v
	case *Radical:
		return v.performDelete(path, target)
	case *Relation:
		return v.performDelete(path, target)
	case *Script:
		return v.performDelete(path, target)
	case *System:
		v.Expressions = dropDeleted(v.Expressions, path, target)
		if len(v.Expressions) == 0 && len(v.Strokes) == 0 {
			return tombstone(v)
		}
		refit(v)
		return v
	case *Matrix:
		for _, row := range v.Cells {
			for j, c := range row {
				row[j] = fixedSlot(v, c, path, target)
			}
		}
		refit(v)
		return v
	case *Function:
		v.Operand = fixedSlot(v, v.Operand, path, target)
		refit(v)
		return v
	case *Fence:
		v.Operand = fixedSlot(v, v.Operand, path, target)
		refit(v)
		return v
	}
	panic(fmt.Sprintf("block: unhandled variant %T", b))
}

func touched(b Block, path, target Set) bool {
	return b != nil && (path.Has(b) || target.Has(b))
}

// visit runs PerformDelete on child if the deletion reaches it.
func visit(child Block, path, target Set) (res Block, before geom.Rect, changed bool) {
	if !touched(child, path, target) {
		return child, geom.Rect{}, false
	}
	before = child.Common().Box
	return PerformDelete(child, path, target), before, true
}

// fixedSlot handles a child slot that must stay occupied: a deleted child is
// replaced by an Unsolved placeholder.
func fixedSlot(parent, child Block, path, target Set) Block {
	res, _, changed := visit(child, path, target)
	if !changed {
		return child
	}
	if isDeleted(res) {
		return newUnsolved(parent)
	}
	return res
}

func dropDeleted(children []Block, path, target Set) []Block {
	kept := make([]Block, 0, len(children))
	for _, c := range children {
		res, _, _ := visit(c, path, target)
		if !isDeleted(res) {
			kept = append(kept, res)
		}
	}
	return kept
}

// performDelete collapses the operator onto its surviving operand when the
// other one is deleted. The operator's own ink goes with it.
func (b *Operator) performDelete(path, target Set) Block {
	right, _, _ := visit(b.Right, path, target)
	left, leftBefore, leftChanged := visit(b.Left, path, target)

	switch {
	case isDeleted(left) && isDeleted(right):
		return tombstone(b)
	case isDeleted(left):
		if isVoid(right) {
			return tombstone(b)
		}
		translateX(right, b.Box.MinX-right.Common().Box.MinX)
		return reparent(right, b)
	case isDeleted(right):
		if isVoid(left) {
			return tombstone(b)
		}
		return reparent(left, b)
	}

	b.Left, b.Right = left, right
	if leftChanged && !isVoid(left) {
		dx := left.Common().Box.MaxX - leftBefore.MaxX
		translateStrokes(&b.Node, dx)
		translateX(b.Right, dx)
	}
	refit(b)
	return b
}

func (b *Group) performDelete(path, target Set) Block {
	boxes := operandBoxes(b.Operands)

	kept := make([]Block, 0, len(b.Operands))
	var shift float64
	for i, o := range b.Operands {
		translateX(o, shift)
		res, before, changed := visit(o, path, target)
		switch {
		case !changed:
			kept = append(kept, o)
		case isDeleted(res):
			shift += gapShift(boxes, i)
		default:
			shift += res.Common().Box.MaxX - before.MaxX
			kept = append(kept, res)
		}
	}

	switch len(kept) {
	case 0:
		return tombstone(b)
	case 1:
		return reparent(kept[0], b)
	}
	b.Operands = kept
	refit(b)
	return b
}

func (b *Fraction) performDelete(path, target Set) Block {
	before := b.Box
	origNuDen := b.nuDen()
	slots := []*Block{&b.Numerator, &b.Denominator}
	for _, slot := range slots {
		res, orig, changed := visit(*slot, path, target)
		if !changed {
			continue
		}
		if isDeleted(res) {
			res = newUnsolved(b)
		}
		*slot = res
		b.recenter(res, orig)
	}
	b.chopBar(origNuDen, before)
	refit(b)
	return b
}

func (b *MixedFraction) performDelete(path, target Set) Block {
	numBefore := b.Number.Common().Box
	number, _, _ := visit(b.Number, path, target)
	fraction, _, _ := visit(b.Fraction, path, target)

	switch {
	case isDeleted(number) && isDeleted(fraction):
		return tombstone(b)
	case isDeleted(number):
		if isVoid(fraction) {
			return tombstone(b)
		}
		translateX(fraction, numBefore.MinX-fraction.Common().Box.MinX)
		return reparent(fraction, b)
	case isDeleted(fraction):
		if isVoid(number) {
			return tombstone(b)
		}
		return reparent(number, b)
	}
	b.Number, b.Fraction = number, fraction
	refit(b)
	return b
}

func (b *Radical) performDelete(path, target Set) Block {
	if res, orig, changed := visit(b.Exponent, path, target); changed {
		if isDeleted(res) {
			res = nil
		}
		b.Exponent = res
		b.layoutExponent(orig)
	}
	if res, orig, changed := visit(b.Operand, path, target); changed {
		if isDeleted(res) {
			res = newUnsolved(b)
		}
		b.Operand = res
		b.layoutOperand(orig)
	}
	refit(b)
	return b
}

func (b *Relation) performDelete(path, target Set) Block {
	if res, _, changed := visit(b.Right, path, target); changed {
		if isDeleted(res) {
			res = newUnsolved(b)
		}
		b.Right = res
	}
	if res, orig, changed := visit(b.Left, path, target); changed {
		var dx float64
		if isDeleted(res) {
			res = newUnsolved(b)
			dx = orig.MinX - b.leftEdge()
		} else {
			dx = res.Common().Box.MaxX - orig.MaxX
		}
		b.Left = res
		b.shiftRight(dx)
	}
	refit(b)
	return b
}

// leftEdge is where the connective, or failing that the right side, begins.
func (b *Relation) leftEdge() float64 {
	if box := geom.BoundingBoxOf(b.Strokes); !box.IsNegative() {
		return box.MinX
	}
	if !isVoid(b.Right) {
		return b.Right.Common().Box.MinX
	}
	return b.Box.MinX
}

func (b *Script) performDelete(path, target Set) Block {
	b.Nucleus = fixedSlot(b, b.Nucleus, path, target)
	for _, slot := range []*Block{&b.Lower, &b.Upper} {
		if res, _, changed := visit(*slot, path, target); changed {
			if isDeleted(res) {
				res = nil
			}
			*slot = res
		}
	}

	if b.Lower == nil && b.Upper == nil {
		if isVoid(b.Nucleus) {
			return tombstone(b)
		}
		return reparent(b.Nucleus, b)
	}
	b.retag()
	refit(b)
	return b
}

// retag updates Type to match the scripts still attached.
func (b *Script) retag() {
	f := familyOf(b.Type)
	switch {
	case b.Lower != nil && b.Upper != nil:
		b.Type = f.both
	case b.Lower != nil:
		b.Type = f.lower
	case b.Upper != nil:
		b.Type = f.upper
	}
}
