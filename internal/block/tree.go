package block

import (
	"fmt"
	"iter"
	"slices"

	"github.com/starford/inkmath/internal/geom"
)

// DFS yields b and its descendants in pre-order.
func DFS(b Block) iter.Seq[Block] {
	return func(yield func(Block) bool) {
		walk(b, yield)
	}
}

func walk(b Block, yield func(Block) bool) bool {
	if !yield(b) {
		return false
	}
	for _, c := range b.Children() {
		if !walk(c, yield) {
			return false
		}
	}
	return true
}

// All returns the pre-order listing of the subtree rooted at b.
func All(b Block) []Block {
	return slices.Collect(DFS(b))
}

func isVoid(b Block) bool {
	switch b.(type) {
	case nil, *Unsolved, *Deleted:
		return true
	}
	return false
}

func isDeleted(b Block) bool {
	_, ok := b.(*Deleted)
	return ok
}

// Translate moves every box and stroke in the subtree by d. Unsolved and
// Deleted nodes have no geometry and are left alone.
func Translate(b Block, d geom.Vector) {
	if d == (geom.Vector{}) {
		return
	}
	for n := range DFS(b) {
		if isVoid(n) {
			continue
		}
		c := n.Common()
		c.Box.Translate(d)
		for _, s := range c.Strokes {
			s.Translate(d)
		}
	}
}

func translateX(b Block, dx float64) {
	Translate(b, geom.Vector{X: dx})
}

func translateStrokes(n *Node, dx float64) {
	for _, s := range n.Strokes {
		s.Translate(geom.Vector{X: dx})
	}
}

// union is the box b should have: its own ink plus its non-void children.
// It is negative when b has neither.
func union(b Block) geom.Rect {
	box := geom.BoundingBoxOf(b.Common().Strokes)
	for _, c := range b.Children() {
		if isVoid(c) {
			continue
		}
		box.ExpandWith(c.Common().Box)
	}
	return box
}

// refit recomputes b's box from its content. A block left with no content
// shrinks to a zero-size box at its previous origin.
func refit(b Block) {
	n := b.Common()
	box := union(b)
	if box.IsNegative() {
		box = geom.Rect{MinX: n.Box.MinX, MaxX: n.Box.MinX, MinY: n.Box.MinY, MaxY: n.Box.MinY}
	}
	n.Box = box
}

// Fixup wires parent references through the tree and normalises every box
// with content to the union of its strokes and children.
func Fixup(root Block) {
	setParent(root, nil)
	fixup(root)
}

func fixup(b Block) {
	for _, c := range b.Children() {
		setParent(c, b)
		fixup(c)
	}
	if isVoid(b) {
		return
	}
	if box := union(b); !box.IsNegative() {
		b.Common().Box = box
	}
}

// Set is a set of blocks keyed by identity.
type Set map[Block]struct{}

// NewSet builds a set from blocks.
func NewSet(blocks ...Block) Set {
	s := make(Set, len(blocks))
	for _, b := range blocks {
		s[b] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set) Has(b Block) bool {
	_, ok := s[b]
	return ok
}

// Ancestors returns every proper ancestor of the given blocks.
func Ancestors(blocks []Block) Set {
	path := make(Set)
	for _, b := range blocks {
		for p := b.Common().Parent(); p != nil; p = p.Common().Parent() {
			if path.Has(p) {
				break
			}
			path[p] = struct{}{}
		}
	}
	return path
}

// Find returns the block with the given id, or nil.
func Find(root Block, id string) Block {
	for b := range DFS(root) {
		if b.Common().ID == id {
			return b
		}
	}
	return nil
}

// Verify checks the structural invariants of the tree rooted at root: every
// child points back at its parent, no block is reachable twice, and every
// block with content has a box equal to the union of that content.
func Verify(root Block) error {
	seen := make(Set)
	var check func(b Block) error
	check = func(b Block) error {
		if seen.Has(b) {
			return fmt.Errorf("block: %s %q is reachable twice", b.Kind(), b.Common().ID)
		}
		seen[b] = struct{}{}
		if !isVoid(b) {
			if want := union(b); !want.IsNegative() && want != b.Common().Box {
				return fmt.Errorf("block: %s %q has box %+v, want %+v", b.Kind(), b.Common().ID, b.Common().Box, want)
			}
		}
		for _, c := range b.Children() {
			if c.Common().Parent() != b {
				return fmt.Errorf("block: %s %q does not point back at its parent %q", c.Kind(), c.Common().ID, b.Common().ID)
			}
			if err := check(c); err != nil {
				return err
			}
		}
		return nil
	}
	return check(root)
}

func reparent(survivor Block, from Block) Block {
	survivor.Common().parent = from.Common().parent
	return survivor
}
