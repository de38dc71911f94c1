package block

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/starford/inkmath/internal/geom"
	"github.com/starford/inkmath/internal/jiix"
)

type parseFunc func(obj jiix.Object) (Block, error)

// registry maps a JIIX "type" tag to its parser.
var registry = map[string]parseFunc{}

func register(p parseFunc, tags ...string) {
	for _, t := range tags {
		if _, dup := registry[t]; dup {
			panic(fmt.Sprintf("block: parser for %q registered twice", t))
		}
		registry[t] = p
	}
}

func init() {
	register(parseResult, "Math")
	register(parseLeaf, string(LeafNumber), string(LeafSymbol))
	register(parseOperator, stringsOf(operatorTypes)...)
	register(parsePercentage, "percentage")
	register(parseGroup, "group")
	register(parseFraction, "fraction")
	register(parseMixedFraction, "mixed")
	register(parseRadical, "square root")
	register(parseRelation, stringsOf(relationTypes)...)
	register(parseScript,
		string(Subscript), string(Superscript), string(Subsuperscript), string(power),
		string(Underscript), string(Overscript), string(Underoverscript),
		string(Presubscript), string(Presuperscript), string(Presubsuperscript))
	register(parseSystem, "system")
	register(parseMatrix, "matrix")
	register(parseFunction, "function")
	register(parseFence, "fence")
}

// Tags returns every JIIX type tag the parser accepts, sorted.
func Tags() []string {
	return slices.Sorted(maps.Keys(registry))
}

func stringsOf[T ~string](vs []T) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}

// Parse builds the block for one JIIX object. Objects flagged as unsolved
// become Unsolved regardless of their type tag.
func Parse(obj jiix.Object) (Block, error) {
	if e, ok := obj["error"]; ok && e == "Unsolved" {
		return newUnsolved(nil), nil
	}
	tag, err := jiix.String()(obj, "type")
	if err != nil {
		return nil, err
	}
	p, ok := registry[tag]
	if !ok {
		return nil, jiix.Errorf(obj, "unknown block type %q", tag)
	}
	return p(obj)
}

// ParseDocument decodes a full recognition response into a fixed-up tree.
func ParseDocument(data []byte) (Block, error) {
	obj, err := jiix.Decode(data)
	if err != nil {
		return nil, err
	}
	root, err := Parse(obj)
	if err != nil {
		return nil, err
	}
	Fixup(root)
	return root, nil
}

var (
	blocks      = jiix.Array(jiix.ObjectOf(Parse))
	strokeItems = jiix.Strokes()
)

func nodeSpec[B Block]() jiix.Spec[B] {
	return jiix.Spec[B]{
		jiix.Bind("items", jiix.Optional(strokeItems), func(b B, v []*geom.Stroke) { b.Common().Strokes = v }),
		jiix.Bind("id", jiix.String(), func(b B, v string) { b.Common().ID = v }),
		jiix.Bind("bounding-box", jiix.Rect(), func(b B, v geom.Rect) { b.Common().Box = v }),
	}
}

func with[B any](base jiix.Spec[B], extra ...jiix.Binding[B]) jiix.Spec[B] {
	return slices.Concat(base, jiix.Spec[B](extra))
}

func apply[B Block](spec jiix.Spec[B], b B, obj jiix.Object) (Block, error) {
	if err := spec.Apply(b, obj); err != nil {
		return nil, err
	}
	return b, nil
}

var resultSpec = jiix.Spec[*Result]{
	jiix.Bind("version", jiix.Equals(jiix.NumberFromString(), 3), func(b *Result, v float64) { b.Version = v }),
	jiix.Bind("strokes", jiix.Optional(strokeItems), func(b *Result, v []*geom.Stroke) { b.Strokes = v }),
	jiix.Bind("id", jiix.Optional(jiix.String()), func(b *Result, v string) { b.ID = v }),
	jiix.Bind("bounding-box", jiix.Optional(jiix.Rect()), func(b *Result, v geom.Rect) { b.Box = v }),
	jiix.Bind("expressions", jiix.Optional(blocks), func(b *Result, v []Block) { b.Expressions = v }),
}

func parseResult(obj jiix.Object) (Block, error) {
	return apply(resultSpec, &Result{}, obj)
}

var leafSpec = with(nodeSpec[*Leaf](),
	jiix.Bind("type", jiix.Enum(LeafNumber, LeafSymbol), func(b *Leaf, v LeafType) { b.Type = v }),
	jiix.Bind("label", jiix.String(), func(b *Leaf, v string) { b.Label = v }),
)

func parseLeaf(obj jiix.Object) (Block, error) {
	return apply(leafSpec, &Leaf{}, obj)
}

var groupSpec = with(nodeSpec[*Group](),
	jiix.Bind("operands", blocks, func(b *Group, v []Block) { b.Operands = v }),
)

func parseGroup(obj jiix.Object) (Block, error) {
	return apply(groupSpec, &Group{}, obj)
}

var fractionSpec = with(nodeSpec[*Fraction](),
	jiix.Bind("operands", jiix.Len(blocks, 2), func(b *Fraction, v []Block) {
		b.Numerator, b.Denominator = v[0], v[1]
	}),
)

func parseFraction(obj jiix.Object) (Block, error) {
	return apply(fractionSpec, &Fraction{}, obj)
}

var mixedFractionSpec = with(nodeSpec[*MixedFraction](),
	jiix.Bind("operands", jiix.Len(blocks, 2), func(b *MixedFraction, v []Block) {
		b.Number, b.Fraction = v[0], v[1]
	}),
)

func parseMixedFraction(obj jiix.Object) (Block, error) {
	b, err := apply(mixedFractionSpec, &MixedFraction{}, obj)
	if err != nil {
		return nil, err
	}
	m := b.(*MixedFraction)
	if _, ok := m.Number.(*Leaf); !ok {
		return nil, jiix.Errorf(obj, "expect the whole part of a mixed fraction to be a number")
	}
	if _, ok := m.Fraction.(*Fraction); !ok {
		return nil, jiix.Errorf(obj, "expect the second operand of a mixed fraction to be a fraction")
	}
	return m, nil
}

var radicalSpec = with(nodeSpec[*Radical](),
	jiix.Bind("operands", jiix.Len(blocks, 1, 2), func(b *Radical, v []Block) {
		if len(v) == 2 {
			b.Exponent = v[0]
		}
		b.Operand = v[len(v)-1]
	}),
)

func parseRadical(obj jiix.Object) (Block, error) {
	return apply(radicalSpec, &Radical{}, obj)
}

var relationSpec = with(nodeSpec[*Relation](),
	jiix.Bind("type", jiix.Enum(relationTypes...), func(b *Relation, v RelationType) { b.Rel = v }),
	jiix.Bind("operands", jiix.Len(blocks, 2), func(b *Relation, v []Block) {
		b.Left, b.Right = v[0], v[1]
	}),
)

func parseRelation(obj jiix.Object) (Block, error) {
	return apply(relationSpec, &Relation{}, obj)
}

var scriptSpec = with(nodeSpec[*Script](),
	jiix.Bind("type", jiix.Enum(
		Subscript, Superscript, Subsuperscript, power,
		Underscript, Overscript, Underoverscript,
		Presubscript, Presuperscript, Presubsuperscript,
	), func(b *Script, v ScriptType) {
		if v == power {
			v = Superscript
		}
		b.Type = v
	}),
	jiix.Bind("operands", jiix.Assert(blocks, func(v []Block, obj jiix.Object, _ string) bool {
		want := 2
		if t, _ := obj["type"].(string); slices.ContainsFunc(scriptFamilies, func(f scriptFamily) bool { return string(f.both) == t }) {
			want = 3
		}
		return len(v) == want
	}, "expect operands to match the script type"), func(b *Script, v []Block) {
		f := familyOf(b.Type)
		b.Nucleus = v[0]
		switch b.Type {
		case f.lower:
			b.Lower = v[1]
		case f.upper:
			b.Upper = v[1]
		default:
			b.Lower, b.Upper = v[1], v[2]
		}
	}),
)

func parseScript(obj jiix.Object) (Block, error) {
	return apply(scriptSpec, &Script{}, obj)
}

var systemSpec = with(nodeSpec[*System](),
	jiix.Bind("expressions", blocks, func(b *System, v []Block) { b.Expressions = v }),
)

func parseSystem(obj jiix.Object) (Block, error) {
	return apply(systemSpec, &System{}, obj)
}

var matrixRow = jiix.ObjectOf(func(row jiix.Object) ([]Block, error) {
	return blocks(row, "cells")
})

var matrixSpec = with(nodeSpec[*Matrix](),
	jiix.Bind("rows", jiix.Array(matrixRow), func(b *Matrix, v [][]Block) { b.Cells = v }),
)

func parseMatrix(obj jiix.Object) (Block, error) {
	return apply(matrixSpec, &Matrix{}, obj)
}

var functionSpec = with(nodeSpec[*Function](),
	jiix.Bind("label", jiix.String(), func(b *Function, v string) { b.Label = v }),
	jiix.Bind("operands", jiix.Len(blocks, 1), func(b *Function, v []Block) { b.Operand = v[0] }),
)

func parseFunction(obj jiix.Object) (Block, error) {
	return apply(functionSpec, &Function{}, obj)
}

var fenceSpec = with(nodeSpec[*Fence](),
	jiix.Bind("operands", jiix.Len(blocks, 1), func(b *Fence, v []Block) { b.Operand = v[0] }),
	jiix.Bind("open symbol", jiix.Optional(jiix.String()), func(b *Fence, v string) { b.Open = v }),
	jiix.Bind("close symbol", jiix.Optional(jiix.String()), func(b *Fence, v string) { b.Close = v }),
)

func parseFence(obj jiix.Object) (Block, error) {
	return apply(fenceSpec, &Fence{}, obj)
}

// header holds the fields the hand-written parsers read before splitting a
// JIIX node into several blocks.
type header struct {
	Node
	operands []Block
	op       OperatorType
}

var headerSpec = with(
	jiix.Spec[*header]{
		jiix.Bind("items", strokeItems, func(h *header, v []*geom.Stroke) { h.Strokes = v }),
		jiix.Bind("id", jiix.String(), func(h *header, v string) { h.ID = v }),
		jiix.Bind("bounding-box", jiix.Rect(), func(h *header, v geom.Rect) { h.Box = v }),
	},
	jiix.Bind("operands", blocks, func(h *header, v []Block) { h.operands = v }),
)

type midStroke struct {
	s   *geom.Stroke
	box geom.Rect
}

func sortedByMidX(strokes []*geom.Stroke) []midStroke {
	out := make([]midStroke, len(strokes))
	for i, s := range strokes {
		out[i] = midStroke{s: s, box: s.BoundingBox()}
	}
	slices.SortStableFunc(out, func(a, b midStroke) int { return cmp.Compare(a.box.MidX(), b.box.MidX()) })
	return out
}

// parseOperator turns one n-ary JIIX operator node into a left-leaning chain
// of binary operators. Each stroke is assigned to the operator whose right
// operand it precedes. A stroke before the first operand makes the first
// operator unary, with an Unsolved left side; strokes after the last
// operand make a trailing operator with an Unsolved right side.
func parseOperator(obj jiix.Object) (Block, error) {
	h := &header{}
	spec := with(headerSpec, jiix.Bind("type", jiix.Enum(operatorTypes...), func(h *header, v OperatorType) { h.op = v }))
	if err := spec.Apply(h, obj); err != nil {
		return nil, err
	}
	if len(h.operands) == 0 {
		return nil, jiix.Errorf(obj, "expect operator %s to have operands", h.ID)
	}
	strokes := sortedByMidX(h.Strokes)

	next := 0
	var last Block
	if len(strokes) > 0 && strokes[0].box.MidX() < h.operands[0].Common().Box.MinX {
		last = newUnsolved(nil)
	} else {
		last = h.operands[0]
		next = 1
	}

	chain := func(i int, right Block, until float64) {
		op := &Operator{Op: h.op, Left: last, Right: right}
		op.ID = fmt.Sprintf("%s/%d", h.ID, i)
		for len(strokes) > 0 && strokes[0].box.MidX() < until {
			op.Strokes = append(op.Strokes, strokes[0].s)
			strokes = strokes[1:]
		}
		setParent(op.Left, op)
		setParent(op.Right, op)
		refit(op)
		last = op
	}
	for i := next; i < len(h.operands); i++ {
		chain(i, h.operands[i], h.operands[i].Common().Box.MidX())
	}
	if len(strokes) > 0 {
		chain(len(h.operands), newUnsolved(nil), strokes[len(strokes)-1].box.MidX()+1)
	}
	if op, ok := last.(*Operator); ok && union(op).IsNegative() {
		op.Box = h.Box
	}
	return last, nil
}

// parsePercentage splits a JIIX "%" node into an operator whose right side is
// a Percentage. Ink left of the second operand's centre is the operator glyph;
// the rest is the percent sign.
func parsePercentage(obj jiix.Object) (Block, error) {
	h := &header{}
	spec := with(headerSpec, jiix.Bind("operator", jiix.Enum(operatorTypes...), func(h *header, v OperatorType) { h.op = v }))
	if err := spec.Apply(h, obj); err != nil {
		return nil, err
	}
	if len(h.operands) != 2 {
		return nil, jiix.Errorf(obj, "expect percentage %s to have 2 operands", h.ID)
	}
	mid := h.operands[1].Common().Box.MidX()

	pct := &Percentage{Operand: h.operands[1]}
	pct.ID = h.ID + "/percentage"
	op := &Operator{Op: h.op, Left: h.operands[0], Right: pct}
	op.ID = h.ID + "/operator"
	for _, s := range h.Strokes {
		if s.BoundingBox().MaxX < mid {
			op.Strokes = append(op.Strokes, s)
		} else {
			pct.Strokes = append(pct.Strokes, s)
		}
	}
	setParent(pct.Operand, pct)
	refit(pct)
	setParent(op.Left, op)
	setParent(op.Right, op)
	op.Box = h.Box
	if box := union(op); !box.IsNegative() {
		op.Box = box
	}
	return op, nil
}
