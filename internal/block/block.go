// Package block holds the expression block tree: the typed representation of
// a recognised handwritten expression and the structural edit engine that
// deletes pieces of it while keeping every bounding box consistent.
//
// Block is a closed sum type. Every operation dispatches with an exhaustive
// type switch over the variants declared in this file.
package block

import (
	"weak"

	"github.com/google/uuid"

	"github.com/starford/inkmath/internal/geom"
)

// Kind enumerates the block variants.
type Kind int

const (
	KindResult Kind = iota
	KindLeaf
	KindOperator
	KindGroup
	KindFraction
	KindMixedFraction
	KindPercentage
	KindRadical
	KindRelation
	KindSubsuperscript
	KindUnderoverscript
	KindPresubsuperscript
	KindSystem
	KindMatrix
	KindFunction
	KindFence
	KindUnsolved
	KindDeleted
)

var kindNames = [...]string{
	KindResult:            "result",
	KindLeaf:              "leaf",
	KindOperator:          "operator",
	KindGroup:             "group",
	KindFraction:          "fraction",
	KindMixedFraction:     "mixed-fraction",
	KindPercentage:        "percentage",
	KindRadical:           "radical",
	KindRelation:          "relation",
	KindSubsuperscript:    "subsuperscript",
	KindUnderoverscript:   "underoverscript",
	KindPresubsuperscript: "presubsuperscript",
	KindSystem:            "system",
	KindMatrix:            "matrix",
	KindFunction:          "function",
	KindFence:             "fence",
	KindUnsolved:          "unsolved",
	KindDeleted:           "deleted",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Block is a node of the expression tree.
type Block interface {
	Kind() Kind
	// Common exposes the fields every variant carries.
	Common() *Node
	// Children lists the direct children in declaration order. Absent
	// optional children are omitted.
	Children() []Block

	ref() Ref
}

// Node holds the fields shared by all variants.
//
// Box must equal the union of the node's own strokes and its children's
// boxes after every operation. Strokes is ink owned by this node and by no child.
type Node struct {
	ID      string
	Box     geom.Rect
	Strokes []*geom.Stroke

	parent Ref
}

// Common returns n itself; it is promoted into every variant.
func (n *Node) Common() *Node { return n }

// Parent returns the parent block, or nil for a root or a detached node.
func (n *Node) Parent() Block { return n.parent.Block() }

// Ref is a non-owning reference to a block. It never extends the lifetime
// of its target and reads as nil once the target is gone.
type Ref struct {
	get func() Block
}

// Block resolves the reference.
func (r Ref) Block() Block {
	if r.get == nil {
		return nil
	}
	return r.get()
}

func refTo[T any, P interface {
	*T
	Block
}](p P) Ref {
	w := weak.Make((*T)(p))
	return Ref{get: func() Block {
		if v := w.Value(); v != nil {
			return P(v)
		}
		return nil
	}}
}

func setParent(child, parent Block) {
	if child == nil {
		return
	}
	if parent == nil {
		child.Common().parent = Ref{}
		return
	}
	child.Common().parent = parent.ref()
}

// Result is the document root ("Math").
type Result struct {
	Node
	Version     float64
	Expressions []Block
}

// LeafType distinguishes numbers from symbols.
type LeafType string

const (
	LeafNumber LeafType = "number"
	LeafSymbol LeafType = "symbol"
)

// Leaf is a terminal number or symbol.
type Leaf struct {
	Node
	Type  LeafType
	Label string
}

// OperatorType is a binary infix operator glyph.
type OperatorType string

const (
	OpAdd      OperatorType = "+"
	OpSubtract OperatorType = "-"
	OpMultiply OperatorType = "×"
	OpSlash    OperatorType = "/"
	OpDivide   OperatorType = "÷"
)

var operatorTypes = []OperatorType{OpAdd, OpSubtract, OpMultiply, OpSlash, OpDivide}

// Operator is a binary infix operation. Its own strokes are the operator glyph.
type Operator struct {
	Node
	Op          OperatorType
	Left, Right Block
}

// Group is a horizontal sequence of any arity.
type Group struct {
	Node
	Operands []Block
}

// Fraction owns the fraction bar strokes.
type Fraction struct {
	Node
	Numerator, Denominator Block
}

// MixedFraction is a whole number followed by a fraction.
type MixedFraction struct {
	Node
	Number, Fraction Block
}

// Percentage owns the percent sign strokes.
type Percentage struct {
	Node
	Operand Block
}

// Radical is a root sign with an optional index. Exponent is nil when absent.
type Radical struct {
	Node
	Exponent Block
	Operand  Block
}

// RelationType is a comparison glyph.
type RelationType string

const (
	RelEqual          RelationType = "="
	RelGreater        RelationType = ">"
	RelLess           RelationType = "<"
	RelApprox         RelationType = "≈"
	RelNotEqual       RelationType = "≠"
	RelEquiv          RelationType = "≡"
	RelNotEquiv       RelationType = "≢"
	RelLessEqual      RelationType = "≤"
	RelGreaterEqual   RelationType = "≥"
	RelMuchLess       RelationType = "≪"
	RelMuchGreater    RelationType = "≫"
	RelLeftArrow      RelationType = "⇐"
	RelRightArrow     RelationType = "⇒"
	RelLeftRightArrow RelationType = "⇔"
	RelParallel       RelationType = "∥"
)

var relationTypes = []RelationType{
	RelEqual, RelGreater, RelLess, RelApprox, RelNotEqual, RelEquiv, RelNotEquiv,
	RelLessEqual, RelGreaterEqual, RelMuchLess, RelMuchGreater,
	RelLeftArrow, RelRightArrow, RelLeftRightArrow, RelParallel,
}

// Relation is a comparison between two sides. Its own strokes are the connective.
type Relation struct {
	Node
	Rel         RelationType
	Left, Right Block
}

// ScriptType names the attached-script layout.
type ScriptType string

const (
	Subscript         ScriptType = "subscript"
	Superscript       ScriptType = "superscript"
	Subsuperscript    ScriptType = "subsuperscript"
	Underscript       ScriptType = "underscript"
	Overscript        ScriptType = "overscript"
	Underoverscript   ScriptType = "underoverscript"
	Presubscript      ScriptType = "presubscript"
	Presuperscript    ScriptType = "presuperscript"
	Presubsuperscript ScriptType = "presubsuperscript"

	// power is an alias the service emits for superscript.
	power ScriptType = "power"
)

type scriptFamily struct {
	kind               Kind
	lower, upper, both ScriptType
}

var scriptFamilies = []scriptFamily{
	{kind: KindSubsuperscript, lower: Subscript, upper: Superscript, both: Subsuperscript},
	{kind: KindUnderoverscript, lower: Underscript, upper: Overscript, both: Underoverscript},
	{kind: KindPresubsuperscript, lower: Presubscript, upper: Presuperscript, both: Presubsuperscript},
}

func familyOf(t ScriptType) scriptFamily {
	for _, f := range scriptFamilies {
		if t == f.lower || t == f.upper || t == f.both {
			return f
		}
	}
	return scriptFamilies[0]
}

// Script is a nucleus with up to two attached scripts. Lower holds the
// subscript / underscript / presubscript and Upper the superscript /
// overscript / presuperscript; either is nil when absent.
type Script struct {
	Node
	Type         ScriptType
	Nucleus      Block
	Lower, Upper Block
}

// System is a vertical list of expressions joined by a brace.
type System struct {
	Node
	Expressions []Block
}

// Matrix is a grid of cells in row-major order.
type Matrix struct {
	Node
	Cells [][]Block
}

// Function is a named function applied to one operand.
type Function struct {
	Node
	Label   string
	Operand Block
}

// Fence wraps an operand in brackets. Open and Close are empty when absent.
type Fence struct {
	Node
	Operand     Block
	Open, Close string
}

// Unsolved marks a piece the recogniser could not resolve. It has no ink
// and a zero box, and contributes nothing to its parent's box.
type Unsolved struct {
	Node
}

// Deleted is the tombstone PerformDelete returns for a removed block. It
// carries the removed block's parent reference.
type Deleted struct {
	Node
}

// NewDocument returns an empty document root.
func NewDocument() *Result {
	return &Result{Node: Node{ID: "MainBlock"}, Version: 3}
}

func newUnsolved(parent Block) *Unsolved {
	u := &Unsolved{Node: Node{ID: uuid.NewString()}}
	setParent(u, parent)
	return u
}

func tombstone(b Block) *Deleted {
	return &Deleted{Node: Node{ID: b.Common().ID, parent: b.Common().parent}}
}

func (*Result) Kind() Kind        { return KindResult }
func (*Leaf) Kind() Kind          { return KindLeaf }
func (*Operator) Kind() Kind      { return KindOperator }
func (*Group) Kind() Kind         { return KindGroup }
func (*Fraction) Kind() Kind      { return KindFraction }
func (*MixedFraction) Kind() Kind { return KindMixedFraction }
func (*Percentage) Kind() Kind    { return KindPercentage }
func (*Radical) Kind() Kind       { return KindRadical }
func (*Relation) Kind() Kind      { return KindRelation }
func (b *Script) Kind() Kind      { return familyOf(b.Type).kind }
func (*System) Kind() Kind        { return KindSystem }
func (*Matrix) Kind() Kind        { return KindMatrix }
func (*Function) Kind() Kind      { return KindFunction }
func (*Fence) Kind() Kind         { return KindFence }
func (*Unsolved) Kind() Kind      { return KindUnsolved }
func (*Deleted) Kind() Kind       { return KindDeleted }

func (b *Result) ref() Ref        { return refTo(b) }
func (b *Leaf) ref() Ref          { return refTo(b) }
func (b *Operator) ref() Ref      { return refTo(b) }
func (b *Group) ref() Ref         { return refTo(b) }
func (b *Fraction) ref() Ref      { return refTo(b) }
func (b *MixedFraction) ref() Ref { return refTo(b) }
func (b *Percentage) ref() Ref    { return refTo(b) }
func (b *Radical) ref() Ref       { return refTo(b) }
func (b *Relation) ref() Ref      { return refTo(b) }
func (b *Script) ref() Ref        { return refTo(b) }
func (b *System) ref() Ref        { return refTo(b) }
func (b *Matrix) ref() Ref        { return refTo(b) }
func (b *Function) ref() Ref      { return refTo(b) }
func (b *Fence) ref() Ref         { return refTo(b) }
func (b *Unsolved) ref() Ref      { return refTo(b) }
func (b *Deleted) ref() Ref       { return refTo(b) }

func (b *Result) Children() []Block   { return compact(b.Expressions...) }
func (*Leaf) Children() []Block       { return nil }
func (b *Operator) Children() []Block { return compact(b.Left, b.Right) }
func (b *Group) Children() []Block    { return compact(b.Operands...) }
func (b *Fraction) Children() []Block { return compact(b.Numerator, b.Denominator) }
func (b *MixedFraction) Children() []Block {
	return compact(b.Number, b.Fraction)
}
func (b *Percentage) Children() []Block { return compact(b.Operand) }
func (b *Radical) Children() []Block    { return compact(b.Exponent, b.Operand) }
func (b *Relation) Children() []Block   { return compact(b.Left, b.Right) }
func (b *Script) Children() []Block     { return compact(b.Nucleus, b.Lower, b.Upper) }
func (b *System) Children() []Block     { return compact(b.Expressions...) }
func (b *Matrix) Children() []Block {
	var out []Block
	for _, row := range b.Cells {
		out = append(out, compact(row...)...)
	}
	return out
}
func (b *Function) Children() []Block { return compact(b.Operand) }
func (b *Fence) Children() []Block    { return compact(b.Operand) }
func (*Unsolved) Children() []Block   { return nil }
func (*Deleted) Children() []Block    { return nil }

func compact(blocks ...Block) []Block {
	out := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

// Label returns the glyph or name a variant carries, if any.
func Label(b Block) string {
	switch b := b.(type) {
	case *Leaf:
		return b.Label
	case *Operator:
		return string(b.Op)
	case *Relation:
		return string(b.Rel)
	case *Function:
		return b.Label
	case *Fence:
		return b.Open + b.Close
	case *Script:
		return string(b.Type)
	case *Percentage:
		return "%"
	case *Result, *Group, *Fraction, *MixedFraction, *Radical, *System, *Matrix, *Unsolved, *Deleted:
		return ""
	}
	return ""
}
