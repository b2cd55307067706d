// Package stmt implements the sum-typed expression tree and statement
// variants: references, projections, arithmetic/logical operators, match,
// map/any, subqueries, and statement-in-expression, plus Query/Insert/
// Update/Delete statements.
//
// Expr is a closed sum modeled as a Go interface with a private marker
// method (`exprNode`): the set of implementations is closed to this
// package, and callers switch on the concrete type.
package stmt

import (
	"github.com/lattice-orm/lattice/value"
)

// Expr is any node of the expression tree. Construction never produces
// cycles: every implementation only holds Expr children by value or through
// acyclic containers (slices, *Query).
type Expr interface {
	exprNode()
}

// ReferenceKind tags which namespace an ExprReference resolves in.
type ReferenceKind uint8

const (
	RefField ReferenceKind = iota
	RefColumn
	RefSelfField
	RefAncestorModel
)

// ExprValue wraps a constant value.Value leaf.
type ExprValue struct{ Value value.Value }

// ExprReference names a field, column, or ancestor-model slot. Field
// references exist only in model-level statements; the Lowerer rewrites them
// to Column references.
type ExprReference struct {
	Kind   ReferenceKind
	Field  value.FieldID
	Column value.ColumnID
	// Depth is used by RefAncestorModel: 0 refers to the statement's own
	// root model, 1 to its parent in a nested scope, and so on.
	Depth int
}

// ExprArg references the n-th positional input substituted at execution
// time (see Substitute).
type ExprArg struct{ Position int }

// BinaryOp enumerates the binary comparison/arithmetic operators.
type BinaryOp uint8

const (
	OpEq BinaryOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAdd
	OpSub
	OpMul
	OpDiv
)

// ExprBinaryOp is a binary comparison or arithmetic expression.
type ExprBinaryOp struct {
	Op       BinaryOp
	LHS, RHS Expr
}

// UnaryOp enumerates the unary operators (currently only negation).
type UnaryOp uint8

const OpNeg UnaryOp = 0

// ExprUnaryOp applies a unary operator.
type ExprUnaryOp struct {
	Op   UnaryOp
	Expr Expr
}

// ExprNot negates a boolean expression.
type ExprNot struct{ Expr Expr }

// ExprIsNull tests whether Expr evaluates to Null.
type ExprIsNull struct{ Expr Expr }

// ExprIsVariant tests whether Expr (an Enum value) holds the given
// discriminant.
type ExprIsVariant struct {
	Expr    Expr
	Variant int
}

// ExprInList tests membership of Expr in a constant or computed list.
type ExprInList struct {
	Expr Expr
	List Expr
}

// ExprInSubquery tests membership of Expr in the result of a Query. The
// Simplifier lifts this to ExprInList when the subquery reduces to a
// constant key list; otherwise it is left in place, the Planner does not
// lift it, and the SQL serializer rejects it.
type ExprInSubquery struct {
	Expr  Expr
	Query *Query
}

// ExprExists tests whether a subquery yields at least one row.
type ExprExists struct{ Query *Query }

// PatternKind tags the flavor of pattern match performed by ExprPattern.
type PatternKind uint8

const (
	PatternLike PatternKind = iota
	PatternBeginsWith
)

// ExprPattern matches Expr against a string pattern.
type ExprPattern struct {
	Kind    PatternKind
	Expr    Expr
	Pattern string
}

// ExprConcatStr concatenates string-typed operands.
type ExprConcatStr struct{ Parts []Expr }

// ExprMap evaluates Body once per element of Base (which must be List-typed),
// producing a new List.
type ExprMap struct {
	Base Expr
	Body Expr
}

// ExprAny reports whether any element of a boolean List (typically produced
// by ExprMap) is true.
type ExprAny struct{ Expr Expr }

// ExprProject extracts a nested value from Base using Projection.
type ExprProject struct {
	Base       Expr
	Projection value.Projection
}

// ExprRecordNode builds a positional record.
type ExprRecordNode struct{ Fields []Expr }

// ExprListNode builds a list.
type ExprListNode struct{ Items []Expr }

// MatchArm is one arm of ExprMatch: a constant-value pattern plus the
// expression to evaluate when the subject equals it.
type MatchArm struct {
	Pattern value.Value
	Expr    Expr
}

// ExprMatch dispatches on Subject against a sequence of constant-value
// patterns, falling back to Else. Never serialized to SQL: it is either
// evaluated in the engine for writes, or eliminated by the Simplifier before
// planning for reads.
type ExprMatch struct {
	Subject Expr
	Arms    []MatchArm
	Else    Expr
}

// ExprCast coerces Expr to Type.
type ExprCast struct {
	Expr Expr
	Type value.Type
}

// ExprStmt embeds a nested Statement (e.g. a scalar subquery).
type ExprStmt struct{ Statement Statement }

// FuncKind enumerates driver-provided functions referenced from
// expressions (e.g. the last-insert-id hack for drivers lacking
// RETURNING).
type FuncKind uint8

const (
	FuncLastInsertId FuncKind = iota
	// FuncCountIf counts the enclosing select's rows. With no argument it
	// counts every matched row (COUNT(*)); with one predicate argument it
	// counts only the rows satisfying it. Either form aggregates to
	// exactly one row regardless of how many rows matched.
	FuncCountIf
)

// ExprFunc calls a driver-provided function over optional arguments.
type ExprFunc struct {
	Func FuncKind
	Args []Expr
}

// ExprError is a leaf that always fails evaluation with Message. Used as a
// Match else-branch fallback or to mark an unreachable construction path.
type ExprError struct{ Message string }

func (ExprValue) exprNode()       {}
func (ExprReference) exprNode()   {}
func (ExprArg) exprNode()         {}
func (ExprBinaryOp) exprNode()    {}
func (ExprUnaryOp) exprNode()     {}
func (*ExprAnd) exprNode()        {}
func (*ExprOr) exprNode()         {}
func (ExprNot) exprNode()         {}
func (ExprIsNull) exprNode()      {}
func (ExprIsVariant) exprNode()   {}
func (ExprInList) exprNode()      {}
func (ExprInSubquery) exprNode()  {}
func (ExprExists) exprNode()      {}
func (ExprPattern) exprNode()     {}
func (ExprConcatStr) exprNode()   {}
func (ExprMap) exprNode()         {}
func (ExprAny) exprNode()         {}
func (ExprProject) exprNode()     {}
func (ExprRecordNode) exprNode()  {}
func (ExprListNode) exprNode()    {}
func (ExprMatch) exprNode()       {}
func (ExprCast) exprNode()        {}
func (ExprStmt) exprNode()        {}
func (ExprFunc) exprNode()        {}
func (ExprError) exprNode()       {}

// Value wraps a constant as an Expr.
func Value(v value.Value) Expr { return ExprValue{Value: v} }

// True and False are the canonical boolean constants used by And/Or
// normalization.
var (
	True  = Value(value.Bool(true))
	False = Value(value.Bool(false))
)

// IsTrue reports whether e is the constant `true`.
func IsTrue(e Expr) bool {
	v, ok := e.(ExprValue)
	if !ok {
		return false
	}
	b, err := v.Value.Bool()
	return err == nil && b
}

// IsFalse reports whether e is the constant `false`.
func IsFalse(e Expr) bool {
	v, ok := e.(ExprValue)
	if !ok {
		return false
	}
	b, err := v.Value.Bool()
	return err == nil && !b
}

func FieldRef(f value.FieldID) Expr        { return ExprReference{Kind: RefField, Field: f} }
func ColumnRef(c value.ColumnID) Expr       { return ExprReference{Kind: RefColumn, Column: c} }
func SelfFieldRef(f value.FieldID) Expr     { return ExprReference{Kind: RefSelfField, Field: f} }
func AncestorModelRef(depth int) Expr       { return ExprReference{Kind: RefAncestorModel, Depth: depth} }

func Arg(pos int) Expr { return ExprArg{Position: pos} }

func BinOp(op BinaryOp, lhs, rhs Expr) Expr { return ExprBinaryOp{Op: op, LHS: lhs, RHS: rhs} }
func Eq(lhs, rhs Expr) Expr                 { return BinOp(OpEq, lhs, rhs) }
func Ne(lhs, rhs Expr) Expr                 { return BinOp(OpNe, lhs, rhs) }

func IsNull(e Expr) Expr { return ExprIsNull{Expr: e} }

func Project(base Expr, p value.Projection) Expr {
	if p.IsEmpty() {
		return base
	}
	return ExprProject{Base: base, Projection: p}
}

func RecordExpr(fields ...Expr) Expr { return ExprRecordNode{Fields: fields} }
func ListExpr(items ...Expr) Expr    { return ExprListNode{Items: items} }

func Match(subject Expr, arms []MatchArm, els Expr) Expr {
	return ExprMatch{Subject: subject, Arms: arms, Else: els}
}
