package stmt

import "github.com/lattice-orm/lattice/value"

// Statement is the top-level IR node submitted to the Simplifier, Lowerer,
// and Planner.
type Statement interface {
	stmtNode()
	// Filter returns the statement's filter, or nil for statements that
	// don't carry one (Insert).
	Filter() *Filter
}

// Direction tags ascending/descending ORDER BY.
type Direction uint8

const (
	Asc Direction = iota
	Desc
)

// OrderOption is one ORDER BY term.
type OrderOption struct {
	Expr      Expr
	Direction Direction
}

// Limit bounds a Query's result set, with optional offset-after (keyset)
// pagination.
type Limit struct {
	Count  *int
	Offset OffsetSpec
}

// OffsetKind tags how a Query's starting point is specified.
type OffsetKind uint8

const (
	OffsetNone OffsetKind = iota
	OffsetCount
	OffsetAfter
)

// OffsetSpec is either absent, a plain row-count offset, or an "after key
// tuple" (keyset) offset that the Lowerer rewrites into a compound
// inequality over the declared ORDER BY columns.
type OffsetSpec struct {
	Kind  OffsetKind
	Count int
	After []Expr
}

// Source identifies where a Query's rows come from: a model with optional
// preload paths (model-level), or a table with joins (table-level, produced
// by the Lowerer).
type Source struct {
	IsTable bool

	Model   value.ModelID
	Include []Path

	Table value.TableID
	Joins []Join
}

// Join describes one table-level join materialized for a preloaded relation
// path.
type Join struct {
	Table value.TableID
	On    Expr
}

// Select is the body of a read statement.
type Select struct {
	Source    Source
	Filter    Filter
	Returning Returning
}

// ExprSet is the body of a Query statement: a Select, a set operation over
// nested queries, a Values literal, or an Update-as-expression (used by
// RETURNING subqueries).
type ExprSet interface {
	exprSetNode()
}

// ExprSetSelect wraps Select as an ExprSet.
type ExprSetSelect struct{ Select Select }

// SetOpKind tags union/intersect/except.
type SetOpKind uint8

const (
	SetOpUnion SetOpKind = iota
	SetOpIntersect
	SetOpExcept
)

// ExprSetOp combines two nested queries.
type ExprSetOp struct {
	Kind        SetOpKind
	LHS, RHS    *Query
}

// ExprSetValues is a literal row set, used to seed the graph with user args
// (plan.Const) and as the RHS of INSERT.
type ExprSetValues struct{ Rows []Expr }

// IsEmpty reports whether this Values body has no rows (used by the
// Simplifier's empty-query pruning rule).
func (v ExprSetValues) IsEmpty() bool { return len(v.Rows) == 0 }

func (ExprSetSelect) exprSetNode() {}
func (ExprSetOp) exprSetNode()     {}
func (ExprSetValues) exprSetNode() {}

// Query is a read statement.
type Query struct {
	Body    ExprSet
	OrderBy []OrderOption
	Limit   *Limit
}

// NewSelect builds a single-model Query filtered by filter.
func NewSelect(model value.ModelID, filter Expr) *Query {
	return &Query{
		Body: ExprSetSelect{Select: Select{
			Source: Source{Model: model},
			Filter: Filter{expr: &filter},
		}},
	}
}

// AddFilter AND-merges filter into the query's Select body (no-op for other
// ExprSet kinds).
func (q *Query) AddFilter(filter Expr) {
	sel, ok := q.Body.(ExprSetSelect)
	if !ok {
		return
	}
	sel.Select.Filter.Add(Filter{expr: &filter})
	q.Body = sel
}

func (q *Query) stmtNode() {}
func (q *Query) Filter() *Filter {
	if sel, ok := q.Body.(ExprSetSelect); ok {
		return &sel.Select.Filter
	}
	return nil
}

// Insert creates new rows. Source is always a Query (InsertTarget carries
// the higher-level scope/model/table distinction, stmt.Insert itself always
// targets a concrete table/column list once lowered).
type Insert struct {
	Target    InsertTarget
	Source    *Query
	Returning *Returning
}

func (i *Insert) stmtNode()         {}
func (i *Insert) Filter() *Filter   { return nil }

// Update conditionally mutates matching rows.
type Update struct {
	Target      Source
	Assignments []Assignment
	FilterExpr  Filter
	Condition   Condition
	Returning   *Returning
}

// Assignment sets one column/field to an expression.
type Assignment struct {
	Field value.FieldID
	Value Expr
}

func (u *Update) stmtNode()       {}
func (u *Update) Filter() *Filter { return &u.FilterExpr }

// Delete removes matching rows.
type Delete struct {
	From       Source
	FilterExpr Filter
	Returning  *Returning
}

func (d *Delete) stmtNode()       {}
func (d *Delete) Filter() *Filter { return &d.FilterExpr }
