// Package simplify applies sound, fixed-point rewrites to statements before
// they reach the Lowerer: constant folding, null propagation, primary-key
// select extraction, root-path rewriting, InSubquery lifting, and
// empty-query pruning. No rule here changes the observable result of a
// statement.
package simplify

import (
	"github.com/lattice-orm/lattice/schema"
	"github.com/lattice-orm/lattice/stmt"
)

// Simplifier holds the schema context rewrites are checked against (field
// nullability, primary keys).
type Simplifier struct {
	schema *schema.Schema
}

func New(s *schema.Schema) *Simplifier {
	return &Simplifier{schema: s}
}

// Query simplifies a read statement to a fixed point and returns the
// rewritten statement.
func (s *Simplifier) Query(q *stmt.Query) *stmt.Query {
	for {
		changed := s.simplifyQueryOnce(q)
		if !changed {
			return q
		}
	}
}

// Statement simplifies any Statement to a fixed point by rewriting its
// filter expression in place; Insert/Update/Delete bodies beyond the filter
// are simplified by the Lowerer once lowered to table level.
func (s *Simplifier) Statement(stmt_ stmt.Statement) {
	for {
		if !s.simplifyStatementOnce(stmt_) {
			return
		}
	}
}

func (s *Simplifier) simplifyStatementOnce(st stmt.Statement) bool {
	f := st.Filter()
	if f == nil || f.IsNone() {
		return false
	}
	e := f.Expr()
	changed := false
	newExpr := s.simplifyExprFixedPoint(e, &changed)
	if changed {
		f.Set(newExpr)
	}
	return changed
}

func (s *Simplifier) simplifyQueryOnce(q *stmt.Query) bool {
	changed := false

	switch body := q.Body.(type) {
	case stmt.ExprSetSelect:
		sel := body.Select
		if sel.Filter.IsSome() {
			e := sel.Filter.Expr()
			newExpr := s.simplifyExprFixedPoint(e, &changed)
			if changed {
				sel.Filter.Set(newExpr)
			}
		}

		if !sel.Source.IsTable {
			model := s.schema.App.Model(sel.Source.Model)
			if rewritten, ok := rewriteRootPath(model, sel.Filter.Expr()); ok {
				sel.Filter.Set(rewritten)
				changed = true
			}
		}
		q.Body = stmt.ExprSetSelect{Select: sel}

	case stmt.ExprSetValues:
		if body.IsEmpty() {
			if len(q.OrderBy) > 0 || q.Limit != nil {
				q.OrderBy = nil
				q.Limit = nil
				changed = true
			}
		}
	}

	return changed
}

// simplifyExprFixedPoint applies one pass of constant folding over the
// whole expression tree, setting *changed if any rewrite fired.
func (s *Simplifier) simplifyExprFixedPoint(e stmt.Expr, changed *bool) stmt.Expr {
	e = foldChildren(e, func(child stmt.Expr) stmt.Expr {
		return s.simplifyExprFixedPoint(child, changed)
	})
	if folded, ok := s.foldOne(e); ok {
		*changed = true
		return folded
	}
	return e
}
