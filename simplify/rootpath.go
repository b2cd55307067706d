package simplify

import (
	"github.com/lattice-orm/lattice/schema/app"
	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

// rewriteRootPath rewrites `eq(self, v)` where `self` is the model root to
// `eq(self.pk, v)`. Only single-column primary keys are supported today;
// composite keys are left unrewritten.
func rewriteRootPath(model *app.Model, filter stmt.Expr) (stmt.Expr, bool) {
	bin, ok := filter.(stmt.ExprBinaryOp)
	if !ok || bin.Op != stmt.OpEq {
		return nil, false
	}
	ref, ok := bin.LHS.(stmt.ExprReference)
	if !ok || ref.Kind != stmt.RefAncestorModel || ref.Depth != 0 {
		return nil, false
	}
	pk := model.PrimaryKeyFields()
	if len(pk) != 1 {
		return nil, false
	}
	return stmt.Eq(stmt.SelfFieldRef(pk[0]), bin.RHS), true
}

// ExtractKeyValue analyzes a subquery `SELECT pk FROM M WHERE pk = v` for a
// single-column primary key and, if it matches, returns v so the caller can
// substitute a key directly instead of planning a round trip. key names the
// target's primary-key field(s); composite keys are not lifted.
func ExtractKeyValue(key []value.FieldID, q *stmt.Query) (stmt.Expr, bool) {
	sel, ok := q.Body.(stmt.ExprSetSelect)
	if !ok {
		return nil, false
	}
	if len(key) != 1 {
		return nil, false
	}
	switch filter := sel.Select.Filter.Expr().(type) {
	case stmt.ExprBinaryOp:
		if filter.Op != stmt.OpEq {
			return nil, false
		}
		ref, ok := filter.LHS.(stmt.ExprReference)
		if !ok || ref.Kind != stmt.RefField || ref.Field != key[0] {
			return nil, false
		}
		if _, ok := filter.RHS.(stmt.ExprValue); !ok {
			return nil, false
		}
		return filter.RHS, true
	default:
		return nil, false
	}
}
