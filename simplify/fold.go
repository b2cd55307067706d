package simplify

import (
	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

// foldChildren recurses into e's children bottom-up via rec, rebuilding the
// node with the (already-folded) children before the caller applies its own
// fold rule to the rebuilt node. Leaves (Value, Arg, Reference, Error) are
// returned unchanged.
func foldChildren(e stmt.Expr, rec func(stmt.Expr) stmt.Expr) stmt.Expr {
	switch n := e.(type) {
	case stmt.ExprBinaryOp:
		n.LHS = rec(n.LHS)
		n.RHS = rec(n.RHS)
		return n
	case stmt.ExprUnaryOp:
		n.Expr = rec(n.Expr)
		return n
	case *stmt.ExprAnd:
		for i := range n.Operands {
			n.Operands[i] = rec(n.Operands[i])
		}
		return n
	case *stmt.ExprOr:
		for i := range n.Operands {
			n.Operands[i] = rec(n.Operands[i])
		}
		return n
	case stmt.ExprNot:
		n.Expr = rec(n.Expr)
		return n
	case stmt.ExprIsNull:
		n.Expr = rec(n.Expr)
		return n
	case stmt.ExprIsVariant:
		n.Expr = rec(n.Expr)
		return n
	case stmt.ExprInList:
		n.Expr = rec(n.Expr)
		n.List = rec(n.List)
		return n
	case stmt.ExprPattern:
		n.Expr = rec(n.Expr)
		return n
	case stmt.ExprConcatStr:
		for i := range n.Parts {
			n.Parts[i] = rec(n.Parts[i])
		}
		return n
	case stmt.ExprAny:
		n.Expr = rec(n.Expr)
		return n
	case stmt.ExprProject:
		n.Base = rec(n.Base)
		return n
	case stmt.ExprRecordNode:
		for i := range n.Fields {
			n.Fields[i] = rec(n.Fields[i])
		}
		return n
	case stmt.ExprListNode:
		for i := range n.Items {
			n.Items[i] = rec(n.Items[i])
		}
		return n
	case stmt.ExprMatch:
		n.Subject = rec(n.Subject)
		for i := range n.Arms {
			n.Arms[i].Expr = rec(n.Arms[i].Expr)
		}
		n.Else = rec(n.Else)
		return n
	case stmt.ExprCast:
		n.Expr = rec(n.Expr)
		return n
	case stmt.ExprMap:
		n.Base = rec(n.Base)
		// Body is evaluated per-element against a bound variable, not a
		// constant sub-expression of the outer scope, so it is left
		// as-is here.
		return n
	case stmt.ExprInSubquery:
		n.Expr = rec(n.Expr)
		return n
	default:
		return e
	}
}

// foldOne applies a single constant-folding rule to the node n (whose
// children are already folded), returning the replacement and true if a
// rule fired.
func (s *Simplifier) foldOne(n stmt.Expr) (stmt.Expr, bool) {
	switch e := n.(type) {
	case *stmt.ExprAnd:
		return foldAnd(e)
	case *stmt.ExprOr:
		return foldOr(e)
	case stmt.ExprNot:
		return foldNot(e)
	case stmt.ExprBinaryOp:
		return foldBinaryOp(e)
	case stmt.ExprIsNull:
		return s.foldIsNull(e)
	case stmt.ExprInList:
		return foldInList(e)
	case stmt.ExprConcatStr:
		return foldConcatStr(e)
	case stmt.ExprProject:
		return foldProject(e)
	case stmt.ExprMatch:
		return foldMatch(e)
	case stmt.ExprAny:
		return foldAny(e)
	case stmt.ExprRecordNode:
		return foldRecord(e)
	case stmt.ExprListNode:
		return foldList(e)
	case stmt.ExprCast:
		return foldCast(e)
	case stmt.ExprInSubquery:
		return s.liftInSubquery(e)
	default:
		return nil, false
	}
}

// liftInSubquery lifts an InSubquery once its subquery (recursively
// simplified) reduces to a literal row set, rewriting membership as a
// constant InList instead of planning a nested query.
func (s *Simplifier) liftInSubquery(e stmt.ExprInSubquery) (stmt.Expr, bool) {
	q := s.Query(e.Query)
	values, ok := q.Body.(stmt.ExprSetValues)
	if !ok {
		return nil, false
	}
	items := make([]stmt.Expr, len(values.Rows))
	for i, row := range values.Rows {
		if _, ok := row.(stmt.ExprValue); !ok {
			return nil, false
		}
		items[i] = row
	}
	return stmt.ExprInList{Expr: e.Expr, List: stmt.ExprListNode{Items: items}}, true
}

func asValue(e stmt.Expr) (value.Value, bool) {
	v, ok := e.(stmt.ExprValue)
	if !ok {
		return value.Value{}, false
	}
	return v.Value, true
}

func foldAnd(e *stmt.ExprAnd) (stmt.Expr, bool) {
	for _, o := range e.Operands {
		v, ok := asValue(o)
		if !ok {
			return nil, false
		}
		if b, err := v.Bool(); err == nil && !b {
			return stmt.False, true
		}
	}
	return stmt.True, true
}

func foldOr(e *stmt.ExprOr) (stmt.Expr, bool) {
	for _, o := range e.Operands {
		v, ok := asValue(o)
		if !ok {
			return nil, false
		}
		if b, err := v.Bool(); err == nil && b {
			return stmt.True, true
		}
	}
	return stmt.False, true
}

func foldNot(e stmt.ExprNot) (stmt.Expr, bool) {
	v, ok := asValue(e.Expr)
	if !ok {
		return nil, false
	}
	b, err := v.Bool()
	if err != nil {
		return nil, false
	}
	if b {
		return stmt.False, true
	}
	return stmt.True, true
}

// foldBinaryOp folds a binary op over two constant operands, including the
// null-propagation rule `NULL op v` folds to `NULL` for every op here
// (comparisons included — this engine has no three-valued logic surfaced to
// Go `bool`, so a NULL comparison becomes a NULL value the caller's
// IsNull/eval_bool handles like SQL's UNKNOWN).
func foldBinaryOp(e stmt.ExprBinaryOp) (stmt.Expr, bool) {
	lv, lok := asValue(e.LHS)
	rv, rok := asValue(e.RHS)
	if !lok || !rok {
		return nil, false
	}
	if lv.IsNull() || rv.IsNull() {
		return stmt.Value(value.Null()), true
	}
	v, err := stmt.Eval(e, stmt.Input{})
	if err != nil {
		return nil, false
	}
	return stmt.Value(v), true
}

func (s *Simplifier) foldIsNull(e stmt.ExprIsNull) (stmt.Expr, bool) {
	if ref, ok := e.Expr.(stmt.ExprReference); ok && ref.Kind == stmt.RefField {
		field := s.schema.App.Field(ref.Field)
		if !field.Nullable {
			return stmt.False, true
		}
		return nil, false
	}
	if v, ok := asValue(e.Expr); ok {
		if v.IsNull() {
			return stmt.True, true
		}
		return stmt.False, true
	}
	return nil, false
}

func foldInList(e stmt.ExprInList) (stmt.Expr, bool) {
	v, ok := asValue(e.Expr)
	if !ok {
		return nil, false
	}
	list, ok := e.List.(stmt.ExprListNode)
	if !ok {
		return nil, false
	}
	for _, item := range list.Items {
		iv, ok := asValue(item)
		if !ok {
			return nil, false
		}
		if v.Equal(iv) {
			return stmt.True, true
		}
	}
	return stmt.False, true
}

func foldConcatStr(e stmt.ExprConcatStr) (stmt.Expr, bool) {
	out := ""
	for _, p := range e.Parts {
		v, ok := asValue(p)
		if !ok {
			return nil, false
		}
		str, err := v.Str()
		if err != nil {
			return nil, false
		}
		out += str
	}
	return stmt.Value(value.String(out)), true
}

// foldProject only folds when the base is a constant Value. Record/List
// expression nodes (not-yet-constant builders) are left for a later pass
// once their own children fold to Values.
func foldProject(e stmt.ExprProject) (stmt.Expr, bool) {
	v, ok := asValue(e.Base)
	if !ok {
		return nil, false
	}
	result, ok := value.Project(v, e.Projection)
	if !ok {
		return nil, false
	}
	return stmt.Value(result), true
}

func foldMatch(e stmt.ExprMatch) (stmt.Expr, bool) {
	v, ok := asValue(e.Subject)
	if !ok {
		return nil, false
	}
	for _, arm := range e.Arms {
		if v.Equal(arm.Pattern) {
			return arm.Expr, true
		}
	}
	return e.Else, true
}

// foldRecord only folds when every field expression is already a constant
// Value.
func foldRecord(e stmt.ExprRecordNode) (stmt.Expr, bool) {
	values := make([]value.Value, len(e.Fields))
	for i, f := range e.Fields {
		v, ok := asValue(f)
		if !ok {
			return nil, false
		}
		values[i] = v
	}
	return stmt.Value(value.Record(values...)), true
}

func foldList(e stmt.ExprListNode) (stmt.Expr, bool) {
	values := make([]value.Value, len(e.Items))
	for i, it := range e.Items {
		v, ok := asValue(it)
		if !ok {
			return nil, false
		}
		values[i] = v
	}
	return stmt.Value(value.List(values...)), true
}

func foldCast(e stmt.ExprCast) (stmt.Expr, bool) {
	v, ok := asValue(e.Expr)
	if !ok {
		return nil, false
	}
	if !v.IsA(e.Type) {
		return nil, false
	}
	return stmt.Value(v), true
}

func foldAny(e stmt.ExprAny) (stmt.Expr, bool) {
	list, ok := e.Expr.(stmt.ExprListNode)
	if !ok {
		return nil, false
	}
	for _, item := range list.Items {
		v, ok := asValue(item)
		if !ok {
			return nil, false
		}
		if b, err := v.Bool(); err == nil && b {
			return stmt.True, true
		}
	}
	return stmt.False, true
}
