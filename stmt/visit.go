package stmt

// Visit walks an immutable expression tree. VisitExpr is called for every
// node (pre-order); returning false from a specialized pass means "don't
// descend further" is left to the caller — the default Walk always
// recurses into children so specialized passes only need to override the
// arms they care about.
type Visit interface {
	VisitExpr(e Expr)
}

// VisitMut is the mutable counterpart of Visit, used by rewrite passes
// (Simplifier, Lowerer) that replace nodes in place.
type VisitMut interface {
	VisitExprMut(e *Expr)
}

// Walk performs the default pre-order traversal, invoking v on e and then
// recursing into every child Expr. Specialized visitors call Walk from their
// own VisitExpr/VisitExprMut implementation for the arms they don't override.
func Walk(e Expr, v Visit) {
	if e == nil {
		return
	}
	v.VisitExpr(e)
	switch n := e.(type) {
	case ExprBinaryOp:
		Walk(n.LHS, v)
		Walk(n.RHS, v)
	case ExprUnaryOp:
		Walk(n.Expr, v)
	case *ExprAnd:
		for _, o := range n.Operands {
			Walk(o, v)
		}
	case *ExprOr:
		for _, o := range n.Operands {
			Walk(o, v)
		}
	case ExprNot:
		Walk(n.Expr, v)
	case ExprIsNull:
		Walk(n.Expr, v)
	case ExprIsVariant:
		Walk(n.Expr, v)
	case ExprInList:
		Walk(n.Expr, v)
		Walk(n.List, v)
	case ExprPattern:
		Walk(n.Expr, v)
	case ExprConcatStr:
		for _, p := range n.Parts {
			Walk(p, v)
		}
	case ExprMap:
		Walk(n.Base, v)
		Walk(n.Body, v)
	case ExprAny:
		Walk(n.Expr, v)
	case ExprProject:
		Walk(n.Base, v)
	case ExprRecordNode:
		for _, f := range n.Fields {
			Walk(f, v)
		}
	case ExprListNode:
		for _, it := range n.Items {
			Walk(it, v)
		}
	case ExprMatch:
		Walk(n.Subject, v)
		for _, arm := range n.Arms {
			Walk(arm.Expr, v)
		}
		Walk(n.Else, v)
	case ExprCast:
		Walk(n.Expr, v)
	case ExprFunc:
		for _, a := range n.Args {
			Walk(a, v)
		}
	}
}

// WalkMut is the mutable traversal used by rewrite passes. Each child slot is
// replaced in place with the result of applying fn.
func WalkMut(e *Expr, fn func(*Expr)) {
	if e == nil || *e == nil {
		return
	}
	fn(e)
	switch n := (*e).(type) {
	case ExprBinaryOp:
		WalkMut(&n.LHS, fn)
		WalkMut(&n.RHS, fn)
		*e = n
	case ExprUnaryOp:
		WalkMut(&n.Expr, fn)
		*e = n
	case *ExprAnd:
		for i := range n.Operands {
			WalkMut(&n.Operands[i], fn)
		}
	case *ExprOr:
		for i := range n.Operands {
			WalkMut(&n.Operands[i], fn)
		}
	case ExprNot:
		WalkMut(&n.Expr, fn)
		*e = n
	case ExprIsNull:
		WalkMut(&n.Expr, fn)
		*e = n
	case ExprInList:
		WalkMut(&n.Expr, fn)
		WalkMut(&n.List, fn)
		*e = n
	case ExprPattern:
		WalkMut(&n.Expr, fn)
		*e = n
	case ExprConcatStr:
		for i := range n.Parts {
			WalkMut(&n.Parts[i], fn)
		}
		*e = n
	case ExprMap:
		WalkMut(&n.Base, fn)
		WalkMut(&n.Body, fn)
		*e = n
	case ExprAny:
		WalkMut(&n.Expr, fn)
		*e = n
	case ExprProject:
		WalkMut(&n.Base, fn)
		*e = n
	case ExprRecordNode:
		for i := range n.Fields {
			WalkMut(&n.Fields[i], fn)
		}
		*e = n
	case ExprListNode:
		for i := range n.Items {
			WalkMut(&n.Items[i], fn)
		}
		*e = n
	case ExprMatch:
		WalkMut(&n.Subject, fn)
		for i := range n.Arms {
			WalkMut(&n.Arms[i].Expr, fn)
		}
		WalkMut(&n.Else, fn)
		*e = n
	case ExprCast:
		WalkMut(&n.Expr, fn)
		*e = n
	case ExprFunc:
		for i := range n.Args {
			WalkMut(&n.Args[i], fn)
		}
		*e = n
	}
}

// Take swaps e for True (the expression zero value's closest "default")
// and returns the original, for in-place rewrites that need to move a node
// out of a *Expr without a placeholder allocation.
func Take(e *Expr) Expr {
	old := *e
	*e = True
	return old
}
