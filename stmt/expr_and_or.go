package stmt

// ExprAnd is a conjunction of ≥2 operands. Construction always goes through
// And/AndFromVec, which enforce the invariant that And/Or never hold fewer
// than two operands: a single operand or empty slice normalizes to that
// operand / `true` before an *ExprAnd is ever allocated.
type ExprAnd struct{ Operands []Expr }

// ExprOr is a disjunction of ≥2 operands, with the same normalization
// invariant as ExprAnd.
type ExprOr struct{ Operands []Expr }

// And builds lhs && rhs, flattening nested Ands and dropping `true`
// operands.
func And(lhs, rhs Expr) Expr {
	if IsTrue(lhs) {
		return rhs
	}
	if IsTrue(rhs) {
		return lhs
	}
	lAnd, lIsAnd := lhs.(*ExprAnd)
	rAnd, rIsAnd := rhs.(*ExprAnd)
	switch {
	case lIsAnd && rIsAnd:
		lAnd.Operands = append(lAnd.Operands, rAnd.Operands...)
		return lAnd
	case lIsAnd:
		lAnd.Operands = append(lAnd.Operands, rhs)
		return lAnd
	case rIsAnd:
		rAnd.Operands = append([]Expr{lhs}, rAnd.Operands...)
		return rAnd
	default:
		return &ExprAnd{Operands: []Expr{lhs, rhs}}
	}
}

// AndFromVec builds a conjunction from a slice, collapsing empty to `true`
// and singleton to its sole element.
func AndFromVec(operands []Expr) Expr {
	switch len(operands) {
	case 0:
		return True
	case 1:
		return operands[0]
	default:
		return &ExprAnd{Operands: operands}
	}
}

// Or builds lhs || rhs, flattening nested Ors and dropping `false` operands.
func Or(lhs, rhs Expr) Expr {
	if IsFalse(lhs) {
		return rhs
	}
	if IsFalse(rhs) {
		return lhs
	}
	lOr, lIsOr := lhs.(*ExprOr)
	rOr, rIsOr := rhs.(*ExprOr)
	switch {
	case lIsOr && rIsOr:
		lOr.Operands = append(lOr.Operands, rOr.Operands...)
		return lOr
	case lIsOr:
		lOr.Operands = append(lOr.Operands, rhs)
		return lOr
	case rIsOr:
		rOr.Operands = append([]Expr{lhs}, rOr.Operands...)
		return rOr
	default:
		return &ExprOr{Operands: []Expr{lhs, rhs}}
	}
}

// OrFromVec builds a disjunction from a slice, collapsing empty to `false`
// and singleton to its sole element.
func OrFromVec(operands []Expr) Expr {
	switch len(operands) {
	case 0:
		return False
	case 1:
		return operands[0]
	default:
		return &ExprOr{Operands: operands}
	}
}
