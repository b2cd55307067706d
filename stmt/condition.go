package stmt

// Condition is the optional guard on an Update statement: when present, the
// update only applies if Condition evaluates true for a given row; otherwise
// the Planner falls back to ReadModifyWrite.
type Condition struct {
	expr *Expr
}

// ConditionOf wraps e as a present Condition.
func ConditionOf(e Expr) Condition { return Condition{expr: &e} }

func (c Condition) IsSome() bool { return c.expr != nil }
func (c Condition) IsNone() bool { return c.expr == nil }

// Expr returns the guard expression, or `true` when absent.
func (c Condition) Expr() Expr {
	if c.expr == nil {
		return True
	}
	return *c.expr
}
