package stmt

import (
	"fmt"

	"github.com/lattice-orm/lattice/value"
)

// EvalError is raised when evaluation reaches a non-Value leaf it cannot
// resolve (an unbound Arg/Reference) or an ExprError node. The lattice
// package wraps this into ErrExpressionEvaluationFailed at the API boundary.
type EvalError struct{ Cause string }

func (e *EvalError) Error() string { return "expression evaluation failed: " + e.Cause }

// Input supplies the runtime bindings Eval needs to resolve Arg and
// Reference leaves.
type Input struct {
	// Args are substituted for ExprArg(position).
	Args []value.Value
	// Row is the current record used to resolve SelfField/Column
	// references during in-memory Project/Filter evaluation. Its fields
	// are addressed positionally by FieldID.Index/ColumnID.Index.
	Row value.Value
}

// Eval evaluates e against in, failing if a leaf cannot be resolved to a
// concrete Value.
func Eval(e Expr, in Input) (value.Value, error) {
	switch n := e.(type) {
	case ExprValue:
		return n.Value, nil
	case ExprArg:
		if n.Position < 0 || n.Position >= len(in.Args) {
			return value.Value{}, &EvalError{Cause: fmt.Sprintf("arg %d out of range", n.Position)}
		}
		return in.Args[n.Position], nil
	case ExprReference:
		return evalReference(n, in)
	case ExprBinaryOp:
		return evalBinary(n, in)
	case ExprUnaryOp:
		v, err := Eval(n.Expr, in)
		if err != nil {
			return value.Value{}, err
		}
		f, err := v.Int64()
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(-f), nil
	case *ExprAnd:
		for _, o := range n.Operands {
			v, err := Eval(o, in)
			if err != nil {
				return value.Value{}, err
			}
			b, err := v.Bool()
			if err != nil || !b {
				return value.Bool(false), nil
			}
		}
		return value.Bool(true), nil
	case *ExprOr:
		for _, o := range n.Operands {
			v, err := Eval(o, in)
			if err != nil {
				return value.Value{}, err
			}
			b, err := v.Bool()
			if err == nil && b {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	case ExprNot:
		v, err := Eval(n.Expr, in)
		if err != nil {
			return value.Value{}, err
		}
		b, err := v.Bool()
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(!b), nil
	case ExprIsNull:
		v, err := Eval(n.Expr, in)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(v.IsNull()), nil
	case ExprIsVariant:
		v, err := Eval(n.Expr, in)
		if err != nil {
			return value.Value{}, err
		}
		en := v.AsEnum()
		return value.Bool(en != nil && en.Discriminant == n.Variant), nil
	case ExprInList:
		v, err := Eval(n.Expr, in)
		if err != nil {
			return value.Value{}, err
		}
		list, err := Eval(n.List, in)
		if err != nil {
			return value.Value{}, err
		}
		for _, item := range list.AsList() {
			if v.Equal(item) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	case ExprConcatStr:
		var out string
		for _, p := range n.Parts {
			v, err := Eval(p, in)
			if err != nil {
				return value.Value{}, err
			}
			s, err := v.Str()
			if err != nil {
				return value.Value{}, err
			}
			out += s
		}
		return value.String(out), nil
	case ExprProject:
		base, err := Eval(n.Base, in)
		if err != nil {
			return value.Value{}, err
		}
		v, ok := value.Project(base, n.Projection)
		if !ok {
			return value.Value{}, &EvalError{Cause: "projection does not apply to base value"}
		}
		return v, nil
	case ExprRecordNode:
		fields := make([]value.Value, len(n.Fields))
		for i, f := range n.Fields {
			v, err := Eval(f, in)
			if err != nil {
				return value.Value{}, err
			}
			fields[i] = v
		}
		return value.Record(fields...), nil
	case ExprListNode:
		items := make([]value.Value, len(n.Items))
		for i, it := range n.Items {
			v, err := Eval(it, in)
			if err != nil {
				return value.Value{}, err
			}
			items[i] = v
		}
		return value.List(items...), nil
	case ExprMap:
		base, err := Eval(n.Base, in)
		if err != nil {
			return value.Value{}, err
		}
		items := base.AsList()
		out := make([]value.Value, len(items))
		for i, item := range items {
			sub := in
			sub.Row = item
			v, err := Eval(n.Body, sub)
			if err != nil {
				return value.Value{}, err
			}
			out[i] = v
		}
		return value.List(out...), nil
	case ExprAny:
		v, err := Eval(n.Expr, in)
		if err != nil {
			return value.Value{}, err
		}
		for _, item := range v.AsList() {
			b, err := item.Bool()
			if err == nil && b {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	case ExprMatch:
		subj, err := Eval(n.Subject, in)
		if err != nil {
			return value.Value{}, err
		}
		for _, arm := range n.Arms {
			if subj.Equal(arm.Pattern) {
				return Eval(arm.Expr, in)
			}
		}
		return Eval(n.Else, in)
	case ExprPattern:
		v, err := Eval(n.Expr, in)
		if err != nil {
			return value.Value{}, err
		}
		s, err := v.Str()
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(matchPattern(n.Kind, s, n.Pattern)), nil
	case ExprError:
		return value.Value{}, &EvalError{Cause: n.Message}
	default:
		return value.Value{}, &EvalError{Cause: fmt.Sprintf("cannot evaluate %T outside the planner/lowerer", e)}
	}
}

func matchPattern(kind PatternKind, s, pattern string) bool {
	switch kind {
	case PatternBeginsWith:
		return len(s) >= len(pattern) && s[:len(pattern)] == pattern
	default: // PatternLike: '%' wildcard only, the subset the simplifier folds.
		return likeMatch(s, pattern)
	}
}

func likeMatch(s, pattern string) bool {
	// Minimal LIKE-subset matcher (single '%' wildcard) sufficient for
	// constant folding; full LIKE semantics are delegated to the backend
	// when the predicate isn't folded away.
	if i := indexOf(pattern, '%'); i >= 0 {
		prefix, suffix := pattern[:i], pattern[i+1:]
		return len(s) >= len(prefix)+len(suffix) && s[:len(prefix)] == prefix && s[len(s)-len(suffix):] == suffix
	}
	return s == pattern
}

func indexOf(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func evalReference(n ExprReference, in Input) (value.Value, error) {
	switch n.Kind {
	case RefSelfField:
		v, ok := value.Project(in.Row, value.FieldProjection(n.Field.Index))
		if !ok {
			return value.Value{}, &EvalError{Cause: "self field reference out of range"}
		}
		return v, nil
	case RefColumn:
		v, ok := value.Project(in.Row, value.FieldProjection(n.Column.Index))
		if !ok {
			return value.Value{}, &EvalError{Cause: "column reference out of range"}
		}
		return v, nil
	case RefAncestorModel:
		if n.Depth == 0 {
			return in.Row, nil
		}
		return value.Value{}, &EvalError{Cause: "ancestor model reference not bound"}
	default:
		return value.Value{}, &EvalError{Cause: "model-level field reference not lowered"}
	}
}

func evalBinary(n ExprBinaryOp, in Input) (value.Value, error) {
	lhs, err := Eval(n.LHS, in)
	if err != nil {
		return value.Value{}, err
	}
	rhs, err := Eval(n.RHS, in)
	if err != nil {
		return value.Value{}, err
	}
	switch n.Op {
	case OpEq:
		return value.Bool(lhs.Equal(rhs)), nil
	case OpNe:
		return value.Bool(!lhs.Equal(rhs)), nil
	case OpAdd, OpSub, OpMul, OpDiv:
		l, err := lhs.Int64()
		if err != nil {
			return value.Value{}, err
		}
		r, err := rhs.Int64()
		if err != nil {
			return value.Value{}, err
		}
		switch n.Op {
		case OpAdd:
			return value.Int(l + r), nil
		case OpSub:
			return value.Int(l - r), nil
		case OpMul:
			return value.Int(l * r), nil
		case OpDiv:
			if r == 0 {
				return value.Value{}, &EvalError{Cause: "division by zero"}
			}
			return value.Int(l / r), nil
		}
	case OpLt, OpLe, OpGt, OpGe:
		l, err := lhs.Int64()
		if err != nil {
			return value.Value{}, err
		}
		r, err := rhs.Int64()
		if err != nil {
			return value.Value{}, err
		}
		switch n.Op {
		case OpLt:
			return value.Bool(l < r), nil
		case OpLe:
			return value.Bool(l <= r), nil
		case OpGt:
			return value.Bool(l > r), nil
		case OpGe:
			return value.Bool(l >= r), nil
		}
	}
	return value.Value{}, &EvalError{Cause: "unsupported binary op"}
}

// EvalBool evaluates e and converts the result to bool.
func EvalBool(e Expr, in Input) (bool, error) {
	v, err := Eval(e, in)
	if err != nil {
		return false, err
	}
	return v.Bool()
}

// EvalConst evaluates e with no bindings, succeeding only if e contains no
// Arg/Reference leaves.
func EvalConst(e Expr) (value.Value, error) { return Eval(e, Input{}) }

// Substitute resolves every ExprArg(position) in e to args[position],
// returning a new tree with Reference/other leaves left untouched. This is
// the substitution step the Planner and the ExecStatement/QueryPk/
// FindPkByIndex actions run before handing a statement to a Driver.
func Substitute(e Expr, args []value.Value) Expr {
	result := e
	WalkMut(&result, func(cur *Expr) {
		if arg, ok := (*cur).(ExprArg); ok && arg.Position < len(args) {
			*cur = ExprValue{Value: args[arg.Position]}
		}
	})
	return result
}

// SubstituteStatement resolves every ExprArg leaf across every expression
// field of s (filter, assignments, condition, returning projection), used
// by the Executor's ExecStatement action to bind collected input values
// into a lowered statement right before handing it to a driver.
func SubstituteStatement(s Statement, args []value.Value) Statement {
	switch v := s.(type) {
	case *Query:
		substituteQuery(v, args)
		return v
	case *Insert:
		if v.Returning != nil {
			v.Returning.Expr = Substitute(v.Returning.Expr, args)
		}
		substituteQuery(v.Source, args)
		return v
	case *Update:
		for i, a := range v.Assignments {
			v.Assignments[i].Value = Substitute(a.Value, args)
		}
		if v.FilterExpr.IsSome() {
			v.FilterExpr.Set(Substitute(v.FilterExpr.Expr(), args))
		}
		if v.Condition.IsSome() {
			v.Condition = ConditionOf(Substitute(v.Condition.Expr(), args))
		}
		if v.Returning != nil {
			v.Returning.Expr = Substitute(v.Returning.Expr, args)
		}
		return v
	case *Delete:
		if v.FilterExpr.IsSome() {
			v.FilterExpr.Set(Substitute(v.FilterExpr.Expr(), args))
		}
		if v.Returning != nil {
			v.Returning.Expr = Substitute(v.Returning.Expr, args)
		}
		return v
	default:
		return s
	}
}

func substituteQuery(q *Query, args []value.Value) {
	if q == nil {
		return
	}
	switch body := q.Body.(type) {
	case ExprSetSelect:
		if body.Select.Filter.IsSome() {
			body.Select.Filter.Set(Substitute(body.Select.Filter.Expr(), args))
		}
		body.Select.Returning.Expr = Substitute(body.Select.Returning.Expr, args)
		q.Body = body
	case ExprSetOp:
		substituteQuery(body.LHS, args)
		substituteQuery(body.RHS, args)
	}
	if q.Limit != nil && q.Limit.Offset.Kind == OffsetAfter {
		for i, e := range q.Limit.Offset.After {
			q.Limit.Offset.After[i] = Substitute(e, args)
		}
	}
}
