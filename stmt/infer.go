package stmt

import "github.com/lattice-orm/lattice/value"

// InferType computes e's result Type given the types of its positional
// Args: every expression has an inferable type given an argument type
// vector and the row type supplying SelfField/Column references.
func InferType(e Expr, argTys []value.Type, rowTy value.Type) value.Type {
	switch n := e.(type) {
	case ExprValue:
		return n.Value.Ty()
	case ExprArg:
		if n.Position < len(argTys) {
			return argTys[n.Position]
		}
		return value.Unknown
	case ExprReference:
		switch n.Kind {
		case RefSelfField:
			return value.ProjectType(rowTy, value.FieldProjection(n.Field.Index))
		case RefColumn:
			return value.ProjectType(rowTy, value.FieldProjection(n.Column.Index))
		case RefAncestorModel:
			return rowTy
		default:
			return value.Unknown
		}
	case ExprBinaryOp:
		switch n.Op {
		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
			return value.Scalar(value.KindBool)
		default:
			return InferType(n.LHS, argTys, rowTy)
		}
	case ExprUnaryOp:
		return InferType(n.Expr, argTys, rowTy)
	case *ExprAnd, *ExprOr, ExprNot, ExprIsNull, ExprIsVariant, ExprInList, ExprPattern, ExprAny:
		return value.Scalar(value.KindBool)
	case ExprConcatStr:
		return value.Scalar(value.KindString)
	case ExprProject:
		base := InferType(n.Base, argTys, rowTy)
		return value.ProjectType(base, n.Projection)
	case ExprRecordNode:
		fields := make([]value.Type, len(n.Fields))
		for i, f := range n.Fields {
			fields[i] = InferType(f, argTys, rowTy)
		}
		return value.RecordOf(fields...)
	case ExprListNode:
		if len(n.Items) == 0 {
			return value.ListOf(value.Unknown)
		}
		return value.ListOf(InferType(n.Items[0], argTys, rowTy))
	case ExprMap:
		base := InferType(n.Base, argTys, rowTy)
		elemTy := value.Unknown
		if base.Kind == value.KindList {
			elemTy = *base.Elem
		}
		return value.ListOf(InferType(n.Body, argTys, elemTy))
	case ExprMatch:
		tys := make([]value.Type, 0, len(n.Arms)+1)
		for _, a := range n.Arms {
			tys = append(tys, InferType(a.Expr, argTys, rowTy))
		}
		tys = append(tys, InferType(n.Else, argTys, rowTy))
		return value.UnionOf(tys...)
	case ExprCast:
		return n.Type
	case ExprFunc:
		return value.Scalar(value.KindI64)
	case ExprError:
		return value.Unknown
	default:
		return value.Unknown
	}
}
