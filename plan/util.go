package plan

import (
	"github.com/lattice-orm/lattice/schema"
	"github.com/lattice-orm/lattice/schema/app"
	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

// pkColumns returns the storage columns backing model's primary key, in
// declaration order.
func pkColumns(s *schema.Schema, model value.ModelID) []value.ColumnID {
	m := s.App.Model(model)
	mm := s.MappingFor(model)
	var cols []value.ColumnID
	for _, f := range m.PrimaryKeyFields() {
		cols = append(cols, mm.Column(f)...)
	}
	return cols
}

// rowColumns returns every primitive/embedded column of model, in the same
// order lower.Lowerer's rewriteReturning builds them — the "full row" shape
// a plain GetByKey/QueryPk fetch reconstructs.
func rowColumns(s *schema.Schema, model value.ModelID) []value.ColumnID {
	m := s.App.Model(model)
	mm := s.MappingFor(model)
	var cols []value.ColumnID
	for _, f := range m.Fields {
		if f.Ty != app.FieldPrimitive && f.Ty != app.FieldEmbedded {
			continue
		}
		cols = append(cols, mm.Column(f.ID)...)
	}
	return cols
}

// rowReturning builds the plain "whole row" ReturningExpr for model, the
// same shape lower.Lowerer's rewriteReturning produces: a record of every
// primitive/embedded column reference in declaration order.
func rowReturning(cols []value.ColumnID) stmt.Expr {
	fields := make([]stmt.Expr, len(cols))
	for i, c := range cols {
		fields[i] = stmt.ColumnRef(c)
	}
	return stmt.ExprRecordNode{Fields: fields}
}

// conjuncts flattens the top-level And of e into its operands; a bare,
// non-And expression is returned as a single-element slice, and the
// constant `true` (no filter) as an empty slice.
func conjuncts(e stmt.Expr) []stmt.Expr {
	if e == nil || stmt.IsTrue(e) {
		return nil
	}
	if and, ok := e.(*stmt.ExprAnd); ok {
		return and.Operands
	}
	return []stmt.Expr{e}
}

type exprVisitFunc func(stmt.Expr)

func (f exprVisitFunc) VisitExpr(e stmt.Expr) { f(e) }

// referencesColumn reports whether e contains any RefColumn leaf.
func referencesColumn(e stmt.Expr) bool {
	found := false
	stmt.Walk(e, exprVisitFunc(func(n stmt.Expr) {
		if ref, ok := n.(stmt.ExprReference); ok && ref.Kind == stmt.RefColumn {
			found = true
		}
	}))
	return found
}

// equalityColumn reports the column and constant-ish value side of a
// top-level `column = value` conjunct (either operand order).
func equalityColumn(e stmt.Expr) (value.ColumnID, stmt.Expr, bool) {
	bin, ok := e.(stmt.ExprBinaryOp)
	if !ok || bin.Op != stmt.OpEq {
		return value.ColumnID{}, nil, false
	}
	if ref, ok := bin.LHS.(stmt.ExprReference); ok && ref.Kind == stmt.RefColumn && !referencesColumn(bin.RHS) {
		return ref.Column, bin.RHS, true
	}
	if ref, ok := bin.RHS.(stmt.ExprReference); ok && ref.Kind == stmt.RefColumn && !referencesColumn(bin.LHS) {
		return ref.Column, bin.LHS, true
	}
	return value.ColumnID{}, nil, false
}

// inListColumn reports the column and element-list expression of a
// top-level `column IN (...)` conjunct.
func inListColumn(e stmt.Expr) (value.ColumnID, stmt.Expr, bool) {
	in, ok := e.(stmt.ExprInList)
	if !ok {
		return value.ColumnID{}, nil, false
	}
	ref, ok := in.Expr.(stmt.ExprReference)
	if !ok || ref.Kind != stmt.RefColumn {
		return value.ColumnID{}, nil, false
	}
	return ref.Column, in.List, true
}

// constListValues reports the constant element values of a list-typed
// expression (ExprListNode of ExprValue leaves), used to materialize a
// concrete key set for GetByKey/FindPkByIndex on KV backends.
func constListValues(e stmt.Expr) ([]value.Value, bool) {
	list, ok := e.(stmt.ExprListNode)
	if !ok {
		return nil, false
	}
	out := make([]value.Value, len(list.Items))
	for i, item := range list.Items {
		v, ok := item.(stmt.ExprValue)
		if !ok {
			return nil, false
		}
		out[i] = v.Value
	}
	return out, true
}

// equalityMap collects every top-level `column = constant` conjunct of
// filter into a map, plus the remaining conjuncts that weren't consumed.
func equalityMap(filter stmt.Expr) (map[value.ColumnID]value.Value, []stmt.Expr) {
	eq := make(map[value.ColumnID]value.Value)
	var residual []stmt.Expr
	for _, c := range conjuncts(filter) {
		col, rhs, ok := equalityColumn(c)
		if ok {
			if v, ok := rhs.(stmt.ExprValue); ok {
				eq[col] = v.Value
				continue
			}
		}
		residual = append(residual, c)
	}
	return eq, residual
}

// relationTarget describes the FK columns a single-hop BelongsTo/HasMany/
// HasOne relation field resolves to. Only the first pair of a composite
// foreign key is used — composite relation keys are left unsupported here,
// matching the Simplifier/Lowerer's existing precedent for composite keys
// (see DESIGN.md).
type relationTarget struct {
	Target    value.ModelID
	ParentCol value.ColumnID // column on the parent (owning) side
	ChildCol  value.ColumnID // column on the child (target) side
	// Owning is true for a plain BelongsTo (parent holds the FK,
	// ChildCol is the target's primary key — a direct GetByKey), false
	// for the inverse HasMany/HasOne (ChildCol is an indexed FK column on
	// the target — a FindPkByIndex).
	Owning bool
}

// resolveRelation inspects the first step of path against model, returning
// the relation it names (if any).
func resolveRelation(s *schema.Schema, model value.ModelID, path stmt.Path) (relationTarget, bool) {
	if path.IsEmpty() {
		return relationTarget{}, false
	}
	m := s.App.Model(model)
	mm := s.MappingFor(model)
	f := m.Fields[path.Projection[0].Field]

	switch f.Ty {
	case app.FieldBelongsTo:
		rel := f.BelongsToRel
		if len(rel.ForeignKey) == 0 {
			return relationTarget{}, false
		}
		targetMM := s.MappingFor(rel.Target)
		pair := rel.ForeignKey[0]
		return relationTarget{
			Target:    rel.Target,
			ParentCol: mm.Column(pair.Source)[0],
			ChildCol:  targetMM.Column(pair.Target)[0],
			Owning:    true,
		}, true

	case app.FieldHasMany, app.FieldHasOne:
		var target value.ModelID
		var pair value.FieldID
		if f.Ty == app.FieldHasMany {
			target, pair = f.HasManyRel.Target, f.HasManyRel.Pair
		} else {
			target, pair = f.HasOneRel.Target, f.HasOneRel.Pair
		}
		targetModel := s.App.Model(target)
		targetMM := s.MappingFor(target)
		belongsTo := targetModel.Field(pair).ExpectBelongsTo()
		if len(belongsTo.ForeignKey) == 0 {
			return relationTarget{}, false
		}
		fk := belongsTo.ForeignKey[0]
		return relationTarget{
			Target:    target,
			ParentCol: mm.Column(fk.Target)[0],
			ChildCol:  targetMM.Column(fk.Source)[0],
			Owning:    false,
		}, true

	default:
		return relationTarget{}, false
	}
}

// indexCoveringColumn finds a non-primary-key index on model whose leading
// field maps to column, used to resolve a HasMany/HasOne preload's indexed
// FK lookup.
func indexCoveringColumn(s *schema.Schema, model value.ModelID, column value.ColumnID) (value.DBIndexID, bool) {
	m := s.App.Model(model)
	mm := s.MappingFor(model)
	for i, ix := range m.Indices {
		if len(ix.Fields) == 0 {
			continue
		}
		cols := mm.Column(ix.Fields[0].Field)
		if len(cols) == 1 && cols[0] == column {
			return value.DBIndexID{Table: mm.Table, Index: i}, true
		}
	}
	return value.DBIndexID{}, false
}
