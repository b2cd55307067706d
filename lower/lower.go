// Package lower translates model-level statements against a schema.Mapping
// into table-level statements the Planner can hand to drivers: field
// references become column references, Source::Model becomes Source::Table
// with materialized joins for preloaded relation paths, Returning::Model
// becomes an explicit column projection, and (for SQL targets) keyset
// "after" pagination becomes a compound inequality filter.
package lower

import (
	"github.com/lattice-orm/lattice/schema"
	"github.com/lattice-orm/lattice/schema/app"
	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

// Lowerer holds the schema context statement lowering is checked against.
type Lowerer struct {
	schema *schema.Schema
	sql    bool
}

// New returns a Lowerer targeting the given schema; sql indicates whether
// the destination driver is a SQL backend (gates the keyset-pagination
// rewrite, which only applies to SQL targets).
func New(s *schema.Schema, sql bool) *Lowerer {
	return &Lowerer{schema: s, sql: sql}
}

// Query lowers a model-level read statement to table level.
func (l *Lowerer) Query(q *stmt.Query) *stmt.Query {
	switch body := q.Body.(type) {
	case stmt.ExprSetSelect:
		q.Body = stmt.ExprSetSelect{Select: l.select_(body.Select)}
	case stmt.ExprSetOp:
		l.Query(body.LHS)
		l.Query(body.RHS)
	}
	if l.sql {
		l.rewriteOffsetAfter(q)
	}
	return q
}

func (l *Lowerer) select_(sel stmt.Select) stmt.Select {
	model := l.schema.App.Model(sel.Source.Model)
	mm := l.schema.MappingFor(sel.Source.Model)

	joins := l.joinsFor(model, sel.Source.Include)

	if sel.Filter.IsSome() {
		sel.Filter.Set(l.rewriteExpr(sel.Filter.Expr(), mm))
	}
	sel.Returning = l.rewriteReturning(model, mm, sel.Returning)

	sel.Source = stmt.Source{
		IsTable: true,
		Table:   mm.Table,
		Joins:   joins,
	}
	return sel
}

// Insert lowers target+source to table level (columns, values).
func (l *Lowerer) Insert(ins *stmt.Insert) *stmt.Insert {
	model := l.schema.App.Model(ins.Target.ModelID())
	mm := l.schema.MappingFor(model.ID)

	var columns []value.ColumnID
	for _, f := range model.Fields {
		if f.Ty != app.FieldPrimitive && f.Ty != app.FieldEmbedded {
			continue
		}
		columns = append(columns, mm.Column(f.ID)...)
	}
	ins.Target = stmt.NewInsertTable(stmt.InsertTable{Table: mm.Table, Columns: columns})
	l.Query(ins.Source)
	if ins.Returning != nil {
		r := l.rewriteReturning(model, mm, *ins.Returning)
		ins.Returning = &r
	}
	return ins
}

// Update lowers an Update's target, assignments, filter, and returning
// clause to table level.
func (l *Lowerer) Update(upd *stmt.Update) *stmt.Update {
	model := l.schema.App.Model(upd.Target.Model)
	mm := l.schema.MappingFor(model.ID)

	for i, a := range upd.Assignments {
		upd.Assignments[i].Value = l.rewriteExpr(a.Value, mm)
	}
	upd.FilterExpr.Set(l.rewriteExpr(upd.FilterExpr.Expr(), mm))
	if upd.Condition.IsSome() {
		upd.Condition = stmt.ConditionOf(l.rewriteExpr(upd.Condition.Expr(), mm))
	}
	if upd.Returning != nil {
		r := l.rewriteReturning(model, mm, *upd.Returning)
		upd.Returning = &r
	}
	upd.Target = stmt.Source{IsTable: true, Table: mm.Table}
	return upd
}

// Delete lowers a Delete's target, filter, and returning clause to table
// level.
func (l *Lowerer) Delete(del *stmt.Delete) *stmt.Delete {
	model := l.schema.App.Model(del.From.Model)
	mm := l.schema.MappingFor(model.ID)

	del.FilterExpr.Set(l.rewriteExpr(del.FilterExpr.Expr(), mm))
	if del.Returning != nil {
		r := l.rewriteReturning(model, mm, *del.Returning)
		del.Returning = &r
	}
	del.From = stmt.Source{IsTable: true, Table: mm.Table}
	return del
}

// rewriteExpr replaces every model-level field reference in e with the
// table-level column reference(s) the mapping assigns it. A field backed by
// more than one column (an embedded field) expands to a record of column
// references, matching the shape a SelfField reference to that field would
// have produced at the model level.
func (l *Lowerer) rewriteExpr(e stmt.Expr, mm *schema.ModelMapping) stmt.Expr {
	result := e
	stmt.WalkMut(&result, func(cur *stmt.Expr) {
		ref, ok := (*cur).(stmt.ExprReference)
		if !ok || (ref.Kind != stmt.RefField && ref.Kind != stmt.RefSelfField) {
			return
		}
		cols := mm.Column(ref.Field)
		if len(cols) == 1 {
			*cur = stmt.ColumnRef(cols[0])
			return
		}
		fields := make([]stmt.Expr, len(cols))
		for i, c := range cols {
			fields[i] = stmt.ColumnRef(c)
		}
		*cur = stmt.ExprRecordNode{Fields: fields}
	})
	return result
}

// joinsFor materializes one table join per preloaded relation path. Only
// the first projection step of each path is consulted: it names the
// relation field on model that the join traverses. Steps after the first
// are ignored here, and no later stage preloads across a second relation
// hop either.
func (l *Lowerer) joinsFor(model *app.Model, paths []stmt.Path) []stmt.Join {
	var joins []stmt.Join
	for _, p := range paths {
		if p.IsEmpty() {
			continue
		}
		field := model.Fields[p.Projection[0].Field]
		join, ok := l.joinForField(model, field)
		if ok {
			joins = append(joins, join)
		}
	}
	return joins
}

func (l *Lowerer) joinForField(model *app.Model, f *app.Field) (stmt.Join, bool) {
	mm := l.schema.MappingFor(model.ID)

	switch f.Ty {
	case app.FieldBelongsTo:
		rel := f.BelongsToRel
		targetMM := l.schema.MappingFor(rel.Target)
		return stmt.Join{Table: targetMM.Table, On: fkEquality(mm, rel.ForeignKey, targetMM, true)}, true

	case app.FieldHasMany, app.FieldHasOne:
		var target value.ModelID
		var pair value.FieldID
		if f.Ty == app.FieldHasMany {
			target, pair = f.HasManyRel.Target, f.HasManyRel.Pair
		} else {
			target, pair = f.HasOneRel.Target, f.HasOneRel.Pair
		}
		targetModel := l.schema.App.Model(target)
		targetMM := l.schema.MappingFor(target)
		belongsTo := targetModel.Field(pair).ExpectBelongsTo()
		return stmt.Join{Table: targetMM.Table, On: fkEquality(mm, belongsTo.ForeignKey, targetMM, false)}, true

	default:
		return stmt.Join{}, false
	}
}

// fkEquality builds the AND of per-column equalities between a relation's
// foreign key and the primary key it references. owning is true for a
// plain BelongsTo join (ownerMM holds the FK's Source side, otherMM holds
// its Target side) and false for the inverse HasMany/HasOne join, where
// ownerMM is the BelongsTo pair's Target and otherMM is its Source.
func fkEquality(ownerMM *schema.ModelMapping, pairs []app.ForeignKeyPair, otherMM *schema.ModelMapping, owning bool) stmt.Expr {
	var on stmt.Expr
	for _, fk := range pairs {
		var lhsCols, rhsCols []value.ColumnID
		if owning {
			lhsCols, rhsCols = ownerMM.Column(fk.Source), otherMM.Column(fk.Target)
		} else {
			lhsCols, rhsCols = ownerMM.Column(fk.Target), otherMM.Column(fk.Source)
		}
		eq := stmt.Eq(stmt.ColumnRef(lhsCols[0]), stmt.ColumnRef(rhsCols[0]))
		if on == nil {
			on = eq
		} else {
			on = stmt.And(on, eq)
		}
	}
	return on
}

// rewriteReturning rewrites a ReturningModel clause into an explicit column
// projection over model's primitive/embedded columns; other Returning kinds
// pass through unchanged (ReturningChanged needs no columns, ReturningExpr
// is already an expression the caller built directly).
func (l *Lowerer) rewriteReturning(model *app.Model, mm *schema.ModelMapping, r stmt.Returning) stmt.Returning {
	if !r.IsModel() {
		return r
	}
	var fields []stmt.Expr
	for _, f := range model.Fields {
		if f.Ty != app.FieldPrimitive && f.Ty != app.FieldEmbedded {
			continue
		}
		for _, c := range mm.Column(f.ID) {
			fields = append(fields, stmt.ColumnRef(c))
		}
	}
	return stmt.Returning{
		Kind:    stmt.ReturningExpr,
		Include: r.Include,
		Expr:    stmt.ExprRecordNode{Fields: fields},
	}
}

// rewriteOffsetAfter rewrites keyset "after" pagination into a compound
// inequality filter over the declared ORDER BY expressions. Only applies
// to SQL targets;
// KV/document drivers keep the opaque offset token and resolve it
// themselves.
func (l *Lowerer) rewriteOffsetAfter(q *stmt.Query) {
	if q.OrderBy == nil || q.Limit == nil {
		return
	}
	if q.Limit.Offset.Kind != stmt.OffsetAfter {
		return
	}
	after := q.Limit.Offset.After
	q.Limit.Offset = stmt.OffsetSpec{}

	sel, ok := q.Body.(stmt.ExprSetSelect)
	if !ok {
		return
	}

	switch {
	case len(after) == len(q.OrderBy):
		for i, v := range after {
			sel.Select.Filter.Add(stmt.FilterOf(offsetFieldFilter(q.OrderBy[i], v)))
		}
	case len(after) == 1:
		sel.Select.Filter.Add(stmt.FilterOf(offsetFieldFilter(q.OrderBy[0], after[0])))
	}

	q.Body = sel
}

// offsetFieldFilter builds the single-field inequality for one ORDER BY
// term's keyset cursor value: descending order walks backward (Lt), every
// other case walks forward (Gt).
func offsetFieldFilter(order stmt.OrderOption, value stmt.Expr) stmt.Expr {
	if order.Direction == stmt.Desc {
		return stmt.BinOp(stmt.OpLt, order.Expr, value)
	}
	return stmt.BinOp(stmt.OpGt, order.Expr, value)
}
