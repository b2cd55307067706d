package plan

import (
	"fmt"

	"github.com/lattice-orm/lattice/exec"
	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

// PlanUpdate simplifies and plans a model-level Update. A filter that
// resolves to an exact primary-key match and carries no Condition (or whose
// driver natively reports ConditionalUpdateReturning) becomes a single
// OpUpdateByKey; a plain filter plans a preliminary key lookup feeding
// OpUpdateByKey; a Condition the driver can't check atomically on anything
// but an exact single-key match falls back to OpReadModifyWrite.
func (p *Planner) PlanUpdate(upd *stmt.Update) (*exec.Plan, error) {
	model := upd.Target.Model
	p.simplifier.Statement(upd)
	upd = p.lowerer.Update(upd)

	table := p.schema.MappingFor(model).Table
	pk := pkColumns(p.schema, model)
	filter := upd.FilterExpr.Expr()
	eq, residual := equalityMap(filter)
	exact := allCovered(pk, eq)

	needsRMW := upd.Condition.IsSome() && !p.capability.ConditionalUpdateReturning
	if needsRMW {
		if !exact {
			return nil, fmt.Errorf("plan: conditional update over a non-key filter requires a driver with ConditionalUpdateReturning")
		}
		if upd.Returning != nil {
			return nil, fmt.Errorf("plan: conditional update fallback cannot also return row values")
		}
		perCol := make([]value.Value, len(pk))
		for i, c := range pk {
			perCol[i] = eq[c]
		}
		return p.planReadModifyWrite(table, pk, perCol, upd.Assignments, upd.Condition.Expr(), stmt.AndFromVec(residual))
	}

	g := &Graph{}
	op := OpUpdateByKey{
		Table: table, Assignments: upd.Assignments,
		Filter: stmt.AndFromVec(residual), Condition: upd.Condition.Expr(),
		WithReturning: upd.Returning != nil,
	}

	if exact {
		perCol := make([]value.Value, len(pk))
		for i, c := range pk {
			perCol[i] = eq[c]
		}
		op.Keys = []value.Value{compositeKey(perCol)}
	} else {
		keysNode, err := p.planRowSource(g, model, filter, pk, fallbackQuery(table, filter, pk))
		if err != nil {
			return nil, err
		}
		op.Input = &keysNode
		op.Filter = stmt.True
	}

	node := g.Add(op)
	return ToExecPlan(Compile(g, node), upd.Returning != nil)
}

// PlanDelete simplifies and plans a model-level Delete: a preliminary key
// lookup (the narrowest access path planRowSource can find) feeds a single
// OpDeleteByKey.
func (p *Planner) PlanDelete(del *stmt.Delete) (*exec.Plan, error) {
	model := del.From.Model
	p.simplifier.Statement(del)
	del = p.lowerer.Delete(del)

	table := p.schema.MappingFor(model).Table
	pk := pkColumns(p.schema, model)
	filter := del.FilterExpr.Expr()

	g := &Graph{}
	keysNode, err := p.planRowSource(g, model, filter, pk, fallbackQuery(table, filter, pk))
	if err != nil {
		return nil, err
	}
	node := g.Add(OpDeleteByKey{Input: keysNode, Table: table, Filter: stmt.True})
	return ToExecPlan(Compile(g, node), del.Returning != nil)
}

// planReadModifyWrite builds the non-atomic fallback for a conditional
// single-row update. Read is a count-aggregate pair over the targeted
// rows — `SELECT COUNT(*), COUNT(CASE WHEN condition THEN 1 END) WHERE
// filter` — so it always returns exactly one (matched, satisfying) row no
// matter how many rows the filter hit, including none at all: a missing
// target row reads as (0, 0), the counts agree, and the Write becomes a
// benign zero-row no-op rather than a failure. Write is the same
// assignment applied once Read has confirmed the counts agree.
func (p *Planner) planReadModifyWrite(table value.TableID, pk []value.ColumnID, perColumnValues []value.Value, assignments []stmt.Assignment, condition, residual stmt.Expr) (*exec.Plan, error) {
	pkFilter := pkEqualityExpr(pk, perColumnValues)
	rowFilter := stmt.And(pkFilter, residual)

	read := &stmt.Query{Body: stmt.ExprSetSelect{Select: stmt.Select{
		Source: stmt.Source{IsTable: true, Table: table},
		Filter: stmt.FilterOf(rowFilter),
		Returning: stmt.NewReturningExpr(stmt.ExprRecordNode{Fields: []stmt.Expr{
			stmt.ExprFunc{Func: stmt.FuncCountIf},
			stmt.ExprFunc{Func: stmt.FuncCountIf, Args: []stmt.Expr{condition}},
		}}),
	}}}

	write := &stmt.Update{
		Target:      stmt.Source{IsTable: true, Table: table},
		Assignments: assignments,
	}
	write.FilterExpr.Set(rowFilter)

	g := &Graph{}
	node := g.Add(OpReadModifyWrite{Read: read, Write: write})
	return ToExecPlan(Compile(g, node), false)
}

// fallbackQuery wraps a lowered table-level filter as the Select body
// planRowSource's ExecStatement fallback executes verbatim when no
// key/index access path covers it.
func fallbackQuery(table value.TableID, filter stmt.Expr, columns []value.ColumnID) *stmt.Query {
	q := &stmt.Query{Body: stmt.ExprSetSelect{Select: stmt.Select{
		Source:    stmt.Source{IsTable: true, Table: table},
		Returning: stmt.NewReturningExpr(rowReturning(columns)),
	}}}
	sel := q.Body.(stmt.ExprSetSelect)
	sel.Select.Filter.Set(filter)
	q.Body = sel
	return q
}
