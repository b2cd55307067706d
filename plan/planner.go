package plan

import (
	"github.com/lattice-orm/lattice/exec"
	"github.com/lattice-orm/lattice/lower"
	"github.com/lattice-orm/lattice/schema"
	"github.com/lattice-orm/lattice/simplify"
	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

// Planner compiles a model-level statement, already run through the
// Simplifier, into an executable exec.Plan. It owns the Lowerer (model to
// table-level translation) and the selection/preload/conditional-update
// logic in select.go/mutate.go, then hands the resulting LogicalPlan to
// ToExecPlan.
type Planner struct {
	schema     *schema.Schema
	capability schema.Capability
	simplifier *simplify.Simplifier
	lowerer    *lower.Lowerer
}

// New returns a Planner targeting s under the given driver capability.
func New(s *schema.Schema, capability schema.Capability) *Planner {
	return &Planner{
		schema:     s,
		capability: capability,
		simplifier: simplify.New(s),
		lowerer:    lower.New(s, capability.SQL),
	}
}

// PlanQuery simplifies and plans a model-level Query, returning an
// exec.Plan whose Returning slot yields the statement's result rows.
func (p *Planner) PlanQuery(model value.ModelID, q *stmt.Query) (*exec.Plan, error) {
	q = p.simplifier.Query(q)
	q = p.lowerer.Query(q)

	g := &Graph{}
	node, err := p.planSelect(g, model, q)
	if err != nil {
		return nil, err
	}
	return ToExecPlan(Compile(g, node), true)
}

// PlanInsert simplifies and plans a model-level Insert. SQL backends get an
// ExecStatement (rendered as INSERT text, optionally with RETURNING); other
// backends get a structured Insert operation the driver applies row by row.
func (p *Planner) PlanInsert(ins *stmt.Insert) (*exec.Plan, error) {
	p.simplifier.Statement(ins)
	ins = p.lowerer.Insert(ins)

	g := &Graph{}
	ret, retTy := returningTypes(ins.Returning)
	var node NodeID
	if p.capability.SQL {
		node = g.Add(OpExecStatement{Stmt: ins, Ret: ret})
	} else {
		node = g.Add(OpInsert{Stmt: ins})
	}
	return ToExecPlan(Compile(g, node), retTy)
}

// returningTypes reports the Ret type list an ExecStatement needs for r,
// and whether the resulting exec.Plan should expose a Returning slot at
// all (false for an absent/ReturningChanged clause, which yields a plain
// row count the caller doesn't read back as values).
func returningTypes(r *stmt.Returning) ([]value.Type, bool) {
	if r == nil || r.Kind == stmt.ReturningChanged {
		return nil, false
	}
	if rec, ok := r.Expr.(stmt.ExprRecordNode); ok {
		return retTypesForExprs(rec.Fields), true
	}
	return []value.Type{value.Unknown}, true
}

func retTypesForExprs(fields []stmt.Expr) []value.Type {
	out := make([]value.Type, len(fields))
	for i := range fields {
		out[i] = value.Unknown
	}
	return out
}
