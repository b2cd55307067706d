package plan

import (
	"fmt"

	"github.com/lattice-orm/lattice/exec"
	"github.com/lattice-orm/lattice/value"
)

// ToExecPlan lowers a compiled LogicalPlan into an exec.Plan: each node in
// execution order becomes an exec.Action naming input/output VarIDs, with
// Output.NumUses taken from the node's computed reference count (defaulting
// to one for the completion node itself, which Compile never counts as
// anyone's dependency). withReturning controls whether the completion
// node's result is named as the plan's Returning slot; it is false for a
// statement whose caller only wants the side effect (an Update/Delete with
// no Returning clause).
func ToExecPlan(lp *LogicalPlan, withReturning bool) (*exec.Plan, error) {
	var decls exec.VarDecls
	varOf := make(map[NodeID]exec.VarID, len(lp.Order))
	actions := make([]exec.Action, 0, len(lp.Order))

	uses := func(id NodeID) int {
		if n := lp.NumUses[id]; n > 0 {
			return n
		}
		return 1
	}

	input := func(id NodeID) exec.VarID {
		v, ok := varOf[id]
		if !ok {
			panic(fmt.Sprintf("plan: node %d used before it was lowered", id))
		}
		return v
	}

	for _, id := range lp.Order {
		switch o := lp.Graph.Op(id).(type) {
		case OpConst:
			v := decls.Register(o.Type)
			varOf[id] = v
			actions = append(actions, exec.SetVar{Output: exec.Output{Var: v, NumUses: uses(id)}, Rows: o.Rows})

		case OpGetByKey:
			v := decls.Register(value.Unknown)
			varOf[id] = v
			actions = append(actions, exec.GetByKey{
				Input: input(o.Keys), Output: exec.Output{Var: v, NumUses: uses(id)},
				Table: o.Table, Columns: o.Columns,
			})

		case OpFindPkByIndex:
			v := decls.Register(value.Unknown)
			varOf[id] = v
			actions = append(actions, exec.FindPkByIndex{
				Input: input(o.Keys), Output: exec.Output{Var: v, NumUses: uses(id)},
				Table: o.Table, Index: o.Index, Columns: o.Columns, Filter: o.Filter,
			})

		case OpQueryPk:
			v := decls.Register(value.Unknown)
			varOf[id] = v
			actions = append(actions, exec.QueryPk{
				Output: exec.Output{Var: v, NumUses: uses(id)},
				Table:  o.Table, Columns: o.Columns,
				PKFilter: o.PKFilter, Filter: o.Filter, PostFilter: o.PostFilter, Project: o.Project,
			})

		case OpProject:
			v := decls.Register(value.Unknown)
			varOf[id] = v
			actions = append(actions, exec.Project{
				Input: input(o.Input), Output: exec.Output{Var: v, NumUses: uses(id)}, Projection: o.Projection,
			})

		case OpFilter:
			v := decls.Register(value.Unknown)
			varOf[id] = v
			actions = append(actions, exec.Filter{
				Input: input(o.Input), Output: exec.Output{Var: v, NumUses: uses(id)}, Filter: o.Filter,
			})

		case OpNestedMerge:
			v := decls.Register(value.Unknown)
			varOf[id] = v
			children := make([]exec.ChildMerge, len(o.Children))
			for i, c := range o.Children {
				children[i] = exec.ChildMerge{Input: input(c.Input), ParentKey: c.ParentKey, ChildKey: c.ChildKey}
			}
			actions = append(actions, exec.NestedMerge{
				Parent: input(o.Parent), Children: children,
				Output: exec.Output{Var: v, NumUses: uses(id)}, Projection: o.Projection,
			})

		case OpUpdateByKey:
			var out *exec.Output
			var inputVar *exec.VarID
			if o.Input != nil {
				iv := input(*o.Input)
				inputVar = &iv
			}
			if o.WithReturning {
				v := decls.Register(value.Unknown)
				varOf[id] = v
				out = &exec.Output{Var: v, NumUses: uses(id)}
			}
			actions = append(actions, exec.UpdateByKey{
				Input: inputVar, Keys: o.Keys, Output: out,
				Table: o.Table, Assignments: o.Assignments, Filter: o.Filter, Condition: o.Condition,
			})

		case OpDeleteByKey:
			v := decls.Register(value.Unknown)
			varOf[id] = v
			actions = append(actions, exec.DeleteByKey{
				Input: input(o.Input), Output: exec.Output{Var: v, NumUses: uses(id)}, Table: o.Table, Filter: o.Filter,
			})

		case OpInsert:
			v := decls.Register(value.Unknown)
			varOf[id] = v
			actions = append(actions, exec.Insert{
				Output: exec.Output{Var: v, NumUses: uses(id)}, Stmt: o.Stmt,
			})

		case OpExecStatement:
			inputs := make([]exec.VarID, len(o.Input))
			for i, dep := range o.Input {
				inputs[i] = input(dep)
			}
			v := decls.Register(value.Unknown)
			varOf[id] = v
			actions = append(actions, exec.ExecStatement{
				Input: inputs, Output: exec.Output{Var: v, NumUses: uses(id)},
				Stmt: o.Stmt, Ret: o.Ret, ConditionalUpdateWithNoReturning: o.ConditionalUpdateWithNoReturning,
			})

		case OpReadModifyWrite:
			actions = append(actions, exec.ReadModifyWrite{Read: o.Read, Write: o.Write})

		default:
			return nil, fmt.Errorf("plan: unhandled operation %T", lp.Graph.Op(id))
		}
	}

	p := &exec.Plan{Vars: decls.Build(), Actions: actions}
	if withReturning {
		v, ok := varOf[lp.Completion]
		if !ok {
			return nil, fmt.Errorf("plan: completion node produced no variable")
		}
		p.Returning = &v
	}
	return p, nil
}
