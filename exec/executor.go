package exec

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/lattice-orm/lattice/driver"
	"github.com/lattice-orm/lattice/schema/db"
	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

// Plan is a finished action sequence plus the variable slots it threads
// values through, produced by plan.ToExecPlan. Returning names the
// slot (if any) whose rows are the statement's overall result.
type Plan struct {
	Vars      *VarStore
	Actions   []Action
	Returning *VarID
}

// Executor runs one Plan's actions in order against a Driver.
type Executor struct {
	driver driver.Driver
	schema *db.Schema
}

// New returns an Executor issuing operations against drv for the given
// storage schema.
func New(drv driver.Driver, s *db.Schema) *Executor {
	return &Executor{driver: drv, schema: s}
}

// Run executes every action in p in order and returns the final
// ValueStream named by p.Returning, or an empty stream if the statement
// has no Returning clause.
func (ex *Executor) Run(ctx context.Context, p *Plan) (*stmt.ValueStream, error) {
	for _, a := range p.Actions {
		if err := ex.step(ctx, p.Vars, a); err != nil {
			return nil, err
		}
	}
	if p.Returning == nil {
		return stmt.ValueStreamFromSlice(value.Unknown, nil), nil
	}
	rows, err := p.Vars.Load(*p.Returning)
	if err != nil {
		return nil, err
	}
	if rows.Kind != driver.RowsValues {
		return stmt.ValueStreamFromSlice(value.Unknown, nil), nil
	}
	return rows.Values, nil
}

func (ex *Executor) step(ctx context.Context, vars *VarStore, a Action) error {
	switch action := a.(type) {
	case SetVar:
		return ex.execSetVar(vars, action)
	case GetByKey:
		return ex.execGetByKey(ctx, vars, action)
	case FindPkByIndex:
		return ex.execFindPkByIndex(ctx, vars, action)
	case QueryPk:
		return ex.execQueryPk(ctx, vars, action)
	case Filter:
		return ex.execFilter(vars, action)
	case Project:
		return ex.execProject(vars, action)
	case NestedMerge:
		return ex.execNestedMerge(vars, action)
	case UpdateByKey:
		return ex.execUpdateByKey(ctx, vars, action)
	case DeleteByKey:
		return ex.execDeleteByKey(ctx, vars, action)
	case Insert:
		return ex.execInsert(ctx, vars, action)
	case ExecStatement:
		return ex.execExecStatement(ctx, vars, action)
	case ReadModifyWrite:
		return ex.execReadModifyWrite(ctx, action)
	default:
		return fmt.Errorf("exec: unhandled action %T", a)
	}
}

func (ex *Executor) execSetVar(vars *VarStore, a SetVar) error {
	vars.Store(a.Output.Var, a.Output.NumUses, driver.ValueRows(stmt.ValueStreamFromSlice(value.Unknown, a.Rows)))
	return nil
}

func (ex *Executor) execGetByKey(ctx context.Context, vars *VarStore, a GetByKey) error {
	keys, err := vars.collectValues(a.Input)
	if err != nil {
		return err
	}
	rows, err := ex.lookup(ctx, keys, func() (driver.Operation, error) {
		return driver.GetByKey{Table: a.Table, Select: a.Columns, Keys: keys}, nil
	})
	if err != nil {
		return err
	}
	vars.Store(a.Output.Var, a.Output.NumUses, rows)
	return nil
}

func (ex *Executor) execFindPkByIndex(ctx context.Context, vars *VarStore, a FindPkByIndex) error {
	keys, err := vars.collectValues(a.Input)
	if err != nil {
		return err
	}
	rows, err := ex.lookup(ctx, keys, func() (driver.Operation, error) {
		return driver.FindPkByIndex{Table: a.Table, Index: a.Index, Select: a.Columns, Keys: keys, Filter: a.Filter}, nil
	})
	if err != nil {
		return err
	}
	vars.Store(a.Output.Var, a.Output.NumUses, rows)
	return nil
}

// lookup issues op against the driver unless keys is empty, in which case
// it short-circuits to an empty result without a round trip.
func (ex *Executor) lookup(ctx context.Context, keys []value.Value, op func() (driver.Operation, error)) (driver.Rows, error) {
	if len(keys) == 0 {
		return driver.EmptyValueRows(value.Unknown), nil
	}
	o, err := op()
	if err != nil {
		return driver.Rows{}, err
	}
	res, err := ex.driver.Exec(ctx, ex.schema, o)
	if err != nil {
		return driver.Rows{}, err
	}
	return res.Rows, nil
}

func (ex *Executor) execQueryPk(ctx context.Context, vars *VarStore, a QueryPk) error {
	res, err := ex.driver.Exec(ctx, ex.schema, driver.QueryPk{
		Table: a.Table, Select: a.Columns, PKFilter: a.PKFilter, Filter: a.Filter,
	})
	if err != nil {
		return err
	}
	if res.Rows.Kind != driver.RowsValues {
		return ErrInvalidResult
	}
	stream := projectAndFilter(res.Rows.Values, a.Project, a.PostFilter)
	vars.Store(a.Output.Var, a.Output.NumUses, driver.ValueRows(stream))
	return nil
}

func (ex *Executor) execFilter(vars *VarStore, a Filter) error {
	rows, err := vars.Load(a.Input)
	if err != nil {
		return err
	}
	if rows.Kind != driver.RowsValues {
		return ErrInvalidResult
	}
	stream := projectAndFilter(rows.Values, nil, a.Filter)
	vars.Store(a.Output.Var, a.Output.NumUses, driver.ValueRows(stream))
	return nil
}

func (ex *Executor) execProject(vars *VarStore, a Project) error {
	rows, err := vars.Load(a.Input)
	if err != nil {
		return err
	}
	if rows.Kind != driver.RowsValues {
		return ErrInvalidResult
	}
	stream := projectAndFilter(rows.Values, a.Projection, nil)
	vars.Store(a.Output.Var, a.Output.NumUses, driver.ValueRows(stream))
	return nil
}

// projectAndFilter lazily wraps in with an optional in-memory row filter
// and/or projection.
func projectAndFilter(in *stmt.ValueStream, project, filter stmt.Expr) *stmt.ValueStream {
	if project == nil && filter == nil {
		return in
	}
	return stmt.NewValueStream(in.Type(), func() (value.Value, error, bool) {
		for {
			v, err, ok := in.Next()
			if err != nil || !ok {
				return value.Value{}, err, false
			}
			if filter != nil {
				keep, ferr := stmt.EvalBool(filter, stmt.Input{Row: v})
				if ferr != nil {
					return value.Value{}, ferr, false
				}
				if !keep {
					continue
				}
			}
			if project != nil {
				pv, perr := stmt.Eval(project, stmt.Input{Row: v})
				if perr != nil {
					return value.Value{}, perr, false
				}
				return pv, nil, true
			}
			return v, nil, true
		}
	})
}

// execNestedMerge loads the parent stream and every child stream upfront,
// hash-indexes each child by its join key, then probes once per parent row
// and evaluates Projection over [parent, matches...] to build the merged
// row. Each child covers one relation hop; the Planner builds no deeper
// NestedMerge levels, so child rows carry no preloads of their own.
func (ex *Executor) execNestedMerge(vars *VarStore, a NestedMerge) error {
	// The parent stream and every preloaded child stream live in disjoint
	// VarStore slots, so loading them concurrently is safe: an
	// errgroup.Group fans the loads out and reports the first error.
	var parentRows []value.Value
	childIndices := make([]*stmt.HashIndex, len(a.Children))

	g := new(errgroup.Group)
	g.Go(func() error {
		rows, err := vars.collectValues(a.Parent)
		if err != nil {
			return err
		}
		parentRows = rows
		return nil
	})
	for i, c := range a.Children {
		i, c := i, c
		g.Go(func() error {
			childRows, err := vars.collectValues(c.Input)
			if err != nil {
				return err
			}
			childIndices[i] = stmt.NewHashIndex(childRows, c.ChildKey)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	merged := make([]value.Value, len(parentRows))
	for i, parent := range parentRows {
		fields := make([]value.Value, 1+len(a.Children))
		fields[0] = parent
		for j, c := range a.Children {
			key := make([]value.Value, len(c.ParentKey))
			for k, p := range c.ParentKey {
				v, ok := value.Project(parent, p)
				if !ok {
					return fmt.Errorf("exec: NestedMerge parent key projection out of range")
				}
				key[k] = v
			}
			matches, _ := childIndices[j].Find(key)
			fields[1+j] = value.List(matches...)
		}
		row, err := stmt.Eval(a.Projection, stmt.Input{Row: value.Record(fields...)})
		if err != nil {
			return err
		}
		merged[i] = row
	}

	vars.Store(a.Output.Var, a.Output.NumUses, driver.ValueRows(stmt.ValueStreamFromSlice(value.Unknown, merged)))
	return nil
}

func (ex *Executor) execUpdateByKey(ctx context.Context, vars *VarStore, a UpdateByKey) error {
	keys := a.Keys
	if a.Input != nil {
		loaded, err := vars.collectValues(*a.Input)
		if err != nil {
			return err
		}
		keys = loaded
	}

	if len(keys) == 0 {
		if a.Output != nil {
			vars.Store(a.Output.Var, a.Output.NumUses, driver.EmptyValueRows(value.Unknown))
		}
		return nil
	}

	res, err := ex.driver.Exec(ctx, ex.schema, driver.UpdateByKey{
		Table: a.Table, Keys: keys, Assignments: a.Assignments,
		Filter: a.Filter, Condition: a.Condition, Returning: a.Output != nil,
	})
	if err != nil {
		return err
	}
	if a.Output != nil {
		if res.Rows.Kind != driver.RowsValues {
			return ErrInvalidResult
		}
		vars.Store(a.Output.Var, a.Output.NumUses, res.Rows)
	}
	return nil
}

func (ex *Executor) execDeleteByKey(ctx context.Context, vars *VarStore, a DeleteByKey) error {
	keys, err := vars.collectValues(a.Input)
	if err != nil {
		return err
	}
	rows := driver.CountRows(0)
	if len(keys) > 0 {
		res, err := ex.driver.Exec(ctx, ex.schema, driver.DeleteByKey{Table: a.Table, Keys: keys, Filter: a.Filter})
		if err != nil {
			return err
		}
		rows = res.Rows
	}
	vars.Store(a.Output.Var, a.Output.NumUses, rows)
	return nil
}

func (ex *Executor) execInsert(ctx context.Context, vars *VarStore, a Insert) error {
	res, err := ex.driver.Exec(ctx, ex.schema, driver.Insert{Stmt: a.Stmt})
	if err != nil {
		return err
	}
	vars.Store(a.Output.Var, a.Output.NumUses, res.Rows)
	return nil
}

func (ex *Executor) execExecStatement(ctx context.Context, vars *VarStore, a ExecStatement) error {
	s := a.Stmt
	if len(a.Input) > 0 {
		args := make([]value.Value, len(a.Input))
		for i, v := range a.Input {
			collected, err := vars.collectValues(v)
			if err != nil {
				return err
			}
			args[i] = value.List(collected...)
		}
		s = stmt.SubstituteStatement(s, args)
	}

	ret := a.Ret
	if a.ConditionalUpdateWithNoReturning {
		ret = []value.Type{value.Scalar(value.KindI64), value.Scalar(value.KindI64)}
	}

	res, err := ex.driver.Exec(ctx, ex.schema, driver.QuerySQL{Stmt: s, Ret: ret})
	if err != nil {
		return err
	}

	rows := res.Rows
	if a.ConditionalUpdateWithNoReturning {
		if rows.Kind != driver.RowsValues {
			return ErrInvalidResult
		}
		collected, err := rows.Values.Collect()
		if err != nil {
			return err
		}
		if len(collected) != 1 || len(collected[0].AsRecord()) != 2 {
			return ErrInvalidResult
		}
		record := collected[0].AsRecord()
		if !record[0].Equal(record[1]) {
			return ErrConditionFailed
		}
		rows = driver.CountRows(uint64(record[0].AsInt()))
	}

	vars.Store(a.Output.Var, a.Output.NumUses, rows)
	return nil
}

// execReadModifyWrite runs the non-atomic read-check-write fallback used
// when a backend lacks ConditionalUpdateReturning: start a transaction,
// run Read — a count-aggregate query yielding exactly one
// (count_matching_filter, count_matching_filter_and_condition) record —
// bail out with ErrConditionFailed if the counts differ, otherwise run
// Write and commit. A missing target row reads as (0, 0): the counts
// agree, so the Write proceeds as a zero-row no-op and the update reports
// zero affected rows rather than failing. A Read response of any other
// shape is a driver bug (aggregates cannot return zero or several rows).
func (ex *Executor) execReadModifyWrite(ctx context.Context, a ReadModifyWrite) error {
	if _, err := ex.driver.Exec(ctx, ex.schema, driver.Transaction{Op: driver.TxStart}); err != nil {
		return err
	}

	readRes, err := ex.driver.Exec(ctx, ex.schema, driver.QuerySQL{
		Stmt: a.Read,
		Ret:  []value.Type{value.Scalar(value.KindI64), value.Scalar(value.KindI64)},
	})
	if err != nil {
		_, _ = ex.driver.Exec(ctx, ex.schema, driver.Transaction{Op: driver.TxRollback})
		return err
	}
	if readRes.Rows.Kind != driver.RowsValues {
		_, _ = ex.driver.Exec(ctx, ex.schema, driver.Transaction{Op: driver.TxRollback})
		return ErrInvalidResult
	}
	rows, err := readRes.Rows.Values.Collect()
	if err != nil {
		return err
	}
	if len(rows) != 1 || len(rows[0].AsRecord()) != 2 {
		_, _ = ex.driver.Exec(ctx, ex.schema, driver.Transaction{Op: driver.TxRollback})
		return ErrInvalidResult
	}
	record := rows[0].AsRecord()
	if !record[0].Equal(record[1]) {
		_, _ = ex.driver.Exec(ctx, ex.schema, driver.Transaction{Op: driver.TxRollback})
		return ErrConditionFailed
	}

	writeRes, err := ex.driver.Exec(ctx, ex.schema, driver.QuerySQL{Stmt: a.Write})
	if err != nil {
		_, _ = ex.driver.Exec(ctx, ex.schema, driver.Transaction{Op: driver.TxRollback})
		return err
	}
	// Only the response shape is checked, not the affected-row count:
	// MySQL reports rows *changed*, not rows matched, so an assignment
	// writing back the current value legitimately affects zero rows.
	if writeRes.Rows.Kind != driver.RowsCount {
		_, _ = ex.driver.Exec(ctx, ex.schema, driver.Transaction{Op: driver.TxRollback})
		return ErrInvalidResult
	}

	_, err = ex.driver.Exec(ctx, ex.schema, driver.Transaction{Op: driver.TxCommit})
	return err
}
