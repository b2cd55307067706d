package exec

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-orm/lattice/driver"
	"github.com/lattice-orm/lattice/schema"
	"github.com/lattice-orm/lattice/schema/db"
	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

// fakeDriver answers GetByKey by looking each requested key up in a static
// table, keyed by its first column; every other Operation is unused by
// these tests and panics if reached.
type fakeDriver struct {
	rowsByKey map[int64]value.Value
}

func (f *fakeDriver) Capability() schema.Capability { return schema.Capability{SQL: true} }

func (f *fakeDriver) Exec(ctx context.Context, dbSchema *db.Schema, op driver.Operation) (*driver.Response, error) {
	get, ok := op.(driver.GetByKey)
	if !ok {
		return nil, fmt.Errorf("fakeDriver: unsupported operation %T in this test", op)
	}
	var out []value.Value
	for _, k := range get.Keys {
		id, err := k.Int64()
		if err != nil {
			return nil, err
		}
		if row, ok := f.rowsByKey[id]; ok {
			out = append(out, row)
		}
	}
	return &driver.Response{Rows: driver.ValueRows(stmt.ValueStreamFromSlice(value.Unknown, out))}, nil
}

func (f *fakeDriver) Reset(ctx context.Context, dbSchema *db.Schema) error { return nil }
func (f *fakeDriver) Close(ctx context.Context) error                     { return nil }

func TestExecutorGetByKey(t *testing.T) {
	drv := &fakeDriver{rowsByKey: map[int64]value.Value{
		1: value.Record(value.Int(1), value.String("ada")),
		2: value.Record(value.Int(2), value.String("grace")),
	}}
	ex := New(drv, &db.Schema{})

	decls := &VarDecls{}
	keysVar := decls.Register(value.Unknown)
	outVar := decls.Register(value.Unknown)
	vars := decls.Build()

	plan := &Plan{
		Vars: vars,
		Actions: []Action{
			SetVar{Output: Output{Var: keysVar, NumUses: 1}, Rows: []value.Value{value.Int(1), value.Int(2)}},
			GetByKey{
				Input:  keysVar,
				Output: Output{Var: outVar, NumUses: 1},
				Table:  0,
				Columns: []value.ColumnID{{Table: 0, Index: 0}, {Table: 0, Index: 1}},
			},
		},
		Returning: &outVar,
	}

	out, err := ex.Run(context.Background(), plan)
	require.NoError(t, err)
	rows, err := out.Collect()
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestExecutorNestedMergeCombinesParentAndChildren(t *testing.T) {
	ex := New(&fakeDriver{}, &db.Schema{})

	decls := &VarDecls{}
	parentVar := decls.Register(value.Unknown)
	childVar := decls.Register(value.Unknown)
	outVar := decls.Register(value.Unknown)
	vars := decls.Build()

	parentRows := []value.Value{
		value.Record(value.Int(1), value.String("ada")),
		value.Record(value.Int(2), value.String("grace")),
	}
	childRows := []value.Value{
		value.Record(value.Int(10), value.Int(1)),
		value.Record(value.Int(11), value.Int(1)),
		value.Record(value.Int(12), value.Int(2)),
	}

	plan := &Plan{
		Vars: vars,
		Actions: []Action{
			SetVar{Output: Output{Var: parentVar, NumUses: 1}, Rows: parentRows},
			SetVar{Output: Output{Var: childVar, NumUses: 1}, Rows: childRows},
			NestedMerge{
				Parent: parentVar,
				Children: []ChildMerge{{
					Input:     childVar,
					ParentKey: []value.Projection{value.FieldProjection(0)},
					ChildKey:  []value.Projection{value.FieldProjection(1)},
				}},
				Output:     Output{Var: outVar, NumUses: 1},
				Projection: stmt.ExprReference{Kind: stmt.RefAncestorModel, Depth: 0},
			},
		},
		Returning: &outVar,
	}

	out, err := ex.Run(context.Background(), plan)
	require.NoError(t, err)
	merged, err := out.Collect()
	require.NoError(t, err)
	require.Len(t, merged, 2)

	adaMatches, ok := value.Project(merged[0], value.FieldProjection(1))
	require.True(t, ok)
	assert.Len(t, adaMatches.AsList(), 2)

	graceMatches, ok := value.Project(merged[1], value.FieldProjection(1))
	require.True(t, ok)
	assert.Len(t, graceMatches.AsList(), 1)
}
