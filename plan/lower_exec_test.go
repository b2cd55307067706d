package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-orm/lattice/exec"
	"github.com/lattice-orm/lattice/value"
)

func TestToExecPlanWiresVarsInOrder(t *testing.T) {
	g := &Graph{}
	keys := g.Add(OpConst{Rows: []value.Value{value.Int(1)}, Type: value.Unknown})
	fetch := g.Add(OpGetByKey{Keys: keys, Table: 1, Columns: []value.ColumnID{{Table: 1, Index: 0}}})

	plan, err := ToExecPlan(Compile(g, fetch), true)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 2)
	require.NotNil(t, plan.Returning)

	setVar, ok := plan.Actions[0].(exec.SetVar)
	require.True(t, ok)
	getByKey, ok := plan.Actions[1].(exec.GetByKey)
	require.True(t, ok)

	assert.Equal(t, setVar.Output.Var, getByKey.Input)
	assert.Equal(t, getByKey.Output.Var, *plan.Returning)
}

func TestToExecPlanSharedDependencyGetsCombinedUseCount(t *testing.T) {
	g := &Graph{}
	parent := g.Add(OpConst{Rows: []value.Value{value.Int(1)}, Type: value.Unknown})
	childA := g.Add(OpProject{Input: parent})
	merge := g.Add(OpNestedMerge{
		Parent:   parent,
		Children: []ChildSpec{{Input: childA}, {Input: parent}},
	})

	plan, err := ToExecPlan(Compile(g, merge), true)
	require.NoError(t, err)

	setVar := plan.Actions[0].(exec.SetVar)
	assert.Equal(t, 3, setVar.Output.NumUses)
}

func TestToExecPlanWithoutReturningLeavesNilSlot(t *testing.T) {
	g := &Graph{}
	node := g.Add(OpConst{Rows: []value.Value{value.Int(1)}, Type: value.Unknown})

	plan, err := ToExecPlan(Compile(g, node), false)
	require.NoError(t, err)
	assert.Nil(t, plan.Returning)
}
