package stmt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

func TestPath(t *testing.T) {
	t.Run("identity path is empty and lowers to an ancestor ref", func(t *testing.T) {
		p := stmt.PathForModel(1)
		assert.True(t, p.IsEmpty())
		assert.Equal(t, stmt.AncestorModelRef(0), p.IntoExpr())
	})

	t.Run("single field path lowers to a self-field ref", func(t *testing.T) {
		p := stmt.PathForField(1, 2)
		assert.Equal(t, 1, p.Len())
		ref, ok := p.IntoExpr().(stmt.ExprReference)
		require.True(t, ok)
		assert.Equal(t, stmt.RefSelfField, ref.Kind)
		assert.Equal(t, 2, ref.Field.Index)
	})

	t.Run("multi-step path projects past the first self-field ref", func(t *testing.T) {
		p := stmt.Path{Root: 1, Projection: value.Projection{{Field: 0}, {Field: 1}}}
		proj, ok := p.IntoExpr().(stmt.ExprProject)
		require.True(t, ok)
		assert.Equal(t, value.Projection{{Field: 1}}, proj.Projection)
	})

	t.Run("chain appends steps", func(t *testing.T) {
		a := stmt.PathForField(1, 0)
		b := stmt.PathForField(1, 2)
		chained := a.Chain(b)
		assert.Equal(t, 2, chained.Len())
	})
}

func TestInsertTarget(t *testing.T) {
	t.Run("model target reports its own model id", func(t *testing.T) {
		tgt := stmt.NewInsertModel(3)
		assert.Equal(t, value.ModelID(3), tgt.ModelID())
	})

	t.Run("add constraint promotes model to scope", func(t *testing.T) {
		tgt := stmt.NewInsertModel(3)
		tgt.AddConstraint(stmt.Eq(stmt.Arg(0), stmt.Value(value.Int(1))))
		assert.Equal(t, stmt.InsertScope, tgt.Kind)
		assert.Equal(t, value.ModelID(3), tgt.ModelID())
	})

	t.Run("table target has no model id", func(t *testing.T) {
		tgt := stmt.NewInsertTable(stmt.InsertTable{Table: 1})
		assert.Panics(t, func() { tgt.ModelID() })
	})
}

func TestReturning(t *testing.T) {
	r := stmt.NewReturningModel(stmt.PathForModel(1))
	assert.True(t, r.IsModel())
	assert.False(t, r.IsChanged())

	r2 := stmt.NewReturningChanged()
	assert.True(t, r2.IsChanged())

	r3 := stmt.NewReturningExpr(stmt.True)
	assert.True(t, r3.IsExpr())
}
