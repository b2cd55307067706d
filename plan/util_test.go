package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

func col(table value.TableID, i int) value.ColumnID {
	return value.ColumnID{Table: table, Index: i}
}

func TestConjuncts(t *testing.T) {
	assert.Empty(t, conjuncts(stmt.True))
	assert.Empty(t, conjuncts(nil))

	single := stmt.Eq(stmt.ColumnRef(col(1, 0)), stmt.Value(value.Int(1)))
	assert.Equal(t, []stmt.Expr{single}, conjuncts(single))

	a := stmt.Eq(stmt.ColumnRef(col(1, 0)), stmt.Value(value.Int(1)))
	b := stmt.Eq(stmt.ColumnRef(col(1, 1)), stmt.Value(value.Int(2)))
	assert.ElementsMatch(t, []stmt.Expr{a, b}, conjuncts(stmt.And(a, b)))
}

func TestEqualityMap(t *testing.T) {
	c0, c1 := col(1, 0), col(1, 1)
	filter := stmt.And(
		stmt.Eq(stmt.ColumnRef(c0), stmt.Value(value.Int(7))),
		stmt.Eq(stmt.Value(value.Int(9)), stmt.ColumnRef(c1)),
	)

	eq, residual := equalityMap(filter)
	require.Len(t, eq, 2)
	assert.True(t, eq[c0].Equal(value.Int(7)))
	assert.True(t, eq[c1].Equal(value.Int(9)))
	assert.Empty(t, residual)
}

func TestEqualityMapLeavesResidual(t *testing.T) {
	c0 := col(1, 0)
	notEq := stmt.ExprBinaryOp{Op: stmt.OpNe, LHS: stmt.ColumnRef(c0), RHS: stmt.Value(value.Int(5))}

	eq, residual := equalityMap(notEq)
	assert.Empty(t, eq)
	require.Len(t, residual, 1)
	assert.Equal(t, notEq, residual[0])
}

func TestInListColumn(t *testing.T) {
	c0 := col(1, 0)
	list := stmt.ExprListNode{Items: []stmt.Expr{stmt.Value(value.Int(1)), stmt.Value(value.Int(2))}}
	in := stmt.ExprInList{Expr: stmt.ColumnRef(c0), List: list}

	gotCol, gotList, ok := inListColumn(in)
	require.True(t, ok)
	assert.Equal(t, c0, gotCol)
	assert.Equal(t, list, gotList)

	_, _, ok = inListColumn(stmt.True)
	assert.False(t, ok)
}

func TestConstListValues(t *testing.T) {
	list := stmt.ExprListNode{Items: []stmt.Expr{stmt.Value(value.Int(1)), stmt.Value(value.Int(2))}}
	vals, ok := constListValues(list)
	require.True(t, ok)
	require.Len(t, vals, 2)
	assert.True(t, vals[0].Equal(value.Int(1)))
	assert.True(t, vals[1].Equal(value.Int(2)))

	_, ok = constListValues(stmt.ExprListNode{Items: []stmt.Expr{stmt.ColumnRef(col(1, 0))}})
	assert.False(t, ok)
}

func TestCompositeKey(t *testing.T) {
	single := compositeKey([]value.Value{value.Int(1)})
	assert.True(t, single.Equal(value.Int(1)))

	composite := compositeKey([]value.Value{value.Int(1), value.Int(2)})
	assert.True(t, composite.Equal(value.Record(value.Int(1), value.Int(2))))
}

func TestPkEqualityExpr(t *testing.T) {
	c0 := col(1, 0)
	single := pkEqualityExpr([]value.ColumnID{c0}, []value.Value{value.Int(3)})
	assert.Equal(t, stmt.Eq(stmt.ColumnRef(c0), stmt.Value(value.Int(3))), single)

	c1 := col(1, 1)
	composite := pkEqualityExpr([]value.ColumnID{c0, c1}, []value.Value{value.Int(3), value.Int(4)})
	and, ok := composite.(*stmt.ExprAnd)
	require.True(t, ok)
	assert.Len(t, and.Operands, 2)
}

func TestAllCovered(t *testing.T) {
	c0, c1 := col(1, 0), col(1, 1)
	eq := map[value.ColumnID]value.Value{c0: value.Int(1), c1: value.Int(2)}
	assert.True(t, allCovered([]value.ColumnID{c0, c1}, eq))
	assert.False(t, allCovered([]value.ColumnID{c0, col(1, 2)}, eq))
	assert.False(t, allCovered(nil, eq))
}

func TestMergeProjectionUnpacksWholeRow(t *testing.T) {
	c0, c1 := col(1, 0), col(1, 1)
	ret := stmt.ExprRecordNode{Fields: []stmt.Expr{stmt.ColumnRef(c0), stmt.ColumnRef(c1)}}

	got := mergeProjection(ret, 2)
	rec, ok := got.(stmt.ExprRecordNode)
	require.True(t, ok)
	require.Len(t, rec.Fields, 4)

	parentRef := stmt.SelfFieldRef(value.FieldID{Index: 0})
	assert.Equal(t, stmt.Project(parentRef, value.FieldProjection(0)), rec.Fields[0])
	assert.Equal(t, stmt.Project(parentRef, value.FieldProjection(1)), rec.Fields[1])
	assert.Equal(t, stmt.SelfFieldRef(value.FieldID{Index: 1}), rec.Fields[2])
	assert.Equal(t, stmt.SelfFieldRef(value.FieldID{Index: 2}), rec.Fields[3])
}

func TestMergeProjectionFallsBackForNonRecord(t *testing.T) {
	got := mergeProjection(stmt.AncestorModelRef(0), 1)
	rec, ok := got.(stmt.ExprRecordNode)
	require.True(t, ok)
	require.Len(t, rec.Fields, 2)
	assert.Equal(t, stmt.SelfFieldRef(value.FieldID{Index: 0}), rec.Fields[0])
	assert.Equal(t, stmt.SelfFieldRef(value.FieldID{Index: 1}), rec.Fields[1])
}
