package lower_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-orm/lattice/lower"
	"github.com/lattice-orm/lattice/schema"
	"github.com/lattice-orm/lattice/schema/app"
	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

func buildSchema(t *testing.T) *schema.Schema {
	t.Helper()
	b := schema.NewBuilder(schema.Capability{SQL: true, NativeAutoIncrement: true})
	b.AddModel(schema.ModelDescriptor{
		Name: "User",
		Fields: []schema.FieldDescriptor{
			{Name: "id", Ty: value.Scalar(value.KindI64), PrimaryKey: true, Auto: app.AutoIncrement},
			{Name: "name", Ty: value.Scalar(value.KindString)},
			{
				Name: "todos",
				Relation: &schema.RelationDescriptor{
					Kind:        schema.RelationHasMany,
					TargetModel: "Todo",
					PairField:   "user",
				},
			},
		},
		Indices: []schema.IndexDescriptor{{Fields: []string{"id"}, Unique: true}},
	})
	b.AddModel(schema.ModelDescriptor{
		Name: "Todo",
		Fields: []schema.FieldDescriptor{
			{Name: "id", Ty: value.Scalar(value.KindI64), PrimaryKey: true, Auto: app.AutoIncrement},
			{Name: "title", Ty: value.Scalar(value.KindString)},
			{Name: "user_id", Ty: value.Scalar(value.KindI64)},
			{
				Name: "user",
				Relation: &schema.RelationDescriptor{
					Kind:             schema.RelationBelongsTo,
					TargetModel:      "User",
					ForeignKeyFields: []string{"user_id"},
				},
			},
		},
		Indices: []schema.IndexDescriptor{
			{Fields: []string{"id"}, Unique: true},
			{Fields: []string{"user_id"}},
		},
	})
	s, err := b.Build()
	require.NoError(t, err)
	return s
}

func TestLowerRewritesFieldReferencesToColumns(t *testing.T) {
	sc := buildSchema(t)
	nameField := sc.App.Model(0).FieldByName("name")

	q := stmt.NewSelect(0, stmt.Eq(stmt.FieldRef(nameField.ID), stmt.Value(value.String("alice"))))
	l := lower.New(sc, true)
	out := l.Query(q)

	sel := out.Body.(stmt.ExprSetSelect)
	assert.True(t, sel.Select.Source.IsTable)
	bin := sel.Select.Filter.Expr().(stmt.ExprBinaryOp)
	_, isColumn := bin.LHS.(stmt.ExprReference)
	require.True(t, isColumn)
	assert.Equal(t, stmt.RefColumn, bin.LHS.(stmt.ExprReference).Kind)
}

func TestLowerMaterializesJoinForIncludedRelation(t *testing.T) {
	sc := buildSchema(t)
	q := &stmt.Query{Body: stmt.ExprSetSelect{Select: stmt.Select{
		Source:    stmt.Source{Model: 0, Include: []stmt.Path{stmt.PathForField(0, 2)}},
		Returning: stmt.NewReturningModel(),
	}}}
	l := lower.New(sc, true)
	out := l.Query(q)
	sel := out.Body.(stmt.ExprSetSelect)
	require.Len(t, sel.Select.Source.Joins, 1)
}

func TestLowerRewritesReturningModelToColumnProjection(t *testing.T) {
	sc := buildSchema(t)
	q := &stmt.Query{Body: stmt.ExprSetSelect{Select: stmt.Select{
		Source:    stmt.Source{Model: 0},
		Returning: stmt.NewReturningModel(),
	}}}
	l := lower.New(sc, true)
	out := l.Query(q)
	sel := out.Body.(stmt.ExprSetSelect)
	assert.True(t, sel.Select.Returning.IsExpr())
	rec, ok := sel.Select.Returning.Expr.(stmt.ExprRecordNode)
	require.True(t, ok)
	assert.NotEmpty(t, rec.Fields)
}

func TestLowerRewritesOffsetAfterToInequality(t *testing.T) {
	sc := buildSchema(t)
	idField := sc.App.Model(0).FieldByName("id")

	q := &stmt.Query{
		Body: stmt.ExprSetSelect{Select: stmt.Select{
			Source:    stmt.Source{Model: 0},
			Returning: stmt.NewReturningModel(),
		}},
		OrderBy: []stmt.OrderOption{{Expr: stmt.FieldRef(idField.ID), Direction: stmt.Desc}},
		Limit: &stmt.Limit{
			Count:  intPtr(10),
			Offset: stmt.OffsetSpec{Kind: stmt.OffsetAfter, After: []stmt.Expr{stmt.Value(value.Int(90))}},
		},
	}
	l := lower.New(sc, true)
	out := l.Query(q)

	assert.Equal(t, stmt.OffsetNone, out.Limit.Offset.Kind)
	sel := out.Body.(stmt.ExprSetSelect)
	bin, ok := sel.Select.Filter.Expr().(stmt.ExprBinaryOp)
	require.True(t, ok)
	assert.Equal(t, stmt.OpLt, bin.Op)
}

func intPtr(i int) *int { return &i }
