package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-orm/lattice/schema"
	"github.com/lattice-orm/lattice/schema/app"
	"github.com/lattice-orm/lattice/value"
)

func buildSchema(t *testing.T) *schema.Schema {
	t.Helper()
	b := schema.NewBuilder(schema.Capability{SQL: true, NativeAutoIncrement: true})
	b.AddModel(schema.ModelDescriptor{
		Name: "User",
		Fields: []schema.FieldDescriptor{
			{Name: "id", Ty: value.Scalar(value.KindI64), PrimaryKey: true, Auto: app.AutoIncrement},
			{Name: "email", Ty: value.Scalar(value.KindString), Unique: true},
			{
				Name: "todos",
				Relation: &schema.RelationDescriptor{
					Kind:        schema.RelationHasMany,
					TargetModel: "Todo",
					PairField:   "user",
				},
			},
		},
		Indices: []schema.IndexDescriptor{
			{Fields: []string{"id"}, Unique: true},
			{Fields: []string{"email"}, Unique: true},
		},
	})
	b.AddModel(schema.ModelDescriptor{
		Name: "Todo",
		Fields: []schema.FieldDescriptor{
			{Name: "id", Ty: value.Scalar(value.KindI64), PrimaryKey: true, Auto: app.AutoIncrement},
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

func TestSchemaModelAndFieldLookup(t *testing.T) {
	sc := buildSchema(t)
	userModel := sc.App.Model(0)
	assert.Equal(t, "User", userModel.Name)

	emailField := userModel.FieldByName("email")
	require.NotNil(t, emailField)
	resolved := sc.App.Field(emailField.ID)
	assert.Same(t, emailField, resolved)
}

func TestSchemaModelPanicsOnUnknownID(t *testing.T) {
	sc := buildSchema(t)
	assert.Panics(t, func() { sc.App.Model(99) })
}

func TestModelFieldPanicsOnForeignFieldID(t *testing.T) {
	sc := buildSchema(t)
	userModel := sc.App.Model(0)
	todoModel := sc.App.Model(1)
	assert.Panics(t, func() { userModel.Field(todoModel.Fields[0].ID) })
}

func TestModelPrimaryKeyIndexAndFields(t *testing.T) {
	sc := buildSchema(t)
	userModel := sc.App.Model(0)

	pkIndex := userModel.PrimaryKeyIndex()
	assert.True(t, pkIndex.PrimaryKey)

	pkFields := userModel.PrimaryKeyFields()
	require.Len(t, pkFields, 1)
	assert.Equal(t, "id", sc.App.Field(pkFields[0]).Name)
}

func TestFieldByNameMissReturnsNil(t *testing.T) {
	sc := buildSchema(t)
	assert.Nil(t, sc.App.Model(0).FieldByName("does-not-exist"))
}

func TestBelongsToExpectPanicsOnNonRelationField(t *testing.T) {
	sc := buildSchema(t)
	idField := sc.App.Model(1).FieldByName("id")
	assert.Panics(t, func() { idField.ExpectBelongsTo() })
}

func TestIndexPartitionAndLocalFieldsSplitOnScope(t *testing.T) {
	idx := &app.Index{
		Fields: []app.IndexField{
			{Field: value.FieldID{Model: 0, Index: 0}, Scope: app.ScopePartition},
			{Field: value.FieldID{Model: 0, Index: 1}, Scope: app.ScopePartition},
			{Field: value.FieldID{Model: 0, Index: 2}, Scope: app.ScopeLocal},
		},
	}
	assert.Len(t, idx.PartitionFields(), 2)
	assert.Len(t, idx.LocalFields(), 1)
}

func TestIndexAllPartitionFieldsLeavesLocalEmpty(t *testing.T) {
	idx := &app.Index{
		Fields: []app.IndexField{
			{Field: value.FieldID{Model: 0, Index: 0}, Scope: app.ScopePartition},
		},
	}
	assert.Len(t, idx.PartitionFields(), 1)
	assert.Empty(t, idx.LocalFields())
}
