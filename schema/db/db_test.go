package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-orm/lattice/schema"
	"github.com/lattice-orm/lattice/schema/app"
	"github.com/lattice-orm/lattice/schema/db"
	"github.com/lattice-orm/lattice/value"
)

func buildDBSchema(t *testing.T) *db.Schema {
	t.Helper()
	b := schema.NewBuilder(schema.Capability{SQL: true, NativeAutoIncrement: true})
	b.AddModel(schema.ModelDescriptor{
		Name: "Widget",
		Fields: []schema.FieldDescriptor{
			{Name: "id", Ty: value.Scalar(value.KindI64), PrimaryKey: true, Auto: app.AutoIncrement},
			{Name: "sku", Ty: value.Scalar(value.KindString), Unique: true},
		},
		Indices: []schema.IndexDescriptor{
			{Fields: []string{"id"}, Unique: true},
			{Fields: []string{"sku"}, Unique: true},
		},
	})
	s, err := b.Build()
	require.NoError(t, err)
	return s.DB
}

func TestTableColumnLookup(t *testing.T) {
	dbs := buildDBSchema(t)
	table := dbs.Table(0)
	assert.Equal(t, "widgets", table.Atlas.Name)

	col := table.Column(value.ColumnID{Table: 0, Index: 0})
	assert.Equal(t, "id", col.Name)
}

func TestTableColumnPanicsOnMismatchedTable(t *testing.T) {
	dbs := buildDBSchema(t)
	table := dbs.Table(0)
	assert.Panics(t, func() { table.Column(value.ColumnID{Table: 1, Index: 0}) })
}

func TestSchemaTablePanicsOnUnknownID(t *testing.T) {
	dbs := buildDBSchema(t)
	assert.Panics(t, func() { dbs.Table(99) })
}

func TestPrimaryKeyColumnsFindsPKIndex(t *testing.T) {
	dbs := buildDBSchema(t)
	table := dbs.Table(0)
	pk := table.PrimaryKeyColumns()
	require.Len(t, pk, 1)
	assert.Equal(t, 0, pk[0].Index)
}

func TestSchemaIndexPanicsOnOutOfRange(t *testing.T) {
	dbs := buildDBSchema(t)
	assert.Panics(t, func() { dbs.Index(value.DBIndexID{Table: 0, Index: 99}) })
}

func TestAtlasSchemaIncludesEveryTable(t *testing.T) {
	dbs := buildDBSchema(t)
	atlas := dbs.AtlasSchema("public")
	require.Len(t, atlas.Tables, 1)
	assert.Equal(t, "widgets", atlas.Tables[0].Name)
}

func TestMigrationStatementsSplitOnBreakpoint(t *testing.T) {
	m := db.NewSQLMigrationWithBreakpoints([]string{
		"CREATE TABLE a (id int);",
		"CREATE TABLE b (id int);",
	})
	stmts := m.Statements()
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (id int);", stmts[0])
	assert.Equal(t, "CREATE TABLE b (id int);", stmts[1])
}

func TestSingleSQLMigrationHasOneStatement(t *testing.T) {
	m := db.NewSQLMigration("CREATE TABLE a (id int);")
	assert.Equal(t, []string{"CREATE TABLE a (id int);"}, m.Statements())
	assert.Equal(t, "CREATE TABLE a (id int);", m.SQL())
}
