package sql

import (
	"testing"

	atlasschema "ariga.io/atlas/sql/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-orm/lattice/dialect"
	"github.com/lattice-orm/lattice/schema/db"
	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

// usersSchema builds a minimal one-table storage schema: users(id, name,
// email), mirroring the shape schema.Builder would emit for a simple model.
func usersSchema() (*db.Schema, value.TableID, map[string]value.ColumnID) {
	tid := value.TableID(0)
	atlasTable := atlasschema.NewTable("users")
	idCol := &atlasschema.Column{Name: "id", Type: &atlasschema.ColumnType{Type: &atlasschema.IntegerType{T: "bigint"}}}
	nameCol := &atlasschema.Column{Name: "name", Type: &atlasschema.ColumnType{Type: &atlasschema.StringType{T: "varchar", Size: 255}}}
	emailCol := &atlasschema.Column{Name: "email", Type: &atlasschema.ColumnType{Type: &atlasschema.StringType{T: "varchar", Size: 255}}}
	atlasTable.AddColumns(idCol, nameCol, emailCol)

	cols := map[string]value.ColumnID{
		"id":    {Table: tid, Index: 0},
		"name":  {Table: tid, Index: 1},
		"email": {Table: tid, Index: 2},
	}
	table := &db.Table{ID: tid, Atlas: atlasTable}
	return &db.Schema{Tables: []*db.Table{table}}, tid, cols
}

func colRef(c value.ColumnID) stmt.Expr {
	return stmt.ExprReference{Kind: stmt.RefColumn, Column: c}
}

func TestSerializerQuerySimpleSelect(t *testing.T) {
	schema, tid, cols := usersSchema()
	s := &Serializer{Dialect: dialect.Postgres, Schema: schema}

	q := &stmt.Query{
		Body: stmt.ExprSetSelect{Select: stmt.Select{
			Source: stmt.Source{IsTable: true, Table: tid},
			Filter: stmt.FilterOf(stmt.ExprBinaryOp{
				Op:  stmt.OpEq,
				LHS: colRef(cols["id"]),
				RHS: stmt.ExprValue{Value: value.Int(1)},
			}),
			Returning: stmt.NewReturningExpr(stmt.ExprRecordNode{Fields: []stmt.Expr{
				colRef(cols["id"]), colRef(cols["name"]),
			}}),
		}},
	}

	text, args, err := s.Query(q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", "name" FROM "users" WHERE ("id" = $1)`, text)
	require.Len(t, args, 1)
	assert.Equal(t, value.Int(1), args[0])
}

func TestSerializerQueryCountAggregatePair(t *testing.T) {
	schema, tid, cols := usersSchema()
	s := &Serializer{Dialect: dialect.MySQL, Schema: schema}

	q := &stmt.Query{
		Body: stmt.ExprSetSelect{Select: stmt.Select{
			Source: stmt.Source{IsTable: true, Table: tid},
			Filter: stmt.FilterOf(stmt.ExprBinaryOp{
				Op:  stmt.OpEq,
				LHS: colRef(cols["id"]),
				RHS: stmt.ExprValue{Value: value.Int(1)},
			}),
			Returning: stmt.NewReturningExpr(stmt.ExprRecordNode{Fields: []stmt.Expr{
				stmt.ExprFunc{Func: stmt.FuncCountIf},
				stmt.ExprFunc{Func: stmt.FuncCountIf, Args: []stmt.Expr{stmt.ExprBinaryOp{
					Op:  stmt.OpEq,
					LHS: colRef(cols["name"]),
					RHS: stmt.ExprValue{Value: value.String("old")},
				}}},
			}}),
		}},
	}

	text, args, err := s.Query(q)
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*), COUNT(CASE WHEN (`name` = ?) THEN 1 END) FROM `users` WHERE (`id` = ?)", text)
	require.Len(t, args, 2)
	assert.Equal(t, value.String("old"), args[0])
	assert.Equal(t, value.Int(1), args[1])
}

func TestSerializerQueryOrderByAndLimit(t *testing.T) {
	schema, tid, cols := usersSchema()
	s := &Serializer{Dialect: dialect.MySQL, Schema: schema}

	count := 10
	q := &stmt.Query{
		Body: stmt.ExprSetSelect{Select: stmt.Select{
			Source:    stmt.Source{IsTable: true, Table: tid},
			Returning: stmt.NewReturningExpr(colRef(cols["id"])),
		}},
		OrderBy: []stmt.OrderOption{{Expr: colRef(cols["name"]), Direction: stmt.Desc}},
		Limit:   &stmt.Limit{Count: &count, Offset: stmt.OffsetSpec{Kind: stmt.OffsetCount, Count: 5}},
	}

	text, args, err := s.Query(q)
	require.NoError(t, err)
	assert.Equal(t, "SELECT `id` FROM `users` ORDER BY `name` DESC LIMIT 10 OFFSET 5", text)
	assert.Empty(t, args)
}

func TestSerializerQueryRejectsNonSelectBody(t *testing.T) {
	schema, _, _ := usersSchema()
	s := &Serializer{Dialect: dialect.Postgres, Schema: schema}
	_, _, err := s.Query(&stmt.Query{Body: stmt.ExprSetValues{}})
	assert.Error(t, err)
}

func TestSerializerInsertWithReturning(t *testing.T) {
	schema, tid, cols := usersSchema()
	s := &Serializer{Dialect: dialect.Postgres, Schema: schema}

	ret := stmt.NewReturningExpr(colRef(cols["id"]))
	ins := &stmt.Insert{
		Target: stmt.NewInsertTable(stmt.InsertTable{
			Table:   tid,
			Columns: []value.ColumnID{cols["name"], cols["email"]},
		}),
		Source: &stmt.Query{Body: stmt.ExprSetValues{Rows: []stmt.Expr{
			stmt.ExprRecordNode{Fields: []stmt.Expr{
				stmt.ExprValue{Value: value.String("ada")},
				stmt.ExprValue{Value: value.String("ada@example.com")},
			}},
		}}},
		Returning: &ret,
	}

	text, args, err := s.Insert(ins)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" ("name", "email") VALUES ($1, $2) RETURNING "id"`, text)
	require.Len(t, args, 2)
}

func TestSerializerInsertMySQLLastInsertIDHackOmitsReturning(t *testing.T) {
	schema, tid, cols := usersSchema()
	s := &Serializer{Dialect: dialect.MySQL, Schema: schema, LastInsertIDHack: true}

	ret := stmt.NewReturningExpr(colRef(cols["id"]))
	ins := &stmt.Insert{
		Target: stmt.NewInsertTable(stmt.InsertTable{Table: tid, Columns: []value.ColumnID{cols["name"]}}),
		Source: &stmt.Query{Body: stmt.ExprSetValues{Rows: []stmt.Expr{
			stmt.ExprRecordNode{Fields: []stmt.Expr{stmt.ExprValue{Value: value.String("ada")}}},
		}}},
		Returning: &ret,
	}

	text, _, err := s.Insert(ins)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `users` (`name`) VALUES (?)", text)
	assert.NotContains(t, text, "RETURNING")
}

func TestSerializerUpdate(t *testing.T) {
	schema, tid, cols := usersSchema()
	s := &Serializer{Dialect: dialect.Postgres, Schema: schema}

	fieldID := value.FieldID{Model: 0, Index: 1}
	columnFor := func(f value.FieldID) value.ColumnID { return cols["name"] }

	u := &stmt.Update{
		Target: stmt.Source{IsTable: true, Table: tid},
		Assignments: []stmt.Assignment{
			{Field: fieldID, Value: stmt.ExprValue{Value: value.String("grace")}},
		},
		FilterExpr: stmt.FilterOf(stmt.ExprBinaryOp{
			Op: stmt.OpEq, LHS: colRef(cols["id"]), RHS: stmt.ExprValue{Value: value.Int(2)},
		}),
	}

	text, args, err := s.Update(u, columnFor)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "users" SET "name" = $1 WHERE ("id" = $2)`, text)
	require.Len(t, args, 2)
}

func TestSerializerDelete(t *testing.T) {
	schema, tid, cols := usersSchema()
	s := &Serializer{Dialect: dialect.SQLite, Schema: schema}

	d := &stmt.Delete{
		From: stmt.Source{IsTable: true, Table: tid},
		FilterExpr: stmt.FilterOf(stmt.ExprBinaryOp{
			Op: stmt.OpEq, LHS: colRef(cols["id"]), RHS: stmt.ExprValue{Value: value.Int(3)},
		}),
	}

	text, args, err := s.Delete(d)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users" WHERE ("id" = ?)`, text)
	require.Len(t, args, 1)
}

func TestRenderExprVariants(t *testing.T) {
	schema, _, cols := usersSchema()
	s := &Serializer{Dialect: dialect.Postgres, Schema: schema}

	t.Run("and/or", func(t *testing.T) {
		b := s.newBuilder()
		err := b.renderExpr(stmt.And(
			stmt.ExprBinaryOp{Op: stmt.OpEq, LHS: colRef(cols["id"]), RHS: stmt.ExprValue{Value: value.Int(1)}},
			stmt.ExprBinaryOp{Op: stmt.OpEq, LHS: colRef(cols["name"]), RHS: stmt.ExprValue{Value: value.String("x")}},
		))
		require.NoError(t, err)
		assert.Equal(t, `(("id" = $1) AND ("name" = $2))`, b.sb.String())
	})

	t.Run("in list", func(t *testing.T) {
		b := s.newBuilder()
		err := b.renderExpr(stmt.ExprInList{
			Expr: colRef(cols["id"]),
			List: stmt.ExprListNode{Items: []stmt.Expr{
				stmt.ExprValue{Value: value.Int(1)},
				stmt.ExprValue{Value: value.Int(2)},
			}},
		})
		require.NoError(t, err)
		assert.Equal(t, `"id" IN ($1, $2)`, b.sb.String())
	})

	t.Run("in empty list is always false", func(t *testing.T) {
		b := s.newBuilder()
		err := b.renderExpr(stmt.ExprInList{Expr: colRef(cols["id"]), List: stmt.ExprListNode{}})
		require.NoError(t, err)
		assert.Equal(t, "FALSE", b.sb.String())
	})

	t.Run("begins-with pattern", func(t *testing.T) {
		b := s.newBuilder()
		err := b.renderExpr(stmt.ExprPattern{Kind: stmt.PatternBeginsWith, Expr: colRef(cols["name"]), Pattern: "ada"})
		require.NoError(t, err)
		assert.Equal(t, `"name" LIKE $1`, b.sb.String())
		assert.Equal(t, value.String("ada%"), b.args[0])
	})

	t.Run("concat", func(t *testing.T) {
		b := s.newBuilder()
		err := b.renderExpr(stmt.ExprConcatStr{Parts: []stmt.Expr{colRef(cols["name"]), stmt.ExprValue{Value: value.String("!")}}})
		require.NoError(t, err)
		assert.Equal(t, `("name" || $1)`, b.sb.String())
	})

	t.Run("concat on mysql uses CONCAT", func(t *testing.T) {
		mysql := &Serializer{Dialect: dialect.MySQL, Schema: schema}
		b := mysql.newBuilder()
		err := b.renderExpr(stmt.ExprConcatStr{Parts: []stmt.Expr{colRef(cols["name"]), stmt.ExprValue{Value: value.String("!")}}})
		require.NoError(t, err)
		assert.Equal(t, "CONCAT(`name`, ?)", b.sb.String())
	})

	t.Run("unsubstituted arg is an error", func(t *testing.T) {
		b := s.newBuilder()
		err := b.renderExpr(stmt.ExprArg{Position: 0})
		assert.Error(t, err)
	})

	t.Run("exists must be lifted", func(t *testing.T) {
		b := s.newBuilder()
		err := b.renderExpr(stmt.ExprExists{Query: &stmt.Query{}})
		assert.Error(t, err)
	})

	t.Run("non-column reference is a lowerer bug", func(t *testing.T) {
		b := s.newBuilder()
		err := b.renderExpr(stmt.ExprReference{Kind: stmt.RefField, Field: value.FieldID{Model: 0, Index: 0}})
		assert.Error(t, err)
	})
}
