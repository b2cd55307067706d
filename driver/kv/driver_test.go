package kv_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-orm/lattice/driver"
	"github.com/lattice-orm/lattice/driver/kv"
	"github.com/lattice-orm/lattice/schema"
	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

func widgetSchema(t *testing.T) *schema.Schema {
	t.Helper()
	b := schema.NewBuilder(schema.Capability{})
	b.AddModel(schema.ModelDescriptor{
		Name: "Widget",
		Fields: []schema.FieldDescriptor{
			{Name: "id", Ty: value.Scalar(value.KindI64), PrimaryKey: true},
			{Name: "name", Ty: value.Scalar(value.KindString)},
		},
		Indices: []schema.IndexDescriptor{{Fields: []string{"id"}, Unique: true}},
	})
	s, err := b.Build()
	require.NoError(t, err)
	return s
}

func insertOp(t *testing.T, sc *schema.Schema, id int64, name string) driver.Insert {
	t.Helper()
	mm := sc.MappingFor(0)
	idCol := mm.Column(sc.App.Model(0).FieldByName("id").ID)[0]
	nameCol := mm.Column(sc.App.Model(0).FieldByName("name").ID)[0]
	tableID := sc.TableIDFor(0)

	return driver.Insert{Stmt: &stmt.Insert{
		Target: stmt.NewInsertTable(stmt.InsertTable{Table: tableID, Columns: []value.ColumnID{idCol, nameCol}}),
		Source: &stmt.Query{Body: stmt.ExprSetValues{Rows: []stmt.Expr{
			stmt.ExprRecordNode{Fields: []stmt.Expr{stmt.Value(value.Int(id)), stmt.Value(value.String(name))}},
		}}},
	}}
}

func TestInsertAndGetByKey(t *testing.T) {
	sc := widgetSchema(t)
	d := kv.New()
	ctx := context.Background()
	require.NoError(t, d.Reset(ctx, sc.DB))

	_, err := d.Exec(ctx, sc.DB, insertOp(t, sc, 1, "widget-a"))
	require.NoError(t, err)

	tableID := sc.TableIDFor(0)
	nameCol := sc.MappingFor(0).Column(sc.App.Model(0).FieldByName("name").ID)[0]

	resp, err := d.Exec(ctx, sc.DB, driver.GetByKey{
		Table:  tableID,
		Select: []value.ColumnID{nameCol},
		Keys:   []value.Value{value.Int(1)},
	})
	require.NoError(t, err)
	rows, err := resp.Rows.Values.Collect()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].AsRecord()[0].Equal(value.String("widget-a")))
}

func TestGetByKeyMissReturnsNoRows(t *testing.T) {
	sc := widgetSchema(t)
	d := kv.New()
	ctx := context.Background()
	require.NoError(t, d.Reset(ctx, sc.DB))

	tableID := sc.TableIDFor(0)
	resp, err := d.Exec(ctx, sc.DB, driver.GetByKey{Table: tableID, Keys: []value.Value{value.Int(99)}})
	require.NoError(t, err)
	rows, err := resp.Rows.Values.Collect()
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestUpdateByKeyAppliesAssignmentsAndReturns(t *testing.T) {
	sc := widgetSchema(t)
	d := kv.New()
	ctx := context.Background()
	require.NoError(t, d.Reset(ctx, sc.DB))
	require.NoError(t, exec1(t, d, ctx, sc))

	nameField := sc.App.Model(0).FieldByName("name").ID
	tableID := sc.TableIDFor(0)

	resp, err := d.Exec(ctx, sc.DB, driver.UpdateByKey{
		Table:       tableID,
		Keys:        []value.Value{value.Int(1)},
		Assignments: []stmt.Assignment{{Field: nameField, Value: stmt.Value(value.String("renamed"))}},
		Returning:   true,
	})
	require.NoError(t, err)
	rows, err := resp.Rows.Values.Collect()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].AsRecord()[1].Equal(value.String("renamed")))
}

func TestUpdateByKeyConditionFailureReturnsErr(t *testing.T) {
	sc := widgetSchema(t)
	d := kv.New()
	ctx := context.Background()
	require.NoError(t, d.Reset(ctx, sc.DB))
	require.NoError(t, exec1(t, d, ctx, sc))

	tableID := sc.TableIDFor(0)
	nameCol := sc.MappingFor(0).Column(sc.App.Model(0).FieldByName("name").ID)[0]
	nameField := sc.App.Model(0).FieldByName("name").ID

	_, err := d.Exec(ctx, sc.DB, driver.UpdateByKey{
		Table:       tableID,
		Keys:        []value.Value{value.Int(1)},
		Assignments: []stmt.Assignment{{Field: nameField, Value: stmt.Value(value.String("renamed"))}},
		Condition:   stmt.Eq(stmt.ColumnRef(nameCol), stmt.Value(value.String("nope"))),
	})
	assert.ErrorIs(t, err, driver.ErrConditionFailed)
}

func TestDeleteByKeyRemovesRow(t *testing.T) {
	sc := widgetSchema(t)
	d := kv.New()
	ctx := context.Background()
	require.NoError(t, d.Reset(ctx, sc.DB))
	require.NoError(t, exec1(t, d, ctx, sc))

	tableID := sc.TableIDFor(0)
	resp, err := d.Exec(ctx, sc.DB, driver.DeleteByKey{Table: tableID, Keys: []value.Value{value.Int(1)}})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), resp.Rows.Count)

	getResp, err := d.Exec(ctx, sc.DB, driver.GetByKey{Table: tableID, Keys: []value.Value{value.Int(1)}})
	require.NoError(t, err)
	rows, err := getResp.Rows.Values.Collect()
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestTransactionRollbackRestoresState(t *testing.T) {
	sc := widgetSchema(t)
	d := kv.New()
	ctx := context.Background()
	require.NoError(t, d.Reset(ctx, sc.DB))
	require.NoError(t, exec1(t, d, ctx, sc))

	_, err := d.Exec(ctx, sc.DB, driver.Transaction{Op: driver.TxStart})
	require.NoError(t, err)

	tableID := sc.TableIDFor(0)
	_, err = d.Exec(ctx, sc.DB, driver.DeleteByKey{Table: tableID, Keys: []value.Value{value.Int(1)}})
	require.NoError(t, err)

	_, err = d.Exec(ctx, sc.DB, driver.Transaction{Op: driver.TxRollback})
	require.NoError(t, err)

	resp, err := d.Exec(ctx, sc.DB, driver.GetByKey{Table: tableID, Keys: []value.Value{value.Int(1)}})
	require.NoError(t, err)
	rows, err := resp.Rows.Values.Collect()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestQuerySQLIsUnsupported(t *testing.T) {
	sc := widgetSchema(t)
	d := kv.New()
	ctx := context.Background()
	require.NoError(t, d.Reset(ctx, sc.DB))

	_, err := d.Exec(ctx, sc.DB, driver.QuerySQL{Stmt: &stmt.Query{Body: stmt.ExprSetValues{}}})
	assert.Error(t, err)
}

func exec1(t *testing.T, d *kv.Driver, ctx context.Context, sc *schema.Schema) error {
	t.Helper()
	_, err := d.Exec(ctx, sc.DB, insertOp(t, sc, 1, "widget-a"))
	return err
}
