// Package sql is the generic database/sql-backed Driver: one implementation
// parameterized by dialect, built entirely out of dialect/sql's Serializer,
// GenerateDDL, and NestingTracker rather than a bespoke per-backend client.
// The mysql/lib-pq/sqlite drivers register by blank import and Open picks
// one dynamically: a single Driver type wrapping whatever *sql.DB the
// caller already has, not three separate driver packages.
package sql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/lattice-orm/lattice/dialect"
	lsql "github.com/lattice-orm/lattice/dialect/sql"
	lattdriver "github.com/lattice-orm/lattice/driver"
	"github.com/lattice-orm/lattice/schema"
	"github.com/lattice-orm/lattice/schema/db"
	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

// sqlDriverName maps a dialect to the name its database/sql driver
// registered itself under via blank import.
func sqlDriverName(d dialect.Dialect) (string, error) {
	switch d {
	case dialect.SQLite:
		return "sqlite", nil
	case dialect.Postgres:
		return "postgres", nil
	case dialect.MySQL:
		return "mysql", nil
	default:
		return "", fmt.Errorf("driver/sql: unsupported dialect %q", d)
	}
}

// capabilityFor reports what a dialect's database/sql driver supports,
// fed to the schema Builder and Planner.
func capabilityFor(d dialect.Dialect) schema.Capability {
	switch d {
	case dialect.Postgres:
		return schema.Capability{SQL: true, NativeAutoIncrement: true, NativeReturning: true, ConditionalUpdateReturning: true}
	case dialect.SQLite:
		return schema.Capability{SQL: true, NativeAutoIncrement: true, NativeReturning: true, ConditionalUpdateReturning: true}
	case dialect.MySQL:
		return schema.Capability{SQL: true, NativeAutoIncrement: true, NativeReturning: false, ConditionalUpdateReturning: false}
	default:
		return schema.Capability{SQL: true}
	}
}

// Driver implements driver.Driver over a *sql.DB, translating every
// driver.Operation into dialect-flavored SQL text via dialect/sql's
// Serializer and running it through database/sql.
//
// A Driver is not safe for concurrent Transaction use: it tracks at most
// one open transaction (via conn/nesting) at a time. Concurrent callers that
// each need their own transaction should open their own Driver, or go
// through lattice.Db, whose mutex serializes operations on one handle.
type Driver struct {
	db      *sql.DB
	dialect dialect.Dialect
	cap     schema.Capability
	ser     *lsql.Serializer

	// txConn and nesting track an in-flight Transaction operation. txConn
	// is nil outside a transaction; every exec path below runs against
	// conn() so Insert/Query/Update/Delete operations issued between a
	// TxStart and its matching TxCommit/TxRollback run on the same
	// checked-out connection instead of a fresh one from the pool.
	txConn  *sql.Conn
	nesting lsql.NestingTracker
}

// sqlExecer is satisfied by both *sql.DB and *sql.Conn, letting every exec
// path below run against whichever one conn() currently returns.
type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// conn returns the connection operations should run against: the
// transaction's checked-out *sql.Conn if one is open, otherwise the pool.
func (drv *Driver) conn() sqlExecer {
	if drv.txConn != nil {
		return drv.txConn
	}
	return drv.db
}

// Open opens a *sql.DB against source using the database/sql driver
// registered for d and wraps it in a Driver.
func Open(d dialect.Dialect, source string) (*Driver, error) {
	name, err := sqlDriverName(d)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(name, source)
	if err != nil {
		return nil, err
	}
	return OpenDB(d, conn), nil
}

// OpenDB wraps an already-open *sql.DB, for callers (tests, pooling
// middleware) that construct the connection themselves.
func OpenDB(d dialect.Dialect, conn *sql.DB) *Driver {
	return &Driver{
		db:      conn,
		dialect: d,
		cap:     capabilityFor(d),
		ser:     &lsql.Serializer{Dialect: d, LastInsertIDHack: d == dialect.MySQL},
	}
}

func (drv *Driver) Capability() schema.Capability { return drv.cap }

func (drv *Driver) Close(ctx context.Context) error {
	if drv.txConn != nil {
		drv.txConn.Close()
		drv.txConn = nil
	}
	return drv.db.Close()
}

// Reset drops and recreates every table in dbSchema, used by tests and
// local bootstrapping. It only has a *db.Schema to work from (no app/
// mapping layer), so auto-increment columns are emitted as plain
// integers with a table-level PRIMARY KEY clause rather than native
// AUTO_INCREMENT/IDENTITY syntax; dialect/sql's GenerateDDL emits that
// syntax only when handed the full app-aware schema.Schema.
func (drv *Driver) Reset(ctx context.Context, dbSchema *db.Schema) error {
	var diff lsql.SchemaDiff
	for _, t := range dbSchema.Tables {
		if t == nil {
			continue
		}
		diff.Items = append(diff.Items, lsql.TablesDiffItem{Kind: lsql.DiffDropTable, TableName: t.Atlas.Name})
	}
	for _, t := range dbSchema.Tables {
		if t == nil {
			continue
		}
		diff.Items = append(diff.Items, lsql.TablesDiffItem{Kind: lsql.DiffCreateTable, Table: t})
	}
	stmts, err := lsql.GenerateDDL(drv.dialect, diff, nil)
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if _, err := drv.db.ExecContext(ctx, s); err != nil {
			if !strings.HasPrefix(s, "DROP TABLE ") || !isMissingTableErr(err) {
				return fmt.Errorf("driver/sql: reset: %w", err)
			}
		}
	}
	return nil
}

// isMissingTableErr loosely recognizes "no such table"/"doesn't exist"
// errors across dialects so Reset tolerates a schema that was never
// created yet.
func isMissingTableErr(err error) bool {
	msg := err.Error()
	for _, sub := range []string{"no such table", "does not exist", "doesn't exist", "Unknown table"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

// Exec dispatches op to the matching render-then-run path.
func (drv *Driver) Exec(ctx context.Context, dbSchema *db.Schema, op lattdriver.Operation) (*lattdriver.Response, error) {
	// The Serializer resolves table/column names against a *db.Schema it
	// doesn't own; Transaction is the one Operation with no schema to
	// resolve against (dbSchema may be nil), every other arm below needs
	// this set first since ser itself is constructed once in OpenDB,
	// before any dbSchema is known.
	drv.ser.Schema = dbSchema
	switch o := op.(type) {
	case lattdriver.Insert:
		return drv.execInsert(ctx, o)
	case lattdriver.GetByKey:
		return drv.execGetByKey(ctx, dbSchema, o)
	case lattdriver.FindPkByIndex:
		return drv.execFindPkByIndex(ctx, dbSchema, o)
	case lattdriver.QueryPk:
		return drv.execQueryPk(ctx, o)
	case lattdriver.QuerySQL:
		return drv.execQuerySQL(ctx, o)
	case lattdriver.UpdateByKey:
		return drv.execUpdateByKey(ctx, o)
	case lattdriver.DeleteByKey:
		return drv.execDeleteByKey(ctx, o)
	case lattdriver.Transaction:
		return drv.execTransaction(ctx, o)
	default:
		return nil, fmt.Errorf("driver/sql: unsupported operation %T", op)
	}
}

func (drv *Driver) execInsert(ctx context.Context, o lattdriver.Insert) (*lattdriver.Response, error) {
	text, args, err := drv.ser.Insert(o.Stmt)
	if err != nil {
		return nil, err
	}
	sqlArgs := toSQLArgs(args)

	if o.Stmt.Returning != nil && drv.cap.NativeReturning {
		rows, err := drv.conn().QueryContext(ctx, text, sqlArgs...)
		if err != nil {
			return nil, err
		}
		return &lattdriver.Response{Rows: lattdriver.ValueRows(streamFromRows(rows))}, nil
	}

	res, err := drv.conn().ExecContext(ctx, text, sqlArgs...)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if o.Stmt.Returning == nil {
		return &lattdriver.Response{Rows: lattdriver.CountRows(uint64(affected))}, nil
	}

	// MySQL last-insert-id hack: reconstruct the sequential auto-increment
	// keys the driver itself never returned from the result's LastInsertId.
	lastID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	ids := make([]value.Value, affected)
	for i := range ids {
		ids[i] = value.Record(value.Int(lastID + int64(i)))
	}
	return &lattdriver.Response{Rows: lattdriver.ValueRows(stmt.ValueStreamFromSlice(value.Unknown, ids))}, nil
}

func (drv *Driver) execGetByKey(ctx context.Context, dbSchema *db.Schema, o lattdriver.GetByKey) (*lattdriver.Response, error) {
	pk := dbSchema.Table(o.Table).PrimaryKeyColumns()
	if len(pk) != 1 {
		return nil, fmt.Errorf("driver/sql: GetByKey requires a single-column primary key, table %d has %d", o.Table, len(pk))
	}
	q := &stmt.Query{Body: stmt.ExprSetSelect{Select: stmt.Select{
		Source:    stmt.Source{IsTable: true, Table: o.Table},
		Filter:    stmt.FilterOf(stmt.ExprInList{Expr: stmt.ExprReference{Kind: stmt.RefColumn, Column: pk[0]}, List: valueList(o.Keys)}),
		Returning: stmt.NewReturningExpr(recordOf(o.Select)),
	}}}
	return drv.runQuery(ctx, q, o.Select)
}

func (drv *Driver) execFindPkByIndex(ctx context.Context, dbSchema *db.Schema, o lattdriver.FindPkByIndex) (*lattdriver.Response, error) {
	idx := dbSchema.Index(o.Index)
	if len(idx.Columns) != 1 {
		return nil, fmt.Errorf("driver/sql: FindPkByIndex requires a single-column index, %+v has %d", o.Index, len(idx.Columns))
	}
	filter := stmt.Expr(stmt.ExprInList{Expr: stmt.ExprReference{Kind: stmt.RefColumn, Column: idx.Columns[0]}, List: valueList(o.Keys)})
	if o.Filter != nil {
		filter = stmt.And(filter, o.Filter)
	}
	q := &stmt.Query{Body: stmt.ExprSetSelect{Select: stmt.Select{
		Source:    stmt.Source{IsTable: true, Table: o.Table},
		Filter:    stmt.FilterOf(filter),
		Returning: stmt.NewReturningExpr(recordOf(o.Select)),
	}}}
	return drv.runQuery(ctx, q, o.Select)
}

func (drv *Driver) execQueryPk(ctx context.Context, o lattdriver.QueryPk) (*lattdriver.Response, error) {
	filter := o.PKFilter
	if o.Filter != nil {
		filter = stmt.And(filter, o.Filter)
	}
	q := &stmt.Query{Body: stmt.ExprSetSelect{Select: stmt.Select{
		Source:    stmt.Source{IsTable: true, Table: o.Table},
		Filter:    stmt.FilterOf(filter),
		Returning: stmt.NewReturningExpr(recordOf(o.Select)),
	}}}
	return drv.runQuery(ctx, q, o.Select)
}

func (drv *Driver) runQuery(ctx context.Context, q *stmt.Query, selectCols []value.ColumnID) (*lattdriver.Response, error) {
	text, args, err := drv.ser.Query(q)
	if err != nil {
		return nil, err
	}
	rows, err := drv.conn().QueryContext(ctx, text, toSQLArgs(args)...)
	if err != nil {
		return nil, err
	}
	return &lattdriver.Response{Rows: lattdriver.ValueRows(streamFromRows(rows))}, nil
}

func (drv *Driver) execQuerySQL(ctx context.Context, o lattdriver.QuerySQL) (*lattdriver.Response, error) {
	switch s := o.Stmt.(type) {
	case *stmt.Query:
		text, args, err := drv.ser.Query(s)
		if err != nil {
			return nil, err
		}
		rows, err := drv.conn().QueryContext(ctx, text, toSQLArgs(args)...)
		if err != nil {
			return nil, err
		}
		return &lattdriver.Response{Rows: lattdriver.ValueRows(streamFromRows(rows))}, nil
	case *stmt.Update:
		// The same ordinal field-to-column assumption execUpdateByKey's
		// columnFor documents: single unsplit columns only.
		columnFor := func(f value.FieldID) value.ColumnID {
			return value.ColumnID{Table: s.Target.Table, Index: f.Index}
		}
		text, args, err := drv.ser.Update(s, columnFor)
		if err != nil {
			return nil, err
		}
		return drv.execCount(ctx, text, args)
	case *stmt.Delete:
		text, args, err := drv.ser.Delete(s)
		if err != nil {
			return nil, err
		}
		return drv.execCount(ctx, text, args)
	default:
		return nil, fmt.Errorf("driver/sql: QuerySQL: unsupported statement %T, use the Insert operation instead", o.Stmt)
	}
}

func (drv *Driver) execUpdateByKey(ctx context.Context, o lattdriver.UpdateByKey) (*lattdriver.Response, error) {
	filter := stmt.Expr(stmt.ExprInList{
		Expr: stmt.ExprReference{Kind: stmt.RefColumn, Column: value.ColumnID{Table: o.Table, Index: 0}},
		List: valueList(o.Keys),
	})
	if o.Filter != nil {
		filter = stmt.And(filter, o.Filter)
	}
	// Condition is applied to the same WHERE clause as Filter: a row whose
	// Condition doesn't hold is simply not matched, so RowsAffected/returned
	// row count falls short of len(o.Keys) below and this reports
	// ErrConditionFailed rather than silently no-op-ing the update.
	if o.Condition != nil {
		filter = stmt.And(filter, o.Condition)
	}
	u := &stmt.Update{
		Target:      stmt.Source{IsTable: true, Table: o.Table},
		Assignments: o.Assignments,
		FilterExpr:  stmt.FilterOf(filter),
	}
	// columnFor assumes a field's ColumnID shares its FieldID's ordinal
	// index within the table, true whenever a model field maps onto a
	// single unsplit column (the common case); composite/derived-column
	// fields need the app/mapping layer this Driver doesn't have and
	// aren't supported by UpdateByKey here.
	columnFor := func(f value.FieldID) value.ColumnID { return value.ColumnID{Table: o.Table, Index: f.Index} }
	text, args, err := drv.ser.Update(u, columnFor)
	if err != nil {
		return nil, err
	}
	if o.Returning && drv.cap.NativeReturning {
		rows, err := drv.conn().QueryContext(ctx, text+" RETURNING *", toSQLArgs(args)...)
		if err != nil {
			return nil, err
		}
		stream := streamFromRows(rows)
		if o.Condition != nil {
			return checkConditionMet(stream, len(o.Keys))
		}
		return &lattdriver.Response{Rows: lattdriver.ValueRows(stream)}, nil
	}
	res, err := drv.execCount(ctx, text, args)
	if err != nil {
		return nil, err
	}
	if o.Condition != nil && res.Rows.Count != uint64(len(o.Keys)) {
		return nil, lattdriver.ErrConditionFailed
	}
	return res, nil
}

// checkConditionMet drains stream and fails with ErrConditionFailed unless
// exactly wantRows rows came back, wrapping the rows in a fresh in-memory
// stream so the caller still observes the same Response shape a
// non-conditional RETURNING path would produce.
func checkConditionMet(stream *stmt.ValueStream, wantRows int) (*lattdriver.Response, error) {
	rows, err := stream.Collect()
	if err != nil {
		return nil, err
	}
	if len(rows) != wantRows {
		return nil, lattdriver.ErrConditionFailed
	}
	return &lattdriver.Response{Rows: lattdriver.ValueRows(stmt.ValueStreamFromSlice(value.Unknown, rows))}, nil
}

func (drv *Driver) execDeleteByKey(ctx context.Context, o lattdriver.DeleteByKey) (*lattdriver.Response, error) {
	filter := stmt.Expr(stmt.ExprInList{
		Expr: stmt.ExprReference{Kind: stmt.RefColumn, Column: value.ColumnID{Table: o.Table, Index: 0}},
		List: valueList(o.Keys),
	})
	if o.Filter != nil {
		filter = stmt.And(filter, o.Filter)
	}
	d := &stmt.Delete{From: stmt.Source{IsTable: true, Table: o.Table}, FilterExpr: stmt.FilterOf(filter)}
	text, args, err := drv.ser.Delete(d)
	if err != nil {
		return nil, err
	}
	return drv.execCount(ctx, text, args)
}

func (drv *Driver) execCount(ctx context.Context, text string, args []value.Value) (*lattdriver.Response, error) {
	res, err := drv.conn().ExecContext(ctx, text, toSQLArgs(args)...)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	return &lattdriver.Response{Rows: lattdriver.CountRows(uint64(affected))}, nil
}

// execTransaction opens, commits, or rolls back the Driver's single
// in-flight transaction, issuing the raw SQL text dialect/sql/tx.go's
// NestingTracker and BeginStatements produce over a dedicated *sql.Conn
// checked out of the pool for the transaction's lifetime. A fresh TxStart
// at depth 0 opens the conn and issues BEGIN; a TxStart while one is
// already open issues a SAVEPOINT instead, matching the nesting algebra
// the read-modify-write fallback and the executor's explicit-transaction
// API both rely on.
func (drv *Driver) execTransaction(ctx context.Context, o lattdriver.Transaction) (*lattdriver.Response, error) {
	switch o.Op {
	case lattdriver.TxStart:
		return drv.beginTx(ctx)
	case lattdriver.TxCommit:
		return drv.endTx(ctx, drv.nesting.Commit)
	case lattdriver.TxRollback:
		return drv.endTx(ctx, drv.nesting.Rollback)
	default:
		return nil, fmt.Errorf("driver/sql: unknown transaction op %v", o.Op)
	}
}

// isolationFor picks the isolation level a bare TxStart opens with.
// driver.Transaction carries no isolation level of its own, so every
// transaction this Driver opens uses the same fixed level: Serializable for
// SQLite (its only option, per BeginStatements) and ReadCommitted on
// Postgres and MySQL.
func (drv *Driver) isolationFor() lsql.IsolationLevel {
	if drv.dialect == dialect.SQLite {
		return lsql.Serializable
	}
	return lsql.ReadCommitted
}

func (drv *Driver) beginTx(ctx context.Context) (*lattdriver.Response, error) {
	if drv.nesting.Depth() == 0 {
		c, err := drv.db.Conn(ctx)
		if err != nil {
			return nil, fmt.Errorf("driver/sql: begin: %w", err)
		}
		stmts, err := lsql.BeginStatements(drv.dialect, drv.isolationFor())
		if err != nil {
			c.Close()
			return nil, err
		}
		for _, s := range stmts {
			if _, err := c.ExecContext(ctx, s); err != nil {
				c.Close()
				return nil, fmt.Errorf("driver/sql: begin: %w", err)
			}
		}
		drv.txConn = c
		drv.nesting.Begin()
		return &lattdriver.Response{}, nil
	}
	if _, err := drv.txConn.ExecContext(ctx, drv.nesting.Savepoint()); err != nil {
		return nil, fmt.Errorf("driver/sql: savepoint: %w", err)
	}
	return &lattdriver.Response{}, nil
}

// endTx issues the statement next (NestingTracker.Commit or .Rollback)
// produces and, once depth returns to 0, releases the checked-out conn
// back to the pool.
func (drv *Driver) endTx(ctx context.Context, next func() string) (*lattdriver.Response, error) {
	if drv.txConn == nil {
		return nil, fmt.Errorf("driver/sql: no open transaction")
	}
	text := next()
	_, execErr := drv.txConn.ExecContext(ctx, text)
	if drv.nesting.Depth() == 0 {
		closeErr := drv.txConn.Close()
		drv.txConn = nil
		if execErr == nil {
			execErr = closeErr
		}
	}
	if execErr != nil {
		return nil, fmt.Errorf("driver/sql: %s: %w", text, execErr)
	}
	return &lattdriver.Response{}, nil
}

func valueList(vs []value.Value) stmt.ExprListNode {
	items := make([]stmt.Expr, len(vs))
	for i, v := range vs {
		items[i] = stmt.ExprValue{Value: v}
	}
	return stmt.ExprListNode{Items: items}
}

func recordOf(cols []value.ColumnID) stmt.Expr {
	fields := make([]stmt.Expr, len(cols))
	for i, c := range cols {
		fields[i] = stmt.ExprReference{Kind: stmt.RefColumn, Column: c}
	}
	return stmt.ExprRecordNode{Fields: fields}
}

// toSQLArgs converts the engine's bound Value arguments into database/sql's
// driver.Value-compatible universe (int64/float64/bool/string/[]byte/
// time.Time).
func toSQLArgs(vs []value.Value) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = valueToSQLArg(v)
	}
	return out
}

func valueToSQLArg(v value.Value) any {
	switch v.Kind() {
	case value.KindNull:
		return nil
	case value.KindBool:
		return v.AsBool()
	case value.KindI8, value.KindI16, value.KindI32, value.KindI64:
		return v.AsInt()
	case value.KindU8, value.KindU16, value.KindU32, value.KindU64:
		return v.AsUint()
	case value.KindF32, value.KindF64:
		return v.AsFloat()
	case value.KindString:
		return v.AsString()
	case value.KindBytes:
		return v.AsBytes()
	case value.KindId:
		return v.AsId().String()
	case value.KindTimestamp:
		return v.AsTime()
	default:
		return v.AsString()
	}
}

// streamFromRows adapts a *sql.Rows cursor into a stmt.ValueStream, pulling
// one row at a time on Next rather than buffering the whole result set, the
// same streaming contract every other driver.Response.Rows producer in this
// engine honors.
func streamFromRows(rows *sql.Rows) *stmt.ValueStream {
	cols, err := rows.Columns()
	if err != nil {
		return stmt.NewValueStream(value.Unknown, func() (value.Value, error, bool) { return value.Value{}, err, false })
	}
	dest := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	return stmt.NewValueStream(value.Unknown, func() (value.Value, error, bool) {
		if !rows.Next() {
			return value.Value{}, rows.Err(), false
		}
		if err := rows.Scan(ptrs...); err != nil {
			return value.Value{}, err, false
		}
		fields := make([]value.Value, len(dest))
		for i, d := range dest {
			fields[i] = sqlValueToValue(d)
		}
		return value.Record(fields...), nil, true
	})
}

// sqlValueToValue converts a raw database/sql scan destination (the Go
// types database/sql.Rows.Scan produces: int64, float64, bool, []byte,
// string, time.Time, or nil) back into the engine's Value universe.
func sqlValueToValue(raw any) value.Value {
	switch x := raw.(type) {
	case nil:
		return value.Null()
	case int64:
		return value.Int(x)
	case float64:
		return value.Float(x)
	case bool:
		return value.Bool(x)
	case []byte:
		return value.Bytes(x)
	case string:
		return value.String(x)
	case time.Time:
		return value.Timestamp(x)
	default:
		return value.String(fmt.Sprintf("%v", x))
	}
}
