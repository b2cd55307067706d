// Package kv is a reference Driver backed by an in-process map rather than
// a SQL engine: it exercises the same driver.Operation contract driver/sql
// implements, against storage that has no query language of its own — the
// shape a real document/KV store (DynamoDB, a Redis hash family) would
// present. Capability.SQL and ScanFallback are both false, so the Planner
// only ever routes it GetByKey/FindPkByIndex/UpdateByKey/DeleteByKey/Insert
// (see plan/select.go's access-path selection); QuerySQL and a bare table
// scan are refused.
//
// Transaction depth bookkeeping reuses dialect/sql's NestingTracker
// directly, since a single in-process store has no dialect of its own to
// address BEGIN/SAVEPOINT text to.
package kv

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lsql "github.com/lattice-orm/lattice/dialect/sql"
	"github.com/lattice-orm/lattice/driver"
	"github.com/lattice-orm/lattice/schema"
	"github.com/lattice-orm/lattice/schema/db"
	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

// Driver is an in-memory Driver. Rows are stored as full []value.Value
// slices, one element per table column (indexed the same way ColumnID.Index
// addresses an atlas column), keyed by their primary key's encoded string.
type Driver struct {
	mu       sync.Mutex
	tables   map[value.TableID]*table
	tracker  lsql.NestingTracker
	snapshot []map[value.TableID]map[string][]value.Value
}

type table struct {
	width int
	rows  map[string][]value.Value
}

// New returns an empty Driver.
func New() *Driver {
	return &Driver{tables: make(map[value.TableID]*table)}
}

func (d *Driver) Capability() schema.Capability {
	return schema.Capability{NativeReturning: true, ConditionalUpdateReturning: true}
}

func (d *Driver) table(id value.TableID, dbSchema *db.Schema) *table {
	t, ok := d.tables[id]
	if !ok {
		t = &table{width: len(dbSchema.Table(id).Atlas.Columns), rows: make(map[string][]value.Value)}
		d.tables[id] = t
	}
	return t
}

// Reset drops every stored row for every table named in dbSchema.
func (d *Driver) Reset(_ context.Context, dbSchema *db.Schema) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables = make(map[value.TableID]*table)
	for _, t := range dbSchema.Tables {
		if t != nil {
			d.tables[t.ID] = &table{width: len(t.Atlas.Columns), rows: make(map[string][]value.Value)}
		}
	}
	return nil
}

func (d *Driver) Close(context.Context) error { return nil }

func (d *Driver) Exec(ctx context.Context, dbSchema *db.Schema, op driver.Operation) (*driver.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch o := op.(type) {
	case driver.Insert:
		return d.execInsert(dbSchema, o)
	case driver.GetByKey:
		return d.execGetByKey(dbSchema, o)
	case driver.FindPkByIndex:
		return d.execFindPkByIndex(dbSchema, o)
	case driver.UpdateByKey:
		return d.execUpdateByKey(dbSchema, o)
	case driver.DeleteByKey:
		return d.execDeleteByKey(dbSchema, o)
	case driver.Transaction:
		return d.execTransaction(o)
	case driver.QuerySQL:
		return nil, fmt.Errorf("driver/kv: arbitrary statement execution is not supported (ScanFallback is false)")
	default:
		return nil, fmt.Errorf("driver/kv: unsupported operation %T", op)
	}
}

func (d *Driver) execInsert(dbSchema *db.Schema, o driver.Insert) (*driver.Response, error) {
	if o.Stmt.Target.Kind != stmt.InsertTable {
		return nil, fmt.Errorf("driver/kv: insert target must be lowered to a table")
	}
	tgt := o.Stmt.Target.Table
	t := d.table(tgt.Table, dbSchema)
	pk := dbSchema.Table(tgt.Table).PrimaryKeyColumns()

	values, ok := o.Stmt.Source.Body.(stmt.ExprSetValues)
	if !ok {
		return nil, fmt.Errorf("driver/kv: insert source %T is not a literal row set", o.Stmt.Source.Body)
	}

	inserted := make([][]value.Value, 0, len(values.Rows))
	for _, r := range values.Rows {
		rec, ok := r.(stmt.ExprRecordNode)
		if !ok {
			return nil, fmt.Errorf("driver/kv: insert row %T is not a record", r)
		}
		full := make([]value.Value, t.width)
		for i := range full {
			full[i] = value.Null()
		}
		for i, fieldExpr := range rec.Fields {
			v, err := stmt.EvalConst(fieldExpr)
			if err != nil {
				return nil, err
			}
			full[tgt.Columns[i].Index] = v
		}
		t.rows[encodeKey(full, pk)] = full
		inserted = append(inserted, full)
	}

	if o.Stmt.Returning == nil {
		return &driver.Response{Rows: driver.CountRows(uint64(len(inserted)))}, nil
	}
	return returningResponse(o.Stmt.Returning, inserted)
}

func (d *Driver) execGetByKey(dbSchema *db.Schema, o driver.GetByKey) (*driver.Response, error) {
	t := d.table(o.Table, dbSchema)
	pk := dbSchema.Table(o.Table).PrimaryKeyColumns()
	var rows [][]value.Value
	for _, k := range o.Keys {
		if full, ok := t.rows[encodeKeyValue(k, len(pk))]; ok {
			rows = append(rows, full)
		}
	}
	return projectedResponse(rows, o.Select), nil
}

func (d *Driver) execFindPkByIndex(dbSchema *db.Schema, o driver.FindPkByIndex) (*driver.Response, error) {
	t := d.table(o.Table, dbSchema)
	idx := dbSchema.Index(o.Index)
	var rows [][]value.Value
	for _, full := range t.rows {
		key := compositeValue(full, idx.Columns)
		if !matchesAny(key, o.Keys) {
			continue
		}
		if o.Filter != nil {
			ok, err := stmt.EvalBool(o.Filter, stmt.Input{Row: value.Record(full...)})
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		rows = append(rows, full)
	}
	return projectedResponse(rows, o.Select), nil
}

func (d *Driver) execUpdateByKey(dbSchema *db.Schema, o driver.UpdateByKey) (*driver.Response, error) {
	t := d.table(o.Table, dbSchema)
	pk := dbSchema.Table(o.Table).PrimaryKeyColumns()

	var updated [][]value.Value
	matched := 0
	for _, k := range o.Keys {
		key := encodeKeyValue(k, len(pk))
		full, ok := t.rows[key]
		if !ok {
			continue
		}
		if o.Filter != nil {
			ok, err := stmt.EvalBool(o.Filter, stmt.Input{Row: value.Record(full...)})
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		if o.Condition != nil {
			ok, err := stmt.EvalBool(o.Condition, stmt.Input{Row: value.Record(full...)})
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		next := append([]value.Value(nil), full...)
		for _, a := range o.Assignments {
			v, err := stmt.Eval(a.Value, stmt.Input{Row: value.Record(full...)})
			if err != nil {
				return nil, err
			}
			// Assumes a field's ColumnID shares its FieldID's ordinal index,
			// the same simplifying assumption driver/sql's execUpdateByKey
			// documents for its own columnFor helper.
			next[a.Field.Index] = v
		}
		delete(t.rows, key)
		t.rows[encodeKey(next, pk)] = next
		matched++
		updated = append(updated, next)
	}

	if o.Condition != nil && matched != len(o.Keys) {
		return nil, driver.ErrConditionFailed
	}
	if !o.Returning {
		return &driver.Response{Rows: driver.CountRows(uint64(matched))}, nil
	}
	rows := make([]value.Value, len(updated))
	for i, r := range updated {
		rows[i] = value.Record(r...)
	}
	return &driver.Response{Rows: driver.ValueRows(stmt.ValueStreamFromSlice(value.Unknown, rows))}, nil
}

func (d *Driver) execDeleteByKey(dbSchema *db.Schema, o driver.DeleteByKey) (*driver.Response, error) {
	t := d.table(o.Table, dbSchema)
	pk := dbSchema.Table(o.Table).PrimaryKeyColumns()

	deleted := uint64(0)
	for _, k := range o.Keys {
		key := encodeKeyValue(k, len(pk))
		full, ok := t.rows[key]
		if !ok {
			continue
		}
		if o.Filter != nil {
			ok, err := stmt.EvalBool(o.Filter, stmt.Input{Row: value.Record(full...)})
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		delete(t.rows, key)
		deleted++
	}
	return &driver.Response{Rows: driver.CountRows(deleted)}, nil
}

// execTransaction tracks nesting depth via dialect/sql's NestingTracker and
// keeps a snapshot stack so Rollback can restore exactly the state a
// matching Begin/Savepoint saw, mirroring the BEGIN/SAVEPOINT/ROLLBACK TO
// SAVEPOINT algebra a SQL backend gets from its dialect for free.
func (d *Driver) execTransaction(o driver.Transaction) (*driver.Response, error) {
	switch o.Op {
	case driver.TxStart:
		if d.tracker.Depth() == 0 {
			d.tracker.Begin()
		} else {
			d.tracker.Savepoint()
		}
		d.snapshot = append(d.snapshot, d.copyTables())
	case driver.TxCommit:
		d.tracker.Commit()
		d.snapshot = d.snapshot[:len(d.snapshot)-1]
	case driver.TxRollback:
		d.tracker.Rollback()
		restore := d.snapshot[len(d.snapshot)-1]
		d.snapshot = d.snapshot[:len(d.snapshot)-1]
		d.restoreTables(restore)
	default:
		return nil, fmt.Errorf("driver/kv: unknown transaction op %d", o.Op)
	}
	return &driver.Response{Rows: driver.CountRows(0)}, nil
}

func (d *Driver) copyTables() map[value.TableID]map[string][]value.Value {
	out := make(map[value.TableID]map[string][]value.Value, len(d.tables))
	for id, t := range d.tables {
		rows := make(map[string][]value.Value, len(t.rows))
		for k, v := range t.rows {
			rows[k] = append([]value.Value(nil), v...)
		}
		out[id] = rows
	}
	return out
}

func (d *Driver) restoreTables(snap map[value.TableID]map[string][]value.Value) {
	for id, rows := range snap {
		t, ok := d.tables[id]
		if !ok {
			continue
		}
		t.rows = rows
	}
}

func returningResponse(ret *stmt.Returning, rows [][]value.Value) (*driver.Response, error) {
	out := make([]value.Value, len(rows))
	for i, full := range rows {
		rowVal := value.Record(full...)
		if ret.IsExpr() {
			v, err := stmt.Eval(ret.Expr, stmt.Input{Row: rowVal})
			if err != nil {
				return nil, err
			}
			out[i] = v
			continue
		}
		out[i] = rowVal
	}
	return &driver.Response{Rows: driver.ValueRows(stmt.ValueStreamFromSlice(value.Unknown, out))}, nil
}

func projectedResponse(rows [][]value.Value, cols []value.ColumnID) *driver.Response {
	out := make([]value.Value, len(rows))
	for i, full := range rows {
		out[i] = compositeValue(full, cols)
	}
	return &driver.Response{Rows: driver.ValueRows(stmt.ValueStreamFromSlice(value.Unknown, out))}
}

// compositeValue projects full onto cols, collapsing a single column to a
// bare scalar and two-or-more into a Record — the same single-vs-composite
// convention plan/select.go's compositeKey uses for primary/secondary keys.
func compositeValue(full []value.Value, cols []value.ColumnID) value.Value {
	if len(cols) == 1 {
		return full[cols[0].Index]
	}
	vals := make([]value.Value, len(cols))
	for i, c := range cols {
		vals[i] = full[c.Index]
	}
	return value.Record(vals...)
}

func matchesAny(key value.Value, keys []value.Value) bool {
	for _, k := range keys {
		if key.Equal(k) {
			return true
		}
	}
	return false
}

// encodeKey builds a row's primary-key map key from its full column values.
func encodeKey(full []value.Value, pk []value.ColumnID) string {
	parts := make([]string, len(pk))
	for i, c := range pk {
		parts[i] = full[c.Index].String()
	}
	return strings.Join(parts, "\x1f")
}

// encodeKeyValue builds the same map key from a composite key Value (a bare
// scalar for a single-column key, a Record for a composite one), so a
// caller's GetByKey/UpdateByKey/DeleteByKey Keys line up with rows stored
// via encodeKey.
func encodeKeyValue(v value.Value, numCols int) string {
	if numCols <= 1 {
		return v.String()
	}
	rec := v.AsRecord()
	parts := make([]string, len(rec))
	for i, f := range rec {
		parts[i] = f.String()
	}
	return strings.Join(parts, "\x1f")
}
