// Package driver defines the storage-backend contract the Executor issues
// operations against: a closed Operation sum type addressed by table/column
// ID (never by model-level name), plus the Response/Rows shape every
// operation returns. Concrete backends (driver/sql, driver/kv) implement
// Driver; the engine never imports a concrete backend directly.
//
// Operation uses the same interface-with-marker-method closed-sum pattern
// stmt.Expr and stmt.ExprSet already use.
package driver

import (
	"context"
	"errors"

	"github.com/lattice-orm/lattice/schema"
	"github.com/lattice-orm/lattice/schema/db"
	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

// ErrConditionFailed is returned by a Driver's UpdateByKey/DeleteByKey
// implementation when a request carries a Condition/Filter that didn't
// match every targeted key. Defined here (rather than in exec, which
// depends on this package) so every Driver implementation can return it
// directly instead of reaching into the executor's sentinel set; exec's own
// ErrConditionFailed is this same value under another name, kept for
// callers already matching on it.
var ErrConditionFailed = errors.New("driver: update condition did not match")

// Driver is the contract a storage backend implements. A schema must have
// already been created against the backend (e.g. via Reset) before Exec is
// called against it.
type Driver interface {
	// Capability reports what this backend supports, consulted by the
	// schema Builder and the Planner.
	Capability() schema.Capability

	// Exec issues one Operation against dbSchema and returns its Response.
	Exec(ctx context.Context, dbSchema *db.Schema, op Operation) (*Response, error)

	// Reset drops and recreates every table in dbSchema. Used by tests and
	// by local development bootstrapping; production callers use migrate.
	Reset(ctx context.Context, dbSchema *db.Schema) error

	Close(ctx context.Context) error
}

// Operation is a closed sum of the requests a Driver can execute.
type Operation interface{ operationNode() }

// Insert creates new rows. Stmt is always a lowered (table-level) Insert.
type Insert struct{ Stmt *stmt.Insert }

// GetByKey fetches specific rows of Table by primary key, projecting only
// Select columns.
type GetByKey struct {
	Table  value.TableID
	Select []value.ColumnID
	Keys   []value.Value
}

// FindPkByIndex resolves primary keys via a secondary index before a
// follow-up fetch; used when a filter targets an index column set that
// isn't the primary key.
type FindPkByIndex struct {
	Table  value.TableID
	Index  value.DBIndexID
	Select []value.ColumnID
	Keys   []value.Value
	Filter stmt.Expr
}

// QueryPk scans Table filtered by a primary-key predicate (PKFilter) with
// an additional row Filter pushed down when the backend can evaluate it.
type QueryPk struct {
	Table    value.TableID
	Select   []value.ColumnID
	PKFilter stmt.Expr
	Filter   stmt.Expr
}

// QuerySQL executes an arbitrary lowered Statement, used for joins, set
// operations, and anything outside the point-lookup operations above.
type QuerySQL struct {
	Stmt stmt.Statement
	// Ret names the expected row shape. Empty when the statement returns a
	// row count rather than values.
	Ret []value.Type

	// LastInsertIDHack carries a row count for backends without RETURNING
	// (MySQL). No driver in this module reads it: driver/sql accepts no
	// Insert through QuerySQL, and its Insert operation reconstructs MySQL's
	// generated keys from the insert result's LastInsertId instead.
	LastInsertIDHack *uint64
}

// UpdateByKey updates specific rows of Table by primary key. Returning
// requests the post-update row values rather than just an impacted count.
type UpdateByKey struct {
	Table       value.TableID
	Keys        []value.Value
	Assignments []stmt.Assignment
	Filter      stmt.Expr
	Condition   stmt.Expr
	Returning   bool
}

// DeleteByKey deletes specific rows of Table by primary key, optionally
// constrained by Filter.
type DeleteByKey struct {
	Table  value.TableID
	Keys   []value.Value
	Filter stmt.Expr
}

// TransactionOp tags a Transaction lifecycle request.
type TransactionOp uint8

const (
	TxStart TransactionOp = iota
	TxCommit
	TxRollback
)

// Transaction issues a transaction lifecycle operation. Nested calls
// degrade to SAVEPOINT/RELEASE SAVEPOINT/ROLLBACK TO SAVEPOINT, tracked by
// dialect/sql's NestingTracker (driver/sql's Driver.nesting).
type Transaction struct{ Op TransactionOp }

func (Insert) operationNode()        {}
func (GetByKey) operationNode()      {}
func (FindPkByIndex) operationNode() {}
func (QueryPk) operationNode()       {}
func (QuerySQL) operationNode()      {}
func (UpdateByKey) operationNode()   {}
func (DeleteByKey) operationNode()   {}
func (Transaction) operationNode()   {}

// RowsKind tags the Rows variant.
type RowsKind uint8

const (
	RowsCount RowsKind = iota
	RowsValues
)

// Rows is the payload of a Response: either the number of rows an
// Insert/Update/Delete impacted, or a stream of result rows.
type Rows struct {
	Kind   RowsKind
	Count  uint64
	Values *stmt.ValueStream
}

func CountRows(n uint64) Rows                  { return Rows{Kind: RowsCount, Count: n} }
func ValueRows(v *stmt.ValueStream) Rows        { return Rows{Kind: RowsValues, Values: v} }
func EmptyValueRows(ty value.Type) Rows         { return ValueRows(stmt.ValueStreamFromSlice(ty, nil)) }
func (r Rows) IsCount() bool                    { return r.Kind == RowsCount }
func (r Rows) IsValues() bool                   { return r.Kind == RowsValues }

// Response wraps the result of one Operation.
type Response struct{ Rows Rows }
