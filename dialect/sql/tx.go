package sql

import (
	"fmt"

	"github.com/lattice-orm/lattice/dialect"
)

// NestingTracker implements the generic transaction-nesting algebra: depth
// 0 has no open transaction; Begin opens the outermost one; Savepoint opens a
// nested one within it. Commit/Rollback at depth 1 close the outermost
// transaction; at any deeper depth they release/return-to the innermost
// savepoint instead, leaving outer levels open. A NestingTracker carries no
// dialect knowledge of its own — dialect wrappers below select the outer
// BEGIN/START TRANSACTION keyword and isolation-level syntax.
type NestingTracker struct {
	depth uint
}

// Depth reports the current nesting depth (0 = no open transaction).
func (t *NestingTracker) Depth() uint { return t.depth }

// Begin opens the outermost transaction, incrementing depth from 0 to 1.
// Callers combine this with a dialect wrapper (BeginStatement) to get the
// actual SQL text; NestingTracker only tracks depth and savepoint naming.
func (t *NestingTracker) Begin() {
	t.depth++
}

// Savepoint opens a nested transaction, returning the SAVEPOINT statement to
// issue. Each call names a fresh savepoint one level deeper than the last.
func (t *NestingTracker) Savepoint() string {
	t.depth++
	return fmt.Sprintf("SAVEPOINT sp_%d", t.depth)
}

// Commit closes the innermost open transaction, returning the statement to
// issue: COMMIT at depth 1 (closing the outermost transaction), or RELEASE
// SAVEPOINT sp_<n> at any deeper depth (leaving outer levels open).
func (t *NestingTracker) Commit() string {
	if t.depth == 0 {
		panic("sql: commit with no open transaction")
	}
	n := t.depth
	t.depth--
	if n == 1 {
		return "COMMIT"
	}
	return fmt.Sprintf("RELEASE SAVEPOINT sp_%d", n)
}

// Rollback aborts the innermost open transaction, returning the statement
// to issue: ROLLBACK at depth 1, or ROLLBACK TO SAVEPOINT sp_<n> at any
// deeper depth. Rolling back to a savepoint leaves the savepoint
// itself in place (a subsequent nested Savepoint/Commit/Rollback at the same
// depth re-enters and overwrites it — sp_<n> is a name, not a stack slot).
func (t *NestingTracker) Rollback() string {
	if t.depth == 0 {
		panic("sql: rollback with no open transaction")
	}
	n := t.depth
	t.depth--
	if n == 1 {
		return "ROLLBACK"
	}
	return fmt.Sprintf("ROLLBACK TO SAVEPOINT sp_%d", n)
}

// IsolationLevel tags a SQL transaction isolation level.
type IsolationLevel uint8

const (
	// ReadCommitted is the Postgres/MySQL default.
	ReadCommitted IsolationLevel = iota
	RepeatableRead
	Serializable
)

func (l IsolationLevel) sql() string {
	switch l {
	case ReadCommitted:
		return "READ COMMITTED"
	case RepeatableRead:
		return "REPEATABLE READ"
	default:
		return "SERIALIZABLE"
	}
}

// BeginStatements returns the statement(s) a fresh NestingTracker.Begin()
// needs to actually open a transaction at the given isolation level, per
// dialect:
//
//   - SQLite: a bare "BEGIN"; any isolation level other than Serializable is
//     rejected with UnsupportedFeature (SQLite only offers serializable
//     transactions).
//   - Postgres: isolation is embedded directly in BEGIN's own clause.
//   - MySQL: isolation must be set in a separate statement preceding
//     START TRANSACTION (MySQL's session-scoped SET TRANSACTION applies to
//     the next transaction only, not the statement that opens it).
//
// The returned slice is always issued in order; for MySQL it has two
// elements, otherwise one.
func BeginStatements(d dialect.Dialect, level IsolationLevel) ([]string, error) {
	switch d {
	case dialect.SQLite:
		if level != Serializable {
			return nil, fmt.Errorf("sql: %w: sqlite only supports Serializable transactions, got %v", errUnsupportedFeature, level)
		}
		return []string{"BEGIN"}, nil
	case dialect.Postgres:
		return []string{"BEGIN ISOLATION LEVEL " + level.sql()}, nil
	case dialect.MySQL:
		return []string{
			"SET TRANSACTION ISOLATION LEVEL " + level.sql(),
			"START TRANSACTION",
		}, nil
	default:
		return nil, fmt.Errorf("sql: unknown dialect %q", d)
	}
}

// errUnsupportedFeature is a local sentinel rather than importing the root
// package's error taxonomy, avoiding an import cycle (the root `lattice`
// package doesn't depend on dialect/sql). Being unexported, it is not
// matched by the root package's error translation: the rejection reaches a
// Db caller as DriverOperationFailed, not UnsupportedFeature.
var errUnsupportedFeature = fmt.Errorf("unsupported feature")
