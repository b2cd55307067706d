package db

import "strings"

const breakpoint = "\n-- lattice:breakpoint\n"

// Migration is a database migration generated from a schema diff by a
// driver.
type Migration struct {
	sql string
}

// NewSQLMigration builds a migration from a single SQL string.
func NewSQLMigration(sql string) Migration { return Migration{sql: sql} }

// NewSQLMigrationWithBreakpoints builds a migration from multiple SQL
// statements, joined with breakpoint markers so Statements can split them
// back out (some drivers must execute DDL statements one at a time).
func NewSQLMigrationWithBreakpoints(statements []string) Migration {
	return Migration{sql: strings.Join(statements, breakpoint)}
}

// Statements splits the migration back into individual SQL statements.
func (m Migration) Statements() []string {
	return strings.Split(m.sql, breakpoint)
}

// SQL returns the migration's full SQL text.
func (m Migration) SQL() string { return m.sql }

// AppliedMigration records metadata about a migration already applied to a
// database. The migrate package keeps no ledger table of applied
// migrations.
type AppliedMigration struct {
	ID uint64
}
