package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-orm/lattice/dialect"
)

func TestNestingTrackerBeginCommit(t *testing.T) {
	var tr NestingTracker
	assert.Equal(t, uint(0), tr.Depth())
	tr.Begin()
	assert.Equal(t, uint(1), tr.Depth())
	assert.Equal(t, "COMMIT", tr.Commit())
	assert.Equal(t, uint(0), tr.Depth())
}

func TestNestingTrackerSavepointNesting(t *testing.T) {
	var tr NestingTracker
	tr.Begin()
	assert.Equal(t, "SAVEPOINT sp_2", tr.Savepoint())
	assert.Equal(t, uint(2), tr.Depth())
	assert.Equal(t, "SAVEPOINT sp_3", tr.Savepoint())
	assert.Equal(t, uint(3), tr.Depth())

	assert.Equal(t, "RELEASE SAVEPOINT sp_3", tr.Commit())
	assert.Equal(t, uint(2), tr.Depth())
	assert.Equal(t, "ROLLBACK TO SAVEPOINT sp_2", tr.Rollback())
	assert.Equal(t, uint(1), tr.Depth())
	assert.Equal(t, "COMMIT", tr.Commit())
	assert.Equal(t, uint(0), tr.Depth())
}

func TestNestingTrackerCommitWithoutBeginPanics(t *testing.T) {
	var tr NestingTracker
	assert.Panics(t, func() { tr.Commit() })
}

func TestNestingTrackerRollbackWithoutBeginPanics(t *testing.T) {
	var tr NestingTracker
	assert.Panics(t, func() { tr.Rollback() })
}

func TestBeginStatements(t *testing.T) {
	t.Run("sqlite only allows serializable", func(t *testing.T) {
		stmts, err := BeginStatements(dialect.SQLite, Serializable)
		require.NoError(t, err)
		assert.Equal(t, []string{"BEGIN"}, stmts)

		_, err = BeginStatements(dialect.SQLite, ReadCommitted)
		assert.Error(t, err)
	})

	t.Run("postgres embeds isolation in BEGIN", func(t *testing.T) {
		stmts, err := BeginStatements(dialect.Postgres, RepeatableRead)
		require.NoError(t, err)
		assert.Equal(t, []string{"BEGIN ISOLATION LEVEL REPEATABLE READ"}, stmts)
	})

	t.Run("mysql needs a separate SET TRANSACTION statement", func(t *testing.T) {
		stmts, err := BeginStatements(dialect.MySQL, ReadCommitted)
		require.NoError(t, err)
		require.Len(t, stmts, 2)
		assert.Equal(t, "SET TRANSACTION ISOLATION LEVEL READ COMMITTED", stmts[0])
		assert.Equal(t, "START TRANSACTION", stmts[1])
	})

	t.Run("unknown dialect", func(t *testing.T) {
		_, err := BeginStatements(dialect.Dialect("oracle"), Serializable)
		assert.Error(t, err)
	})
}
