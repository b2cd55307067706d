package migrate_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-orm/lattice/config"
	"github.com/lattice-orm/lattice/migrate"
	"github.com/lattice-orm/lattice/schema/db"
)

func TestFileNameSequential(t *testing.T) {
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	name := migrate.FileName(config.Sequential, 3, "add users table", now)
	assert.Equal(t, "0003_add_users_table.sql", name)
}

func TestFileNameTimestamp(t *testing.T) {
	now := time.Date(2026, 7, 31, 10, 15, 30, 0, time.UTC)
	name := migrate.FileName(config.Timestamp, 1, "Add Users Table!", now)
	assert.Equal(t, "20260731_101530_add_users_table.sql", name)
}

func TestWriterAssignsIncrementingSequence(t *testing.T) {
	dir := t.TempDir()
	w, err := migrate.NewWriter(dir)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first, err := w.Write(config.Sequential, "create users", db.NewSQLMigration("CREATE TABLE users();"), now)
	require.NoError(t, err)
	assert.Equal(t, "0001_create_users.sql", first)

	second, err := w.Write(config.Sequential, "create todos", db.NewSQLMigration("CREATE TABLE todos();"), now)
	require.NoError(t, err)
	assert.Equal(t, "0002_create_todos.sql", second)

	content, err := os.ReadFile(filepath.Join(dir, second))
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE todos();", string(content))
}

func TestNextSequenceOnEmptyDirStartsAtOne(t *testing.T) {
	w, err := migrate.NewWriter(t.TempDir())
	require.NoError(t, err)
	seq, err := w.NextSequence()
	require.NoError(t, err)
	assert.Equal(t, 1, seq)
}
