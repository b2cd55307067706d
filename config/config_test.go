package config_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-orm/lattice/config"
)

const sample = `
default: dev
profiles:
  dev:
    driver: sqlite
    dsn: "file:dev.db"
    table_name_prefix: "dev_"
    migrations_dir: "./migrations"
    migration_naming: timestamp
  test:
    driver: sqlite
    dsn: ":memory:"
`

func TestLoadParsesNamedProfiles(t *testing.T) {
	f, err := config.Load(strings.NewReader(sample))
	require.NoError(t, err)

	dev, err := f.Profile("dev")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", dev.Driver)
	assert.Equal(t, "dev_", dev.TableNamePrefix)
	assert.Equal(t, config.Timestamp, dev.MigrationNaming)

	test, err := f.Profile("test")
	require.NoError(t, err)
	assert.Equal(t, config.Sequential, test.MigrationNaming)
}

func TestProfileFallsBackToDefault(t *testing.T) {
	f, err := config.Load(strings.NewReader(sample))
	require.NoError(t, err)

	p, err := f.Profile("")
	require.NoError(t, err)
	assert.Equal(t, "file:dev.db", p.DSN)
}

func TestProfileRejectsUnknownName(t *testing.T) {
	f, err := config.Load(strings.NewReader(sample))
	require.NoError(t, err)

	_, err = f.Profile("staging")
	assert.Error(t, err)
}

func TestUnknownMigrationNamingIsRejected(t *testing.T) {
	_, err := config.Load(strings.NewReader(`
profiles:
  dev:
    driver: sqlite
    dsn: ":memory:"
    migration_naming: nightly
`))
	assert.Error(t, err)
}

func TestNamingModeString(t *testing.T) {
	assert.Equal(t, "sequential", config.Sequential.String())
	assert.Equal(t, "timestamp", config.Timestamp.String())
}
