// Package config loads the connection profile a driver and migrate runner
// are built from: the driver DSN, an optional table name prefix (for
// test-isolation presets, mirroring the Builder.WithTableNamePrefix option),
// and the migration file naming mode. Profiles are plain YAML, parsed with
// gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// NamingMode selects how migrate.Writer names generated migration files.
type NamingMode uint8

const (
	// Sequential names files NNNN_name.sql, numbered by the next unused
	// sequence in the migrations directory.
	Sequential NamingMode = iota
	// Timestamp names files YYYYMMDD_HHMMSS_name.sql.
	Timestamp
)

// String renders the mode the way it appears in YAML profiles.
func (m NamingMode) String() string {
	switch m {
	case Sequential:
		return "sequential"
	case Timestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// UnmarshalYAML accepts the lowercase names used in profile files.
func (m *NamingMode) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch s {
	case "", "sequential":
		*m = Sequential
	case "timestamp":
		*m = Timestamp
	default:
		return fmt.Errorf("config: unknown migration_naming %q", s)
	}
	return nil
}

// MarshalYAML renders the mode back to its lowercase name.
func (m NamingMode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

// Profile is a single named connection profile: the driver DSN plus the
// options a Builder/migrate.Writer need to target it.
type Profile struct {
	Driver          string     `yaml:"driver"`
	DSN             string     `yaml:"dsn"`
	TableNamePrefix string     `yaml:"table_name_prefix,omitempty"`
	MigrationsDir   string     `yaml:"migrations_dir,omitempty"`
	MigrationNaming NamingMode `yaml:"migration_naming,omitempty"`
}

// File is a parsed profile file: one or more named profiles, plus which one
// is active when a caller doesn't name one explicitly.
type File struct {
	Default  string             `yaml:"default,omitempty"`
	Profiles map[string]Profile `yaml:"profiles"`
}

// Load parses a profile file from r.
func Load(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("config: parse profile: %w", err)
	}
	return &f, nil
}

// LoadFile opens path and parses it as a profile file.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Profile returns the named profile, or the file's default profile when
// name is empty. Returns an error if the name (or default) isn't present.
func (f *File) Profile(name string) (Profile, error) {
	if name == "" {
		name = f.Default
	}
	if name == "" {
		return Profile{}, fmt.Errorf("config: no profile name given and no default set")
	}
	p, ok := f.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("config: unknown profile %q", name)
	}
	return p, nil
}
