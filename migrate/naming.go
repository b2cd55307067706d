// Package migrate writes migration files and schema snapshots to a
// directory: schema/db.Migration supplies the SQL payload, atlas's
// sql/migrate.LocalDir handles the directory I/O. File naming and the
// snapshot format are this repository's own conventions, not atlas's.
package migrate

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	atlasmigrate "ariga.io/atlas/sql/migrate"

	"github.com/lattice-orm/lattice/config"
	"github.com/lattice-orm/lattice/schema/db"
)

var seqPrefix = regexp.MustCompile(`^(\d{4})_`)

// Writer appends migration files to a directory.
type Writer struct {
	dir  *atlasmigrate.LocalDir
	path string
}

// NewWriter opens (creating if necessary) the migrations directory at path.
func NewWriter(path string) (*Writer, error) {
	dir, err := atlasmigrate.NewLocalDir(path)
	if err != nil {
		return nil, fmt.Errorf("migrate: open dir %s: %w", path, err)
	}
	return &Writer{dir: dir, path: path}, nil
}

// NextSequence scans the directory for NNNN_*.sql files and returns one past
// the highest sequence found, for Sequential naming. An empty or missing
// directory starts at 1.
func (w *Writer) NextSequence() (int, error) {
	entries, err := os.ReadDir(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, fmt.Errorf("migrate: read dir %s: %w", w.path, err)
	}
	max := 0
	for _, e := range entries {
		m := seqPrefix.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max + 1, nil
}

// FileName renders a migration file's name for the given naming mode.
// Sequential produces NNNN_name.sql; Timestamp produces
// YYYYMMDD_HHMMSS_name.sql.
func FileName(mode config.NamingMode, seq int, name string, now time.Time) string {
	slug := slugify(name)
	if mode == config.Timestamp {
		return fmt.Sprintf("%s_%s.sql", now.UTC().Format("20060102_150405"), slug)
	}
	return fmt.Sprintf("%04d_%s.sql", seq, slug)
}

func slugify(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastWasSep := true
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
			lastWasSep = false
			continue
		}
		if !lastWasSep {
			b.WriteByte('_')
			lastWasSep = true
		}
	}
	return strings.Trim(b.String(), "_")
}

// Write renders m's SQL to a new file named per mode, and returns the name
// it wrote. Sequential callers should treat the returned sequence as
// advisory only under concurrent writers; this package does no locking.
func (w *Writer) Write(mode config.NamingMode, name string, m db.Migration, now time.Time) (string, error) {
	seq, err := w.NextSequence()
	if err != nil {
		return "", err
	}
	fname := FileName(mode, seq, name, now)
	if err := w.dir.WriteFile(fname, []byte(m.SQL())); err != nil {
		return "", fmt.Errorf("migrate: write %s: %w", fname, err)
	}
	return fname, nil
}
