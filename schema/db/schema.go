// Package db holds the storage-level schema: tables, columns, and indices
// chosen by the Builder for a given driver Capability. Storage types reuse
// ariga.io/atlas's sql/schema representation (schema.Table/Column/Index/
// ForeignKey) rather than a bespoke one, so DDL generation (dialect/sql/ddl.go)
// can work from the same column/index types atlas's own tooling understands.
package db

import (
	"fmt"

	atlasschema "ariga.io/atlas/sql/schema"

	"github.com/lattice-orm/lattice/value"
)

// Table is one storage table, wrapping an *atlasschema.Table plus the
// ColumnID-addressable view the query engine needs (atlas addresses columns
// by name; the engine addresses them by opaque ColumnID for O(1) lookups
// from a lowered statement).
type Table struct {
	ID      value.TableID
	Atlas   *atlasschema.Table
	Indices []Index
}

// Column returns the atlas column at the given ColumnID's index within this
// table, panicking on an out-of-range index.
func (t *Table) Column(id value.ColumnID) *atlasschema.Column {
	if id.Table != t.ID || id.Index < 0 || id.Index >= len(t.Atlas.Columns) {
		panic("db: invalid column ID")
	}
	return t.Atlas.Columns[id.Index]
}

// Index is a storage-level index over a Table, mirroring a subset of
// atlasschema.Index that the planner cares about (column order and
// uniqueness; atlas's richer Index/IndexPart attributes are preserved on
// Atlas for DDL purposes).
type Index struct {
	ID         value.DBIndexID
	Atlas      *atlasschema.Index
	Columns    []value.ColumnID
	Unique     bool
	PrimaryKey bool
}

// Schema is the full storage-level schema: every table the Builder emitted,
// indexed by value.TableID.
type Schema struct {
	Tables []*Table
}

// Table returns the table registered under id, panicking on an unknown ID.
func (s *Schema) Table(id value.TableID) *Table {
	if int(id) >= len(s.Tables) {
		panic("db: invalid table ID")
	}
	t := s.Tables[id]
	if t == nil {
		panic("db: invalid table ID")
	}
	return t
}

// Column resolves a ColumnID through its owning table.
func (s *Schema) Column(id value.ColumnID) *atlasschema.Column {
	return s.Table(id.Table).Column(id)
}

// PrimaryKeyColumns returns the columns of t's primary key index, or nil if
// the table has none. Drivers that only hold a *Schema (no app-level
// Model/Mapping) use this to build key-lookup WHERE clauses for GetByKey,
// FindPkByIndex, and QueryPk operations.
func (t *Table) PrimaryKeyColumns() []value.ColumnID {
	for i := range t.Indices {
		if t.Indices[i].PrimaryKey {
			return t.Indices[i].Columns
		}
	}
	return nil
}

// Index resolves a DBIndexID through its owning table.
func (s *Schema) Index(id value.DBIndexID) *Index {
	t := s.Table(id.Table)
	if id.Index < 0 || id.Index >= len(t.Indices) {
		panic(fmt.Sprintf("db: invalid index ID %+v", id))
	}
	return &t.Indices[id.Index]
}

// AtlasSchema projects Schema into a plain *atlasschema.Schema, atlas's own
// tree rather than this package's ID-addressable wrapper. No code in the
// module passes the result to atlas's diff/migrate APIs.
func (s *Schema) AtlasSchema(name string) *atlasschema.Schema {
	out := atlasschema.New(name)
	for _, t := range s.Tables {
		if t != nil {
			out.AddTables(t.Atlas)
		}
	}
	return out
}
