package schema

import "github.com/lattice-orm/lattice/value"

// FieldMapping maps one app-level field to the column(s) that store it. A
// primitive field maps to exactly one column; an embedded field maps to one
// column per sub-field, in declaration order. Relation fields have no
// mapping: a BelongsTo's foreign-key columns are mapped through its own
// primitive foreign-key fields.
type FieldMapping struct {
	Columns []value.ColumnID
}

// ModelMapping is the correspondence between one model and its table.
type ModelMapping struct {
	Model  value.ModelID
	Table  value.TableID
	Fields map[value.FieldID]FieldMapping
}

// Column returns the columns backing field, panicking if field isn't
// mapped. The Builder assigns a mapping to every primitive and embedded
// field; relation fields have none, so passing one panics.
func (m *ModelMapping) Column(field value.FieldID) []value.ColumnID {
	fm, ok := m.Fields[field]
	if !ok {
		panic("schema: field has no column mapping")
	}
	return fm.Columns
}

// Mapping defines the correspondence between app-level models and
// database-level tables. Built once during schema construction and
// immutable at runtime; it is the translation layer the Lowerer uses to
// rewrite model-level statements into table-level statements.
type Mapping struct {
	Models map[value.ModelID]*ModelMapping
}

// Model returns the mapping for id, panicking if id is unknown.
func (m *Mapping) Model(id value.ModelID) *ModelMapping {
	mm, ok := m.Models[id]
	if !ok {
		panic("schema: invalid model ID")
	}
	return mm
}
