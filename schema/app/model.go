// Package app holds the application-level schema: models, fields, indices,
// and relations as resolved by the schema Builder from a caller's
// ModelDescriptors, with opaque IDs assigned (value.ModelID,
// value.FieldID, value.IndexID).
package app

import "github.com/lattice-orm/lattice/value"

// Model is an app-level aggregate: its fields, primary key, indices, and
// relations (BelongsTo, HasOne, HasMany, Embedded).
type Model struct {
	ID      value.ModelID
	Name    string
	Fields  []*Field
	Indices []*Index

	// PrimaryKey indexes into Indices; the primary-key index always has
	// Index.PrimaryKey set and appears first among Indices by convention.
	PrimaryKey int
}

// Field looks up a field by its index within the model. Panics on an
// out-of-range index: field indices are only minted by the Builder.
func (m *Model) Field(id value.FieldID) *Field {
	if id.Model != m.ID || id.Index < 0 || id.Index >= len(m.Fields) {
		panic("app: invalid field ID")
	}
	return m.Fields[id.Index]
}

// PrimaryKeyIndex returns the model's primary-key Index.
func (m *Model) PrimaryKeyIndex() *Index {
	return m.Indices[m.PrimaryKey]
}

// FieldByName returns the field named name, or nil.
func (m *Model) FieldByName(name string) *Field {
	for _, f := range m.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// PrimaryKeyFields returns the IDs of every field marked PrimaryKey, in
// declaration order. Used by the Builder to resolve a BelongsTo relation's
// foreign key against its target's primary key before the target's primary
// key Index has been built.
func (m *Model) PrimaryKeyFields() []value.FieldID {
	var out []value.FieldID
	for _, f := range m.Fields {
		if f.PrimaryKey {
			out = append(out, f.ID)
		}
	}
	return out
}
