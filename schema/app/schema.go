package app

import "github.com/lattice-orm/lattice/value"

// Schema is the app-level schema: every registered Model, indexed by
// value.ModelID. Built once by schema.Builder and shared read-only
// thereafter.
type Schema struct {
	Models []*Model
}

// Model returns the model registered under id, panicking on an unknown ID
// (IDs are opaque and only minted by the Builder).
func (s *Schema) Model(id value.ModelID) *Model {
	if int(id) >= len(s.Models) {
		panic("app: invalid model ID")
	}
	m := s.Models[id]
	if m == nil {
		panic("app: invalid model ID")
	}
	return m
}

// Field resolves a FieldID through its owning model.
func (s *Schema) Field(id value.FieldID) *Field {
	return s.Model(id.Model).Field(id)
}

// Index resolves an IndexID through its owning model.
func (s *Schema) Index(id value.IndexID) *Index {
	m := s.Model(id.Model)
	if id.Index < 0 || id.Index >= len(m.Indices) {
		panic("app: invalid index ID")
	}
	return m.Indices[id.Index]
}
