package schema

import (
	"github.com/lattice-orm/lattice/schema/app"
	"github.com/lattice-orm/lattice/value"
)

// RelationKind tags which relation a FieldDescriptor declares.
type RelationKind uint8

const (
	RelationNone RelationKind = iota
	RelationBelongsTo
	RelationHasMany
	RelationHasOne
)

// RelationDescriptor is the user-facing (pre-ID) description of a relation
// field, resolved against other models' descriptors during Build.
type RelationDescriptor struct {
	Kind RelationKind

	// TargetModel is the target model's descriptor Name.
	TargetModel string

	// ForeignKeyFields names the source fields (BelongsTo only) that hold
	// the foreign key, in order; they must be primitive fields already
	// declared on this model.
	ForeignKeyFields []string

	// PairField names the BelongsTo field on TargetModel this relation
	// mirrors (HasMany/HasOne only).
	PairField string
}

// FieldDescriptor is the user-facing description of one field, before ID
// assignment.
type FieldDescriptor struct {
	Name       string
	Ty         value.Type
	Nullable   bool
	PrimaryKey bool
	Unique     bool
	Indexed    bool
	Auto       app.AutoStrategy
	Constraints []app.Constraint

	Relation *RelationDescriptor

	// Embedded, when set, overrides Ty: the field stores a fixed group of
	// primitive sub-fields inline.
	Embedded *EmbeddedDescriptor
}

// EmbeddedDescriptor describes an Embedded field's sub-fields.
type EmbeddedDescriptor struct {
	Name   string
	Fields []FieldDescriptor
}

// IndexDescriptor declares a secondary index over a field sequence.
type IndexDescriptor struct {
	Fields []string
	Unique bool
}

// ModelDescriptor is the user-facing description of one model, submitted to
// Builder.AddModel before ID assignment.
type ModelDescriptor struct {
	Name string

	// Table overrides the derived table name; empty means "derive it".
	Table string

	Fields  []FieldDescriptor
	Indices []IndexDescriptor
}
