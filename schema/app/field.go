package app

import "github.com/lattice-orm/lattice/value"

// FieldTyKind tags the Field.Ty variant.
type FieldTyKind uint8

const (
	FieldPrimitive FieldTyKind = iota
	FieldEmbedded
	FieldBelongsTo
	FieldHasMany
	FieldHasOne
)

// AutoStrategy describes how the Builder/driver populates a field on
// insert when the caller doesn't supply a value.
type AutoStrategy uint8

const (
	AutoNone AutoStrategy = iota
	AutoIncrement
	AutoUUID
	AutoCreatedAt
	AutoUpdatedAt
)

// ConstraintKind tags a Constraint variant. Length is the only kind
// defined.
type ConstraintKind uint8

const (
	ConstraintLength ConstraintKind = iota
)

// Constraint is a declared restriction on a primitive field's value. The
// Builder copies it onto the field; nothing in the engine checks it before
// a write reaches the driver.
type Constraint struct {
	Kind     ConstraintKind
	MinLen   *int
	MaxLen   *int
}

// FieldAttr carries the attributes any primitive or embedded field can
// declare: auto-population strategy, uniqueness, indexing and constraints.
type FieldAttr struct {
	Auto        AutoStrategy
	Unique      bool
	Indexed     bool
	Constraints []Constraint
}

// ForeignKeyPair names one (source field, target field) pair of a BelongsTo
// relation's composite foreign key.
type ForeignKeyPair struct {
	Source value.FieldID
	Target value.FieldID
}

// BelongsTo is a relation field: the source model holds the FK columns
// referencing the target model's primary key.
type BelongsTo struct {
	Target      value.ModelID
	ForeignKey  []ForeignKeyPair
}

// HasMany is the inverse of a BelongsTo with no storage of its own; Pair
// names the BelongsTo field on Target that this relation mirrors.
type HasMany struct {
	Target value.ModelID
	Pair   value.FieldID
}

// HasOne is like HasMany but cardinality-1.
type HasOne struct {
	Target value.ModelID
	Pair   value.FieldID
}

// EmbeddedField is one field of an Embedded struct; relations are forbidden
// inside embedded structs and rejected by the Builder's verify pass.
type EmbeddedField struct {
	Name     string
	Ty       value.Type
	Nullable bool
	Attrs    FieldAttr
}

// Embedded groups a fixed set of primitive sub-fields stored inline as a
// SparseRecord/Record column group rather than a separate table.
type Embedded struct {
	Name   string
	Fields []EmbeddedField
}

// Field is one field of a Model: primitive, embedded, or a relation.
type Field struct {
	ID   value.FieldID
	Name string
	Ty   FieldTyKind

	// Primitive fields only.
	PrimitiveTy value.Type
	Nullable    bool
	Attrs       FieldAttr

	// Ty-specific payloads; exactly one is populated per Ty.
	EmbeddedField *Embedded
	BelongsToRel  *BelongsTo
	HasManyRel    *HasMany
	HasOneRel     *HasOne

	// PrimaryKey is set on primitive fields that participate in the
	// model's primary key.
	PrimaryKey bool
}

// ExpectBelongsTo returns the field's BelongsTo payload, panicking if Ty
// isn't FieldBelongsTo. Schema verification calls it only after checking
// the field's kind.
func (f *Field) ExpectBelongsTo() *BelongsTo {
	if f.Ty != FieldBelongsTo {
		panic("app: field is not a BelongsTo relation")
	}
	return f.BelongsToRel
}
