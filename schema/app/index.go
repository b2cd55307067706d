package app

import "github.com/lattice-orm/lattice/value"

// IndexOp is the comparison operation an indexed field supports (equality
// indices only today; range/partition ops are a Builder extension point).
type IndexOp uint8

const (
	IndexOpEq IndexOp = iota
)

// IndexScope distinguishes partition-key fields (required prefix for
// distributed/KV backends) from local-scope fields (ordered within a
// partition). SQL backends treat every field as local scope.
type IndexScope uint8

const (
	ScopePartition IndexScope = iota
	ScopeLocal
)

func (s IndexScope) IsLocal() bool { return s == ScopeLocal }

// IndexField is one field participating in an Index, with its comparison
// op and scope.
type IndexField struct {
	Field value.FieldID
	Op    IndexOp
	Scope IndexScope
}

// Index is an ordered list of fields over a Model.
type Index struct {
	ID         value.IndexID
	Fields     []IndexField
	Unique     bool
	PrimaryKey bool
}

// firstLocalField returns the position of the first local-scope field, or
// len(Fields) if every field is partition-scoped.
func (ix *Index) firstLocalField() int {
	for i, f := range ix.Fields {
		if f.Scope.IsLocal() {
			return i
		}
	}
	return len(ix.Fields)
}

// PartitionFields returns the leading partition-scope fields.
func (ix *Index) PartitionFields() []IndexField {
	return ix.Fields[:ix.firstLocalField()]
}

// LocalFields returns the trailing local-scope fields.
func (ix *Index) LocalFields() []IndexField {
	return ix.Fields[ix.firstLocalField():]
}
