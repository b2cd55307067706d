package stmt

import "github.com/lattice-orm/lattice/value"

// HashIndex is a hash index over a slice of Values, keyed by a composite of
// field Projections. It backs NestedMerge's child-row lookup: build one
// index per batch of child rows keyed on the foreign key columns, then
// probe it once per parent row.
//
// Construction and lookup are O(1) amortized. Keys are not required to be
// unique: NestedMerge is a one-to-many join, so Find returns every matching
// row.
type HashIndex struct {
	m map[string][]value.Value
}

// NewHashIndex builds an index over values, keyed by the fields selected by
// projections. Each entry in values is stored under its own composite key;
// rows sharing a key accumulate into the same bucket.
func NewHashIndex(values []value.Value, projections []value.Projection) *HashIndex {
	idx := &HashIndex{m: make(map[string][]value.Value, len(values))}
	for i := range values {
		ks := keyString(extractKey(values[i], projections))
		idx.m[ks] = append(idx.m[ks], values[i])
	}
	return idx
}

// Find returns every row whose composite key equals key.
func (h *HashIndex) Find(key []value.Value) ([]value.Value, bool) {
	v, ok := h.m[keyString(key)]
	return v, ok
}

func extractKey(v value.Value, projections []value.Projection) []value.Value {
	key := make([]value.Value, len(projections))
	for i, proj := range projections {
		fv, ok := value.Project(v, proj)
		if !ok {
			panic("HashIndex: projection yielded no value")
		}
		key[i] = fv
	}
	return key
}

func keyString(key []value.Value) string {
	// Values in a hash-index key are always scalar (FK columns), so a
	// simple delimited String() join is a safe, allocation-light map key.
	s := ""
	for _, v := range key {
		s += v.String() + "\x1f"
	}
	return s
}
