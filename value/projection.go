package value

// Step is one hop of a Projection. Only field-index steps exist: Value is
// always positional, never keyed by name (see schema.Mapping for the
// name<->position translation).
type Step struct {
	Field int
}

// Projection is an ordered list of Steps navigating into a Record/List.
// The identity projection is the empty slice.
type Projection []Step

// Identity returns the empty (no-op) projection.
func Identity() Projection { return nil }

// FieldProjection returns a single-step projection into field i.
func FieldProjection(i int) Projection { return Projection{{Field: i}} }

func (p Projection) IsEmpty() bool { return len(p) == 0 }
func (p Projection) Len() int      { return len(p) }

// Push appends a field step, returning the extended projection.
func (p Projection) Push(i int) Projection { return append(append(Projection{}, p...), Step{Field: i}) }

// Entry is a read-only cursor produced by navigating a Projection into either
// a Value or (when the base is not constant) an expression node. No function
// in the module returns an Entry; the constant folder uses Project directly.
type Entry struct {
	Value Value
	// IsExpr is true when the projection navigated into a non-constant
	// expression and folding must be deferred.
	IsExpr bool
}

// Project applies p to v, returning the nested value. Reports ok=false if the
// projection cannot be applied (e.g. a Field step into a non-Record/List).
func Project(v Value, p Projection) (Value, bool) {
	cur := v
	for _, step := range p {
		switch cur.kind {
		case KindRecord:
			if step.Field < 0 || step.Field >= len(cur.record) {
				return Value{}, false
			}
			cur = cur.record[step.Field]
		case KindSparseRecord:
			idx := -1
			for i, pos := range cur.sparse.Fields.Positions() {
				if pos == step.Field {
					idx = i
					break
				}
			}
			if idx < 0 {
				return Null(), true
			}
			cur = cur.sparse.Values[idx]
		default:
			return Value{}, false
		}
	}
	return cur, true
}

// ProjectType descends into ty for typing purposes. Applied to a List it
// returns the element's projected type (evaluation then happens per-item via
// Map).
func ProjectType(ty Type, p Projection) Type {
	cur := ty
	for _, step := range p {
		switch cur.Kind {
		case KindRecord:
			if step.Field < 0 || step.Field >= len(cur.Fields) {
				return Unknown
			}
			cur = cur.Fields[step.Field]
		case KindList:
			cur = ProjectType(*cur.Elem, Projection{step})
		case KindSparseRecord:
			cur = Unknown
		default:
			return Unknown
		}
	}
	return cur
}
