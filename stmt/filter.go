package stmt

// Filter holds an optional predicate expression. Repeated calls to Add
// AND-merge rather than overwrite, so that successive `.Where(...)` calls
// on a query builder compose correctly.
type Filter struct {
	expr *Expr
}

// FilterOf wraps e as a present Filter.
func FilterOf(e Expr) Filter { return Filter{expr: &e} }

// IsSome reports whether a predicate is present.
func (f Filter) IsSome() bool { return f.expr != nil }

// IsNone reports the absence of a predicate.
func (f Filter) IsNone() bool { return f.expr == nil }

// Expr returns the predicate, or the constant `true` when absent.
func (f Filter) Expr() Expr {
	if f.expr == nil {
		return True
	}
	return *f.expr
}

// Set replaces the predicate outright.
func (f *Filter) Set(e Expr) { f.expr = &e }

// Add AND-merges other into f: (none, none) -> none; (some, none) or (none,
// some) -> the present side; (some, some) -> And(f, other).
func (f *Filter) Add(other Filter) {
	switch {
	case f.expr != nil && other.expr != nil:
		merged := And(*f.expr, *other.expr)
		f.expr = &merged
	case f.expr != nil:
		// other is none; keep f as-is.
	default:
		f.expr = other.expr
	}
}
