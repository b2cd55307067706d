package stmt

import "github.com/lattice-orm/lattice/value"

// Path describes a traversal through fields starting at Root, possibly
// crossing relations. The root model itself is not part of Projection.
type Path struct {
	Root       value.ModelID
	Projection value.Projection
}

// PathForModel returns the identity path (the root model itself), used as an
// `include` entry that preloads nothing further.
func PathForModel(root value.ModelID) Path {
	return Path{Root: root, Projection: value.Identity()}
}

// PathForField returns a single-step path into field index on root.
func PathForField(root value.ModelID, field int) Path {
	return Path{Root: root, Projection: value.FieldProjection(field)}
}

func (p Path) IsEmpty() bool { return p.Projection.IsEmpty() }
func (p Path) Len() int      { return p.Projection.Len() }

// Chain extends p with another path's projection steps, used when composing
// nested `include` paths across a relation boundary.
func (p Path) Chain(other Path) Path {
	proj := p.Projection
	for _, step := range other.Projection {
		proj = proj.Push(step.Field)
	}
	return Path{Root: p.Root, Projection: proj}
}

// IntoExpr lowers p to a reference expression: the identity path becomes a
// reference to the ancestor model itself; a non-empty path becomes a
// SelfField reference to its first step, further projected by the remaining
// steps.
func (p Path) IntoExpr() Expr {
	if p.IsEmpty() {
		return AncestorModelRef(0)
	}
	first := p.Projection[0].Field
	ret := SelfFieldRef(value.FieldID{Model: p.Root, Index: first})
	if rest := p.Projection[1:]; len(rest) > 0 {
		ret = Project(ret, rest)
	}
	return ret
}

// PathFieldSet is a bitset over field positions, used by SparseRecord/
// Returning to describe which fields of a model are present/included.
type PathFieldSet = value.BitSet
