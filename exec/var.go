// Package exec runs the action sequence a plan.Planner produces against a
// driver.Driver: point lookups, in-memory filter/project steps, preloaded-
// relation merging, and the conditional-update fallback for backends
// lacking native ConditionalUpdateReturning. Row-level work (residual
// filters, projections, merge keys) goes through stmt.Eval and
// stmt.ValueStream rather than a separate evaluation layer.
package exec

import (
	"fmt"

	"github.com/lattice-orm/lattice/driver"
	"github.com/lattice-orm/lattice/value"
)

// VarID identifies one pipeline variable slot.
type VarID int

// VarDecls accumulates variable type declarations while a plan.Planner
// builds an action sequence; Register is called once per action that
// produces a value, and Build freezes the table into a VarStore for Exec.
type VarDecls struct {
	types []value.Type
}

// Register reserves a new slot of type ty and returns its VarID.
func (d *VarDecls) Register(ty value.Type) VarID {
	id := VarID(len(d.types))
	d.types = append(d.types, ty)
	return id
}

// Build freezes the declared slots into a VarStore.
func (d *VarDecls) Build() *VarStore {
	return &VarStore{types: append([]value.Type(nil), d.types...)}
}

// Output names where an action stores its result and how many downstream
// actions will consume it.
type Output struct {
	Var     VarID
	NumUses int
}

type varEntry struct {
	rows      driver.Rows
	remaining int
}

// VarStore is the slab of pipeline variable slots one Plan threads
// through its action sequence.
type VarStore struct {
	types []value.Type
	slots []*varEntry
}

// NewVarStore builds a VarStore over the given declared slot types.
func NewVarStore(types []value.Type) *VarStore { return &VarStore{types: types} }

func (s *VarStore) ensure(v VarID) {
	for len(s.slots) <= int(v) {
		s.slots = append(s.slots, nil)
	}
}

// Store records rows at v, to be consumed numUses times by downstream
// actions. A Values payload is relabeled to v's declared element type.
func (s *VarStore) Store(v VarID, numUses int, rows driver.Rows) {
	s.ensure(v)
	if rows.Kind == driver.RowsValues && rows.Values != nil && int(v) < len(s.types) {
		rows.Values = rows.Values.WithType(s.types[v])
	}
	s.slots[v] = &varEntry{rows: rows, remaining: numUses}
}

// Load consumes one use of the rows stored at v. On the final use the
// stored entry is handed over and the slot cleared; on an earlier use a
// Values stream is split via ValueStream.Dup so this call and every
// remaining caller see an independent replay of the same rows.
func (s *VarStore) Load(v VarID) (driver.Rows, error) {
	e := s.slots[v]
	if e == nil {
		panic(fmt.Sprintf("exec: no value at variable slot %d", v))
	}
	if e.remaining <= 1 {
		s.slots[v] = nil
		return e.rows, nil
	}
	e.remaining--
	if e.rows.Kind != driver.RowsValues || e.rows.Values == nil {
		return e.rows, nil
	}
	a, b, err := e.rows.Values.Dup()
	if err != nil {
		return driver.Rows{}, err
	}
	e.rows.Values = a
	return driver.ValueRows(b), nil
}

// collectValues loads v and drains it into a slice, failing if v holds a
// Count rather than Values.
func (s *VarStore) collectValues(v VarID) ([]value.Value, error) {
	rows, err := s.Load(v)
	if err != nil {
		return nil, err
	}
	if rows.Kind != driver.RowsValues {
		return nil, fmt.Errorf("exec: expected values at variable slot %d, got a count", v)
	}
	return rows.Values.Collect()
}
