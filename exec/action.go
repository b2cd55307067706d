package exec

import (
	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

// Action is a closed sum of executable pipeline steps. Each action names
// its input and output variable slots plus whatever owned data it needs
// (a statement, a projection expression, table and index IDs).
type Action interface{ actionNode() }

// SetVar seeds the pipeline with a constant row set (e.g. user-supplied
// insert values lowered to Values).
type SetVar struct {
	Output Output
	Rows   []value.Value
}

// GetByKey fetches rows of Table by primary key, reading the key list from
// Input and projecting Columns.
type GetByKey struct {
	Input   VarID
	Output  Output
	Table   value.TableID
	Columns []value.ColumnID
}

// FindPkByIndex resolves primary keys via a secondary Index, then fetches
// Columns for the matching rows. Used when a filter targets an indexed
// column set that isn't the primary key.
type FindPkByIndex struct {
	Input   VarID
	Output  Output
	Table   value.TableID
	Index   value.DBIndexID
	Columns []value.ColumnID
	Filter  stmt.Expr
}

// QueryPk scans Table by a primary-key predicate, pushing Filter to the
// driver when set. PostFilter/Project, when non-nil, are applied in memory
// afterward (used when the driver can't evaluate the full predicate, or
// the caller wants rows reshaped before storing).
type QueryPk struct {
	Output     Output
	Table      value.TableID
	Columns    []value.ColumnID
	PKFilter   stmt.Expr
	Filter     stmt.Expr
	PostFilter stmt.Expr
	Project    stmt.Expr
}

// Filter evaluates a boolean expression against each row of Input in
// memory, keeping only matches. Used for predicates the driver can't push
// down (e.g. a backend without ScanFallback false-positive candidates from
// FindPkByIndex).
type Filter struct {
	Input  VarID
	Output Output
	Filter stmt.Expr
}

// Project evaluates an expression against each row of Input in memory,
// replacing it with the result.
type Project struct {
	Input      VarID
	Output     Output
	Projection stmt.Expr
}

// ChildMerge is one preloaded relation being folded into NestedMerge's
// parent rows. ParentKey/ChildKey are composite projections selecting the
// join key's fields from a parent row and a child row respectively (e.g.
// the parent's primary key / the child's foreign key columns, in the same
// order) — the same shape stmt.NewHashIndex already takes.
type ChildMerge struct {
	Input     VarID
	ParentKey []value.Projection
	ChildKey  []value.Projection
}

// NestedMerge combines a parent row stream with one or more pre-loaded
// child row streams into nested result rows: each child stream is hash
// indexed by its join key, then probed once per parent row, and Projection
// builds the final row from a record of [parent, matches0, matches1, ...]
// (each matchesN a List of that child's matching rows).
type NestedMerge struct {
	Parent     VarID
	Children   []ChildMerge
	Output     Output
	Projection stmt.Expr
}

// UpdateByKey updates rows of Table by primary key. When Input is set, the
// key list is collected from that variable (a prior lookup); otherwise
// Keys is used directly (the keys were already constant at plan time).
// Output is nil for a plain acknowledgement update (no Returning clause).
type UpdateByKey struct {
	Input       *VarID
	Keys        []value.Value
	Output      *Output
	Table       value.TableID
	Assignments []stmt.Assignment
	Filter      stmt.Expr
	Condition   stmt.Expr
}

// DeleteByKey deletes rows of Table by primary key, optionally constrained
// by Filter.
type DeleteByKey struct {
	Input  VarID
	Output Output
	Table  value.TableID
	Filter stmt.Expr
}

// Insert writes a lowered Insert's literal rows as a structured driver
// operation, for backends that cannot accept a statement as SQL text. The
// driver evaluates the statement's Returning clause itself; without one it
// responds with a plain row count.
type Insert struct {
	Output Output
	Stmt   *stmt.Insert
}

// ExecStatement runs an arbitrary lowered Statement, substituting each
// Input variable's collected values as a positional Arg binding first.
// ConditionalUpdateWithNoReturning marks the MySQL-style fallback where the
// statement is rewritten to return (matched_count, attempted_count) so the
// caller can detect a condition mismatch without native
// ConditionalUpdateReturning.
type ExecStatement struct {
	Input                            []VarID
	Output                           Output
	Stmt                             stmt.Statement
	Ret                              []value.Type
	ConditionalUpdateWithNoReturning bool
}

// ReadModifyWrite runs a non-atomic read-check-write sequence inside an
// explicit transaction, for backends without ConditionalUpdateReturning.
type ReadModifyWrite struct {
	Read  stmt.Statement
	Write stmt.Statement
}

func (SetVar) actionNode()          {}
func (GetByKey) actionNode()        {}
func (FindPkByIndex) actionNode()   {}
func (QueryPk) actionNode()         {}
func (Filter) actionNode()          {}
func (Project) actionNode()         {}
func (NestedMerge) actionNode()     {}
func (UpdateByKey) actionNode()     {}
func (DeleteByKey) actionNode()     {}
func (Insert) actionNode()          {}
func (ExecStatement) actionNode()   {}
func (ReadModifyWrite) actionNode() {}
