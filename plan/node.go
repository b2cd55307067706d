// Package plan compiles a lowered (table-level) statement into a
// LogicalPlan — a DAG of typed Operation nodes — and then into an
// executable exec.Plan the Executor can run. It owns the selection rule
// that picks between a direct key lookup, a secondary-index lookup, and a
// full driver-evaluated scan, plus preload planning (NestedMerge) and the
// conditional-update fallback (ReadModifyWrite).
package plan

import (
	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

// NodeID addresses one Operation within a Graph. IDs are assigned in
// insertion order starting at zero.
type NodeID int

// Operation is a closed sum of logical-plan node kinds: Const, GetByKey,
// QueryPk, FindPkByIndex, Project, Filter, NestedMerge, UpdateByKey,
// DeleteByKey, Insert, ExecStatement, and ReadModifyWrite.
type Operation interface {
	opNode()
	// deps lists the NodeIDs this operation reads from, in the order the
	// lowering pass should resolve them to exec.VarIDs.
	deps() []NodeID
}

// OpConst seeds the graph with a literal row set (e.g. user-supplied
// insert values, or a constant key list for a point lookup).
type OpConst struct {
	Rows []value.Value
	Type value.Type
}

// OpGetByKey fetches rows of Table by primary key, reading the key list
// from the node named by Keys.
type OpGetByKey struct {
	Keys    NodeID
	Table   value.TableID
	Columns []value.ColumnID
}

// OpFindPkByIndex resolves primary keys via a secondary Index before a
// follow-up fetch.
type OpFindPkByIndex struct {
	Keys    NodeID
	Table   value.TableID
	Index   value.DBIndexID
	Columns []value.ColumnID
	Filter  stmt.Expr
}

// OpQueryPk scans Table by a primary-key predicate, letting the driver
// evaluate PKFilter (and, when it can, Filter) directly; PostFilter/Project
// are applied in memory afterward.
type OpQueryPk struct {
	Table      value.TableID
	Columns    []value.ColumnID
	PKFilter   stmt.Expr
	Filter     stmt.Expr
	PostFilter stmt.Expr
	Project    stmt.Expr
}

// OpProject evaluates an expression against each row of Input in memory.
type OpProject struct {
	Input      NodeID
	Projection stmt.Expr
}

// OpFilter evaluates a boolean expression against each row of Input,
// keeping only matches.
type OpFilter struct {
	Input  NodeID
	Filter stmt.Expr
}

// ChildSpec is one preloaded relation folded into an OpNestedMerge: Input
// names the node producing that relation's rows, and ParentKey/ChildKey are
// the composite join-key projections into a parent row and a child row
// respectively.
type ChildSpec struct {
	Input     NodeID
	ParentKey []value.Projection
	ChildKey  []value.Projection
}

// OpNestedMerge combines a parent row stream with one or more preloaded
// child row streams into nested result rows.
type OpNestedMerge struct {
	Parent     NodeID
	Children   []ChildSpec
	Projection stmt.Expr
}

// OpUpdateByKey updates rows of Table by primary key. Input is nil when
// Keys is already constant at plan time (e.g. lifted from a PK-select
// subquery); WithReturning requests post-update row values rather than
// just an impacted count.
type OpUpdateByKey struct {
	Input       *NodeID
	Keys        []value.Value
	Table       value.TableID
	Assignments []stmt.Assignment
	Filter      stmt.Expr
	Condition   stmt.Expr
	WithReturning bool
}

// OpDeleteByKey deletes rows of Table by primary key, reading the key list
// from Input.
type OpDeleteByKey struct {
	Input  NodeID
	Table  value.TableID
	Filter stmt.Expr
}

// OpInsert writes a lowered Insert's literal rows as a structured driver
// Insert operation, for backends without SQL.
type OpInsert struct {
	Stmt *stmt.Insert
}

// OpExecStatement runs an arbitrary lowered Statement, substituting each
// Input node's collected rows as a positional Arg binding first.
type OpExecStatement struct {
	Input                            []NodeID
	Stmt                              stmt.Statement
	Ret                               []value.Type
	ConditionalUpdateWithNoReturning bool
}

// OpReadModifyWrite runs the non-atomic read-check-write fallback inside an
// explicit transaction. It has no dependencies: Read/Write are fully
// substituted statements built at plan time.
type OpReadModifyWrite struct {
	Read  stmt.Statement
	Write stmt.Statement
}

func (OpConst) opNode()           {}
func (OpGetByKey) opNode()        {}
func (OpFindPkByIndex) opNode()   {}
func (OpQueryPk) opNode()         {}
func (OpProject) opNode()         {}
func (OpFilter) opNode()          {}
func (OpNestedMerge) opNode()     {}
func (OpUpdateByKey) opNode()     {}
func (OpDeleteByKey) opNode()     {}
func (OpInsert) opNode()          {}
func (OpExecStatement) opNode()   {}
func (OpReadModifyWrite) opNode() {}

func (OpConst) deps() []NodeID { return nil }
func (o OpGetByKey) deps() []NodeID { return []NodeID{o.Keys} }
func (o OpFindPkByIndex) deps() []NodeID { return []NodeID{o.Keys} }
func (OpQueryPk) deps() []NodeID { return nil }
func (o OpProject) deps() []NodeID { return []NodeID{o.Input} }
func (o OpFilter) deps() []NodeID { return []NodeID{o.Input} }
func (o OpNestedMerge) deps() []NodeID {
	deps := make([]NodeID, 0, 1+len(o.Children))
	deps = append(deps, o.Parent)
	for _, c := range o.Children {
		deps = append(deps, c.Input)
	}
	return deps
}
func (o OpUpdateByKey) deps() []NodeID {
	if o.Input == nil {
		return nil
	}
	return []NodeID{*o.Input}
}
func (o OpDeleteByKey) deps() []NodeID    { return []NodeID{o.Input} }
func (OpInsert) deps() []NodeID           { return nil }
func (o OpExecStatement) deps() []NodeID  { return append([]NodeID(nil), o.Input...) }
func (OpReadModifyWrite) deps() []NodeID  { return nil }

// Graph is the node arena a Planner accumulates while compiling one
// statement. It has no notion of "the" result until Compile names a
// completion node, so a single Graph can host sibling subqueries (e.g. a
// lifted ExprInSubquery) alongside the statement's main pipeline.
type Graph struct {
	ops []Operation
}

// Add appends op to the graph and returns its NodeID.
func (g *Graph) Add(op Operation) NodeID {
	g.ops = append(g.ops, op)
	return NodeID(len(g.ops) - 1)
}

// Op returns the operation registered under id.
func (g *Graph) Op(id NodeID) Operation { return g.ops[id] }

// LogicalPlan is a Graph plus the topological execution order and per-node
// use counts computed by walking back from a single completion node.
type LogicalPlan struct {
	Graph      *Graph
	Order      []NodeID
	NumUses    map[NodeID]int
	Completion NodeID
}

// Compile computes the execution order (a dependency-first topological
// sort reachable from completion) and reference counts for every node that
// order touches. Nodes unreachable from completion — dead work no action
// in the final pipeline consumes — are simply absent from Order.
func Compile(g *Graph, completion NodeID) *LogicalPlan {
	order := make([]NodeID, 0, len(g.ops))
	visited := make(map[NodeID]bool, len(g.ops))
	numUses := make(map[NodeID]int, len(g.ops))

	var visit func(id NodeID)
	visit = func(id NodeID) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, dep := range g.Op(id).deps() {
			numUses[dep]++
			visit(dep)
		}
		order = append(order, id)
	}
	visit(completion)

	return &LogicalPlan{Graph: g, Order: order, NumUses: numUses, Completion: completion}
}
