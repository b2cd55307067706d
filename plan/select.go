package plan

import (
	"fmt"

	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

// planSelect compiles a table-level Query reading model into a Graph,
// returning the NodeID of its result rows. It implements the selection rule:
// a primary-key equality/IN match goes straight to QueryPk (SQL) or
// GetByKey (KV); otherwise the narrowest equality-prefix secondary index
// goes to FindPkByIndex; otherwise a full ExecStatement scan, which KV
// backends must reject via Capability.ScanFallback. Preloaded relations
// (sel.Returning.Include) are folded in afterward via OpNestedMerge.
func (p *Planner) planSelect(g *Graph, model value.ModelID, q *stmt.Query) (NodeID, error) {
	sel, ok := q.Body.(stmt.ExprSetSelect)
	if !ok {
		return p.planFallbackQuery(g, q)
	}

	filter := sel.Select.Filter.Expr()
	columns := rowColumns(p.schema, model)

	node, err := p.planRowSource(g, model, filter, columns, q)
	if err != nil {
		return 0, err
	}

	if !sel.Select.Returning.IsExpr() || len(sel.Select.Returning.Include) == 0 {
		return node, nil
	}
	return p.planPreload(g, model, node, sel.Select.Returning)
}

// planRowSource picks the physical access path for a single-table read
// against model, returning the node producing raw (column-index-addressed)
// rows shaped exactly like columns.
func (p *Planner) planRowSource(g *Graph, model value.ModelID, filter stmt.Expr, columns []value.ColumnID, q *stmt.Query) (NodeID, error) {
	mm := p.schema.MappingFor(model)
	pk := pkColumns(p.schema, model)
	eq, residual := equalityMap(filter)

	if allCovered(pk, eq) {
		perCol := make([]value.Value, len(pk))
		for i, c := range pk {
			perCol[i] = eq[c]
		}
		return p.planPointLookup(g, mm.Table, pk, perCol, columns, residual), nil
	}

	// Single-column PK IN-list: one key per matched row.
	if len(pk) == 1 {
		if col, list, ok := inListColumn(filter); ok && col == pk[0] {
			if vals, ok := constListValues(list); ok {
				var kept []stmt.Expr
				for _, c := range conjuncts(filter) {
					if c2, _, ok := inListColumn(c); !ok || c2 != col {
						kept = append(kept, c)
					}
				}
				return p.planRowLookup(g, mm.Table, vals, columns, kept), nil
			}
		}
	}

	if ix, prefix, ok := p.narrowestIndex(model, eq); ok {
		perCol := make([]value.Value, len(prefix))
		for i, c := range prefix {
			perCol[i] = eq[c]
		}
		prefixSet := make(map[value.ColumnID]bool, len(prefix))
		for _, c := range prefix {
			prefixSet[c] = true
		}
		var indexResidual []stmt.Expr
		for _, c := range residual {
			if col, _, ok := equalityColumn(c); ok && prefixSet[col] {
				continue
			}
			indexResidual = append(indexResidual, c)
		}

		keysNode := g.Add(OpConst{Rows: []value.Value{compositeKey(perCol)}, Type: value.Unknown})
		fk := g.Add(OpFindPkByIndex{
			Keys: keysNode, Table: mm.Table, Index: ix,
			Columns: pk, Filter: stmt.AndFromVec(indexResidual),
		})
		return g.Add(OpGetByKey{Keys: fk, Table: mm.Table, Columns: columns}), nil
	}

	if !p.capability.ScanFallback {
		return 0, fmt.Errorf("plan: no usable key or index for model %v scan, and driver has no scan fallback", model)
	}

	stmtQuery := &stmt.Query{Body: q.Body, OrderBy: q.OrderBy, Limit: q.Limit}
	return g.Add(OpExecStatement{Stmt: stmtQuery, Ret: retTypes(columns)}), nil
}

// planPointLookup emits a single composite-key read: QueryPk on a SQL
// backend (the driver evaluates a plain equality WHERE clause), or a
// single-entry OpGetByKey on a KV backend.
func (p *Planner) planPointLookup(g *Graph, table value.TableID, pk []value.ColumnID, perColumnValues []value.Value, columns []value.ColumnID, residual []stmt.Expr) NodeID {
	if p.capability.SQL {
		return g.Add(OpQueryPk{
			Table: table, Columns: columns,
			PKFilter: pkEqualityExpr(pk, perColumnValues), Filter: stmt.AndFromVec(residual),
		})
	}
	keysNode := g.Add(OpConst{Rows: []value.Value{compositeKey(perColumnValues)}, Type: value.Unknown})
	getNode := g.Add(OpGetByKey{Keys: keysNode, Table: table, Columns: columns})
	if len(residual) > 0 {
		return g.Add(OpFilter{Input: getNode, Filter: stmt.AndFromVec(residual)})
	}
	return getNode
}

// planRowLookup emits a read keyed by a concrete list of single-column
// primary-key values (one per matched row), as produced by a `pk IN (...)`
// filter: QueryPk on a SQL backend, or OpGetByKey over the literal key list
// on a KV backend.
func (p *Planner) planRowLookup(g *Graph, table value.TableID, keys []value.Value, columns []value.ColumnID, residual []stmt.Expr) NodeID {
	if p.capability.SQL {
		terms := make([]stmt.Expr, len(keys))
		for i, k := range keys {
			terms[i] = stmt.Value(k)
		}
		return g.Add(OpQueryPk{
			Table: table, Columns: columns,
			PKFilter: stmt.ExprInList{Expr: stmt.ColumnRef(columns[0]), List: stmt.ExprListNode{Items: terms}},
			Filter:   stmt.AndFromVec(residual),
		})
	}
	keysNode := g.Add(OpConst{Rows: keys, Type: value.Unknown})
	getNode := g.Add(OpGetByKey{Keys: keysNode, Table: table, Columns: columns})
	if len(residual) > 0 {
		return g.Add(OpFilter{Input: getNode, Filter: stmt.AndFromVec(residual)})
	}
	return getNode
}

// compositeKey packs per-column key values into the single value a
// GetByKey/FindPkByIndex key list entry represents: the bare value for a
// single-column key, or a positional Record for a composite one.
func compositeKey(perColumnValues []value.Value) value.Value {
	if len(perColumnValues) == 1 {
		return perColumnValues[0]
	}
	return value.Record(perColumnValues...)
}

// pkEqualityExpr builds the `col0 = v0 AND col1 = v1 ...` predicate a
// QueryPk's PKFilter carries, so a SQL driver can translate it directly
// into a WHERE clause.
func pkEqualityExpr(pk []value.ColumnID, keys []value.Value) stmt.Expr {
	terms := make([]stmt.Expr, len(pk))
	for i, c := range pk {
		terms[i] = stmt.Eq(stmt.ColumnRef(c), stmt.Value(keys[i]))
	}
	if len(terms) == 1 {
		return terms[0]
	}
	return stmt.AndFromVec(terms)
}

func allCovered(cols []value.ColumnID, eq map[value.ColumnID]value.Value) bool {
	if len(cols) == 0 {
		return false
	}
	for _, c := range cols {
		if _, ok := eq[c]; !ok {
			return false
		}
	}
	return true
}

// narrowestIndex finds the secondary index on model whose leading fields
// are all covered by eq, preferring the one with the longest covered
// prefix (narrowest candidate set).
func (p *Planner) narrowestIndex(model value.ModelID, eq map[value.ColumnID]value.Value) (value.DBIndexID, []value.ColumnID, bool) {
	m := p.schema.App.Model(model)
	mm := p.schema.MappingFor(model)

	var best value.DBIndexID
	var bestPrefix []value.ColumnID
	found := false

	for i, ix := range m.Indices {
		if ix.PrimaryKey {
			continue
		}
		var prefix []value.ColumnID
		for _, f := range ix.Fields {
			cols := mm.Column(f.Field)
			allEq := true
			for _, c := range cols {
				if _, ok := eq[c]; !ok {
					allEq = false
					break
				}
			}
			if !allEq {
				break
			}
			prefix = append(prefix, cols...)
		}
		if len(prefix) == 0 {
			continue
		}
		if !found || len(prefix) > len(bestPrefix) {
			best = value.DBIndexID{Table: mm.Table, Index: i}
			bestPrefix = prefix
			found = true
		}
	}
	return best, bestPrefix, found
}

func retTypes(columns []value.ColumnID) []value.Type {
	out := make([]value.Type, len(columns))
	for i := range columns {
		out[i] = value.Unknown
	}
	return out
}

// planFallbackQuery handles a top-level Query whose body isn't a plain
// Select (a set operation, or a Values literal) by running it verbatim
// through the driver rather than attempting key/index selection.
func (p *Planner) planFallbackQuery(g *Graph, q *stmt.Query) (NodeID, error) {
	if !p.capability.ScanFallback && !p.capability.SQL {
		return 0, fmt.Errorf("plan: set operations and value literals require a SQL or scan-capable driver")
	}
	return g.Add(OpExecStatement{Stmt: q}), nil
}

// planPreload folds every first-hop relation named by ret.Include into
// node's row stream via OpNestedMerge. Only the first step of each Include
// path is read; any further steps are ignored, so relations more than one
// hop away are not preloaded.
func (p *Planner) planPreload(g *Graph, model value.ModelID, node NodeID, ret stmt.Returning) (NodeID, error) {
	type hop struct {
		rel  relationTarget
		path stmt.Path
	}
	var hops []hop
	for _, path := range ret.Include {
		rel, ok := resolveRelation(p.schema, model, path)
		if !ok {
			return 0, fmt.Errorf("plan: include path does not name a relation field on model %v", model)
		}
		hops = append(hops, hop{rel: rel, path: path})
	}

	children := make([]ChildSpec, 0, len(hops))
	for _, h := range hops {
		childNode, err := p.planPreloadChild(g, node, h.rel)
		if err != nil {
			return 0, err
		}
		children = append(children, ChildSpec{
			Input:     childNode,
			ParentKey: []value.Projection{value.FieldProjection(h.rel.ParentCol.Index)},
			ChildKey:  []value.Projection{value.FieldProjection(h.rel.ChildCol.Index)},
		})
	}

	projection := mergeProjection(ret.Expr, len(hops))
	return g.Add(OpNestedMerge{Parent: node, Children: children, Projection: projection}), nil
}

// planPreloadChild fetches the full row set of a single related model: a
// direct GetByKey for an owning BelongsTo (its FK values already are the
// target's primary key), or an indexed FindPkByIndex+GetByKey for the
// inverse HasMany/HasOne.
func (p *Planner) planPreloadChild(g *Graph, parentNode NodeID, rel relationTarget) (NodeID, error) {
	keysNode := g.Add(OpProject{Input: parentNode, Projection: stmt.ColumnRef(rel.ParentCol)})
	childColumns := rowColumns(p.schema, rel.Target)
	childTable := p.schema.MappingFor(rel.Target).Table

	if rel.Owning {
		return g.Add(OpGetByKey{Keys: keysNode, Table: childTable, Columns: childColumns}), nil
	}

	ix, ok := indexCoveringColumn(p.schema, rel.Target, rel.ChildCol)
	if !ok {
		return 0, fmt.Errorf("plan: relation target has no index covering its foreign key column")
	}
	pk := pkColumns(p.schema, rel.Target)
	fk := g.Add(OpFindPkByIndex{Keys: keysNode, Table: childTable, Index: ix, Columns: pk})
	return g.Add(OpGetByKey{Keys: fk, Table: childTable, Columns: childColumns}), nil
}

// mergeProjection builds the record-reshape expression OpNestedMerge's
// Projection evaluates against its synthetic [parent, matches0, matches1,
// ...] row. When the original Returning expression is the familiar
// whole-row record the Lowerer/Planner produce, its columns are unpacked
// back out of the nested parent slot; any other shape is dropped and the
// whole parent row takes its place, followed by the raw child match lists.
func mergeProjection(ret stmt.Expr, numChildren int) stmt.Expr {
	parentRef := stmt.SelfFieldRef(value.FieldID{Index: 0})

	var fields []stmt.Expr
	if rec, ok := ret.(stmt.ExprRecordNode); ok {
		fields = make([]stmt.Expr, 0, len(rec.Fields)+numChildren)
		for _, f := range rec.Fields {
			if col, ok := f.(stmt.ExprReference); ok && col.Kind == stmt.RefColumn {
				fields = append(fields, stmt.Project(parentRef, value.FieldProjection(col.Column.Index)))
			} else {
				fields = append(fields, f)
			}
		}
	} else {
		fields = []stmt.Expr{parentRef}
	}
	for i := 0; i < numChildren; i++ {
		fields = append(fields, stmt.SelfFieldRef(value.FieldID{Index: i + 1}))
	}
	return stmt.ExprRecordNode{Fields: fields}
}
