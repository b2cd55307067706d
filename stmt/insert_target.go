package stmt

import "github.com/lattice-orm/lattice/value"

// InsertTargetKind tags the InsertTarget variant.
type InsertTargetKind uint8

const (
	InsertScope InsertTargetKind = iota
	InsertModel
	InsertTable
)

// InsertTable names the concrete table/columns an Insert writes to, produced
// by the Lowerer from InsertModel.
type InsertTable struct {
	Table   value.TableID
	Columns []value.ColumnID
}

// InsertTarget is a three-way split: inserting into a scope (applies a
// query's filter as default/validated field values before insert), a bare
// model, or a concrete table.
type InsertTarget struct {
	Kind InsertTargetKind

	Scope *Query
	Model value.ModelID
	Table InsertTable
}

func NewInsertModel(model value.ModelID) InsertTarget {
	return InsertTarget{Kind: InsertModel, Model: model}
}

func NewInsertTable(t InsertTable) InsertTarget {
	return InsertTarget{Kind: InsertTable, Table: t}
}

// AddConstraint adds expr as an additional filter applied to the insert
// scope, converting a bare InsertModel into an InsertScope on first use.
func (t *InsertTarget) AddConstraint(expr Expr) {
	switch t.Kind {
	case InsertScope:
		t.Scope.AddFilter(expr)
	case InsertModel:
		t.Kind = InsertScope
		t.Scope = NewSelect(t.Model, expr)
	default:
		panic("insert_target: add_constraint on table-level target")
	}
}

// ModelID returns the model this target ultimately inserts into.
func (t InsertTarget) ModelID() value.ModelID {
	switch t.Kind {
	case InsertScope:
		if sel, ok := t.Scope.Body.(ExprSetSelect); ok {
			return sel.Select.Source.Model
		}
		panic("insert_target: scope body is not a Select")
	case InsertModel:
		return t.Model
	default:
		panic("insert_target: table-level target has no model id")
	}
}
