// Package sql renders table-level statements (produced by lower.Lowerer)
// into dialect-flavored SQL text plus a positional parameter vector, the
// C9 "SQL serializer" component a sql-capability Driver consults from its
// exec(Operation) implementation. It also emits DDL from a schema diff
// (ddl.go) and generates the nested BEGIN/SAVEPOINT/COMMIT/ROLLBACK text a
// transaction guard needs (tx.go). The Serializer accumulates a
// []value.Value parameter vector alongside the rendered text.
package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lattice-orm/lattice/dialect"
	"github.com/lattice-orm/lattice/schema/db"
	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

// Serializer renders table-level statements for one dialect against one
// storage schema. A Serializer is stateless across calls and safe for
// concurrent use; all mutable state (the growing parameter vector) lives in
// the per-call builder.
type Serializer struct {
	Dialect dialect.Dialect
	Schema  *db.Schema

	// LastInsertIDHack, when true, tells Insert to omit RETURNING on a
	// MySQL INSERT and instead let the driver fetch LAST_INSERT_ID()
	// itself, rather than leaking the hack into the statement text.
	LastInsertIDHack bool
}

// builder accumulates rendered SQL text and its positional parameters for
// one statement.
type builder struct {
	s    *Serializer
	sb   strings.Builder
	args []value.Value
}

func (s *Serializer) newBuilder() *builder { return &builder{s: s} }

func (b *builder) dialect() dialect.Dialect { return b.s.Dialect }

func (b *builder) writeString(s string) { b.sb.WriteString(s) }

func (b *builder) quoteIdent(name string) string {
	switch b.dialect() {
	case dialect.MySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// placeholder returns the parameter marker for the n-th (1-indexed) bound
// value, per dialect: $n for Postgres, ? for MySQL/SQLite.
func (b *builder) placeholder(n int) string {
	if b.dialect() == dialect.Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (b *builder) bind(v value.Value) string {
	b.args = append(b.args, v)
	return b.placeholder(len(b.args))
}

func (b *builder) table(id value.TableID) *db.Table { return b.s.Schema.Table(id) }

func (b *builder) tableName(id value.TableID) string { return b.table(id).Atlas.Name }

func (b *builder) columnName(id value.ColumnID) string { return b.s.Schema.Column(id).Name }

// Query renders a table-level Select-bodied Query as SELECT … FROM …
// [WHERE …] [ORDER BY …] [LIMIT …]. Non-Select bodies (set operations,
// literal Values) aren't reachable here: the Planner resolves them to their
// own plan nodes before a Query ever reaches the serializer.
func (s *Serializer) Query(q *stmt.Query) (string, []value.Value, error) {
	b := s.newBuilder()
	sel, ok := q.Body.(stmt.ExprSetSelect)
	if !ok {
		return "", nil, fmt.Errorf("sql: serializer: query body %T is not a Select (planner bug)", q.Body)
	}
	if err := b.renderSelect(sel.Select); err != nil {
		return "", nil, err
	}
	if err := b.renderOrderBy(q.OrderBy); err != nil {
		return "", nil, err
	}
	if err := b.renderLimit(q.Limit); err != nil {
		return "", nil, err
	}
	return b.sb.String(), b.args, nil
}

func (b *builder) renderSelect(sel stmt.Select) error {
	if sel.Source.IsTable == false {
		return fmt.Errorf("sql: serializer: select source is model-level (lowerer bug)")
	}
	b.writeString("SELECT ")
	if err := b.renderProjection(sel.Returning); err != nil {
		return err
	}
	b.writeString(" FROM ")
	b.writeString(b.quoteIdent(b.tableName(sel.Source.Table)))
	for _, j := range sel.Source.Joins {
		b.writeString(" JOIN ")
		b.writeString(b.quoteIdent(b.tableName(j.Table)))
		b.writeString(" ON ")
		if err := b.renderExpr(j.On); err != nil {
			return err
		}
	}
	if sel.Filter.IsSome() {
		b.writeString(" WHERE ")
		if err := b.renderExpr(sel.Filter.Expr()); err != nil {
			return err
		}
	}
	return nil
}

// renderProjection renders a Returning's explicit projection list (the
// shape the Lowerer rewrote ReturningModel into): bare column references,
// or FuncCountIf aggregates for count-shaped reads. ReturningChanged has
// no row shape to select; callers plan an ExecStatement expecting a count
// in that case instead, so reaching it here is a planner bug.
func (b *builder) renderProjection(r stmt.Returning) error {
	if !r.IsExpr() {
		return fmt.Errorf("sql: serializer: returning kind %v not lowered to a column projection", r.Kind)
	}
	fields := []stmt.Expr{r.Expr}
	if rec, ok := r.Expr.(stmt.ExprRecordNode); ok {
		fields = rec.Fields
	}
	if len(fields) == 0 {
		b.writeString("1")
		return nil
	}
	for i, f := range fields {
		if i > 0 {
			b.writeString(", ")
		}
		switch v := f.(type) {
		case stmt.ExprReference:
			if v.Kind != stmt.RefColumn {
				return fmt.Errorf("sql: serializer: returning projection references a non-column field (lowerer bug)")
			}
			b.writeString(b.quoteIdent(b.columnName(v.Column)))
		case stmt.ExprFunc:
			if err := b.renderCountIf(v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("sql: serializer: unsupported returning projection node %T", f)
		}
	}
	return nil
}

// renderCountIf renders a FuncCountIf aggregate: COUNT(*) with no
// argument, or COUNT(CASE WHEN <pred> THEN 1 END) with one. COUNT (unlike
// SUM over a CASE) yields 0 rather than NULL when nothing matches, so the
// aggregate row is always a well-typed integer pair.
func (b *builder) renderCountIf(v stmt.ExprFunc) error {
	if v.Func != stmt.FuncCountIf {
		return fmt.Errorf("sql: serializer: function %d has no projection rendering", v.Func)
	}
	switch len(v.Args) {
	case 0:
		b.writeString("COUNT(*)")
		return nil
	case 1:
		b.writeString("COUNT(CASE WHEN ")
		if err := b.renderExpr(v.Args[0]); err != nil {
			return err
		}
		b.writeString(" THEN 1 END)")
		return nil
	default:
		return fmt.Errorf("sql: serializer: FuncCountIf takes at most one predicate, got %d", len(v.Args))
	}
}

// flattenColumnRefs collects the ColumnIDs named by a Returning projection
// expression, which is always a bare ExprReference{RefColumn} or an
// ExprRecordNode of such references once lowered.
func flattenColumnRefs(e stmt.Expr) ([]value.ColumnID, error) {
	switch v := e.(type) {
	case stmt.ExprReference:
		if v.Kind != stmt.RefColumn {
			return nil, fmt.Errorf("sql: serializer: returning projection references a non-column field (lowerer bug)")
		}
		return []value.ColumnID{v.Column}, nil
	case stmt.ExprRecordNode:
		var out []value.ColumnID
		for _, f := range v.Fields {
			cols, err := flattenColumnRefs(f)
			if err != nil {
				return nil, err
			}
			out = append(out, cols...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("sql: serializer: unsupported returning projection node %T", e)
	}
}

func (b *builder) renderOrderBy(order []stmt.OrderOption) error {
	if len(order) == 0 {
		return nil
	}
	b.writeString(" ORDER BY ")
	for i, o := range order {
		if i > 0 {
			b.writeString(", ")
		}
		if err := b.renderExpr(o.Expr); err != nil {
			return err
		}
		if o.Direction == stmt.Desc {
			b.writeString(" DESC")
		} else {
			b.writeString(" ASC")
		}
	}
	return nil
}

func (b *builder) renderLimit(l *stmt.Limit) error {
	if l == nil || l.Count == nil {
		return nil
	}
	b.writeString(" LIMIT ")
	b.writeString(strconv.Itoa(*l.Count))
	if l.Offset.Kind == stmt.OffsetCount && l.Offset.Count > 0 {
		b.writeString(" OFFSET ")
		b.writeString(strconv.Itoa(l.Offset.Count))
	}
	// OffsetAfter never reaches the serializer: the Lowerer rewrites
	// keyset pagination into an equivalent WHERE inequality before the
	// statement is handed off here.
	return nil
}

// Insert renders an INSERT … VALUES … [RETURNING …] statement. Insert.Source
// must be a literal Values body (the Planner only ever serializes an
// Insert whose rows are already constant-substituted); a non-Values source
// is an ExecStatement planning bug.
func (s *Serializer) Insert(ins *stmt.Insert) (string, []value.Value, error) {
	b := s.newBuilder()
	if ins.Target.Kind != stmt.InsertTable {
		return "", nil, fmt.Errorf("sql: serializer: insert target %v is not table-level (lowerer bug)", ins.Target.Kind)
	}
	rows, err := insertRows(ins.Source)
	if err != nil {
		return "", nil, err
	}
	t := ins.Target.Table
	b.writeString("INSERT INTO ")
	b.writeString(b.quoteIdent(b.tableName(t.Table)))
	b.writeString(" (")
	for i, c := range t.Columns {
		if i > 0 {
			b.writeString(", ")
		}
		b.writeString(b.quoteIdent(b.columnName(c)))
	}
	b.writeString(") VALUES ")
	for ri, row := range rows {
		if ri > 0 {
			b.writeString(", ")
		}
		b.writeString("(")
		for ci, e := range row {
			if ci > 0 {
				b.writeString(", ")
			}
			if err := b.renderExpr(e); err != nil {
				return "", nil, err
			}
		}
		b.writeString(")")
	}

	useReturning := ins.Returning != nil && ins.Returning.IsExpr()
	if useReturning && b.dialect() == dialect.MySQL && s.LastInsertIDHack {
		// MySQL has no RETURNING: driver/sql's Insert path reads the
		// generated keys from the Exec result's LastInsertId rather than
		// this serializer forging a RETURNING clause MySQL can't execute.
		return b.sb.String(), b.args, nil
	}
	if useReturning {
		cols, err := flattenColumnRefs(ins.Returning.Expr)
		if err != nil {
			return "", nil, err
		}
		b.writeString(" RETURNING ")
		for i, c := range cols {
			if i > 0 {
				b.writeString(", ")
			}
			b.writeString(b.quoteIdent(b.columnName(c)))
		}
	}
	return b.sb.String(), b.args, nil
}

func insertRows(q *stmt.Query) ([][]stmt.Expr, error) {
	values, ok := q.Body.(stmt.ExprSetValues)
	if !ok {
		return nil, fmt.Errorf("sql: serializer: insert source %T is not a literal row set (planner bug)", q.Body)
	}
	rows := make([][]stmt.Expr, len(values.Rows))
	for i, row := range values.Rows {
		rec, ok := row.(stmt.ExprRecordNode)
		if !ok {
			return nil, fmt.Errorf("sql: serializer: insert row %T is not a record", row)
		}
		rows[i] = rec.Fields
	}
	return rows, nil
}

// Update renders an UPDATE … SET … WHERE … [RETURNING …] statement.
// Assignment.Field is resolved to its column via mapping since the Lowerer
// only rewrites Assignment.Value, not Assignment.Field (see lower.Lowerer).
func (s *Serializer) Update(u *stmt.Update, columnFor func(value.FieldID) value.ColumnID) (string, []value.Value, error) {
	b := s.newBuilder()
	if !u.Target.IsTable {
		return "", nil, fmt.Errorf("sql: serializer: update target is model-level (lowerer bug)")
	}
	b.writeString("UPDATE ")
	b.writeString(b.quoteIdent(b.tableName(u.Target.Table)))
	b.writeString(" SET ")
	for i, a := range u.Assignments {
		if i > 0 {
			b.writeString(", ")
		}
		b.writeString(b.quoteIdent(b.columnName(columnFor(a.Field))))
		b.writeString(" = ")
		if err := b.renderExpr(a.Value); err != nil {
			return "", nil, err
		}
	}
	if u.FilterExpr.IsSome() {
		b.writeString(" WHERE ")
		if err := b.renderExpr(u.FilterExpr.Expr()); err != nil {
			return "", nil, err
		}
	}
	if u.Returning != nil && u.Returning.IsExpr() {
		cols, err := flattenColumnRefs(u.Returning.Expr)
		if err != nil {
			return "", nil, err
		}
		b.writeString(" RETURNING ")
		for i, c := range cols {
			if i > 0 {
				b.writeString(", ")
			}
			b.writeString(b.quoteIdent(b.columnName(c)))
		}
	}
	return b.sb.String(), b.args, nil
}

// Delete renders a DELETE FROM … WHERE … [RETURNING …] statement.
func (s *Serializer) Delete(d *stmt.Delete) (string, []value.Value, error) {
	b := s.newBuilder()
	if !d.From.IsTable {
		return "", nil, fmt.Errorf("sql: serializer: delete target is model-level (lowerer bug)")
	}
	b.writeString("DELETE FROM ")
	b.writeString(b.quoteIdent(b.tableName(d.From.Table)))
	if d.FilterExpr.IsSome() {
		b.writeString(" WHERE ")
		if err := b.renderExpr(d.FilterExpr.Expr()); err != nil {
			return "", nil, err
		}
	}
	if d.Returning != nil && d.Returning.IsExpr() {
		cols, err := flattenColumnRefs(d.Returning.Expr)
		if err != nil {
			return "", nil, err
		}
		b.writeString(" RETURNING ")
		for i, c := range cols {
			if i > 0 {
				b.writeString(", ")
			}
			b.writeString(b.quoteIdent(b.columnName(c)))
		}
	}
	return b.sb.String(), b.args, nil
}

// renderExpr recursively renders e as SQL text, binding any constant/arg
// leaf as a parameter. ColumnRef (stmt.ExprReference{Kind: RefColumn}) is
// the only reference form allowed here; a Field/SelfField/AncestorModel
// reference surviving to the serializer is a lowerer bug.
func (b *builder) renderExpr(e stmt.Expr) error {
	switch v := e.(type) {
	case stmt.ExprValue:
		b.writeString(b.bind(v.Value))
		return nil
	case stmt.ExprReference:
		if v.Kind != stmt.RefColumn {
			return fmt.Errorf("sql: serializer: non-column reference %v reached the serializer (lowerer bug)", v.Kind)
		}
		b.writeString(b.quoteIdent(b.columnName(v.Column)))
		return nil
	case stmt.ExprArg:
		return fmt.Errorf("sql: serializer: unsubstituted Arg(%d) reached the serializer (executor bug)", v.Position)
	case *stmt.ExprAnd:
		return b.renderBoolList(v.Operands, " AND ")
	case *stmt.ExprOr:
		return b.renderBoolList(v.Operands, " OR ")
	case stmt.ExprNot:
		b.writeString("NOT (")
		if err := b.renderExpr(v.Expr); err != nil {
			return err
		}
		b.writeString(")")
		return nil
	case stmt.ExprIsNull:
		b.writeString("(")
		if err := b.renderExpr(v.Expr); err != nil {
			return err
		}
		b.writeString(" IS NULL)")
		return nil
	case stmt.ExprBinaryOp:
		return b.renderBinaryOp(v)
	case stmt.ExprInList:
		return b.renderInList(v)
	case stmt.ExprPattern:
		return b.renderPattern(v)
	case stmt.ExprConcatStr:
		return b.renderConcat(v)
	case stmt.ExprExists:
		return fmt.Errorf("sql: serializer: ExprExists must be lifted to a sibling plan before serialization (planner bug)")
	case stmt.ExprInSubquery:
		return fmt.Errorf("sql: serializer: ExprInSubquery must be lifted before serialization (planner bug)")
	case stmt.ExprRecordNode:
		return fmt.Errorf("sql: serializer: bare record expression has no SQL form outside a projection list")
	default:
		return fmt.Errorf("sql: serializer: expression %T has no SQL rendering", e)
	}
}

func (b *builder) renderBoolList(operands []stmt.Expr, sep string) error {
	b.writeString("(")
	for i, op := range operands {
		if i > 0 {
			b.writeString(sep)
		}
		if err := b.renderExpr(op); err != nil {
			return err
		}
	}
	b.writeString(")")
	return nil
}

var binaryOpSQL = map[stmt.BinaryOp]string{
	stmt.OpEq:  "=",
	stmt.OpNe:  "<>",
	stmt.OpLt:  "<",
	stmt.OpLe:  "<=",
	stmt.OpGt:  ">",
	stmt.OpGe:  ">=",
	stmt.OpAdd: "+",
	stmt.OpSub: "-",
	stmt.OpMul: "*",
	stmt.OpDiv: "/",
}

func (b *builder) renderBinaryOp(v stmt.ExprBinaryOp) error {
	op, ok := binaryOpSQL[v.Op]
	if !ok {
		return fmt.Errorf("sql: serializer: unknown binary op %d", v.Op)
	}
	b.writeString("(")
	if err := b.renderExpr(v.LHS); err != nil {
		return err
	}
	b.writeString(" " + op + " ")
	if err := b.renderExpr(v.RHS); err != nil {
		return err
	}
	b.writeString(")")
	return nil
}

func (b *builder) renderInList(v stmt.ExprInList) error {
	list, ok := v.List.(stmt.ExprListNode)
	if !ok {
		return fmt.Errorf("sql: serializer: IN list %T is not a literal list (planner bug: should have been lifted or folded)", v.List)
	}
	if len(list.Items) == 0 {
		b.writeString("FALSE")
		return nil
	}
	if err := b.renderExpr(v.Expr); err != nil {
		return err
	}
	b.writeString(" IN (")
	for i, item := range list.Items {
		if i > 0 {
			b.writeString(", ")
		}
		if err := b.renderExpr(item); err != nil {
			return err
		}
	}
	b.writeString(")")
	return nil
}

func (b *builder) renderPattern(v stmt.ExprPattern) error {
	if err := b.renderExpr(v.Expr); err != nil {
		return err
	}
	b.writeString(" LIKE ")
	pattern := v.Pattern
	if v.Kind == stmt.PatternBeginsWith {
		pattern = escapeLikeLiteral(pattern) + "%"
	} else {
		pattern = escapeLikeLiteral(pattern)
	}
	b.writeString(b.bind(value.String(pattern)))
	return nil
}

func escapeLikeLiteral(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (b *builder) renderConcat(v stmt.ExprConcatStr) error {
	switch b.dialect() {
	case dialect.MySQL:
		b.writeString("CONCAT(")
		for i, p := range v.Parts {
			if i > 0 {
				b.writeString(", ")
			}
			if err := b.renderExpr(p); err != nil {
				return err
			}
		}
		b.writeString(")")
		return nil
	default:
		b.writeString("(")
		for i, p := range v.Parts {
			if i > 0 {
				b.writeString(" || ")
			}
			if err := b.renderExpr(p); err != nil {
				return err
			}
		}
		b.writeString(")")
		return nil
	}
}
