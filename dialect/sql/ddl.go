package sql

import (
	"fmt"
	"strconv"
	"strings"

	atlasschema "ariga.io/atlas/sql/schema"

	"github.com/lattice-orm/lattice/dialect"
	schemapkg "github.com/lattice-orm/lattice/schema"
	"github.com/lattice-orm/lattice/schema/app"
	"github.com/lattice-orm/lattice/schema/db"
	"github.com/lattice-orm/lattice/value"
)

// TableDiffKind tags one TablesDiffItem variant: CREATE TABLE, DROP
// TABLE, or one ALTER TABLE clause.
type TableDiffKind uint8

const (
	DiffCreateTable TableDiffKind = iota
	DiffDropTable
	DiffAddColumn
	DiffDropColumn
)

// TablesDiffItem is one unit of schema change, the boundary input the DDL
// generator accepts. Producing the diff is the caller's job, e.g. comparing
// two schema.Schema snapshots or reading a user-authored migration plan.
type TablesDiffItem struct {
	Kind TableDiffKind

	// CreateTable / DropTable
	Table     *db.Table
	TableName string

	// AddColumn / DropColumn
	AlterTable string
	Column     *atlasschema.Column
	ColumnName string
}

// SchemaDiff is an ordered list of table-level changes. Order matters:
// callers put drops before creates that might reuse a name, and column
// alterations after the table they target already exists.
type SchemaDiff struct {
	Items []TablesDiffItem
}

// GenerateDDL renders diff as a sequence of dialect-flavored DDL statements.
// full supplies the app-level model/field information needed to pick the
// AUTO_INCREMENT/IDENTITY syntax for a primary-key column (native_auto_
// increment); pass nil to skip that detection (every PK is then emitted as
// a plain column with a table-level PRIMARY KEY clause).
func GenerateDDL(d dialect.Dialect, diff SchemaDiff, full *schemapkg.Schema) ([]string, error) {
	var out []string
	for _, item := range diff.Items {
		switch item.Kind {
		case DiffCreateTable:
			stmt, err := createTableSQL(d, item.Table, full)
			if err != nil {
				return nil, err
			}
			out = append(out, stmt)
		case DiffDropTable:
			out = append(out, "DROP TABLE "+quoteIdentFor(d, item.TableName))
		case DiffAddColumn:
			out = append(out, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s",
				quoteIdentFor(d, item.AlterTable), columnDefSQL(d, item.Column, false)))
		case DiffDropColumn:
			out = append(out, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
				quoteIdentFor(d, item.AlterTable), quoteIdentFor(d, item.ColumnName)))
		default:
			return nil, fmt.Errorf("sql: ddl: unknown diff kind %d", item.Kind)
		}
	}
	return out, nil
}

func quoteIdentFor(d dialect.Dialect, name string) string {
	b := &builder{s: &Serializer{Dialect: d}}
	return b.quoteIdent(name)
}

// primaryKeyInfo is what createTableSQL needs about a table's primary key:
// its storage column names in declared order, and (when full's capability
// allows it) the single column that auto-populates on insert.
type primaryKeyInfo struct {
	columns []string
	autoCol string
}

// primaryKeyFor resolves t's primary key column names from the db.Index
// marked PrimaryKey (populated by schema.Builder independently of atlas's
// own Index.Parts, which schema/columns.go's buildIndex never back-fills
// with column pointers). full, when supplied, additionally resolves the
// app-level field behind a single-column PK to detect AUTO_INCREMENT;
// callers that only hold a *db.Schema (driver/sql's Reset) pass nil and
// still get a correct PRIMARY KEY clause, just without the auto-increment
// keyword.
func primaryKeyFor(t *db.Table, full *schemapkg.Schema) primaryKeyInfo {
	pkCols := t.PrimaryKeyColumns()
	if len(pkCols) == 0 {
		return primaryKeyInfo{}
	}
	info := primaryKeyInfo{}
	for _, col := range pkCols {
		info.columns = append(info.columns, t.Column(col).Name)
	}
	if full == nil || len(pkCols) != 1 {
		return info
	}
	var modelID value.ModelID
	found := false
	for id, mm := range full.Mapping.Models {
		if mm.Table == t.ID {
			modelID, found = id, true
			break
		}
	}
	if !found {
		return info
	}
	model := full.App.Model(modelID)
	mm := full.Mapping.Model(modelID)
	pk := model.PrimaryKeyIndex()
	if len(pk.Fields) != 1 {
		return info
	}
	field := model.Field(pk.Fields[0].Field)
	if field.Attrs.Auto == app.AutoIncrement {
		cols := mm.Column(field.ID)
		if len(cols) == 1 {
			info.autoCol = full.DB.Column(cols[0]).Name
		}
	}
	return info
}

func createTableSQL(d dialect.Dialect, t *db.Table, full *schemapkg.Schema) (string, error) {
	pk := primaryKeyFor(t, full)

	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(quoteIdentFor(d, t.Atlas.Name))
	sb.WriteString(" (")
	for i, c := range t.Atlas.Columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(columnDefSQL(d, c, pk.autoCol != "" && c.Name == pk.autoCol))
	}
	if len(pk.columns) > 0 {
		// An auto-increment single-column integer PK already carries its
		// own PRIMARY KEY keyword inline (autoIncrementKeyword adds it on
		// every dialect); skip the redundant table-level clause then.
		skip := pk.autoCol != "" && len(pk.columns) == 1 && pk.columns[0] == pk.autoCol
		if !skip {
			sb.WriteString(", PRIMARY KEY (")
			sb.WriteString(quoteIdentList(d, pk.columns))
			sb.WriteString(")")
		}
	}
	sb.WriteString(")")
	return sb.String(), nil
}

func quoteIdentList(d dialect.Dialect, names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdentFor(d, n)
	}
	return strings.Join(out, ", ")
}

func columnDefSQL(d dialect.Dialect, c *atlasschema.Column, autoIncrement bool) string {
	var sb strings.Builder
	sb.WriteString(quoteIdentFor(d, c.Name))
	sb.WriteString(" ")
	sb.WriteString(columnTypeSQL(d, c.Type))
	if autoIncrement {
		sb.WriteString(" ")
		sb.WriteString(autoIncrementKeyword(d))
	}
	if c.Type != nil && !c.Type.Null {
		sb.WriteString(" NOT NULL")
	}
	return sb.String()
}

func autoIncrementKeyword(d dialect.Dialect) string {
	switch d {
	case dialect.SQLite:
		return "PRIMARY KEY AUTOINCREMENT"
	case dialect.MySQL:
		return "AUTO_INCREMENT PRIMARY KEY"
	default: // Postgres: GENERATED ... AS IDENTITY over a bare integer type.
		return "GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
	}
}

// columnTypeSQL renders one atlas ColumnType to this dialect's native type
// name. Only the kinds schema/columns.go's columnTypeFor ever produces are
// handled; an unrecognized type is a schema-builder/ddl mismatch bug.
func columnTypeSQL(d dialect.Dialect, ct *atlasschema.ColumnType) string {
	if ct == nil {
		return "TEXT"
	}
	switch t := ct.Type.(type) {
	case *atlasschema.BoolType:
		if d == dialect.SQLite {
			return "BOOLEAN"
		}
		return "BOOLEAN"
	case *atlasschema.IntegerType:
		return integerSQL(d, t)
	case *atlasschema.FloatType:
		if t.T == "float" {
			return "FLOAT"
		}
		return "DOUBLE PRECISION"
	case *atlasschema.DecimalType:
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Precision, t.Scale)
	case *atlasschema.StringType:
		return stringSQL(d, t)
	case *atlasschema.BinaryType:
		if d == dialect.Postgres {
			return "BYTEA"
		}
		return "BLOB"
	case *atlasschema.TimeType:
		return "TIMESTAMP"
	case *atlasschema.JSONType:
		if d == dialect.Postgres {
			return "JSONB"
		}
		return "JSON"
	default:
		return "TEXT"
	}
}

func integerSQL(d dialect.Dialect, t *atlasschema.IntegerType) string {
	raw := strings.ToUpper(t.T)
	if d == dialect.Postgres {
		switch t.T {
		case "tinyint", "smallint":
			return "SMALLINT"
		case "int":
			return "INTEGER"
		default:
			return "BIGINT"
		}
	}
	if t.Unsigned && d == dialect.MySQL {
		return raw + " UNSIGNED"
	}
	return raw
}

func stringSQL(d dialect.Dialect, t *atlasschema.StringType) string {
	switch t.T {
	case "varchar":
		return fmt.Sprintf("VARCHAR(%s)", strconv.Itoa(t.Size))
	case "uuid":
		if d == dialect.Postgres {
			return "UUID"
		}
		return "CHAR(36)"
	default:
		return "TEXT"
	}
}
