package migrate

import (
	"bufio"
	"fmt"
	"io"

	"github.com/lattice-orm/lattice/schema"
	"github.com/lattice-orm/lattice/schema/app"
)

// WriteSnapshot renders s as an INI-flavored schema snapshot: one [section]
// per model, naming its table and fields in declaration order. A snapshot
// is a diffing aid, not an executable artifact. This package only writes
// snapshots; nothing in the module reads one back.
func WriteSnapshot(w io.Writer, s *schema.Schema) error {
	bw := bufio.NewWriter(w)
	for i, m := range s.App.Models {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		fmt.Fprintf(bw, "[%s]\n", m.Name)
		fmt.Fprintf(bw, "table = %s\n", s.TableFor(m.ID).Atlas.Name)
		for _, f := range m.Fields {
			line, ok := fieldLine(f)
			if !ok {
				continue
			}
			fmt.Fprintln(bw, line)
		}
	}
	return bw.Flush()
}

func fieldLine(f *app.Field) (string, bool) {
	switch f.Ty {
	case app.FieldPrimitive:
		suffix := ""
		if f.Nullable {
			suffix += "?"
		}
		if f.PrimaryKey {
			suffix += " pk"
		}
		return fmt.Sprintf("field.%s = %s%s", f.Name, f.PrimitiveTy.String(), suffix), true
	case app.FieldEmbedded:
		return fmt.Sprintf("embedded.%s = %d fields", f.Name, len(f.EmbeddedField.Fields)), true
	case app.FieldBelongsTo:
		return fmt.Sprintf("belongs_to.%s = model:%d", f.Name, f.BelongsToRel.Target), true
	case app.FieldHasMany:
		return fmt.Sprintf("has_many.%s = model:%d", f.Name, f.HasManyRel.Target), true
	case app.FieldHasOne:
		return fmt.Sprintf("has_one.%s = model:%d", f.Name, f.HasOneRel.Target), true
	default:
		return "", false
	}
}
