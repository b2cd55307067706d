package schema

import (
	"fmt"

	atlasschema "ariga.io/atlas/sql/schema"
	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/lattice-orm/lattice/schema/app"
	"github.com/lattice-orm/lattice/schema/db"
	"github.com/lattice-orm/lattice/value"
)

var lowerCaser = cases.Lower(language.English)

// Schema is the triple of (app, db, mapping) produced by Builder.Build.
type Schema struct {
	App     *app.Schema
	DB      *db.Schema
	Mapping *Mapping
}

func (s *Schema) MappingFor(id value.ModelID) *ModelMapping { return s.Mapping.Model(id) }

func (s *Schema) TableFor(id value.ModelID) *db.Table {
	return s.DB.Table(s.MappingFor(id).Table)
}

func (s *Schema) TableIDFor(id value.ModelID) value.TableID {
	return s.MappingFor(id).Table
}

// Builder resolves a list of ModelDescriptors plus a driver Capability into
// a Schema in five steps: assign IDs, resolve relation pairs, choose storage
// types, pick table names, then emit columns/indices and verify the result.
type Builder struct {
	capability Capability
	descs      []ModelDescriptor
	tablePfx   string
}

// NewBuilder returns a Builder targeting the given driver capability.
func NewBuilder(capability Capability) *Builder {
	return &Builder{capability: capability}
}

// AddModel registers a model descriptor. Order doesn't matter: relation
// pairs are resolved by name once every descriptor is present.
func (b *Builder) AddModel(d ModelDescriptor) *Builder {
	b.descs = append(b.descs, d)
	return b
}

// WithTableNamePrefix enables test isolation: prefix is
// prepended to every table name, whether explicit (ModelDescriptor.Table)
// or derived. The module keeps no migration history table, so no such
// table is prefixed.
func (b *Builder) WithTableNamePrefix(prefix string) *Builder {
	b.tablePfx = prefix
	return b
}

// Build runs the five build steps and returns the finished Schema, or an
// error if verification fails.
func (b *Builder) Build() (*Schema, error) {
	byName := make(map[string]value.ModelID, len(b.descs))
	for i, d := range b.descs {
		if _, dup := byName[d.Name]; dup {
			return nil, fmt.Errorf("lattice: schema: duplicate model name %q", d.Name)
		}
		byName[d.Name] = value.ModelID(i)
	}

	models := make([]*app.Model, len(b.descs))
	mapping := &Mapping{Models: make(map[value.ModelID]*ModelMapping, len(b.descs))}
	dbSchema := &db.Schema{Tables: make([]*db.Table, len(b.descs))}

	// Step 1: assign ModelId/FieldId and build primitive/embedded fields.
	// Relation payloads are filled in step 2, once every model's fields
	// (and thus FieldIDs and PrimaryKeyFields) exist.
	for i, d := range b.descs {
		mid := value.ModelID(i)
		model := &app.Model{ID: mid, Name: d.Name}
		for fi, fd := range d.Fields {
			fid := value.FieldID{Model: mid, Index: fi}
			f := &app.Field{ID: fid, Name: fd.Name, PrimaryKey: fd.PrimaryKey}
			switch {
			case fd.Embedded != nil:
				f.Ty = app.FieldEmbedded
				f.EmbeddedField = buildEmbedded(*fd.Embedded)
			case fd.Relation != nil:
				switch fd.Relation.Kind {
				case RelationBelongsTo:
					f.Ty = app.FieldBelongsTo
				case RelationHasMany:
					f.Ty = app.FieldHasMany
				case RelationHasOne:
					f.Ty = app.FieldHasOne
				}
			default:
				f.Ty = app.FieldPrimitive
				f.PrimitiveTy = fd.Ty
				f.Nullable = fd.Nullable
				f.Attrs = app.FieldAttr{
					Auto:        fd.Auto,
					Unique:      fd.Unique,
					Indexed:     fd.Indexed,
					Constraints: fd.Constraints,
				}
			}
			model.Fields = append(model.Fields, f)
		}
		models[i] = model
	}

	// Step 2: resolve relation pairs.
	for i, d := range b.descs {
		model := models[i]
		for fi, fd := range d.Fields {
			if fd.Relation == nil {
				continue
			}
			target, ok := byName[fd.Relation.TargetModel]
			if !ok {
				return nil, fmt.Errorf("lattice: schema: model %q field %q: unknown target model %q", d.Name, fd.Name, fd.Relation.TargetModel)
			}
			f := model.Fields[fi]
			switch fd.Relation.Kind {
			case RelationBelongsTo:
				targetPK := models[target].PrimaryKeyFields()
				if len(targetPK) != len(fd.Relation.ForeignKeyFields) {
					return nil, fmt.Errorf("lattice: schema: model %q field %q: foreign key arity %d does not match target %q primary key arity %d",
						d.Name, fd.Name, len(fd.Relation.ForeignKeyFields), fd.Relation.TargetModel, len(targetPK))
				}
				fk := make([]app.ForeignKeyPair, len(fd.Relation.ForeignKeyFields))
				for k, name := range fd.Relation.ForeignKeyFields {
					sf := model.FieldByName(name)
					if sf == nil {
						return nil, fmt.Errorf("lattice: schema: model %q: belongs_to foreign key field %q not found", d.Name, name)
					}
					fk[k] = app.ForeignKeyPair{Source: sf.ID, Target: targetPK[k]}
				}
				f.BelongsToRel = &app.BelongsTo{Target: target, ForeignKey: fk}
			case RelationHasMany, RelationHasOne:
				pairField := models[target].FieldByName(fd.Relation.PairField)
				if pairField == nil {
					return nil, fmt.Errorf("lattice: schema: model %q: pair field %q not found on %q", d.Name, fd.Relation.PairField, fd.Relation.TargetModel)
				}
				if fd.Relation.Kind == RelationHasMany {
					f.HasManyRel = &app.HasMany{Target: target, Pair: pairField.ID}
				} else {
					f.HasOneRel = &app.HasOne{Target: target, Pair: pairField.ID}
				}
			}
		}
	}

	// Step 3 + step 4: choose storage types per capability, pick a table
	// name, emit columns and indices. Relation fields carry no storage of
	// their own: a BelongsTo's foreign key lives in ordinary primitive
	// fields declared alongside it and named by RelationDescriptor.
	// ForeignKeyFields.
	for i, d := range b.descs {
		model := models[i]
		tableName := d.Table
		if tableName == "" {
			tableName = deriveTableName(d.Name)
		}
		tableName = b.tablePfx + tableName
		tid := value.TableID(i)
		atlasTable := atlasschema.NewTable(tableName)
		mm := &ModelMapping{Model: value.ModelID(i), Table: tid, Fields: map[value.FieldID]FieldMapping{}}

		for fi, fd := range d.Fields {
			if fd.Relation != nil {
				continue
			}
			startIdx := len(atlasTable.Columns)
			cols, err := columnsFor(b.capability, fd)
			if err != nil {
				return nil, fmt.Errorf("lattice: schema: model %q field %q: %w", d.Name, fd.Name, err)
			}
			for _, c := range cols {
				atlasTable.AddColumns(c)
			}
			colIDs := make([]value.ColumnID, len(cols))
			for k := range cols {
				colIDs[k] = value.ColumnID{Table: tid, Index: startIdx + k}
			}
			mm.Fields[model.Fields[fi].ID] = FieldMapping{Columns: colIDs}
		}

		table := &db.Table{ID: tid, Atlas: atlasTable}
		for ixi, ixd := range d.Indices {
			ix, atlasIx, cols, err := buildIndex(model, mm, value.IndexID{Model: value.ModelID(i), Index: ixi}, ixd)
			if err != nil {
				return nil, err
			}
			model.Indices = append(model.Indices, ix)
			table.Indices = append(table.Indices, db.Index{
				ID:      value.DBIndexID{Table: tid, Index: ixi},
				Atlas:   atlasIx,
				Columns: cols,
				Unique:  ixd.Unique,
			})
			atlasTable.AddIndexes(atlasIx)
			if isPrimaryKeyIndex(model, ixd) {
				model.PrimaryKey = ixi
				table.Indices[ixi].PrimaryKey = true
				atlasTable.SetPrimaryKey(&atlasschema.Index{Parts: atlasIx.Parts})
			}
		}

		dbSchema.Tables[i] = table
		mapping.Models[value.ModelID(i)] = mm
	}

	s := &Schema{
		App:     &app.Schema{Models: models},
		DB:      dbSchema,
		Mapping: mapping,
	}

	if err := verify(s); err != nil {
		return nil, err
	}
	return s, nil
}

func buildEmbedded(d EmbeddedDescriptor) *app.Embedded {
	e := &app.Embedded{Name: d.Name}
	for _, fd := range d.Fields {
		e.Fields = append(e.Fields, app.EmbeddedField{
			Name:     fd.Name,
			Ty:       fd.Ty,
			Nullable: fd.Nullable,
			Attrs: app.FieldAttr{
				Auto:        fd.Auto,
				Unique:      fd.Unique,
				Indexed:     fd.Indexed,
				Constraints: fd.Constraints,
			},
		})
	}
	return e
}

// deriveTableName derives a default table name: snake-cased, lower-cased via
// golang.org/x/text, then pluralized via github.com/go-openapi/inflect.
func deriveTableName(modelName string) string {
	snake := toSnakeCase(modelName)
	lower := lowerCaser.String(snake)
	return inflect.Pluralize(lower)
}

func toSnakeCase(s string) string {
	out := make([]byte, 0, len(s)+4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				out = append(out, '_')
			}
			out = append(out, c-'A'+'a')
		} else {
			out = append(out, c)
		}
	}
	return string(out)
}

// isPrimaryKeyIndex reports whether ixd names exactly model's PrimaryKey
// fields, in order.
func isPrimaryKeyIndex(model *app.Model, ixd IndexDescriptor) bool {
	pk := model.PrimaryKeyFields()
	if len(pk) != len(ixd.Fields) {
		return false
	}
	for i, name := range ixd.Fields {
		f := model.FieldByName(name)
		if f == nil || f.ID != pk[i] {
			return false
		}
	}
	return true
}
