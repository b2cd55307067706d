package schema

import (
	"fmt"

	"github.com/lattice-orm/lattice/schema/app"
	"github.com/lattice-orm/lattice/value"
)

// verify runs the schema's build-time consistency checks: every relation
// must find a usable index on its target, field names must be unique within
// a model, and auto-increment is only valid on integer primary-key fields.
func verify(s *Schema) error {
	for _, m := range s.App.Models {
		if err := verifyUniqueFieldNames(m); err != nil {
			return err
		}
		if err := verifyAutoFields(m); err != nil {
			return err
		}
		for _, f := range m.Fields {
			if err := verifyRelationIsIndexed(s, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func verifyUniqueFieldNames(m *app.Model) error {
	seen := make(map[string]bool, len(m.Fields))
	for _, f := range m.Fields {
		if seen[f.Name] {
			return fmt.Errorf("lattice: schema: model %q: duplicate field name %q", m.Name, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

func verifyAutoFields(m *app.Model) error {
	for _, f := range m.Fields {
		if f.Ty != app.FieldPrimitive || f.Attrs.Auto == app.AutoNone {
			continue
		}
		if f.Attrs.Auto == app.AutoIncrement && !f.PrimaryKey {
			return fmt.Errorf("lattice: schema: model %q field %q: auto_increment only valid on a primary key field", m.Name, f.Name)
		}
		if f.Attrs.Auto == app.AutoIncrement && (f.PrimitiveTy.Kind < value.KindI8 || f.PrimitiveTy.Kind > value.KindU64) {
			return fmt.Errorf("lattice: schema: model %q field %q: auto_increment only valid on an integer field", m.Name, f.Name)
		}
	}
	return nil
}

// verifyRelationIsIndexed: a BelongsTo needs no verification of its own
// (its FK columns just need to exist, already checked by the Builder);
// HasMany/HasOne need a usable index on the target model.
func verifyRelationIsIndexed(s *Schema, f *app.Field) error {
	switch f.Ty {
	case app.FieldHasMany:
		return verifyHasRelationIndexed(s, f.HasManyRel.Target, f.HasManyRel.Pair)
	case app.FieldHasOne:
		return verifyHasRelationIndexed(s, f.HasOneRel.Target, f.HasOneRel.Pair)
	default:
		return nil
	}
}

func verifyHasRelationIndexed(s *Schema, target value.ModelID, pair value.FieldID) error {
	targetModel := s.App.Model(target)
	belongsTo := targetModel.Field(pair).ExpectBelongsTo()

	for _, ix := range targetModel.Indices {
		if len(ix.Fields) < len(belongsTo.ForeignKey) {
			continue
		}
		matches := true
		for i, fk := range belongsTo.ForeignKey {
			if ix.Fields[i].Field != fk.Source {
				matches = false
				break
			}
		}
		if !matches {
			continue
		}
		if len(ix.Fields) == len(belongsTo.ForeignKey) {
			return nil
		}
		if ix.Fields[len(belongsTo.ForeignKey)].Scope.IsLocal() {
			return nil
		}
	}
	return fmt.Errorf("lattice: schema: relation paired with %q.%q has no usable index on %q for its foreign key %v",
		targetModel.Name, targetModel.Field(pair).Name, targetModel.Name, belongsTo.ForeignKey)
}
