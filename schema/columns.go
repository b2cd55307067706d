package schema

import (
	"fmt"

	atlasschema "ariga.io/atlas/sql/schema"

	"github.com/lattice-orm/lattice/schema/app"
	"github.com/lattice-orm/lattice/value"
)

// columnsFor emits the storage column(s) for one primitive or embedded
// field, choosing native types per the driver's Capability.
func columnsFor(cap Capability, fd FieldDescriptor) ([]*atlasschema.Column, error) {
	if fd.Embedded != nil {
		cols := make([]*atlasschema.Column, 0, len(fd.Embedded.Fields))
		for _, sub := range fd.Embedded.Fields {
			ct, err := columnTypeFor(cap, sub.Ty)
			if err != nil {
				return nil, fmt.Errorf("embedded field %q: %w", sub.Name, err)
			}
			name := toSnakeCase(fd.Embedded.Name) + "_" + toSnakeCase(sub.Name)
			cols = append(cols, &atlasschema.Column{
				Name: name,
				Type: &atlasschema.ColumnType{Type: ct, Null: sub.Nullable},
			})
		}
		return cols, nil
	}

	ct, err := columnTypeFor(cap, fd.Ty)
	if err != nil {
		return nil, err
	}
	col := &atlasschema.Column{
		Name: toSnakeCase(fd.Name),
		Type: &atlasschema.ColumnType{Type: ct, Null: fd.Nullable},
	}
	// AUTO_INCREMENT/IDENTITY is dialect-specific syntax, not a storage
	// type; dialect/sql/ddl.go attaches the right attribute per dialect
	// when the field's Auto is app.AutoIncrement, without consulting the
	// driver capability.
	return []*atlasschema.Column{col}, nil
}

// columnTypeFor maps a value.Type to its atlas storage representation. Falls
// back to a generic string/binary encoding for kinds a given Capability
// doesn't support natively (e.g. Decimal without NativeDecimal), surfacing
// an UnsupportedFeature-worthy error only when no reasonable fallback
// exists.
func columnTypeFor(cap Capability, ty value.Type) (atlasschema.Type, error) {
	switch ty.Kind {
	case value.KindBool:
		return &atlasschema.BoolType{T: "boolean"}, nil
	case value.KindI8, value.KindI16, value.KindI32, value.KindI64,
		value.KindU8, value.KindU16, value.KindU32, value.KindU64:
		unsigned := ty.Kind == value.KindU8 || ty.Kind == value.KindU16 ||
			ty.Kind == value.KindU32 || ty.Kind == value.KindU64
		return &atlasschema.IntegerType{T: integerRaw(ty.Kind), Unsigned: unsigned}, nil
	case value.KindF32:
		return &atlasschema.FloatType{T: "float"}, nil
	case value.KindF64:
		return &atlasschema.FloatType{T: "double"}, nil
	case value.KindDecimal:
		if cap.StorageTypes.NativeDecimal {
			return &atlasschema.DecimalType{T: "decimal", Precision: 38, Scale: 10}, nil
		}
		return &atlasschema.StringType{T: "text"}, nil
	case value.KindString:
		if cap.StorageTypes.Varchar > 0 {
			return &atlasschema.StringType{T: "varchar", Size: cap.StorageTypes.Varchar}, nil
		}
		return &atlasschema.StringType{T: "text"}, nil
	case value.KindBytes:
		return &atlasschema.BinaryType{T: "blob"}, nil
	case value.KindTimestamp, value.KindDate, value.KindTime, value.KindDateTime:
		return &atlasschema.TimeType{T: "timestamp"}, nil
	case value.KindId:
		if cap.StorageTypes.NativeUUID {
			return &atlasschema.StringType{T: "uuid"}, nil
		}
		return &atlasschema.StringType{T: "varchar", Size: 36}, nil
	case value.KindList, value.KindRecord, value.KindSparseRecord, value.KindEnum:
		if cap.StorageTypes.NativeJSON {
			return &atlasschema.JSONType{T: "json"}, nil
		}
		return &atlasschema.StringType{T: "text"}, nil
	default:
		return nil, fmt.Errorf("no storage type for value kind %s", ty.Kind)
	}
}

func integerRaw(k value.Kind) string {
	switch k {
	case value.KindI8, value.KindU8:
		return "tinyint"
	case value.KindI16, value.KindU16:
		return "smallint"
	case value.KindI32, value.KindU32:
		return "int"
	default:
		return "bigint"
	}
}

// buildIndex emits an app.Index plus its atlas storage representation from
// an IndexDescriptor, resolving each named field to the ColumnIDs already
// recorded in mm.
func buildIndex(model *app.Model, mm *ModelMapping, id value.IndexID, ixd IndexDescriptor) (*app.Index, *atlasschema.Index, []value.ColumnID, error) {
	fields := make([]app.IndexField, 0, len(ixd.Fields))
	var colIDs []value.ColumnID
	var parts []*atlasschema.IndexPart
	for _, name := range ixd.Fields {
		f := model.FieldByName(name)
		if f == nil {
			return nil, nil, nil, fmt.Errorf("lattice: schema: model %q: index field %q not found", model.Name, name)
		}
		fm, ok := mm.Fields[f.ID]
		if !ok || len(fm.Columns) == 0 {
			return nil, nil, nil, fmt.Errorf("lattice: schema: model %q: index field %q has no column mapping", model.Name, name)
		}
		for _, cid := range fm.Columns {
			fields = append(fields, app.IndexField{Field: f.ID, Op: app.IndexOpEq, Scope: app.ScopeLocal})
			colIDs = append(colIDs, cid)
			parts = append(parts, &atlasschema.IndexPart{SeqNo: len(parts)})
		}
	}
	ix := &app.Index{
		ID:         id,
		Fields:     fields,
		Unique:     ixd.Unique,
		PrimaryKey: isPrimaryKeyIndex(model, ixd),
	}
	atlasIx := &atlasschema.Index{
		Name:   indexName(model.Name, ixd.Fields),
		Unique: ixd.Unique,
		Parts:  parts,
	}
	return ix, atlasIx, colIDs, nil
}

func indexName(modelName string, fields []string) string {
	name := "idx_" + toSnakeCase(modelName)
	for _, f := range fields {
		name += "_" + toSnakeCase(f)
	}
	return name
}
