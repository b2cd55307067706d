// Package value defines the tagged value and type universe shared by the
// expression IR, schema model, and executor.
package value

import "fmt"

// Kind tags the variant of a Type or Value.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNull
	KindBool
	KindI8
	KindI16
	KindI32
	KindI64
	KindU8
	KindU16
	KindU32
	KindU64
	KindF32
	KindF64
	KindString
	KindBytes
	KindId
	KindDecimal
	KindTimestamp
	KindDate
	KindTime
	KindDateTime
	KindList
	KindRecord
	KindSparseRecord
	KindUnion
	KindModel
	KindEnum
	KindUnit
)

func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "unknown"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindI8, KindI16, KindI32, KindI64:
		return "int"
	case KindU8, KindU16, KindU32, KindU64:
		return "uint"
	case KindF32, KindF64:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindId:
		return "id"
	case KindDecimal:
		return "decimal"
	case KindTimestamp:
		return "timestamp"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	case KindDateTime:
		return "datetime"
	case KindList:
		return "list"
	case KindRecord:
		return "record"
	case KindSparseRecord:
		return "sparse_record"
	case KindUnion:
		return "union"
	case KindModel:
		return "model"
	case KindEnum:
		return "enum"
	case KindUnit:
		return "unit"
	default:
		return "invalid"
	}
}

// ModelID identifies a model within a schema. It is opaque and minted only by
// the schema builder.
type ModelID uint32

// Type mirrors Value, plus the structural types used only for inference
// (Unknown, Union, Model, Unit).
type Type struct {
	Kind Kind

	// List: element type.
	Elem *Type

	// Record: positional field types.
	Fields []Type

	// SparseRecord: which positions may be present.
	Bits *BitSet

	// Union: set of alternative types. Equality is set-equality.
	Union []Type

	// Model: the model this value is an identifier/instance of.
	Model ModelID

	// Enum: variant payload types, indexed by discriminant.
	Variants [][]Type
}

// Unknown is the type assigned to an expression before inference runs.
var Unknown = Type{Kind: KindUnknown}

// Unit is the type of a statement executed only for its side effect.
var Unit = Type{Kind: KindUnit}

func Scalar(k Kind) Type { return Type{Kind: k} }

func ListOf(elem Type) Type { return Type{Kind: KindList, Elem: &elem} }

func RecordOf(fields ...Type) Type { return Type{Kind: KindRecord, Fields: fields} }

func SparseRecordOf(bits *BitSet) Type { return Type{Kind: KindSparseRecord, Bits: bits} }

func ModelOf(id ModelID) Type { return Type{Kind: KindModel, Model: id} }

// UnionOf builds a Union type. A single member collapses to that member.
func UnionOf(members ...Type) Type {
	if len(members) == 1 {
		return members[0]
	}
	return Type{Kind: KindUnion, Union: members}
}

// Equal implements set-equality for Union and structural equality otherwise.
func (t Type) Equal(o Type) bool {
	if t.Kind == KindUnion && o.Kind == KindUnion {
		return unionSetEqual(t.Union, o.Union)
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindList:
		return t.Elem.Equal(*o.Elem)
	case KindRecord:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if !t.Fields[i].Equal(o.Fields[i]) {
				return false
			}
		}
		return true
	case KindSparseRecord:
		return t.Bits.Equal(o.Bits)
	case KindModel:
		return t.Model == o.Model
	default:
		return true
	}
}

func unionSetEqual(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, at := range a {
		found := false
		for i, bt := range b {
			if !used[i] && at.Equal(bt) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (t Type) String() string {
	switch t.Kind {
	case KindList:
		return fmt.Sprintf("List<%s>", t.Elem)
	case KindRecord:
		return fmt.Sprintf("Record%v", t.Fields)
	case KindModel:
		return fmt.Sprintf("Model(%d)", t.Model)
	default:
		return t.Kind.String()
	}
}

// IsUnit reports whether t is the Unit type.
func (t Type) IsUnit() bool { return t.Kind == KindUnit }
