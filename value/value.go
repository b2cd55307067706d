package value

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Value is the tagged value universe flowing through the engine: rows,
// literals, and evaluated expressions are all Value.
//
// The zero Value has KindUnknown and is not Null; use Null() for a null
// value.
type Value struct {
	kind Kind

	b     bool
	i     int64
	u     uint64
	f     float64
	s     string
	bytes []byte

	id Id

	list   []Value
	record []Value
	sparse *SparseRecord
	enum   *Enum

	t time.Time
}

// Id is a model-scoped identifier. It is structurally either an integer or a
// string (e.g. a UUID's canonical string form).
type Id struct {
	Model ModelID
	// Repr is the string representation when the id is string-backed
	// (UUIDs, natural keys). Empty when IsInt is true.
	Repr  string
	Int   int64
	IsInt bool
}

// NewIntId builds an integer-backed Id.
func NewIntId(model ModelID, v int64) Id { return Id{Model: model, Int: v, IsInt: true} }

// NewStringId builds a string-backed Id.
func NewStringId(model ModelID, v string) Id { return Id{Model: model, Repr: v} }

// NewUUIDId mints a random UUIDv4-backed Id for model, using google/uuid.
func NewUUIDId(model ModelID) Id { return Id{Model: model, Repr: uuid.NewString()} }

func (id Id) String() string {
	if id.IsInt {
		return fmt.Sprintf("%d", id.Int)
	}
	return id.Repr
}

// SparseRecord encodes "some fields of a model" as a bitset plus a
// positionally-dense values slice (len(Values) == Fields.Count()).
type SparseRecord struct {
	Fields *BitSet
	Values []Value
}

// Enum is a discriminated value: the active variant index plus its payload.
type Enum struct {
	Discriminant int
	Payload      []Value
}

func Null() Value                 { return Value{kind: KindNull} }
func Bool(b bool) Value           { return Value{kind: KindBool, b: b} }
func Int(i int64) Value           { return Value{kind: KindI64, i: i} }
func Uint(u uint64) Value         { return Value{kind: KindU64, u: u} }
func Float(f float64) Value       { return Value{kind: KindF64, f: f} }
func String(s string) Value       { return Value{kind: KindString, s: s} }
func Bytes(b []byte) Value        { return Value{kind: KindBytes, bytes: b} }
func IdValue(id Id) Value         { return Value{kind: KindId, id: id} }
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, t: t} }

// Date builds a calendar-date value (time-of-day components ignored by
// comparisons/serialization at the driver boundary).
func Date(t time.Time) Value { return Value{kind: KindDate, t: t} }

// TimeOfDay builds a wall-clock-time value (date components ignored by
// comparisons/serialization at the driver boundary).
func TimeOfDay(t time.Time) Value { return Value{kind: KindTime, t: t} }

// DateTime builds a combined date+time value without a UTC offset,
// distinct from Timestamp (which carries zone/instant semantics).
func DateTime(t time.Time) Value { return Value{kind: KindDateTime, t: t} }

// Decimal builds a fixed-point decimal value from its canonical string
// representation (e.g. "19.99"). The engine never parses or arithmetics on
// decimals itself; it passes the string through to drivers with native
// decimal support (schema.StorageTypes.NativeDecimal) or stores it as
// TEXT/NUMERIC otherwise.
func Decimal(s string) Value { return Value{kind: KindDecimal, s: s} }

func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Record builds a dense positional record.
func Record(fields ...Value) Value { return Value{kind: KindRecord, record: fields} }

// NewSparseRecord builds a SparseRecord value from a bitset and the dense
// record it was projected from.
func NewSparseRecord(fields *BitSet, full []Value) Value {
	var values []Value
	for _, pos := range fields.Positions() {
		if pos < len(full) {
			values = append(values, full[pos])
		} else {
			values = append(values, Null())
		}
	}
	return Value{kind: KindSparseRecord, sparse: &SparseRecord{Fields: fields, Values: values}}
}

func EnumValue(discriminant int, payload ...Value) Value {
	return Value{kind: KindEnum, enum: &Enum{Discriminant: discriminant, Payload: payload}}
}

func (v Value) Kind() Kind        { return v.kind }
func (v Value) IsNull() bool      { return v.kind == KindNull }
func (v Value) AsBool() bool      { return v.b }
func (v Value) AsInt() int64      { return v.i }
func (v Value) AsUint() uint64    { return v.u }
func (v Value) AsFloat() float64  { return v.f }
func (v Value) AsString() string  { return v.s }
func (v Value) AsBytes() []byte   { return v.bytes }
func (v Value) AsId() Id          { return v.id }
func (v Value) AsList() []Value   { return v.list }
func (v Value) AsRecord() []Value { return v.record }
func (v Value) AsSparse() *SparseRecord { return v.sparse }
func (v Value) AsEnum() *Enum     { return v.enum }
func (v Value) AsTime() time.Time { return v.t }

// Ty infers the Type of this value. List/Record infer recursively.
func (v Value) Ty() Type {
	switch v.kind {
	case KindList:
		if len(v.list) == 0 {
			return ListOf(Unknown)
		}
		return ListOf(v.list[0].Ty())
	case KindRecord:
		fields := make([]Type, len(v.record))
		for i, f := range v.record {
			fields[i] = f.Ty()
		}
		return RecordOf(fields...)
	case KindSparseRecord:
		return SparseRecordOf(v.sparse.Fields)
	case KindId:
		return Type{Kind: KindId, Model: v.id.Model}
	default:
		return Scalar(v.kind)
	}
}

// IsA reports whether v is a member of ty (Union membership, List element
// compatibility, exact scalar match otherwise).
func (v Value) IsA(ty Type) bool {
	if ty.Kind == KindUnion {
		for _, m := range ty.Union {
			if v.IsA(m) {
				return true
			}
		}
		return false
	}
	if ty.Kind == KindUnknown {
		return true
	}
	return v.Ty().Equal(ty)
}

// Equal performs value equality used by constant folding and the HashIndex.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindI8, KindI16, KindI32, KindI64:
		return v.i == o.i
	case KindU8, KindU16, KindU32, KindU64:
		return v.u == o.u
	case KindF32, KindF64:
		return v.f == o.f
	case KindString, KindDecimal:
		return v.s == o.s
	case KindBytes:
		return string(v.bytes) == string(o.bytes)
	case KindId:
		return v.id == o.id
	case KindTimestamp, KindDate, KindTime, KindDateTime:
		return v.t.Equal(o.t)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindRecord:
		if len(v.record) != len(o.record) {
			return false
		}
		for i := range v.record {
			if !v.record[i].Equal(o.record[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindBool:
		return fmt.Sprintf("%v", v.b)
	case KindString, KindDecimal:
		return v.s
	case KindId:
		return v.id.String()
	case KindTimestamp, KindDate, KindTime, KindDateTime:
		return v.t.String()
	default:
		return fmt.Sprintf("%v", v.kind)
	}
}
