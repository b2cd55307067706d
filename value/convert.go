package value

import "fmt"

// ConversionError reports a failed typed conversion out of a Value. Callers
// at the lattice boundary wrap this into lattice.ErrInvalidTypeConversion.
type ConversionError struct {
	From Kind
	To   string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %s to %s", e.From, e.To)
}

// Bool converts v to bool, or fails with *ConversionError.
func (v Value) Bool() (bool, error) {
	if v.kind != KindBool {
		return false, &ConversionError{From: v.kind, To: "bool"}
	}
	return v.b, nil
}

// Int64 converts a signed or unsigned integer v to int64, or fails with
// *ConversionError. Floats are not converted, and an unsigned value above
// math.MaxInt64 wraps to a negative number.
func (v Value) Int64() (int64, error) {
	switch v.kind {
	case KindI8, KindI16, KindI32, KindI64:
		return v.i, nil
	case KindU8, KindU16, KindU32, KindU64:
		return int64(v.u), nil
	default:
		return 0, &ConversionError{From: v.kind, To: "int64"}
	}
}

// Str converts v to string, or fails with *ConversionError.
func (v Value) Str() (string, error) {
	if v.kind != KindString {
		return "", &ConversionError{From: v.kind, To: "string"}
	}
	return v.s, nil
}

// IdOf converts v to Id, or fails with *ConversionError.
func (v Value) IdOf() (Id, error) {
	if v.kind != KindId {
		return Id{}, &ConversionError{From: v.kind, To: "id"}
	}
	return v.id, nil
}
