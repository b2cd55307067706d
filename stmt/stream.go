package stmt

import "github.com/lattice-orm/lattice/value"

// ValueStream is a lazily-produced sequence of rows, each either a Value or
// an error. It is the payload type carried by driver.Response and consumed
// by the Executor when an Action streams rows rather than returning a single
// Count.
//
// A ValueStream is single-pass: once Next returns (false, nil), the stream
// is exhausted. Collect buffers the remainder and is the usual way planners
// materialize a child side of a NestedMerge before building a HashIndex.
type ValueStream struct {
	ty   value.Type
	next func() (value.Value, error, bool)

	// buf/pos are set only for buffered (slice-backed) streams, letting
	// TryClone replay the remainder without consuming this side.
	buf []value.Value
	pos *int
}

// NewValueStream wraps next as a ValueStream of the given element type.
// next returns (value, err, ok); ok is false once the stream is exhausted.
func NewValueStream(ty value.Type, next func() (value.Value, error, bool)) *ValueStream {
	return &ValueStream{ty: ty, next: next}
}

// ValueStreamFromSlice returns a buffered ValueStream that replays values
// in order.
func ValueStreamFromSlice(ty value.Type, values []value.Value) *ValueStream {
	i := 0
	return &ValueStream{
		ty:  ty,
		buf: values,
		pos: &i,
		next: func() (value.Value, error, bool) {
			if i >= len(values) {
				return value.Value{}, nil, false
			}
			v := values[i]
			i++
			return v, nil, true
		},
	}
}

// Type returns the element type rows in the stream conform to.
func (s *ValueStream) Type() value.Type { return s.ty }

// Next pulls the next row. ok is false, err is nil once the stream is
// exhausted without error.
func (s *ValueStream) Next() (value.Value, error, bool) {
	if s.next == nil {
		return value.Value{}, nil, false
	}
	return s.next()
}

// Collect drains the stream into a slice, stopping at the first error.
func (s *ValueStream) Collect() ([]value.Value, error) {
	var out []value.Value
	for {
		v, err, ok := s.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

// WithType returns a copy of the stream asserting a new element type,
// used after a Project action narrows rows to a sub-field.
func (s *ValueStream) WithType(ty value.Type) *ValueStream {
	cp := *s
	cp.ty = ty
	return &cp
}

// Dup materializes the stream and returns two independent replay streams
// over the same buffered rows — used by the Executor's VarStore when a
// variable still has more than one use left to serve.
func (s *ValueStream) Dup() (*ValueStream, *ValueStream, error) {
	rows, err := s.Collect()
	if err != nil {
		return nil, nil, err
	}
	return ValueStreamFromSlice(s.ty, rows), ValueStreamFromSlice(s.ty, rows), nil
}

// TryClone returns an independent replay of the stream's remaining rows
// without consuming this side, and reports whether it could: only a
// buffered (slice-backed) stream clones this way. A live driver cursor
// returns (nil, false); use Dup to buffer it first.
func (s *ValueStream) TryClone() (*ValueStream, bool) {
	if s.pos == nil {
		return nil, false
	}
	return ValueStreamFromSlice(s.ty, s.buf[*s.pos:]), true
}
