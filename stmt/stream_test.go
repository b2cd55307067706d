package stmt_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

func TestValueStreamCollect(t *testing.T) {
	s := stmt.ValueStreamFromSlice(value.Scalar(value.KindI64), []value.Value{
		value.Int(1), value.Int(2), value.Int(3),
	})
	got, err := s.Collect()
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[1].Equal(value.Int(2)))
}

func TestValueStreamCollectStopsAtError(t *testing.T) {
	boom := errors.New("boom")
	i := 0
	rows := []value.Value{value.Int(1), value.Int(2)}
	s := stmt.NewValueStream(value.Scalar(value.KindI64), func() (value.Value, error, bool) {
		if i == 1 {
			return value.Value{}, boom, false
		}
		v := rows[i]
		i++
		return v, nil, true
	})
	got, err := s.Collect()
	assert.ErrorIs(t, err, boom)
	assert.Len(t, got, 1)
}

func TestValueStreamDupIsIndependentAndOrderPreserving(t *testing.T) {
	orig := []value.Value{value.Int(1), value.Int(2), value.Int(3)}
	s := stmt.ValueStreamFromSlice(value.Scalar(value.KindI64), orig)

	a, b, err := s.Dup()
	require.NoError(t, err)

	// Drain `a` fully first.
	gotA, err := a.Collect()
	require.NoError(t, err)
	require.Len(t, gotA, 3)

	// `b` must still independently replay the same values in order.
	gotB, err := b.Collect()
	require.NoError(t, err)
	require.Len(t, gotB, len(gotA))
	for i := range gotA {
		assert.True(t, gotA[i].Equal(gotB[i]))
		assert.True(t, gotA[i].Equal(orig[i]))
	}
}

func TestValueStreamWithType(t *testing.T) {
	s := stmt.ValueStreamFromSlice(value.Scalar(value.KindI64), []value.Value{value.Int(1)})
	retyped := s.WithType(value.Scalar(value.KindString))
	assert.Equal(t, value.KindString, retyped.Type().Kind)
}

func TestValueStreamTryClone(t *testing.T) {
	s := stmt.ValueStreamFromSlice(value.Scalar(value.KindI64), []value.Value{
		value.Int(1), value.Int(2), value.Int(3),
	})

	// Consume one row, then clone: the clone sees only the remainder.
	_, _, ok := s.Next()
	require.True(t, ok)

	clone, ok := s.TryClone()
	require.True(t, ok)
	got, err := clone.Collect()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(value.Int(2)))

	// The original is unaffected by the clone's progress.
	rest, err := s.Collect()
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestValueStreamTryCloneRefusesLiveCursor(t *testing.T) {
	s := stmt.NewValueStream(value.Scalar(value.KindI64), func() (value.Value, error, bool) {
		return value.Value{}, nil, false
	})
	_, ok := s.TryClone()
	assert.False(t, ok)
}
