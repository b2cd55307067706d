package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-orm/lattice/value"
)

func TestValueTy(t *testing.T) {
	t.Run("scalars", func(t *testing.T) {
		assert.Equal(t, value.KindBool, value.Bool(true).Ty().Kind)
		assert.Equal(t, value.KindString, value.String("x").Ty().Kind)
		assert.Equal(t, value.KindNull, value.Null().Ty().Kind)
	})

	t.Run("list infers from first element", func(t *testing.T) {
		ty := value.List(value.Int(1), value.Int(2)).Ty()
		require.Equal(t, value.KindList, ty.Kind)
		assert.Equal(t, value.KindI64, ty.Elem.Kind)
	})

	t.Run("empty list is List<Unknown>", func(t *testing.T) {
		ty := value.List().Ty()
		assert.Equal(t, value.KindList, ty.Kind)
		assert.Equal(t, value.KindUnknown, ty.Elem.Kind)
	})

	t.Run("record infers positional field types", func(t *testing.T) {
		ty := value.Record(value.Int(1), value.String("a")).Ty()
		require.Len(t, ty.Fields, 2)
		assert.Equal(t, value.KindI64, ty.Fields[0].Kind)
		assert.Equal(t, value.KindString, ty.Fields[1].Kind)
	})

	t.Run("id carries its model", func(t *testing.T) {
		id := value.NewIntId(value.ModelID(7), 1)
		ty := value.IdValue(id).Ty()
		assert.Equal(t, value.KindId, ty.Kind)
		assert.Equal(t, value.ModelID(7), ty.Model)
	})
}

func TestValueIsA(t *testing.T) {
	assert.True(t, value.Int(1).IsA(value.Scalar(value.KindI64)))
	assert.False(t, value.Int(1).IsA(value.Scalar(value.KindString)))
	assert.True(t, value.Int(1).IsA(value.Unknown))

	union := value.UnionOf(value.Scalar(value.KindI64), value.Scalar(value.KindString))
	assert.True(t, value.Int(1).IsA(union))
	assert.True(t, value.String("x").IsA(union))
	assert.False(t, value.Bool(true).IsA(union))
}

func TestValueEqual(t *testing.T) {
	t.Run("same kind and payload", func(t *testing.T) {
		assert.True(t, value.Int(5).Equal(value.Int(5)))
		assert.False(t, value.Int(5).Equal(value.Int(6)))
	})

	t.Run("different kinds never equal", func(t *testing.T) {
		assert.False(t, value.Int(5).Equal(value.Uint(5)))
	})

	t.Run("null equals null", func(t *testing.T) {
		assert.True(t, value.Null().Equal(value.Null()))
	})

	t.Run("records compare element-wise", func(t *testing.T) {
		a := value.Record(value.Int(1), value.String("a"))
		b := value.Record(value.Int(1), value.String("a"))
		c := value.Record(value.Int(1), value.String("b"))
		assert.True(t, a.Equal(b))
		assert.False(t, a.Equal(c))
	})

	t.Run("lists compare element-wise and length", func(t *testing.T) {
		a := value.List(value.Int(1), value.Int(2))
		b := value.List(value.Int(1), value.Int(2))
		c := value.List(value.Int(1))
		assert.True(t, a.Equal(b))
		assert.False(t, a.Equal(c))
	})

	t.Run("ids compare by model and repr", func(t *testing.T) {
		a := value.IdValue(value.NewIntId(1, 10))
		b := value.IdValue(value.NewIntId(1, 10))
		c := value.IdValue(value.NewIntId(2, 10))
		assert.True(t, a.Equal(b))
		assert.False(t, a.Equal(c))
	})
}

func TestSparseRecord(t *testing.T) {
	full := []value.Value{value.Int(1), value.String("a"), value.Bool(true)}
	bits := value.BitSetFrom(0, 2)
	sr := value.NewSparseRecord(bits, full)

	require.Equal(t, value.KindSparseRecord, sr.Kind())
	values := sr.AsSparse().Values
	require.Len(t, values, 2)
	assert.True(t, values[0].Equal(value.Int(1)))
	assert.True(t, values[1].Equal(value.Bool(true)))
}

func TestIdString(t *testing.T) {
	assert.Equal(t, "10", value.NewIntId(1, 10).String())
	assert.Equal(t, "abc", value.NewStringId(1, "abc").String())

	uid := value.NewUUIDId(1)
	assert.NotEmpty(t, uid.Repr)
	assert.False(t, uid.IsInt)
}

func TestConversions(t *testing.T) {
	t.Run("bool roundtrip", func(t *testing.T) {
		b, err := value.Bool(true).Bool()
		require.NoError(t, err)
		assert.True(t, b)
	})

	t.Run("bool conversion error", func(t *testing.T) {
		_, err := value.Int(1).Bool()
		var convErr *value.ConversionError
		assert.ErrorAs(t, err, &convErr)
	})

	t.Run("int64 widens unsigned", func(t *testing.T) {
		i, err := value.Uint(42).Int64()
		require.NoError(t, err)
		assert.Equal(t, int64(42), i)
	})

	t.Run("string conversion error reports kind", func(t *testing.T) {
		_, err := value.Bool(true).Str()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bool")
	})

	t.Run("id conversion", func(t *testing.T) {
		want := value.NewIntId(3, 9)
		got, err := value.IdValue(want).IdOf()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}
