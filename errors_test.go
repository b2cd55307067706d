package lattice_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-orm/lattice"
)

func TestErrorIs(t *testing.T) {
	t.Run("matches its own kind's sentinel", func(t *testing.T) {
		err := lattice.New(lattice.KindRecordNotFound, "User")
		assert.True(t, errors.Is(err, lattice.ErrRecordNotFound))
	})

	t.Run("does not match a different kind's sentinel", func(t *testing.T) {
		err := lattice.New(lattice.KindRecordNotFound, "User")
		assert.False(t, errors.Is(err, lattice.ErrConditionFailed))
	})

	t.Run("matches through fmt.Errorf wrapping", func(t *testing.T) {
		err := lattice.New(lattice.KindConditionFailed, "version mismatch")
		wrapped := fmt.Errorf("update: %w", err)
		assert.True(t, errors.Is(wrapped, lattice.ErrConditionFailed))
	})
}

func TestErrorMessage(t *testing.T) {
	err := lattice.New(lattice.KindRecordNotFound, "User id=7")
	assert.Equal(t, "lattice: RecordNotFound: User id=7", err.Error())
}

func TestErrorContext(t *testing.T) {
	t.Run("single layer", func(t *testing.T) {
		err := lattice.New(lattice.KindConditionFailed, "version mismatch").Context("update User")
		assert.Equal(t, "update User: lattice: ConditionFailed: version mismatch", err.Error())
	})

	t.Run("nested layers print innermost last", func(t *testing.T) {
		err := lattice.New(lattice.KindConditionFailed, "version mismatch").
			Context("update User").
			Context("retry 2")
		assert.Equal(t, "retry 2: update User: lattice: ConditionFailed: version mismatch", err.Error())
	})

	t.Run("does not mutate the original", func(t *testing.T) {
		base := lattice.New(lattice.KindConditionFailed, "version mismatch")
		_ = base.Context("update User")
		assert.Equal(t, "lattice: ConditionFailed: version mismatch", base.Error())
	})
}

func TestWrapUnwrap(t *testing.T) {
	underlying := errors.New("connection refused")
	err := lattice.Wrap(lattice.KindDriverOperationFailed, underlying, "exec GetByKey")

	assert.True(t, errors.Is(err, underlying))
	assert.True(t, errors.Is(err, lattice.ErrDriverOperationFailed))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsAndAsKind(t *testing.T) {
	err := lattice.New(lattice.KindUnsupportedFeature, "isolation level")
	wrapped := fmt.Errorf("driver/sql: %w", err)

	assert.True(t, lattice.Is(wrapped, lattice.KindUnsupportedFeature))
	assert.False(t, lattice.Is(wrapped, lattice.KindInvalidSchema))

	got, ok := lattice.AsKind(wrapped)
	require.True(t, ok)
	assert.Equal(t, lattice.KindUnsupportedFeature, got.Kind)

	assert.False(t, lattice.Is(nil, lattice.KindAdhoc))
}

func TestAdhoc(t *testing.T) {
	underlying := errors.New("boom")
	err := lattice.Adhoc(underlying, "unexpected state in %s", "planner")

	assert.True(t, errors.Is(err, lattice.ErrAdhoc))
	assert.True(t, errors.Is(err, underlying))
	assert.Contains(t, err.Error(), "unexpected state in planner")
}

func TestKindString(t *testing.T) {
	cases := map[lattice.Kind]string{
		lattice.KindRecordNotFound:             "RecordNotFound",
		lattice.KindTooManyRecords:             "TooManyRecords",
		lattice.KindConditionFailed:            "ConditionFailed",
		lattice.KindSerializationFailure:       "SerializationFailure",
		lattice.KindReadOnlyTransaction:        "ReadOnlyTransaction",
		lattice.KindTransactionTimeout:         "TransactionTimeout",
		lattice.KindInvalidStatement:           "InvalidStatement",
		lattice.KindInvalidResult:              "InvalidResult",
		lattice.KindInvalidSchema:              "InvalidSchema",
		lattice.KindInvalidDriverConfiguration: "InvalidDriverConfiguration",
		lattice.KindExpressionEvaluationFailed: "ExpressionEvaluationFailed",
		lattice.KindInvalidTypeConversion:      "InvalidTypeConversion",
		lattice.KindUnsupportedFeature:         "UnsupportedFeature",
		lattice.KindConnectionPool:             "ConnectionPool",
		lattice.KindDriverOperationFailed:      "DriverOperationFailed",
		lattice.KindDriver:                     "Driver",
		lattice.KindAdhoc:                      "Adhoc",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}

func BenchmarkErrors(b *testing.B) {
	b.Run("New", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = lattice.New(lattice.KindRecordNotFound, "User")
		}
	})

	b.Run("Is", func(b *testing.B) {
		err := lattice.New(lattice.KindRecordNotFound, "User")
		for i := 0; i < b.N; i++ {
			_ = errors.Is(err, lattice.ErrRecordNotFound)
		}
	})

	b.Run("Context", func(b *testing.B) {
		err := lattice.New(lattice.KindConditionFailed, "version mismatch")
		for i := 0; i < b.N; i++ {
			_ = err.Context("update User")
		}
	})
}
