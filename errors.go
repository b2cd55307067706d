// Package lattice is the root of the query engine: it wires the schema
// Builder, the Simplifier/Lowerer/Planner pipeline, and a storage Driver
// into an executable Db handle, and defines the flat error taxonomy every
// lower layer's errors get translated into at this boundary.
package lattice

import (
	"errors"
	"fmt"
)

// Kind tags one of the flat error kinds observable at the engine boundary.
type Kind uint8

const (
	// KindRecordNotFound: a lookup by key found zero rows.
	KindRecordNotFound Kind = iota
	// KindTooManyRecords: a query expecting at most one row found more.
	KindTooManyRecords
	// KindConditionFailed: a conditional UPDATE matched zero rows, or its
	// read-modify-write fallback found the condition didn't hold.
	KindConditionFailed
	// KindSerializationFailure: the backend reports a serialization
	// conflict (e.g. Postgres SQLSTATE 40001); callers should retry.
	KindSerializationFailure
	// KindReadOnlyTransaction: a write was attempted in a read-only
	// transaction.
	KindReadOnlyTransaction
	// KindTransactionTimeout: a transaction's deadline elapsed; Db.Transaction
	// issued Rollback on the caller's behalf.
	KindTransactionTimeout
	// KindInvalidStatement: a statement references an unknown field or is
	// otherwise structurally invalid. Programming error.
	KindInvalidStatement
	// KindInvalidResult: a driver returned a row/count shape the executor
	// didn't expect. Programming or driver bug.
	KindInvalidResult
	// KindInvalidSchema: a build-time schema contradiction (duplicate
	// name, unindexed relation, unsupported storage type combination).
	KindInvalidSchema
	// KindInvalidDriverConfiguration: a driver's capability descriptor is
	// internally inconsistent.
	KindInvalidDriverConfiguration
	// KindExpressionEvaluationFailed: runtime expression evaluation
	// reached a leaf it couldn't resolve.
	KindExpressionEvaluationFailed
	// KindInvalidTypeConversion: a Value wasn't convertible to the
	// requested type.
	KindInvalidTypeConversion
	// KindUnsupportedFeature: the target driver lacks a capability the
	// statement needs (e.g. a non-Serializable isolation level on
	// SQLite).
	KindUnsupportedFeature
	// KindConnectionPool: the connection pool failed to hand out a
	// connection (exhausted, closed).
	KindConnectionPool
	// KindDriverOperationFailed: the driver's exec call returned a
	// transport-level error.
	KindDriverOperationFailed
	// KindDriver: a Driver implementation detail leaked through
	// unwrapped; wraps whatever the driver returned.
	KindDriver
	// KindAdhoc: an escape hatch for contextual errors that don't fit any
	// other kind.
	KindAdhoc
)

func (k Kind) String() string {
	switch k {
	case KindRecordNotFound:
		return "RecordNotFound"
	case KindTooManyRecords:
		return "TooManyRecords"
	case KindConditionFailed:
		return "ConditionFailed"
	case KindSerializationFailure:
		return "SerializationFailure"
	case KindReadOnlyTransaction:
		return "ReadOnlyTransaction"
	case KindTransactionTimeout:
		return "TransactionTimeout"
	case KindInvalidStatement:
		return "InvalidStatement"
	case KindInvalidResult:
		return "InvalidResult"
	case KindInvalidSchema:
		return "InvalidSchema"
	case KindInvalidDriverConfiguration:
		return "InvalidDriverConfiguration"
	case KindExpressionEvaluationFailed:
		return "ExpressionEvaluationFailed"
	case KindInvalidTypeConversion:
		return "InvalidTypeConversion"
	case KindUnsupportedFeature:
		return "UnsupportedFeature"
	case KindConnectionPool:
		return "ConnectionPool"
	case KindDriverOperationFailed:
		return "DriverOperationFailed"
	case KindDriver:
		return "Driver"
	default:
		return "Adhoc"
	}
}

// Error is the single error type every Kind above is carried in: a kind tag,
// a human-readable message, optional entity/operation context accumulated
// by Context, and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	context []string
	cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	s := fmt.Sprintf("lattice: %s: %s", e.Kind, msg)
	for _, c := range e.context {
		s = fmt.Sprintf("%s: %s", c, s)
	}
	if e.cause != nil {
		s = fmt.Sprintf("%s: %v", s, e.cause)
	}
	return s
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is the Kind sentinel this Error carries, so
// callers can write errors.Is(err, lattice.ErrConditionFailed).
func (e *Error) Is(target error) bool {
	var sentinel *kindSentinel
	if errors.As(target, &sentinel) {
		return sentinel.kind == e.Kind
	}
	return false
}

// Context prepends a human-readable operation label to the error's
// message. Each call adds one more layer; the innermost context (closest
// to the original failure) prints last.
func (e *Error) Context(label string) *Error {
	cp := *e
	cp.context = append(append([]string(nil), e.context...), label)
	return &cp
}

// kindSentinel is a comparable marker so errors.Is(err, ErrXxx) matches any
// *Error of that Kind regardless of message/cause/context.
type kindSentinel struct {
	kind Kind
}

func (s *kindSentinel) Error() string { return "lattice: " + s.kind.String() }

// Sentinel errors, one per Kind, for errors.Is matching against any *Error
// carrying that Kind.
var (
	ErrRecordNotFound             = &kindSentinel{KindRecordNotFound}
	ErrTooManyRecords             = &kindSentinel{KindTooManyRecords}
	ErrConditionFailed            = &kindSentinel{KindConditionFailed}
	ErrSerializationFailure       = &kindSentinel{KindSerializationFailure}
	ErrReadOnlyTransaction        = &kindSentinel{KindReadOnlyTransaction}
	ErrTransactionTimeout         = &kindSentinel{KindTransactionTimeout}
	ErrInvalidStatement           = &kindSentinel{KindInvalidStatement}
	ErrInvalidResult              = &kindSentinel{KindInvalidResult}
	ErrInvalidSchema              = &kindSentinel{KindInvalidSchema}
	ErrInvalidDriverConfiguration = &kindSentinel{KindInvalidDriverConfiguration}
	ErrExpressionEvaluationFailed = &kindSentinel{KindExpressionEvaluationFailed}
	ErrInvalidTypeConversion      = &kindSentinel{KindInvalidTypeConversion}
	ErrUnsupportedFeature         = &kindSentinel{KindUnsupportedFeature}
	ErrConnectionPool             = &kindSentinel{KindConnectionPool}
	ErrDriverOperationFailed      = &kindSentinel{KindDriverOperationFailed}
	ErrDriver                     = &kindSentinel{KindDriver}
	ErrAdhoc                      = &kindSentinel{KindAdhoc}
)

// New returns an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error of the given kind wrapping cause, so the original
// error remains reachable via errors.Unwrap/errors.As.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// AsKind extracts the *Error and its Kind from err, if any layer of its
// wrap chain is one.
func AsKind(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// Adhoc wraps cause with KindAdhoc and a message, the escape hatch for
// contextual errors that don't fit any other kind.
func Adhoc(cause error, format string, args ...any) *Error {
	return Wrap(KindAdhoc, cause, format, args...)
}
