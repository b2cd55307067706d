package exec

import (
	"errors"

	"github.com/lattice-orm/lattice/driver"
)

// Sentinel errors the executor returns for conditions the root lattice
// package's error taxonomy names. The root package recognizes
// these via errors.Is at the Db.Query/Exec boundary and rewraps them as
// *lattice.Error with the matching Kind, the same pattern
// value.ConversionError/stmt.EvalError already use.
var (
	// ErrConditionFailed is returned when a conditional UPDATE's
	// ExecStatement round trip or ReadModifyWrite fallback finds the
	// condition didn't hold. Aliases driver.ErrConditionFailed so a Driver's
	// UpdateByKey implementation can return the same sentinel directly.
	ErrConditionFailed = driver.ErrConditionFailed

	// ErrInvalidResult is returned when a driver's response has a shape
	// the executor didn't expect (a count where values were required, or
	// vice versa).
	ErrInvalidResult = errors.New("exec: driver returned an unexpected result shape")
)
