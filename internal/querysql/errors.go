package querysql

import (
	"errors"
	"fmt"
)

// InvariantError reports a domain that cannot be turned into SQL because
// it was not fully optimized: a non-standard operator, a value of the
// wrong shape, a field without a column, an empty n-ary node.
type InvariantError struct {
	// Message is a human-readable description.
	Message string

	// Condition is the offending leaf as a 3-tuple, when there is one.
	Condition string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	if e.Condition != "" {
		return fmt.Sprintf("invariant violated: %s in condition %s", e.Message, e.Condition)
	}
	return "invariant violated: " + e.Message
}

func newInvariantError(format string, args ...any) *InvariantError {
	return &InvariantError{Message: fmt.Sprintf(format, args...)}
}

// IsInvariantError returns true if err is, or wraps, an InvariantError.
func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
