package optimize

import (
	"errors"
	"fmt"
)

// OptimizeError reports a domain that cannot be optimized against a model.
//
// Optimize errors include:
//   - Unknown field: the leaf names a field the model does not have
//   - Type mismatch: the operator makes no sense for the field type
//   - Invalid value: the value cannot be coerced to the field type
//   - Not searchable: a computed field has no way to be searched
type OptimizeError struct {
	// Code identifies the error category.
	Code OptimizeErrorCode

	// Message is a human-readable description.
	Message string

	// Condition is the offending leaf as a 3-tuple, when there is one.
	Condition string

	// Model is the name of the model the leaf was optimized against.
	Model string
}

// OptimizeErrorCode categorizes optimize errors.
type OptimizeErrorCode string

const (
	// ErrCodeUnknownField indicates a field missing from the model.
	ErrCodeUnknownField OptimizeErrorCode = "UNKNOWN_FIELD"

	// ErrCodeInvalidPath indicates a dotted path through a non-relational field.
	ErrCodeInvalidPath OptimizeErrorCode = "INVALID_PATH"

	// ErrCodeTypeMismatch indicates an operator not supported by the field type.
	ErrCodeTypeMismatch OptimizeErrorCode = "TYPE_MISMATCH"

	// ErrCodeInvalidValue indicates a value that does not fit the operator or field.
	ErrCodeInvalidValue OptimizeErrorCode = "INVALID_VALUE"

	// ErrCodeNotSearchable indicates a computed field without a search delegate.
	ErrCodeNotSearchable OptimizeErrorCode = "NOT_SEARCHABLE"

	// ErrCodeNoEnv indicates a rule that needs to search but has no Env.
	ErrCodeNoEnv OptimizeErrorCode = "NO_ENV"

	// ErrCodeNoFixedPoint indicates the step limit was reached.
	ErrCodeNoFixedPoint OptimizeErrorCode = "NO_FIXED_POINT"

	// ErrCodeUnknownOperator indicates a non-standard operator left after
	// full optimization.
	ErrCodeUnknownOperator OptimizeErrorCode = "UNKNOWN_OPERATOR"
)

// Error implements the error interface.
func (e *OptimizeError) Error() string {
	switch {
	case e.Condition != "" && e.Model != "":
		return fmt.Sprintf("%s: %s in condition %s on %s", e.Code, e.Message, e.Condition, e.Model)
	case e.Condition != "":
		return fmt.Sprintf("%s: %s in condition %s", e.Code, e.Message, e.Condition)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsOptimizeError returns true if err is, or wraps, an OptimizeError.
func IsOptimizeError(err error) bool {
	var oe *OptimizeError
	return errors.As(err, &oe)
}

// ErrorCode returns the code of a wrapped OptimizeError, or "".
func ErrorCode(err error) OptimizeErrorCode {
	var oe *OptimizeError
	if errors.As(err, &oe) {
		return oe.Code
	}
	return ""
}

func (c *cond) fail(code OptimizeErrorCode, format string, args ...any) *OptimizeError {
	e := &OptimizeError{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Condition: c.leaf.String(),
	}
	if c.model != nil {
		e.Model = c.model.Name
	}
	return e
}
