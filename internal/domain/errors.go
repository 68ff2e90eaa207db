package domain

import (
	"errors"
	"fmt"
)

// SyntaxError reports malformed domain input detected while building the
// AST: a bad term shape, an unknown operator or token, or an unbalanced
// flat list.
type SyntaxError struct {
	// Code identifies the error category.
	Code SyntaxErrorCode

	// Message is a human-readable description.
	Message string

	// Term is the offending term or token, when there is one.
	Term string
}

// SyntaxErrorCode categorizes syntax errors.
type SyntaxErrorCode string

const (
	// ErrCodeMalformedTerm indicates a term that is not a (field, op, value) triple.
	ErrCodeMalformedTerm SyntaxErrorCode = "MALFORMED_TERM"

	// ErrCodeEmptyField indicates a term whose field is empty or not a string.
	ErrCodeEmptyField SyntaxErrorCode = "EMPTY_FIELD"

	// ErrCodeUnknownOperator indicates an operator outside the vocabulary.
	ErrCodeUnknownOperator SyntaxErrorCode = "UNKNOWN_OPERATOR"

	// ErrCodeUnknownToken indicates a flat-list item that is neither a term
	// nor one of "!", "&", "|".
	ErrCodeUnknownToken SyntaxErrorCode = "UNKNOWN_TOKEN"

	// ErrCodeStackUnderflow indicates an operator token without enough operands.
	ErrCodeStackUnderflow SyntaxErrorCode = "STACK_UNDERFLOW"

	// ErrCodeUnsupportedValue indicates a value of a type domains cannot hold.
	ErrCodeUnsupportedValue SyntaxErrorCode = "UNSUPPORTED_VALUE"
)

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	if e.Term != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Term)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsSyntaxError returns true if err is, or wraps, a SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

func newSyntaxError(code SyntaxErrorCode, term any, format string, args ...any) *SyntaxError {
	e := &SyntaxError{Code: code, Message: fmt.Sprintf(format, args...)}
	if term != nil {
		e.Term = fmt.Sprintf("%v", term)
	}
	return e
}
