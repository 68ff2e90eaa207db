package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Check failures, rejected domains
	ExitCommandError = 2 // Command error (missing files, bad flags)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Response is the JSON envelope of every command.
type Response struct {
	Status string         `json:"status"` // "ok" or "error"
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError is the error part of a Response.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// printer writes command results in the configured format.
type printer struct {
	format string
	w      io.Writer
}

// result writes data: as a JSON envelope, or through text for the text
// format.
func (p printer) result(data any, text func(w io.Writer)) error {
	if p.format == "json" {
		return json.NewEncoder(p.w).Encode(Response{Status: "ok", Data: data})
	}
	text(p.w)
	return nil
}

// failure writes a rejected domain or search as an error envelope. Text
// output is left to the returned error.
func (p printer) failure(code string, err error) {
	if p.format != "json" {
		return
	}
	_ = json.NewEncoder(p.w).Encode(Response{
		Status: "error",
		Error:  &ResponseError{Code: code, Message: err.Error()},
	})
}
