package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/status"
)

// Error is a domain error carrying a Code, a human-readable message, and
// optional metadata for the caller.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Err      error
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error that wraps cause.
//
// Postcondition: errors.Is(result, cause) holds.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// WithMetadata returns e with key set to value in its metadata.
func (e *Error) WithMetadata(key, value string) *Error {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// Message returns the user-facing message of a domain error, or a generic
// message for anything else.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "an unexpected error occurred"
}

// GRPCStatus converts err into a gRPC status error for transport layers.
func GRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	code := GetCode(err)
	return status.Error(code.GRPCCode(), Message(err))
}
