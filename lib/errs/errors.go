package errs

import (
	"fmt"
)

// --------------------------------------------------------------------------
// Error Codes
// --------------------------------------------------------------------------

type Code uint64

const (
	CodeUnknown         Code = iota // 0: Should never be returned.
	CodeSchema                      // 1: A type failed structural validation at registration.
	CodeNotRegistered               // 2: An operation was attempted on a type that is not registered.
	CodeInvalidField                // 3: A query references a missing field or an incomparable value.
	CodeOperationFailed             // 4: A backend, codec or batch worker failure.
)

func (c Code) String() string {
	switch c {
	case CodeSchema:
		return "SchemaError"
	case CodeNotRegistered:
		return "NotRegisteredError"
	case CodeInvalidField:
		return "InvalidFieldError"
	case CodeOperationFailed:
		return "OperationFailedError"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps an error code, a message and (optionally) the error that caused it.
type Error struct {
	Code  Code   // The error code
	Msg   string // The error message
	Cause error  // The originating error (may be nil for validation errors)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the cause so errors.Is / errors.As can walk the chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
// This allows errors.Is(err, errs.ErrInvalidField) regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// --------------------------------------------------------------------------
// Sentinels (only the code is compared)
// --------------------------------------------------------------------------

var (
	ErrSchema          = &Error{Code: CodeSchema, Msg: "schema error"}
	ErrNotRegistered   = &Error{Code: CodeNotRegistered, Msg: "type not registered"}
	ErrInvalidField    = &Error{Code: CodeInvalidField, Msg: "invalid field"}
	ErrOperationFailed = &Error{Code: CodeOperationFailed, Msg: "operation failed"}
)

// --------------------------------------------------------------------------
// Constructors
// --------------------------------------------------------------------------

// Schema creates a new SchemaError.
func Schema(format string, args ...any) *Error {
	return &Error{Code: CodeSchema, Msg: fmt.Sprintf(format, args...)}
}

// NotRegistered creates a new NotRegisteredError for the given type name.
func NotRegistered(typeName string) *Error {
	return &Error{Code: CodeNotRegistered, Msg: fmt.Sprintf("the type '%s' is not registered", typeName)}
}

// InvalidField creates a new InvalidFieldError.
func InvalidField(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidField, Msg: fmt.Sprintf(format, args...)}
}

// OperationFailed wraps cause into a new OperationFailedError.
// If cause already is an OperationFailedError it is returned unchanged.
func OperationFailed(cause error, format string, args ...any) *Error {
	if e, ok := cause.(*Error); ok && e.Code == CodeOperationFailed {
		return e
	}
	return &Error{Code: CodeOperationFailed, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf returns the code of err if it is (or wraps) an *Error, CodeUnknown otherwise.
func CodeOf(err error) Code {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return CodeUnknown
		}
		err = u.Unwrap()
	}
	return CodeUnknown
}
