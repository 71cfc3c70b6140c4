// Package errs defines the error taxonomy shared by all objectis packages.
//
// Every error produced by the library is an *Error carrying one of four codes:
//
//   - CodeSchema: a type failed structural validation during registration
//     (missing or non-string identifier field, unreadable identifier, ...)
//   - CodeNotRegistered: an operation was attempted for a type that was never
//     registered. This is checked before any backend command is issued.
//   - CodeInvalidField: a query or ordering references a field that does not
//     exist, or the supplied value cannot be compared against the field.
//   - CodeOperationFailed: a backend command, the codec or a batch worker failed.
//     The originating error is always kept as Cause.
//
// Errors can be matched with the standard library:
//
//	if errors.Is(err, errs.ErrNotRegistered) { ... }
//
// Is compares codes only, so the sentinels match any message.
package errs
