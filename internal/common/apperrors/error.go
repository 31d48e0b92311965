// Package apperrors provides chainable application errors that carry an HTTP status code
// and a coarse kind. Errors are declared once as package level values and specialized
// with New, Msg or Err at the call site, so errors.Is matches against every ancestor.
package apperrors

// Error is the error type returned across package boundaries. Every method returns a
// new value and leaves the receiver untouched, so package level errors can be shared.
type Error interface {
	error
	Unwrap() error

	New(msg string) Error                  // child error with a new message
	Msg(msg string) Error                  // child error with a new message, keeps the parent text when expanded
	MsgErr(msg string, err ...error) Error // child error with a new message and extra causes
	Err(err ...error) Error                // same message, extra causes
	SetExpandError(bool) Error             // ErrorAll includes causes
	SetStatusCode(int) Error
	StatusCode() int
	SetKind(Kind) Error // also resets the status code to the kind's default
	Kind() Kind
	Prefix(string) Error
	Suffix(string) Error
	ErrorAll() string
	UnwrapAll() []error
}
