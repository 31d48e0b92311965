package apperrors

import (
	"errors"
	"net/http"
)

// Kind is the failure class of an error. It decides the HTTP status when no explicit
// status code was set along the chain.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalid
	KindBadRequest
	KindConflict
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindStorageFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindBadRequest:
		return "bad_request"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindStorageFailure:
		return "storage_failure"
	}
	return "unknown"
}

// StatusCode is the HTTP status that represents the kind.
func (k Kind) StatusCode() int {
	switch k {
	case KindInvalid, KindBadRequest:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// Roots of the error taxonomy. Packages derive their own errors from these.
var (
	ErrInvalid        = NewKind(KindInvalid, "invalid input")
	ErrBadRequest     = NewKind(KindBadRequest, "bad request")
	ErrConflict       = NewKind(KindConflict, "conflict")
	ErrNotFound       = NewKind(KindNotFound, "not found")
	ErrUnauthorized   = NewKind(KindUnauthorized, "unauthorized")
	ErrForbidden      = NewKind(KindForbidden, "forbidden")
	ErrStorageFailure = NewKind(KindStorageFailure, "storage failure")
)

// KindOf returns the kind of err, or KindUnknown if err is not an application error.
func KindOf(err error) Kind {
	var appErr Error
	if errors.As(err, &appErr) {
		return appErr.Kind()
	}
	return KindUnknown
}
