package apperrors

import (
	"errors"
	"strings"
)

type appError struct {
	msg        string
	parent     error   // errors.Is walks through here
	causes     []error // attached with Err, MsgErr or Msg
	statusCode int
	kind       Kind
	expand     bool
	prefix     string
	suffix     string
}

// New creates a root error with no kind.
func New(msg string) Error {
	return &appError{msg: msg}
}

// NewKind creates a root error of the given kind. Its status code follows the kind.
func NewKind(kind Kind, msg string) Error {
	return &appError{msg: msg, kind: kind, statusCode: kind.StatusCode()}
}

func (e *appError) Error() string {
	var b strings.Builder
	if e.prefix != "" {
		b.WriteString(e.prefix)
		b.WriteString(": ")
	}
	b.WriteString(e.msg)
	if e.suffix != "" {
		b.WriteString(": ")
		b.WriteString(e.suffix)
	}
	return b.String()
}

func (e *appError) ErrorAll() string {
	if !e.expand {
		return e.Error()
	}
	parts := []string{e.Error()}
	for _, c := range e.causes {
		if c == e.parent {
			continue
		}
		parts = append(parts, c.Error())
	}
	return strings.Join(parts, "; ")
}

func (e *appError) Unwrap() error {
	return e.parent
}

func (e *appError) UnwrapAll() []error {
	return e.causes
}

func (e *appError) child(msg string, causes []error) *appError {
	return &appError{
		msg:        msg,
		parent:     e,
		causes:     causes,
		statusCode: e.statusCode,
		kind:       e.kind,
		expand:     e.expand,
	}
}

func (e *appError) New(msg string) Error {
	return e.child(msg, nil)
}

func (e *appError) Msg(msg string) Error {
	return e.child(msg, append([]error{e}, e.causes...))
}

func (e *appError) MsgErr(msg string, errs ...error) Error {
	return e.child(msg, append([]error{e}, errs...))
}

func (e *appError) Err(errs ...error) Error {
	return e.child(e.msg, append([]error{e}, errs...))
}

func (e *appError) Prefix(p string) Error {
	cp := *e
	cp.prefix = p
	return &cp
}

func (e *appError) Suffix(s string) Error {
	cp := *e
	cp.suffix = s
	return &cp
}

func (e *appError) SetExpandError(flag bool) Error {
	cp := *e
	cp.expand = flag
	return &cp
}

func (e *appError) SetStatusCode(code int) Error {
	cp := *e
	cp.statusCode = code
	return &cp
}

func (e *appError) StatusCode() int {
	if e.statusCode == 0 && e.kind != KindUnknown {
		return e.kind.StatusCode()
	}
	return e.statusCode
}

func (e *appError) SetKind(kind Kind) Error {
	cp := *e
	cp.kind = kind
	cp.statusCode = kind.StatusCode()
	return &cp
}

func (e *appError) Kind() Kind {
	return e.kind
}

// Is matches target against the parent chain and every attached cause.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(e.parent, target) {
		return true
	}
	for _, c := range e.causes {
		if c != e && errors.Is(c, target) {
			return true
		}
	}
	return false
}
