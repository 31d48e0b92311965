package dberror

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgconn"
	"github.com/tansive/tablebase/internal/common/apperrors"
)

var (
	ErrDatabase           apperrors.Error = apperrors.ErrStorageFailure.New("db error")
	ErrAlreadyExists      apperrors.Error = ErrDatabase.New("already exists").SetKind(apperrors.KindConflict)
	ErrNotFound           apperrors.Error = ErrDatabase.New("not found").SetKind(apperrors.KindNotFound)
	ErrInvalidInput       apperrors.Error = ErrDatabase.New("invalid input").SetKind(apperrors.KindInvalid)
	ErrNotPermitted       apperrors.Error = ErrDatabase.New("operation not permitted").SetKind(apperrors.KindForbidden)
	ErrConcurrentUpdate   apperrors.Error = ErrDatabase.New("conflicting concurrent update, retry the request").SetKind(apperrors.KindConflict)
	ErrTimeout            apperrors.Error = ErrDatabase.New("database operation timed out").SetStatusCode(http.StatusGatewayTimeout)
	ErrMissingProjectID   apperrors.Error = ErrInvalidInput.New("missing project ID")
	ErrMissingUserContext apperrors.Error = ErrInvalidInput.New("missing user context")
)

// PostgreSQL error codes the service reacts to.
const (
	CodeUniqueViolation       = "23505"
	CodeDuplicateTable        = "42P07"
	CodeNotNullViolation      = "23502"
	CodeCheckViolation        = "23514"
	CodeForeignKeyViolation   = "23503"
	CodeInvalidTextRepr       = "22P02"
	CodeInvalidDatetimeFormat = "22007"
	CodeDatetimeOverflow      = "22008"
	CodeNumericOutOfRange     = "22003"
	CodeStringTooLong         = "22001"
	CodeDivisionByZero        = "22012"
	CodeInvalidJSONText       = "22032"
	CodeQueryCanceled         = "57014"
	CodeLockNotAvailable      = "55P03"
	CodeUndefinedTable        = "42P01"
	CodeUndefinedColumn       = "42703"
	CodeUndefinedFunction     = "42883"
	CodeSyntaxError           = "42601"
	CodeDatatypeMismatch      = "42804"
	CodeAmbiguousColumn       = "42702"
	CodeGroupingError         = "42803"
	CodeInsufficientPrivilege = "42501"
	CodeReadOnlyTransaction   = "25006"
	CodeDeadlockDetected      = "40P01"
	CodeSerializationFailure  = "40001"
)

// PgCode returns the SQLSTATE of err, or "" if err did not come from the server.
func PgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// FromError classifies a driver error. Constraint and data errors caused by the
// caller's input keep the server message; anything else is a storage failure whose
// detail stays in the wrapped error.
func FromError(err error) apperrors.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimeout.Err(err)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ErrDatabase.Err(err)
	}
	switch pgErr.Code {
	case CodeUniqueViolation, CodeDuplicateTable:
		return ErrAlreadyExists.MsgErr(pgErr.Message, err)
	case CodeNotNullViolation, CodeCheckViolation, CodeForeignKeyViolation,
		CodeInvalidTextRepr, CodeInvalidDatetimeFormat, CodeDatetimeOverflow,
		CodeNumericOutOfRange, CodeStringTooLong, CodeDivisionByZero, CodeInvalidJSONText,
		CodeUndefinedColumn, CodeUndefinedFunction, CodeSyntaxError, CodeDatatypeMismatch,
		CodeAmbiguousColumn, CodeGroupingError:
		return ErrInvalidInput.MsgErr(pgErr.Message, err)
	case CodeUndefinedTable:
		return ErrNotFound.MsgErr(pgErr.Message, err)
	case CodeInsufficientPrivilege, CodeReadOnlyTransaction:
		return ErrNotPermitted.MsgErr(pgErr.Message, err)
	case CodeDeadlockDetected, CodeSerializationFailure:
		return ErrConcurrentUpdate.Err(err)
	case CodeQueryCanceled, CodeLockNotAvailable:
		return ErrTimeout.Err(err)
	}
	return ErrDatabase.Err(err)
}
