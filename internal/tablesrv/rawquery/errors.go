package rawquery

import (
	"github.com/tansive/tablebase/internal/common/apperrors"
)

var (
	ErrInvalidQuery        apperrors.Error = apperrors.ErrInvalid.New("invalid query")
	ErrQueryDisabled       apperrors.Error = apperrors.ErrForbidden.New("raw queries are disabled")
	ErrStatementNotAllowed apperrors.Error = apperrors.ErrForbidden.New("statement not allowed")
	ErrRelationNotFound    apperrors.Error = apperrors.ErrNotFound.New("relation not found")
	ErrInvalidProject      apperrors.Error = apperrors.ErrInvalid.New("invalid project")
)
