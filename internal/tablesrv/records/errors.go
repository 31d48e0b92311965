package records

import (
	"github.com/tansive/tablebase/internal/common/apperrors"
)

var (
	ErrInvalidPayload    apperrors.Error = apperrors.ErrInvalid.New("invalid record").SetExpandError(true)
	ErrInvalidValue      apperrors.Error = ErrInvalidPayload.New("invalid value")
	ErrInvalidRecordID   apperrors.Error = apperrors.ErrInvalid.New("invalid record id")
	ErrInvalidPagination apperrors.Error = apperrors.ErrInvalid.New("invalid pagination parameter")
	ErrNoSettableValues  apperrors.Error = apperrors.ErrBadRequest.New("no settable columns in payload")
	ErrRecordNotFound    apperrors.Error = apperrors.ErrNotFound.New("record not found")
	ErrDuplicateRecord   apperrors.Error = apperrors.ErrConflict.New("record violates a unique constraint")
)
