package tablemanager

import (
	"github.com/tansive/tablebase/internal/common/apperrors"
)

var (
	ErrInvalidDefinition apperrors.Error = apperrors.ErrInvalid.New("invalid table definition").SetExpandError(true)
	ErrInvalidTableName  apperrors.Error = apperrors.ErrInvalid.New("invalid table name")
	ErrInvalidProject    apperrors.Error = apperrors.ErrInvalid.New("invalid project")
	ErrTableExists       apperrors.Error = apperrors.ErrConflict.New("table already exists")
	ErrTableNotFound     apperrors.Error = apperrors.ErrNotFound.New("table not found")
	ErrProjectNotFound   apperrors.Error = apperrors.ErrNotFound.New("project not found")
	ErrUnauthorized      apperrors.Error = apperrors.ErrUnauthorized.New("missing caller identity")
)
