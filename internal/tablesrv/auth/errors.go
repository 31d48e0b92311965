package auth

import (
	"github.com/tansive/tablebase/internal/common/apperrors"
)

var (
	ErrAuth            apperrors.Error = apperrors.ErrUnauthorized.New("authentication failed")
	ErrMissingToken    apperrors.Error = ErrAuth.New("missing or invalid authorization header")
	ErrInvalidToken    apperrors.Error = ErrAuth.New("invalid token")
	ErrTokenGeneration apperrors.Error = apperrors.ErrStorageFailure.New("failed to generate token")
)
