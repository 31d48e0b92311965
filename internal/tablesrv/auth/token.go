// Package auth authenticates callers with HS256 bearer tokens issued for the service.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/tansive/tablebase/internal/common/apperrors"
	"github.com/tansive/tablebase/internal/common/uuid"
	"github.com/tansive/tablebase/internal/tablesrv/config"
	"github.com/tansive/tablebase/internal/tablesrv/tblcommon"
)

// Claims carried by service tokens. Subject is the user id.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// NewToken signs a token for userID that expires after ttl.
func NewToken(userID string, scope tblcommon.Scope, ttl time.Duration) (string, apperrors.Error) {
	if userID == "" {
		return "", ErrTokenGeneration.Msg("user id is required")
	}
	cfg := config.Config().Auth
	now := time.Now()
	claims := Claims{
		Scope: string(scope),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.SigningKey))
	if err != nil {
		return "", ErrTokenGeneration.Err(err)
	}
	return signed, nil
}

// ValidateToken verifies the signature, expiry and issuer of tokenString and returns
// the caller it identifies.
func ValidateToken(ctx context.Context, tokenString string) (*tblcommon.UserContext, apperrors.Error) {
	cfg := config.Config().Auth
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(cfg.GetClockSkew()),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(cfg.SigningKey), nil
	}, opts...)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("failed to parse token")
		return nil, ErrInvalidToken.Err(err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken.Msg("missing sub claim")
	}

	scope := tblcommon.Scope(claims.Scope)
	switch scope {
	case tblcommon.ScopeDefault, tblcommon.ScopeTrusted:
	default:
		return nil, ErrInvalidToken.Msg("unknown scope " + claims.Scope)
	}
	return &tblcommon.UserContext{UserID: claims.Subject, Scope: scope}, nil
}
