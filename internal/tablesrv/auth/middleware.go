package auth

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tansive/tablebase/internal/common/httpx"
	"github.com/tansive/tablebase/internal/tablesrv/config"
	"github.com/tansive/tablebase/internal/tablesrv/tblcommon"
)

const AuthHeaderPrefix = "Bearer "

// UserAuthMiddleware authenticates the bearer token of the request and puts the caller
// into the context. In test mode the configured test token stands for the test user.
func UserAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, AuthHeaderPrefix) {
			log.Ctx(ctx).Debug().Msg("missing or invalid authorization header")
			httpx.SendError(w, ErrMissingToken)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, AuthHeaderPrefix))
		if token == "" {
			httpx.SendError(w, ErrMissingToken)
			return
		}

		if config.IsTest() && token == config.Config().Auth.TestUserToken {
			uc := &tblcommon.UserContext{UserID: config.Config().Auth.TestUserID}
			next.ServeHTTP(w, r.WithContext(tblcommon.WithUserContext(ctx, uc)))
			return
		}

		uc, err := ValidateToken(ctx, token)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("token validation failed")
			httpx.SendError(w, ErrInvalidToken)
			return
		}
		l := log.Ctx(ctx).With().Str("user_id", uc.UserID).Logger()
		ctx = l.WithContext(tblcommon.WithUserContext(ctx, uc))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
