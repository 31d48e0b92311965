package db

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tansive/tablebase/internal/common/httpx"
)

// LoadScopedDBMiddleware checks out one connection per request. Scopes added while
// serving the request are dropped when the connection goes back to the pool. When no
// connection can be had the request is answered with 503.
func LoadScopedDBMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqCtx := r.Context()
		ctx, err := ConnCtx(reqCtx)
		if err != nil {
			log.Ctx(reqCtx).Error().Err(err).Str("path", r.URL.Path).Msg("no database connection for request")
			httpx.ErrServiceUnavailable().Send(w)
			return
		}
		conn := DB(ctx)
		defer conn.Close(context.Background())

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
