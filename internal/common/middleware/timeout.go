package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tansive/tablebase/internal/common/httpx"
)

// SetTimeout bounds request handling by timeout. The deadline travels in the request
// context, so database calls observe it and return early; if the handler returns
// after the deadline without writing a response, a timeout error is sent.
func SetTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			rw := httpx.NewResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				log.Ctx(ctx).Error().Dur("timeout", timeout).Msg("request timed out")
				if !rw.Written() {
					httpx.ErrRequestTimeout().Send(rw)
				}
			}
		})
	}
}
