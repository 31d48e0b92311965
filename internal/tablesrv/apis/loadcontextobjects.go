package apis

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/tansive/tablebase/internal/common/httpx"
	"github.com/tansive/tablebase/internal/common/uuid"
	"github.com/tansive/tablebase/internal/tablesrv/db"
	"github.com/tansive/tablebase/internal/tablesrv/db/dberror"
	"github.com/tansive/tablebase/internal/tablesrv/tablemanager"
	"github.com/tansive/tablebase/internal/tablesrv/tblcommon"
)

// ProjectContextLoader resolves {projectID} against the caller's projects and binds
// the project to the request context and the session of the request's connection.
// A project the caller does not own is reported as not found.
func ProjectContextLoader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := tblcommon.GetUserID(ctx)
		if userID == "" {
			httpx.ErrUnAuthorized("missing or invalid authorization token").Send(w)
			return
		}
		projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
		if err != nil {
			httpx.ErrInvalidProjectId().Send(w)
			return
		}

		dbc := db.DB(ctx)
		if dbc == nil {
			log.Ctx(ctx).Error().Msg("no db connection in request context")
			httpx.ErrApplicationError().Send(w)
			return
		}
		if _, aerr := dbc.GetProject(ctx, projectID, userID); aerr != nil {
			if errors.Is(aerr, dberror.ErrNotFound) {
				httpx.SendError(w, tablemanager.ErrProjectNotFound)
				return
			}
			httpx.SendError(w, aerr)
			return
		}

		if err := dbc.AddScopes(ctx, map[string]string{
			db.Scope_ProjectId: projectID.String(),
			db.Scope_UserId:    userID,
		}); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("unable to set session scopes")
			httpx.ErrApplicationError().Send(w)
			return
		}

		l := log.Ctx(ctx).With().Str("project_id", projectID.String()).Logger()
		ctx = l.WithContext(tblcommon.WithProjectID(ctx, projectID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
