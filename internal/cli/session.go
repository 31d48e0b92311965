package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tansive/tablebase/internal/common/uuid"
	"github.com/tansive/tablebase/internal/tablesrv/db"
	"github.com/tansive/tablebase/internal/tablesrv/db/dberror"
	"github.com/tansive/tablebase/internal/tablesrv/tablemanager"
	"github.com/tansive/tablebase/internal/tablesrv/tblcommon"
)

// session is a database connection acting as owner, optionally bound to a project.
type session struct {
	ctx context.Context
}

func openSession(owner string) (*session, error) {
	if owner == "" {
		return nil, fmt.Errorf("--owner is required")
	}
	ctx := log.Logger.WithContext(context.Background())
	if err := db.Init(ctx); err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	ctx, err := db.ConnCtx(ctx)
	if err != nil {
		db.Shutdown()
		return nil, err
	}
	ctx = tblcommon.WithUserContext(ctx, &tblcommon.UserContext{UserID: owner})
	return &session{ctx: ctx}, nil
}

// bindProject scopes the session to project, which owner must own.
func (s *session) bindProject(project string) error {
	projectID, err := uuid.Parse(project)
	if err != nil {
		return fmt.Errorf("invalid project id %q", project)
	}
	userID := tblcommon.GetUserID(s.ctx)
	if _, aerr := db.DB(s.ctx).GetProject(s.ctx, projectID, userID); aerr != nil {
		if errors.Is(aerr, dberror.ErrNotFound) {
			return tablemanager.ErrProjectNotFound
		}
		return aerr
	}
	if err := db.DB(s.ctx).AddScopes(s.ctx, map[string]string{
		db.Scope_ProjectId: projectID.String(),
		db.Scope_UserId:    userID,
	}); err != nil {
		return err
	}
	s.ctx = tblcommon.WithProjectID(s.ctx, projectID)
	return nil
}

func (s *session) close() {
	if d := db.DB(s.ctx); d != nil {
		d.Close(context.Background())
	}
	db.Shutdown()
}
