package postgresql

import (
	"context"
	"database/sql"

	"github.com/tansive/tablebase/internal/common/apperrors"
	"github.com/tansive/tablebase/internal/common/uuid"
	"github.com/tansive/tablebase/internal/tablesrv/db/dberror"
	"github.com/tansive/tablebase/internal/tablesrv/db/dbmanager"
	"github.com/tansive/tablebase/internal/tablesrv/tblcommon"
)

// Catalog Manager
type catalogManager struct {
	c dbmanager.ScopedConn
}

func (cm *catalogManager) conn() *sql.Conn {
	return cm.c.Conn()
}

func newCatalogManager(c dbmanager.ScopedConn) *catalogManager {
	return &catalogManager{c: c}
}

// Record Manager
type recordManager struct {
	c dbmanager.ScopedConn
}

func (rm *recordManager) conn() *sql.Conn {
	return rm.c.Conn()
}

func newRecordManager(c dbmanager.ScopedConn) *recordManager {
	return &recordManager{c: c}
}

// Connection Manager
type connectionManager struct {
	c dbmanager.ScopedConn
}

func newConnectionManager(c dbmanager.ScopedConn) *connectionManager {
	return &connectionManager{c: c}
}

func (cm *connectionManager) AddScopes(ctx context.Context, scopes map[string]string) error {
	return cm.c.AddScopes(ctx, scopes)
}

func (cm *connectionManager) DropScopes(ctx context.Context, scopes []string) error {
	return cm.c.DropScopes(ctx, scopes)
}

func (cm *connectionManager) AddScope(ctx context.Context, scope, value string) error {
	return cm.c.AddScope(ctx, scope, value)
}

func (cm *connectionManager) DropScope(ctx context.Context, scope string) error {
	return cm.c.DropScope(ctx, scope)
}

func (cm *connectionManager) DropAllScopes(ctx context.Context) error {
	return cm.c.DropAllScopes(ctx)
}

func (cm *connectionManager) Migrate(ctx context.Context) apperrors.Error {
	return MigrateCatalog(ctx, cm.c.Conn())
}

func (cm *connectionManager) Close(ctx context.Context) {
	cm.c.Close(ctx)
}

// callerScope returns the project and user every catalog lookup is filtered by.
func callerScope(ctx context.Context) (uuid.UUID, string, apperrors.Error) {
	projectID := tblcommon.GetProjectID(ctx)
	if projectID == uuid.Nil {
		return uuid.Nil, "", dberror.ErrMissingProjectID
	}
	userID := tblcommon.GetUserID(ctx)
	if userID == "" {
		return uuid.Nil, "", dberror.ErrMissingUserContext
	}
	return projectID, userID, nil
}
