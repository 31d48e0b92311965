// Package db provides the storage interfaces of the table service:
//   - CatalogManager: projects, table definitions and their columns
//   - RecordManager: rows of tenant tables and raw statements
//   - ConnectionManager: session scopes and the connection lifecycle
//
// Every Database is bound to one pooled connection, held for the duration of a
// request.
package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tansive/tablebase/internal/common/apperrors"
	"github.com/tansive/tablebase/internal/common/uuid"
	"github.com/tansive/tablebase/internal/tablesrv/config"
	"github.com/tansive/tablebase/internal/tablesrv/db/dbmanager"
	"github.com/tansive/tablebase/internal/tablesrv/db/models"
	"github.com/tansive/tablebase/internal/tablesrv/db/postgresql"
)

// CatalogManager reads and writes the metadata catalog. Lookups are filtered by the
// project and user in the context, so a table of another project is never found.
type CatalogManager interface {
	// Project
	CreateProject(ctx context.Context, project *models.Project) apperrors.Error
	GetProject(ctx context.Context, projectID uuid.UUID, ownerID string) (*models.Project, apperrors.Error)
	DeleteProject(ctx context.Context, projectID uuid.UUID, ownerID string) apperrors.Error

	// Table
	CreateTable(ctx context.Context, table *models.Table, ddl string) apperrors.Error
	GetTable(ctx context.Context, name string) (*models.Table, apperrors.Error)
	GetTableDefinition(ctx context.Context, name string) ([]byte, apperrors.Error)
	ListTables(ctx context.Context) ([]*models.Table, apperrors.Error)
	ListColumns(ctx context.Context, tableID uuid.UUID) ([]models.Column, apperrors.Error)
	DeleteTable(ctx context.Context, name string) apperrors.Error
	RefreshRowCount(ctx context.Context, table *models.Table) apperrors.Error
}

// RecordManager operates on the physical tables. Tables passed in must come from
// CatalogManager.GetTable.
type RecordManager interface {
	ListRecords(ctx context.Context, table *models.Table, limit, offset int) ([]models.Record, apperrors.Error)
	GetRecord(ctx context.Context, table *models.Table, key any) (models.Record, apperrors.Error)
	InsertRecord(ctx context.Context, table *models.Table, values []models.ColumnValue) (models.Record, apperrors.Error)
	UpdateRecord(ctx context.Context, table *models.Table, key any, values []models.ColumnValue) (models.Record, apperrors.Error)
	DeleteRecord(ctx context.Context, table *models.Table, key any) apperrors.Error

	// ExecuteQuery runs a statement that has passed the query guard.
	ExecuteQuery(ctx context.Context, q *models.Query) (*models.QueryResult, apperrors.Error)
}

type ConnectionManager interface {
	// Scope Management
	AddScopes(ctx context.Context, scopes map[string]string) error
	DropScopes(ctx context.Context, scopes []string) error
	AddScope(ctx context.Context, scope, value string) error
	DropScope(ctx context.Context, scope string) error
	DropAllScopes(ctx context.Context) error

	// Migrate creates the catalog schema if needed.
	Migrate(ctx context.Context) apperrors.Error

	// Close returns the connection to the pool.
	Close(ctx context.Context)
}

type Database interface {
	CatalogManager
	RecordManager
	ConnectionManager
}

// Session settings visible to SQL run on a request's connection. Column defaults can
// read them with current_setting(name, true).
const (
	Scope_ProjectId string = "tablesrv.curr_projectid"
	Scope_UserId    string = "tablesrv.curr_userid"
)

var configuredScopes = []string{
	Scope_ProjectId,
	Scope_UserId,
}

var pool dbmanager.ScopedDb

// Init opens the connection pool described by the loaded configuration.
func Init(ctx context.Context) error {
	cfg := config.Config()
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}
	if pool != nil {
		return nil
	}
	opts := dbmanager.Options{
		DSN:              cfg.DSN(),
		MaxOpenConns:     cfg.DB.MaxOpenConns,
		MaxIdleConns:     cfg.DB.MaxIdleConns,
		ConnMaxLifetime:  cfg.DB.GetConnMaxLifetime(),
		StatementTimeout: cfg.DB.GetStatementTimeout(),
	}
	if config.IsTest() {
		opts.PingAttempts = 1
	}
	pg, err := dbmanager.NewPostgresqlDb(ctx, opts, configuredScopes)
	if err != nil {
		return err
	}
	pool = pg
	return nil
}

// Shutdown closes the pool. Connections in use are closed as they are returned.
func Shutdown() error {
	if pool == nil {
		return nil
	}
	err := pool.Close()
	pool = nil
	return err
}

// Ping checks that the database is reachable.
func Ping(ctx context.Context) error {
	if pool == nil {
		return fmt.Errorf("database pool not initialized")
	}
	return pool.Ping(ctx)
}

// Conn returns a new database connection from the pool.
func Conn(ctx context.Context) (dbmanager.ScopedConn, error) {
	if pool != nil {
		conn, err := pool.Conn(ctx)
		if err == nil {
			return conn, nil
		}
		log.Ctx(ctx).Error().Err(err).Msg("unable to get db connection")
		return nil, err
	}
	return nil, fmt.Errorf("database pool not initialized")
}

type ctxDbKeyType string

const ctxDbKey ctxDbKeyType = "TablesrvDb"

// ConnCtx adds a database connection to the context.
func ConnCtx(ctx context.Context) (context.Context, error) {
	conn, err := Conn(ctx)
	if err != nil {
		return nil, err
	}
	return context.WithValue(ctx, ctxDbKey, conn), nil
}

type tablesDb struct {
	CatalogManager
	RecordManager
	ConnectionManager
}

// DB returns the database bound to the connection in ctx, or nil if ctx holds none.
func DB(ctx context.Context) Database {
	if conn, ok := ctx.Value(ctxDbKey).(dbmanager.ScopedConn); ok {
		cm, rm, cn := postgresql.NewTablesDb(conn)
		return &tablesDb{
			CatalogManager:    cm,
			RecordManager:     rm,
			ConnectionManager: cn,
		}
	}
	log.Ctx(ctx).Error().Msg("unable to get db connection from context")
	return nil
}
