package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/golang/snappy"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/tansive/tablebase/internal/common/apperrors"
	"github.com/tansive/tablebase/internal/common/uuid"
	"github.com/tansive/tablebase/internal/tablesrv/db/dberror"
	"github.com/tansive/tablebase/internal/tablesrv/db/models"
	"github.com/tansive/tablebase/internal/tablesrv/tableschema"
)

// CreateTable records the table and its columns and runs ddl, all in one
// transaction. A concurrent create of the same name waits on the catalog row and then
// fails with ErrAlreadyExists.
func (cm *catalogManager) CreateTable(ctx context.Context, table *models.Table, ddl string) apperrors.Error {
	projectID, userID, aerr := callerScope(ctx)
	if aerr != nil {
		return aerr
	}
	if table.ProjectID != uuid.Nil && table.ProjectID != projectID {
		return dberror.ErrInvalidInput.Msg("table belongs to a different project")
	}
	table.ProjectID = projectID
	if table.TableID == uuid.Nil {
		table.TableID = uuid.New()
	}

	tx, err := cm.conn().BeginTx(ctx, nil)
	if err != nil {
		return dberror.FromError(err)
	}
	defer tx.Rollback()

	var owned bool
	err = tx.QueryRowContext(ctx,
		`SELECT true FROM tablesrv.projects WHERE project_id = $1 AND owner_id = $2 FOR SHARE`,
		projectID, userID).Scan(&owned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dberror.ErrNotFound.Msg("project not found")
		}
		return dberror.FromError(err)
	}

	query := `
		INSERT INTO tablesrv.tables (table_id, project_id, name, display_name, description,
			physical_name, fingerprint, definition)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (project_id, name) DO NOTHING
		RETURNING row_count, created_at, updated_at;
	`
	var definition []byte
	if len(table.Definition) > 0 {
		definition = snappy.Encode(nil, table.Definition)
	}
	err = tx.QueryRowContext(ctx, query, table.TableID, projectID, table.Name, table.DisplayName,
		table.Description, table.PhysicalName, table.Fingerprint, definition).Scan(&table.RowCount, &table.CreatedAt, &table.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Ctx(ctx).Info().Str("table", table.Name).Msg("table already exists")
			return dberror.ErrAlreadyExists.Msg("table " + table.Name + " already exists")
		}
		if dberror.PgCode(err) == dberror.CodeUniqueViolation {
			return dberror.ErrAlreadyExists.Msg("table " + table.Name + " already exists")
		}
		log.Ctx(ctx).Error().Err(err).Str("table", table.Name).Msg("failed to insert table")
		return dberror.FromError(err)
	}

	if len(table.Columns) > 0 {
		if err := insertColumns(ctx, tx, table); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("table", table.Name).Msg("failed to insert columns")
			return dberror.FromError(err)
		}
	}

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("table", table.Name).Msg("failed to create physical table")
		return dberror.FromError(err)
	}

	if err := tx.Commit(); err != nil {
		return dberror.FromError(err)
	}
	return nil
}

func insertColumns(ctx context.Context, tx *sql.Tx, table *models.Table) error {
	const width = 10
	var b strings.Builder
	b.WriteString(`INSERT INTO tablesrv.columns (table_id, name, display_name, data_type, is_nullable,
		is_primary_key, is_unique, is_implicit, default_expr, ordinal) VALUES `)
	args := make([]any, 0, len(table.Columns)*width)
	for i := range table.Columns {
		c := &table.Columns[i]
		c.TableID = table.TableID
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := 1; j <= width; j++ {
			if j > 1 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*width+j)
		}
		b.WriteByte(')')
		var def sql.NullString
		if c.Default != nil {
			def = sql.NullString{String: *c.Default, Valid: true}
		}
		args = append(args, c.TableID, c.Name, c.DisplayName, string(c.DataType), c.Nullable,
			c.PrimaryKey, c.Unique, c.Implicit, def, c.Ordinal)
	}
	_, err := tx.ExecContext(ctx, b.String(), args...)
	return err
}

const tableColumns = `t.table_id, t.project_id, t.name, t.display_name, t.description,
	t.physical_name, t.row_count, t.fingerprint, t.created_at, t.updated_at`

func scanTable(row interface{ Scan(...any) error }) (*models.Table, error) {
	var t models.Table
	err := row.Scan(&t.TableID, &t.ProjectID, &t.Name, &t.DisplayName, &t.Description,
		&t.PhysicalName, &t.RowCount, &t.Fingerprint, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTable resolves a logical name within the caller's project, columns included. A
// table in a project the caller does not own is not found.
func (cm *catalogManager) GetTable(ctx context.Context, name string) (*models.Table, apperrors.Error) {
	projectID, userID, aerr := callerScope(ctx)
	if aerr != nil {
		return nil, aerr
	}
	query := `
		SELECT ` + tableColumns + `
		FROM tablesrv.tables t
		JOIN tablesrv.projects p ON p.project_id = t.project_id
		WHERE t.project_id = $1 AND t.name = $2 AND p.owner_id = $3;
	`
	table, err := scanTable(cm.conn().QueryRowContext(ctx, query, projectID, name, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dberror.ErrNotFound.Msg("table " + name + " not found")
		}
		log.Ctx(ctx).Error().Err(err).Str("table", name).Msg("failed to retrieve table")
		return nil, dberror.FromError(err)
	}
	columns, aerr := cm.ListColumns(ctx, table.TableID)
	if aerr != nil {
		return nil, aerr
	}
	table.Columns = columns
	return table, nil
}

// GetTableDefinition returns the canonical definition the table was created from.
func (cm *catalogManager) GetTableDefinition(ctx context.Context, name string) ([]byte, apperrors.Error) {
	projectID, userID, aerr := callerScope(ctx)
	if aerr != nil {
		return nil, aerr
	}
	query := `
		SELECT t.definition
		FROM tablesrv.tables t
		JOIN tablesrv.projects p ON p.project_id = t.project_id
		WHERE t.project_id = $1 AND t.name = $2 AND p.owner_id = $3;
	`
	var compressed []byte
	if err := cm.conn().QueryRowContext(ctx, query, projectID, name, userID).Scan(&compressed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dberror.ErrNotFound.Msg("table " + name + " not found")
		}
		log.Ctx(ctx).Error().Err(err).Str("table", name).Msg("failed to retrieve table definition")
		return nil, dberror.FromError(err)
	}
	if len(compressed) == 0 {
		return nil, dberror.ErrNotFound.Msg("table " + name + " has no stored definition")
	}
	definition, err := snappy.Decode(nil, compressed)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("table", name).Msg("failed to decompress table definition")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return definition, nil
}

// ListTables returns the caller's tables ordered by name, without columns.
func (cm *catalogManager) ListTables(ctx context.Context) ([]*models.Table, apperrors.Error) {
	projectID, userID, aerr := callerScope(ctx)
	if aerr != nil {
		return nil, aerr
	}
	query := `
		SELECT ` + tableColumns + `
		FROM tablesrv.tables t
		JOIN tablesrv.projects p ON p.project_id = t.project_id
		WHERE t.project_id = $1 AND p.owner_id = $2
		ORDER BY t.name;
	`
	rows, err := cm.conn().QueryContext(ctx, query, projectID, userID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to list tables")
		return nil, dberror.FromError(err)
	}
	defer rows.Close()

	tables := []*models.Table{}
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, dberror.FromError(err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, dberror.FromError(err)
	}
	return tables, nil
}

// ListColumns returns the columns of a table in physical order.
func (cm *catalogManager) ListColumns(ctx context.Context, tableID uuid.UUID) ([]models.Column, apperrors.Error) {
	query := `
		SELECT table_id, name, display_name, data_type, is_nullable, is_primary_key,
			is_unique, is_implicit, default_expr, ordinal
		FROM tablesrv.columns
		WHERE table_id = $1
		ORDER BY ordinal;
	`
	rows, err := cm.conn().QueryContext(ctx, query, tableID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("table_id", tableID.String()).Msg("failed to list columns")
		return nil, dberror.FromError(err)
	}
	defer rows.Close()

	columns := []models.Column{}
	for rows.Next() {
		var (
			c        models.Column
			dataType string
			def      sql.NullString
		)
		err := rows.Scan(&c.TableID, &c.Name, &c.DisplayName, &dataType, &c.Nullable,
			&c.PrimaryKey, &c.Unique, &c.Implicit, &def, &c.Ordinal)
		if err != nil {
			return nil, dberror.FromError(err)
		}
		c.DataType = tableschema.DataType(dataType)
		if def.Valid {
			c.Default = &def.String
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, dberror.FromError(err)
	}
	return columns, nil
}

// DeleteTable removes the catalog entry and drops the physical table in one
// transaction.
func (cm *catalogManager) DeleteTable(ctx context.Context, name string) apperrors.Error {
	projectID, userID, aerr := callerScope(ctx)
	if aerr != nil {
		return aerr
	}
	tx, err := cm.conn().BeginTx(ctx, nil)
	if err != nil {
		return dberror.FromError(err)
	}
	defer tx.Rollback()

	// Lock the tenant table before the catalog row, the order record writes take
	// them in.
	query := `
		SELECT t.physical_name
		FROM tablesrv.tables t
		JOIN tablesrv.projects p ON p.project_id = t.project_id
		WHERE t.project_id = $1 AND t.name = $2 AND p.owner_id = $3;
	`
	var physicalName string
	if err := tx.QueryRowContext(ctx, query, projectID, name, userID).Scan(&physicalName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dberror.ErrNotFound.Msg("table " + name + " not found")
		}
		log.Ctx(ctx).Error().Err(err).Str("table", name).Msg("failed to look up table")
		return dberror.FromError(err)
	}
	if _, err := tx.ExecContext(ctx, "LOCK TABLE "+pq.QuoteIdentifier(physicalName)+" IN ACCESS EXCLUSIVE MODE"); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("table", name).Msg("failed to lock physical table")
		return dberror.FromError(err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM tablesrv.tables WHERE project_id = $1 AND name = $2`, projectID, name)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("table", name).Msg("failed to delete table")
		return dberror.FromError(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return dberror.ErrNotFound.Msg("table " + name + " not found")
	}
	if _, err := tx.ExecContext(ctx, tableschema.DropTableStatement(physicalName)); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("table", name).Msg("failed to drop physical table")
		return dberror.FromError(err)
	}
	if err := tx.Commit(); err != nil {
		return dberror.FromError(err)
	}
	return nil
}

// RefreshRowCount recounts the rows of a table after statements the record manager
// cannot track, such as raw queries.
func (cm *catalogManager) RefreshRowCount(ctx context.Context, table *models.Table) apperrors.Error {
	query := `UPDATE tablesrv.tables SET row_count = (SELECT count(*) FROM ` +
		pq.QuoteIdentifier(table.PhysicalName) + `) WHERE table_id = $1 RETURNING row_count`
	if err := cm.conn().QueryRowContext(ctx, query, table.TableID).Scan(&table.RowCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dberror.ErrNotFound.Msg("table " + table.Name + " not found")
		}
		log.Ctx(ctx).Error().Err(err).Str("table", table.Name).Msg("failed to refresh row count")
		return dberror.FromError(err)
	}
	return nil
}
