package postgresql

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/tansive/tablebase/internal/common/apperrors"
	"github.com/tansive/tablebase/internal/tablesrv/db/dberror"
	"github.com/tansive/tablebase/internal/tablesrv/db/models"
	"github.com/tansive/tablebase/internal/tablesrv/tableschema"
)

func primaryKeyColumn(table *models.Table) (string, apperrors.Error) {
	pk := table.PrimaryKey()
	if pk == nil {
		return "", dberror.ErrInvalidInput.Msg("table " + table.Name + " has no primary key")
	}
	return pq.QuoteIdentifier(pk.Name), nil
}

// ListRecords returns a page of records, newest first.
func (rm *recordManager) ListRecords(ctx context.Context, table *models.Table, limit, offset int) ([]models.Record, apperrors.Error) {
	pk, aerr := primaryKeyColumn(table)
	if aerr != nil {
		return nil, aerr
	}
	query := fmt.Sprintf(`SELECT * FROM %s ORDER BY %s DESC, %s LIMIT $1 OFFSET $2`,
		pq.QuoteIdentifier(table.PhysicalName), pq.QuoteIdentifier(tableschema.CreatedAtColumn), pk)
	rows, err := rm.conn().QueryContext(ctx, query, limit, offset)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("table", table.Name).Msg("failed to list records")
		return nil, dberror.FromError(err)
	}
	defer rows.Close()
	records, err := scanRecords(rows, table.ColumnTypes())
	if err != nil {
		return nil, dberror.FromError(err)
	}
	return records, nil
}

func (rm *recordManager) GetRecord(ctx context.Context, table *models.Table, key any) (models.Record, apperrors.Error) {
	pk, aerr := primaryKeyColumn(table)
	if aerr != nil {
		return models.Record{}, aerr
	}
	query := fmt.Sprintf(`SELECT * FROM %s WHERE %s = $1`, pq.QuoteIdentifier(table.PhysicalName), pk)
	return rm.queryOne(ctx, table, query, key)
}

// InsertRecord inserts one row and bumps the table's row count in the same
// statement. Columns absent from values take their defaults.
func (rm *recordManager) InsertRecord(ctx context.Context, table *models.Table, values []models.ColumnValue) (models.Record, apperrors.Error) {
	columns := make([]string, 0, len(values))
	placeholders := make([]string, 0, len(values))
	args := make([]any, 0, len(values)+1)
	for i, v := range values {
		columns = append(columns, pq.QuoteIdentifier(v.Name))
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, v.Value)
	}
	insert := "INSERT INTO " + pq.QuoteIdentifier(table.PhysicalName)
	if len(values) == 0 {
		insert += " DEFAULT VALUES"
	} else {
		insert += " (" + strings.Join(columns, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")"
	}
	args = append(args, table.TableID)
	query := fmt.Sprintf(`
		WITH ins AS (%s RETURNING *),
		cnt AS (
			UPDATE tablesrv.tables SET row_count = row_count + (SELECT count(*) FROM ins)
			WHERE table_id = $%d
		)
		SELECT * FROM ins`, insert, len(args))
	return rm.queryOne(ctx, table, query, args...)
}

// UpdateRecord sets the given columns and updated_at on the row with the given key.
func (rm *recordManager) UpdateRecord(ctx context.Context, table *models.Table, key any, values []models.ColumnValue) (models.Record, apperrors.Error) {
	if len(values) == 0 {
		return models.Record{}, dberror.ErrInvalidInput.Msg("no columns to update")
	}
	pk, aerr := primaryKeyColumn(table)
	if aerr != nil {
		return models.Record{}, aerr
	}
	sets := make([]string, 0, len(values)+1)
	args := make([]any, 0, len(values)+1)
	for i, v := range values {
		sets = append(sets, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(v.Name), i+1))
		args = append(args, v.Value)
	}
	sets = append(sets, pq.QuoteIdentifier(tableschema.UpdatedAtColumn)+" = now()")
	args = append(args, key)
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = $%d RETURNING *`,
		pq.QuoteIdentifier(table.PhysicalName), strings.Join(sets, ", "), pk, len(args))
	return rm.queryOne(ctx, table, query, args...)
}

// DeleteRecord removes the row with the given key and decrements the row count.
func (rm *recordManager) DeleteRecord(ctx context.Context, table *models.Table, key any) apperrors.Error {
	pk, aerr := primaryKeyColumn(table)
	if aerr != nil {
		return aerr
	}
	query := fmt.Sprintf(`
		WITH del AS (DELETE FROM %s WHERE %s = $1 RETURNING 1),
		cnt AS (
			UPDATE tablesrv.tables SET row_count = GREATEST(row_count - (SELECT count(*) FROM del), 0)
			WHERE table_id = $2
		)
		SELECT count(*) FROM del`, pq.QuoteIdentifier(table.PhysicalName), pk)
	var deleted int64
	if err := rm.conn().QueryRowContext(ctx, query, key, table.TableID).Scan(&deleted); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("table", table.Name).Msg("failed to delete record")
		return dberror.FromError(err)
	}
	if deleted == 0 {
		return dberror.ErrNotFound.Msg("record not found")
	}
	return nil
}

func (rm *recordManager) queryOne(ctx context.Context, table *models.Table, query string, args ...any) (models.Record, apperrors.Error) {
	rows, err := rm.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return models.Record{}, rm.recordError(ctx, table, err)
	}
	defer rows.Close()
	records, err := scanRecords(rows, table.ColumnTypes())
	if err != nil {
		return models.Record{}, rm.recordError(ctx, table, err)
	}
	if len(records) == 0 {
		return models.Record{}, dberror.ErrNotFound.Msg("record not found")
	}
	return records[0], nil
}

func (rm *recordManager) recordError(ctx context.Context, table *models.Table, err error) apperrors.Error {
	aerr := dberror.FromError(err)
	if aerr.Kind() == apperrors.KindStorageFailure {
		log.Ctx(ctx).Error().Err(err).Str("table", table.Name).Msg("record operation failed")
	}
	return aerr
}
