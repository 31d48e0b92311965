// Package records implements record CRUD on tenant tables. Every operation resolves
// the table through the catalog first, so it only ever touches tables of the caller's
// project.
package records

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/tansive/tablebase/internal/common/apperrors"
	"github.com/tansive/tablebase/internal/tablesrv/db"
	"github.com/tansive/tablebase/internal/tablesrv/db/dberror"
	"github.com/tansive/tablebase/internal/tablesrv/db/models"
	"github.com/tansive/tablebase/internal/tablesrv/tablemanager"
)

// List returns a page of records of the named table, newest first.
func List(ctx context.Context, tableName string, page Page) ([]models.Record, apperrors.Error) {
	table, err := tablemanager.ResolveTable(ctx, tableName)
	if err != nil {
		return nil, err
	}
	def, max := pageSizes()
	page = page.clamp(def, max)
	rows, err := db.DB(ctx).ListRecords(ctx, table, page.Limit, page.Offset)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func Get(ctx context.Context, tableName, recordID string) (models.Record, apperrors.Error) {
	table, key, err := resolveKey(ctx, tableName, recordID)
	if err != nil {
		return models.Record{}, err
	}
	rec, err := db.DB(ctx).GetRecord(ctx, table, key)
	if err != nil {
		return models.Record{}, mapError(err)
	}
	return rec, nil
}

// Insert adds a record from a JSON object and returns the stored row.
func Insert(ctx context.Context, tableName string, payload []byte) (models.Record, apperrors.Error) {
	table, err := tablemanager.ResolveTable(ctx, tableName)
	if err != nil {
		return models.Record{}, err
	}
	values, err := valuesFromPayload(table, payload, false)
	if err != nil {
		return models.Record{}, err
	}
	rec, err := db.DB(ctx).InsertRecord(ctx, table, values)
	if err != nil {
		return models.Record{}, mapError(err)
	}
	log.Ctx(ctx).Debug().Str("table", table.Name).Int("columns", len(values)).Msg("record inserted")
	return rec, nil
}

// Update sets the columns present in payload. The primary key and the timestamps
// cannot be changed; updated_at is always stamped.
func Update(ctx context.Context, tableName, recordID string, payload []byte) (models.Record, apperrors.Error) {
	table, key, err := resolveKey(ctx, tableName, recordID)
	if err != nil {
		return models.Record{}, err
	}
	values, err := valuesFromPayload(table, payload, true)
	if err != nil {
		return models.Record{}, err
	}
	rec, err := db.DB(ctx).UpdateRecord(ctx, table, key, values)
	if err != nil {
		return models.Record{}, mapError(err)
	}
	return rec, nil
}

func Delete(ctx context.Context, tableName, recordID string) apperrors.Error {
	table, key, err := resolveKey(ctx, tableName, recordID)
	if err != nil {
		return err
	}
	if err := db.DB(ctx).DeleteRecord(ctx, table, key); err != nil {
		return mapError(err)
	}
	return nil
}

func resolveKey(ctx context.Context, tableName, recordID string) (*models.Table, any, apperrors.Error) {
	table, err := tablemanager.ResolveTable(ctx, tableName)
	if err != nil {
		return nil, nil, err
	}
	pk := table.PrimaryKey()
	if pk == nil {
		return nil, nil, ErrInvalidRecordID.Msg("table " + tableName + " has no primary key")
	}
	key, perr := ParseKey(pk, recordID)
	if perr != nil {
		return nil, nil, ErrInvalidRecordID.MsgErr(perr.Error(), perr)
	}
	return table, key, nil
}

func mapError(err apperrors.Error) apperrors.Error {
	switch {
	case errors.Is(err, dberror.ErrNotFound):
		return ErrRecordNotFound
	case errors.Is(err, dberror.ErrAlreadyExists):
		return ErrDuplicateRecord.MsgErr(err.Error(), err)
	case errors.Is(err, dberror.ErrInvalidInput):
		return ErrInvalidValue.MsgErr(err.Error(), err)
	}
	return err
}
