package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tansive/tablebase/internal/common/apperrors"
	"github.com/tansive/tablebase/internal/tablesrv/db/dberror"
	"github.com/tansive/tablebase/internal/tablesrv/db/models"
)

// ExecuteQuery runs a statement that has already been checked and rewritten. It runs
// in its own transaction with a local statement timeout, so a failed statement leaves
// nothing behind.
func (rm *recordManager) ExecuteQuery(ctx context.Context, q *models.Query) (*models.QueryResult, apperrors.Error) {
	tx, err := rm.conn().BeginTx(ctx, nil)
	if err != nil {
		return nil, dberror.FromError(err)
	}
	defer tx.Rollback()

	if q.Timeout > 0 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", q.Timeout.Milliseconds())); err != nil {
			return nil, dberror.FromError(err)
		}
	}

	result := &models.QueryResult{Rows: []models.Record{}}
	start := time.Now()
	if q.ReturnsRows {
		rows, err := tx.QueryContext(ctx, q.Text)
		if err != nil {
			return nil, rm.queryError(ctx, err)
		}
		records, err := scanRecords(rows, nil)
		rows.Close()
		if err != nil {
			return nil, rm.queryError(ctx, err)
		}
		result.Rows = records
		if q.IsWrite {
			n := int64(len(records))
			result.RowsAffected = &n
		}
	} else {
		res, err := tx.ExecContext(ctx, q.Text)
		if err != nil {
			return nil, rm.queryError(ctx, err)
		}
		if q.IsWrite {
			n, err := res.RowsAffected()
			if err != nil {
				return nil, dberror.FromError(err)
			}
			result.RowsAffected = &n
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, rm.queryError(ctx, err)
	}
	result.Elapsed = time.Since(start)
	return result, nil
}

func (rm *recordManager) queryError(ctx context.Context, err error) apperrors.Error {
	aerr := dberror.FromError(err)
	if aerr.Kind() == apperrors.KindStorageFailure {
		log.Ctx(ctx).Error().Err(err).Msg("raw query failed")
	} else {
		log.Ctx(ctx).Debug().Err(err).Msg("raw query rejected by the database")
	}
	return aerr
}
