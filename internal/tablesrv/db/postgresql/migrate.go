package postgresql

import (
	"context"
	"database/sql"
	_ "embed"

	"github.com/rs/zerolog/log"
	"github.com/tansive/tablebase/internal/common/apperrors"
	"github.com/tansive/tablebase/internal/tablesrv/db/dberror"
)

//go:embed schema.sql
var catalogSchema string

// migrationLockID serializes concurrent migrations across service instances.
const migrationLockID int64 = 0x7461626c65737276

// MigrateCatalog creates the catalog schema if it does not exist. It is idempotent.
func MigrateCatalog(ctx context.Context, conn *sql.Conn) apperrors.Error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return dberror.FromError(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return dberror.FromError(err)
	}
	if _, err := tx.ExecContext(ctx, catalogSchema); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to apply catalog schema")
		return dberror.FromError(err)
	}
	if err := tx.Commit(); err != nil {
		return dberror.FromError(err)
	}
	log.Ctx(ctx).Info().Msg("catalog schema is up to date")
	return nil
}
