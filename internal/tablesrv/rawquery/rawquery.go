// Package rawquery runs tenant supplied SQL against the tenant's own tables.
package rawquery

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tansive/tablebase/internal/common/apperrors"
	"github.com/tansive/tablebase/internal/common/uuid"
	"github.com/tansive/tablebase/internal/tablesrv/config"
	"github.com/tansive/tablebase/internal/tablesrv/db"
	"github.com/tansive/tablebase/internal/tablesrv/db/models"
	"github.com/tansive/tablebase/internal/tablesrv/tablemanager"
	"github.com/tansive/tablebase/internal/tablesrv/tblcommon"
)

// Result is the response of a raw query. RowsAffected is nil for statements that
// do not write.
type Result struct {
	Rows          []models.Record `json:"rows"`
	RowsAffected  *int64          `json:"rowsAffected"`
	ElapsedTimeMs float64         `json:"elapsedTimeMs"`
}

type Request struct {
	Query string `json:"query" validate:"required"`
}

// Execute checks, rewrites and runs a single statement in the project of the context.
func Execute(ctx context.Context, text string) (*Result, apperrors.Error) {
	cfg := config.Config().RawQuery
	if !cfg.Enabled {
		return nil, ErrQueryDisabled
	}
	uc := tblcommon.GetUserContext(ctx)
	if uc == nil || uc.UserID == "" {
		return nil, tablemanager.ErrUnauthorized
	}
	projectID := tblcommon.GetProjectID(ctx)
	if projectID == uuid.Nil {
		return nil, ErrInvalidProject
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidQuery.Msg("query is empty")
	}

	opts := Options{
		ProjectID: projectID,
		Trusted:   cfg.IsTrustedProject(projectID.String()) || (cfg.AllowTrustedScope && uc.Scope == tblcommon.ScopeTrusted),
	}
	plan, err := Prepare(ctx, text, opts, TableResolverFunc(tablemanager.ResolveTable))
	if err != nil {
		log.Ctx(ctx).Info().Err(err).Bool("trusted", opts.Trusted).Msg("raw query rejected")
		return nil, err
	}

	res, err := db.DB(ctx).ExecuteQuery(ctx, &models.Query{
		Text:        plan.Text,
		ReturnsRows: plan.ReturnsRows,
		IsWrite:     plan.IsWrite,
		Timeout:     cfg.GetTimeout(),
	})
	if err != nil {
		return nil, err
	}

	if plan.IsWrite {
		for _, t := range plan.Tables {
			if rerr := db.DB(ctx).RefreshRowCount(ctx, t); rerr != nil {
				log.Ctx(ctx).Error().Err(rerr).Str("table", t.Name).Msg("unable to refresh row count")
			}
		}
	}
	log.Ctx(ctx).Debug().Str("statement", plan.Statement).Int("tables", len(plan.Tables)).
		Dur("elapsed", res.Elapsed).Msg("raw query executed")

	return &Result{
		Rows:          res.Rows,
		RowsAffected:  res.RowsAffected,
		ElapsedTimeMs: float64(res.Elapsed.Microseconds()) / 1000,
	}, nil
}
