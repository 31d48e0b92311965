package postgresql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/tansive/tablebase/internal/common/apperrors"
	"github.com/tansive/tablebase/internal/common/uuid"
	"github.com/tansive/tablebase/internal/tablesrv/db/dberror"
	"github.com/tansive/tablebase/internal/tablesrv/db/models"
	"github.com/tansive/tablebase/internal/tablesrv/tableschema"
)

// CreateProject registers a project. Projects are provisioned outside the request
// path, so the owner is taken from the model rather than the caller.
func (cm *catalogManager) CreateProject(ctx context.Context, project *models.Project) apperrors.Error {
	if project == nil || project.ProjectID == uuid.Nil || project.OwnerID == "" {
		return dberror.ErrInvalidInput.Msg("project id and owner are required")
	}
	query := `
		INSERT INTO tablesrv.projects (project_id, slug, owner_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id) DO NOTHING
		RETURNING created_at, updated_at;
	`
	row := cm.conn().QueryRowContext(ctx, query, project.ProjectID, project.Slug, project.OwnerID)
	if err := row.Scan(&project.CreatedAt, &project.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Ctx(ctx).Info().Str("project_id", project.ProjectID.String()).Msg("project already exists")
			return dberror.ErrAlreadyExists.Msg("project already exists")
		}
		log.Ctx(ctx).Error().Err(err).Str("project_id", project.ProjectID.String()).Msg("failed to insert project")
		return dberror.FromError(err)
	}
	return nil
}

// GetProject returns the project if the caller owns it. A project owned by someone
// else is reported as not found.
func (cm *catalogManager) GetProject(ctx context.Context, projectID uuid.UUID, ownerID string) (*models.Project, apperrors.Error) {
	query := `
		SELECT project_id, slug, owner_id, created_at, updated_at
		FROM tablesrv.projects
		WHERE project_id = $1 AND owner_id = $2;
	`
	var p models.Project
	err := cm.conn().QueryRowContext(ctx, query, projectID, ownerID).
		Scan(&p.ProjectID, &p.Slug, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dberror.ErrNotFound.Msg("project not found")
		}
		log.Ctx(ctx).Error().Err(err).Str("project_id", projectID.String()).Msg("failed to retrieve project")
		return nil, dberror.FromError(err)
	}
	return &p, nil
}

// DeleteProject drops every physical table of the project and removes the project
// with its catalog entries, all in one transaction.
func (cm *catalogManager) DeleteProject(ctx context.Context, projectID uuid.UUID, ownerID string) apperrors.Error {
	tx, err := cm.conn().BeginTx(ctx, nil)
	if err != nil {
		return dberror.FromError(err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT true FROM tablesrv.projects WHERE project_id = $1 AND owner_id = $2 FOR UPDATE`,
		projectID, ownerID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dberror.ErrNotFound.Msg("project not found")
		}
		return dberror.FromError(err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT physical_name FROM tablesrv.tables WHERE project_id = $1`, projectID)
	if err != nil {
		return dberror.FromError(err)
	}
	var physicalNames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return dberror.FromError(err)
		}
		physicalNames = append(physicalNames, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return dberror.FromError(err)
	}

	for _, name := range physicalNames {
		if _, err := tx.ExecContext(ctx, tableschema.DropTableStatement(name)); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("table", name).Msg("failed to drop physical table")
			return dberror.FromError(err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tablesrv.projects WHERE project_id = $1`, projectID); err != nil {
		return dberror.FromError(err)
	}
	if err := tx.Commit(); err != nil {
		return dberror.FromError(err)
	}
	log.Ctx(ctx).Info().Str("project_id", projectID.String()).Int("tables", len(physicalNames)).Msg("project deleted")
	return nil
}
