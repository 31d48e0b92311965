// Package tablemanager defines, resolves and drops tenant tables. It validates the
// definition, compiles it and hands the result to the catalog, which applies the
// catalog rows and the DDL together.
package tablemanager

import (
	"context"
	"errors"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/tansive/tablebase/internal/common/apperrors"
	"github.com/tansive/tablebase/internal/common/uuid"
	"github.com/tansive/tablebase/internal/tablesrv/db"
	"github.com/tansive/tablebase/internal/tablesrv/db/dberror"
	"github.com/tansive/tablebase/internal/tablesrv/db/models"
	"github.com/tansive/tablebase/internal/tablesrv/tableschema"
	"github.com/tansive/tablebase/internal/tablesrv/tblcommon"
	"golang.org/x/text/unicode/norm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ParseDefinition checks the shape of a create-table body, decodes it and validates
// it. Display texts are NFC normalized.
func ParseDefinition(body []byte) (*tableschema.Definition, apperrors.Error) {
	if len(body) == 0 {
		return nil, ErrInvalidDefinition.Msg("empty table definition")
	}
	problems, err := validateShape(body)
	if err != nil {
		return nil, apperrors.ErrStorageFailure.Err(err)
	}
	if len(problems) > 0 {
		return nil, ErrInvalidDefinition.Err(errors.New(strings.Join(problems, "; ")))
	}

	def := &tableschema.Definition{}
	if err := json.Unmarshal(body, def); err != nil {
		return nil, ErrInvalidDefinition.Err(err)
	}
	normalize(def)
	if verrs := def.Validate(); verrs != nil {
		return nil, ErrInvalidDefinition.Err(verrs)
	}
	return def, nil
}

func normalize(def *tableschema.Definition) {
	def.DisplayName = norm.NFC.String(strings.TrimSpace(def.DisplayName))
	def.Description = norm.NFC.String(strings.TrimSpace(def.Description))
	if def.DisplayName == "" {
		def.DisplayName = def.Name
	}
	for i := range def.Columns {
		c := &def.Columns[i]
		c.DisplayName = norm.NFC.String(strings.TrimSpace(c.DisplayName))
		if c.Default != nil {
			d := strings.TrimSpace(*c.Default)
			c.Default = &d
		}
	}
}

// BuildTable compiles a validated definition into the catalog model and the DDL that
// creates its physical table.
func BuildTable(projectID uuid.UUID, def *tableschema.Definition) (*models.Table, string) {
	defs, _ := tableschema.Compile(def.Columns)
	table := &models.Table{
		TableID:      uuid.New(),
		ProjectID:    projectID,
		Name:         def.Name,
		DisplayName:  def.DisplayName,
		Description:  def.Description,
		PhysicalName: tableschema.PhysicalTableName(projectID, def.Name),
		Columns:      make([]models.Column, 0, len(defs)),
	}
	for _, d := range defs {
		table.Columns = append(table.Columns, models.Column{
			TableID:     table.TableID,
			Name:        d.Name,
			DisplayName: d.DisplayName,
			DataType:    d.Type,
			Nullable:    d.Nullable,
			PrimaryKey:  d.PrimaryKey,
			Unique:      d.Unique && !d.PrimaryKey,
			Implicit:    d.Implicit,
			Default:     d.Default,
			Ordinal:     d.Ordinal,
		})
	}
	return table, tableschema.CreateTableStatement(table.PhysicalName, defs)
}

// DefineTable creates a table in the project of the context from a JSON definition.
func DefineTable(ctx context.Context, body []byte) (*models.Table, apperrors.Error) {
	projectID, aerr := requireScope(ctx)
	if aerr != nil {
		return nil, aerr
	}
	def, aerr := ParseDefinition(body)
	if aerr != nil {
		return nil, aerr
	}
	table, ddl := BuildTable(projectID, def)
	canonical, fingerprint, cerr := Canonicalize(def)
	if cerr != nil {
		return nil, ErrInvalidDefinition.Err(cerr)
	}
	table.Definition, table.Fingerprint = canonical, fingerprint
	if err := db.DB(ctx).CreateTable(ctx, table, ddl); err != nil {
		switch {
		case errors.Is(err, dberror.ErrAlreadyExists):
			return nil, ErrTableExists.Msg("table " + def.Name + " already exists")
		case errors.Is(err, dberror.ErrNotFound):
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	log.Ctx(ctx).Info().Str("table", table.Name).Str("physical_name", table.PhysicalName).
		Int("columns", len(table.Columns)).Msg("table defined")
	return table, nil
}

// ResolveTable returns the named table of the caller's project with its columns. It
// is the check every record and query operation goes through.
func ResolveTable(ctx context.Context, name string) (*models.Table, apperrors.Error) {
	if _, aerr := requireScope(ctx); aerr != nil {
		return nil, aerr
	}
	if !tableschema.IsValidTableName(name) {
		return nil, ErrInvalidTableName.Msg("invalid table name " + name)
	}
	table, err := db.DB(ctx).GetTable(ctx, name)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, ErrTableNotFound.Msg("table " + name + " not found")
		}
		return nil, err
	}
	return table, nil
}

func ListTables(ctx context.Context) ([]*models.Table, apperrors.Error) {
	if _, aerr := requireScope(ctx); aerr != nil {
		return nil, aerr
	}
	return db.DB(ctx).ListTables(ctx)
}

// ListColumns returns the columns of the named table ordered by position.
func ListColumns(ctx context.Context, name string) ([]models.Column, apperrors.Error) {
	table, err := ResolveTable(ctx, name)
	if err != nil {
		return nil, err
	}
	return table.Columns, nil
}

// DropTable removes the table from the catalog and drops its storage.
func DropTable(ctx context.Context, name string) apperrors.Error {
	if _, aerr := requireScope(ctx); aerr != nil {
		return aerr
	}
	if !tableschema.IsValidTableName(name) {
		return ErrInvalidTableName.Msg("invalid table name " + name)
	}
	if err := db.DB(ctx).DeleteTable(ctx, name); err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return ErrTableNotFound.Msg("table " + name + " not found")
		}
		return err
	}
	log.Ctx(ctx).Info().Str("table", name).Msg("table dropped")
	return nil
}

// DropProject deletes the project of the context with all of its tables.
func DropProject(ctx context.Context) apperrors.Error {
	projectID, aerr := requireScope(ctx)
	if aerr != nil {
		return aerr
	}
	if err := db.DB(ctx).DeleteProject(ctx, projectID, tblcommon.GetUserID(ctx)); err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return ErrProjectNotFound
		}
		return err
	}
	log.Ctx(ctx).Info().Str("project_id", projectID.String()).Msg("project dropped")
	return nil
}

func requireScope(ctx context.Context) (uuid.UUID, apperrors.Error) {
	if tblcommon.GetUserID(ctx) == "" {
		return uuid.Nil, ErrUnauthorized
	}
	projectID := tblcommon.GetProjectID(ctx)
	if projectID == uuid.Nil {
		return uuid.Nil, ErrInvalidProject
	}
	return projectID, nil
}
