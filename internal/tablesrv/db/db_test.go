package db

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tansive/tablebase/internal/common/uuid"
	"github.com/tansive/tablebase/internal/tablesrv/config"
	"github.com/tansive/tablebase/internal/tablesrv/db/dberror"
	"github.com/tansive/tablebase/internal/tablesrv/db/models"
	"github.com/tansive/tablebase/internal/tablesrv/tableschema"
	"github.com/tansive/tablebase/internal/tablesrv/tblcommon"
)

var (
	initOnce sync.Once
	initErr  error
)

// newDb returns a context holding a connection to the test database, with the
// catalog schema in place. The test is skipped when no database is reachable.
func newDb(t *testing.T) context.Context {
	t.Helper()
	ctx := log.Logger.WithContext(context.Background())
	initOnce.Do(func() {
		config.TestInit()
		initErr = Init(ctx)
	})
	if initErr != nil {
		t.Skipf("database not available: %v", initErr)
	}
	ctx, err := ConnCtx(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { DB(ctx).Close(context.Background()) })
	require.Nil(t, DB(ctx).Migrate(ctx))
	return ctx
}

// newProject creates a project owned by a fresh user and returns a context acting as
// that user on that project.
func newProject(t *testing.T, ctx context.Context) context.Context {
	t.Helper()
	owner := "users/" + uuid.New().String()
	p := &models.Project{ProjectID: uuid.New(), Slug: "test", OwnerID: owner}
	require.Nil(t, DB(ctx).CreateProject(ctx, p))
	t.Cleanup(func() { DB(ctx).DeleteProject(context.Background(), p.ProjectID, owner) })
	ctx = tblcommon.WithUserContext(ctx, &tblcommon.UserContext{UserID: owner})
	return tblcommon.WithProjectID(ctx, p.ProjectID)
}

func todosTable(projectID uuid.UUID) (*models.Table, string) {
	defs, _ := tableschema.Compile([]tableschema.Column{
		{Name: "title", Type: tableschema.TypeText},
		{Name: "done", Type: tableschema.TypeBoolean, Default: strPtr("false")},
	})
	table := &models.Table{
		Name:         "todos",
		DisplayName:  "Todos",
		PhysicalName: tableschema.PhysicalTableName(projectID, "todos"),
	}
	for _, d := range defs {
		table.Columns = append(table.Columns, models.Column{
			Name:        d.Name,
			DisplayName: d.DisplayName,
			DataType:    d.Type,
			Nullable:    d.Nullable,
			PrimaryKey:  d.PrimaryKey,
			Unique:      d.Unique,
			Implicit:    d.Implicit,
			Default:     d.Default,
			Ordinal:     d.Ordinal,
		})
	}
	return table, tableschema.CreateTableStatement(table.PhysicalName, defs)
}

func strPtr(s string) *string { return &s }

func TestProjectOwnership(t *testing.T) {
	ctx := newDb(t)
	ctx = newProject(t, ctx)
	projectID := tblcommon.GetProjectID(ctx)
	owner := tblcommon.GetUserID(ctx)

	p, err := DB(ctx).GetProject(ctx, projectID, owner)
	require.Nil(t, err)
	assert.Equal(t, projectID, p.ProjectID)
	assert.Equal(t, owner, p.OwnerID)

	_, err = DB(ctx).GetProject(ctx, projectID, "users/someone-else")
	assert.ErrorIs(t, err, dberror.ErrNotFound)

	err = DB(ctx).CreateProject(ctx, &models.Project{ProjectID: projectID, OwnerID: owner})
	assert.ErrorIs(t, err, dberror.ErrAlreadyExists)

	err = DB(ctx).DeleteProject(ctx, projectID, "users/someone-else")
	assert.ErrorIs(t, err, dberror.ErrNotFound)
}

func TestTableLifecycle(t *testing.T) {
	ctx := newDb(t)
	ctx = newProject(t, ctx)
	projectID := tblcommon.GetProjectID(ctx)

	table, ddl := todosTable(projectID)
	require.Nil(t, DB(ctx).CreateTable(ctx, table, ddl))
	assert.NotEqual(t, uuid.Nil, table.TableID)

	dup, ddl2 := todosTable(projectID)
	err := DB(ctx).CreateTable(ctx, dup, ddl2)
	assert.ErrorIs(t, err, dberror.ErrAlreadyExists)

	got, err := DB(ctx).GetTable(ctx, "todos")
	require.Nil(t, err)
	assert.Equal(t, table.PhysicalName, got.PhysicalName)
	require.Len(t, got.Columns, 5)
	assert.Equal(t, "id", got.Columns[0].Name)
	assert.True(t, got.Columns[0].PrimaryKey)
	assert.True(t, got.Columns[0].Implicit)
	assert.Equal(t, "title", got.Columns[1].Name)
	assert.Equal(t, "false", *got.Columns[2].Default)
	assert.Equal(t, "updated_at", got.Columns[4].Name)

	tables, err := DB(ctx).ListTables(ctx)
	require.Nil(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "todos", tables[0].Name)

	// another owner cannot see the table
	other := tblcommon.WithUserContext(ctx, &tblcommon.UserContext{UserID: "users/intruder"})
	_, err = DB(other).GetTable(other, "todos")
	assert.ErrorIs(t, err, dberror.ErrNotFound)
	assert.ErrorIs(t, DB(other).DeleteTable(other, "todos"), dberror.ErrNotFound)

	require.Nil(t, DB(ctx).DeleteTable(ctx, "todos"))
	_, err = DB(ctx).GetTable(ctx, "todos")
	assert.ErrorIs(t, err, dberror.ErrNotFound)
	assert.ErrorIs(t, DB(ctx).DeleteTable(ctx, "todos"), dberror.ErrNotFound)

	// the name is free again
	again, ddl3 := todosTable(projectID)
	require.Nil(t, DB(ctx).CreateTable(ctx, again, ddl3))
}

func TestDeleteTableDuringWrites(t *testing.T) {
	ctx := newDb(t)
	ctx = newProject(t, ctx)
	table, ddl := todosTable(tblcommon.GetProjectID(ctx))
	require.Nil(t, DB(ctx).CreateTable(ctx, table, ddl))

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for w := 0; w < 4; w++ {
		wctx, err := ConnCtx(ctx)
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer DB(wctx).Close(context.Background())
			for i := 0; i < 50; i++ {
				if _, err := DB(wctx).InsertRecord(wctx, table, []models.ColumnValue{{Name: "title", Value: "item"}}); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	time.Sleep(10 * time.Millisecond)
	require.Nil(t, DB(ctx).DeleteTable(ctx, "todos"))
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.ErrorIs(t, err, dberror.ErrNotFound)
		assert.NotEqual(t, dberror.CodeDeadlockDetected, dberror.PgCode(err))
	}
}

func TestCreateTableRollsBackOnBadDDL(t *testing.T) {
	ctx := newDb(t)
	ctx = newProject(t, ctx)

	table, _ := todosTable(tblcommon.GetProjectID(ctx))
	err := DB(ctx).CreateTable(ctx, table, "CREATE TABLE "+table.PhysicalName+" (id uuid PRIMARY KEY, x nosuchtype)")
	assert.Error(t, err)

	_, err = DB(ctx).GetTable(ctx, "todos")
	assert.ErrorIs(t, err, dberror.ErrNotFound)
}

func TestCreateTableOverExistingPhysicalTable(t *testing.T) {
	ctx := newDb(t)
	ctx = newProject(t, ctx)

	table, ddl := todosTable(tblcommon.GetProjectID(ctx))
	_, err := DB(ctx).ExecuteQuery(ctx, &models.Query{
		Text:    `CREATE TABLE "` + table.PhysicalName + `" (x int)`,
		IsWrite: true,
	})
	require.Nil(t, err)
	t.Cleanup(func() {
		DB(ctx).ExecuteQuery(context.Background(), &models.Query{Text: tableschema.DropTableStatement(table.PhysicalName), IsWrite: true})
	})

	err = DB(ctx).CreateTable(ctx, table, ddl)
	assert.ErrorIs(t, err, dberror.ErrAlreadyExists)
	_, err = DB(ctx).GetTable(ctx, "todos")
	assert.ErrorIs(t, err, dberror.ErrNotFound)
}

func TestRecords(t *testing.T) {
	ctx := newDb(t)
	ctx = newProject(t, ctx)
	table, ddl := todosTable(tblcommon.GetProjectID(ctx))
	require.Nil(t, DB(ctx).CreateTable(ctx, table, ddl))

	rec, err := DB(ctx).InsertRecord(ctx, table, []models.ColumnValue{{Name: "title", Value: "buy milk"}})
	require.Nil(t, err)
	title, _ := rec.Get("title")
	assert.Equal(t, "buy milk", title)
	done, _ := rec.Get("done")
	assert.Equal(t, false, done)
	id, ok := rec.Get("id")
	require.True(t, ok)
	assert.True(t, uuid.IsValid(id.(string)))

	_, err = DB(ctx).InsertRecord(ctx, table, []models.ColumnValue{{Name: "title", Value: "walk dog"}})
	require.Nil(t, err)

	_, err = DB(ctx).InsertRecord(ctx, table, []models.ColumnValue{{Name: "title", Value: nil}})
	assert.ErrorIs(t, err, dberror.ErrInvalidInput)

	got, err := DB(ctx).GetTable(ctx, "todos")
	require.Nil(t, err)
	assert.Equal(t, int64(2), got.RowCount)

	list, err := DB(ctx).ListRecords(ctx, table, 10, 0)
	require.Nil(t, err)
	require.Len(t, list, 2)
	first, _ := list[0].Get("title")
	assert.Equal(t, "walk dog", first)

	page, err := DB(ctx).ListRecords(ctx, table, 1, 1)
	require.Nil(t, err)
	require.Len(t, page, 1)
	second, _ := page[0].Get("title")
	assert.Equal(t, "buy milk", second)

	updated, err := DB(ctx).UpdateRecord(ctx, table, id, []models.ColumnValue{{Name: "done", Value: true}})
	require.Nil(t, err)
	done, _ = updated.Get("done")
	assert.Equal(t, true, done)

	fetched, err := DB(ctx).GetRecord(ctx, table, id)
	require.Nil(t, err)
	done, _ = fetched.Get("done")
	assert.Equal(t, true, done)

	missing := uuid.New().String()
	_, err = DB(ctx).GetRecord(ctx, table, missing)
	assert.ErrorIs(t, err, dberror.ErrNotFound)
	_, err = DB(ctx).UpdateRecord(ctx, table, missing, []models.ColumnValue{{Name: "done", Value: true}})
	assert.ErrorIs(t, err, dberror.ErrNotFound)
	assert.ErrorIs(t, DB(ctx).DeleteRecord(ctx, table, missing), dberror.ErrNotFound)

	require.Nil(t, DB(ctx).DeleteRecord(ctx, table, id))
	got, err = DB(ctx).GetTable(ctx, "todos")
	require.Nil(t, err)
	assert.Equal(t, int64(1), got.RowCount)
}

func TestExecuteQuery(t *testing.T) {
	ctx := newDb(t)
	ctx = newProject(t, ctx)
	table, ddl := todosTable(tblcommon.GetProjectID(ctx))
	require.Nil(t, DB(ctx).CreateTable(ctx, table, ddl))

	res, err := DB(ctx).ExecuteQuery(ctx, &models.Query{
		Text:    `INSERT INTO "` + table.PhysicalName + `" (title) VALUES ('a'), ('b')`,
		IsWrite: true,
	})
	require.Nil(t, err)
	require.NotNil(t, res.RowsAffected)
	assert.Equal(t, int64(2), *res.RowsAffected)
	assert.Empty(t, res.Rows)

	res, err = DB(ctx).ExecuteQuery(ctx, &models.Query{
		Text:        `SELECT count(*) AS n FROM "` + table.PhysicalName + `"`,
		ReturnsRows: true,
	})
	require.Nil(t, err)
	assert.Nil(t, res.RowsAffected)
	require.Len(t, res.Rows, 1)
	n, _ := res.Rows[0].Get("n")
	assert.Equal(t, int64(2), n)

	require.Nil(t, DB(ctx).RefreshRowCount(ctx, table))
	assert.Equal(t, int64(2), table.RowCount)

	_, err = DB(ctx).ExecuteQuery(ctx, &models.Query{
		Text:        `SELECT pg_sleep(2)`,
		ReturnsRows: true,
		Timeout:     100 * time.Millisecond,
	})
	assert.ErrorIs(t, err, dberror.ErrTimeout)

	_, err = DB(ctx).ExecuteQuery(ctx, &models.Query{Text: `SELEC 1`, ReturnsRows: true})
	assert.ErrorIs(t, err, dberror.ErrInvalidInput)
}
