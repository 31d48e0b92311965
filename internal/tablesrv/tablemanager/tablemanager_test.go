package tablemanager

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tansive/tablebase/internal/common/uuid"
	"github.com/tansive/tablebase/internal/tablesrv/config"
	"github.com/tansive/tablebase/internal/tablesrv/db"
	"github.com/tansive/tablebase/internal/tablesrv/db/models"
	"github.com/tansive/tablebase/internal/tablesrv/tblcommon"
)

var (
	initOnce sync.Once
	initErr  error
)

func newDb(t *testing.T) context.Context {
	t.Helper()
	ctx := log.Logger.WithContext(context.Background())
	initOnce.Do(func() {
		config.TestInit()
		initErr = db.Init(ctx)
	})
	if initErr != nil {
		t.Skipf("database not available: %v", initErr)
	}
	ctx, err := db.ConnCtx(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { db.DB(ctx).Close(context.Background()) })
	require.Nil(t, db.DB(ctx).Migrate(ctx))
	return ctx
}

func newProject(t *testing.T, ctx context.Context) context.Context {
	t.Helper()
	owner := "users/" + uuid.New().String()
	p := &models.Project{ProjectID: uuid.New(), Slug: "tm-test", OwnerID: owner}
	require.Nil(t, db.DB(ctx).CreateProject(ctx, p))
	t.Cleanup(func() { db.DB(ctx).DeleteProject(context.Background(), p.ProjectID, owner) })
	ctx = tblcommon.WithUserContext(ctx, &tblcommon.UserContext{UserID: owner})
	return tblcommon.WithProjectID(ctx, p.ProjectID)
}

const todosDefinition = `{
	"name": "todos",
	"displayName": "Todos",
	"columns": [
		{"name": "title", "type": "text"},
		{"name": "done", "type": "boolean", "default": "false"},
		{"name": "due", "type": "date", "nullable": true}
	]
}`

func TestDefineAndResolve(t *testing.T) {
	ctx := newProject(t, newDb(t))

	table, err := DefineTable(ctx, []byte(todosDefinition))
	require.Nil(t, err)
	assert.Equal(t, "todos", table.Name)

	resolved, err := ResolveTable(ctx, "todos")
	require.Nil(t, err)
	assert.Equal(t, table.TableID, resolved.TableID)

	var declared []string
	for _, c := range resolved.Columns {
		if !c.Implicit {
			declared = append(declared, c.Name)
		}
	}
	assert.Equal(t, []string{"title", "done", "due"}, declared)
	assert.Equal(t, "id", resolved.PrimaryKey().Name)
	assert.True(t, resolved.Column("due").Nullable)
	assert.False(t, resolved.Column("title").Nullable)

	columns, err := ListColumns(ctx, "todos")
	require.Nil(t, err)
	assert.Len(t, columns, 6)

	tables, err := ListTables(ctx)
	require.Nil(t, err)
	require.Len(t, tables, 1)
	assert.Len(t, tables[0].Fingerprint, 64)
	assert.Equal(t, table.Fingerprint, resolved.Fingerprint)

	definition, err := GetDefinition(ctx, "todos")
	require.Nil(t, err)
	def, err := ParseDefinition(definition)
	require.Nil(t, err)
	_, fingerprint, cerr := Canonicalize(def)
	require.NoError(t, cerr)
	assert.Equal(t, table.Fingerprint, fingerprint)

	_, err = DefineTable(ctx, []byte(todosDefinition))
	assert.ErrorIs(t, err, ErrTableExists)

	_, err = ResolveTable(ctx, "nosuch")
	assert.ErrorIs(t, err, ErrTableNotFound)
	_, err = ResolveTable(ctx, "bad-name")
	assert.ErrorIs(t, err, ErrInvalidTableName)
}

func TestCrossTenantResolve(t *testing.T) {
	base := newDb(t)
	alice := newProject(t, base)
	bob := newProject(t, base)

	_, err := DefineTable(alice, []byte(todosDefinition))
	require.Nil(t, err)

	// bob on his own project does not see alice's table
	_, err = ResolveTable(bob, "todos")
	assert.ErrorIs(t, err, ErrTableNotFound)

	// bob pointing at alice's project does not see it either
	bobOnAlice := tblcommon.WithProjectID(bob, tblcommon.GetProjectID(alice))
	_, err = ResolveTable(bobOnAlice, "todos")
	assert.ErrorIs(t, err, ErrTableNotFound)
	assert.ErrorIs(t, DropTable(bobOnAlice, "todos"), ErrTableNotFound)
	_, err = DefineTable(bobOnAlice, []byte(todosDefinition))
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestDropThenDefine(t *testing.T) {
	ctx := newProject(t, newDb(t))

	_, err := DefineTable(ctx, []byte(todosDefinition))
	require.Nil(t, err)
	require.Nil(t, DropTable(ctx, "todos"))
	assert.ErrorIs(t, DropTable(ctx, "todos"), ErrTableNotFound)

	table, err := DefineTable(ctx, []byte(todosDefinition))
	require.Nil(t, err)
	assert.Equal(t, int64(0), table.RowCount)
}

func TestConcurrentDefine(t *testing.T) {
	base := newDb(t)
	ctx := newProject(t, base)

	const n = 4
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := db.ConnCtx(ctx)
			if err != nil {
				errs[i] = err
				return
			}
			defer db.DB(c).Close(context.Background())
			if _, aerr := DefineTable(c, []byte(`{"name":"x","columns":[{"name":"a","type":"text"}]}`)); aerr != nil {
				errs[i] = aerr
			}
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrTableExists)
	}
	assert.Equal(t, 1, succeeded)

	tables, err := ListTables(ctx)
	require.Nil(t, err)
	assert.Len(t, tables, 1)
}

func TestDropProject(t *testing.T) {
	base := newDb(t)
	owner := "users/" + uuid.New().String()
	p := &models.Project{ProjectID: uuid.New(), OwnerID: owner}
	require.Nil(t, db.DB(base).CreateProject(base, p))
	ctx := tblcommon.WithProjectID(tblcommon.WithUserContext(base, &tblcommon.UserContext{UserID: owner}), p.ProjectID)

	_, err := DefineTable(ctx, []byte(todosDefinition))
	require.Nil(t, err)
	require.Nil(t, DropProject(ctx))
	assert.ErrorIs(t, DropProject(ctx), ErrProjectNotFound)
	_, err = ResolveTable(ctx, "todos")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestRequiresScope(t *testing.T) {
	_, err := DefineTable(context.Background(), []byte(todosDefinition))
	assert.ErrorIs(t, err, ErrUnauthorized)
	ctx := tblcommon.WithUserContext(context.Background(), &tblcommon.UserContext{UserID: "users/a"})
	_, err = ResolveTable(ctx, "todos")
	assert.ErrorIs(t, err, ErrInvalidProject)
}
