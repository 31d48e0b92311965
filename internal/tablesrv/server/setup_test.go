package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
	"github.com/tansive/tablebase/internal/common/uuid"
	"github.com/tansive/tablebase/internal/tablesrv/config"
	"github.com/tansive/tablebase/internal/tablesrv/db"
	"github.com/tansive/tablebase/internal/tablesrv/db/models"
)

var (
	initOnce sync.Once
	initErr  error
)

// newDb initializes the pool and the catalog schema, skipping the test when no
// database is reachable.
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

// newProject creates a project owned by owner and returns its base path.
func newProject(t *testing.T, ctx context.Context, owner string) string {
	t.Helper()
	p := &models.Project{ProjectID: uuid.New(), Slug: "server-test", OwnerID: owner}
	require.Nil(t, db.DB(ctx).CreateProject(ctx, p))
	t.Cleanup(func() { db.DB(ctx).DeleteProject(context.Background(), p.ProjectID, owner) })
	return "/projects/" + p.ProjectID.String()
}

func testUser() string {
	return config.Config().Auth.TestUserID
}

func executeTestRequest(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	s, err := CreateNewServer()
	require.NoError(t, err)
	s.MountHandlers()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+config.Config().Auth.TestUserToken)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		if header[i+1] == "" {
			req.Header.Del(header[i])
			continue
		}
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}
