package server

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tansive/tablebase/internal/common/uuid"
	"github.com/tansive/tablebase/internal/tablesrv/tblcommon"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const todosYAML = `
name: todos
displayName: Todos
columns:
  - name: title
    type: text
  - name: done
    type: boolean
    default: "false"
  - name: priority
    type: integer
    nullable: true
`

func TestGetVersion(t *testing.T) {
	newDb(t)
	rr := executeTestRequest(t, http.MethodGet, "/version", "")
	require.Equal(t, http.StatusOK, rr.Code)
	rsp := decode[GetVersionRsp](t, rr)
	assert.Equal(t, "Tablebase Table Server: "+tblcommon.ServerVersion, rsp.ServerVersion)
	assert.Equal(t, tblcommon.ApiVersion, rsp.ApiVersion)
}

func TestGetReadiness(t *testing.T) {
	newDb(t)
	rr := executeTestRequest(t, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rr.Body.String())
}

func TestTableAndRecordLifecycle(t *testing.T) {
	ctx := newDb(t)
	base := newProject(t, ctx, testUser())

	rr := executeTestRequest(t, http.MethodPost, base+"/tables", todosYAML, "Content-Type", "application/yaml")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, base+"/tables/todos", rr.Header().Get("Location"))
	assert.Equal(t, "todos", gjson.Get(rr.Body.String(), "name").String())
	assert.Len(t, gjson.Get(rr.Body.String(), "fingerprint").String(), 64)

	rr = executeTestRequest(t, http.MethodPost, base+"/tables", todosYAML, "Content-Type", "application/yaml")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = executeTestRequest(t, http.MethodGet, base+"/tables/todos", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var names []string
	for _, c := range gjson.Get(rr.Body.String(), "columns.#.name").Array() {
		names = append(names, c.String())
	}
	assert.Equal(t, []string{"id", "title", "done", "priority", "created_at", "updated_at"}, names)

	rr = executeTestRequest(t, http.MethodGet, base+"/tables", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(1), gjson.Get(rr.Body.String(), "#").Int())

	rr = executeTestRequest(t, http.MethodGet, base+"/tables/todos/definition", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Todos", gjson.Get(rr.Body.String(), "displayName").String())

	payload, _ := sjson.Set("", "title", "ship it")
	payload, _ = sjson.Set(payload, "priority", 2)
	rr = executeTestRequest(t, http.MethodPost, base+"/tables/todos/records", payload)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id := gjson.Get(rr.Body.String(), "id").String()
	require.True(t, uuid.IsValid(id))
	assert.False(t, gjson.Get(rr.Body.String(), "done").Bool())

	rr = executeTestRequest(t, http.MethodGet, base+"/tables/todos/records/"+id, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ship it", gjson.Get(rr.Body.String(), "title").String())
	assert.Equal(t, int64(2), gjson.Get(rr.Body.String(), "priority").Int())

	rr = executeTestRequest(t, http.MethodPatch, base+"/tables/todos/records/"+id, `{"done": true}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, gjson.Get(rr.Body.String(), "done").Bool())

	rr = executeTestRequest(t, http.MethodPut, base+"/tables/todos/records/"+id, `{"id": "x"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = executeTestRequest(t, http.MethodPost, base+"/tables/todos/records", `{"priority": "high"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, int64(0), gjson.Get(rr.Body.String(), "result").Int())

	rr = executeTestRequest(t, http.MethodGet, base+"/tables/todos/records?limit=5000", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(1), gjson.Get(rr.Body.String(), "#").Int())

	rr = executeTestRequest(t, http.MethodGet, base+"/tables/todos/records?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = executeTestRequest(t, http.MethodPost, base+"/query", `{"query": "SELECT count(*) FROM todos"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, int64(1), gjson.Get(rr.Body.String(), "rows.0.count").Int())
	assert.Equal(t, gjson.Null, gjson.Get(rr.Body.String(), "rowsAffected").Type)
	assert.True(t, gjson.Get(rr.Body.String(), "elapsedTimeMs").Exists())

	rr = executeTestRequest(t, http.MethodPost, base+"/query", `{"query": "SELECT * FROM pg_catalog.pg_user"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = executeTestRequest(t, http.MethodPost, base+"/query", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = executeTestRequest(t, http.MethodDelete, base+"/tables/todos/records/"+id, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = executeTestRequest(t, http.MethodGet, base+"/tables/todos/records/"+id, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = executeTestRequest(t, http.MethodDelete, base+"/tables/todos", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = executeTestRequest(t, http.MethodGet, base+"/tables/todos", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestProjectAccess(t *testing.T) {
	ctx := newDb(t)
	mine := newProject(t, ctx, testUser())
	theirs := newProject(t, ctx, "users/"+uuid.New().String())

	rr := executeTestRequest(t, http.MethodGet, mine+"/tables", "", "Authorization", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = executeTestRequest(t, http.MethodGet, mine+"/tables", "", "Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = executeTestRequest(t, http.MethodGet, theirs+"/tables", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = executeTestRequest(t, http.MethodGet, "/projects/not-a-uuid/tables", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = executeTestRequest(t, http.MethodPost, mine+"/tables", `{"name": "Bad Name", "columns": []}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "columns"), rr.Body.String())

	rr = executeTestRequest(t, http.MethodDelete, mine, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = executeTestRequest(t, http.MethodGet, mine+"/tables", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
