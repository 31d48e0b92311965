// Package apis exposes the table service over HTTP.
package apis

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tansive/tablebase/internal/common/httpx"
	"github.com/tansive/tablebase/internal/tablesrv/auth"
)

type handlerParam struct {
	Method  string
	Path    string
	Handler httpx.RequestHandler
}

// projectHandlers are mounted under /projects/{projectID}.
var projectHandlers = []handlerParam{
	{Method: http.MethodDelete, Path: "/", Handler: dropProject},
	{Method: http.MethodPost, Path: "/tables", Handler: defineTable},
	{Method: http.MethodGet, Path: "/tables", Handler: listTables},
	{Method: http.MethodGet, Path: "/tables/{tableName}", Handler: getTable},
	{Method: http.MethodDelete, Path: "/tables/{tableName}", Handler: dropTable},
	{Method: http.MethodGet, Path: "/tables/{tableName}/columns", Handler: listColumns},
	{Method: http.MethodGet, Path: "/tables/{tableName}/definition", Handler: getDefinition},
	{Method: http.MethodGet, Path: "/tables/{tableName}/records", Handler: listRecords},
	{Method: http.MethodPost, Path: "/tables/{tableName}/records", Handler: insertRecord},
	{Method: http.MethodGet, Path: "/tables/{tableName}/records/{recordID}", Handler: getRecord},
	{Method: http.MethodPut, Path: "/tables/{tableName}/records/{recordID}", Handler: updateRecord},
	{Method: http.MethodPatch, Path: "/tables/{tableName}/records/{recordID}", Handler: updateRecord},
	{Method: http.MethodDelete, Path: "/tables/{tableName}/records/{recordID}", Handler: deleteRecord},
	{Method: http.MethodPost, Path: "/query", Handler: runQuery},
}

// Router registers the project routes on r. Every route requires an authenticated
// caller who owns the project.
func Router(r chi.Router) chi.Router {
	r.Route("/projects/{projectID}", func(r chi.Router) {
		r.Use(auth.UserAuthMiddleware)
		r.Use(ProjectContextLoader)
		for _, h := range projectHandlers {
			r.Method(h.Method, h.Path, httpx.WrapHttpRsp(h.Handler))
		}
	})
	return r
}
