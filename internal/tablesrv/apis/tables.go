package apis

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/tansive/tablebase/internal/common/httpx"
	"github.com/tansive/tablebase/internal/tablesrv/config"
	"github.com/tansive/tablebase/internal/tablesrv/tablemanager"
	"github.com/tansive/tablebase/internal/tablesrv/tblcommon"
)

func maxBodySize() int64 {
	if cfg := config.Config(); cfg != nil {
		return cfg.MaxRequestBodySize
	}
	return httpx.DefaultMaxBodySize
}

func tableName(r *http.Request) string {
	name, err := url.PathUnescape(chi.URLParam(r, "tableName"))
	if err != nil {
		return chi.URLParam(r, "tableName")
	}
	return name
}

func tableLocation(r *http.Request, name string) string {
	return "/projects/" + tblcommon.GetProjectID(r.Context()).String() + "/tables/" + url.PathEscape(name)
}

// defineTable creates a table from a JSON or YAML definition.
func defineTable(r *http.Request) (*httpx.Response, error) {
	body, err := httpx.GetRequestBody(r, maxBodySize())
	if err != nil {
		return nil, err
	}
	table, aerr := tablemanager.DefineTable(r.Context(), body)
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   tableLocation(r, table.Name),
		Response:   tablemanager.Describe(table),
	}, nil
}

func listTables(r *http.Request) (*httpx.Response, error) {
	tables, err := tablemanager.ListTables(r.Context())
	if err != nil {
		return nil, err
	}
	rsp := make([]*tablemanager.TableDescriptor, 0, len(tables))
	for _, t := range tables {
		rsp = append(rsp, tablemanager.Describe(t))
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: rsp}, nil
}

func getTable(r *http.Request) (*httpx.Response, error) {
	table, err := tablemanager.ResolveTable(r.Context(), tableName(r))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: tablemanager.Describe(table)}, nil
}

func listColumns(r *http.Request) (*httpx.Response, error) {
	columns, err := tablemanager.ListColumns(r.Context(), tableName(r))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: tablemanager.DescribeColumns(columns)}, nil
}

// getDefinition returns the canonical definition the table was created from.
func getDefinition(r *http.Request) (*httpx.Response, error) {
	definition, err := tablemanager.GetDefinition(r.Context(), tableName(r))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: jsoniter.RawMessage(definition)}, nil
}

func dropTable(r *http.Request) (*httpx.Response, error) {
	if err := tablemanager.DropTable(r.Context(), tableName(r)); err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusNoContent}, nil
}

func dropProject(r *http.Request) (*httpx.Response, error) {
	if err := tablemanager.DropProject(r.Context()); err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusNoContent}, nil
}
