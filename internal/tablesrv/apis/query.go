package apis

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/tansive/tablebase/internal/common/httpx"
	"github.com/tansive/tablebase/internal/tablesrv/rawquery"
	"github.com/tansive/tablebase/internal/tablesrv/tableschema"
)

// runQuery executes {"query": "..."} in the project of the request.
func runQuery(r *http.Request) (*httpx.Response, error) {
	body, err := httpx.GetRequestBody(r, maxBodySize())
	if err != nil {
		return nil, err
	}
	var req rawquery.Request
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(body, &req); err != nil {
		return nil, httpx.ErrInvalidRequest("unable to parse query request")
	}
	if err := tableschema.V().Struct(&req); err != nil {
		return nil, httpx.ErrInvalidRequest("query is required")
	}
	res, aerr := rawquery.Execute(r.Context(), req.Query)
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: res}, nil
}
