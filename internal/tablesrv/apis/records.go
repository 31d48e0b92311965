package apis

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tansive/tablebase/internal/common/httpx"
	"github.com/tansive/tablebase/internal/tablesrv/records"
)

func listRecords(r *http.Request) (*httpx.Response, error) {
	q := r.URL.Query()
	page, err := records.ParsePage(q.Get("limit"), q.Get("offset"))
	if err != nil {
		return nil, err
	}
	rows, err := records.List(r.Context(), tableName(r), page)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: rows}, nil
}

func getRecord(r *http.Request) (*httpx.Response, error) {
	rec, err := records.Get(r.Context(), tableName(r), chi.URLParam(r, "recordID"))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: rec}, nil
}

func insertRecord(r *http.Request) (*httpx.Response, error) {
	body, err := httpx.GetRequestBody(r, maxBodySize())
	if err != nil {
		return nil, err
	}
	rec, aerr := records.Insert(r.Context(), tableName(r), body)
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{StatusCode: http.StatusCreated, Response: rec}, nil
}

func updateRecord(r *http.Request) (*httpx.Response, error) {
	body, err := httpx.GetRequestBody(r, maxBodySize())
	if err != nil {
		return nil, err
	}
	rec, aerr := records.Update(r.Context(), tableName(r), chi.URLParam(r, "recordID"), body)
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: rec}, nil
}

func deleteRecord(r *http.Request) (*httpx.Response, error) {
	if err := records.Delete(r.Context(), tableName(r), chi.URLParam(r, "recordID")); err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusNoContent}, nil
}
