// Package httpx adapts request handlers that return (*Response, error) to net/http and
// renders application errors as JSON error bodies.
package httpx

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/h2non/filetype"
	"github.com/rs/zerolog/log"
	"sigs.k8s.io/yaml"
)

// DefaultMaxBodySize bounds request bodies when the caller passes no limit.
const DefaultMaxBodySize int64 = 1 << 20

// GetRequestBody reads the request body and returns it as JSON. YAML bodies, identified
// by their content type, are converted. Bodies larger than maxBytes and binary files
// are rejected.
func GetRequestBody(r *http.Request, maxBytes int64) ([]byte, error) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
		return nil, ErrReqMethodNotSupported()
	}
	if r.Body == nil || r.Body == http.NoBody {
		log.Ctx(r.Context()).Info().Msg("empty request body")
		return nil, ErrUnableToParseReqData()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrRequestTooLarge(maxBytes)
		}
		return nil, ErrUnableToReadRequest()
	}
	if kind, _ := filetype.Match(body); kind != filetype.Unknown {
		return nil, ErrUnsupportedMediaType(kind.MIME.Value)
	}
	if isYAML(r.Header.Get("Content-Type")) {
		body, err = yaml.YAMLToJSON(body)
		if err != nil {
			return nil, ErrInvalidRequest("unable to parse yaml request: " + err.Error())
		}
	}
	return body, nil
}

func isYAML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mt {
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return true
	}
	return false
}

// Response is what a RequestHandler returns on success. Response is marshaled as JSON
// unless ContentType says otherwise.
type Response struct {
	StatusCode  int
	Location    string
	Response    any
	ContentType string
}

type RequestHandler func(r *http.Request) (*Response, error)

// WrapHttpRsp turns a RequestHandler into an http.HandlerFunc.
func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			SendError(w, err)
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		if rsp.StatusCode == http.StatusNoContent {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		var location []string
		if rsp.Location != "" {
			location = append(location, rsp.Location)
		}
		switch rsp.ContentType {
		case "", "application/json":
			SendJsonRsp(r.Context(), w, rsp.StatusCode, rsp.Response, location...)
		case "text/plain":
			s, _ := rsp.Response.(string)
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(rsp.StatusCode)
			w.Write([]byte(s))
		default:
			ErrApplicationError("unsupported response type").Send(w)
		}
	}
}
