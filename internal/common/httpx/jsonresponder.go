package httpx

import (
	"context"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/tansive/tablebase/internal/common/logtrace"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SendJsonRsp writes msg as a JSON response. Strings and byte slices holding valid JSON
// are written as is. The Location header is set on 201 responses.
func SendJsonRsp(ctx context.Context, w http.ResponseWriter, statusCode int, msg any, location ...string) {
	var body []byte
	switch m := msg.(type) {
	case string:
		if json.Valid([]byte(m)) {
			body = []byte(m)
		}
	case []byte:
		if json.Valid(m) {
			body = m
		}
	default:
		var err error
		body, err = json.Marshal(msg)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("unable to marshal json")
			ErrApplicationError("Id: " + logtrace.RequestIdFromContext(ctx)).Send(w)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if statusCode == http.StatusCreated && len(location) > 0 {
		w.Header().Set("Location", location[0])
	}
	w.WriteHeader(statusCode)
	w.Write(body)
}
