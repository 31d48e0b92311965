// Package server assembles the HTTP router of the table service.
package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tansive/tablebase/internal/common/httpx"
	commonmiddleware "github.com/tansive/tablebase/internal/common/middleware"
	"github.com/tansive/tablebase/internal/tablesrv/apis"
	"github.com/tansive/tablebase/internal/tablesrv/config"
	"github.com/tansive/tablebase/internal/tablesrv/db"
	"github.com/tansive/tablebase/internal/tablesrv/tblcommon"
)

type TableServer struct {
	Router *chi.Mux
}

func CreateNewServer() (*TableServer, error) {
	if config.Config() == nil {
		return nil, fmt.Errorf("configuration is not loaded")
	}
	return &TableServer{Router: chi.NewRouter()}, nil
}

func (s *TableServer) MountHandlers() {
	cfg := config.Config()
	s.Router.Use(commonmiddleware.RequestLogger)
	s.Router.Use(commonmiddleware.PanicHandler)
	s.Router.Use(commonmiddleware.SetTimeout(cfg.GetRequestTimeout()))
	if cfg.HandleCORS {
		s.Router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
			ExposedHeaders:   []string{"Location"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	s.Router.Use(db.LoadScopedDBMiddleware)

	apis.Router(s.Router)
	s.Router.Get("/version", s.getVersion)
	s.Router.Get("/ready", s.getReadiness)

	if zerolog.GlobalLevel() <= zerolog.TraceLevel {
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			log.Trace().Str("method", method).Str("route", route).Msg("route")
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			log.Error().Err(err).Msg("unable to walk routes")
		}
	}
}

type GetVersionRsp struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}

func (s *TableServer) getVersion(w http.ResponseWriter, r *http.Request) {
	rsp := &GetVersionRsp{
		ServerVersion: "Tablebase Table Server: " + tblcommon.ServerVersion,
		ApiVersion:    tblcommon.ApiVersion,
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}

// getReadiness reports ready once the database answers a ping.
func (s *TableServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := db.Ping(ctx); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("database ping failed during readiness check")
		httpx.SendJsonRsp(ctx, w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  "database connection failed",
		})
		return
	}
	httpx.SendJsonRsp(ctx, w, http.StatusOK, map[string]string{"status": "ready"})
}
