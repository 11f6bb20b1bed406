// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/quickly-survey/auth"
	"github.com/danielhkuo/quickly-survey/cliparse"
	"github.com/danielhkuo/quickly-survey/compiler"
	"github.com/danielhkuo/quickly-survey/db"
	"github.com/danielhkuo/quickly-survey/handlers"
	"github.com/danielhkuo/quickly-survey/middleware"
	"github.com/danielhkuo/quickly-survey/registry"
)

func NewRouter(conn *db.Conn, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// One compiler per process, so per-subunit locking covers every route
	comp := compiler.New(conn, registry.NewStore(conn), compiler.Options{
		CleanupFailedMappings: cfg.CleanupFailedMappings,
	})

	// Initialize handlers
	subunitHandler := handlers.NewSubunitHandler(conn, comp)
	catalogHandler := handlers.NewCatalogHandler(conn)
	submissionHandler := handlers.NewSubmissionHandler(conn, cfg)

	authz := auth.NewAuthorizer(conn)
	authenticate := middleware.Authenticate(cfg.JWTSecret)
	protect := func(permission string, h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(authenticate(middleware.RequirePermission(authz, permission)(h)))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Subunit registration and compilation
	mux.HandleFunc("POST /projects/{id}/subunits", protect(auth.PermManageSubunit, subunitHandler.Register))
	mux.HandleFunc("POST /subunits/{id}/compile", protect(auth.PermManageSubunit, subunitHandler.Compile))
	mux.HandleFunc("GET /subunits/{id}", protect(auth.PermReadSurvey, subunitHandler.Get))
	mux.HandleFunc("GET /subunits/{id}/mappings", protect(auth.PermReadSurvey, subunitHandler.Mappings))

	// Question catalog
	mux.HandleFunc("POST /subunits/{id}/catalog/build", protect(auth.PermManageSubunit, catalogHandler.Build))
	mux.HandleFunc("GET /subunits/{id}/catalog", protect(auth.PermReadSurvey, catalogHandler.Get))

	// Submissions
	mux.HandleFunc("POST /subunits/{id}/submissions", protect(auth.PermCreateSurvey, submissionHandler.Submit))
	mux.HandleFunc("GET /subunits/{id}/submissions", protect(auth.PermReadSurvey, submissionHandler.List))
	mux.HandleFunc("GET /submissions/{surveyID}", protect(auth.PermReadSurvey, submissionHandler.Get))
	mux.HandleFunc("POST /submissions/{surveyID}/review", protect(auth.PermUpdateSurvey, submissionHandler.Review))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("quickly-survey API v1"))
	})

	return mux
}
