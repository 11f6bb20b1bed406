// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (duration_ms).

# Identity and Permissions

Authenticate verifies the Authorization: Bearer token (HS256) and stores
the actor in the request context. RequirePermission then checks the actor's
role against the seeded role_permission table:

	guard := middleware.Authenticate(cfg.JWTSecret)
	mux.HandleFunc("POST /subunits/{id}/submissions",
		guard(middleware.RequirePermission(authz, auth.PermCreateSurvey)(h.Submit)))

Missing or invalid tokens get 401, missing permissions 403.

# CORS Middleware

Enable cross-origin requests for frontend access:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

Allows methods GET, POST, PUT, DELETE, OPTIONS with headers
Content-Type and Authorization.

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")
	middleware.ErrorDetails(w, http.StatusUnprocessableEntity, "Validation failed", details)

Parse and validate request bodies (validate struct tags):

	var req models.ReviewRequest
	if !middleware.BindJSON(w, r, &req) {
		return
	}

# Client IP Extraction

Get the original client IP (handles X-Forwarded-For, X-Real-IP):

	ip := middleware.GetClientIP(r)

Submissions store only a salted hash of it.
*/
package middleware
