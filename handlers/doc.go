// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Quickly Survey API.

# Handler Types

Each handler is a struct built from a *db.Conn and the packages it drives:

  - SubunitHandler: Subunit registration, compilation and table mappings
  - CatalogHandler: Question catalog build and retrieval
  - SubmissionHandler: Submission intake, listing and review

The compiler is shared between handlers so that concurrent compiles of the
same subunit are serialized:

	comp := compiler.New(conn, registry.NewStore(conn), compiler.Options{})
	subunitHandler := handlers.NewSubunitHandler(conn, comp)

# Subunit Lifecycle

	POST /projects/{id}/subunits        → Register (create, compile, build catalog)
	POST /subunits/{id}/compile         → Compile (retry after a failed compile)
	POST /subunits/{id}/catalog/build   → CatalogHandler.Build
	GET  /subunits/{id}/mappings        → Mappings

A subunit only becomes active once its tables exist and its catalog is built.
A compile that collides with existing tables answers 409 and leaves the
failed mapping rows for inspection.

# Submissions

	POST /subunits/{id}/submissions     → Submit (201, or 422 with per-field details)
	GET  /subunits/{id}/submissions     → List (limit, offset)
	GET  /submissions/{surveyID}        → Get
	POST /submissions/{surveyID}/review → Review

Submit adds user_agent, ip_hash and submitted_via to the caller's metadata.
Every route expects an authenticated actor in the request context; see
middleware.Authenticate.
*/
package handlers
