// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Quickly Survey API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(conn, cfg)

# Endpoints

Health:

	GET /health

Subunits (requires "manage subunit" to write, "read survey" to read):

	POST /projects/{id}/subunits      - Register and compile a subunit
	POST /subunits/{id}/compile       - Compile again after a failure
	GET  /subunits/{id}               - Subunit with home maps
	GET  /subunits/{id}/mappings      - Live table mappings
	POST /subunits/{id}/catalog/build - Rebuild the question catalog
	GET  /subunits/{id}/catalog       - Question catalog

Submissions:

	POST /subunits/{id}/submissions     - Submit answers ("create survey")
	GET  /subunits/{id}/submissions     - List, newest first ("read survey")
	GET  /submissions/{surveyID}        - Submission with answers ("read survey")
	POST /submissions/{surveyID}/review - Review decision ("update survey")

# Authentication

Every route except health and root takes an Authorization: Bearer token
signed with JWT_SECRET. The token's role is checked against the seeded
permission catalog before the handler runs.
*/
package router
