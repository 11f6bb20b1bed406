// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/quickly-survey/auth"
	"github.com/danielhkuo/quickly-survey/compiler"
	"github.com/danielhkuo/quickly-survey/db"
	"github.com/danielhkuo/quickly-survey/models"
	"github.com/danielhkuo/quickly-survey/registry"
	"github.com/danielhkuo/quickly-survey/testutil"
)

// newCompiler wires a compiler to the registry the way the router does
func newCompiler(conn *db.Conn) *compiler.Compiler {
	return compiler.New(conn, registry.NewStore(conn), compiler.Options{})
}

// sampleSchema decodes testutil.SampleSchema the way a request body would carry it
func sampleSchema(t *testing.T) map[string]any {
	t.Helper()

	var m map[string]any
	if err := json.Unmarshal([]byte(testutil.SampleSchema), &m); err != nil {
		t.Fatalf("Failed to decode sample schema: %v", err)
	}
	return m
}

// withActor attaches an authenticated actor, as middleware.Authenticate would
func withActor(r *http.Request, id, role string) *http.Request {
	return r.WithContext(auth.WithActor(r.Context(), auth.Actor{ID: id, Role: role}))
}

// registerSample registers SampleSchema as subunit HH of project PRJ through the handler
func registerSample(t *testing.T, conn *db.Conn, comp *compiler.Compiler) (projectID string, resp models.RegisterSubunitResponse) {
	t.Helper()

	projectID = testutil.CreateTestProject(t, conn, "PRJ")
	handler := NewSubunitHandler(conn, comp)

	req := testutil.MakeRequest("POST", "/projects/"+projectID+"/subunits", models.RegisterSubunitRequest{
		Name:    "Household",
		Acronym: "HH",
		Schema:  sampleSchema(t),
	}, nil)
	req.SetPathValue("id", projectID)
	w := httptest.NewRecorder()

	handler.Register(w, withActor(req, "admin-1", "Admin"))

	if w.Code != http.StatusCreated {
		t.Fatalf("Failed to register sample subunit: %d - %s", w.Code, w.Body.String())
	}
	testutil.AssertJSON(t, w, &resp)
	return projectID, resp
}
