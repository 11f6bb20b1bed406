// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/quickly-survey/auth"
	"github.com/danielhkuo/quickly-survey/cliparse"
	"github.com/danielhkuo/quickly-survey/db"
)

// TestJWTSecret signs the bearer tokens used in handler tests
const TestJWTSecret = "test-jwt-secret"

// SampleSchema has two root sections: A with a required text field, and B
// with a choice field plus a nested section C whose numeric field is only
// shown when consent is "yes".
const SampleSchema = `{"data": [
	{"type": "SECTION", "title": "Section A", "acronym": "A", "children": [
		{"id": "q_name", "type": "TEXT", "properties": {"label": "Name", "valueRequired": true, "maxChar": 20},
		 "viewHome": true, "homeLabel": "Respondent"}
	]},
	{"type": "SECTION", "title": "Section B", "acronym": "B", "children": [
		{"id": "q_consent", "type": "RADIO", "properties": {"label": "Consent"},
		 "options": [{"id": 1, "value": "yes"}, {"id": 2, "value": "no"}],
		 "filterHome": true, "homeLabel": "Consent"},
		{"type": "SECTION", "title": "Section C", "acronym": "C", "children": [
			{"id": "q_age", "type": "NUMBER", "properties": {"label": "Age"},
			 "skipLogic": [{"relation": "and", "flag": false,
				"data": [{"skipLogicQ": "q_consent", "skipLogicVal": "no"}]}]}
		]}
	]}
]}`

// SetupTestDB creates a fresh sqlite database with all migrations applied
func SetupTestDB(t *testing.T) *db.Conn {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := db.Open(context.Background(), "sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         3318,
		DatabaseURL:  "test.db",
		DatabaseType: "sqlite",
		JWTSecret:    TestJWTSecret,
		IPHashSalt:   "test-ip-salt",
	}
}

// SeedTestPermissions loads the embedded permission catalog
func SeedTestPermissions(t *testing.T, conn *db.Conn) {
	t.Helper()

	cfg, err := auth.LoadPermissionConfig()
	if err != nil {
		t.Fatalf("Failed to load permission config: %v", err)
	}
	if err := auth.SeedPermissions(context.Background(), conn, cfg); err != nil {
		t.Fatalf("Failed to seed permissions: %v", err)
	}
}

// BearerToken returns an Authorization header value for the actor
func BearerToken(t *testing.T, actorID, role string) string {
	t.Helper()

	token, err := auth.SignActor(auth.Actor{ID: actorID, Role: role}, TestJWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("Failed to sign test token: %v", err)
	}
	return "Bearer " + token
}

// CreateTestProject inserts a project and returns its ID
func CreateTestProject(t *testing.T, conn *db.Conn, acronym string) string {
	t.Helper()

	projectID, _ := auth.GenerateID(16)
	_, err := conn.Exec(conn.Rebind(`
		INSERT INTO project (id, name, acronym, created_at)
		VALUES ($1, $2, $3, $4)
	`), projectID, "Project "+acronym, acronym, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test project: %v", err)
	}

	return projectID
}

// CreateTestSubunit inserts an active subunit holding schemaJSON and returns its ID.
// Nothing is compiled.
func CreateTestSubunit(t *testing.T, conn *db.Conn, projectID, acronym, schemaJSON string) string {
	t.Helper()

	subunitID, _ := auth.GenerateID(16)
	now := time.Now().UTC()
	_, err := conn.Exec(conn.Rebind(`
		INSERT INTO subunit (id, project_id, name, acronym, active, qnr_schema, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`), subunitID, projectID, "Subunit "+acronym, acronym, true, schemaJSON, now, now)
	if err != nil {
		t.Fatalf("Failed to create test subunit: %v", err)
	}

	return subunitID
}

// CountRows returns the number of rows in a table
func CountRows(t *testing.T, conn *db.Conn, table string) int {
	t.Helper()

	var n int
	if err := conn.QueryRow("SELECT COUNT(*) FROM " + db.QuoteIdent(table)).Scan(&n); err != nil {
		t.Fatalf("Failed to count rows in %s: %v", table, err)
	}
	return n
}

// TableExists reports whether a table is present, failing the test on error
func TableExists(t *testing.T, conn *db.Conn, table string) bool {
	t.Helper()

	exists, err := conn.TableExists(context.Background(), table)
	if err != nil {
		t.Fatalf("Failed to check table %s: %v", table, err)
	}
	return exists
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
