// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/quickly-survey/db"
	"github.com/danielhkuo/quickly-survey/models"
	"github.com/danielhkuo/quickly-survey/registry"
	"github.com/danielhkuo/quickly-survey/schema"
	"github.com/danielhkuo/quickly-survey/testutil"
)

const flatSchema = `{"data": [
	{"type": "SECTION", "title": "One", "acronym": "A", "children": [{"id": "f1", "type": "TEXT"}]},
	{"type": "SECTION", "title": "Two", "acronym": "B", "children": [{"id": "f2", "type": "DATE"}]},
	{"type": "SECTION", "title": "Three", "acronym": "X", "children": [{"id": "f3", "type": "FILE"}]}
]}`

type fixture struct {
	conn      *db.Conn
	store     *registry.Store
	subunitID string
	target    Target
}

func setup(t *testing.T, schemaJSON string) fixture {
	t.Helper()

	conn := testutil.SetupTestDB(t)
	projectID := testutil.CreateTestProject(t, conn, "PRJ")
	subunitID := testutil.CreateTestSubunit(t, conn, projectID, "HH", schemaJSON)

	return fixture{
		conn:      conn,
		store:     registry.NewStore(conn),
		subunitID: subunitID,
		target:    Target{SubunitID: subunitID, ProjectAcronym: "PRJ", SubunitAcronym: "HH"},
	}
}

func parse(t *testing.T, raw string) models.SchemaDocument {
	t.Helper()
	doc, err := schema.Parse([]byte(raw))
	require.NoError(t, err)
	return doc
}

func TestRegisterCreatesTablesAndMappings(t *testing.T) {
	f := setup(t, testutil.SampleSchema)
	ctx := context.Background()
	c := New(f.conn, f.store, Options{})

	res, err := c.Register(ctx, f.target, parse(t, testutil.SampleSchema))
	require.NoError(t, err)
	assert.Equal(t, Committed, res.State)

	// Nested sections are created before their parent
	assert.Equal(t, []string{"PRJ_HH_A", "PRJ_HH_B_C", "PRJ_HH_B", "PRJ_HH_SYSGEN_survey_submissions"}, res.Tables)
	for _, table := range res.Tables {
		assert.True(t, testutil.TableExists(t, f.conn, table), table)
	}

	tree, err := c.Mappings(ctx, f.subunitID)
	require.NoError(t, err)
	require.Len(t, tree.Nodes, 3)

	a, ok := tree.ByTable("PRJ_HH_A")
	require.True(t, ok)
	assert.Nil(t, a.ParentID)
	assert.Equal(t, []string{"A"}, a.AcronymSequence)
	assert.Equal(t, []string{"q_name"}, a.Fields)

	b, ok := tree.ByTable("PRJ_HH_B")
	require.True(t, ok)
	assert.Equal(t, []string{"B"}, b.AcronymSequence)
	assert.Equal(t, []string{"q_consent"}, b.Fields)

	bc, ok := tree.ByTable("PRJ_HH_B_C")
	require.True(t, ok)
	require.NotNil(t, bc.ParentID)
	assert.Equal(t, b.ID, *bc.ParentID)
	assert.Equal(t, []string{"B", "C"}, bc.AcronymSequence)
	assert.Equal(t, []string{"q_age"}, bc.Fields)

	assert.Len(t, tree.Roots(), 2)
	assert.Equal(t, []models.TableMapping{bc}, tree.Children(b.ID))

	for _, m := range tree.Nodes {
		assert.Equal(t, m.TableName, schema.TableNameForPath("PRJ", "HH", m.AcronymSequence))
	}
}

func TestRegisterAppliesHomeMaps(t *testing.T) {
	f := setup(t, testutil.SampleSchema)
	ctx := context.Background()
	c := New(f.conn, f.store, Options{})

	res, err := c.Register(ctx, f.target, parse(t, testutil.SampleSchema))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"q_name": "Respondent"}, res.ViewHomeMap)
	assert.Equal(t, map[string]string{"q_consent": "Consent"}, res.FilterHomeMap)

	sub, err := f.store.GetSubunit(ctx, f.subunitID)
	require.NoError(t, err)
	assert.Equal(t, res.ViewHomeMap, sub.ViewHomeMap)
	assert.Equal(t, res.FilterHomeMap, sub.FilterHomeMap)
}

func TestHomeLabelFallback(t *testing.T) {
	tests := []struct {
		name string
		node models.SchemaNode
		want string
	}{
		{"explicit", models.SchemaNode{ID: "q", HomeLabel: "Home", Properties: map[string]any{"label": "L"}}, "Home"},
		{"label", models.SchemaNode{ID: "q", Properties: map[string]any{"label": "L"}}, "L"},
		{"id", models.SchemaNode{ID: "q"}, "q"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, homeLabel(tt.node))
		})
	}
}

func TestRegisterRollsBackOnCollision(t *testing.T) {
	f := setup(t, flatSchema)
	ctx := context.Background()

	require.NoError(t, f.conn.CreateTable(ctx, db.TableDef{
		Name:    "PRJ_HH_X",
		Columns: []db.ColumnDef{{Name: "id", Kind: db.KindSerial}},
	}))

	c := New(f.conn, f.store, Options{})
	res, err := c.Register(ctx, f.target, parse(t, flatSchema))

	var exists *TableExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, "PRJ_HH_X", exists.Table)
	assert.Equal(t, Failed, res.State)
	assert.Empty(t, res.Tables)

	assert.False(t, testutil.TableExists(t, f.conn, "PRJ_HH_A"))
	assert.False(t, testutil.TableExists(t, f.conn, "PRJ_HH_B"))
	assert.False(t, testutil.TableExists(t, f.conn, "PRJ_HH_SYSGEN_survey_submissions"))
	assert.True(t, testutil.TableExists(t, f.conn, "PRJ_HH_X"), "pre-existing table must survive")

	// Mapping rows are kept by default
	assert.Equal(t, 2, testutil.CountRows(t, f.conn, "subunit_table_mapping"))
}

func TestRegisterCleanupFailedMappings(t *testing.T) {
	f := setup(t, flatSchema)
	ctx := context.Background()

	require.NoError(t, f.conn.CreateTable(ctx, db.TableDef{
		Name:    "PRJ_HH_X",
		Columns: []db.ColumnDef{{Name: "id", Kind: db.KindSerial}},
	}))

	c := New(f.conn, f.store, Options{CleanupFailedMappings: true})
	_, err := c.Register(ctx, f.target, parse(t, flatSchema))
	require.Error(t, err)

	live, err := c.Mappings(ctx, f.subunitID)
	require.NoError(t, err)
	assert.Empty(t, live.Nodes)

	all, err := c.mappings.Tree(ctx, f.subunitID, true)
	require.NoError(t, err)
	require.Len(t, all.Nodes, 2)
	for _, m := range all.Nodes {
		assert.NotNil(t, m.DeletedAt)
	}
}

func TestRecompileFailsWithoutNewTables(t *testing.T) {
	f := setup(t, testutil.SampleSchema)
	ctx := context.Background()
	c := New(f.conn, f.store, Options{})
	doc := parse(t, testutil.SampleSchema)

	_, err := c.Register(ctx, f.target, doc)
	require.NoError(t, err)

	res, err := c.Register(ctx, f.target, doc)
	var exists *TableExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, "PRJ_HH_A", exists.Table)
	assert.Empty(t, res.Tables)

	// The first compilation is untouched
	for _, table := range []string{"PRJ_HH_A", "PRJ_HH_B", "PRJ_HH_B_C", "PRJ_HH_SYSGEN_survey_submissions"} {
		assert.True(t, testutil.TableExists(t, f.conn, table), table)
	}
	tree, err := c.Mappings(ctx, f.subunitID)
	require.NoError(t, err)
	assert.Len(t, tree.Nodes, 3)
}

func TestRetryAfterFailure(t *testing.T) {
	f := setup(t, flatSchema)
	ctx := context.Background()

	require.NoError(t, f.conn.CreateTable(ctx, db.TableDef{
		Name:    "PRJ_HH_X",
		Columns: []db.ColumnDef{{Name: "id", Kind: db.KindSerial}},
	}))

	c := New(f.conn, f.store, Options{})
	_, err := c.Register(ctx, f.target, parse(t, flatSchema))
	require.Error(t, err)

	require.NoError(t, f.conn.DropTable(ctx, "PRJ_HH_X"))

	res, err := c.Register(ctx, f.target, parse(t, flatSchema))
	require.NoError(t, err)
	assert.Equal(t, Committed, res.State)

	live, err := c.Mappings(ctx, f.subunitID)
	require.NoError(t, err)
	assert.Len(t, live.Nodes, 3)

	// The two rows from the failed attempt remain as deleted history
	assert.Equal(t, 5, testutil.CountRows(t, f.conn, "subunit_table_mapping"))
}

func TestIdenticalSchemasGiveSameShape(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	ctx := context.Background()
	projectID := testutil.CreateTestProject(t, conn, "PRJ")
	first := testutil.CreateTestSubunit(t, conn, projectID, "S1", testutil.SampleSchema)
	second := testutil.CreateTestSubunit(t, conn, projectID, "S2", testutil.SampleSchema)

	c := New(conn, registry.NewStore(conn), Options{})
	doc := parse(t, testutil.SampleSchema)

	_, err := c.Register(ctx, Target{SubunitID: first, ProjectAcronym: "PRJ", SubunitAcronym: "S1"}, doc)
	require.NoError(t, err)
	_, err = c.Register(ctx, Target{SubunitID: second, ProjectAcronym: "PRJ", SubunitAcronym: "S2"}, doc)
	require.NoError(t, err)

	shape := func(subunitID string) [][]string {
		tree, err := c.Mappings(ctx, subunitID)
		require.NoError(t, err)
		var out [][]string
		for _, m := range tree.Nodes {
			out = append(out, append(append([]string{}, m.AcronymSequence...), m.Fields...))
		}
		return out
	}
	assert.Equal(t, shape(first), shape(second))
}

func TestRegisterRejectsBadFields(t *testing.T) {
	tests := []struct {
		name   string
		schema string
	}{
		{"missing id", `{"data": [{"type": "SECTION", "title": "A", "acronym": "A", "children": [{"type": "TEXT"}]}]}`},
		{"duplicate id", `{"data": [{"type": "SECTION", "title": "A", "acronym": "A", "children": [
			{"id": "f", "type": "TEXT"}, {"id": "f", "type": "NUMBER"}]}]}`},
		{"reserved column", `{"data": [{"type": "SECTION", "title": "A", "acronym": "A", "children": [
			{"id": "submission_id", "type": "TEXT"}]}]}`},
		{"missing acronym", `{"data": [{"type": "SECTION", "title": "A", "acronym": "", "children": []}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, tt.schema)
			c := New(f.conn, f.store, Options{})

			res, err := c.Register(context.Background(), f.target, parse(t, tt.schema))
			var compileErr *CompileError
			require.ErrorAs(t, err, &compileErr)
			var structureErr *schema.StructureError
			assert.ErrorAs(t, err, &structureErr)
			assert.Equal(t, Failed, res.State)
			assert.False(t, testutil.TableExists(t, f.conn, "PRJ_HH_A"))
		})
	}
}

func TestRegisterRejectsRepeatedIdentifiers(t *testing.T) {
	tests := []struct {
		name   string
		schema string
	}{
		{"field id in two sections", `{"data": [
			{"type": "SECTION", "title": "A", "acronym": "A", "children": [{"id": "q1", "type": "TEXT"}]},
			{"type": "SECTION", "title": "B", "acronym": "B", "children": [{"id": "q1", "type": "TEXT"}]}]}`},
		{"field id equal to a section acronym", `{"data": [
			{"type": "SECTION", "title": "A", "acronym": "A", "children": [{"id": "q1", "type": "TEXT"}]},
			{"type": "SECTION", "title": "B", "acronym": "B", "children": [{"id": "A", "type": "TEXT"}]}]}`},
		{"same acronym under different parents", `{"data": [
			{"type": "SECTION", "title": "A", "acronym": "A", "children": [
				{"type": "SECTION", "title": "Kids", "acronym": "C", "children": [{"id": "q1", "type": "TEXT"}]}]},
			{"type": "SECTION", "title": "B", "acronym": "B", "children": [
				{"type": "SECTION", "title": "Kids", "acronym": "C", "children": [{"id": "q2", "type": "TEXT"}]}]}]}`},
		{"ids differing only in case", `{"data": [
			{"type": "SECTION", "title": "A", "acronym": "A", "children": [{"id": "q1", "type": "TEXT"}, {"id": "Q1", "type": "TEXT"}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, tt.schema)
			ctx := context.Background()
			c := New(f.conn, f.store, Options{})

			res, err := c.Register(ctx, f.target, parse(t, tt.schema))
			var structureErr *schema.StructureError
			require.ErrorAs(t, err, &structureErr)
			var compileErr *CompileError
			assert.ErrorAs(t, err, &compileErr)
			assert.Equal(t, Failed, res.State)

			// Rejected before any table or mapping row is written
			assert.Empty(t, res.Tables)
			assert.False(t, testutil.TableExists(t, f.conn, "PRJ_HH_A"))
			assert.Equal(t, 0, testutil.CountRows(t, f.conn, "subunit_table_mapping"))

			// The subunit stays recoverable with a corrected schema
			res, err = c.Register(ctx, f.target, parse(t, flatSchema))
			require.NoError(t, err)
			assert.Equal(t, Committed, res.State)
		})
	}
}

func TestRegisterRejectsIncompleteTarget(t *testing.T) {
	f := setup(t, flatSchema)
	c := New(f.conn, f.store, Options{})

	target := f.target
	target.ProjectAcronym = ""
	_, err := c.Register(context.Background(), target, parse(t, flatSchema))

	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, 0, testutil.CountRows(t, f.conn, "subunit_table_mapping"))
}

type failingHomeMaps struct{}

func (failingHomeMaps) UpdateHomeMaps(context.Context, string, map[string]string, map[string]string) error {
	return errors.New("boom")
}

func TestLinkingFailureDropsEverything(t *testing.T) {
	f := setup(t, testutil.SampleSchema)
	c := New(f.conn, failingHomeMaps{}, Options{})

	res, err := c.Register(context.Background(), f.target, parse(t, testutil.SampleSchema))
	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, Failed, res.State)

	for _, table := range []string{"PRJ_HH_A", "PRJ_HH_B", "PRJ_HH_B_C", "PRJ_HH_SYSGEN_survey_submissions"} {
		assert.False(t, testutil.TableExists(t, f.conn, table), table)
	}
}

func TestSoftDeleteAndRestoreCascade(t *testing.T) {
	f := setup(t, testutil.SampleSchema)
	ctx := context.Background()
	c := New(f.conn, f.store, Options{})

	_, err := c.Register(ctx, f.target, parse(t, testutil.SampleSchema))
	require.NoError(t, err)

	tree, err := c.Mappings(ctx, f.subunitID)
	require.NoError(t, err)
	b, _ := tree.ByTable("PRJ_HH_B")
	bc, _ := tree.ByTable("PRJ_HH_B_C")

	require.NoError(t, c.SoftDeleteMapping(ctx, b.ID))

	live, err := c.Mappings(ctx, f.subunitID)
	require.NoError(t, err)
	require.Len(t, live.Nodes, 1)
	assert.Equal(t, "PRJ_HH_A", live.Nodes[0].TableName)

	// A child cannot come back while its parent is deleted
	assert.Error(t, c.RestoreMapping(ctx, bc.ID))

	require.NoError(t, c.RestoreMapping(ctx, b.ID))
	live, err = c.Mappings(ctx, f.subunitID)
	require.NoError(t, err)
	assert.Len(t, live.Nodes, 3)

	assert.ErrorIs(t, c.SoftDeleteMapping(ctx, "missing"), ErrMappingNotFound)
}

func TestMappingTreeDescendants(t *testing.T) {
	p := func(s string) *string { return &s }
	tree := NewMappingTree([]models.TableMapping{
		{ID: "a"},
		{ID: "b", ParentID: p("a")},
		{ID: "c", ParentID: p("b")},
		{ID: "d", ParentID: p("a")},
		{ID: "e", ParentID: p("gone")},
	})

	assert.Equal(t, []string{"b", "c", "d"}, tree.Descendants("a"))
	assert.Empty(t, tree.Descendants("c"))
	assert.Len(t, tree.Roots(), 2)

	_, ok := tree.Get("zzz")
	assert.False(t, ok)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "committed", Committed.String())
	assert.Equal(t, "rolling_back", RollingBack.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	k := newKeyedMutex()

	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("same")
			defer unlock()

			n := atomic.AddInt32(&active, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak)
	assert.Empty(t, k.locks, "unused keys are released")
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	k := newKeyedMutex()

	unlockA := k.Lock("a")
	done := make(chan struct{})
	go func() {
		unlock := k.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
	unlockA()
}

func TestRegisterLogsDurationInMilliseconds(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	f := setup(t, flatSchema)
	c := New(f.conn, f.store, Options{})

	_, err := c.Register(context.Background(), f.target, parse(t, flatSchema))
	require.NoError(t, err)

	var entry map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(line, &rec))
		if rec["msg"] == "schema compiled" {
			entry = rec
		}
	}
	require.NotNil(t, entry, "schema compiled log entry")

	duration, ok := entry["duration_ms"].(float64)
	require.True(t, ok, "duration_ms should be a number, got %T", entry["duration_ms"])
	assert.GreaterOrEqual(t, duration, float64(0))
	assert.NotContains(t, entry, "took")
}
