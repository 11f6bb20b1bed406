// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/danielhkuo/quickly-survey/db"
	"github.com/danielhkuo/quickly-survey/models"
	"github.com/danielhkuo/quickly-survey/schema"
)

// Fixed columns of every section table, ahead of the field columns
var baseColumns = []db.ColumnDef{
	{Name: "id", Kind: db.KindSerial},
	{Name: "submission_id", Kind: db.KindRef, NotNull: true},
	{Name: "deleted_at", Kind: db.KindTimestamp},
}

// Target identifies the subunit being compiled and the acronyms its table names use
type Target struct {
	SubunitID      string
	ProjectAcronym string
	SubunitAcronym string
}

type Options struct {
	// CleanupFailedMappings soft-deletes the mapping rows written by a failed
	// Register call. By default they are kept.
	CleanupFailedMappings bool
}

// HomeMapStore receives the display labels collected during compilation
type HomeMapStore interface {
	UpdateHomeMaps(ctx context.Context, subunitID string, viewMap, filterMap map[string]string) error
}

// Result describes one Register call
type Result struct {
	State         State
	Tables        []string
	Mappings      []models.TableMapping
	ViewHomeMap   map[string]string
	FilterHomeMap map[string]string
}

// Compiler turns a subunit schema into physical tables and mapping rows
type Compiler struct {
	conn     *db.Conn
	mappings *MappingStore
	homeMaps HomeMapStore
	opts     Options
	locks    *keyedMutex
}

func New(conn *db.Conn, homeMaps HomeMapStore, opts Options) *Compiler {
	return &Compiler{
		conn:     conn,
		mappings: NewMappingStore(conn),
		homeMaps: homeMaps,
		opts:     opts,
		locks:    newKeyedMutex(),
	}
}

// run carries the state of one Register call
type run struct {
	target   Target
	state    State
	created  []string
	mappings []models.TableMapping
	viewMap  map[string]string
	filtMap  map[string]string
}

// Register creates one table per section, the mapping rows linking them, and
// the subunit's submission ledger. If anything fails, the tables created by
// this call are dropped in reverse order and the original error is returned.
func (c *Compiler) Register(ctx context.Context, target Target, doc models.SchemaDocument) (*Result, error) {
	unlock := c.locks.Lock(target.SubunitID)
	defer unlock()

	start := time.Now()
	r := &run{
		target:  target,
		state:   Idle,
		viewMap: make(map[string]string),
		filtMap: make(map[string]string),
	}

	err := c.register(ctx, r, doc)
	if err != nil {
		c.rollback(ctx, r, err)
		return r.result(), classify(err)
	}

	r.state = Committed
	slog.Info("schema compiled",
		"subunit_id", target.SubunitID,
		"tables", len(r.created),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return r.result(), nil
}

func (c *Compiler) register(ctx context.Context, r *run, doc models.SchemaDocument) error {
	r.state = Validating
	if err := validateTarget(r.target); err != nil {
		return err
	}
	if err := checkIdentifiers(doc); err != nil {
		return err
	}
	if err := c.supersedeStale(ctx, r.target.SubunitID); err != nil {
		return err
	}

	r.state = Creating
	for _, section := range doc.Data {
		if err := c.compileSection(ctx, r, section, nil); err != nil {
			return err
		}
	}

	r.state = Linking
	if err := c.ensureLedger(ctx, r); err != nil {
		return err
	}
	if c.homeMaps != nil {
		if err := c.homeMaps.UpdateHomeMaps(ctx, r.target.SubunitID, r.viewMap, r.filtMap); err != nil {
			return &CompileError{Err: fmt.Errorf("failed to apply home maps: %w", err)}
		}
	}
	return nil
}

func validateTarget(t Target) error {
	switch {
	case t.SubunitID == "":
		return &CompileError{Err: errors.New("subunit id is required")}
	case t.ProjectAcronym == "":
		return &CompileError{Err: errors.New("project acronym is required")}
	case t.SubunitAcronym == "":
		return &CompileError{Err: errors.New("subunit acronym is required")}
	}
	return nil
}

// checkIdentifiers rejects a schema whose section acronyms and field ids are
// not unique across the whole subunit. Both become catalog question ids, and
// sqlite compares table and column names without case.
func checkIdentifiers(doc models.SchemaDocument) error {
	used := make(map[string]string)
	for _, col := range baseColumns {
		used[strings.ToLower(col.Name)] = "a reserved column"
	}

	var walk func(section models.SchemaNode) error
	walk = func(section models.SchemaNode) error {
		if section.Acronym == "" {
			return invalid(section.Title, "section has no acronym")
		}
		key := strings.ToLower(section.Acronym)
		if prev, ok := used[key]; ok {
			return invalid(section.Acronym, "section acronym %q is already used by %s", section.Acronym, prev)
		}
		used[key] = "section " + section.Acronym

		for _, child := range section.Children {
			if child.IsSection() {
				if err := walk(child); err != nil {
					return err
				}
				continue
			}
			if child.ID == "" {
				return invalid(section.Acronym, "%s field has no id", child.Type)
			}
			key := strings.ToLower(child.ID)
			if prev, ok := used[key]; ok {
				return invalid(section.Acronym, "field id %q is already used by %s", child.ID, prev)
			}
			used[key] = "field " + child.ID + " in section " + section.Acronym
		}
		return nil
	}

	for _, section := range doc.Data {
		if err := walk(section); err != nil {
			return err
		}
	}
	return nil
}

// compileSection checks the name, writes the mapping, recurses into nested
// sections, then creates this section's table and patches its field list
func (c *Compiler) compileSection(ctx context.Context, r *run, section models.SchemaNode, parent *models.TableMapping) error {
	var (
		tableName string
		sequence  []string
		parentID  *string
	)
	if parent == nil {
		tableName = schema.RootTableName(r.target.ProjectAcronym, r.target.SubunitAcronym, section.Acronym)
		sequence = []string{section.Acronym}
	} else {
		tableName = schema.ChildTableName(parent.TableName, section.Acronym)
		sequence = append(append([]string{}, parent.AcronymSequence...), section.Acronym)
		parentID = &parent.ID
	}

	if limit := c.conn.MaxIdentifierLength(); limit > 0 && len(tableName) > limit {
		return invalid(section.Acronym, "table name %s is longer than %d characters", tableName, limit)
	}

	exists, err := c.conn.TableExists(ctx, tableName)
	if err != nil {
		return &CompileError{Section: section.Acronym, Err: err}
	}
	if exists {
		return &TableExistsError{Table: tableName}
	}

	mapping, err := c.mappings.Insert(ctx, models.TableMapping{
		SubunitID:       r.target.SubunitID,
		SectionName:     section.Title,
		SectionAcronym:  section.Acronym,
		TableName:       tableName,
		ParentID:        parentID,
		AcronymSequence: sequence,
	}, len(r.mappings))
	if err != nil {
		return &CompileError{Section: section.Acronym, Err: err}
	}
	slot := len(r.mappings)
	r.mappings = append(r.mappings, mapping)

	def := db.TableDef{Name: tableName, Columns: append([]db.ColumnDef{}, baseColumns...)}

	var fields []string
	for _, child := range section.Children {
		if child.IsSection() {
			if err := c.compileSection(ctx, r, child, &mapping); err != nil {
				return err
			}
			continue
		}

		def.Columns = append(def.Columns, db.ColumnDef{
			Name: child.ID,
			Kind: schema.FamilyOf(child.Type).ColumnKind(),
		})
		fields = append(fields, child.ID)

		if child.ViewHome {
			r.viewMap[child.ID] = homeLabel(child)
		}
		if child.FilterHome {
			r.filtMap[child.ID] = homeLabel(child)
		}
	}

	if err := c.conn.CreateTable(ctx, def); err != nil {
		return &CompileError{Section: section.Acronym, Err: err}
	}
	r.created = append(r.created, tableName)

	if err := c.mappings.SetFields(ctx, mapping.ID, fields); err != nil {
		return &CompileError{Section: section.Acronym, Err: err}
	}
	if fields == nil {
		fields = []string{}
	}
	r.mappings[slot].Fields = fields

	slog.Debug("section compiled", "table", tableName, "fields", len(fields))
	return nil
}

// homeLabel falls back to the field label, then the field id
func homeLabel(node models.SchemaNode) string {
	if node.HomeLabel != "" {
		return node.HomeLabel
	}
	if label, ok := node.Properties["label"].(string); ok && label != "" {
		return label
	}
	return node.ID
}

// ensureLedger creates the per-subunit submission ledger if it is absent
func (c *Compiler) ensureLedger(ctx context.Context, r *run) error {
	name := schema.LedgerTableName(r.target.ProjectAcronym, r.target.SubunitAcronym)

	exists, err := c.conn.TableExists(ctx, name)
	if err != nil {
		return &CompileError{Err: err}
	}
	if exists {
		return nil
	}

	if err := c.conn.CreateTable(ctx, LedgerTable(name)); err != nil {
		return &CompileError{Err: err}
	}
	r.created = append(r.created, name)
	return nil
}

// LedgerTable describes a subunit's submission ledger
func LedgerTable(name string) db.TableDef {
	return db.TableDef{
		Name: name,
		Columns: []db.ColumnDef{
			{Name: "id", Kind: db.KindSerial},
			{Name: "subunit_id", Kind: db.KindRef, NotNull: true},
			{Name: "submission_id", Kind: db.KindRef, NotNull: true},
			{Name: "review_status", Kind: db.KindLongText},
			{Name: "submitted_json", Kind: db.KindStructured},
			{Name: "created_at", Kind: db.KindTimestamp, NotNull: true},
			{Name: "updated_at", Kind: db.KindTimestamp, NotNull: true},
			{Name: "deleted_at", Kind: db.KindTimestamp},
		},
	}
}

// rollback drops this call's tables newest first. Drop failures are logged;
// the caller still gets the original error.
func (c *Compiler) rollback(ctx context.Context, r *run, cause error) {
	r.state = RollingBack
	slog.Warn("schema compile failed, rolling back",
		"subunit_id", r.target.SubunitID,
		"tables", len(r.created),
		"error", cause,
	)

	// Compensation must run even if the request context is done
	ctx = context.WithoutCancel(ctx)
	for i := len(r.created) - 1; i >= 0; i-- {
		if err := c.conn.DropTable(ctx, r.created[i]); err != nil {
			slog.Error("failed to drop table during rollback", "table", r.created[i], "error", err)
		}
	}
	r.created = nil

	if c.opts.CleanupFailedMappings {
		for i := len(r.mappings) - 1; i >= 0; i-- {
			if err := c.mappings.markDeleted(ctx, []string{r.mappings[i].ID}, time.Now().UTC()); err != nil {
				slog.Error("failed to soft-delete mapping during rollback", "mapping_id", r.mappings[i].ID, "error", err)
			}
		}
	}

	r.state = Failed
}

// supersedeStale soft-deletes live mappings whose tables no longer exist,
// i.e. rows kept from an earlier failed compilation of this subunit
func (c *Compiler) supersedeStale(ctx context.Context, subunitID string) error {
	tree, err := c.mappings.Tree(ctx, subunitID, false)
	if err != nil {
		return &CompileError{Err: err}
	}

	var stale []string
	for _, m := range tree.Nodes {
		exists, err := c.conn.TableExists(ctx, m.TableName)
		if err != nil {
			return &CompileError{Err: err}
		}
		if !exists {
			stale = append(stale, m.ID)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	slog.Info("superseding mappings from a failed compile", "subunit_id", subunitID, "count", len(stale))
	if err := c.mappings.markDeleted(ctx, stale, time.Now().UTC()); err != nil {
		return &CompileError{Err: err}
	}
	return nil
}

// classify leaves typed errors as they are and wraps anything else
func classify(err error) error {
	var exists *TableExistsError
	var compile *CompileError
	if errors.As(err, &exists) || errors.As(err, &compile) {
		return err
	}
	return &CompileError{Err: err}
}

func (r *run) result() *Result {
	return &Result{
		State:         r.state,
		Tables:        append([]string{}, r.created...),
		Mappings:      r.mappings,
		ViewHomeMap:   r.viewMap,
		FilterHomeMap: r.filtMap,
	}
}

// Mappings loads the live mapping tree of a subunit
func (c *Compiler) Mappings(ctx context.Context, subunitID string) (*MappingTree, error) {
	return c.mappings.Tree(ctx, subunitID, false)
}

// SoftDeleteMapping marks a mapping and its descendants deleted
func (c *Compiler) SoftDeleteMapping(ctx context.Context, id string) error {
	return c.mappings.SoftDelete(ctx, id)
}

// RestoreMapping undoes SoftDeleteMapping
func (c *Compiler) RestoreMapping(ctx context.Context, id string) error {
	return c.mappings.Restore(ctx, id)
}
