// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package compiler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/quickly-survey/auth"
	"github.com/danielhkuo/quickly-survey/db"
	"github.com/danielhkuo/quickly-survey/models"
)

var ErrMappingNotFound = errors.New("mapping not found")

// MappingStore persists TableMapping rows
type MappingStore struct {
	conn *db.Conn
}

func NewMappingStore(conn *db.Conn) *MappingStore {
	return &MappingStore{conn: conn}
}

// Insert writes a mapping with an empty field list and returns it with its id
func (s *MappingStore) Insert(ctx context.Context, m models.TableMapping, position int) (models.TableMapping, error) {
	id, err := auth.GenerateID(16)
	if err != nil {
		return models.TableMapping{}, err
	}

	seq, err := json.Marshal(m.AcronymSequence)
	if err != nil {
		return models.TableMapping{}, fmt.Errorf("failed to encode acronym sequence: %w", err)
	}

	now := time.Now().UTC()
	m.ID = id
	m.Fields = []string{}
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err = s.conn.ExecContext(ctx, s.conn.Rebind(`
		INSERT INTO subunit_table_mapping (id, subunit_id, section_name, section_acronym,
			table_name, parent_id, fields, acronym_sequence, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`), m.ID, m.SubunitID, m.SectionName, m.SectionAcronym, m.TableName, m.ParentID,
		"[]", string(seq), position, now, now)
	if err != nil {
		return models.TableMapping{}, fmt.Errorf("failed to insert mapping for %s: %w", m.TableName, err)
	}

	return m, nil
}

// SetFields records the column names of a mapping's table
func (s *MappingStore) SetFields(ctx context.Context, id string, fields []string) error {
	if fields == nil {
		fields = []string{}
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}

	res, err := s.conn.ExecContext(ctx, s.conn.Rebind(`
		UPDATE subunit_table_mapping SET fields = $1, updated_at = $2 WHERE id = $3
	`), string(encoded), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update mapping fields: %w", err)
	}
	return requireRow(res)
}

// SoftDelete marks a mapping and its live descendants as deleted
func (s *MappingStore) SoftDelete(ctx context.Context, id string) error {
	subunitID, err := s.subunitOf(ctx, id)
	if err != nil {
		return err
	}
	tree, err := s.Tree(ctx, subunitID, true)
	if err != nil {
		return err
	}

	ids := append([]string{id}, tree.Descendants(id)...)
	return s.markDeleted(ctx, ids, time.Now().UTC())
}

// Restore clears the deleted marker of a mapping and of the descendants
// deleted together with it. The parent must be live.
func (s *MappingStore) Restore(ctx context.Context, id string) error {
	subunitID, err := s.subunitOf(ctx, id)
	if err != nil {
		return err
	}
	tree, err := s.Tree(ctx, subunitID, true)
	if err != nil {
		return err
	}

	node, _ := tree.Get(id)
	if node.DeletedAt == nil {
		return nil
	}
	if node.ParentID != nil {
		if parent, ok := tree.Get(*node.ParentID); ok && parent.DeletedAt != nil {
			return fmt.Errorf("cannot restore %s: parent mapping %s is deleted", node.TableName, parent.TableName)
		}
	}

	ids := []string{id}
	for _, d := range tree.Descendants(id) {
		child, _ := tree.Get(d)
		if child.DeletedAt != nil && child.DeletedAt.Equal(*node.DeletedAt) {
			ids = append(ids, d)
		}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, mid := range ids {
		_, err := tx.ExecContext(ctx, s.conn.Rebind(`
			UPDATE subunit_table_mapping SET deleted_at = NULL, updated_at = $1 WHERE id = $2
		`), now, mid)
		if err != nil {
			return fmt.Errorf("failed to restore mapping: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit restore: %w", err)
	}
	return nil
}

func (s *MappingStore) markDeleted(ctx context.Context, ids []string, at time.Time) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		_, err := tx.ExecContext(ctx, s.conn.Rebind(`
			UPDATE subunit_table_mapping SET deleted_at = $1, updated_at = $2
			WHERE id = $3 AND deleted_at IS NULL
		`), at, at, id)
		if err != nil {
			return fmt.Errorf("failed to soft-delete mapping: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit soft-delete: %w", err)
	}
	return nil
}

func (s *MappingStore) subunitOf(ctx context.Context, id string) (string, error) {
	var subunitID string
	err := s.conn.QueryRowContext(ctx, s.conn.Rebind(`
		SELECT subunit_id FROM subunit_table_mapping WHERE id = $1
	`), id).Scan(&subunitID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrMappingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query mapping: %w", err)
	}
	return subunitID, nil
}

// Tree loads a subunit's mappings as an arena ordered by compile position
func (s *MappingStore) Tree(ctx context.Context, subunitID string, includeDeleted bool) (*MappingTree, error) {
	query := `
		SELECT id, subunit_id, section_name, section_acronym, table_name, parent_id,
			fields, acronym_sequence, deleted_at, created_at, updated_at
		FROM subunit_table_mapping
		WHERE subunit_id = $1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY position, created_at`

	rows, err := s.conn.QueryContext(ctx, s.conn.Rebind(query), subunitID)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer rows.Close()

	var nodes []models.TableMapping
	for rows.Next() {
		var (
			m           models.TableMapping
			parentID    sql.NullString
			fields, seq string
			deletedAt   sql.NullTime
		)
		err := rows.Scan(&m.ID, &m.SubunitID, &m.SectionName, &m.SectionAcronym, &m.TableName,
			&parentID, &fields, &seq, &deletedAt, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		if err := json.Unmarshal([]byte(fields), &m.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode fields of %s: %w", m.TableName, err)
		}
		if err := json.Unmarshal([]byte(seq), &m.AcronymSequence); err != nil {
			return nil, fmt.Errorf("failed to decode acronym sequence of %s: %w", m.TableName, err)
		}
		if parentID.Valid {
			m.ParentID = &parentID.String
		}
		if deletedAt.Valid {
			t := deletedAt.Time
			m.DeletedAt = &t
		}
		nodes = append(nodes, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return NewMappingTree(nodes), nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrMappingNotFound
	}
	return nil
}

// MappingTree holds mappings in one slice; parents and children are
// referenced by id through the index.
type MappingTree struct {
	Nodes []models.TableMapping

	index    map[string]int
	children map[string][]int
}

func NewMappingTree(nodes []models.TableMapping) *MappingTree {
	t := &MappingTree{
		Nodes:    nodes,
		index:    make(map[string]int, len(nodes)),
		children: make(map[string][]int),
	}
	for i, n := range nodes {
		t.index[n.ID] = i
	}
	for i, n := range nodes {
		if n.ParentID != nil {
			if _, ok := t.index[*n.ParentID]; ok {
				t.children[*n.ParentID] = append(t.children[*n.ParentID], i)
			}
		}
	}
	return t
}

// Get returns the mapping with this id
func (t *MappingTree) Get(id string) (models.TableMapping, bool) {
	i, ok := t.index[id]
	if !ok {
		return models.TableMapping{}, false
	}
	return t.Nodes[i], true
}

// ByTable returns the mapping of a physical table
func (t *MappingTree) ByTable(name string) (models.TableMapping, bool) {
	for _, n := range t.Nodes {
		if n.TableName == name {
			return n, true
		}
	}
	return models.TableMapping{}, false
}

// Roots returns mappings without a parent in this tree
func (t *MappingTree) Roots() []models.TableMapping {
	var out []models.TableMapping
	for _, n := range t.Nodes {
		if n.ParentID == nil {
			out = append(out, n)
			continue
		}
		if _, ok := t.index[*n.ParentID]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// Children returns the direct children of a mapping
func (t *MappingTree) Children(id string) []models.TableMapping {
	idx := t.children[id]
	out := make([]models.TableMapping, len(idx))
	for i, n := range idx {
		out[i] = t.Nodes[n]
	}
	return out
}

// Descendants returns the ids below a mapping, depth first
func (t *MappingTree) Descendants(id string) []string {
	var out []string
	var visit func(string)
	visit = func(cur string) {
		for _, i := range t.children[cur] {
			child := t.Nodes[i].ID
			out = append(out, child)
			visit(child)
		}
	}
	visit(id)
	return out
}
