// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package registry

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

var ErrNotFound = errors.New("record not found")

// Store reads and writes project and subunit records
type Store struct {
	conn *db.Conn
}

func NewStore(conn *db.Conn) *Store {
	return &Store{conn: conn}
}

// CreateProject inserts a project and returns it
func (s *Store) CreateProject(ctx context.Context, name, acronym string) (*models.Project, error) {
	id, err := auth.GenerateID(16)
	if err != nil {
		return nil, err
	}

	p := &models.Project{
		ID:        id,
		Name:      name,
		Acronym:   acronym,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.conn.ExecContext(ctx, s.conn.Rebind(`
		INSERT INTO project (id, name, acronym, created_at)
		VALUES ($1, $2, $3, $4)
	`), p.ID, p.Name, p.Acronym, p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}

	return p, nil
}

// GetProject loads a project by id
func (s *Store) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	err := s.conn.QueryRowContext(ctx, s.conn.Rebind(`
		SELECT id, name, acronym, created_at FROM project WHERE id = $1
	`), id).Scan(&p.ID, &p.Name, &p.Acronym, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}
	return &p, nil
}

// NewSubunit holds the fields supplied when registering a subunit
type NewSubunit struct {
	ProjectID      string
	Name           string
	Acronym        string
	Description    string
	Version        string
	HaveQC         bool
	HaveValidation bool
	Schema         []byte
	CreatedBy      *string
}

// CreateSubunit inserts a subunit with its raw schema. The subunit stays
// inactive until its schema compiles.
func (s *Store) CreateSubunit(ctx context.Context, in NewSubunit) (*models.Subunit, error) {
	id, err := auth.GenerateID(16)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = s.conn.ExecContext(ctx, s.conn.Rebind(`
		INSERT INTO subunit (id, project_id, name, acronym, description, active, have_qc,
			have_validation, version, qnr_schema, view_home_map, filter_home_map,
			created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`), id, in.ProjectID, in.Name, in.Acronym, in.Description, false, in.HaveQC,
		in.HaveValidation, in.Version, string(in.Schema), "{}", "{}",
		in.CreatedBy, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert subunit: %w", err)
	}

	return s.GetSubunit(ctx, id)
}

const subunitColumns = `
	id, project_id, name, acronym, COALESCE(description, ''), active, have_qc,
	have_validation, COALESCE(version, ''), qnr_schema, view_home_map,
	filter_home_map, created_by, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSubunit(row scanner) (*models.Subunit, error) {
	var (
		su                          models.Subunit
		rawSchema, viewMap, filtMap string
		createdBy                   sql.NullString
	)
	err := row.Scan(&su.ID, &su.ProjectID, &su.Name, &su.Acronym, &su.Description,
		&su.Active, &su.HaveQC, &su.HaveValidation, &su.Version, &rawSchema,
		&viewMap, &filtMap, &createdBy, &su.CreatedAt, &su.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(rawSchema), &su.Schema); err != nil {
		return nil, fmt.Errorf("failed to decode schema of subunit %s: %w", su.ID, err)
	}
	if err := json.Unmarshal([]byte(viewMap), &su.ViewHomeMap); err != nil {
		return nil, fmt.Errorf("failed to decode view home map: %w", err)
	}
	if err := json.Unmarshal([]byte(filtMap), &su.FilterHomeMap); err != nil {
		return nil, fmt.Errorf("failed to decode filter home map: %w", err)
	}
	if createdBy.Valid {
		su.CreatedBy = &createdBy.String
	}
	return &su, nil
}

// GetSubunit loads a subunit and decodes its schema
func (s *Store) GetSubunit(ctx context.Context, id string) (*models.Subunit, error) {
	row := s.conn.QueryRowContext(ctx, s.conn.Rebind(`SELECT `+subunitColumns+` FROM subunit WHERE id = $1`), id)
	su, err := scanSubunit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query subunit: %w", err)
	}
	return su, nil
}

// GetSubunitWithProject loads a subunit together with its owning project
func (s *Store) GetSubunitWithProject(ctx context.Context, id string) (*models.Subunit, *models.Project, error) {
	su, err := s.GetSubunit(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.GetProject(ctx, su.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return su, p, nil
}

// ListActiveSubunits returns every active subunit, oldest first
func (s *Store) ListActiveSubunits(ctx context.Context) ([]*models.Subunit, error) {
	rows, err := s.conn.QueryContext(ctx, s.conn.Rebind(`
		SELECT `+subunitColumns+` FROM subunit WHERE active = $1 ORDER BY created_at, id
	`), true)
	if err != nil {
		return nil, fmt.Errorf("failed to query subunits: %w", err)
	}
	defer rows.Close()

	var subunits []*models.Subunit
	for rows.Next() {
		su, err := scanSubunit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subunit: %w", err)
		}
		subunits = append(subunits, su)
	}
	return subunits, rows.Err()
}

// UpdateHomeMaps stores the display labels collected while compiling
func (s *Store) UpdateHomeMaps(ctx context.Context, id string, viewMap, filterMap map[string]string) error {
	viewJSON, err := json.Marshal(nonNil(viewMap))
	if err != nil {
		return fmt.Errorf("failed to encode view home map: %w", err)
	}
	filterJSON, err := json.Marshal(nonNil(filterMap))
	if err != nil {
		return fmt.Errorf("failed to encode filter home map: %w", err)
	}

	res, err := s.conn.ExecContext(ctx, s.conn.Rebind(`
		UPDATE subunit SET view_home_map = $1, filter_home_map = $2, updated_at = $3
		WHERE id = $4
	`), string(viewJSON), string(filterJSON), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update home maps: %w", err)
	}
	return requireRow(res)
}

// SetActive marks a subunit as live or retired
func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.conn.ExecContext(ctx, s.conn.Rebind(`
		UPDATE subunit SET active = $1, updated_at = $2 WHERE id = $3
	`), active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update subunit: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
