// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/quickly-survey/auth"
	"github.com/danielhkuo/quickly-survey/catalog"
	"github.com/danielhkuo/quickly-survey/db"
	"github.com/danielhkuo/quickly-survey/models"
	"github.com/danielhkuo/quickly-survey/registry"
	"github.com/danielhkuo/quickly-survey/rules"
	"github.com/danielhkuo/quickly-survey/schema"
)

const surveyIDAttempts = 5

type Options struct {
	Draft bool
}

// Router validates submissions and writes them to the section tables, the
// audit trail, and the subunit ledger
type Router struct {
	conn     *db.Conn
	subunits *registry.Store
}

func NewRouter(conn *db.Conn, subunits *registry.Store) *Router {
	return &Router{conn: conn, subunits: subunits}
}

// Submit stores one submission. The submission and ledger rows keep the raw
// payload; answers to hidden or unknown questions are not routed to section
// tables or audited. If any visible answer fails validation, rules.FieldErrors
// is returned and nothing is written. A subunit that is inactive or has no
// catalog yet returns ErrInactive.
func (r *Router) Submit(ctx context.Context, subunitID string, payload, metadata map[string]any, actor string, opts Options) (*models.Submission, error) {
	su, project, err := r.subunits.GetSubunitWithProject(ctx, subunitID)
	if err != nil {
		return nil, err
	}
	if !su.Active {
		return nil, ErrInactive
	}

	cat, err := catalog.Load(ctx, r.conn, subunitID)
	if err != nil {
		return nil, &Error{Err: err}
	}
	if len(cat.Questions) == 0 {
		return nil, fmt.Errorf("%w: catalog not built", ErrInactive)
	}

	visible, fieldErrs := rules.ValidateAnswers(cat, payload)
	if len(fieldErrs) > 0 {
		return nil, fieldErrs
	}

	surveyID, err := r.newSurveyID(ctx, su.Acronym)
	if err != nil {
		return nil, &Error{Err: err}
	}

	id, err := auth.GenerateID(16)
	if err != nil {
		return nil, &Error{SurveyID: surveyID, Err: err}
	}

	now := time.Now().UTC()
	sub := &models.Submission{
		ID:        id,
		SubunitID: subunitID,
		SurveyID:  surveyID,
		Status:    models.StatusSubmitted,
		Data:      snapshot(payload),
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if sub.Metadata == nil {
		sub.Metadata = map[string]any{}
	}
	if actor != "" {
		sub.SubmittedBy = &actor
	}
	if opts.Draft {
		sub.Status = models.StatusDraft
	} else {
		sub.SubmittedAt = &now
	}

	w := &writer{
		conn:     r.conn,
		sub:      sub,
		tables:   make(map[string]map[string]any),
		now:      now,
		project:  project.Acronym,
		subunit:  su.Acronym,
		catalog:  cat,
		answered: visible,
	}
	if err := w.write(ctx); err != nil {
		slog.Error("failed to insert submission", "survey_id", surveyID, "error", err)
		return nil, &Error{SurveyID: surveyID, Err: err}
	}

	slog.Info("submission stored",
		"survey_id", surveyID,
		"subunit_id", subunitID,
		"status", sub.Status,
		"tables", len(w.tables),
	)
	return sub, nil
}

// newSurveyID builds {subunit}_{YYYYMMDDHHMMSS}_{8 hex} and checks it is unused
func (r *Router) newSurveyID(ctx context.Context, subunitAcronym string) (string, error) {
	for attempt := 0; attempt < surveyIDAttempts; attempt++ {
		suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		candidate := fmt.Sprintf("%s_%s_%s", subunitAcronym, time.Now().UTC().Format("20060102150405"), suffix)

		var exists bool
		err := r.conn.QueryRowContext(ctx, r.conn.Rebind(`
			SELECT EXISTS(SELECT 1 FROM form_submission WHERE survey_id = $1)
		`), candidate).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("failed to check survey id: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique survey id after %d attempts", surveyIDAttempts)
}

// writer runs the inserts of one submission inside a transaction
type writer struct {
	conn     *db.Conn
	tx       *sql.Tx
	sub      *models.Submission
	catalog  *catalog.Catalog
	answered map[string]any
	project  string
	subunit  string
	now      time.Time

	// table name -> field -> column value
	tables map[string]map[string]any
}

func (w *writer) write(ctx context.Context) error {
	tx, err := w.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	w.tx = tx

	if err := w.insertSubmission(ctx); err != nil {
		return err
	}

	for _, q := range w.catalog.Active() {
		if q.IsSection() {
			continue
		}
		value, ok := w.answered[q.QuestionID]
		if !ok || value == nil {
			continue
		}

		table := schema.TableNameForPath(w.project, w.subunit, w.catalog.SectionPath(q))
		if err := w.insertRecord(ctx, q, table, value); err != nil {
			return err
		}

		column, err := columnValue(value)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", q.QuestionID, err)
		}
		if w.tables[table] == nil {
			w.tables[table] = make(map[string]any)
		}
		w.tables[table][q.QuestionID] = column
	}

	names := make([]string, 0, len(w.tables))
	for name := range w.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := w.insertRow(ctx, name, w.tables[name]); err != nil {
			return err
		}
	}

	if err := w.insertLedger(ctx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit submission: %w", err)
	}
	return nil
}

func (w *writer) insertSubmission(ctx context.Context) error {
	data, err := json.Marshal(w.sub.Data)
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}
	meta, err := json.Marshal(w.sub.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	_, err = w.tx.ExecContext(ctx, w.conn.Rebind(`
		INSERT INTO form_submission (id, subunit_id, survey_id, status, submitted_data,
			metadata, submitted_by, submitted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`), w.sub.ID, w.sub.SubunitID, w.sub.SurveyID, w.sub.Status, string(data),
		string(meta), w.sub.SubmittedBy, w.sub.SubmittedAt, w.now, w.now)
	if err != nil {
		return fmt.Errorf("failed to insert form submission: %w", err)
	}
	return nil
}

// insertRecord writes the audit row for one answer
func (w *writer) insertRecord(ctx context.Context, q models.Question, table string, value any) error {
	var text, jsonText, file *string

	switch v := value.(type) {
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", q.QuestionID, err)
		}
		s := string(encoded)
		jsonText = &s
	case string:
		if schema.IsFileType(q.Type) {
			file = &v
		} else {
			text = &v
		}
	default:
		if s, ok := rules.Canonical(v); ok {
			text = &s
			break
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", q.QuestionID, err)
		}
		s := string(encoded)
		jsonText = &s
	}

	_, err := w.tx.ExecContext(ctx, w.conn.Rebind(`
		INSERT INTO submission_data (id, submission_id, question_id, table_name, field_name,
			value, json_value, file_value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`), uuid.NewString(), w.sub.ID, q.QuestionID, table, q.QuestionID,
		text, jsonText, file, w.now)
	if err != nil {
		return fmt.Errorf("failed to insert submission data for %s: %w", q.QuestionID, err)
	}
	return nil
}

// insertRow writes one row into a section table
func (w *writer) insertRow(ctx context.Context, table string, fields map[string]any) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	columns := []string{db.QuoteIdent("submission_id")}
	placeholders := []string{"$1"}
	args := []any{w.sub.ID}
	for i, name := range names {
		columns = append(columns, db.QuoteIdent(name))
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		args = append(args, fields[name])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		db.QuoteIdent(table), strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	if _, err := w.tx.ExecContext(ctx, w.conn.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

func (w *writer) insertLedger(ctx context.Context) error {
	raw, err := json.Marshal(w.sub.Data)
	if err != nil {
		return fmt.Errorf("failed to encode ledger snapshot: %w", err)
	}

	table := schema.LedgerTableName(w.project, w.subunit)
	query := fmt.Sprintf(`
		INSERT INTO %s (subunit_id, submission_id, review_status, submitted_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, db.QuoteIdent(table))
	_, err = w.tx.ExecContext(ctx, w.conn.Rebind(query),
		w.sub.SubunitID, w.sub.ID, w.sub.Status, string(raw), w.now, w.now)
	if err != nil {
		return fmt.Errorf("failed to insert into ledger %s: %w", table, err)
	}
	return nil
}

// snapshot copies the raw payload so later changes to the caller's map do not leak in
func snapshot(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	return out
}

// columnValue renders an answer for a section table column.
// Lists and objects are stored as JSON text.
func columnValue(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any, []any:
		encoded, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(encoded), nil
	}
	if s, ok := rules.Canonical(v); ok {
		return s, nil
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}
