// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/quickly-survey/db"
	"github.com/danielhkuo/quickly-survey/models"
	"github.com/danielhkuo/quickly-survey/schema"
)

const submissionColumns = `
	id, subunit_id, survey_id, status, submitted_data, metadata, submitted_by,
	submitted_at, reviewed_by, reviewed_at, review_notes, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (*models.Submission, error) {
	var (
		s                                    models.Submission
		data, meta                           string
		submittedBy, reviewedBy, reviewNotes sql.NullString
		submittedAt, reviewedAt              sql.NullTime
	)
	err := row.Scan(&s.ID, &s.SubunitID, &s.SurveyID, &s.Status, &data, &meta,
		&submittedBy, &submittedAt, &reviewedBy, &reviewedAt, &reviewNotes,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(data), &s.Data); err != nil {
		return nil, fmt.Errorf("failed to decode submitted data of %s: %w", s.SurveyID, err)
	}
	if err := json.Unmarshal([]byte(meta), &s.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata of %s: %w", s.SurveyID, err)
	}
	if submittedBy.Valid {
		s.SubmittedBy = &submittedBy.String
	}
	if submittedAt.Valid {
		t := submittedAt.Time
		s.SubmittedAt = &t
	}
	if reviewedBy.Valid {
		s.ReviewedBy = &reviewedBy.String
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		s.ReviewedAt = &t
	}
	if reviewNotes.Valid {
		s.ReviewNotes = &reviewNotes.String
	}
	return &s, nil
}

func (r *Router) getSubmission(ctx context.Context, surveyID string) (*models.Submission, error) {
	row := r.conn.QueryRowContext(ctx, r.conn.Rebind(`
		SELECT `+submissionColumns+` FROM form_submission WHERE survey_id = $1
	`), surveyID)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query submission: %w", err)
	}
	return sub, nil
}

// Get loads a submission and rebuilds its answers from the audit records
func (r *Router) Get(ctx context.Context, surveyID string) (*models.FormData, error) {
	sub, err := r.getSubmission(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	rows, err := r.conn.QueryContext(ctx, r.conn.Rebind(`
		SELECT id, submission_id, question_id, table_name, field_name,
			value, json_value, file_value, created_at
		FROM submission_data
		WHERE submission_id = $1
		ORDER BY table_name, field_name
	`), sub.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query submission data: %w", err)
	}
	defer rows.Close()

	form := &models.FormData{
		Submission: *sub,
		Answers:    make(map[string]any),
		Records:    []models.SubmissionFieldRecord{},
	}
	for rows.Next() {
		var (
			rec                   models.SubmissionFieldRecord
			value, jsonVal, fileV sql.NullString
		)
		err := rows.Scan(&rec.ID, &rec.SubmissionID, &rec.QuestionID, &rec.TableName,
			&rec.FieldName, &value, &jsonVal, &fileV, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission data: %w", err)
		}

		switch {
		case jsonVal.Valid:
			if err := json.Unmarshal([]byte(jsonVal.String), &rec.JSONValue); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", rec.FieldName, err)
			}
			form.Answers[rec.FieldName] = rec.JSONValue
		case fileV.Valid:
			rec.FileValue = &fileV.String
			form.Answers[rec.FieldName] = fileV.String
		case value.Valid:
			rec.Value = &value.String
			form.Answers[rec.FieldName] = value.String
		default:
			form.Answers[rec.FieldName] = nil
		}
		form.Records = append(form.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return form, nil
}

// List returns a subunit's submissions, newest first
func (r *Router) List(ctx context.Context, subunitID string, limit, offset int) ([]models.Submission, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.conn.QueryContext(ctx, r.conn.Rebind(`
		SELECT `+submissionColumns+`
		FROM form_submission
		WHERE subunit_id = $1
		ORDER BY created_at DESC, survey_id DESC
		LIMIT $2 OFFSET $3
	`), subunitID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	subs := []models.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

// Review sets the review status of a submission and mirrors it into the
// subunit ledger
func (r *Router) Review(ctx context.Context, surveyID, status, reviewer, notes string) (*models.Submission, error) {
	switch status {
	case models.StatusApproved, models.StatusRejected, models.StatusPendingReview:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	sub, err := r.getSubmission(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	su, project, err := r.subunits.GetSubunitWithProject(ctx, sub.SubunitID)
	if err != nil {
		return nil, err
	}

	var reviewedBy, reviewNotes *string
	if reviewer != "" {
		reviewedBy = &reviewer
	}
	if notes != "" {
		reviewNotes = &notes
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, r.conn.Rebind(`
		UPDATE form_submission
		SET status = $1, reviewed_by = $2, reviewed_at = $3, review_notes = $4, updated_at = $5
		WHERE id = $6
	`), status, reviewedBy, now, reviewNotes, now, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update submission status: %w", err)
	}

	ledger := schema.LedgerTableName(project.Acronym, su.Acronym)
	_, err = tx.ExecContext(ctx, r.conn.Rebind(fmt.Sprintf(`
		UPDATE %s SET review_status = $1, updated_at = $2
		WHERE submission_id = $3 AND deleted_at IS NULL
	`, db.QuoteIdent(ledger))), status, now, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update ledger %s: %w", ledger, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit review: %w", err)
	}

	slog.Info("submission reviewed", "survey_id", surveyID, "status", status)
	return r.getSubmission(ctx, surveyID)
}
