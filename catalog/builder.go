// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/danielhkuo/quickly-survey/auth"
	"github.com/danielhkuo/quickly-survey/db"
	"github.com/danielhkuo/quickly-survey/models"
	"github.com/danielhkuo/quickly-survey/registry"
	"github.com/danielhkuo/quickly-survey/rules"
	"github.com/danielhkuo/quickly-survey/schema"
)

// Builder rebuilds the question catalog of a subunit from its stored schema
type Builder struct {
	conn     *db.Conn
	subunits *registry.Store
}

func NewBuilder(conn *db.Conn) *Builder {
	return &Builder{conn: conn, subunits: registry.NewStore(conn)}
}

// Stats counts the rows written by one build
type Stats struct {
	Questions   int
	Validations int
	SkipLogic   int
	Conditions  int
}

// Build replaces the subunit's catalog in one transaction.
// On any failure the previous catalog is left as it was.
func (b *Builder) Build(ctx context.Context, subunitID string) (Stats, error) {
	su, err := b.subunits.GetSubunit(ctx, subunitID)
	if err != nil {
		return Stats{}, err
	}

	tx, err := b.conn.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := b.clear(ctx, tx, subunitID); err != nil {
		return Stats{}, err
	}

	w := &writer{conn: b.conn, tx: tx, subunitID: subunitID, now: time.Now().UTC()}
	for _, section := range su.Schema.Data {
		if err := w.section(ctx, section, nil); err != nil {
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("failed to commit catalog: %w", err)
	}

	slog.Info("catalog built",
		"subunit_id", subunitID,
		"questions", w.stats.Questions,
		"validations", w.stats.Validations,
		"skip_logic", w.stats.SkipLogic,
	)
	return w.stats, nil
}

// BuildAll rebuilds the catalog of every active subunit.
// A failing subunit does not stop the others; all failures are returned joined.
func (b *Builder) BuildAll(ctx context.Context) (int, error) {
	subunits, err := b.subunits.ListActiveSubunits(ctx)
	if err != nil {
		return 0, err
	}

	built := 0
	var errs []error
	for _, su := range subunits {
		if _, err := b.Build(ctx, su.ID); err != nil {
			slog.Error("failed to build catalog", "subunit_id", su.ID, "acronym", su.Acronym, "error", err)
			errs = append(errs, fmt.Errorf("subunit %s: %w", su.Acronym, err))
			continue
		}
		built++
	}
	return built, errors.Join(errs...)
}

func (b *Builder) clear(ctx context.Context, tx *sql.Tx, subunitID string) error {
	stmts := []struct {
		what  string
		query string
	}{
		{"conditions", `
			DELETE FROM skip_logic_condition WHERE skip_logic_id IN (
				SELECT sl.id FROM skip_logic sl
				JOIN question q ON q.id = sl.question_ref
				WHERE q.subunit_id = $1
			)`},
		{"skip logic", `
			DELETE FROM skip_logic WHERE question_ref IN (
				SELECT id FROM question WHERE subunit_id = $1
			)`},
		{"validations", `
			DELETE FROM field_validation WHERE question_ref IN (
				SELECT id FROM question WHERE subunit_id = $1
			)`},
		{"questions", `DELETE FROM question WHERE subunit_id = $1`},
	}

	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, b.conn.Rebind(s.query), subunitID); err != nil {
			return fmt.Errorf("failed to delete %s: %w", s.what, err)
		}
	}
	return nil
}

type writer struct {
	conn      *db.Conn
	tx        *sql.Tx
	subunitID string
	now       time.Time
	position  int
	stats     Stats
}

func (w *writer) section(ctx context.Context, node models.SchemaNode, parentID *string) error {
	row := questionRow{
		QuestionID: node.Acronym,
		Type:       models.TypeSection,
		Label:      node.Title,
		ViewIndex:  node.ViewIndex,
		Active:     node.IsActive == nil || *node.IsActive,
		SectionID:  parentID,
	}
	id, err := w.insertQuestion(ctx, row)
	if err != nil {
		return err
	}

	for _, child := range node.Children {
		if child.IsSection() {
			if err := w.section(ctx, child, &id); err != nil {
				return err
			}
			continue
		}
		if err := w.leaf(ctx, child, id, node.Acronym); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) leaf(ctx context.Context, node models.SchemaNode, sectionID, sectionAcronym string) error {
	questionID := node.ID
	if questionID == "" {
		return &schema.StructureError{Path: sectionAcronym, Message: fmt.Sprintf("%s field has no id", node.Type)}
	}

	validations := parseValidations(node)
	required := false
	for _, v := range validations {
		if v.Kind == models.ValidationRequired {
			required = true
		}
	}

	row := questionRow{
		QuestionID:    questionID,
		Type:          node.Type,
		Label:         stringProp(node.Properties, "label"),
		Placeholder:   stringProp(node.Properties, "placeholder"),
		QNumber:       stringProp(node.Properties, "qNumber"),
		ViewIndex:     node.ViewIndex,
		Properties:    node.Properties,
		Options:       node.Options,
		Required:      required,
		Active:        node.IsActive == nil || *node.IsActive,
		ViewHome:      node.ViewHome,
		FilterHome:    node.FilterHome,
		PrimaryView:   node.PrimaryView,
		SecondaryView: node.SecondaryView,
		HomeLabel:     node.HomeLabel,
		SectionID:     &sectionID,
	}
	id, err := w.insertQuestion(ctx, row)
	if err != nil {
		return err
	}

	for i, v := range validations {
		if err := w.insertValidation(ctx, id, i, v); err != nil {
			return err
		}
	}
	for i, rule := range parseSkipLogic(node.SkipLogic) {
		if err := w.insertSkipLogic(ctx, id, i, rule); err != nil {
			return err
		}
	}
	return nil
}

type questionRow struct {
	QuestionID    string
	Type          string
	Label         string
	Placeholder   string
	QNumber       string
	ViewIndex     int
	Properties    map[string]any
	Options       []models.Option
	Required      bool
	Active        bool
	ViewHome      bool
	FilterHome    bool
	PrimaryView   bool
	SecondaryView bool
	HomeLabel     string
	SectionID     *string
}

func (w *writer) insertQuestion(ctx context.Context, q questionRow) (string, error) {
	id, err := auth.GenerateID(16)
	if err != nil {
		return "", err
	}

	props, err := json.Marshal(orEmptyMap(q.Properties))
	if err != nil {
		return "", fmt.Errorf("failed to encode properties of %s: %w", q.QuestionID, err)
	}
	if q.Options == nil {
		q.Options = []models.Option{}
	}
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return "", fmt.Errorf("failed to encode options of %s: %w", q.QuestionID, err)
	}

	_, err = w.tx.ExecContext(ctx, w.conn.Rebind(`
		INSERT INTO question (id, subunit_id, question_id, question_type, label, placeholder,
			q_number, view_index, position, properties, options, is_required, is_active,
			view_home, filter_home, primary_view, secondary_view, home_label, section_id,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`), id, w.subunitID, q.QuestionID, q.Type, q.Label, q.Placeholder,
		q.QNumber, q.ViewIndex, w.position, string(props), string(opts), q.Required, q.Active,
		q.ViewHome, q.FilterHome, q.PrimaryView, q.SecondaryView, q.HomeLabel, q.SectionID,
		w.now, w.now)
	if err != nil {
		return "", fmt.Errorf("failed to insert question %s: %w", q.QuestionID, err)
	}

	w.position++
	w.stats.Questions++
	return id, nil
}

func (w *writer) insertValidation(ctx context.Context, questionRef string, position int, v models.ValidationRule) error {
	id, err := auth.GenerateID(16)
	if err != nil {
		return err
	}

	_, err = w.tx.ExecContext(ctx, w.conn.Rebind(`
		INSERT INTO field_validation (id, question_ref, validation_type, value, error_message,
			is_active, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`), id, questionRef, v.Kind, v.Value, v.ErrorMessage, true, position, w.now)
	if err != nil {
		return fmt.Errorf("failed to insert %s validation: %w", v.Kind, err)
	}

	w.stats.Validations++
	return nil
}

func (w *writer) insertSkipLogic(ctx context.Context, questionRef string, position int, rule models.SkipLogicRule) error {
	ruleID, err := auth.GenerateID(16)
	if err != nil {
		return err
	}

	_, err = w.tx.ExecContext(ctx, w.conn.Rebind(`
		INSERT INTO skip_logic (id, question_ref, relation, flag, reverse_skip_logic, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`), ruleID, questionRef, rule.Relation, rule.Flag, rule.Reverse, position, w.now)
	if err != nil {
		return fmt.Errorf("failed to insert skip logic: %w", err)
	}
	w.stats.SkipLogic++

	for _, c := range rule.Conditions {
		condID, err := auth.GenerateID(16)
		if err != nil {
			return err
		}
		_, err = w.tx.ExecContext(ctx, w.conn.Rebind(`
			INSERT INTO skip_logic_condition (id, skip_logic_id, position, skip_logic_q, skip_logic_val, flag)
			VALUES ($1, $2, $3, $4, $5, $6)
		`), condID, ruleID, c.Position, c.Source, c.Value, c.Enabled)
		if err != nil {
			return fmt.Errorf("failed to insert skip logic condition: %w", err)
		}
		w.stats.Conditions++
	}
	return nil
}

// validationKeys lists the schema keys that produce validation rules, in rule order
var validationKeys = []string{"valueRequired", "minChar", "maxChar", "minValue", "maxValue", "pattern", "multiSelect"}

// parseValidations derives rules from the field's properties, overridden by fieldValidations
func parseValidations(node models.SchemaNode) []models.ValidationRule {
	merged := make(map[string]any)
	for k, v := range node.Properties {
		merged[k] = v
	}
	for k, v := range node.FieldValidations {
		merged[k] = v
	}

	var out []models.ValidationRule
	for _, key := range validationKeys {
		raw, ok := merged[key]
		if !ok || raw == nil {
			continue
		}
		value, ok := rules.Canonical(raw)
		if !ok {
			continue
		}

		rule := models.ValidationRule{Value: value, Active: true}
		switch key {
		case "valueRequired":
			if !truthy(raw) {
				continue
			}
			rule.Kind = models.ValidationRequired
			rule.Value = "true"
			rule.ErrorMessage = "This field is required"
		case "minChar":
			rule.Kind = models.ValidationMinLength
			rule.ErrorMessage = fmt.Sprintf("Minimum %s characters required", value)
		case "maxChar":
			rule.Kind = models.ValidationMaxLength
			rule.ErrorMessage = fmt.Sprintf("Maximum %s characters allowed", value)
		case "minValue":
			rule.Kind = models.ValidationMinValue
			rule.ErrorMessage = fmt.Sprintf("Must be at least %s", value)
		case "maxValue":
			rule.Kind = models.ValidationMaxValue
			rule.ErrorMessage = fmt.Sprintf("Must be at most %s", value)
		case "pattern":
			if value == "" {
				continue
			}
			rule.Kind = models.ValidationPattern
			rule.ErrorMessage = "Invalid format"
		case "multiSelect":
			rule.Kind = models.ValidationMultiSelect
			rule.ErrorMessage = "Invalid selection"
		}
		out = append(out, rule)
	}
	return out
}

// parseSkipLogic applies the schema defaults: relation "and", flag true, conditions enabled
func parseSkipLogic(inputs []models.SkipLogicInput) []models.SkipLogicRule {
	out := make([]models.SkipLogicRule, 0, len(inputs))
	for _, in := range inputs {
		rule := models.SkipLogicRule{
			Relation: models.RelationAnd,
			Flag:     in.Flag == nil || *in.Flag,
			Reverse:  in.ReverseSkipLogic,
		}
		if strings.EqualFold(in.Relation, models.RelationOr) {
			rule.Relation = models.RelationOr
		}

		for i, c := range in.Data {
			value, _ := rules.Canonical(c.SkipLogicVal)
			rule.Conditions = append(rule.Conditions, models.Condition{
				Source:   c.SkipLogicQ,
				Value:    value,
				Enabled:  c.Flag == nil || *c.Flag,
				Position: i,
			})
		}
		out = append(out, rule)
	}
	return out
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x == "true" || x == "1"
	case float64:
		return x != 0
	}
	return false
}

func stringProp(props map[string]any, key string) string {
	s, _ := rules.Canonical(props[key])
	return s
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
