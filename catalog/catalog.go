// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/danielhkuo/quickly-survey/db"
	"github.com/danielhkuo/quickly-survey/models"
)

// Catalog holds a subunit's questions in build order.
// Section links are row ids resolved through the index, never pointers.
type Catalog struct {
	SubunitID string
	Questions []models.Question

	byRowID      map[string]int
	byQuestionID map[string]int
}

// Question looks a question up by its schema id
func (c *Catalog) Question(questionID string) (models.Question, bool) {
	i, ok := c.byQuestionID[questionID]
	if !ok {
		return models.Question{}, false
	}
	return c.Questions[i], true
}

// Parent returns the section enclosing q
func (c *Catalog) Parent(q models.Question) (models.Question, bool) {
	if q.SectionID == nil {
		return models.Question{}, false
	}
	i, ok := c.byRowID[*q.SectionID]
	if !ok {
		return models.Question{}, false
	}
	return c.Questions[i], true
}

// SectionPath lists the acronyms of the sections enclosing q, root first
func (c *Catalog) SectionPath(q models.Question) []string {
	var path []string
	cur := q
	for range c.Questions {
		parent, ok := c.Parent(cur)
		if !ok {
			break
		}
		path = append(path, parent.QuestionID)
		cur = parent
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Active returns the questions that are active along with every enclosing
// section, ordered by view index and then build order
func (c *Catalog) Active() []models.Question {
	idx := make([]int, 0, len(c.Questions))
	for i, q := range c.Questions {
		if c.activeChain(q) {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return c.Questions[idx[a]].ViewIndex < c.Questions[idx[b]].ViewIndex
	})

	out := make([]models.Question, len(idx))
	for i, n := range idx {
		out[i] = c.Questions[n]
	}
	return out
}

func (c *Catalog) activeChain(q models.Question) bool {
	cur := q
	for range c.Questions {
		if !cur.Active {
			return false
		}
		parent, ok := c.Parent(cur)
		if !ok {
			return true
		}
		cur = parent
	}
	return true
}

// Load reads the catalog of a subunit with its validations and skip logic
func Load(ctx context.Context, conn *db.Conn, subunitID string) (*Catalog, error) {
	cat := &Catalog{
		SubunitID:    subunitID,
		byRowID:      make(map[string]int),
		byQuestionID: make(map[string]int),
	}

	if err := cat.loadQuestions(ctx, conn); err != nil {
		return nil, err
	}
	if err := cat.loadValidations(ctx, conn); err != nil {
		return nil, err
	}
	if err := cat.loadSkipLogic(ctx, conn); err != nil {
		return nil, err
	}
	return cat, nil
}

func (c *Catalog) loadQuestions(ctx context.Context, conn *db.Conn) error {
	rows, err := conn.QueryContext(ctx, conn.Rebind(`
		SELECT id, subunit_id, question_id, question_type, label, placeholder, q_number,
			view_index, properties, options, is_required, is_active, view_home, filter_home,
			primary_view, secondary_view, home_label, section_id, created_at
		FROM question
		WHERE subunit_id = $1
		ORDER BY position
	`), c.SubunitID)
	if err != nil {
		return fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q           models.Question
			props, opts string
			sectionID   sql.NullString
		)
		err := rows.Scan(&q.ID, &q.SubunitID, &q.QuestionID, &q.Type, &q.Label, &q.Placeholder,
			&q.QNumber, &q.ViewIndex, &props, &opts, &q.Required, &q.Active, &q.ViewHome,
			&q.FilterHome, &q.PrimaryView, &q.SecondaryView, &q.HomeLabel, &sectionID, &q.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to scan question: %w", err)
		}
		if err := json.Unmarshal([]byte(props), &q.Properties); err != nil {
			return fmt.Errorf("failed to decode properties of %s: %w", q.QuestionID, err)
		}
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
			return fmt.Errorf("failed to decode options of %s: %w", q.QuestionID, err)
		}
		if sectionID.Valid {
			q.SectionID = &sectionID.String
		}
		q.Validations = []models.ValidationRule{}
		q.SkipLogic = []models.SkipLogicRule{}

		c.byRowID[q.ID] = len(c.Questions)
		c.byQuestionID[q.QuestionID] = len(c.Questions)
		c.Questions = append(c.Questions, q)
	}
	return rows.Err()
}

func (c *Catalog) loadValidations(ctx context.Context, conn *db.Conn) error {
	rows, err := conn.QueryContext(ctx, conn.Rebind(`
		SELECT v.id, v.question_ref, v.validation_type, COALESCE(v.value, ''),
			COALESCE(v.error_message, ''), v.is_active
		FROM field_validation v
		JOIN question q ON q.id = v.question_ref
		WHERE q.subunit_id = $1
		ORDER BY q.position, v.position
	`), c.SubunitID)
	if err != nil {
		return fmt.Errorf("failed to query validations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v models.ValidationRule
		if err := rows.Scan(&v.ID, &v.QuestionRef, &v.Kind, &v.Value, &v.ErrorMessage, &v.Active); err != nil {
			return fmt.Errorf("failed to scan validation: %w", err)
		}
		if i, ok := c.byRowID[v.QuestionRef]; ok {
			c.Questions[i].Validations = append(c.Questions[i].Validations, v)
		}
	}
	return rows.Err()
}

func (c *Catalog) loadSkipLogic(ctx context.Context, conn *db.Conn) error {
	rows, err := conn.QueryContext(ctx, conn.Rebind(`
		SELECT s.id, s.question_ref, s.relation, s.flag, s.reverse_skip_logic
		FROM skip_logic s
		JOIN question q ON q.id = s.question_ref
		WHERE q.subunit_id = $1
		ORDER BY q.position, s.position
	`), c.SubunitID)
	if err != nil {
		return fmt.Errorf("failed to query skip logic: %w", err)
	}

	// rule id -> (question index, rule index)
	type slot struct{ q, r int }
	slots := make(map[string]slot)
	for rows.Next() {
		var rule models.SkipLogicRule
		if err := rows.Scan(&rule.ID, &rule.QuestionRef, &rule.Relation, &rule.Flag, &rule.Reverse); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan skip logic: %w", err)
		}
		i, ok := c.byRowID[rule.QuestionRef]
		if !ok {
			continue
		}
		rule.Conditions = []models.Condition{}
		slots[rule.ID] = slot{q: i, r: len(c.Questions[i].SkipLogic)}
		c.Questions[i].SkipLogic = append(c.Questions[i].SkipLogic, rule)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	condRows, err := conn.QueryContext(ctx, conn.Rebind(`
		SELECT c.id, c.skip_logic_id, c.position, c.skip_logic_q, c.skip_logic_val, c.flag
		FROM skip_logic_condition c
		JOIN skip_logic s ON s.id = c.skip_logic_id
		JOIN question q ON q.id = s.question_ref
		WHERE q.subunit_id = $1
		ORDER BY c.skip_logic_id, c.position
	`), c.SubunitID)
	if err != nil {
		return fmt.Errorf("failed to query skip logic conditions: %w", err)
	}
	defer condRows.Close()

	for condRows.Next() {
		var (
			cond   models.Condition
			ruleID string
		)
		if err := condRows.Scan(&cond.ID, &ruleID, &cond.Position, &cond.Source, &cond.Value, &cond.Enabled); err != nil {
			return fmt.Errorf("failed to scan skip logic condition: %w", err)
		}
		s, ok := slots[ruleID]
		if !ok {
			continue
		}
		rule := &c.Questions[s.q].SkipLogic[s.r]
		rule.Conditions = append(rule.Conditions, cond)
	}
	return condRows.Err()
}
