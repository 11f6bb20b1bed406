// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package rules

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/danielhkuo/quickly-survey/db"
	"github.com/danielhkuo/quickly-survey/models"
	"github.com/danielhkuo/quickly-survey/schema"
)

// FieldError is one failed validation of an answered field
type FieldError struct {
	QuestionID string `json:"question_id"`
	Kind       string `json:"validation_type"`
	Message    string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.QuestionID, e.Message)
}

// FieldErrors collects every failed validation of a submission
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// ByField groups messages per question id, for JSON error details
func (e FieldErrors) ByField() map[string]string {
	out := make(map[string]string, len(e))
	for _, fe := range e {
		if prev, ok := out[fe.QuestionID]; ok {
			out[fe.QuestionID] = prev + "; " + fe.Message
			continue
		}
		out[fe.QuestionID] = fe.Message
	}
	return out
}

// Validate checks one value against the question's active rules
func Validate(q models.Question, value any) []FieldError {
	var errs []FieldError
	fail := func(rule models.ValidationRule, fallback string) {
		msg := rule.ErrorMessage
		if msg == "" {
			msg = fallback
		}
		errs = append(errs, FieldError{QuestionID: q.QuestionID, Kind: rule.Kind, Message: msg})
	}

	empty := isEmpty(value)
	for _, rule := range q.Validations {
		if !rule.Active {
			continue
		}

		if rule.Kind == models.ValidationRequired {
			if empty {
				fail(rule, "This field is required")
			}
			continue
		}
		// Remaining rules only constrain values that were given
		if empty {
			continue
		}

		switch rule.Kind {
		case models.ValidationMinLength, models.ValidationMaxLength:
			s, ok := value.(string)
			limit, err := strconv.Atoi(rule.Value)
			if !ok || err != nil {
				continue
			}
			n := utf8.RuneCountInString(s)
			if rule.Kind == models.ValidationMinLength && n < limit {
				fail(rule, fmt.Sprintf("Minimum %d characters required", limit))
			}
			if rule.Kind == models.ValidationMaxLength && n > limit {
				fail(rule, fmt.Sprintf("Maximum %d characters allowed", limit))
			}

		case models.ValidationMinValue, models.ValidationMaxValue:
			limit, err := strconv.ParseFloat(rule.Value, 64)
			if err != nil {
				continue
			}
			n, ok := number(value)
			if !ok {
				fail(rule, "Must be a number")
				continue
			}
			if rule.Kind == models.ValidationMinValue && n < limit {
				fail(rule, fmt.Sprintf("Must be at least %s", rule.Value))
			}
			if rule.Kind == models.ValidationMaxValue && n > limit {
				fail(rule, fmt.Sprintf("Must be at most %s", rule.Value))
			}

		case models.ValidationPattern:
			s, ok := Canonical(value)
			if !ok {
				continue
			}
			re, err := regexp.Compile(rule.Value)
			if err != nil {
				continue
			}
			if !re.MatchString(s) {
				fail(rule, "Invalid format")
			}

		case models.ValidationMultiSelect:
			if rule.Value == "false" {
				if list, ok := value.([]any); ok && len(list) > 1 {
					fail(rule, "Invalid selection")
				}
			}
		}
	}

	if !empty && schema.IsChoiceType(q.Type) && len(q.Options) > 0 && !validSelection(q.Options, value) {
		errs = append(errs, FieldError{QuestionID: q.QuestionID, Kind: "option", Message: "Invalid selection"})
	}

	// Short text columns hold at most db.ShortTextLength characters, with or without a maxChar rule
	if !empty && schema.FamilyOf(q.Type) == schema.ShortText && !hasKind(errs, models.ValidationMaxLength) {
		if n, ok := storedLength(value); ok && n > db.ShortTextLength {
			errs = append(errs, FieldError{
				QuestionID: q.QuestionID,
				Kind:       models.ValidationMaxLength,
				Message:    fmt.Sprintf("Maximum %d characters allowed", db.ShortTextLength),
			})
		}
	}

	return errs
}

func hasKind(errs []FieldError, kind string) bool {
	for _, e := range errs {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// storedLength is the character count of the value as its column will hold it.
// Lists and objects are stored as JSON text.
func storedLength(value any) (int, bool) {
	if s, ok := Canonical(value); ok {
		return utf8.RuneCountInString(s), true
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return 0, false
	}
	return utf8.RuneCount(encoded), true
}

// QuestionSource supplies the questions a submission is checked against
type QuestionSource interface {
	Active() []models.Question
}

// ValidateAnswers drops answers to hidden or unknown questions and validates
// the rest. Visibility is evaluated against the answers as submitted.
func ValidateAnswers(src QuestionSource, answers map[string]any) (map[string]any, FieldErrors) {
	visible := make(map[string]any)
	var errs FieldErrors

	for _, q := range src.Active() {
		if q.IsSection() || !Visible(q, answers) {
			continue
		}

		value, ok := answers[q.QuestionID]
		if ok {
			visible[q.QuestionID] = value
		}
		errs = append(errs, Validate(q, value)...)
	}

	return visible, errs
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	if s, ok := Canonical(v); ok {
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

// validSelection accepts an option's id or its display value, or a list of them
func validSelection(options []models.Option, value any) bool {
	allowed := make(map[string]bool, len(options)*2)
	for _, opt := range options {
		if id, ok := Canonical(opt.ID); ok {
			allowed[id] = true
		}
		allowed[opt.Value] = true
	}

	if list, ok := value.([]any); ok {
		for _, item := range list {
			s, ok := Canonical(item)
			if !ok || !allowed[s] {
				return false
			}
		}
		return true
	}

	s, ok := Canonical(value)
	return ok && allowed[s]
}
