// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package rules

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/danielhkuo/quickly-survey/models"
)

// Visible reports whether q should be shown given the answers so far.
// The first rule that is satisfied with hide polarity wins.
func Visible(q models.Question, answers map[string]any) bool {
	for _, rule := range q.SkipLogic {
		raw := Satisfied(rule, answers)
		if rule.Reverse {
			raw = !raw
		}
		if raw && !rule.Flag {
			return false
		}
	}
	return true
}

// Satisfied evaluates a rule's enabled conditions, ignoring polarity and reverse.
// AND over no enabled conditions holds; OR over none does not.
func Satisfied(rule models.SkipLogicRule, answers map[string]any) bool {
	if strings.EqualFold(rule.Relation, models.RelationOr) {
		for _, c := range rule.Conditions {
			if c.Enabled && Matches(answers[c.Source], c.Value) {
				return true
			}
		}
		return false
	}

	for _, c := range rule.Conditions {
		if c.Enabled && !Matches(answers[c.Source], c.Value) {
			return false
		}
	}
	return true
}

// Matches compares an answer with a condition value.
// Scalars compare by their canonical string form; lists, objects and nil never match.
func Matches(answer any, want string) bool {
	got, ok := Canonical(answer)
	return ok && got == want
}

// Canonical renders a scalar answer as text. ok is false for nil and composite values.
func Canonical(v any) (s string, ok bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case json.Number:
		return x.String(), true
	}
	return "", false
}
