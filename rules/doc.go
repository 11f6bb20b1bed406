// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package rules evaluates skip logic and field validations against submitted answers.
//
// Visible applies a question's skip logic rules in order. A rule's enabled
// conditions are combined with AND or OR, the result is inverted when the rule
// is reversed, and a satisfied rule with hide polarity hides the question.
// Conditions compare the canonical text of a scalar answer with the stored value.
//
// ValidateAnswers is what the submission router calls: hidden answers are
// dropped before validation, so they are neither checked nor stored.
package rules
