// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines schema, domain, request, and response types for the API.

# Schema Types

The questionnaire document posted by an operator:

  - SchemaDocument: {"data": [SchemaNode, ...]}
  - SchemaNode: a section (title, acronym, children) or a leaf field (id, properties, options)
  - SkipLogicInput, ConditionInput: skip logic as written in the schema
  - Option: a selectable answer for choice fields

# Domain Types

  - Project, Subunit: collaborator records supplying acronyms for table names
  - TableMapping: one compiled section and its physical table
  - Question, ValidationRule, SkipLogicRule, Condition: the question catalog
  - Submission, SubmissionFieldRecord: a submission and its audit rows
  - FormData: a submission rebuilt from its audit rows

# Request Types

  - RegisterSubunitRequest: name, acronym, schema
  - SubmitRequest: answers, metadata, draft
  - ReviewRequest: status, notes

Request types carry go-playground/validator tags checked by the handlers.

# Response Types

  - RegisterSubunitResponse: subunit, tables, mappings
  - CatalogResponse: questions with validations and skip logic
  - SubmitResponse: survey_id, status, message
  - ListSubmissionsResponse: submission summaries
  - ErrorResponse: error, message, details

# Constants

Submission status values:

	StatusDraft         = "draft"
	StatusSubmitted     = "submitted"
	StatusApproved      = "approved"
	StatusRejected      = "rejected"
	StatusPendingReview = "pending_review"

Skip logic relations:

	RelationAnd = "and"
	RelationOr  = "or"
*/
package models
