// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package submission stores survey answers in the tables compiled for a
subunit.

# Submitting

	r := submission.NewRouter(conn, registry.NewStore(conn))
	sub, err := r.Submit(ctx, subunitID, answers, metadata, actorID, submission.Options{})

Answers are checked against the subunit's catalog first. Answers to hidden
or unknown questions are dropped; if a visible answer fails validation the
call returns rules.FieldErrors and writes nothing.

Each submission gets a survey id of the form

	{subunit}_{YYYYMMDDHHMMSS}_{8 hex}

One transaction then writes:

  - the form_submission row
  - one submission_data row per answer (value, json_value or file_value)
  - one row per section table, keyed by submission_id
  - one row in the subunit's ledger

The destination of an answer is the table named after the section path of
its question, the same rule the compiler uses to name tables. A storage
failure rolls everything back and returns *Error.

# Reading and review

Get rebuilds the answers from submission_data. List pages through a
subunit's submissions, newest first. Review sets approved, rejected or
pending_review on both the submission and its ledger row.
*/
package submission
