// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package submission

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("submission not found")
	ErrInvalidStatus = errors.New("invalid review status")
	ErrInactive      = errors.New("subunit is not accepting submissions")
)

// Error reports a submission that could not be persisted. Nothing from it
// was written.
type Error struct {
	SurveyID string
	Err      error
}

func (e *Error) Error() string {
	if e.SurveyID == "" {
		return fmt.Sprintf("submission failed: %v", e.Err)
	}
	return fmt.Sprintf("submission %s failed: %v", e.SurveyID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
