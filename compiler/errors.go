// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package compiler

import (
	"fmt"

	"github.com/danielhkuo/quickly-survey/schema"
)

// TableExistsError means a section's table name is already taken in storage
type TableExistsError struct {
	Table string
}

func (e *TableExistsError) Error() string {
	return fmt.Sprintf("table %s already exists", e.Table)
}

// CompileError wraps any other failure while creating a subunit's storage
type CompileError struct {
	Section string
	Err     error
}

func (e *CompileError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("compile failed: %v", e.Err)
	}
	return fmt.Sprintf("compile failed at section %s: %v", e.Section, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// invalid reports a schema the validator accepted but storage cannot hold
func invalid(section, format string, args ...any) *CompileError {
	return &CompileError{
		Section: section,
		Err:     &schema.StructureError{Path: section, Message: fmt.Sprintf(format, args...)},
	}
}
