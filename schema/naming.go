// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package schema

import "strings"

// LedgerSuffix names the per-subunit submission ledger table
const LedgerSuffix = "SYSGEN_survey_submissions"

// RootTableName names the table of a top-level section
func RootTableName(projectAcronym, subunitAcronym, sectionAcronym string) string {
	return projectAcronym + "_" + subunitAcronym + "_" + sectionAcronym
}

// ChildTableName names the table of a section nested under parentTable
func ChildTableName(parentTable, sectionAcronym string) string {
	return parentTable + "_" + sectionAcronym
}

// TableNameForPath derives a section's table from its acronym path, root first.
// It folds the path through RootTableName and ChildTableName so the compiler
// and the submission router always agree.
func TableNameForPath(projectAcronym, subunitAcronym string, path []string) string {
	if len(path) == 0 {
		return ""
	}
	name := RootTableName(projectAcronym, subunitAcronym, path[0])
	for _, acronym := range path[1:] {
		name = ChildTableName(name, acronym)
	}
	return name
}

// LedgerTableName names the submission ledger of a subunit
func LedgerTableName(projectAcronym, subunitAcronym string) string {
	return strings.Join([]string{projectAcronym, subunitAcronym, LedgerSuffix}, "_")
}
