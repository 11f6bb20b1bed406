// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package schema checks and decodes questionnaire schemas and owns the
naming rule shared by the compiler and the submission router.

# Validation

Validate checks the shape of a raw document before anything is persisted:

	if err := schema.Validate(raw); err != nil {
		var se *schema.StructureError
		errors.As(err, &se) // se.Path == "data[0].children[2]"
	}

Every section needs type, title, acronym and children. Nested sections are
checked recursively; leaf fields are left to the catalog builder. The first
problem found is returned.

# Table Names

	RootTableName("PRJ", "HH", "A")        → PRJ_HH_A
	ChildTableName("PRJ_HH_B", "C")        → PRJ_HH_B_C
	TableNameForPath("PRJ", "HH", [B, C])  → PRJ_HH_B_C
	LedgerTableName("PRJ", "HH")           → PRJ_HH_SYSGEN_survey_submissions

# Type Families

FamilyOf maps a field type onto a storage family:

  - ShortText: TEXT, RADIO, NUMBER(S), LOCATION, DATE_RANGE, TIME, DATETIME, RATING
  - LongText: DROPDOWN, TEXT_AREA, AADHAAR, CHECKBOX, and any unknown type
  - Structured: UPLOAD_IMAGE, CAPTURE_IMAGE, AUDIO_RECORD, UPLOAD_FILE, SIGNATURE
  - Date: DATE
*/
package schema
