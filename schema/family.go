// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package schema

import (
	"strings"

	"github.com/danielhkuo/quickly-survey/db"
)

// Family groups field types that share a storage kind
type Family int

const (
	ShortText Family = iota
	LongText
	Structured
	Date
)

func (f Family) String() string {
	switch f {
	case ShortText:
		return "short_text"
	case LongText:
		return "long_text"
	case Structured:
		return "structured"
	case Date:
		return "date"
	}
	return "unknown"
}

// ColumnKind is the column kind a leaf of this family compiles to
func (f Family) ColumnKind() db.ColumnKind {
	switch f {
	case ShortText:
		return db.KindShortText
	case Structured:
		return db.KindStructured
	case Date:
		return db.KindDate
	}
	return db.KindLongText
}

var families = map[string]Family{
	"TEXT":       ShortText,
	"RADIO":      ShortText,
	"NUMBER":     ShortText,
	"NUMBERS":    ShortText,
	"LOCATION":   ShortText,
	"DATE_RANGE": ShortText,
	"TIME":       ShortText,
	"DATETIME":   ShortText,
	"RATING":     ShortText,

	"DROPDOWN":  LongText,
	"TEXT_AREA": LongText,
	"AADHAAR":   LongText,
	"CHECKBOX":  LongText,

	"UPLOAD_IMAGE":  Structured,
	"CAPTURE_IMAGE": Structured,
	"AUDIO_RECORD":  Structured,
	"UPLOAD_FILE":   Structured,
	"SIGNATURE":     Structured,

	"DATE": Date,
}

// FamilyOf maps a field type onto its family. Unknown types are long text.
func FamilyOf(fieldType string) Family {
	if f, ok := families[strings.ToUpper(strings.TrimSpace(fieldType))]; ok {
		return f
	}
	return LongText
}

// IsFileType reports whether answers of this type are file or media references
func IsFileType(fieldType string) bool {
	return FamilyOf(fieldType) == Structured
}

// IsChoiceType reports whether answers must come from the field's options
func IsChoiceType(fieldType string) bool {
	switch strings.ToUpper(strings.TrimSpace(fieldType)) {
	case "DROPDOWN", "RADIO", "CHECKBOX":
		return true
	}
	return false
}
