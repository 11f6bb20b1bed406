// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/quickly-survey/db"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantErr  bool
		wantPath string
	}{
		{
			name: "valid nested",
			raw: `{"data": [
				{"type": "SECTION", "title": "A", "acronym": "A", "children": [
					{"id": "q1", "type": "TEXT"}
				]},
				{"type": "section", "title": "B", "acronym": "B", "children": [
					{"type": "SECTION", "title": "C", "acronym": "C", "children": []}
				]}
			]}`,
		},
		{name: "empty data", raw: `{"data": []}`},
		{name: "not json", raw: `{"data": [`, wantErr: true},
		{name: "top level list", raw: `[]`, wantErr: true},
		{name: "missing data", raw: `{"sections": []}`, wantErr: true},
		{name: "data not list", raw: `{"data": {}}`, wantErr: true, wantPath: "data"},
		{
			name:     "section missing acronym",
			raw:      `{"data": [{"type": "SECTION", "title": "A", "children": []}]}`,
			wantErr:  true,
			wantPath: "data[0]",
		},
		{
			name:     "children not list",
			raw:      `{"data": [{"type": "SECTION", "title": "A", "acronym": "A", "children": "x"}]}`,
			wantErr:  true,
			wantPath: "data[0].children",
		},
		{
			name: "nested section missing title",
			raw: `{"data": [{"type": "SECTION", "title": "B", "acronym": "B", "children": [
				{"id": "q1", "type": "TEXT"},
				{"type": "SECTION", "acronym": "C", "children": []}
			]}]}`,
			wantErr:  true,
			wantPath: "data[0].children[1]",
		},
		{
			name:    "leaf children not checked",
			raw:     `{"data": [{"type": "SECTION", "title": "A", "acronym": "A", "children": [{"type": "TEXT"}]}]}`,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]byte(tt.raw))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			var se *StructureError
			require.True(t, errors.As(err, &se), "expected *StructureError, got %T", err)
			if tt.wantPath != "" {
				assert.Equal(t, tt.wantPath, se.Path)
			}
		})
	}
}

func TestValidateFailsFast(t *testing.T) {
	// Both sections are broken; only the first is reported
	raw := `{"data": [
		{"type": "SECTION", "title": "A", "children": []},
		{"type": "SECTION", "acronym": "B", "children": []}
	]}`

	err := Validate([]byte(raw))
	var se *StructureError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "data[0]", se.Path)
	assert.Contains(t, se.Message, "acronym")
}

func TestParse(t *testing.T) {
	raw := `{"data": [{"type": "SECTION", "title": "Household", "acronym": "HH", "children": [
		{"id": "name", "type": "TEXT", "properties": {"label": "Name", "valueRequired": true}, "viewHome": true, "homeLabel": "Name"},
		{"id": "gender", "type": "RADIO", "options": [{"id": 1, "value": "M"}, {"id": 2, "value": "F"}],
		 "skipLogic": [{"relation": "and", "flag": false, "data": [{"skipLogicQ": "name", "skipLogicVal": "x"}]}]},
		{"type": "SECTION", "title": "Members", "acronym": "MEM", "children": []}
	]}]}`

	doc, err := Parse([]byte(raw))
	require.NoError(t, err)
	require.Len(t, doc.Data, 1)

	root := doc.Data[0]
	assert.True(t, root.IsSection())
	assert.Equal(t, "HH", root.Acronym)
	require.Len(t, root.Children, 3)

	name := root.Children[0]
	assert.False(t, name.IsSection())
	assert.Equal(t, "name", name.ID)
	assert.Equal(t, true, name.Properties["valueRequired"])
	assert.True(t, name.ViewHome)

	gender := root.Children[1]
	require.Len(t, gender.Options, 2)
	require.Len(t, gender.SkipLogic, 1)
	require.NotNil(t, gender.SkipLogic[0].Flag)
	assert.False(t, *gender.SkipLogic[0].Flag)
	assert.Equal(t, "name", gender.SkipLogic[0].Data[0].SkipLogicQ)

	assert.True(t, root.Children[2].IsSection())
}

func TestParseRejectsMalformed(t *testing.T) {
	_, err := Parse([]byte(`{"data": [{"type": "SECTION"}]}`))
	var se *StructureError
	assert.True(t, errors.As(err, &se))
}

func TestFromMap(t *testing.T) {
	m := map[string]any{
		"data": []any{
			map[string]any{"type": "SECTION", "title": "A", "acronym": "A", "children": []any{
				map[string]any{"id": "q1", "type": "TEXT"},
			}},
		},
	}

	doc, raw, err := FromMap(m)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	require.Len(t, doc.Data, 1)
	assert.Equal(t, "q1", doc.Data[0].Children[0].ID)

	_, _, err = FromMap(map[string]any{})
	assert.Error(t, err)
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "PRJ_HH_A", RootTableName("PRJ", "HH", "A"))
	assert.Equal(t, "PRJ_HH_B_C", ChildTableName("PRJ_HH_B", "C"))
	assert.Equal(t, "PRJ_HH_SYSGEN_survey_submissions", LedgerTableName("PRJ", "HH"))

	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"A"}, "PRJ_HH_A"},
		{[]string{"B", "C"}, "PRJ_HH_B_C"},
		{[]string{"B", "C", "D"}, "PRJ_HH_B_C_D"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TableNameForPath("PRJ", "HH", tt.path))
	}

	// Folding by hand must agree with the path helper
	manual := ChildTableName(ChildTableName(RootTableName("P", "S", "X"), "Y"), "Z")
	assert.Equal(t, manual, TableNameForPath("P", "S", []string{"X", "Y", "Z"}))
}

func TestFamilyOf(t *testing.T) {
	tests := []struct {
		fieldType string
		want      Family
		kind      db.ColumnKind
	}{
		{"TEXT", ShortText, db.KindShortText},
		{"radio", ShortText, db.KindShortText},
		{"NUMBERS", ShortText, db.KindShortText},
		{"DROPDOWN", LongText, db.KindLongText},
		{"TEXT_AREA", LongText, db.KindLongText},
		{"UPLOAD_IMAGE", Structured, db.KindStructured},
		{"AUDIO_RECORD", Structured, db.KindStructured},
		{"DATE", Date, db.KindDate},
		{"SOMETHING_NEW", LongText, db.KindLongText},
	}

	for _, tt := range tests {
		t.Run(tt.fieldType, func(t *testing.T) {
			got := FamilyOf(tt.fieldType)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.kind, got.ColumnKind())
		})
	}

	assert.True(t, IsFileType("CAPTURE_IMAGE"))
	assert.False(t, IsFileType("TEXT"))
	assert.True(t, IsChoiceType("Dropdown"))
	assert.False(t, IsChoiceType("TEXT"))
}
