// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danielhkuo/quickly-survey/models"
)

// DataKey is the top-level key holding the list of root sections
const DataKey = "data"

// sectionKeys must be present on every section, checked in this order
var sectionKeys = []string{"type", "title", "acronym", "children"}

// StructureError reports a malformed schema shape.
// Path locates the offending node, e.g. data[1].children[0].
type StructureError struct {
	Path    string
	Message string
}

func (e *StructureError) Error() string {
	if e.Path == "" {
		return "invalid schema: " + e.Message
	}
	return fmt.Sprintf("invalid schema at %s: %s", e.Path, e.Message)
}

// Validate checks the shape of a raw JSON schema document
func Validate(raw []byte) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return &StructureError{Message: fmt.Sprintf("not valid JSON: %v", err)}
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return &StructureError{Message: "top level must be an object"}
	}
	return ValidateDocument(obj)
}

// ValidateDocument checks an already decoded schema document.
// It stops at the first problem found.
func ValidateDocument(doc map[string]any) error {
	if doc == nil {
		return &StructureError{Message: "top level must be an object"}
	}

	data, ok := doc[DataKey]
	if !ok {
		return &StructureError{Message: fmt.Sprintf("missing key %q", DataKey)}
	}
	sections, ok := data.([]any)
	if !ok {
		return &StructureError{Path: DataKey, Message: "must be a list"}
	}

	for i, item := range sections {
		if err := validateSection(item, fmt.Sprintf("%s[%d]", DataKey, i)); err != nil {
			return err
		}
	}
	return nil
}

func validateSection(item any, path string) error {
	section, ok := item.(map[string]any)
	if !ok {
		return &StructureError{Path: path, Message: "section must be an object"}
	}

	for _, key := range sectionKeys {
		if _, ok := section[key]; !ok {
			return &StructureError{Path: path, Message: fmt.Sprintf("missing key %q", key)}
		}
	}

	children, ok := section["children"].([]any)
	if !ok {
		return &StructureError{Path: path + ".children", Message: "must be a list"}
	}

	for i, child := range children {
		node, ok := child.(map[string]any)
		if !ok {
			continue
		}
		// Leaf fields are checked by the catalog builder
		if t, _ := node["type"].(string); !strings.EqualFold(t, models.TypeSection) {
			continue
		}
		if err := validateSection(node, fmt.Sprintf("%s.children[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

// Parse validates a raw schema document and decodes it
func Parse(raw []byte) (models.SchemaDocument, error) {
	if err := Validate(raw); err != nil {
		return models.SchemaDocument{}, err
	}

	var doc models.SchemaDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.SchemaDocument{}, &StructureError{Message: fmt.Sprintf("failed to decode schema: %v", err)}
	}
	return doc, nil
}

// FromMap validates a schema received as part of a larger JSON body and decodes it
func FromMap(m map[string]any) (models.SchemaDocument, []byte, error) {
	if err := ValidateDocument(m); err != nil {
		return models.SchemaDocument{}, nil, err
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return models.SchemaDocument{}, nil, fmt.Errorf("failed to encode schema: %w", err)
	}

	var doc models.SchemaDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.SchemaDocument{}, nil, &StructureError{Message: fmt.Sprintf("failed to decode schema: %v", err)}
	}
	return doc, raw, nil
}
