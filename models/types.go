package models

import (
	"strings"
	"time"
)

// Submission status constants
const (
	StatusDraft         = "draft"
	StatusSubmitted     = "submitted"
	StatusApproved      = "approved"
	StatusRejected      = "rejected"
	StatusPendingReview = "pending_review"
)

// Skip logic relations
const (
	RelationAnd = "and"
	RelationOr  = "or"
)

// Validation rule kinds
const (
	ValidationRequired    = "required"
	ValidationMinLength   = "min_length"
	ValidationMaxLength   = "max_length"
	ValidationMinValue    = "min_value"
	ValidationMaxValue    = "max_value"
	ValidationPattern     = "pattern"
	ValidationMultiSelect = "multi_select"
)

// TypeSection marks a schema node or question row that groups other nodes
const TypeSection = "SECTION"

// Schema document types

// SchemaDocument is the operator-supplied questionnaire: {"data": [Section, ...]}
type SchemaDocument struct {
	FormName string       `json:"form_name,omitempty"`
	Acronym  string       `json:"acronym,omitempty"`
	Data     []SchemaNode `json:"data"`
}

// SchemaNode is either a section (Title, Acronym, Children) or a leaf field
// (ID, Properties, Options, ...). Type tells them apart.
type SchemaNode struct {
	Type     string       `json:"type"`
	Title    string       `json:"title,omitempty"`
	Acronym  string       `json:"acronym,omitempty"`
	IsActive *bool        `json:"isActive,omitempty"`
	Children []SchemaNode `json:"children,omitempty"`

	ID               string           `json:"id,omitempty"`
	Properties       map[string]any   `json:"properties,omitempty"`
	Options          []Option         `json:"options,omitempty"`
	ViewHome         bool             `json:"viewHome,omitempty"`
	FilterHome       bool             `json:"filterHome,omitempty"`
	HomeLabel        string           `json:"homeLabel,omitempty"`
	PrimaryView      bool             `json:"primaryView,omitempty"`
	SecondaryView    bool             `json:"secondaryView,omitempty"`
	ViewIndex        int              `json:"viewIndex,omitempty"`
	SkipLogic        []SkipLogicInput `json:"skipLogic,omitempty"`
	FieldValidations map[string]any   `json:"fieldValidations,omitempty"`
}

// IsSection reports whether the node groups other nodes
func (n SchemaNode) IsSection() bool {
	return strings.EqualFold(n.Type, TypeSection)
}

type Option struct {
	ID    any    `json:"id"`
	Value string `json:"value"`
}

// SkipLogicInput is a skip logic rule as written in the schema
type SkipLogicInput struct {
	Relation         string           `json:"relation,omitempty"`
	Flag             *bool            `json:"flag,omitempty"`
	ReverseSkipLogic bool             `json:"reverseSkipLogic,omitempty"`
	Data             []ConditionInput `json:"data,omitempty"`
}

type ConditionInput struct {
	SkipLogicQ   string `json:"skipLogicQ"`
	SkipLogicVal any    `json:"skipLogicVal"`
	Flag         *bool  `json:"flag,omitempty"`
}

// Domain types

type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Acronym   string    `json:"acronym"`
	CreatedAt time.Time `json:"created_at"`
}

type Subunit struct {
	ID             string            `json:"id"`
	ProjectID      string            `json:"project_id"`
	Name           string            `json:"name"`
	Acronym        string            `json:"acronym"`
	Description    string            `json:"description,omitempty"`
	Active         bool              `json:"active"`
	HaveQC         bool              `json:"have_qc"`
	HaveValidation bool              `json:"have_validation"`
	Version        string            `json:"version,omitempty"`
	Schema         SchemaDocument    `json:"-"`
	ViewHomeMap    map[string]string `json:"view_home_map"`
	FilterHomeMap  map[string]string `json:"filter_home_map"`
	CreatedBy      *string           `json:"created_by,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// TableMapping links a compiled section to its physical table.
// ParentID refers to another mapping of the same subunit.
type TableMapping struct {
	ID              string     `json:"id"`
	SubunitID       string     `json:"subunit_id"`
	SectionName     string     `json:"section_name"`
	SectionAcronym  string     `json:"section_acronym"`
	TableName       string     `json:"table_name"`
	ParentID        *string    `json:"parent_id,omitempty"`
	Fields          []string   `json:"fields"`
	AcronymSequence []string   `json:"acronym_sequence"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Question is one row of the catalog: a section or a leaf field.
// SectionID refers to the enclosing section question, nil for top-level sections.
type Question struct {
	ID            string           `json:"id"`
	SubunitID     string           `json:"subunit_id"`
	QuestionID    string           `json:"question_id"`
	Type          string           `json:"question_type"`
	Label         string           `json:"label"`
	Placeholder   string           `json:"placeholder,omitempty"`
	QNumber       string           `json:"q_number,omitempty"`
	ViewIndex     int              `json:"view_index"`
	Properties    map[string]any   `json:"properties"`
	Options       []Option         `json:"options"`
	Required      bool             `json:"is_required"`
	Active        bool             `json:"is_active"`
	ViewHome      bool             `json:"view_home"`
	FilterHome    bool             `json:"filter_home"`
	PrimaryView   bool             `json:"primary_view"`
	SecondaryView bool             `json:"secondary_view"`
	HomeLabel     string           `json:"home_label,omitempty"`
	SectionID     *string          `json:"section_id,omitempty"`
	Validations   []ValidationRule `json:"validations"`
	SkipLogic     []SkipLogicRule  `json:"skip_logic"`
	CreatedAt     time.Time        `json:"created_at"`
}

// IsSection reports whether the question row stands for a section
func (q Question) IsSection() bool {
	return strings.EqualFold(q.Type, TypeSection)
}

type ValidationRule struct {
	ID           string `json:"id"`
	QuestionRef  string `json:"question_ref"`
	Kind         string `json:"validation_type"`
	Value        string `json:"value"`
	ErrorMessage string `json:"error_message"`
	Active       bool   `json:"is_active"`
}

// SkipLogicRule controls the visibility of its question.
// Flag true means show when satisfied, false means hide.
type SkipLogicRule struct {
	ID          string      `json:"id"`
	QuestionRef string      `json:"question_ref"`
	Relation    string      `json:"relation"`
	Flag        bool        `json:"flag"`
	Reverse     bool        `json:"reverse_skip_logic"`
	Conditions  []Condition `json:"conditions"`
}

type Condition struct {
	ID       string `json:"id"`
	Source   string `json:"skip_logic_q"`
	Value    string `json:"skip_logic_val"`
	Enabled  bool   `json:"flag"`
	Position int    `json:"position"`
}

type Submission struct {
	ID          string         `json:"id"`
	SubunitID   string         `json:"subunit_id"`
	SurveyID    string         `json:"survey_id"`
	Status      string         `json:"status"`
	Data        map[string]any `json:"submitted_data"`
	Metadata    map[string]any `json:"metadata"`
	SubmittedBy *string        `json:"submitted_by,omitempty"`
	SubmittedAt *time.Time     `json:"submitted_at,omitempty"`
	ReviewedBy  *string        `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time     `json:"reviewed_at,omitempty"`
	ReviewNotes *string        `json:"review_notes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// SubmissionFieldRecord is the audit row for one answered field.
// Exactly one of Value, JSONValue, FileValue is set.
type SubmissionFieldRecord struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	QuestionID   string    `json:"question_id"`
	TableName    string    `json:"table_name"`
	FieldName    string    `json:"field_name"`
	Value        *string   `json:"value,omitempty"`
	JSONValue    any       `json:"json_value,omitempty"`
	FileValue    *string   `json:"file_value,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// FormData is a submission with its answers rebuilt from the audit trail
type FormData struct {
	Submission Submission              `json:"submission"`
	Answers    map[string]any          `json:"answers"`
	Records    []SubmissionFieldRecord `json:"records"`
}

// Request types

type RegisterSubunitRequest struct {
	Name           string         `json:"name" validate:"required,max=255"`
	Acronym        string         `json:"acronym" validate:"required,max=50,alphanum"`
	Description    string         `json:"description"`
	Version        string         `json:"version" validate:"max=20"`
	HaveQC         bool           `json:"have_qc"`
	HaveValidation bool           `json:"have_validation"`
	Schema         map[string]any `json:"schema" validate:"required"`
}

type SubmitRequest struct {
	Answers  map[string]any `json:"answers" validate:"required"`
	Metadata map[string]any `json:"metadata"`
	Draft    bool           `json:"draft"`
}

type ReviewRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected pending_review"`
	Notes  string `json:"notes" validate:"max=2000"`
}

// Response types

type RegisterSubunitResponse struct {
	Subunit  Subunit        `json:"subunit"`
	Tables   []string       `json:"tables"`
	Mappings []TableMapping `json:"mappings"`
}

type MappingsResponse struct {
	SubunitID string         `json:"subunit_id"`
	Mappings  []TableMapping `json:"mappings"`
}

type BuildCatalogResponse struct {
	SubunitID   string `json:"subunit_id"`
	Questions   int    `json:"questions"`
	Validations int    `json:"validations"`
	SkipLogic   int    `json:"skip_logic"`
	Conditions  int    `json:"conditions"`
	Active      bool   `json:"active"`
}

type CatalogResponse struct {
	SubunitID string     `json:"subunit_id"`
	Questions []Question `json:"questions"`
}

type SubmitResponse struct {
	SurveyID string `json:"survey_id"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

type SubmissionSummary struct {
	SurveyID     string     `json:"survey_id"`
	Status       string     `json:"status"`
	SubmittedBy  *string    `json:"submitted_by,omitempty"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
	SubmittedAgo string     `json:"submitted_ago,omitempty"`
}

type ListSubmissionsResponse struct {
	Submissions []SubmissionSummary `json:"submissions"`
}

// Error response

type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}
