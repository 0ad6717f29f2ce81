// Package form reads the typed field descriptors of an AcroForm PDF and
// fills field values into it, producing a new document revision plus fill
// statistics. The same code path handles the pristine template and the
// output of a previous workflow step, which is what makes chained,
// incremental filling possible.
package form

import "fmt"

// FieldType is the closed set of interactive field types the engine
// dispatches on.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeDropdown FieldType = "dropdown"
	FieldTypeRadio    FieldType = "radio"
	FieldTypeUnknown  FieldType = "unknown"
)

// Coordinate represents a point in PDF coordinate space.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox represents a rectangular area in PDF coordinate space.
type BoundingBox struct {
	LowerLeft  Coordinate `json:"lower_left"`
	UpperRight Coordinate `json:"upper_right"`
	Width      float64    `json:"width"`
	Height     float64    `json:"height"`
}

// FieldDescriptor describes one interactive form field as it currently
// exists inside a document. Descriptors are always re-read from the
// document being filled, so a chained predecessor's descriptors carry
// the values filled by earlier steps.
type FieldDescriptor struct {
	Name      string       `json:"name"`
	Type      FieldType    `json:"type"`
	Page      int          `json:"page"`
	Bounds    *BoundingBox `json:"bounds,omitempty"`
	Value     string       `json:"value,omitempty"`
	Checked   bool         `json:"checked,omitempty"`
	Options   []string     `json:"options,omitempty"`
	MaxLength int          `json:"max_length,omitempty"`
	ReadOnly  bool         `json:"read_only,omitempty"`
	Required  bool         `json:"required,omitempty"`
}

// Assignment is one resolved instruction for the fill engine: write this
// value into that destination field. MappingID links a failure back to
// the mapping that produced it.
type Assignment struct {
	FieldName string
	Value     Value
	MappingID string
}

// FieldFailure records a single field that could not be filled. Failures
// never abort the remaining fields of a fill run.
type FieldFailure struct {
	Field     string `json:"field"`
	MappingID string `json:"mapping_id,omitempty"`
	Reason    string `json:"reason"`
}

// FillStats summarizes one fill run. The three buckets partition the
// current document's field set: filled + skipped + failed == total.
type FillStats struct {
	FilledCount          int            `json:"filled_count"`
	FilledFields         []string       `json:"filled_fields"`
	SkippedFields        []string       `json:"skipped_fields"`
	FailedFields         []FieldFailure `json:"failed_fields"`
	TotalTemplateFields  int            `json:"total_template_fields"`
	CompletionPercentage int            `json:"completion_percentage"`
}

// FillResult is the outcome of a fill run: the new document bytes and
// the run's statistics. The input document is never modified.
type FillResult struct {
	Output []byte
	Stats  FillStats
}

// TemplateLoadError indicates the template or predecessor document could
// not be read. It is fatal to the current workflow step only.
type TemplateLoadError struct {
	Path string
	Err  error
}

func (e *TemplateLoadError) Error() string {
	return fmt.Sprintf("failed to load form document %s: %v", e.Path, e.Err)
}

func (e *TemplateLoadError) Unwrap() error {
	return e.Err
}
