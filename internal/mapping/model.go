// Package mapping owns the field-mapping table: the durable link between
// source columns of extracted document data and named fields of the form
// template, the resolver that proposes new mappings, and the evaluator
// that picks the right extraction row for a mapping's discriminator.
package mapping

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status is the provenance and trust tag of a mapping.
type Status string

const (
	// StatusAuto marks a mapping proposed by the name heuristics.
	StatusAuto Status = "auto"
	// StatusManual marks a mapping created by hand in the curation UI.
	StatusManual Status = "manual"
	// StatusVision marks a mapping sourced from semantic classifier output.
	StatusVision Status = "vision"
	// StatusVerified marks a mapping explicitly confirmed by a curator.
	StatusVerified Status = "verified"
	// StatusNeedsReview marks an unmatched destination field surfaced to
	// the curator; such rows are never persisted as mappings.
	StatusNeedsReview Status = "needs_review"
)

// UnknownSource is the placeholder source for unmatched resolver output.
const UnknownSource = "unknown"

// defaultManualConfidence is assumed when a manual mapping carries no score.
const defaultManualConfidence = 100.0

// FieldMapping links one source column to one destination form field.
type FieldMapping struct {
	ID                   string         `json:"id" gorm:"primaryKey"`
	DocumentType         string         `json:"document_type" gorm:"index;not null"`
	SourceTable          string         `json:"source_table" gorm:"not null"`
	SourceField          string         `json:"source_field" gorm:"not null"`
	DestinationFieldName string         `json:"destination_field_name" gorm:"not null"`
	FilterKey            string         `json:"filter_key,omitempty"`
	FilterValue          string         `json:"filter_value,omitempty"`
	ConfidenceScore      *float64       `json:"confidence_score,omitempty"`
	MappingStatus        Status         `json:"mapping_status" gorm:"default:manual"`
	IsActive             bool           `json:"is_active"`
	Notes                string         `json:"notes,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the table name for FieldMapping.
func (FieldMapping) TableName() string {
	return "field_mappings"
}

// BeforeCreate assigns a fresh id when none was supplied.
func (m *FieldMapping) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// SetFilterCondition sets the mapping's single-key equality predicate and
// records why the destination was tied to this discriminator value. The
// one-key invariant is structural: there is exactly one key/value pair.
func (m *FieldMapping) SetFilterCondition(key, value string) {
	m.FilterKey = key
	m.FilterValue = value
	if key != "" {
		m.Notes = fmt.Sprintf("applies only to rows where %s = %q", key, value)
	}
}

// FilterCondition returns the predicate as a map with at most one key.
func (m *FieldMapping) FilterCondition() map[string]string {
	if m.FilterKey == "" {
		return nil
	}
	return map[string]string{m.FilterKey: m.FilterValue}
}

// HasFilter reports whether the mapping carries a discriminator.
func (m *FieldMapping) HasFilter() bool {
	return m.FilterKey != ""
}

// EffectiveConfidence returns the confidence score, treating an absent
// score on manually created mappings as full confidence.
func (m *FieldMapping) EffectiveConfidence() float64 {
	if m.ConfidenceScore == nil {
		return defaultManualConfidence
	}
	return *m.ConfidenceScore
}

// tripleKey identifies a mapping for duplicate detection.
func (m *FieldMapping) tripleKey() string {
	return m.SourceTable + "\x00" + m.SourceField + "\x00" + m.DestinationFieldName
}
