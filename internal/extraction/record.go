// Package extraction stores the field/value/confidence rows produced by
// the external document extraction service and wraps the HTTP clients for
// that service and the semantic field classifier. The engine never
// interprets extraction output beyond filtering it against the schema
// catalog's column allowlist.
package extraction

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/schema"
)

// Record is one row of extracted values for an uploaded document
// instance. Fields and confidence scores are stored as JSON blobs; the
// engine treats them as opaque bags.
type Record struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	UserID       string    `json:"user_id" gorm:"index;not null"`
	DocumentType string    `json:"document_type" gorm:"index;not null"`
	SourceTable  string    `json:"source_table" gorm:"not null"`
	Fields       string    `json:"-" gorm:"type:text"`
	Confidences  string    `json:"-" gorm:"type:text"`
	SourceFile   string    `json:"source_file,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the table name for Record.
func (Record) TableName() string {
	return "extraction_records"
}

// BeforeCreate assigns a fresh id when none was supplied.
func (r *Record) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// NewRecord builds a record from an extraction response, keeping only
// fields present in the catalog's allowlist for the target table.
// Unknown columns are dropped silently; the collaborator is untrusted.
func NewRecord(
	userID, documentType, sourceTable, sourceFile string,
	fields map[string]any,
	confidences map[string]float64,
	catalog *schema.Catalog,
) (*Record, error) {
	allowed := catalog.Allowlist(sourceTable)
	kept := make(map[string]any)
	keptConf := make(map[string]float64)
	for name, value := range fields {
		if !allowed[name] {
			continue
		}
		kept[name] = value
		if score, ok := confidences[name]; ok {
			keptConf[name] = score
		}
	}

	fieldsJSON, err := json.Marshal(kept)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extraction fields: %w", err)
	}
	confJSON, err := json.Marshal(keptConf)
	if err != nil {
		return nil, fmt.Errorf("failed to encode confidence scores: %w", err)
	}

	return &Record{
		UserID:       userID,
		DocumentType: documentType,
		SourceTable:  sourceTable,
		SourceFile:   sourceFile,
		Fields:       string(fieldsJSON),
		Confidences:  string(confJSON),
	}, nil
}

// FieldMap decodes the stored value bag.
func (r *Record) FieldMap() (map[string]any, error) {
	fields := make(map[string]any)
	if r.Fields == "" {
		return fields, nil
	}
	if err := json.Unmarshal([]byte(r.Fields), &fields); err != nil {
		return nil, fmt.Errorf("failed to decode extraction fields of record %s: %w", r.ID, err)
	}
	return fields, nil
}

// ConfidenceMap decodes the stored per-field confidence scores.
func (r *Record) ConfidenceMap() (map[string]float64, error) {
	scores := make(map[string]float64)
	if r.Confidences == "" {
		return scores, nil
	}
	if err := json.Unmarshal([]byte(r.Confidences), &scores); err != nil {
		return nil, fmt.Errorf("failed to decode confidence scores of record %s: %w", r.ID, err)
	}
	return scores, nil
}
