package mapping

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Repository is the single authoritative store of field mappings. Seed
// mappings are just an initial bulk insert; there is no parallel static
// table that could diverge from it.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repository over an open database handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new mapping. A duplicate (source_table, source_field,
// destination_field_name) triple is rejected with ErrMappingConflict and
// nothing is written.
func (r *Repository) Create(m *FieldMapping) error {
	var count int64
	err := r.db.Model(&FieldMapping{}).
		Where("source_table = ? AND source_field = ? AND destination_field_name = ?",
			m.SourceTable, m.SourceField, m.DestinationFieldName).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check for duplicate mapping: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s.%s -> %s", ErrMappingConflict,
			m.SourceTable, m.SourceField, m.DestinationFieldName)
	}
	if err := r.db.Create(m).Error; err != nil {
		return fmt.Errorf("failed to create mapping: %w", err)
	}
	return nil
}

// Get loads one mapping by id.
func (r *Repository) Get(id string) (*FieldMapping, error) {
	var m FieldMapping
	err := r.db.First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMappingNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping %s: %w", id, err)
	}
	return &m, nil
}

// Update persists changes to an existing mapping row. Moving the row
// onto another mapping's (source_table, source_field,
// destination_field_name) triple is rejected with ErrMappingConflict.
func (r *Repository) Update(m *FieldMapping) error {
	if m.ID == "" {
		return fmt.Errorf("%w: empty id", ErrMappingNotFound)
	}
	var count int64
	err := r.db.Model(&FieldMapping{}).
		Where("source_table = ? AND source_field = ? AND destination_field_name = ? AND id <> ?",
			m.SourceTable, m.SourceField, m.DestinationFieldName, m.ID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check for duplicate mapping: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s.%s -> %s", ErrMappingConflict,
			m.SourceTable, m.SourceField, m.DestinationFieldName)
	}
	res := r.db.Model(&FieldMapping{}).Where("id = ?", m.ID).Updates(map[string]any{
		"document_type":          m.DocumentType,
		"source_table":           m.SourceTable,
		"source_field":           m.SourceField,
		"destination_field_name": m.DestinationFieldName,
		"filter_key":             m.FilterKey,
		"filter_value":           m.FilterValue,
		"confidence_score":       m.ConfidenceScore,
		"mapping_status":         m.MappingStatus,
		"is_active":              m.IsActive,
		"notes":                  m.Notes,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update mapping %s: %w", m.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrMappingNotFound, m.ID)
	}
	return nil
}

// Verify marks a mapping as confirmed by a curator. This is the only
// transition into the verified status.
func (r *Repository) Verify(id string) error {
	res := r.db.Model(&FieldMapping{}).Where("id = ?", id).
		Updates(map[string]any{"mapping_status": StatusVerified, "is_active": true})
	if res.Error != nil {
		return fmt.Errorf("failed to verify mapping %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrMappingNotFound, id)
	}
	return nil
}

// SetActive toggles a mapping without deleting it; inactive mappings are
// kept for audit but ignored by the fill engine.
func (r *Repository) SetActive(id string, active bool) error {
	res := r.db.Model(&FieldMapping{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return fmt.Errorf("failed to toggle mapping %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrMappingNotFound, id)
	}
	return nil
}

// Delete removes one mapping by id.
func (r *Repository) Delete(id string) error {
	res := r.db.Delete(&FieldMapping{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete mapping %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrMappingNotFound, id)
	}
	return nil
}

// DeleteByDocumentType bulk-removes all mappings of one document type and
// returns how many rows were deleted.
func (r *Repository) DeleteByDocumentType(documentType string) (int64, error) {
	res := r.db.Delete(&FieldMapping{}, "document_type = ?", documentType)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete mappings for %s: %w", documentType, res.Error)
	}
	return res.RowsAffected, nil
}

// ListByDocumentType returns all mappings of one document type, or every
// mapping when documentType is empty.
func (r *Repository) ListByDocumentType(documentType string) ([]FieldMapping, error) {
	var mappings []FieldMapping
	q := r.db.Order("document_type, destination_field_name")
	if documentType != "" {
		q = q.Where("document_type = ?", documentType)
	}
	if err := q.Find(&mappings).Error; err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	return mappings, nil
}

// ListActive returns the active mappings of one document type, the set
// the fill engine operates on.
func (r *Repository) ListActive(documentType string) ([]FieldMapping, error) {
	var mappings []FieldMapping
	err := r.db.Where("document_type = ? AND is_active = ?", documentType, true).
		Order("destination_field_name").Find(&mappings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active mappings for %s: %w", documentType, err)
	}
	return mappings, nil
}

// Count returns the number of mapping rows.
func (r *Repository) Count() (int64, error) {
	var count int64
	if err := r.db.Model(&FieldMapping{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count mappings: %w", err)
	}
	return count, nil
}

// ExportJSON renders all mappings as a JSON array suitable for backup and
// diffing; ImportJSON accepts the same format back.
func (r *Repository) ExportJSON() ([]byte, error) {
	mappings, err := r.ListByDocumentType("")
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(mappings, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mappings: %w", err)
	}
	return data, nil
}

// ImportResult reports the outcome of a bulk import.
type ImportResult struct {
	Imported  int `json:"imported"`
	Conflicts int `json:"conflicts"`
}

// ImportJSON restores mappings from an export. Rows whose triple already
// exists are counted as conflicts and skipped; import is per row, never
// all-or-nothing.
func (r *Repository) ImportJSON(data []byte) (*ImportResult, error) {
	var mappings []FieldMapping
	if err := json.Unmarshal(data, &mappings); err != nil {
		return nil, fmt.Errorf("failed to parse mapping import: %w", err)
	}
	return r.BulkInsert(mappings)
}

// BulkInsert inserts a batch of mappings one by one, skipping duplicate
// triples. Used for imports and for the startup seed.
func (r *Repository) BulkInsert(mappings []FieldMapping) (*ImportResult, error) {
	result := &ImportResult{}
	for i := range mappings {
		m := mappings[i]
		m.DeletedAt = gorm.DeletedAt{}
		err := r.Create(&m)
		switch {
		case errors.Is(err, ErrMappingConflict):
			result.Conflicts++
		case err != nil:
			return result, err
		default:
			result.Imported++
		}
	}
	return result, nil
}
