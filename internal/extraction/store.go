package extraction

import (
	"fmt"

	"gorm.io/gorm"
)

// Store persists extraction records and serves them back as plain rows
// for the workflow orchestrator.
type Store struct {
	db *gorm.DB
}

// NewStore creates a store over an open database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Save persists one extraction record.
func (s *Store) Save(r *Record) error {
	if err := s.db.Create(r).Error; err != nil {
		return fmt.Errorf("failed to save extraction record: %w", err)
	}
	return nil
}

// ListByUser returns all records of one user, newest first.
func (s *Store) ListByUser(userID string) ([]Record, error) {
	var records []Record
	err := s.db.Where("user_id = ?", userID).
		Order("created_at desc").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list extraction records for %s: %w", userID, err)
	}
	return records, nil
}

// RowsFor returns the decoded value bags of a user's records for one
// document type and source table. The discriminator column stays inside
// the row; picking the right row is the filter evaluator's job.
func (s *Store) RowsFor(userID, documentType, sourceTable string) ([]map[string]any, error) {
	var records []Record
	err := s.db.Where("user_id = ? AND document_type = ? AND source_table = ?",
		userID, documentType, sourceTable).
		Order("created_at").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load extraction rows: %w", err)
	}

	rows := make([]map[string]any, 0, len(records))
	for i := range records {
		row, err := records[i].FieldMap()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
