package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Progress is the explicit per-user workflow state. There is exactly one
// row per user; every orchestrator call receives the user id explicitly,
// no session-ambient state exists.
type Progress struct {
	ID                string    `json:"id" gorm:"primaryKey"`
	UserID            string    `json:"user_id" gorm:"uniqueIndex;not null"`
	CurrentStep       int       `json:"current_step"`
	CompletedSteps    string    `json:"-" gorm:"type:text"`
	PartialOutputPath string    `json:"partial_output_path,omitempty"`
	LastFieldValues   string    `json:"-" gorm:"type:text"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName returns the table name for Progress.
func (Progress) TableName() string {
	return "workflow_progress"
}

// BeforeCreate assigns a fresh id when none was supplied.
func (p *Progress) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// CompletedList decodes the ordered completed-step indices.
func (p *Progress) CompletedList() []int {
	if p.CompletedSteps == "" {
		return nil
	}
	var steps []int
	if err := json.Unmarshal([]byte(p.CompletedSteps), &steps); err != nil {
		return nil
	}
	return steps
}

// MarkCompleted appends a step index to the completed set. The set is
// ordered and monotonic: an index already present is not re-appended.
func (p *Progress) MarkCompleted(step int) error {
	steps := p.CompletedList()
	for _, s := range steps {
		if s == step {
			return nil
		}
	}
	steps = append(steps, step)
	data, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("failed to encode completed steps: %w", err)
	}
	p.CompletedSteps = string(data)
	return nil
}

// FieldValues decodes the merged snapshot of all values filled so far.
func (p *Progress) FieldValues() map[string]string {
	values := make(map[string]string)
	if p.LastFieldValues == "" {
		return values
	}
	if err := json.Unmarshal([]byte(p.LastFieldValues), &values); err != nil {
		return make(map[string]string)
	}
	return values
}

// MergeFieldValues folds one step's filled values into the snapshot.
func (p *Progress) MergeFieldValues(filled map[string]string) error {
	values := p.FieldValues()
	for name, value := range filled {
		values[name] = value
	}
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode field values: %w", err)
	}
	p.LastFieldValues = string(data)
	return nil
}
