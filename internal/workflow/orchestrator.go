package workflow

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/form"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/mapping"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/storage"
)

// ErrWorkflowComplete is returned when advancing past the final step.
var ErrWorkflowComplete = errors.New("workflow already complete")

// ErrNoExtractionRow is returned when advancing a step for which no
// extraction row exists. The caller may upload the missing document and
// retry, or explicitly skip the step.
var ErrNoExtractionRow = errors.New("no extraction row for this step")

// ErrSkipNotAllowed is returned when skipping a step that has extraction
// data; such a step must be advanced, not skipped.
var ErrSkipNotAllowed = errors.New("step has extraction data and cannot be skipped")

// RowSource serves the extraction rows of one user for one step.
type RowSource interface {
	RowsFor(userID, documentType, sourceTable string) ([]map[string]any, error)
}

// MappingSource serves the active mappings of one document type.
type MappingSource interface {
	ListActive(documentType string) ([]mapping.FieldMapping, error)
}

// AdvanceResult reports one completed step.
type AdvanceResult struct {
	Step       Step           `json:"step"`
	OutputPath string         `json:"output_reference"`
	Stats      form.FillStats `json:"stats"`
	Completed  bool           `json:"workflow_completed"`
}

// StepStatus is one line of the workflow summary.
type StepStatus struct {
	Step      Step `json:"step"`
	Completed bool `json:"completed"`
	Current   bool `json:"current"`
}

// Status summarizes a user's progress.
type Status struct {
	UserID            string       `json:"user_id"`
	CurrentStep       int          `json:"current_step"`
	CompletedSteps    []int        `json:"completed_steps"`
	PartialOutputPath string       `json:"partial_output_path,omitempty"`
	Steps             []StepStatus `json:"steps"`
}

// Orchestrator walks the fixed step sequence for each user, invoking the
// fill engine chained on the previous step's output. Advances of one
// user are serialized through a per-user lock; different users never
// contend. Cross-process progress upserts stay last-writer-wins.
type Orchestrator struct {
	db           *gorm.DB
	mappings     MappingSource
	rows         RowSource
	engine       *form.Engine
	store        *storage.Store
	templatePath string
	steps        []Step

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewOrchestrator wires an orchestrator. A nil or empty steps slice
// falls back to the default sequence.
func NewOrchestrator(
	db *gorm.DB,
	mappings MappingSource,
	rows RowSource,
	engine *form.Engine,
	store *storage.Store,
	templatePath string,
	steps []Step,
) *Orchestrator {
	if len(steps) == 0 {
		steps = DefaultSteps()
	}
	return &Orchestrator{
		db:           db,
		mappings:     mappings,
		rows:         rows,
		engine:       engine,
		store:        store,
		templatePath: templatePath,
		steps:        steps,
		userLocks:    make(map[string]*sync.Mutex),
	}
}

// Steps returns the configured step sequence.
func (o *Orchestrator) Steps() []Step {
	out := make([]Step, len(o.steps))
	copy(out, o.steps)
	return out
}

// Advance executes the user's current step: resolve the extraction row,
// fill on top of the previous output, persist the new revision and mark
// the step complete. Progress is only written after the fill succeeded;
// a failed document load leaves it untouched.
func (o *Orchestrator) Advance(userID string) (*AdvanceResult, error) {
	unlock := o.lockUser(userID)
	defer unlock()

	progress, err := o.loadProgress(userID)
	if err != nil {
		return nil, err
	}
	if progress.CurrentStep > len(o.steps) {
		return nil, ErrWorkflowComplete
	}
	step := o.steps[progress.CurrentStep-1]

	rows, err := o.rows.RowsFor(userID, step.DocumentType, step.SourceTable)
	if err != nil {
		return nil, fmt.Errorf("failed to load extraction rows for step %d: %w", step.Index, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: step %d (%s)", ErrNoExtractionRow, step.Index, step.DocumentType)
	}

	active, err := o.mappings.ListActive(step.DocumentType)
	if err != nil {
		return nil, fmt.Errorf("failed to load mappings for step %d: %w", step.Index, err)
	}

	assignments, preFailures, candidates := o.buildAssignments(step, active, rows)

	source := progress.PartialOutputPath
	if source == "" {
		source = o.templatePath
	}

	result, err := o.engine.FillFile(source, assignments)
	if err != nil {
		// Fatal to this step only; progress stays as it was.
		return nil, err
	}
	mergeRowFailures(&result.Stats, preFailures)
	filledValues := snapshotFilledValues(result.Stats.FilledFields, candidates)

	outputPath, err := o.store.SaveRevision(userID, step.Index, result.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to persist step %d output: %w", step.Index, err)
	}

	progress.PartialOutputPath = outputPath
	if err := progress.MarkCompleted(step.Index); err != nil {
		return nil, err
	}
	if err := progress.MergeFieldValues(filledValues); err != nil {
		return nil, err
	}
	progress.CurrentStep++
	if err := o.db.Save(progress).Error; err != nil {
		return nil, fmt.Errorf("failed to persist workflow progress: %w", err)
	}

	return &AdvanceResult{
		Step:       step,
		OutputPath: outputPath,
		Stats:      result.Stats,
		Completed:  progress.CurrentStep > len(o.steps),
	}, nil
}

// Back moves the user one step back. Re-filling is idempotent, not
// additive, so going back carries no side effects on documents or the
// completed set.
func (o *Orchestrator) Back(userID string) (*Status, error) {
	unlock := o.lockUser(userID)
	defer unlock()

	progress, err := o.loadProgress(userID)
	if err != nil {
		return nil, err
	}
	if progress.CurrentStep > 1 {
		progress.CurrentStep--
		if err := o.db.Save(progress).Error; err != nil {
			return nil, fmt.Errorf("failed to persist workflow progress: %w", err)
		}
	}
	return o.status(progress), nil
}

// Skip moves past the current step without filling. It is only allowed
// when no extraction row exists for the step; the step is not added to
// the completed set.
func (o *Orchestrator) Skip(userID string) (*Status, error) {
	unlock := o.lockUser(userID)
	defer unlock()

	progress, err := o.loadProgress(userID)
	if err != nil {
		return nil, err
	}
	if progress.CurrentStep > len(o.steps) {
		return nil, ErrWorkflowComplete
	}
	step := o.steps[progress.CurrentStep-1]

	rows, err := o.rows.RowsFor(userID, step.DocumentType, step.SourceTable)
	if err != nil {
		return nil, fmt.Errorf("failed to load extraction rows for step %d: %w", step.Index, err)
	}
	if len(rows) > 0 {
		return nil, fmt.Errorf("%w: step %d (%s)", ErrSkipNotAllowed, step.Index, step.DocumentType)
	}

	progress.CurrentStep++
	if err := o.db.Save(progress).Error; err != nil {
		return nil, fmt.Errorf("failed to persist workflow progress: %w", err)
	}
	return o.status(progress), nil
}

// GetStatus returns the user's workflow summary.
func (o *Orchestrator) GetStatus(userID string) (*Status, error) {
	progress, err := o.loadProgress(userID)
	if err != nil {
		return nil, err
	}
	return o.status(progress), nil
}

// buildAssignments resolves every active mapping against the step's
// extraction rows. Mappings without their own discriminator inherit the
// step's. Row-resolution failures are collected, not fatal.
func (o *Orchestrator) buildAssignments(
	step Step,
	active []mapping.FieldMapping,
	rows []mapping.Row,
) ([]form.Assignment, []form.FieldFailure, map[string]string) {
	var assignments []form.Assignment
	var failures []form.FieldFailure
	candidates := make(map[string]string)

	for i := range active {
		m := active[i]
		if !m.HasFilter() && step.FilterKey != "" {
			m.SetFilterCondition(step.FilterKey, step.FilterValue)
		}

		row, err := mapping.SelectRow(&m, rows)
		if err != nil {
			failures = append(failures, form.FieldFailure{
				Field:     m.DestinationFieldName,
				MappingID: m.ID,
				Reason:    err.Error(),
			})
			continue
		}

		value := form.ResolveValue(row[m.SourceField])
		if value.IsEmpty() {
			continue
		}
		assignments = append(assignments, form.Assignment{
			FieldName: m.DestinationFieldName,
			Value:     value,
			MappingID: m.ID,
		})
		key := normalizeDestination(m.DestinationFieldName)
		if _, ok := candidates[key]; !ok {
			candidates[key] = value.String()
		}
	}
	return assignments, failures, candidates
}

// snapshotFilledValues keeps only the candidate values the engine
// actually wrote; a failed or skipped assignment never lands in the
// user's value snapshot.
func snapshotFilledValues(filled []string, candidates map[string]string) map[string]string {
	out := make(map[string]string, len(filled))
	for _, name := range filled {
		if v, ok := candidates[normalizeDestination(name)]; ok {
			out[name] = v
		}
	}
	return out
}

func normalizeDestination(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// mergeRowFailures reclassifies fields whose mapping could not resolve a
// row from skipped to failed, keeping the three buckets a partition of
// the document's field set. A failure whose destination is absent from
// the document has no bucket to move; it is appended so the step report
// still surfaces it.
func mergeRowFailures(stats *form.FillStats, failures []form.FieldFailure) {
	if len(failures) == 0 {
		return
	}
	skipped := make(map[string]bool, len(stats.SkippedFields))
	for _, name := range stats.SkippedFields {
		skipped[name] = true
	}
	present := make(map[string]bool, len(stats.FilledFields)+len(stats.FailedFields))
	for _, name := range stats.FilledFields {
		present[name] = true
	}
	for _, f := range stats.FailedFields {
		present[f.Field] = true
	}
	for _, f := range failures {
		switch {
		case skipped[f.Field]:
			skipped[f.Field] = false
			stats.FailedFields = append(stats.FailedFields, f)
		case !present[f.Field]:
			stats.FailedFields = append(stats.FailedFields, f)
			present[f.Field] = true
		}
	}
	var remaining []string
	for _, name := range stats.SkippedFields {
		if skipped[name] {
			remaining = append(remaining, name)
		}
	}
	stats.SkippedFields = remaining
}

// loadProgress finds or creates the user's progress row.
func (o *Orchestrator) loadProgress(userID string) (*Progress, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	var progress Progress
	err := o.db.Where("user_id = ?", userID).First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		progress = Progress{UserID: userID, CurrentStep: 1}
		if err := o.db.Create(&progress).Error; err != nil {
			return nil, fmt.Errorf("failed to create workflow progress: %w", err)
		}
		return &progress, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow progress: %w", err)
	}
	return &progress, nil
}

func (o *Orchestrator) status(progress *Progress) *Status {
	completed := progress.CompletedList()
	completedSet := make(map[int]bool, len(completed))
	for _, s := range completed {
		completedSet[s] = true
	}

	status := &Status{
		UserID:            progress.UserID,
		CurrentStep:       progress.CurrentStep,
		CompletedSteps:    completed,
		PartialOutputPath: progress.PartialOutputPath,
	}
	for _, step := range o.steps {
		status.Steps = append(status.Steps, StepStatus{
			Step:      step,
			Completed: completedSet[step.Index],
			Current:   step.Index == progress.CurrentStep,
		})
	}
	return status
}

// lockUser serializes operations per user id.
func (o *Orchestrator) lockUser(userID string) func() {
	o.mu.Lock()
	lock, ok := o.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		o.userLocks[userID] = lock
	}
	o.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
