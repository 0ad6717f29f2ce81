package workflow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/form"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/form/formtest"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/mapping"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/storage"
)

// fakeRows serves canned extraction rows keyed by document type and table.
type fakeRows struct {
	rows map[string][]map[string]any
}

func (f *fakeRows) RowsFor(_, documentType, sourceTable string) ([]map[string]any, error) {
	return f.rows[documentType+"/"+sourceTable], nil
}

// fakeMappings serves canned active mappings per document type.
type fakeMappings struct {
	mappings map[string][]mapping.FieldMapping
}

func (f *fakeMappings) ListActive(documentType string) ([]mapping.FieldMapping, error) {
	return f.mappings[documentType], nil
}

func activeMapping(id, docType, table, field, destination string) mapping.FieldMapping {
	return mapping.FieldMapping{
		ID:                   id,
		DocumentType:         docType,
		SourceTable:          table,
		SourceField:          field,
		DestinationFieldName: destination,
		MappingStatus:        mapping.StatusVerified,
		IsActive:             true,
	}
}

func testSteps() []Step {
	return []Step{
		{Index: 1, Name: "Geburtsurkunde", DocumentType: "geburtsurkunde", SourceTable: "kind"},
		{Index: 2, Name: "Personalausweis Mutter", DocumentType: "personalausweis",
			SourceTable: "eltern_dokumente", FilterKey: "person_type", FilterValue: "mutter"},
	}
}

type orchestratorFixture struct {
	orchestrator *Orchestrator
	rows         *fakeRows
	mappings     *fakeMappings
	store        *storage.Store
	db           *gorm.DB
}

func newFixture(t *testing.T) *orchestratorFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Progress{}))

	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)

	rows := &fakeRows{rows: map[string][]map[string]any{
		"geburtsurkunde/kind": {
			{"vorname": "Anna", "mehrling": "nein"},
		},
		"personalausweis/eltern_dokumente": {
			{"person_type": "mutter", "nachname": "Schmidt"},
			{"person_type": "vater", "nachname": "Falsch"},
		},
	}}

	mappings := &fakeMappings{mappings: map[string][]mapping.FieldMapping{
		"geburtsurkunde": {
			activeMapping("m1", "geburtsurkunde", "kind", "vorname", "txt.vorname1A 4"),
			activeMapping("m2", "geburtsurkunde", "kind", "mehrling", "chk.mehrling"),
		},
		"personalausweis": {
			activeMapping("m3", "personalausweis", "eltern_dokumente", "nachname", "txt.nachname1A 4"),
		},
	}}

	orchestrator := NewOrchestrator(db, mappings, rows, form.NewEngine(false), store,
		formtest.WriteTemplate(t), testSteps())
	return &orchestratorFixture{orchestrator: orchestrator, rows: rows, mappings: mappings, store: store, db: db}
}

func TestOrchestrator_Advance_ChainsSteps(t *testing.T) {
	f := newFixture(t)

	first, err := f.orchestrator.Advance("user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Step.Index)
	assert.False(t, first.Completed)
	assert.Equal(t, 1, first.Stats.FilledCount)
	// The false-like multiple-birth checkbox is skipped, not failed.
	assert.Contains(t, first.Stats.SkippedFields, "chk.mehrling")

	second, err := f.orchestrator.Advance("user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Step.Index)
	assert.True(t, second.Completed)

	// The second output must still carry the first step's value.
	data, err := f.store.Read(second.OutputPath)
	require.NoError(t, err)
	info, err := form.NewDescriptorReader(false).ReadBytes(data)
	require.NoError(t, err)

	values := make(map[string]string)
	for _, d := range info.Fields {
		values[d.Name] = d.Value
	}
	assert.Equal(t, "Anna", values["txt.vorname1A 4"])
	assert.Equal(t, "Schmidt", values["txt.nachname1A 4"])

	status, err := f.orchestrator.GetStatus("user-1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, status.CompletedSteps)
	assert.Equal(t, 3, status.CurrentStep)

	_, err = f.orchestrator.Advance("user-1")
	assert.True(t, errors.Is(err, ErrWorkflowComplete))
}

func TestOrchestrator_Advance_DiscriminatorPicksRow(t *testing.T) {
	f := newFixture(t)

	_, err := f.orchestrator.Advance("user-1")
	require.NoError(t, err)
	second, err := f.orchestrator.Advance("user-1")
	require.NoError(t, err)

	data, err := f.store.Read(second.OutputPath)
	require.NoError(t, err)
	info, err := form.NewDescriptorReader(false).ReadBytes(data)
	require.NoError(t, err)
	for _, d := range info.Fields {
		if d.Name == "txt.nachname1A 4" {
			assert.Equal(t, "Schmidt", d.Value, "must use the mutter row, not the vater row")
		}
	}
}

func TestOrchestrator_Advance_NoExtractionRow(t *testing.T) {
	f := newFixture(t)
	delete(f.rows.rows, "geburtsurkunde/kind")

	_, err := f.orchestrator.Advance("user-1")
	assert.True(t, errors.Is(err, ErrNoExtractionRow))

	status, err := f.orchestrator.GetStatus("user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, status.CurrentStep, "a failed advance must not move the workflow")
	assert.Empty(t, status.CompletedSteps)
}

func TestOrchestrator_Skip(t *testing.T) {
	f := newFixture(t)

	// Skipping a step that has data is rejected.
	_, err := f.orchestrator.Skip("user-1")
	assert.True(t, errors.Is(err, ErrSkipNotAllowed))

	delete(f.rows.rows, "geburtsurkunde/kind")
	status, err := f.orchestrator.Skip("user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, status.CurrentStep)
	assert.Empty(t, status.CompletedSteps, "a skipped step is not completed")
}

func TestOrchestrator_Back(t *testing.T) {
	f := newFixture(t)

	// At the first step, back is a no-op.
	status, err := f.orchestrator.Back("user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, status.CurrentStep)

	_, err = f.orchestrator.Advance("user-1")
	require.NoError(t, err)

	status, err = f.orchestrator.Back("user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, status.CurrentStep)
	// Going back keeps the completed set and the partial output.
	assert.Equal(t, []int{1}, status.CompletedSteps)
	assert.NotEmpty(t, status.PartialOutputPath)
}

func TestOrchestrator_Advance_RerunIsIdempotent(t *testing.T) {
	f := newFixture(t)

	_, err := f.orchestrator.Advance("user-1")
	require.NoError(t, err)
	_, err = f.orchestrator.Back("user-1")
	require.NoError(t, err)

	rerun, err := f.orchestrator.Advance("user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, rerun.Step.Index)

	status, err := f.orchestrator.GetStatus("user-1")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, status.CompletedSteps, "re-running a step must not duplicate it")
}

func TestOrchestrator_Advance_TemplateLoadFailureLeavesProgress(t *testing.T) {
	f := newFixture(t)
	f.orchestrator.templatePath = filepath.Join(t.TempDir(), "missing.pdf")

	_, err := f.orchestrator.Advance("user-1")
	require.Error(t, err)

	var loadErr *form.TemplateLoadError
	assert.True(t, errors.As(err, &loadErr))

	status, err := f.orchestrator.GetStatus("user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, status.CurrentStep)
	assert.Empty(t, status.CompletedSteps)
	assert.Empty(t, status.PartialOutputPath)
}

func TestOrchestrator_Advance_CorruptPartialOutput(t *testing.T) {
	f := newFixture(t)

	_, err := f.orchestrator.Advance("user-1")
	require.NoError(t, err)

	status, err := f.orchestrator.GetStatus("user-1")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(status.PartialOutputPath, []byte("corrupted"), 0o640))

	_, err = f.orchestrator.Advance("user-1")
	var loadErr *form.TemplateLoadError
	assert.True(t, errors.As(err, &loadErr))

	after, err := f.orchestrator.GetStatus("user-1")
	require.NoError(t, err)
	assert.Equal(t, status.CurrentStep, after.CurrentStep)
	assert.Equal(t, status.CompletedSteps, after.CompletedSteps)
}

func TestOrchestrator_Advance_UnresolvedRowBecomesFailure(t *testing.T) {
	f := newFixture(t)
	// Only a vater row exists, so the mutter-filtered step 2 mapping
	// cannot resolve a row. The step still has data, so it is not
	// skippable and the field counts as failed.
	f.rows.rows["personalausweis/eltern_dokumente"] = []map[string]any{
		{"person_type": "vater", "nachname": "Falsch"},
	}

	_, err := f.orchestrator.Advance("user-1")
	require.NoError(t, err)
	result, err := f.orchestrator.Advance("user-1")
	require.NoError(t, err)

	var failed []string
	for _, fail := range result.Stats.FailedFields {
		failed = append(failed, fail.Field)
	}
	assert.Contains(t, failed, "txt.nachname1A 4")
	assert.NotContains(t, result.Stats.SkippedFields, "txt.nachname1A 4")
	assert.Equal(t, result.Stats.TotalTemplateFields,
		len(result.Stats.FilledFields)+len(result.Stats.SkippedFields)+len(result.Stats.FailedFields))
}

func TestOrchestrator_Advance_FailedFieldNotInValueSnapshot(t *testing.T) {
	f := newFixture(t)
	// "IX" is not one of the dropdown's options, so the assignment fails
	// inside the engine. The stored value snapshot must only carry what
	// was actually written.
	f.rows.rows["geburtsurkunde/kind"][0]["steuerklasse"] = "IX"
	f.mappings.mappings["geburtsurkunde"] = append(f.mappings.mappings["geburtsurkunde"],
		activeMapping("m4", "geburtsurkunde", "kind", "steuerklasse", "dd.steuerklasse"))

	result, err := f.orchestrator.Advance("user-1")
	require.NoError(t, err)

	var failed []string
	for _, fail := range result.Stats.FailedFields {
		failed = append(failed, fail.Field)
	}
	require.Contains(t, failed, "dd.steuerklasse")

	var progress Progress
	require.NoError(t, f.db.Where("user_id = ?", "user-1").First(&progress).Error)
	values := progress.FieldValues()
	assert.Equal(t, "Anna", values["txt.vorname1A 4"])
	assert.NotContains(t, values, "dd.steuerklasse")
}

func TestOrchestrator_Advance_UnresolvedRowForUnknownFieldStillReported(t *testing.T) {
	f := newFixture(t)
	// The mapping's destination does not exist in the document AND its
	// row cannot be resolved. Neither problem may swallow the other.
	f.rows.rows["personalausweis/eltern_dokumente"] = []map[string]any{
		{"person_type": "vater", "nachname": "Falsch"},
	}
	f.mappings.mappings["personalausweis"] = []mapping.FieldMapping{
		activeMapping("m3", "personalausweis", "eltern_dokumente", "nachname", "txt.gibtsnicht"),
	}

	_, err := f.orchestrator.Advance("user-1")
	require.NoError(t, err)
	result, err := f.orchestrator.Advance("user-1")
	require.NoError(t, err)

	var failed []string
	for _, fail := range result.Stats.FailedFields {
		failed = append(failed, fail.Field)
	}
	assert.Contains(t, failed, "txt.gibtsnicht")
}

func TestOrchestrator_SeparateUsersDoNotShareProgress(t *testing.T) {
	f := newFixture(t)

	_, err := f.orchestrator.Advance("user-1")
	require.NoError(t, err)

	status, err := f.orchestrator.GetStatus("user-2")
	require.NoError(t, err)
	assert.Equal(t, 1, status.CurrentStep)
	assert.Empty(t, status.CompletedSteps)
}

func TestOrchestrator_EmptyUserID(t *testing.T) {
	f := newFixture(t)
	_, err := f.orchestrator.Advance("")
	assert.Error(t, err)
}
