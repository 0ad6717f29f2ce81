package form

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/form/formtest"
)

func assign(field, value string) Assignment {
	return Assignment{FieldName: field, Value: ResolveValue(value), MappingID: "m-" + field}
}

// readBack re-reads the descriptors of a filled document.
func readBack(t *testing.T, output []byte) map[string]FieldDescriptor {
	t.Helper()
	info, err := NewDescriptorReader(false).ReadBytes(output)
	require.NoError(t, err)
	byName := make(map[string]FieldDescriptor, len(info.Fields))
	for _, f := range info.Fields {
		byName[f.Name] = f
	}
	return byName
}

func TestEngine_Fill_AllFieldTypes(t *testing.T) {
	engine := NewEngine(false)

	result, err := engine.Fill(bytes.NewReader(formtest.TemplatePDF()), []Assignment{
		assign("txt.vorname1A 4", "Anna"),
		assign("chk.mehrling", "ja"),
		assign("dd.steuerklasse", "II"),
		assign("rad.geschlecht", "M"),
	})
	require.NoError(t, err)

	assert.Equal(t, 4, result.Stats.FilledCount)
	assert.Equal(t, formtest.FieldCount, result.Stats.TotalTemplateFields)
	assert.Equal(t, []string{"txt.nachname1A 4"}, result.Stats.SkippedFields)
	assert.Empty(t, result.Stats.FailedFields)
	assert.Equal(t, 80, result.Stats.CompletionPercentage)

	fields := readBack(t, result.Output)
	assert.Equal(t, "Anna", fields["txt.vorname1A 4"].Value)
	assert.True(t, fields["chk.mehrling"].Checked)
	assert.Equal(t, "II", fields["dd.steuerklasse"].Value)
	assert.Equal(t, "M", fields["rad.geschlecht"].Value)
}

func TestEngine_Fill_PartitionInvariant(t *testing.T) {
	tests := []struct {
		name        string
		assignments []Assignment
	}{
		{name: "no assignments", assignments: nil},
		{
			name: "mixed outcome",
			assignments: []Assignment{
				assign("txt.vorname1A 4", "Anna"),
				assign("dd.steuerklasse", "IX"), // not an option
				assign("chk.mehrling", "nein"),  // false-like, skipped
			},
		},
		{
			name: "unknown destination",
			assignments: []Assignment{
				assign("txt.unbekannt", "x"),
				assign("txt.vorname1A 4", "Anna"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewEngine(false).Fill(bytes.NewReader(formtest.TemplatePDF()), tt.assignments)
			require.NoError(t, err)

			s := result.Stats
			documentFailures := 0
			for _, f := range s.FailedFields {
				if f.Field != "txt.unbekannt" {
					documentFailures++
				}
			}
			assert.Equal(t, s.TotalTemplateFields,
				len(s.FilledFields)+len(s.SkippedFields)+documentFailures,
				"filled, skipped and failed must partition the document's fields")
			assert.Equal(t, s.FilledCount, len(s.FilledFields))
		})
	}
}

func TestEngine_Fill_UnknownDestinationFails(t *testing.T) {
	result, err := NewEngine(false).Fill(bytes.NewReader(formtest.TemplatePDF()), []Assignment{
		assign("txt.unbekannt", "x"),
	})
	require.NoError(t, err)

	require.Len(t, result.Stats.FailedFields, 1)
	assert.Equal(t, "txt.unbekannt", result.Stats.FailedFields[0].Field)
	assert.Equal(t, "m-txt.unbekannt", result.Stats.FailedFields[0].MappingID)
	assert.Zero(t, result.Stats.FilledCount)
}

func TestEngine_Fill_InvalidDropdownOption(t *testing.T) {
	result, err := NewEngine(false).Fill(bytes.NewReader(formtest.TemplatePDF()), []Assignment{
		assign("dd.steuerklasse", "IX"),
	})
	require.NoError(t, err)

	require.Len(t, result.Stats.FailedFields, 1)
	assert.Equal(t, "dd.steuerklasse", result.Stats.FailedFields[0].Field)
	assert.Contains(t, result.Stats.FailedFields[0].Reason, "not an option")
}

func TestEngine_Fill_FalseCheckboxIsSkipped(t *testing.T) {
	result, err := NewEngine(false).Fill(bytes.NewReader(formtest.TemplatePDF()), []Assignment{
		assign("chk.mehrling", "nein"),
	})
	require.NoError(t, err)

	assert.Zero(t, result.Stats.FilledCount)
	assert.Contains(t, result.Stats.SkippedFields, "chk.mehrling")
	assert.Empty(t, result.Stats.FailedFields)

	fields := readBack(t, result.Output)
	assert.False(t, fields["chk.mehrling"].Checked)
}

func TestEngine_Fill_CheckboxNeverUnchecked(t *testing.T) {
	engine := NewEngine(false)

	first, err := engine.Fill(bytes.NewReader(formtest.TemplatePDF()), []Assignment{
		assign("chk.mehrling", "ja"),
	})
	require.NoError(t, err)
	require.True(t, readBack(t, first.Output)["chk.mehrling"].Checked)

	// A later pass with a false-like value must not clear the box.
	second, err := engine.Fill(bytes.NewReader(first.Output), []Assignment{
		assign("chk.mehrling", "nein"),
	})
	require.NoError(t, err)
	assert.True(t, readBack(t, second.Output)["chk.mehrling"].Checked)
}

func TestEngine_Fill_MaxLenTruncation(t *testing.T) {
	long := "Annagreta-Luise-Wilhelmine von Hohenzollern-Sigmaringen"
	require.Greater(t, len(long), 40)

	result, err := NewEngine(false).Fill(bytes.NewReader(formtest.TemplatePDF()), []Assignment{
		assign("txt.vorname1A 4", long),
	})
	require.NoError(t, err)

	fields := readBack(t, result.Output)
	assert.Equal(t, long[:40], fields["txt.vorname1A 4"].Value)
}

func TestEngine_Fill_MaxLenCountsRunes(t *testing.T) {
	// 39 ASCII runes followed by a two-byte umlaut; cutting at byte 40
	// would split the umlaut in half.
	long := strings.Repeat("A", 39) + "üX"
	require.Equal(t, 42, len(long))
	require.Equal(t, 41, len([]rune(long)))

	result, err := NewEngine(false).Fill(bytes.NewReader(formtest.TemplatePDF()), []Assignment{
		assign("txt.vorname1A 4", long),
	})
	require.NoError(t, err)

	fields := readBack(t, result.Output)
	got := fields["txt.vorname1A 4"].Value
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("A", 39)+"ü", got)
}

func TestEngine_Fill_FirstAssignmentWins(t *testing.T) {
	result, err := NewEngine(false).Fill(bytes.NewReader(formtest.TemplatePDF()), []Assignment{
		assign("txt.vorname1A 4", "Anna"),
		assign("txt.vorname1A 4", "Berta"),
	})
	require.NoError(t, err)

	fields := readBack(t, result.Output)
	assert.Equal(t, "Anna", fields["txt.vorname1A 4"].Value)
}

func TestEngine_Fill_ChainedRunPreservesEarlierValues(t *testing.T) {
	engine := NewEngine(false)

	first, err := engine.Fill(bytes.NewReader(formtest.TemplatePDF()), []Assignment{
		assign("txt.vorname1A 4", "Anna"),
	})
	require.NoError(t, err)

	second, err := engine.Fill(bytes.NewReader(first.Output), []Assignment{
		assign("txt.nachname1A 4", "Schmidt"),
	})
	require.NoError(t, err)

	fields := readBack(t, second.Output)
	assert.Equal(t, "Anna", fields["txt.vorname1A 4"].Value)
	assert.Equal(t, "Schmidt", fields["txt.nachname1A 4"].Value)
}

func TestEngine_Fill_InputBytesUntouched(t *testing.T) {
	input := formtest.TemplatePDF()
	pristine := formtest.TemplatePDF()

	_, err := NewEngine(false).Fill(bytes.NewReader(input), []Assignment{
		assign("txt.vorname1A 4", "Anna"),
	})
	require.NoError(t, err)
	assert.Equal(t, pristine, input)
}

func TestEngine_FillFile_MissingTemplate(t *testing.T) {
	_, err := NewEngine(false).FillFile(filepath.Join(t.TempDir(), "nope.pdf"), nil)
	require.Error(t, err)

	var loadErr *TemplateLoadError
	assert.True(t, errors.As(err, &loadErr))
}
