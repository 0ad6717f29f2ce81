package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgress_MarkCompleted(t *testing.T) {
	var p Progress
	assert.Nil(t, p.CompletedList())

	require.NoError(t, p.MarkCompleted(1))
	require.NoError(t, p.MarkCompleted(3))
	assert.Equal(t, []int{1, 3}, p.CompletedList())

	// Re-running a step must not duplicate its index.
	require.NoError(t, p.MarkCompleted(1))
	assert.Equal(t, []int{1, 3}, p.CompletedList())
}

func TestProgress_MergeFieldValues(t *testing.T) {
	var p Progress
	assert.Empty(t, p.FieldValues())

	require.NoError(t, p.MergeFieldValues(map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, p.MergeFieldValues(map[string]string{"b": "3", "c": "4"}))

	assert.Equal(t, map[string]string{"a": "1", "b": "3", "c": "4"}, p.FieldValues())
}

func TestProgress_CorruptPayloadsAreEmpty(t *testing.T) {
	p := Progress{CompletedSteps: "{oops", LastFieldValues: "{oops"}
	assert.Nil(t, p.CompletedList())
	assert.Empty(t, p.FieldValues())
}

func TestDefaultSteps(t *testing.T) {
	steps := DefaultSteps()
	require.Len(t, steps, 13)

	// Indices are 1-based and dense.
	for i, step := range steps {
		assert.Equal(t, i+1, step.Index)
		assert.NotEmpty(t, step.DocumentType)
		assert.NotEmpty(t, step.SourceTable)
	}

	// Paired parent steps share a document type but differ in the
	// discriminator value.
	assert.Equal(t, steps[1].DocumentType, steps[2].DocumentType)
	assert.Equal(t, "mutter", steps[1].FilterValue)
	assert.Equal(t, "vater", steps[2].FilterValue)
}
