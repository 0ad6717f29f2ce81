package form

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/form/formtest"
)

func TestDescriptorReader_ReadFile(t *testing.T) {
	path := formtest.WriteTemplate(t)

	info, err := NewDescriptorReader(false).ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, path, info.Path)
	assert.Equal(t, 1, info.PageCount)
	require.Len(t, info.Fields, formtest.FieldCount)

	byName := make(map[string]FieldDescriptor)
	for _, f := range info.Fields {
		byName[f.Name] = f
	}

	tests := []struct {
		field    string
		wantType FieldType
	}{
		{field: "txt.vorname1A 4", wantType: FieldTypeText},
		{field: "txt.nachname1A 4", wantType: FieldTypeText},
		{field: "chk.mehrling", wantType: FieldTypeCheckbox},
		{field: "dd.steuerklasse", wantType: FieldTypeDropdown},
		{field: "rad.geschlecht", wantType: FieldTypeRadio},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			d, ok := byName[tt.field]
			require.True(t, ok, "field %q missing from descriptors", tt.field)
			assert.Equal(t, tt.wantType, d.Type)
			assert.Equal(t, 1, d.Page)
			require.NotNil(t, d.Bounds)
			assert.Greater(t, d.Bounds.Width, 0.0)
		})
	}

	assert.Equal(t, 40, byName["txt.vorname1A 4"].MaxLength)
	assert.Equal(t, []string{"I", "II", "III"}, byName["dd.steuerklasse"].Options)
}

func TestDescriptorReader_ReadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T) string
	}{
		{
			name: "missing file",
			prepare: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "missing.pdf")
			},
		},
		{
			name: "not a pdf",
			prepare: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "garbage.pdf")
				require.NoError(t, os.WriteFile(path, []byte("not a pdf at all"), 0o640))
				return path
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDescriptorReader(false).ReadFile(tt.prepare(t))
			require.Error(t, err)

			var loadErr *TemplateLoadError
			assert.True(t, errors.As(err, &loadErr))
		})
	}
}
