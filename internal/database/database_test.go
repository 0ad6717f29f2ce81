package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "wizard.db")

	db, err := Open(path, false)
	require.NoError(t, err)

	for _, table := range []string{"field_mappings", "extraction_records", "workflow_progress"} {
		assert.True(t, db.Migrator().HasTable(table), "expected table %s", table)
	}
	assert.FileExists(t, path)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wizard.db")

	_, err := Open(path, false)
	require.NoError(t, err)

	// Migration must be idempotent across restarts.
	_, err = Open(path, true)
	assert.NoError(t, err)
}
