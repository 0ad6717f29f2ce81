package extraction

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/schema"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Record{}))
	return db
}

func TestNewRecord_AllowlistFiltering(t *testing.T) {
	catalog := schema.NewCatalog([]schema.Column{
		{Table: "kind", Name: "vorname", Type: "text"},
		{Table: "kind", Name: "geburtsdatum", Type: "date"},
	})

	record, err := NewRecord("user-1", "geburtsurkunde", "kind", "scan.pdf",
		map[string]any{
			"vorname":      "Anna",
			"geburtsdatum": "14.03.2024",
			"injected":     "DROP TABLE kind",
		},
		map[string]float64{
			"vorname":  0.98,
			"injected": 0.99,
		},
		catalog)
	require.NoError(t, err)

	fields, err := record.FieldMap()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"vorname": "Anna", "geburtsdatum": "14.03.2024"}, fields)

	scores, err := record.ConfidenceMap()
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"vorname": 0.98}, scores)
}

func TestNewRecord_UnknownTableDropsEverything(t *testing.T) {
	catalog := schema.NewCatalog([]schema.Column{
		{Table: "kind", Name: "vorname", Type: "text"},
	})

	record, err := NewRecord("user-1", "sonstiges", "nicht_da", "",
		map[string]any{"vorname": "Anna"}, nil, catalog)
	require.NoError(t, err)

	fields, err := record.FieldMap()
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestStore_RowsFor(t *testing.T) {
	store := NewStore(testDB(t))
	catalog := schema.NewCatalog([]schema.Column{
		{Table: "eltern_dokumente", Name: "person_type", Type: "text"},
		{Table: "eltern_dokumente", Name: "vorname", Type: "text"},
	})

	for _, fields := range []map[string]any{
		{"person_type": "mutter", "vorname": "Anna"},
		{"person_type": "vater", "vorname": "Bernd"},
	} {
		record, err := NewRecord("user-1", "personalausweis", "eltern_dokumente", "", fields, nil, catalog)
		require.NoError(t, err)
		require.NoError(t, store.Save(record))
		assert.NotEmpty(t, record.ID)
	}

	// A record of another user must stay invisible.
	other, err := NewRecord("user-2", "personalausweis", "eltern_dokumente", "",
		map[string]any{"person_type": "mutter"}, nil, catalog)
	require.NoError(t, err)
	require.NoError(t, store.Save(other))

	rows, err := store.RowsFor("user-1", "personalausweis", "eltern_dokumente")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	types := []string{rows[0]["person_type"].(string), rows[1]["person_type"].(string)}
	assert.ElementsMatch(t, []string{"mutter", "vater"}, types)

	rows, err = store.RowsFor("user-1", "personalausweis", "andere_tabelle")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
