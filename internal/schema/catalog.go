// Package schema provides a read-only snapshot of the source entities
// (tables and columns) that extracted document values are stored under.
// The catalog is matching input for the mapping resolver and the column
// allowlist applied to extraction responses; it is never mutated after
// construction.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Column describes one column of a source table.
type Column struct {
	Table string `json:"table"`
	Name  string `json:"name"`
	Type  string `json:"type"`
}

// Catalog is an immutable set of source columns indexed by table.
type Catalog struct {
	columns []Column
	byTable map[string][]Column
}

// NewCatalog builds a catalog from a column list. Column and table names
// are normalized to lower case once, so all lookups are case-insensitive.
func NewCatalog(columns []Column) *Catalog {
	c := &Catalog{
		columns: make([]Column, 0, len(columns)),
		byTable: make(map[string][]Column),
	}
	for _, col := range columns {
		col.Table = strings.ToLower(strings.TrimSpace(col.Table))
		col.Name = strings.ToLower(strings.TrimSpace(col.Name))
		if col.Table == "" || col.Name == "" {
			continue
		}
		c.columns = append(c.columns, col)
		c.byTable[col.Table] = append(c.byTable[col.Table], col)
	}
	return c
}

// LoadCatalog reads a catalog snapshot from a JSON file containing a
// flat column array.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var columns []Column
	if err := json.Unmarshal(data, &columns); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}
	return NewCatalog(columns), nil
}

// Columns returns all columns in the catalog.
func (c *Catalog) Columns() []Column {
	out := make([]Column, len(c.columns))
	copy(out, c.columns)
	return out
}

// Tables returns the sorted list of table names.
func (c *Catalog) Tables() []string {
	tables := make([]string, 0, len(c.byTable))
	for t := range c.byTable {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

// ColumnsFor returns the columns of a single table, or nil if the table
// is unknown.
func (c *Catalog) ColumnsFor(table string) []Column {
	cols := c.byTable[strings.ToLower(table)]
	out := make([]Column, len(cols))
	copy(out, cols)
	return out
}

// HasColumn reports whether a table has a column with the given name.
func (c *Catalog) HasColumn(table, name string) bool {
	name = strings.ToLower(name)
	for _, col := range c.byTable[strings.ToLower(table)] {
		if col.Name == name {
			return true
		}
	}
	return false
}

// Allowlist returns the set of valid column names for a table, used to
// filter untrusted extraction responses before storage.
func (c *Catalog) Allowlist(table string) map[string]bool {
	allowed := make(map[string]bool)
	for _, col := range c.byTable[strings.ToLower(table)] {
		allowed[col.Name] = true
	}
	return allowed
}

// DefaultCatalog returns the built-in snapshot of the benefit
// application's source tables. A catalog file supplied via configuration
// replaces it entirely; the two are never merged.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Column{
		{Table: "kind", Name: "vorname", Type: "text"},
		{Table: "kind", Name: "nachname", Type: "text"},
		{Table: "kind", Name: "geburtsdatum", Type: "date"},
		{Table: "kind", Name: "geburtsort", Type: "text"},
		{Table: "kind", Name: "geschlecht", Type: "text"},
		{Table: "kind", Name: "mehrling", Type: "boolean"},

		{Table: "eltern_dokumente", Name: "person_type", Type: "text"},
		{Table: "eltern_dokumente", Name: "vorname", Type: "text"},
		{Table: "eltern_dokumente", Name: "nachname", Type: "text"},
		{Table: "eltern_dokumente", Name: "geburtsdatum", Type: "date"},
		{Table: "eltern_dokumente", Name: "geburtsname", Type: "text"},
		{Table: "eltern_dokumente", Name: "staatsangehoerigkeit", Type: "text"},
		{Table: "eltern_dokumente", Name: "steuer_id", Type: "text"},
		{Table: "eltern_dokumente", Name: "strasse", Type: "text"},
		{Table: "eltern_dokumente", Name: "hausnummer", Type: "text"},
		{Table: "eltern_dokumente", Name: "plz", Type: "text"},
		{Table: "eltern_dokumente", Name: "wohnort", Type: "text"},
		{Table: "eltern_dokumente", Name: "familienstand", Type: "text"},

		{Table: "einkommen", Name: "person_type", Type: "text"},
		{Table: "einkommen", Name: "arbeitgeber", Type: "text"},
		{Table: "einkommen", Name: "monatliches_netto", Type: "number"},
		{Table: "einkommen", Name: "monatliches_brutto", Type: "number"},
		{Table: "einkommen", Name: "beschaeftigt_seit", Type: "date"},
		{Table: "einkommen", Name: "selbststaendig", Type: "boolean"},
		{Table: "einkommen", Name: "steuerklasse", Type: "text"},

		{Table: "bankverbindung", Name: "iban", Type: "text"},
		{Table: "bankverbindung", Name: "bic", Type: "text"},
		{Table: "bankverbindung", Name: "kontoinhaber", Type: "text"},
		{Table: "bankverbindung", Name: "kreditinstitut", Type: "text"},

		{Table: "krankenversicherung", Name: "person_type", Type: "text"},
		{Table: "krankenversicherung", Name: "versicherung", Type: "text"},
		{Table: "krankenversicherung", Name: "versichertennummer", Type: "text"},
		{Table: "krankenversicherung", Name: "versicherungsart", Type: "text"},

		{Table: "elternzeit", Name: "person_type", Type: "text"},
		{Table: "elternzeit", Name: "beginn", Type: "date"},
		{Table: "elternzeit", Name: "ende", Type: "date"},
		{Table: "elternzeit", Name: "bezugsmonate", Type: "number"},
	})
}
