package mapping

import (
	"fmt"
	"strings"
)

// Row is one extraction row as an opaque bag of named values.
type Row = map[string]any

// SelectRow picks the extraction row a mapping applies to. With a filter
// condition, it is the single row whose column equals the condition's
// value; without one, any single available row. Zero matches, or
// multiple rows without a condition, are ambiguous and yield
// ErrUnresolvedField. A row missing the condition's column is skipped,
// never an error.
func SelectRow(m *FieldMapping, rows []Row) (Row, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows for table %s", ErrUnresolvedField, m.SourceTable)
	}

	if !m.HasFilter() {
		if len(rows) > 1 {
			return nil, fmt.Errorf("%w: %d rows for table %s and no filter condition",
				ErrUnresolvedField, len(rows), m.SourceTable)
		}
		return rows[0], nil
	}

	for _, row := range rows {
		raw, ok := row[m.FilterKey]
		if !ok {
			continue
		}
		if equalsFold(raw, m.FilterValue) {
			return row, nil
		}
	}
	return nil, fmt.Errorf("%w: no row where %s = %q in table %s",
		ErrUnresolvedField, m.FilterKey, m.FilterValue, m.SourceTable)
}

// equalsFold compares a loosely-typed row value against the condition
// value, case-insensitively for strings.
func equalsFold(raw any, want string) bool {
	switch v := raw.(type) {
	case string:
		return strings.EqualFold(strings.TrimSpace(v), want)
	case nil:
		return false
	default:
		return strings.EqualFold(fmt.Sprintf("%v", v), want)
	}
}
