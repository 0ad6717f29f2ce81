package mapping

import "errors"

// ErrMappingConflict is returned when creating a mapping whose
// (source_table, source_field, destination_field_name) triple already
// exists. The repository is left unchanged.
var ErrMappingConflict = errors.New("mapping already exists for this source/destination triple")

// ErrUnresolvedField is returned when a mapping's discriminator matches
// no extraction row, or when multiple rows exist and no discriminator
// was given. Callers record it per field; it never aborts a fill run.
var ErrUnresolvedField = errors.New("no unambiguous extraction row for mapping")

// ErrMappingNotFound is returned for lookups of unknown mapping ids.
var ErrMappingNotFound = errors.New("mapping not found")
