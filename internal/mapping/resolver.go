package mapping

import (
	"strings"

	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/form"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/schema"
)

const (
	// minClassifierConfidence is the floor below which classifier results
	// are discarded before any matching runs.
	minClassifierConfidence = 40.0
	// exactMatchConfidence is assigned to exact name matches.
	exactMatchConfidence = 100.0
	// heuristicPartialConfidence is assigned to substring matches that
	// did not come with a classifier score.
	heuristicPartialConfidence = 60.0
)

// ClassifierResult is one externally supplied semantic classification of
// a template field.
type ClassifierResult struct {
	DestinationFieldName string  `json:"destination_field_name"`
	VisualLabel          string  `json:"visual_label"`
	SemanticMeaning      string  `json:"semantic_meaning"`
	Confidence           float64 `json:"confidence"`
}

// ResolveInput bundles everything the resolver matches against.
type ResolveInput struct {
	DocumentType string
	Catalog      *schema.Catalog
	Descriptors  []form.FieldDescriptor
	// Labels maps field name to the visual label harvested from the
	// template's text layer; optional.
	Labels map[string]string
	// Classifier carries externally supplied semantic classifications;
	// optional.
	Classifier []ClassifierResult
}

// ResolveResult is the resolver's output: candidates for human
// confirmation plus the unmatched remainder. The resolver never writes
// to storage; only Candidates are meant to be persisted, Unmatched rows
// exist solely to be shown to the curator.
type ResolveResult struct {
	Candidates     []FieldMapping `json:"candidates"`
	Unmatched      []FieldMapping `json:"unmatched"`
	UnmatchedCount int            `json:"unmatched_count"`
}

// Resolve proposes mappings for every destination field by running, in
// priority order per field: exact label/column match, then substring
// match. Classifier results under the confidence floor are discarded up
// front regardless of how well they would match.
func Resolve(in ResolveInput) *ResolveResult {
	classifierByField := make(map[string]ClassifierResult)
	for _, c := range in.Classifier {
		if c.Confidence < minClassifierConfidence {
			continue
		}
		classifierByField[c.DestinationFieldName] = c
	}

	columns := in.Catalog.Columns()
	result := &ResolveResult{}

	for _, d := range in.Descriptors {
		label, fromClassifier, classifierConf := semanticLabel(d, in.Labels, classifierByField)
		status := StatusAuto
		if fromClassifier {
			status = StatusVision
		}

		if col, ok := exactMatch(label, columns); ok {
			result.Candidates = append(result.Candidates,
				candidate(in.DocumentType, d.Name, col, status, exactMatchConfidence))
			continue
		}
		if col, ok := partialMatch(label, columns); ok {
			conf := heuristicPartialConfidence
			if fromClassifier {
				conf = classifierConf
			}
			result.Candidates = append(result.Candidates,
				candidate(in.DocumentType, d.Name, col, status, conf))
			continue
		}

		result.UnmatchedCount++
		result.Unmatched = append(result.Unmatched, FieldMapping{
			DocumentType:         in.DocumentType,
			SourceTable:          UnknownSource,
			SourceField:          UnknownSource,
			DestinationFieldName: d.Name,
			MappingStatus:        StatusNeedsReview,
			IsActive:             false,
		})
	}

	return result
}

// semanticLabel picks the best semantic label for a destination field:
// classifier meaning first, then the harvested visual label, then the
// raw field name.
func semanticLabel(
	d form.FieldDescriptor,
	labels map[string]string,
	classifier map[string]ClassifierResult,
) (label string, fromClassifier bool, confidence float64) {
	if c, ok := classifier[d.Name]; ok {
		if c.SemanticMeaning != "" {
			return c.SemanticMeaning, true, c.Confidence
		}
		if c.VisualLabel != "" {
			return c.VisualLabel, true, c.Confidence
		}
	}
	if l, ok := labels[d.Name]; ok && l != "" {
		return l, false, 0
	}
	return d.Name, false, 0
}

// exactMatch finds a column whose name equals the lower-cased label.
func exactMatch(label string, columns []schema.Column) (schema.Column, bool) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	for _, col := range columns {
		if normalized == col.Name {
			return col, true
		}
	}
	return schema.Column{}, false
}

// partialMatch finds a column the label contains, or a column containing
// the label's first token.
func partialMatch(label string, columns []schema.Column) (schema.Column, bool) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if normalized == "" {
		return schema.Column{}, false
	}
	for _, col := range columns {
		if strings.Contains(normalized, col.Name) {
			return col, true
		}
	}
	firstToken := firstLabelToken(normalized)
	if firstToken == "" {
		return schema.Column{}, false
	}
	for _, col := range columns {
		if strings.Contains(col.Name, firstToken) {
			return col, true
		}
	}
	return schema.Column{}, false
}

// firstLabelToken extracts the first word-like token of a label.
func firstLabelToken(label string) string {
	fields := strings.FieldsFunc(label, func(r rune) bool {
		switch r {
		case ' ', '\t', '.', ',', ':', ';', '/', '-', '_', '(', ')':
			return true
		}
		return false
	})
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func candidate(documentType, destination string, col schema.Column, status Status, confidence float64) FieldMapping {
	conf := confidence
	return FieldMapping{
		DocumentType:         documentType,
		SourceTable:          col.Table,
		SourceField:          col.Name,
		DestinationFieldName: destination,
		ConfidenceScore:      &conf,
		MappingStatus:        status,
		IsActive:             true,
	}
}
