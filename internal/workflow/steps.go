// Package workflow drives the fixed document-collection sequence: one
// ordered step per required document, each filled on top of the previous
// step's output so the final PDF accumulates every earlier step's fields.
package workflow

// Step is one stage of the fixed sequence, bound to a document type, a
// source table and an optional discriminator.
type Step struct {
	Index        int    `json:"index"`
	Name         string `json:"name"`
	DocumentType string `json:"document_type"`
	SourceTable  string `json:"source_table"`
	FilterKey    string `json:"filter_key,omitempty"`
	FilterValue  string `json:"filter_value,omitempty"`
}

// DefaultSteps returns the benefit application's collection sequence.
// The order is fixed; indices are 1-based and dense.
func DefaultSteps() []Step {
	return []Step{
		{Index: 1, Name: "Geburtsurkunde", DocumentType: "geburtsurkunde", SourceTable: "kind"},
		{Index: 2, Name: "Personalausweis Mutter", DocumentType: "personalausweis",
			SourceTable: "eltern_dokumente", FilterKey: "person_type", FilterValue: "mutter"},
		{Index: 3, Name: "Personalausweis Vater", DocumentType: "personalausweis",
			SourceTable: "eltern_dokumente", FilterKey: "person_type", FilterValue: "vater"},
		{Index: 4, Name: "Meldebescheinigung", DocumentType: "meldebescheinigung", SourceTable: "eltern_dokumente",
			FilterKey: "person_type", FilterValue: "mutter"},
		{Index: 5, Name: "Gehaltsabrechnung Mutter", DocumentType: "gehaltsabrechnung",
			SourceTable: "einkommen", FilterKey: "person_type", FilterValue: "mutter"},
		{Index: 6, Name: "Gehaltsabrechnung Vater", DocumentType: "gehaltsabrechnung",
			SourceTable: "einkommen", FilterKey: "person_type", FilterValue: "vater"},
		{Index: 7, Name: "Arbeitgeberbescheinigung Mutter", DocumentType: "arbeitgeberbescheinigung",
			SourceTable: "einkommen", FilterKey: "person_type", FilterValue: "mutter"},
		{Index: 8, Name: "Arbeitgeberbescheinigung Vater", DocumentType: "arbeitgeberbescheinigung",
			SourceTable: "einkommen", FilterKey: "person_type", FilterValue: "vater"},
		{Index: 9, Name: "Krankenversicherung Mutter", DocumentType: "krankenversicherung",
			SourceTable: "krankenversicherung", FilterKey: "person_type", FilterValue: "mutter"},
		{Index: 10, Name: "Krankenversicherung Kind", DocumentType: "krankenversicherung_kind",
			SourceTable: "krankenversicherung", FilterKey: "person_type", FilterValue: "kind"},
		{Index: 11, Name: "Bankverbindung", DocumentType: "bankverbindung", SourceTable: "bankverbindung"},
		{Index: 12, Name: "Elternzeit Mutter", DocumentType: "elternzeit",
			SourceTable: "elternzeit", FilterKey: "person_type", FilterValue: "mutter"},
		{Index: 13, Name: "Elternzeit Vater", DocumentType: "elternzeit",
			SourceTable: "elternzeit", FilterKey: "person_type", FilterValue: "vater"},
	}
}
