package form

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ExportMetadata heads the field coordinate export.
type ExportMetadata struct {
	TemplateName string `json:"template_name"`
	TotalPages   int    `json:"total_pages"`
	TotalFields  int    `json:"total_fields"`
}

// ExportField is one field entry of the coordinate export, positioned in
// page space and ordered for reading.
type ExportField struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Page      int      `json:"page"`
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	Width     float64  `json:"width"`
	Height    float64  `json:"height"`
	MaxLength int      `json:"max_length,omitempty"`
	Options   []string `json:"options,omitempty"`
	Required  bool     `json:"required,omitempty"`
}

// ExportStatistics summarizes the export by field type and page.
type ExportStatistics struct {
	ByType map[string]int `json:"by_type"`
	ByPage map[string]int `json:"by_page"`
}

// CoordinateExport is the JSON document produced for downstream tools
// (classifier input, mapping editors).
type CoordinateExport struct {
	Metadata   ExportMetadata   `json:"metadata"`
	Fields     []ExportField    `json:"fields"`
	Statistics ExportStatistics `json:"statistics"`
}

// BuildCoordinateExport assembles the coordinate export for a descriptor
// snapshot. Fields are sorted in reading order: page, then top-to-bottom,
// then left-to-right.
func BuildCoordinateExport(templateName string, info *DocumentInfo) *CoordinateExport {
	export := &CoordinateExport{
		Metadata: ExportMetadata{
			TemplateName: templateName,
			TotalPages:   info.PageCount,
			TotalFields:  len(info.Fields),
		},
		Statistics: ExportStatistics{
			ByType: make(map[string]int),
			ByPage: make(map[string]int),
		},
	}

	fields := make([]FieldDescriptor, len(info.Fields))
	copy(fields, info.Fields)
	sort.SliceStable(fields, func(i, j int) bool {
		if fields[i].Page != fields[j].Page {
			return fields[i].Page < fields[j].Page
		}
		yi, yj := topY(fields[i]), topY(fields[j])
		if yi != yj {
			return yi > yj
		}
		return leftX(fields[i]) < leftX(fields[j])
	})

	for i, f := range fields {
		ef := ExportField{
			ID:        i + 1,
			Name:      f.Name,
			Type:      string(f.Type),
			Page:      f.Page,
			MaxLength: f.MaxLength,
			Options:   f.Options,
			Required:  f.Required,
		}
		if f.Bounds != nil {
			ef.X = f.Bounds.LowerLeft.X
			ef.Y = f.Bounds.LowerLeft.Y
			ef.Width = f.Bounds.Width
			ef.Height = f.Bounds.Height
		}
		export.Fields = append(export.Fields, ef)
		export.Statistics.ByType[string(f.Type)]++
		export.Statistics.ByPage[fmt.Sprintf("page_%d", f.Page)]++
	}

	return export
}

// MarshalIndent renders the export as indented JSON.
func (e *CoordinateExport) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(e, "", "  ")
}

func topY(f FieldDescriptor) float64 {
	if f.Bounds == nil {
		return 0
	}
	return f.Bounds.UpperRight.Y
}

func leftX(f FieldDescriptor) float64 {
	if f.Bounds == nil {
		return 0
	}
	return f.Bounds.LowerLeft.X
}
