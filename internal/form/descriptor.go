package form

import (
	"bytes"
	"fmt"
	"os"
)

// DocumentInfo is the descriptor snapshot of one form document.
type DocumentInfo struct {
	Path      string            `json:"path,omitempty"`
	PageCount int               `json:"page_count"`
	Fields    []FieldDescriptor `json:"fields"`
}

// DescriptorReader reads the live field descriptors of an AcroForm PDF.
type DescriptorReader struct {
	debugMode bool
}

// NewDescriptorReader creates a descriptor reader.
func NewDescriptorReader(debugMode bool) *DescriptorReader {
	return &DescriptorReader{debugMode: debugMode}
}

// ReadFile reads descriptors from a PDF file on disk. A file that cannot
// be opened or parsed yields a TemplateLoadError.
func (r *DescriptorReader) ReadFile(path string) (*DocumentInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &TemplateLoadError{Path: path, Err: err}
	}
	defer file.Close()

	ctx, err := readContext(file)
	if err != nil {
		return nil, &TemplateLoadError{Path: path, Err: err}
	}

	info, err := r.buildInfo(ctx.PageCount, path)
	if err != nil {
		return nil, err
	}
	fields, err := collectFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect form fields from %s: %w", path, err)
	}
	info.Fields = toDescriptors(fields)
	return info, nil
}

// ReadBytes reads descriptors from in-memory PDF bytes.
func (r *DescriptorReader) ReadBytes(data []byte) (*DocumentInfo, error) {
	ctx, err := readContext(bytes.NewReader(data))
	if err != nil {
		return nil, &TemplateLoadError{Path: "(bytes)", Err: err}
	}
	info, err := r.buildInfo(ctx.PageCount, "")
	if err != nil {
		return nil, err
	}
	fields, err := collectFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect form fields: %w", err)
	}
	info.Fields = toDescriptors(fields)
	return info, nil
}

func (r *DescriptorReader) buildInfo(pageCount int, path string) (*DocumentInfo, error) {
	return &DocumentInfo{Path: path, PageCount: pageCount}, nil
}

func toDescriptors(fields []*acroField) []FieldDescriptor {
	descriptors := make([]FieldDescriptor, 0, len(fields))
	for _, f := range fields {
		if f.typ == FieldTypeUnknown {
			continue
		}
		descriptors = append(descriptors, FieldDescriptor{
			Name:      f.name,
			Type:      f.typ,
			Page:      f.page,
			Bounds:    f.bounds,
			Value:     f.value,
			Checked:   f.checked,
			Options:   f.options,
			MaxLength: f.maxLen,
			ReadOnly:  f.readOnly,
			Required:  f.required,
		})
	}
	return descriptors
}
