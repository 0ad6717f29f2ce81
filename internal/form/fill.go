package form

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Engine fills assignments into an AcroForm document. It treats the
// original template and a chained predecessor identically and always
// emits a fresh byte copy, leaving the input untouched for audit.
type Engine struct {
	debugMode bool
}

// NewEngine creates a fill engine.
func NewEngine(debugMode bool) *Engine {
	return &Engine{debugMode: debugMode}
}

// FillFile fills assignments into the document at path.
func (e *Engine) FillFile(path string, assignments []Assignment) (*FillResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &TemplateLoadError{Path: path, Err: err}
	}
	defer file.Close()
	return e.fill(file, path, assignments)
}

// Fill fills assignments into the document read from rs.
func (e *Engine) Fill(rs io.ReadSeeker, assignments []Assignment) (*FillResult, error) {
	return e.fill(rs, "(stream)", assignments)
}

func (e *Engine) fill(rs io.ReadSeeker, path string, assignments []Assignment) (*FillResult, error) {
	ctx, err := readContext(rs)
	if err != nil {
		return nil, &TemplateLoadError{Path: path, Err: err}
	}

	fields, err := collectFields(ctx)
	if err != nil {
		return nil, &TemplateLoadError{Path: path, Err: err}
	}

	byName := make(map[string]*acroField, len(fields))
	for _, f := range fields {
		byName[normalizeFieldName(f.name)] = f
	}

	// First assignment per destination wins; later duplicates are dropped
	// rather than silently overwriting an already chosen value.
	pending := make(map[string]Assignment)
	for _, a := range assignments {
		key := normalizeFieldName(a.FieldName)
		if _, exists := pending[key]; exists {
			continue
		}
		pending[key] = a
	}

	stats := FillStats{TotalTemplateFields: len(fields)}

	// Assignments whose destination is not a field of this document are
	// recorded as failures but cannot occupy a bucket of the field set.
	for key, a := range pending {
		if _, ok := byName[key]; !ok {
			stats.FailedFields = append(stats.FailedFields, FieldFailure{
				Field:     a.FieldName,
				MappingID: a.MappingID,
				Reason:    "destination field not found in document",
			})
			delete(pending, key)
		}
	}

	for _, f := range fields {
		a, ok := pending[normalizeFieldName(f.name)]
		if !ok || a.Value.IsEmpty() {
			stats.SkippedFields = append(stats.SkippedFields, f.name)
			continue
		}
		filled, err := e.applyAssignment(ctx, f, a)
		switch {
		case err != nil:
			stats.FailedFields = append(stats.FailedFields, FieldFailure{
				Field:     f.name,
				MappingID: a.MappingID,
				Reason:    err.Error(),
			})
		case filled:
			stats.FilledCount++
			stats.FilledFields = append(stats.FilledFields, f.name)
		default:
			// A false-like checkbox value is a no-op, never an uncheck.
			stats.SkippedFields = append(stats.SkippedFields, f.name)
		}
	}

	sort.Strings(stats.FilledFields)
	sort.Strings(stats.SkippedFields)
	if stats.TotalTemplateFields > 0 {
		stats.CompletionPercentage = int(math.Round(
			float64(stats.FilledCount) / float64(stats.TotalTemplateFields) * 100))
	}

	if err := setNeedAppearances(ctx); err != nil && e.debugMode {
		fmt.Printf("could not set NeedAppearances: %v\n", err)
	}

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, fmt.Errorf("failed to write filled document: %w", err)
	}

	return &FillResult{Output: buf.Bytes(), Stats: stats}, nil
}

// applyAssignment dispatches one assignment by the field's runtime type.
// It returns whether the field was actually written.
func (e *Engine) applyAssignment(ctx *model.Context, f *acroField, a Assignment) (bool, error) {
	switch f.typ {
	case FieldTypeText:
		return true, e.setTextValue(f, a.Value)
	case FieldTypeCheckbox:
		if !a.Value.IsTrue() {
			return false, nil
		}
		e.setButtonState(ctx, f, f.onState)
		return true, nil
	case FieldTypeDropdown:
		return true, e.setChoiceValue(f, a.Value)
	case FieldTypeRadio:
		return true, e.setRadioValue(ctx, f, a.Value)
	default:
		return false, fmt.Errorf("unsupported field type %q", f.typ)
	}
}

func (e *Engine) setTextValue(f *acroField, v Value) error {
	text := v.String()
	if f.maxLen > 0 {
		if runes := []rune(text); len(runes) > f.maxLen {
			text = string(runes[:f.maxLen])
		}
	}
	f.dict["V"] = types.StringLiteral(text)
	dropAppearance(f)
	return nil
}

func (e *Engine) setChoiceValue(f *acroField, v Value) error {
	text := v.String()
	if len(f.options) > 0 && !containsOption(f.options, text) {
		return fmt.Errorf("value %q is not an option of dropdown %q", text, f.name)
	}
	f.dict["V"] = types.StringLiteral(text)
	dropAppearance(f)
	return nil
}

func (e *Engine) setRadioValue(ctx *model.Context, f *acroField, v Value) error {
	text := v.String()
	if len(f.options) > 0 && !containsOption(f.options, text) {
		return fmt.Errorf("value %q is not an option of radio group %q", text, f.name)
	}
	e.setButtonState(ctx, f, text)
	return nil
}

// setButtonState writes V on the field and AS on every widget, switching
// widgets whose on-state matches to on and all others to Off.
func (e *Engine) setButtonState(ctx *model.Context, f *acroField, state string) {
	f.dict["V"] = types.Name(state)
	if len(f.kidDicts) == 0 {
		f.dict["AS"] = types.Name(state)
		return
	}
	for _, kid := range f.kidDicts {
		if kidHasOnState(ctx, kid, state) {
			kid["AS"] = types.Name(state)
		} else if f.typ == FieldTypeRadio {
			kid["AS"] = types.Name("Off")
		}
	}
}

// kidHasOnState checks whether a widget's normal appearance dictionary
// carries the given on-state key. Widgets without a readable appearance
// dictionary are treated as matching.
func kidHasOnState(ctx *model.Context, kid types.Dict, state string) bool {
	apObj, found := kid.Find("AP")
	if !found {
		return true
	}
	apDict, err := ctx.DereferenceDict(apObj)
	if err != nil || apDict == nil {
		return true
	}
	nObj, found := apDict.Find("N")
	if !found {
		return true
	}
	nDict, err := ctx.DereferenceDict(nObj)
	if err != nil || nDict == nil {
		return true
	}
	_, found = nDict.Find(state)
	return found
}

// dropAppearance removes stale appearance streams so viewers regenerate
// them from the new value.
func dropAppearance(f *acroField) {
	delete(f.dict, "AP")
	for _, kid := range f.kidDicts {
		delete(kid, "AP")
	}
}

// setNeedAppearances flags the AcroForm dictionary so conforming readers
// rebuild field appearances on open.
func setNeedAppearances(ctx *model.Context) error {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return err
	}
	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil || acroFormDict == nil {
		return err
	}
	acroFormDict["NeedAppearances"] = types.Boolean(true)
	return nil
}

func containsOption(options []string, value string) bool {
	for _, opt := range options {
		if opt == value {
			return true
		}
	}
	return false
}
