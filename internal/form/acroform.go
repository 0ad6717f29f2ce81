package form

import (
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// acroField is the in-memory handle for one AcroForm field: the live
// field dictionary plus everything the engine needs to read or write it.
type acroField struct {
	name     string
	typ      FieldType
	page     int
	dict     types.Dict
	kidDicts []types.Dict
	options  []string
	onState  string
	value    string
	checked  bool
	maxLen   int
	readOnly bool
	required bool
	bounds   *BoundingBox
}

// readContext parses a PDF document into a pdfcpu context with relaxed
// validation, matching how scanned government templates tend to arrive.
func readContext(rs io.ReadSeeker) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}
	return ctx, nil
}

// collectFields walks the AcroForm Fields array and returns a handle per
// named field. Malformed entries are skipped, never fatal.
func collectFields(ctx *model.Context) ([]*acroField, error) {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil, nil
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return nil, nil
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return nil, nil
	}
	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	annotPages := annotationPages(ctx, rootDict)

	var fields []*acroField
	for i, fieldRef := range fieldsArray {
		field, err := processField(ctx, fieldRef, i, annotPages)
		if err != nil {
			continue
		}
		if field != nil {
			fields = append(fields, field)
		}
	}
	return fields, nil
}

// annotationPages walks the page tree and maps every annotation object
// number to its 1-based page number, so widget annotations can be
// attributed to the page they render on.
func annotationPages(ctx *model.Context, rootDict types.Dict) map[int]int {
	pages := make(map[int]int)
	pagesObj, found := rootDict.Find("Pages")
	if !found {
		return pages
	}
	pageNum := 0
	walkPageTree(ctx, pagesObj, &pageNum, pages)
	return pages
}

func walkPageTree(ctx *model.Context, nodeObj types.Object, pageNum *int, pages map[int]int) {
	nodeDict, err := ctx.DereferenceDict(nodeObj)
	if err != nil || nodeDict == nil {
		return
	}

	if kidsObj, found := nodeDict.Find("Kids"); found {
		if kids, err := ctx.DereferenceArray(kidsObj); err == nil {
			for _, kid := range kids {
				walkPageTree(ctx, kid, pageNum, pages)
			}
		}
		return
	}

	// Leaf: a page dictionary.
	*pageNum++
	annotsObj, found := nodeDict.Find("Annots")
	if !found {
		return
	}
	annots, err := ctx.DereferenceArray(annotsObj)
	if err != nil {
		return
	}
	for _, annot := range annots {
		if ref, ok := annot.(types.IndirectRef); ok {
			pages[int(ref.ObjectNumber)] = *pageNum
		}
	}
}

// processField builds a handle for a single field dictionary.
func processField(ctx *model.Context, fieldObj types.Object, index int, annotPages map[int]int) (*acroField, error) {
	fieldDict, err := ctx.DereferenceDict(fieldObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference field: %w", err)
	}
	if fieldDict == nil {
		return nil, nil
	}

	field := &acroField{dict: fieldDict}

	if nameObj, found := fieldDict.Find("T"); found {
		if name, err := ctx.DereferenceStringOrHexLiteral(nameObj, model.V10, nil); err == nil {
			field.name = name
		}
	}
	if field.name == "" {
		field.name = fmt.Sprintf("field_%d", index)
	}

	field.typ = extractFieldType(ctx, fieldDict)

	if flagsObj, found := fieldDict.Find("Ff"); found {
		if flags, err := ctx.DereferenceInteger(flagsObj); err == nil && flags != nil {
			flagValue := *flags
			field.readOnly = (flagValue & 1) != 0 // Bit 1
			field.required = (flagValue & 2) != 0 // Bit 2
		}
	}

	if valueObj, found := fieldDict.Find("V"); found {
		extractFieldValue(ctx, valueObj, field)
	}

	if field.typ == FieldTypeDropdown || field.typ == FieldTypeRadio {
		field.options = extractFieldOptions(ctx, fieldDict)
	}

	if maxLenObj, found := fieldDict.Find("MaxLen"); found {
		if maxLen, err := ctx.DereferenceInteger(maxLenObj); err == nil && maxLen != nil {
			field.maxLen = int(*maxLen)
		}
	}

	field.kidDicts = widgetKids(ctx, fieldDict)
	field.onState = extractOnState(ctx, fieldDict, field.kidDicts)
	if field.typ == FieldTypeRadio && len(field.options) == 0 {
		field.options = radioOnStates(ctx, field.kidDicts)
	}
	field.bounds, field.page = extractFieldBounds(ctx, fieldDict, field.kidDicts)
	if field.page == 0 {
		field.page = lookupAnnotPage(fieldObj, field.kidDicts, annotPages, ctx, fieldDict)
	}
	if field.page == 0 {
		field.page = 1
	}

	return field, nil
}

// extractFieldType determines the field type from the FT entry, checking
// the parent chain for inherited types and the Ff bits for the
// radio/pushbutton split.
func extractFieldType(ctx *model.Context, fieldDict types.Dict) FieldType {
	ftObj, found := fieldDict.Find("FT")
	if !found {
		if parentObj, found := fieldDict.Find("Parent"); found {
			if parentDict, err := ctx.DereferenceDict(parentObj); err == nil && parentDict != nil {
				return extractFieldType(ctx, parentDict)
			}
		}
		return FieldTypeUnknown
	}

	ftName, err := ctx.DereferenceName(ftObj, model.V10, nil)
	if err != nil {
		return FieldTypeUnknown
	}

	switch ftName {
	case "Btn":
		if flagsObj, found := fieldDict.Find("Ff"); found {
			if flags, err := ctx.DereferenceInteger(flagsObj); err == nil && flags != nil {
				flagValue := *flags
				if (flagValue & (1 << 15)) != 0 { // Bit 16: Radio
					return FieldTypeRadio
				}
				if (flagValue & (1 << 16)) != 0 { // Bit 17: Pushbutton
					return FieldTypeUnknown
				}
			}
		}
		return FieldTypeCheckbox
	case "Tx":
		return FieldTypeText
	case "Ch":
		return FieldTypeDropdown
	default:
		return FieldTypeUnknown
	}
}

// extractFieldValue reads the current V entry according to the field type.
func extractFieldValue(ctx *model.Context, valueObj types.Object, field *acroField) {
	switch field.typ {
	case FieldTypeText, FieldTypeDropdown:
		if val, err := ctx.DereferenceStringOrHexLiteral(valueObj, model.V10, nil); err == nil {
			field.value = val
			return
		}
		if name, err := ctx.DereferenceName(valueObj, model.V10, nil); err == nil {
			field.value = string(name)
		}
	case FieldTypeCheckbox:
		if name, err := ctx.DereferenceName(valueObj, model.V10, nil); err == nil {
			field.checked = name != "Off" && name != ""
			field.value = string(name)
		}
	case FieldTypeRadio:
		if name, err := ctx.DereferenceName(valueObj, model.V10, nil); err == nil {
			field.value = string(name)
		}
	}
}

// extractFieldOptions extracts the Opt array of a choice field. Options
// may be plain strings or [export_value, display_value] pairs.
func extractFieldOptions(ctx *model.Context, fieldDict types.Dict) []string {
	var options []string

	optObj, found := fieldDict.Find("Opt")
	if !found {
		return options
	}
	optArray, err := ctx.DereferenceArray(optObj)
	if err != nil {
		return options
	}

	for _, opt := range optArray {
		if str, err := ctx.DereferenceStringOrHexLiteral(opt, model.V10, nil); err == nil {
			options = append(options, str)
		} else if arr, err := ctx.DereferenceArray(opt); err == nil && len(arr) >= 2 {
			if displayVal, err := ctx.DereferenceStringOrHexLiteral(arr[1], model.V10, nil); err == nil {
				options = append(options, displayVal)
			}
		}
	}
	return options
}

// widgetKids dereferences the Kids array into widget dictionaries.
func widgetKids(ctx *model.Context, fieldDict types.Dict) []types.Dict {
	kidsObj, found := fieldDict.Find("Kids")
	if !found {
		return nil
	}
	kidsArray, err := ctx.DereferenceArray(kidsObj)
	if err != nil {
		return nil
	}
	var kids []types.Dict
	for _, kid := range kidsArray {
		if kidDict, err := ctx.DereferenceDict(kid); err == nil && kidDict != nil {
			kids = append(kids, kidDict)
		}
	}
	return kids
}

// extractOnState finds the name a button field uses for its checked
// appearance by scanning the /AP /N dictionary for a key other than Off.
func extractOnState(ctx *model.Context, fieldDict types.Dict, kids []types.Dict) string {
	dicts := append([]types.Dict{fieldDict}, kids...)
	for _, d := range dicts {
		apObj, found := d.Find("AP")
		if !found {
			continue
		}
		apDict, err := ctx.DereferenceDict(apObj)
		if err != nil || apDict == nil {
			continue
		}
		nObj, found := apDict.Find("N")
		if !found {
			continue
		}
		nDict, err := ctx.DereferenceDict(nObj)
		if err != nil || nDict == nil {
			continue
		}
		for key := range nDict {
			if key != "Off" {
				return key
			}
		}
	}
	return "Yes"
}

// radioOnStates collects the on-state names of a radio group's widgets;
// these double as the group's selectable options when no Opt array exists.
func radioOnStates(ctx *model.Context, kids []types.Dict) []string {
	var states []string
	seen := make(map[string]bool)
	for _, kid := range kids {
		state := extractOnState(ctx, kid, nil)
		if state == "" || seen[state] {
			continue
		}
		seen[state] = true
		states = append(states, state)
	}
	return states
}

// extractFieldBounds extracts the widget rectangle from the field dict or
// its first kid.
func extractFieldBounds(ctx *model.Context, fieldDict types.Dict, kids []types.Dict) (*BoundingBox, int) {
	if rectObj, found := fieldDict.Find("Rect"); found {
		if rect := parseRect(ctx, rectObj); rect != nil {
			return rect, 0
		}
	}
	for _, kid := range kids {
		if rectObj, found := kid.Find("Rect"); found {
			if rect := parseRect(ctx, rectObj); rect != nil {
				return rect, 0
			}
		}
	}
	return nil, 0
}

func parseRect(ctx *model.Context, rectObj types.Object) *BoundingBox {
	rectArray, err := ctx.DereferenceArray(rectObj)
	if err != nil || len(rectArray) != 4 {
		return nil
	}
	coords := make([]float64, 4)
	for i, coord := range rectArray {
		if f, err := ctx.DereferenceNumber(coord); err == nil {
			coords[i] = f
		}
	}
	return &BoundingBox{
		LowerLeft:  Coordinate{X: coords[0], Y: coords[1]},
		UpperRight: Coordinate{X: coords[2], Y: coords[3]},
		Width:      coords[2] - coords[0],
		Height:     coords[3] - coords[1],
	}
}

// lookupAnnotPage attributes a field to a page through the annotation
// object-number index built from the page tree.
func lookupAnnotPage(fieldObj types.Object, kids []types.Dict, annotPages map[int]int, ctx *model.Context, fieldDict types.Dict) int {
	if ref, ok := fieldObj.(types.IndirectRef); ok {
		if page, ok := annotPages[int(ref.ObjectNumber)]; ok {
			return page
		}
	}
	if kidsObj, found := fieldDict.Find("Kids"); found {
		if kidsArray, err := ctx.DereferenceArray(kidsObj); err == nil {
			for _, kid := range kidsArray {
				if ref, ok := kid.(types.IndirectRef); ok {
					if page, ok := annotPages[int(ref.ObjectNumber)]; ok {
						return page
					}
				}
			}
		}
	}
	return 0
}

// normalizeFieldName lowers and trims a field name for lookups.
func normalizeFieldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
