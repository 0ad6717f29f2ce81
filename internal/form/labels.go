package form

import (
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// labelRow is one reconstructed line of page text with its position.
type labelRow struct {
	text string
	x    float64
	y    float64
}

// HarvestLabels derives a visual label for each descriptor from the text
// printed next to its widget: same page, preferring text directly left of
// the field, falling back to the nearest line above it. Fields without
// usable nearby text get no entry. This gives the heuristic matching
// strategies something to chew on even when no classifier results were
// supplied.
func HarvestLabels(path string, descriptors []FieldDescriptor) (map[string]string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, &TemplateLoadError{Path: path, Err: err}
	}
	defer file.Close()

	rowsByPage := make(map[int][]labelRow)
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").IsNull() {
			continue
		}
		rowsByPage[pageNum] = collectRows(page)
	}

	labels := make(map[string]string)
	for _, d := range descriptors {
		if d.Bounds == nil {
			continue
		}
		if label := nearestLabel(rowsByPage[d.Page], d.Bounds); label != "" {
			labels[d.Name] = label
		}
	}
	return labels, nil
}

// collectRows groups the page's positioned text fragments into lines by
// their baseline Y coordinate.
func collectRows(page pdf.Page) []labelRow {
	content := page.Content()
	if len(content.Text) == 0 {
		return nil
	}

	const yTolerance = 2.0

	texts := make([]pdf.Text, len(content.Text))
	copy(texts, content.Text)
	sort.Slice(texts, func(i, j int) bool {
		if texts[i].Y != texts[j].Y {
			return texts[i].Y > texts[j].Y
		}
		return texts[i].X < texts[j].X
	})

	var rows []labelRow
	var current *labelRow
	var parts []string
	flush := func() {
		if current != nil {
			current.text = strings.TrimSpace(strings.Join(parts, ""))
			if current.text != "" {
				rows = append(rows, *current)
			}
		}
		current = nil
		parts = nil
	}

	for _, t := range texts {
		if t.S == "" {
			continue
		}
		if current == nil || current.y-t.Y > yTolerance {
			flush()
			current = &labelRow{x: t.X, y: t.Y}
		}
		parts = append(parts, t.S)
	}
	flush()

	return rows
}

// nearestLabel picks the best text row for a field box: first the closest
// row on the same line left of the box, then the closest row just above.
func nearestLabel(rows []labelRow, bounds *BoundingBox) string {
	const lineBand = 6.0
	const aboveBand = 30.0

	var best string
	bestDist := -1.0
	for _, row := range rows {
		// Same line, left of the widget.
		if row.y >= bounds.LowerLeft.Y-lineBand && row.y <= bounds.UpperRight.Y+lineBand &&
			row.x < bounds.LowerLeft.X {
			dist := bounds.LowerLeft.X - row.x
			if bestDist < 0 || dist < bestDist {
				best = row.text
				bestDist = dist
			}
		}
	}
	if best != "" {
		return best
	}

	for _, row := range rows {
		// Directly above the widget.
		if row.y > bounds.UpperRight.Y && row.y-bounds.UpperRight.Y <= aboveBand {
			dist := row.y - bounds.UpperRight.Y
			if bestDist < 0 || dist < bestDist {
				best = row.text
				bestDist = dist
			}
		}
	}
	return best
}
