// Package formtest builds minimal AcroForm PDF fixtures for tests. The
// generated documents carry a text field, a checkbox, a dropdown and a
// radio group on one page, with a correct cross-reference table.
package formtest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// fixture objects, 1-based object numbers:
//
//	1 catalog, 2 page tree, 3 page, 4 text, 5 text, 6 checkbox,
//	7 dropdown, 8 radio group
var fixtureObjects = []string{
	"<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [4 0 R 5 0 R 6 0 R 7 0 R 8 0 R] >> >>",
	"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
	"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Annots [4 0 R 5 0 R 6 0 R 7 0 R 8 0 R] >>",
	"<< /FT /Tx /T (txt.vorname1A 4) /Type /Annot /Subtype /Widget /Rect [150 700 350 720] /MaxLen 40 >>",
	"<< /FT /Tx /T (txt.nachname1A 4) /Type /Annot /Subtype /Widget /Rect [150 660 350 680] >>",
	"<< /FT /Btn /T (chk.mehrling) /Type /Annot /Subtype /Widget /Rect [150 620 165 635] >>",
	"<< /FT /Ch /T (dd.steuerklasse) /Type /Annot /Subtype /Widget /Rect [150 580 250 600] /Opt [(I) (II) (III)] >>",
	"<< /FT /Btn /Ff 32768 /T (rad.geschlecht) /Type /Annot /Subtype /Widget /Rect [150 540 250 560] >>",
}

// FieldNames lists the field names present in the fixture.
func FieldNames() []string {
	return []string{
		"txt.vorname1A 4",
		"txt.nachname1A 4",
		"chk.mehrling",
		"dd.steuerklasse",
		"rad.geschlecht",
	}
}

// FieldCount is the number of form fields in the fixture.
const FieldCount = 5

// TemplatePDF assembles the fixture document with a computed xref table.
func TemplatePDF() []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(fixtureObjects)+1)
	for i, body := range fixtureObjects {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(fixtureObjects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(fixtureObjects); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(fixtureObjects)+1, xrefOffset)

	return buf.Bytes()
}

// WriteTemplate writes the fixture to a file inside t.TempDir and
// returns its path.
func WriteTemplate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "template.pdf")
	if err := os.WriteFile(path, TemplatePDF(), 0o640); err != nil {
		t.Fatalf("failed to write template fixture: %v", err)
	}
	return path
}
