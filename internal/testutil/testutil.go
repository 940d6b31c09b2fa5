// Package testutil provides PDF fixtures and a fake external processor for
// tests across packages.
package testutil

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// BuildPDF assembles a PDF from object bodies numbered from 1, with object 1
// as the catalog, and writes a correct cross-reference table
func BuildPDF(objects ...string) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.7\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objects)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return b.Bytes()
}

// MinimalPDF is a one page document without a form
func MinimalPDF() []byte {
	return BuildPDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	)
}

// FormPDF is a one page document whose AcroForm holds a required text field
// "name" (max 20, default Jane), a checkbox "agree", a radio group "color"
// (Red, Blue), a combo box "country" (USA, CA), a nested text field
// "person.email", a list box "colors" (red, green), plus a signature and a
// pushbutton that are not fillable
func FormPDF() []byte {
	return BuildPDF(
		"<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [4 0 R 5 0 R 6 0 R 7 0 R 8 0 R 12 0 R 13 0 R 14 0 R] >> >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
		"<< /FT /Tx /T (name) /Ff 2 /MaxLen 20 /DV (Jane) /Type /Annot /Subtype /Widget /Rect [50 700 250 720] >>",
		"<< /FT /Btn /T (agree) /Type /Annot /Subtype /Widget /Rect [50 650 70 670] >>",
		"<< /FT /Btn /Ff 49152 /T (color) /Kids [9 0 R 10 0 R] >>",
		"<< /FT /Ch /Ff 131072 /T (country) /Opt [(USA) [(CA) (Canada)]] /DV (USA) >>",
		"<< /T (person) /Kids [11 0 R] >>",
		"<< /Type /Annot /Subtype /Widget /Parent 6 0 R /Rect [50 600 70 620] /AP << /N << /Red << >> /Off << >> >> >> >>",
		"<< /Type /Annot /Subtype /Widget /Parent 6 0 R /Rect [80 600 100 620] /AP << /N << /Blue << >> /Off << >> >> >> >>",
		"<< /FT /Tx /T (email) /Parent 8 0 R >>",
		"<< /FT /Sig /T (signature) >>",
		"<< /FT /Btn /Ff 65536 /T (submit) >>",
		"<< /FT /Ch /T (colors) /Opt [(red) (green)] >>",
	)
}

// FillableFormPDF is a one page document pdfcpu can fill: every widget sits
// on the page, and the AcroForm carries a default appearance backed by a
// Helvetica font resource. It holds a text field "name" (max 20), a checkbox
// "agree", a radio group "color" (Red, Blue), a combo box "country" (USA,
// CA), a list box "colors" (red, green), a date field "due" (yyyy-mm-dd) and
// a nested text field "person.email".
func FillableFormPDF() []byte {
	return BuildPDF(
		"<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [4 0 R 5 0 R 6 0 R 9 0 R 10 0 R 11 0 R 12 0 R] /DA (/Helv 10 Tf 0 g) /DR << /Font << /Helv 14 0 R >> >> >> >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Annots [4 0 R 5 0 R 7 0 R 8 0 R 9 0 R 10 0 R 11 0 R 13 0 R] >>",
		"<< /FT /Tx /T (name) /MaxLen 20 /Type /Annot /Subtype /Widget /Rect [50 700 250 720] >>",
		"<< /FT /Btn /T (agree) /Type /Annot /Subtype /Widget /Rect [50 650 70 670] >>",
		"<< /FT /Btn /Ff 49152 /T (color) /Kids [7 0 R 8 0 R] >>",
		"<< /Type /Annot /Subtype /Widget /Parent 6 0 R /Rect [50 600 70 620] /AP << /N << /Red << >> /Off << >> >> >> >>",
		"<< /Type /Annot /Subtype /Widget /Parent 6 0 R /Rect [80 600 100 620] /AP << /N << /Blue << >> /Off << >> >> >> >>",
		"<< /FT /Ch /Ff 131072 /T (country) /Opt [(USA) (CA)] /Type /Annot /Subtype /Widget /Rect [50 550 250 570] >>",
		"<< /FT /Ch /Ff 0 /T (colors) /Opt [(red) (green)] /Type /Annot /Subtype /Widget /Rect [50 460 250 520] >>",
		"<< /FT /Tx /T (due) /DV (2024-01-31) /Type /Annot /Subtype /Widget /Rect [50 400 250 420] >>",
		"<< /T (person) /Kids [13 0 R] >>",
		"<< /FT /Tx /T (email) /Parent 12 0 R /Type /Annot /Subtype /Widget /Rect [50 350 250 370] >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
}

// FakeProcessorEnv switches a test binary into fake processor mode
const FakeProcessorEnv = "GO_WANT_FAKE_PROCESSOR"

// FakeProcessorCommand is the process backend command line re-running the
// current test binary as the processor. testName is the test function that
// calls ServeFakeProcessor.
func FakeProcessorCommand(testName string) string {
	return strings.Join([]string{os.Args[0], "-test.run=^" + testName + "$", "--"}, " ")
}

// FakeProcessorFields is the inventory the fake processor reports for any PDF
var FakeProcessorFields = []map[string]any{
	{"name": "name", "type": "text", "required": true, "maxLength": 20},
	{"name": "agree", "type": "checkbox"},
	{"name": "country", "type": "dropdown", "options": []string{"USA", "Canada"}},
}

// FilledPrefix starts every document the fake processor returns; the
// received field values follow as JSON
const FilledPrefix = "%PDF-1.7\n%filled "

// ServeFakeProcessor answers one processor request on stdin and exits the
// process. It does nothing unless FakeProcessorEnv is set.
func ServeFakeProcessor() {
	if os.Getenv(FakeProcessorEnv) != "1" {
		return
	}
	defer os.Exit(0)

	var req struct {
		Action        string         `json:"action"`
		FieldMappings map[string]any `json:"fieldMappings"`
	}
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		fmt.Printf(`{"success":false,"error":"invalid request: %s","errorType":"config"}`, err)
		os.Exit(1)
	}

	var resp map[string]any
	switch req.Action {
	case "inspect":
		resp = map[string]any{
			"success":  true,
			"fields":   FakeProcessorFields,
			"metadata": map[string]any{"fieldCount": len(FakeProcessorFields)},
		}
	case "fill":
		values, _ := json.Marshal(req.FieldMappings)
		resp = map[string]any{
			"success": true,
			"data":    base64.StdEncoding.EncodeToString(append([]byte(FilledPrefix), values...)),
			"metadata": map[string]any{
				"fieldCount":       len(FakeProcessorFields),
				"filledFieldCount": len(req.FieldMappings),
			},
		}
	default:
		resp = map[string]any{"success": false, "error": "unknown action " + req.Action, "errorType": "config"}
	}
	_ = json.NewEncoder(os.Stdout).Encode(resp)
}
