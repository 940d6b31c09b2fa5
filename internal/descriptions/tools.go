package descriptions

import "sort"

// Comprehensive tool descriptions with practical examples and use cases

const (
	PDFInspectFieldsDescription = `List the fillable fields of a PDF form with their types, options and limits.

**When to use:** Before writing field mappings, or when a fill fails with "field not found".

**Why it's useful:** Field names in PDF forms are often hierarchical ("applicant.address.zip") and rarely match the labels printed on the page. The inventory shows the exact names, the field type (text, checkbox, radio, dropdown), the allowed options and the maximum length.

**Examples:**
• Learn a form: "List the fields of forms/w9.pdf"
• Check options: "Which values does the 'filing_status' radio group of 1040.pdf accept?"
• Debug a mapping: "Is there a field called 'ssn' in onboarding.pdf?"

**Common workflows:**
1. New template: Inspect fields → Write mappings → pdf_validate_mappings → pdf_fill_form
2. Template update: Inspect fields → Compare with existing mappings → Fix renamed fields

**Best practices:** Copy field names from this output verbatim; names are case-sensitive.`

	PDFValidateMappingsDescription = `Check a mapping document against a PDF form and report every problem at once.

**When to use:** After writing or changing mappings, before filling a batch.

**Why it's useful:** Filling stops at the first bad mapping. Validation collects all missing fields and malformed mappings in one pass, with the list of available fields for each miss.

**Examples:**
• Pre-flight a batch: "Validate mappings.yaml against forms/w9.pdf"
• Review a mapping change: "Do these mappings still match the 2025 revision of the form?"

**Common workflows:**
1. Authoring loop: Validate → Fix reported problems → Validate again → Fill
2. CI check: Validate every mapping document against its template

**Best practices:** Mapping documents are JSON or YAML: a list of {pdfFieldName, valueSource, staticValue | expression} or an object with "mappings" and a "fields" shorthand.`

	PDFFillFormDescription = `Fill a PDF form once per item and write the filled documents.

**When to use:** Generating filled forms from structured data: one contract per customer, one application per record.

**Why it's useful:** Values are coerced to each field's type: checkboxes accept true/false, yes/no, 1/0 and on/off; radio and dropdown values are matched case-insensitively against the allowed options; text respects the maximum length. Problems are reported per item with the field and the reason.

**Examples:**
• Single form: "Fill forms/w9.pdf with name 'Ada Lovelace' and check 'agree'"
• Batch: "Fill contract.pdf for each of these 20 customers into out/contracts"
• Lenient batch: "Fill with skip_missing so mappings for fields absent from older revisions are ignored"

**Common workflows:**
1. Data export: Query records → Map to fields → Fill → Archive filled PDFs
2. Review: Fill with continue_on_fail → Inspect failed items → Fix data → Refill failures

**Best practices:** Validate mappings first, use flatten for documents that must not be edited after filling.`

	PDFServerInfoDescription = `Show the server configuration, the PDF templates available and usage guidance.

**When to use:** At the start of a session, to learn where templates live and how the server is configured.

**Why it's useful:** Lists the templates in the configured directory, the fill backend, the size limit and the field inventory cache statistics.

**Examples:**
• Orientation: "What forms can you fill?"
• Diagnostics: "Which backend is this server using?"

**Best practices:** Use the listed template paths directly with the other tools.`
)

// ToolDescriptions maps tool names to their comprehensive descriptions
var ToolDescriptions = map[string]string{
	"pdf_inspect_fields":    PDFInspectFieldsDescription,
	"pdf_validate_mappings": PDFValidateMappingsDescription,
	"pdf_fill_form":         PDFFillFormDescription,
	"pdf_server_info":       PDFServerInfoDescription,
}

// GetToolDescription returns the comprehensive description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the names of all available tools, sorted
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
