package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/a3tai/mcp-pdf-filler/internal/pdf"
)

func printFields(w io.Writer, result *pdf.PDFInspectFieldsResult) {
	if len(result.Fields) == 0 {
		fmt.Fprintf(w, "⚠️  No fillable fields found in %s\n", result.Path)
		return
	}

	fmt.Fprintf(w, "✅ Found %d fillable fields in %s\n\n", len(result.Fields), result.Path)
	for i, field := range result.Fields {
		fmt.Fprintf(w, "[%d] %s\n", i+1, field.Name)
		fmt.Fprintf(w, "    Type: %s\n", field.Type)

		if field.DefaultValue != nil && field.DefaultValue != "" {
			fmt.Fprintf(w, "    Default: %v\n", field.DefaultValue)
		}
		if field.Required {
			fmt.Fprintf(w, "    Properties: [Required]\n")
		}
		if len(field.Options) > 0 {
			fmt.Fprintf(w, "    Options: %s\n", strings.Join(field.Options, ", "))
		}
		if field.MaxLength > 0 {
			fmt.Fprintf(w, "    Max Length: %d\n", field.MaxLength)
		}
		fmt.Fprintln(w)
	}
}

func printValidation(w io.Writer, result *pdf.PDFValidateMappingsResult) {
	if result.Valid {
		fmt.Fprintf(w, "✅ All mappings are valid for %s (%d fields)\n", result.Path, result.FieldCount)
		return
	}

	fmt.Fprintf(w, "❌ Found %d problem(s) in the mappings for %s\n", len(result.Problems), result.Path)
	for _, p := range result.Problems {
		fmt.Fprintf(w, "  • %s\n", p)
	}
}

func printFill(w io.Writer, result *pdf.PDFFillFormResult) {
	fmt.Fprintf(w, "Filled %s: %d succeeded, %d failed\n\n", result.Path, result.Succeeded, result.Failed)
	for i, f := range result.Files {
		r := f.Result
		if !r.Success {
			fmt.Fprintf(w, "❌ [%d] %s error: %s\n", i+1, r.ErrorType, r.Error)
			continue
		}
		fmt.Fprintf(w, "✅ [%d] %s (%d of %d fields)\n", i+1, f.Path, r.FilledFieldCount, r.FieldCount)
		if len(r.SkippedFields) > 0 {
			fmt.Fprintf(w, "    Skipped: %s\n", strings.Join(r.SkippedFields, ", "))
		}
	}
}
