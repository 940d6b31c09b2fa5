package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/a3tai/mcp-pdf-filler/internal/fieldmap"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf"
	"github.com/a3tai/mcp-pdf-filler/internal/validation"
)

func newInspectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <pdf_file>",
		Short: "List the fillable fields of a PDF form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service(cmd)
			if err != nil {
				return err
			}

			result, err := svc.InspectFields(cmd.Context(), pdf.PDFInspectFieldsRequest{Path: args[0]})
			if err != nil {
				return err
			}
			return render(cmd, opts.format, result, func() { printFields(cmd.OutOrStdout(), result) })
		},
	}
}

func newValidateCmd(opts *options) *cobra.Command {
	var mappingsFile string

	cmd := &cobra.Command{
		Use:   "validate <pdf_file>",
		Short: "Check a mapping document against a PDF form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service(cmd)
			if err != nil {
				return err
			}
			mappings, err := readMappings(mappingsFile)
			if err != nil {
				return err
			}

			result, err := svc.ValidateMappings(cmd.Context(), pdf.PDFValidateMappingsRequest{
				Path:     args[0],
				Mappings: mappings,
			})
			if err != nil {
				return err
			}
			if err := render(cmd, opts.format, result, func() { printValidation(cmd.OutOrStdout(), result) }); err != nil {
				return err
			}
			if !result.Valid {
				return fmt.Errorf("found %d problem(s) in %s", len(result.Problems), mappingsFile)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&mappingsFile, "mappings", "m", "", "mapping document (.json, .yaml or .yml)")
	_ = cmd.MarkFlagRequired("mappings")
	return cmd
}

func newFillCmd(opts *options) *cobra.Command {
	var (
		mappingsFile   string
		itemsFile      string
		outputDir      string
		outputFileName string
		skipMissing    bool
		flatten        bool
		validateFirst  bool
		continueOnFail bool
	)

	cmd := &cobra.Command{
		Use:   "fill <pdf_file>",
		Short: "Fill a PDF form once per item",
		Long: `Fill a PDF form once per item of the items document and write the filled
PDFs into the output directory. Without --items the form is filled once from
the static mappings.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service(cmd)
			if err != nil {
				return err
			}
			mappings, err := readMappings(mappingsFile)
			if err != nil {
				return err
			}
			items, err := readItems(itemsFile)
			if err != nil {
				return err
			}

			req := pdf.PDFFillFormRequest{
				Path:           args[0],
				Mappings:       mappings,
				Items:          items,
				OutputDir:      outputDir,
				OutputFileName: outputFileName,
				ValidateFirst:  validateFirst,
				ContinueOnFail: continueOnFail,
			}
			if cmd.Flags().Changed("skip-missing") {
				req.SkipMissing = &skipMissing
			}
			if cmd.Flags().Changed("flatten") {
				req.Flatten = &flatten
			}

			result, err := svc.FillForm(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := render(cmd, opts.format, result, func() { printFill(cmd.OutOrStdout(), result) }); err != nil {
				return err
			}
			if result.Failed > 0 {
				return fmt.Errorf("%d of %d item(s) failed", result.Failed, len(result.Files))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&mappingsFile, "mappings", "m", "", "mapping document (.json, .yaml or .yml)")
	cmd.Flags().StringVarP(&itemsFile, "items", "i", "", "items document: an array of objects (.json, .yaml or .yml)")
	cmd.Flags().StringVar(&outputDir, "out", "", "output directory inside --dir (default: --dir)")
	cmd.Flags().StringVar(&outputFileName, "output-file-name", "", "output file name, may contain expressions")
	cmd.Flags().BoolVar(&skipMissing, "skip-missing", false, "ignore mappings whose field is not in the PDF")
	cmd.Flags().BoolVar(&flatten, "flatten", false, "make the filled fields read-only")
	cmd.Flags().BoolVar(&validateFirst, "validate-first", false, "report every missing field before filling")
	cmd.Flags().BoolVar(&continueOnFail, "continue-on-fail", false, "report failing items instead of stopping")
	_ = cmd.MarkFlagRequired("mappings")
	return cmd
}

func readMappings(path string) ([]fieldmap.FieldMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mappings: %w", err)
	}
	return validation.LoadMappings(data, validation.FormatFromPath(path))
}

// readItems decodes an items document; YAML is a superset of JSON so both
// go through the YAML decoder
func readItems(path string) ([]map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}

	var items []map[string]any
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("items must be an array of objects: %w", err)
	}
	return items, nil
}

// render writes v as indented JSON or calls text
func render(cmd *cobra.Command, format string, v any, text func()) error {
	if format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	}
	text()
	return nil
}
