package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/a3tai/mcp-pdf-filler/internal/config"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf"
)

// options are the flags shared by every subcommand
type options struct {
	dir            string
	backend        string
	processCommand string
	logLevel       string
	format         string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "pdf_fill_form",
		Short: "Inspect PDF forms and fill them from mapping documents",
		Long: `pdf_fill_form fills PDF forms from the command line.

Field mappings are JSON or YAML documents naming a pdfFieldName and either a
staticValue or an expression such as "={{ $json.customer.name }}" that reads
from each item. One filled PDF is written per item.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.dir, "dir", ".",
		"directory PDF templates, mapping and output files are confined to")
	rootCmd.PersistentFlags().StringVar(&opts.backend, "backend", config.DefaultBackend,
		"fill backend: native or process")
	rootCmd.PersistentFlags().StringVar(&opts.processCommand, "process-command", "",
		"command line of the external processor (process backend)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn",
		"log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&opts.format, "format", "o", "text",
		"output format: text or json")

	rootCmd.AddCommand(
		newInspectCmd(opts),
		newValidateCmd(opts),
		newFillCmd(opts),
	)
	return rootCmd
}

// service builds the PDF service for the shared flags
func (o *options) service(cmd *cobra.Command) (*pdf.Service, error) {
	if o.format != "text" && o.format != "json" {
		return nil, fmt.Errorf("unsupported output format: %s", o.format)
	}

	dir, err := filepath.Abs(o.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	cfg := config.DefaultConfig()
	cfg.PDFDirectory = dir
	cfg.Backend = o.backend
	cfg.LogLevel = o.logLevel
	cfg.ServerName = "pdf_fill_form"
	if o.processCommand != "" {
		cfg.ProcessCommand = o.processCommand
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return pdf.NewService(cfg, cfg.NewLogger(cmd.ErrOrStderr()))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
