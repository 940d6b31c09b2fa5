package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-pdf-filler/internal/config"
	"github.com/a3tai/mcp-pdf-filler/internal/descriptions"
	"github.com/a3tai/mcp-pdf-filler/internal/fieldmap"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf"
	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-filler/internal/validation"
)

const shutdownTimeout = 5 * time.Second

// Server represents the MCP server instance
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	mcpServer  *server.MCPServer
	logger     *slog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, pdfService *pdf.Service, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		mcpServer:  mcpServer,
		logger:     logger,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	inspectTool := mcp.NewTool(
		"pdf_inspect_fields",
		mcp.WithDescription(descriptions.PDFInspectFieldsDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("PDF file, relative to the configured directory or absolute inside it"),
		),
	)
	s.mcpServer.AddTool(inspectTool, s.handleInspectFields)

	validateTool := mcp.NewTool(
		"pdf_validate_mappings",
		mcp.WithDescription(descriptions.PDFValidateMappingsDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("PDF file, relative to the configured directory or absolute inside it"),
		),
		mcp.WithString("mappings",
			mcp.Required(),
			mcp.Description("Mapping document (JSON or YAML)"),
		),
	)
	s.mcpServer.AddTool(validateTool, s.handleValidateMappings)

	fillTool := mcp.NewTool(
		"pdf_fill_form",
		mcp.WithDescription(descriptions.PDFFillFormDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("PDF file, relative to the configured directory or absolute inside it"),
		),
		mcp.WithString("mappings",
			mcp.Required(),
			mcp.Description("Mapping document (JSON or YAML)"),
		),
		mcp.WithString("items",
			mcp.Description("JSON array of item objects expressions read from; one filled PDF per item"),
		),
		mcp.WithString("output_dir",
			mcp.Description("Directory for the filled PDFs (defaults to the configured directory)"),
		),
		mcp.WithString("output_file_name",
			mcp.Description("Output file name, may contain expressions such as {{ $json.id }}"),
		),
		mcp.WithBoolean("skip_missing",
			mcp.Description("Ignore mappings whose field is not in the PDF"),
		),
		mcp.WithBoolean("flatten",
			mcp.Description("Make the filled fields read-only"),
		),
		mcp.WithBoolean("validate_first",
			mcp.Description("Report every missing field before filling"),
		),
		mcp.WithBoolean("continue_on_fail",
			mcp.Description("Report failing items instead of stopping the batch"),
		),
	)
	s.mcpServer.AddTool(fillTool, s.handleFillForm)

	serverInfoTool := mcp.NewTool(
		"pdf_server_info",
		mcp.WithDescription(descriptions.PDFServerInfoDescription),
	)
	s.mcpServer.AddTool(serverInfoTool, s.handleServerInfo)
}

// Handler functions
func (s *Server) handleInspectFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.InspectFields(ctx, pdf.PDFInspectFieldsRequest{Path: path})
	if err != nil {
		return s.errorResult("pdf_inspect_fields", err), nil
	}

	return mcp.NewToolResultText(s.formatInspectFieldsResult(result)), nil
}

func (s *Server) handleValidateMappings(ctx context.Context, request mcp.CallToolRequest) (
	*mcp.CallToolResult, error,
) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mappings, err := mappingsArgument(request.GetArguments())
	if err != nil {
		return s.errorResult("pdf_validate_mappings", err), nil
	}

	result, err := s.pdfService.ValidateMappings(ctx, pdf.PDFValidateMappingsRequest{Path: path, Mappings: mappings})
	if err != nil {
		return s.errorResult("pdf_validate_mappings", err), nil
	}

	return mcp.NewToolResultText(s.formatValidateMappingsResult(result)), nil
}

func (s *Server) handleFillForm(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()
	mappings, err := mappingsArgument(args)
	if err != nil {
		return s.errorResult("pdf_fill_form", err), nil
	}
	items, err := itemsArgument(args)
	if err != nil {
		return s.errorResult("pdf_fill_form", err), nil
	}

	req := pdf.PDFFillFormRequest{
		Path:           path,
		Mappings:       mappings,
		Items:          items,
		OutputDir:      stringArgument(args, "output_dir"),
		OutputFileName: stringArgument(args, "output_file_name"),
		SkipMissing:    boolArgument(args, "skip_missing"),
		Flatten:        boolArgument(args, "flatten"),
	}
	if v := boolArgument(args, "validate_first"); v != nil {
		req.ValidateFirst = *v
	}
	if v := boolArgument(args, "continue_on_fail"); v != nil {
		req.ContinueOnFail = *v
	}

	result, err := s.pdfService.FillForm(ctx, req)
	if err != nil {
		return s.errorResult("pdf_fill_form", err), nil
	}

	return mcp.NewToolResultText(s.formatFillFormResult(result)), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := s.pdfService.ServerInfo(ctx, s.config.ServerName, s.config.Version)
	return mcp.NewToolResultText(s.formatServerInfoResult(result)), nil
}

// errorResult renders err with its category so the client can tell bad
// input from server failures
func (s *Server) errorResult(tool string, err error) *mcp.CallToolResult {
	pe := pdferrors.Wrap(err)
	s.logger.Debug("tool failed", "tool", tool, "error_type", pe.Type.String(), "error", pe.Message)

	text := fmt.Sprintf("%s error: %s", pe.Type.String(), pe.Message)
	if pe.Field != "" {
		text += fmt.Sprintf("\nField: %s", pe.Field)
	}
	if len(pe.Details) > 0 {
		if details, err := json.Marshal(pe.Details); err == nil {
			text += fmt.Sprintf("\nDetails: %s", details)
		}
	}
	return mcp.NewToolResultError(text)
}

// Argument helpers

// mappingsArgument accepts a JSON or YAML document, or an already decoded
// JSON value
func mappingsArgument(args map[string]any) ([]fieldmap.FieldMapping, error) {
	switch v := args["mappings"].(type) {
	case nil:
		return nil, pdferrors.NewConfigError("mappings are required")
	case string:
		return validation.LoadMappings([]byte(v), validation.FormatAuto)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, pdferrors.NewConfigError("invalid mappings: %v", err)
		}
		return validation.LoadMappings(data, validation.FormatJSON)
	}
}

func itemsArgument(args map[string]any) ([]map[string]any, error) {
	var data []byte
	switch v := args["items"].(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		data = []byte(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, pdferrors.NewConfigError("invalid items: %v", err)
		}
		data = encoded
	}

	var items []map[string]any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, pdferrors.NewConfigError("items must be a JSON array of objects: %v", err)
	}
	return items, nil
}

func stringArgument(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func boolArgument(args map[string]any, key string) *bool {
	switch v := args[key].(type) {
	case bool:
		return &v
	case string:
		b := strings.EqualFold(v, "true")
		return &b
	}
	return nil
}

// Formatting methods
func (s *Server) formatInspectFieldsResult(result *pdf.PDFInspectFieldsResult) string {
	if len(result.Fields) == 0 {
		return fmt.Sprintf("No fillable fields found in %s", result.Path)
	}

	text := fmt.Sprintf("Found %d fillable field(s) in %s\n\n", len(result.Fields), result.Path)
	for i, f := range result.Fields {
		text += fmt.Sprintf("%d. %s (%s)", i+1, f.Name, f.Type)
		if f.Required {
			text += " required"
		}
		text += "\n"
		if len(f.Options) > 0 {
			text += fmt.Sprintf("   Options: %s\n", strings.Join(f.Options, ", "))
		}
		if f.MaxLength > 0 {
			text += fmt.Sprintf("   Max length: %d\n", f.MaxLength)
		}
		if f.DefaultValue != nil && f.DefaultValue != "" {
			text += fmt.Sprintf("   Default: %v\n", f.DefaultValue)
		}
	}

	if data, err := json.MarshalIndent(result.Fields, "", "  "); err == nil {
		text += "\nJSON:\n" + string(data)
	}
	return text
}

func (s *Server) formatValidateMappingsResult(result *pdf.PDFValidateMappingsResult) string {
	if result.Valid {
		return fmt.Sprintf("All mappings are valid for %s (%d fields in the form)", result.Path, result.FieldCount)
	}

	text := fmt.Sprintf("Found %d problem(s) in the mappings for %s:\n", len(result.Problems), result.Path)
	for i, p := range result.Problems {
		text += fmt.Sprintf("%d. %s\n", i+1, p)
	}
	return text
}

func (s *Server) formatFillFormResult(result *pdf.PDFFillFormResult) string {
	text := fmt.Sprintf("Filled %s: %d succeeded, %d failed\n", result.Path, result.Succeeded, result.Failed)
	text += fmt.Sprintf("Output directory: %s\n\n", result.OutputDir)

	for i, f := range result.Files {
		r := f.Result
		if !r.Success {
			text += fmt.Sprintf("%d. FAILED (%s error): %s\n", i+1, r.ErrorType, r.Error)
			continue
		}
		text += fmt.Sprintf("%d. %s\n", i+1, f.Path)
		text += fmt.Sprintf("   Fields filled: %d of %d\n", r.FilledFieldCount, r.FieldCount)
		if len(r.SkippedFields) > 0 {
			text += fmt.Sprintf("   Skipped (not in PDF): %s\n", strings.Join(r.SkippedFields, ", "))
		}
	}
	return text
}

func (s *Server) formatServerInfoResult(result *pdf.PDFServerInfoResult) string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", result.ServerName, result.Version)
	text += fmt.Sprintf("📁 Default Directory: %s\n", result.DefaultDirectory)
	text += fmt.Sprintf("📏 Max File Size: %d MB\n", result.MaxFileSize/(1024*1024))
	text += fmt.Sprintf("⚙️  Fill Backend: %s\n", result.Backend)
	text += fmt.Sprintf("🗂️  Field Cache: %d/%d entries, hit rate %.0f%%\n\n",
		result.Cache.Size, result.Cache.Capacity, result.Cache.HitRate)

	if len(result.DirectoryContents) > 0 {
		text += fmt.Sprintf("📂 Templates (%d PDF files found):\n", len(result.DirectoryContents))
		for i, file := range result.DirectoryContents {
			if i >= 10 { // Limit to first 10 files for readability
				text += fmt.Sprintf("   ... and %d more files\n", len(result.DirectoryContents)-10)
				break
			}
			text += fmt.Sprintf("   %d. %s (%d bytes)\n", i+1, file.Name, file.Size)
		}
		text += "\n"
	} else {
		text += "📂 Templates: No PDF files found in default directory\n\n"
	}

	text += "🛠️  Available Tools:\n"
	for _, tool := range result.AvailableTools {
		text += fmt.Sprintf("\n• %s\n", tool.Name)
		text += fmt.Sprintf("  Usage: %s\n", tool.Usage)
		text += fmt.Sprintf("  Parameters: %s\n", tool.Parameters)
	}

	text += "\n" + result.UsageGuidance
	return text
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(_ context.Context) error {
	s.logger.Debug("starting PDF form filler in stdio mode", "dir", s.config.PDFDirectory, "backend", s.pdfService.Backend())

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves MCP over HTTP with server-sent events on Address()
// until ctx is cancelled
func (s *Server) runServerMode(ctx context.Context) error {
	sseServer := server.NewSSEServer(s.mcpServer)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting PDF form filler in server mode", "address", s.config.Address())
		errCh <- sseServer.Start(s.config.Address())
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := sseServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve http: %w", err)
	}
}
