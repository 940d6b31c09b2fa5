package pdf

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/a3tai/mcp-pdf-filler/internal/descriptions"
)

// TemplateScanner lists the PDF templates below a directory within depth,
// count and time limits
type TemplateScanner struct {
	maxDepth  int
	fileLimit int
	timeLimit time.Duration
}

// NewTemplateScanner creates a scanner; zero limits are unlimited
func NewTemplateScanner(maxDepth, fileLimit int, timeLimit time.Duration) *TemplateScanner {
	return &TemplateScanner{maxDepth: maxDepth, fileLimit: fileLimit, timeLimit: timeLimit}
}

// Scan walks root and returns the PDF files found, skipping hidden entries
// and symlinks. truncated is set when a limit stopped the walk early.
func (s *TemplateScanner) Scan(ctx context.Context, root string) (files []FileInfo, truncated bool, err error) {
	if s.timeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeLimit)
		defer cancel()
	}

	files = []FileInfo{}
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are skipped
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			truncated = true
			return fs.SkipAll
		}

		if path == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || d.Type()&os.ModeSymlink != 0 {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if s.maxDepth > 0 && depth(root, path) >= s.maxDepth {
				return fs.SkipDir
			}
			return nil
		}

		if !strings.EqualFold(filepath.Ext(d.Name()), ".pdf") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, FileInfo{
			Path:         path,
			Name:         d.Name(),
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format("2006-01-02 15:04:05"),
		})
		if s.fileLimit > 0 && len(files) >= s.fileLimit {
			truncated = true
			return fs.SkipAll
		}
		return nil
	})
	return files, truncated, walkErr
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// ToolInfos describes the tools the server exposes
func ToolInfos() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "pdf_inspect_fields",
			Description: descriptions.GetToolDescription("pdf_inspect_fields"),
			Usage:       "Use this tool first to learn the exact field names, types, options and limits of a form.",
			Parameters:  "path (required): PDF file, relative to the configured directory or absolute inside it",
		},
		{
			Name:        "pdf_validate_mappings",
			Description: descriptions.GetToolDescription("pdf_validate_mappings"),
			Usage:       "Use this tool to check a mapping list against a form before filling it.",
			Parameters: "path (required): PDF file, " +
				"mappings (required): JSON or YAML mapping document",
		},
		{
			Name:        "pdf_fill_form",
			Description: descriptions.GetToolDescription("pdf_fill_form"),
			Usage:       "Use this tool to fill a form once per item and write the filled PDFs.",
			Parameters: "path (required): PDF file, mappings (required): JSON or YAML mapping document, " +
				"items (optional): JSON array of item objects, output_dir (optional), output_file_name (optional), " +
				"skip_missing (optional), flatten (optional), validate_first (optional), continue_on_fail (optional)",
		},
		{
			Name:        "pdf_server_info",
			Description: descriptions.GetToolDescription("pdf_server_info"),
			Usage:       "Use this tool to see the configuration, available templates and cache statistics.",
			Parameters:  "none",
		},
	}
}

// ServerInfo returns server information, the templates found in the
// configured directory and usage guidance
func (s *Service) ServerInfo(ctx context.Context, serverName, version string) *PDFServerInfoResult {
	scanner := NewTemplateScanner(5, 100, 3*time.Second)
	files, truncated, err := scanner.Scan(ctx, s.Directory())
	if err != nil {
		s.logger.Debug("template scan failed", "dir", s.Directory(), "error", err)
		files = []FileInfo{}
	}

	usageGuidance := `PDF Form Filler Usage Guide:

1. INSPECT THE FORM:
   - Use 'pdf_inspect_fields' to list field names, types (text, checkbox, radio, dropdown),
     options and maximum lengths

2. WRITE MAPPINGS:
   - Each mapping names a pdfFieldName and either a staticValue or an expression
   - Expressions such as "={{ $json.customer.name }}" read from each item

3. VALIDATE:
   - Use 'pdf_validate_mappings' to get every problem at once

4. FILL:
   - Use 'pdf_fill_form' with one item per filled copy
   - Checkboxes accept true/false, yes/no, 1/0 or on/off
   - Radio and dropdown values must match an option (case-insensitive)

IMPORTANT NOTES:
- Paths are confined to ` + s.Directory() + `
- The server accepts files up to ` + fmt.Sprintf("%d", s.MaxFileSize()/(1024*1024)) + `MB
- Fill backend: ` + s.Backend()

	return &PDFServerInfoResult{
		ServerName:        serverName,
		Version:           version,
		DefaultDirectory:  s.Directory(),
		MaxFileSize:       s.MaxFileSize(),
		Backend:           s.Backend(),
		Cache:             s.CacheStats(),
		AvailableTools:    ToolInfos(),
		DirectoryContents: files,
		Truncated:         truncated,
		UsageGuidance:     usageGuidance,
	}
}
