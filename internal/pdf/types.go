package pdf

import (
	"github.com/a3tai/mcp-pdf-filler/internal/fieldmap"
	"github.com/a3tai/mcp-pdf-filler/internal/node"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/inventory"
)

// FileInfo represents information about a PDF file
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// PDFInspectFieldsRequest represents a request to list the fillable fields of a PDF
type PDFInspectFieldsRequest struct {
	Path string `json:"path"`
}

// PDFInspectFieldsResult represents the field inventory of a PDF
type PDFInspectFieldsResult struct {
	Path     string               `json:"path"`
	Identity string               `json:"identity"`
	Fields   []fieldmap.FieldInfo `json:"fields"`
}

// PDFValidateMappingsRequest represents a request to check mappings against a PDF
type PDFValidateMappingsRequest struct {
	Path     string                  `json:"path"`
	Mappings []fieldmap.FieldMapping `json:"mappings"`
}

// PDFValidateMappingsResult represents every problem found in a mapping list
type PDFValidateMappingsResult struct {
	Path       string   `json:"path"`
	Valid      bool     `json:"valid"`
	FieldCount int      `json:"field_count"`
	Problems   []string `json:"problems"`
	Missing    []string `json:"missing,omitempty"`
}

// PDFFillFormRequest represents a request to fill a PDF once per item
type PDFFillFormRequest struct {
	Path     string                  `json:"path"`
	Mappings []fieldmap.FieldMapping `json:"mappings"`
	// Items are the JSON payloads expressions are evaluated against; a
	// single empty item is used when none are given
	Items          []map[string]any `json:"items,omitempty"`
	OutputDir      string           `json:"output_dir,omitempty"`
	OutputFileName string           `json:"output_file_name,omitempty"`
	// SkipMissing and Flatten fall back to the configured defaults when nil
	SkipMissing    *bool `json:"skip_missing,omitempty"`
	Flatten        *bool `json:"flatten,omitempty"`
	ValidateFirst  bool  `json:"validate_first,omitempty"`
	ContinueOnFail bool  `json:"continue_on_fail,omitempty"`
}

// FilledFile is one output of a fill request
type FilledFile struct {
	Path   string      `json:"path,omitempty"`
	Result node.Result `json:"result"`
}

// PDFFillFormResult represents the outcome of a fill request
type PDFFillFormResult struct {
	Path      string       `json:"path"`
	OutputDir string       `json:"output_dir"`
	Files     []FilledFile `json:"files"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

// PDFServerInfoResult represents server information and usage guidance
type PDFServerInfoResult struct {
	ServerName        string               `json:"server_name"`
	Version           string               `json:"version"`
	DefaultDirectory  string               `json:"default_directory"`
	MaxFileSize       int64                `json:"max_file_size"`
	Backend           string               `json:"backend"`
	Cache             inventory.CacheStats `json:"cache"`
	AvailableTools    []ToolInfo           `json:"available_tools"`
	DirectoryContents []FileInfo           `json:"directory_contents"`
	Truncated         bool                 `json:"truncated,omitempty"`
	UsageGuidance     string               `json:"usage_guidance"`
}

// ToolInfo represents information about an available tool
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
	Parameters  string `json:"parameters"`
}
