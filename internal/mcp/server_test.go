package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-filler/internal/config"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf"
	"github.com/a3tai/mcp-pdf-filler/internal/testutil"
)

// TestFakeProcessor is the external processor used by the fill tests
func TestFakeProcessor(t *testing.T) {
	testutil.ServeFakeProcessor()
}

func newTestServer(t *testing.T, backendName string) (*Server, string) {
	t.Helper()
	tempDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tempDir, "form.pdf"), testutil.FormPDF(), 0o644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.PDFDirectory = tempDir
	cfg.ServerName = "test-server"
	cfg.Backend = backendName
	if backendName == "process" {
		t.Setenv(testutil.FakeProcessorEnv, "1")
		cfg.ProcessCommand = testutil.FakeProcessorCommand("TestFakeProcessor")
	}

	pdfService, err := pdf.NewService(cfg, nil)
	if err != nil {
		t.Fatalf("failed to create PDF service: %v", err)
	}
	server, err := NewServer(cfg, pdfService, nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return server, tempDir
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestNewServer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PDFDirectory = t.TempDir()
	pdfService, err := pdf.NewService(cfg, nil)
	require.NoError(t, err)

	tests := []struct {
		name        string
		config      *config.Config
		service     *pdf.Service
		expectError bool
	}{
		{name: "valid config", config: cfg, service: pdfService},
		{name: "nil config", config: nil, service: pdfService, expectError: true},
		{name: "nil service", config: cfg, service: nil, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := NewServer(tt.config, tt.service, nil)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, server)
				return
			}
			require.NoError(t, err)
			assert.Same(t, tt.config, server.config)
			assert.Same(t, tt.service, server.pdfService)
			assert.NotNil(t, server.mcpServer)
			assert.NotNil(t, server.logger)
		})
	}
}

func TestServer_HandleInspectFields(t *testing.T) {
	server, _ := newTestServer(t, "native")

	result, err := server.handleInspectFields(context.Background(), callRequest(map[string]any{"path": "form.pdf"}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))

	text := extractTextFromResult(result)
	for _, want := range []string{
		"Found 6 fillable field(s) in form.pdf",
		"1. name (text) required",
		"Max length: 20",
		"Default: Jane",
		"4. country (dropdown)",
		"Options: USA, CA",
		"5. person.email (text)",
		`"name": "agree"`,
	} {
		assert.Contains(t, text, want)
	}
}

func TestServer_HandleInspectFields_Errors(t *testing.T) {
	server, _ := newTestServer(t, "native")

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{name: "missing path", args: map[string]any{}, want: "path"},
		{name: "outside directory", args: map[string]any{"path": "../secret.pdf"}, want: "error"},
		{name: "missing file", args: map[string]any{"path": "nope.pdf"}, want: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := server.handleInspectFields(context.Background(), callRequest(tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, extractTextFromResult(result), tt.want)
		})
	}
}

func TestServer_HandleValidateMappings(t *testing.T) {
	server, _ := newTestServer(t, "native")

	tests := []struct {
		name     string
		mappings any
		isError  bool
		want     []string
	}{
		{
			name:     "valid yaml",
			mappings: "fields:\n  name: Ada\n  agree: true\n",
			want:     []string{"All mappings are valid for form.pdf (6 fields in the form)"},
		},
		{
			name: "decoded json with unknown field",
			mappings: []any{
				map[string]any{"pdfFieldName": "name", "staticValue": "Ada"},
				map[string]any{"pdfFieldName": "ssn", "staticValue": "123"},
			},
			want: []string{"Found 1 problem(s)", `field "ssn" not found in PDF`},
		},
		{
			name:     "malformed document",
			mappings: `[{"pdfFieldName": }]`,
			isError:  true,
			want:     []string{"config error: invalid mapping document"},
		},
		{
			name:    "missing mappings",
			isError: true,
			want:    []string{"config error: mappings are required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := map[string]any{"path": "form.pdf"}
			if tt.mappings != nil {
				args["mappings"] = tt.mappings
			}

			result, err := server.handleValidateMappings(context.Background(), callRequest(args))
			require.NoError(t, err)
			assert.Equal(t, tt.isError, result.IsError)

			text := extractTextFromResult(result)
			for _, want := range tt.want {
				assert.Contains(t, text, want)
			}
		})
	}
}

func TestServer_HandleFillForm(t *testing.T) {
	server, tempDir := newTestServer(t, "process")

	result, err := server.handleFillForm(context.Background(), callRequest(map[string]any{
		"path":       "form.pdf",
		"mappings":   `{"fields": {"name": "={{ $json.name }}", "agree": "on", "country": "usa"}}`,
		"items":      `[{"name": "Ada"}, {"name": "Grace"}]`,
		"output_dir": "filled",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))

	text := extractTextFromResult(result)
	assert.Contains(t, text, "Filled form.pdf: 2 succeeded, 0 failed")
	assert.Contains(t, text, "Fields filled: 3 of 3")

	for _, name := range []string{"form-filled-1.pdf", "form-filled-2.pdf"} {
		path := filepath.Join(tempDir, "filled", name)
		assert.Contains(t, text, path)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), testutil.FilledPrefix))
	}
}

func TestServer_HandleFillForm_ContinueOnFail(t *testing.T) {
	server, _ := newTestServer(t, "process")

	result, err := server.handleFillForm(context.Background(), callRequest(map[string]any{
		"path":             "form.pdf",
		"mappings":         `[{"pdfFieldName": "name", "valueSource": "expression", "expression": "{{ $json.name }}"}]`,
		"items":            []any{map[string]any{"name": "Ada"}, map[string]any{"name": strings.Repeat("x", 21)}},
		"continue_on_fail": true,
		"skip_missing":     "true",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))

	text := extractTextFromResult(result)
	assert.Contains(t, text, "1 succeeded, 1 failed")
	assert.Contains(t, text, "2. FAILED (data error)")
	assert.Contains(t, text, "exceeds maximum length")
}

func TestServer_HandleFillForm_Errors(t *testing.T) {
	server, _ := newTestServer(t, "process")

	tests := []struct {
		name string
		args map[string]any
		want []string
	}{
		{
			name: "invalid checkbox value",
			args: map[string]any{"path": "form.pdf", "mappings": `{"fields": {"agree": "perhaps"}}`},
			want: []string{"data error:", "Field: agree", `"reason":"invalid_boolean"`},
		},
		{
			name: "items not an array",
			args: map[string]any{"path": "form.pdf", "mappings": `{"fields": {"agree": true}}`, "items": `{"a": 1}`},
			want: []string{"config error: items must be a JSON array of objects"},
		},
		{
			name: "output outside directory",
			args: map[string]any{"path": "form.pdf", "mappings": `{"fields": {"agree": true}}`, "output_dir": "../out"},
			want: []string{"config error:"},
		},
		{
			name: "missing path",
			args: map[string]any{"mappings": `{"fields": {"agree": true}}`},
			want: []string{"path"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := server.handleFillForm(context.Background(), callRequest(tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)

			text := extractTextFromResult(result)
			for _, want := range tt.want {
				assert.Contains(t, text, want)
			}
		})
	}
}

func TestServer_HandleServerInfo(t *testing.T) {
	server, _ := newTestServer(t, "native")

	result, err := server.handleServerInfo(context.Background(), callRequest(nil))
	require.NoError(t, err)

	text := extractTextFromResult(result)
	for _, want := range []string{
		"test-server v1.0.0",
		"Fill Backend: native",
		"Templates (1 PDF files found)",
		"1. form.pdf",
		"• pdf_fill_form",
		"PDF Form Filler Usage Guide",
	} {
		assert.Contains(t, text, want)
	}
}

func TestBoolArgument(t *testing.T) {
	yes, no := true, false

	tests := []struct {
		name     string
		value    any
		expected *bool
	}{
		{"bool true", true, &yes},
		{"bool false", false, &no},
		{"string true", "TRUE", &yes},
		{"string other", "nope", &no},
		{"missing", nil, nil},
		{"number", 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := map[string]any{}
			if tt.value != nil {
				args["flag"] = tt.value
			}
			assert.Equal(t, tt.expected, boolArgument(args, "flag"))
		})
	}
}

func TestItemsArgument(t *testing.T) {
	items, err := itemsArgument(map[string]any{"items": "  "})
	require.NoError(t, err)
	assert.Nil(t, items)

	items, err = itemsArgument(map[string]any{"items": `[{"id": 1}]`})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": float64(1)}}, items)

	items, err = itemsArgument(map[string]any{"items": []any{map[string]any{"id": "a"}}})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": "a"}}, items)
}

// Helper function to extract text from MCP result
func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}

	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return textContent.Text
		}
		if textContentPtr, ok := content.(*mcp.TextContent); ok {
			return textContentPtr.Text
		}
	}

	return ""
}
