package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/a3tai/mcp-pdf-filler/internal/fieldmap"
	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
)

// DefaultProcessCommand runs the fillpdf-based processor script
var DefaultProcessCommand = []string{"python3", "fillpdf-processor.py"}

// ProcessOptions configures a ProcessBackend
type ProcessOptions struct {
	// Command is the executable followed by its arguments
	Command []string
	// Env is appended to the current environment of the child
	Env     []string
	Timeout time.Duration
	MaxSize int64
}

// ProcessBackend delegates inspection and filling to an external processor
// that reads one JSON request on stdin and writes one JSON response on stdout
type ProcessBackend struct {
	opts   ProcessOptions
	logger *slog.Logger
}

// NewProcessBackend creates a backend running opts.Command for every request
func NewProcessBackend(opts ProcessOptions, logger *slog.Logger) *ProcessBackend {
	if len(opts.Command) == 0 {
		opts.Command = DefaultProcessCommand
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessBackend{opts: opts, logger: logger}
}

// Name returns the backend name
func (b *ProcessBackend) Name() string {
	return NameProcess
}

type processRequest struct {
	Action        string         `json:"action"`
	PDFData       string         `json:"pdfData"`
	FieldMappings map[string]any `json:"fieldMappings,omitempty"`
	Options       *FillOptions   `json:"options,omitempty"`
}

type processResponse struct {
	Success   bool           `json:"success"`
	Fields    []processField `json:"fields"`
	Data      string         `json:"data"`
	Metadata  processMeta    `json:"metadata"`
	Error     string         `json:"error"`
	ErrorType string         `json:"errorType"`
	Details   map[string]any `json:"details"`
}

type processMeta struct {
	FieldCount       int     `json:"fieldCount"`
	FilledFieldCount int     `json:"filledFieldCount"`
	ProcessingTime   float64 `json:"processingTime"` // seconds
}

type processField struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Required     bool     `json:"required"`
	MaxLength    int      `json:"maxLength"`
	Options      []string `json:"options"`
	DefaultValue any      `json:"defaultValue"`
}

// Inspect asks the processor for the fields of pdf
func (b *ProcessBackend) Inspect(ctx context.Context, pdf []byte) ([]fieldmap.FieldInfo, error) {
	if err := checkInput(pdf, b.opts.MaxSize); err != nil {
		return nil, err
	}

	resp, err := b.run(ctx, processRequest{
		Action:  "inspect",
		PDFData: base64.StdEncoding.EncodeToString(pdf),
	})
	if err != nil {
		return nil, err
	}

	fields := make([]fieldmap.FieldInfo, 0, len(resp.Fields))
	for _, f := range resp.Fields {
		if f.Name == "" {
			continue
		}
		ft := fieldmap.FieldType(strings.ToLower(f.Type))
		if !ft.IsValid() {
			ft = fieldmap.FieldTypeText
		}
		fields = append(fields, fieldmap.FieldInfo{
			Name:         f.Name,
			Type:         ft,
			Required:     f.Required,
			MaxLength:    f.MaxLength,
			Options:      f.Options,
			DefaultValue: f.DefaultValue,
		})
	}
	return fields, nil
}

// Fill sends values to the processor. Checkbox values are sent as booleans
// when opts carries the inventory.
func (b *ProcessBackend) Fill(ctx context.Context, pdf []byte, values fieldmap.Values, opts FillOptions) (*FillResult, error) {
	start := time.Now()
	if err := checkInput(pdf, b.opts.MaxSize); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, pdferrors.NewConfigError("No field mappings provided. At least one field must be mapped.")
	}

	checkboxes := map[string]bool{}
	for _, f := range opts.Inventory {
		if f.Type == fieldmap.FieldTypeCheckbox {
			checkboxes[f.Name] = true
		}
	}

	mappings := make(map[string]any, len(values))
	for name, value := range values {
		if checkboxes[name] {
			mappings[name] = value == fieldmap.CheckboxOn
			continue
		}
		mappings[name] = value
	}

	resp, err := b.run(ctx, processRequest{
		Action:        "fill",
		PDFData:       base64.StdEncoding.EncodeToString(pdf),
		FieldMappings: mappings,
		Options:       &FillOptions{Flatten: opts.Flatten},
	})
	if err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		return nil, pdferrors.NewRuntimeError("processor returned invalid base64 PDF data: %v", err)
	}
	if len(data) == 0 {
		return nil, pdferrors.NewRuntimeError("PDF filling produced empty output")
	}

	result := &FillResult{
		Data:             data,
		FieldCount:       resp.Metadata.FieldCount,
		FilledFieldCount: resp.Metadata.FilledFieldCount,
		ProcessingTime:   time.Since(start),
	}
	if result.FieldCount == 0 {
		result.FieldCount = len(values)
		result.FilledFieldCount = filledCount(values)
	}

	b.logger.Debug("filled PDF",
		"backend", NameProcess,
		"fields", result.FieldCount,
		"filled", result.FilledFieldCount,
		"processor_seconds", resp.Metadata.ProcessingTime,
	)
	return result, nil
}

// run executes one request/response exchange with the processor
func (b *ProcessBackend) run(ctx context.Context, req processRequest) (*processResponse, error) {
	if b.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.Timeout)
		defer cancel()
	}

	input, err := json.Marshal(req)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeRuntime, err).WithContext("encode request")
	}

	cmd := exec.CommandContext(ctx, b.opts.Command[0], b.opts.Command[1:]...)
	if len(b.opts.Env) > 0 {
		cmd.Env = append(cmd.Environ(), b.opts.Env...)
	}
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	b.logger.Debug("running processor", "action", req.Action, "command", b.opts.Command[0])
	runErr := cmd.Run()

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, pdferrors.NewRuntimeError("processor timed out after %s", b.opts.Timeout).WithContext(req.Action)
		}
		return nil, ctxErr
	}

	// The processor reports failures in its JSON output and exits non-zero
	var resp processResponse
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil {
		if runErr != nil {
			return nil, pdferrors.WrapError(pdferrors.ErrorTypeRuntime,
				fmt.Errorf("processor failed: %w: %s", runErr, strings.TrimSpace(stderr.String()))).WithContext(req.Action)
		}
		return nil, pdferrors.NewRuntimeError("processor returned invalid JSON: %v", err).WithContext(req.Action)
	}

	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "processor reported failure without a message"
		}
		pe := pdferrors.NewPDFError(pdferrors.ParseErrorType(resp.ErrorType), msg).WithContext(req.Action)
		pe.Details = resp.Details
		return nil, pe
	}

	return &resp, nil
}
