package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/mcp-pdf-filler/internal/expression"
	"github.com/a3tai/mcp-pdf-filler/internal/fieldmap"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/backend"
	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-filler/internal/source"
)

// Loader retrieves the PDF template for an item
type Loader interface {
	Load(ctx context.Context, spec source.Spec, binary map[string]*source.Binary) (*source.Document, error)
}

// FieldSource returns the field inventory of a PDF
type FieldSource interface {
	Fields(ctx context.Context, pdf []byte) ([]fieldmap.FieldInfo, error)
}

// Filler writes resolved values into a PDF
type Filler interface {
	backend.Filler
	Name() string
}

// EvaluatorFactory creates the expression evaluator for a batch of items
type EvaluatorFactory func(items []Item) (fieldmap.Evaluator, error)

// Config holds the collaborators of a Node
type Config struct {
	Loader Loader
	Fields FieldSource
	Filler Filler
	// NewEvaluator defaults to the $json expression evaluator
	NewEvaluator EvaluatorFactory
	Logger       *slog.Logger
}

// Node fills a PDF form once per input item
type Node struct {
	loader       Loader
	fields       FieldSource
	filler       Filler
	newEvaluator EvaluatorFactory
	logger       *slog.Logger
}

// New creates a node
func New(cfg Config) *Node {
	if cfg.NewEvaluator == nil {
		cfg.NewEvaluator = JSONEvaluator
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Node{
		loader:       cfg.Loader,
		fields:       cfg.Fields,
		filler:       cfg.Filler,
		newEvaluator: cfg.NewEvaluator,
		logger:       cfg.Logger,
	}
}

// JSONEvaluator evaluates expressions against the JSON payload of the items
func JSONEvaluator(items []Item) (fieldmap.Evaluator, error) {
	payloads := make([]map[string]any, len(items))
	for i, item := range items {
		payloads[i] = item.JSON
	}
	return expression.NewFromValues(payloads)
}

// run carries the per-Execute state shared by all items
type run struct {
	params      Params
	executionID string
	evaluator   fieldmap.Evaluator
	mapper      *fieldmap.Mapper
	logger      *slog.Logger
}

// Execute fills the PDF once per item and returns the outputs in input order.
//
// Invalid parameters fail the whole run. A failing item aborts the run unless
// ContinueOnFail is set, in which case it becomes an output item with
// success=false. Configuration errors and cancellation always abort.
func (n *Node) Execute(ctx context.Context, items []Item, params Params) ([]OutputItem, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	params = params.withDefaults()

	if len(items) == 0 {
		return []OutputItem{}, nil
	}

	evaluator, err := n.newEvaluator(items)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeData, err).WithContext("expression evaluator")
	}

	executionID := uuid.New().String()
	r := &run{
		params:      params,
		executionID: executionID,
		evaluator:   evaluator,
		logger:      n.logger.With("execution_id", executionID),
	}
	r.mapper = fieldmap.NewMapper(evaluator, r.logger)

	r.logger.Info("filling PDF forms",
		"items", len(items),
		"source", params.Source.Kind,
		"mappings", len(params.Mappings),
		"concurrency", params.Concurrency,
	)

	outputs := make([]OutputItem, len(items))
	failures := make([]*pdferrors.PDFError, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(params.Concurrency)

	for i := range items {
		g.Go(func() error {
			out, err := n.fillItem(gctx, r, i, items[i])
			if err == nil {
				outputs[i] = *out
				return nil
			}

			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			pe := pdferrors.Wrap(err).WithItem(i)
			if params.ContinueOnFail && pe.Recoverable {
				r.logger.Warn("item failed, continuing", "item", i, "error_type", pe.Type.String(), "error", pe.Message)
				outputs[i] = errorItem(r, i, pe)
				failures[i] = pe
				return nil
			}
			return pe
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	collected := pdferrors.NewErrorCollection()
	for _, pe := range failures {
		if pe != nil {
			collected.Add(pe)
		}
	}
	if collected.Count() > 0 {
		r.logger.Warn("batch finished with failed items", "summary", collected.Summary())
	}
	return outputs, nil
}

func (n *Node) fillItem(ctx context.Context, r *run, index int, item Item) (*OutputItem, error) {
	start := time.Now()
	params := r.params

	spec, err := n.resolveSource(ctx, r, index)
	if err != nil {
		return nil, err
	}

	doc, err := n.loader.Load(ctx, spec, item.Binary)
	if err != nil {
		return nil, err
	}

	inventory, err := n.fields.Fields(ctx, doc.Data)
	if err != nil {
		return nil, err
	}

	if params.ValidateFirst && !params.SkipMissing {
		if res := fieldmap.ValidateMappings(params.Mappings, inventory); !res.Valid {
			pe := pdferrors.NewDataError("%s", strings.Join(res.Errors, "; "))
			pe.Details = map[string]any{"missing": res.Missing}
			if len(res.Missing) == 1 {
				pe.Field = res.Missing[0]
			}
			return nil, pe
		}
	}

	values, err := r.mapper.MapFieldsToValues(ctx, params.Mappings, inventory, index, fieldmap.Options{SkipMissing: params.SkipMissing})
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, pdferrors.NewDataError("no valid field mappings found: every mapped field is missing from the PDF")
	}

	filled, err := n.filler.Fill(ctx, doc.Data, values, backend.FillOptions{Flatten: params.Flatten, Inventory: inventory})
	if err != nil {
		return nil, err
	}

	fileName, err := n.outputFileName(ctx, r, index, doc.FileName)
	if err != nil {
		return nil, err
	}

	mapped := values.Names()
	sort.Strings(mapped)

	result := Result{
		Success:          true,
		ExecutionID:      r.executionID,
		Source:           spec.Kind,
		Backend:          n.filler.Name(),
		FileName:         fileName,
		FieldCount:       filled.FieldCount,
		FilledFieldCount: filled.FilledFieldCount,
		MappedFields:     mapped,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
	if params.SkipMissing {
		result.SkippedFields = fieldmap.SkippedFields(params.Mappings, inventory)
	}

	r.logger.Debug("item filled",
		"item", index,
		"file", fileName,
		"filled", filled.FilledFieldCount,
		"skipped", len(result.SkippedFields),
	)

	return &OutputItem{
		JSON: result,
		Binary: map[string]*source.Binary{
			params.OutputProperty: {
				Data:     filled.Data,
				MimeType: MimeTypePDF,
				FileName: fileName,
			},
		},
		PairedItem: index,
	}, nil
}

// resolveSource evaluates expressions in the path and URL of the source
func (n *Node) resolveSource(ctx context.Context, r *run, index int) (source.Spec, error) {
	spec := r.params.Source
	var err error
	switch spec.Kind {
	case source.KindUpload, source.KindPath:
		spec.Path, err = n.evaluateString(ctx, r, index, "pdfPath", spec.Path)
	case source.KindURL:
		spec.URL, err = n.evaluateString(ctx, r, index, "pdfUrl", spec.URL)
	}
	return spec, err
}

func (n *Node) outputFileName(ctx context.Context, r *run, index int, templateName string) (string, error) {
	if r.params.OutputFileName == "" {
		base := strings.TrimSuffix(templateName, filepath.Ext(templateName))
		if base == "" {
			base = "document"
		}
		return base + "-filled.pdf", nil
	}

	name, err := n.evaluateString(ctx, r, index, "outputFileName", r.params.OutputFileName)
	if err != nil {
		return "", err
	}
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", pdferrors.NewDataError("output file name evaluated to an empty value").WithField("outputFileName")
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		name += ".pdf"
	}
	return name, nil
}

// evaluateString evaluates value when it is an expression and renders the
// result with the text field rules
func (n *Node) evaluateString(ctx context.Context, r *run, index int, param, value string) (string, error) {
	if !strings.HasPrefix(value, "=") && !strings.Contains(value, "{{") {
		return value, nil
	}

	raw, err := r.evaluator.Evaluate(ctx, value, index)
	if err != nil {
		return "", pdferrors.WrapError(pdferrors.ErrorTypeData,
			fmt.Errorf("expression for parameter %s failed: %w", param, err)).WithField(param)
	}
	return fieldmap.Coerce(fieldmap.FieldInfo{Name: param, Type: fieldmap.FieldTypeText}, raw)
}

// Inspect returns the field inventory of the PDF the first item would be
// filled into
func (n *Node) Inspect(ctx context.Context, items []Item, spec source.Spec) ([]fieldmap.FieldInfo, error) {
	if len(items) == 0 {
		items = []Item{{JSON: map[string]any{}}}
	}

	evaluator, err := n.newEvaluator(items)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeData, err).WithContext("expression evaluator")
	}
	r := &run{params: Params{Source: spec}, evaluator: evaluator, logger: n.logger}

	resolved, err := n.resolveSource(ctx, r, 0)
	if err != nil {
		return nil, err
	}
	doc, err := n.loader.Load(ctx, resolved, items[0].Binary)
	if err != nil {
		return nil, err
	}
	return n.fields.Fields(ctx, doc.Data)
}

func errorItem(r *run, index int, pe *pdferrors.PDFError) OutputItem {
	return OutputItem{
		JSON: Result{
			Success:     false,
			ExecutionID: r.executionID,
			Source:      r.params.Source.Kind,
			Error:       pe.Message,
			ErrorType:   pe.Type.String(),
			Field:       pe.Field,
			Details:     pe.Details,
		},
		PairedItem: index,
	}
}
