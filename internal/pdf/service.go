package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/a3tai/mcp-pdf-filler/internal/config"
	"github.com/a3tai/mcp-pdf-filler/internal/fieldmap"
	"github.com/a3tai/mcp-pdf-filler/internal/node"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/backend"
	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/inventory"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/security"
	"github.com/a3tai/mcp-pdf-filler/internal/source"
	"github.com/a3tai/mcp-pdf-filler/internal/validation"
)

// Service handles PDF form operations by orchestrating the filler components
type Service struct {
	cfg           *config.Config
	pathValidator *security.PathValidator
	loader        *source.Loader
	store         *inventory.Store
	backend       backend.Backend
	node          *node.Node
	logger        *slog.Logger
}

// NewService creates a new PDF service with all components
func NewService(cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	pathValidator, err := security.NewPathValidator(cfg.PDFDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}

	be, err := backend.New(cfg.Backend, cfg.MaxFileSize, cfg.ProcessOptions(), logger)
	if err != nil {
		return nil, err
	}

	loader := source.NewLoader(pathValidator, source.Options{
		MaxSize:          cfg.MaxFileSize,
		DownloadTimeout:  cfg.DownloadTimeout,
		DownloadAttempts: cfg.DownloadAttempts,
		VerifyStructure:  cfg.VerifyPDF,
	}, logger)
	store := inventory.NewStore(be, cfg.CacheSize, logger)

	return &Service{
		cfg:           cfg,
		pathValidator: pathValidator,
		loader:        loader,
		store:         store,
		backend:       be,
		node: node.New(node.Config{
			Loader: loader,
			Fields: store,
			Filler: be,
			Logger: logger,
		}),
		logger: logger,
	}, nil
}

// Backend returns the name of the fill backend
func (s *Service) Backend() string {
	return s.backend.Name()
}

// Directory returns the directory files are confined to
func (s *Service) Directory() string {
	return s.pathValidator.Root()
}

// MaxFileSize returns the largest accepted PDF in bytes
func (s *Service) MaxFileSize() int64 {
	return s.cfg.MaxFileSize
}

// CacheStats returns the field inventory cache statistics
func (s *Service) CacheStats() inventory.CacheStats {
	return s.store.Stats()
}

// InspectFields lists the fillable fields of a PDF
func (s *Service) InspectFields(ctx context.Context, req PDFInspectFieldsRequest) (*PDFInspectFieldsResult, error) {
	doc, err := s.loader.Load(ctx, fileSpec(req.Path), nil)
	if err != nil {
		return nil, err
	}

	fields, err := s.store.Fields(ctx, doc.Data)
	if err != nil {
		return nil, err
	}

	return &PDFInspectFieldsResult{
		Path:     req.Path,
		Identity: doc.Identity,
		Fields:   fields,
	}, nil
}

// ValidateMappings checks mappings on their own and against the fields of
// the PDF, reporting every problem at once
func (s *Service) ValidateMappings(ctx context.Context, req PDFValidateMappingsRequest) (*PDFValidateMappingsResult, error) {
	inspected, err := s.InspectFields(ctx, PDFInspectFieldsRequest{Path: req.Path})
	if err != nil {
		return nil, err
	}

	var report validation.Report
	validation.Mappings(&report, req.Mappings)

	checked := fieldmap.ValidateMappings(req.Mappings, inspected.Fields)
	problems := append(report.Problems, checked.Errors...)
	if problems == nil {
		problems = []string{}
	}

	return &PDFValidateMappingsResult{
		Path:       req.Path,
		Valid:      len(problems) == 0,
		FieldCount: len(inspected.Fields),
		Problems:   problems,
		Missing:    checked.Missing,
	}, nil
}

// FillForm fills the PDF once per item and writes every filled document into
// the output directory
func (s *Service) FillForm(ctx context.Context, req PDFFillFormRequest) (*PDFFillFormResult, error) {
	outputDir, err := s.pathValidator.ResolveOutputDir(req.OutputDir)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeConfig, err).WithContext("output directory")
	}

	params := node.Params{
		Source:         fileSpec(req.Path),
		Mappings:       req.Mappings,
		SkipMissing:    boolOr(req.SkipMissing, s.cfg.SkipMissing),
		Flatten:        boolOr(req.Flatten, s.cfg.Flatten),
		ValidateFirst:  req.ValidateFirst,
		OutputFileName: req.OutputFileName,
		ContinueOnFail: req.ContinueOnFail,
		Concurrency:    s.cfg.Concurrency,
	}

	items := make([]node.Item, len(req.Items))
	for i, payload := range req.Items {
		items[i] = node.Item{JSON: payload}
	}
	if len(items) == 0 {
		items = []node.Item{{JSON: map[string]any{}}}
	}

	outputs, err := s.node.Execute(ctx, items, params)
	if err != nil {
		return nil, err
	}

	result := &PDFFillFormResult{
		Path:      req.Path,
		OutputDir: outputDir,
		Files:     make([]FilledFile, 0, len(outputs)),
	}

	// Items sharing a file name are numbered by position so none overwrites another
	numbered := len(outputs) > 1 && req.OutputFileName == ""
	nameCount := make(map[string]int, len(outputs))
	for _, out := range outputs {
		if out.JSON.Success {
			nameCount[out.Binary[node.DefaultOutputProperty].FileName]++
		}
	}

	for i, out := range outputs {
		if !out.JSON.Success {
			result.Failed++
			result.Files = append(result.Files, FilledFile{Result: out.JSON})
			continue
		}

		bin := out.Binary[node.DefaultOutputProperty]
		name := bin.FileName
		if numbered || nameCount[name] > 1 {
			name = fmt.Sprintf("%s-%d.pdf", strings.TrimSuffix(name, filepath.Ext(name)), i+1)
		}

		path, err := s.writeOutput(outputDir, name, bin.Data)
		if err != nil {
			return nil, err
		}
		out.JSON.FileName = filepath.Base(path)

		result.Succeeded++
		result.Files = append(result.Files, FilledFile{Path: path, Result: out.JSON})
	}

	s.logger.Info("filled PDF forms",
		"path", req.Path,
		"output_dir", outputDir,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)
	return result, nil
}

func (s *Service) writeOutput(dir, name string, data []byte) (string, error) {
	path, err := s.pathValidator.OutputFile(dir, name)
	if err != nil {
		return "", pdferrors.WrapError(pdferrors.ErrorTypeConfig, err).WithContext("output file")
	}
	if err := os.MkdirAll(filepath.Dir(path), config.DefaultDirPerm); err != nil {
		return "", pdferrors.NewRuntimeError("cannot create output directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", pdferrors.NewRuntimeError("cannot write filled PDF: %v", err)
	}
	return path, nil
}

func fileSpec(path string) source.Spec {
	return source.Spec{Kind: source.KindUpload, Path: path}
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
