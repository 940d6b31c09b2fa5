// Package source retrieves the PDF template an item is filled into.
package source

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ledongthuc/pdf"

	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/inventory"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/security"
)

// Kind selects where a PDF comes from
type Kind string

const (
	KindUpload Kind = "upload" // file under the configured directory
	KindPath   Kind = "path"   // alias of upload
	KindURL    Kind = "url"
	KindBinary Kind = "binary" // binary property of the input item
)

// DefaultBinaryProperty is the binary property read when none is given
const DefaultBinaryProperty = "data"

// IsValid reports whether k is a known source kind
func (k Kind) IsValid() bool {
	switch k {
	case KindUpload, KindPath, KindURL, KindBinary:
		return true
	}
	return false
}

// Spec describes the PDF source of a fill operation
type Spec struct {
	Kind           Kind   `json:"kind" yaml:"kind"`
	Path           string `json:"path,omitempty" yaml:"path,omitempty"`
	URL            string `json:"url,omitempty" yaml:"url,omitempty"`
	BinaryProperty string `json:"binaryProperty,omitempty" yaml:"binaryProperty,omitempty"`
}

// Binary is a file attached to a workflow item
type Binary struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mimeType"`
	FileName string `json:"fileName,omitempty"`
}

// Document is a loaded PDF
type Document struct {
	Data     []byte
	FileName string
	// Identity is the SHA-256 of Data, shared with the inventory cache
	Identity string
}

// Options configures a Loader
type Options struct {
	MaxSize          int64
	DownloadTimeout  time.Duration
	DownloadAttempts uint
	RetryDelay       time.Duration
	// VerifyStructure parses every loaded document before use
	VerifyStructure bool
	HTTPClient      *http.Client
}

// Loader loads PDFs from the configured directory, over HTTP or from item
// binaries
type Loader struct {
	paths  *security.PathValidator
	opts   Options
	client *http.Client
	logger *slog.Logger
}

// NewLoader creates a loader. paths may be nil, which disables file sources.
func NewLoader(paths *security.PathValidator, opts Options, logger *slog.Logger) *Loader {
	if opts.DownloadAttempts == 0 {
		opts.DownloadAttempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.DownloadTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{paths: paths, opts: opts, client: client, logger: logger}
}

// Load retrieves the document described by spec. binary holds the binary
// properties of the current item.
func (l *Loader) Load(ctx context.Context, spec Spec, binary map[string]*Binary) (*Document, error) {
	var (
		doc *Document
		err error
	)

	switch spec.Kind {
	case KindUpload, KindPath:
		doc, err = l.loadFile(spec.Path)
	case KindURL:
		doc, err = l.download(ctx, spec.URL)
	case KindBinary:
		doc, err = l.loadBinary(spec.BinaryProperty, binary)
	default:
		return nil, pdferrors.NewConfigError("unknown PDF source %q", spec.Kind)
	}
	if err != nil {
		return nil, err
	}

	if err := l.verify(doc); err != nil {
		return nil, err
	}
	doc.Identity = inventory.Identity(doc.Data)

	l.logger.Debug("loaded PDF", "source", spec.Kind, "file", doc.FileName, "bytes", len(doc.Data))
	return doc, nil
}

func (l *Loader) loadFile(path string) (*Document, error) {
	if l.paths == nil {
		return nil, pdferrors.NewConfigError("file sources are disabled: no PDF directory configured")
	}

	abs, err := l.paths.ResolveInput(path, l.opts.MaxSize)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeData, err).WithContext("load")
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeRuntime, err).WithContext("load")
	}
	return &Document{Data: data, FileName: filepath.Base(abs)}, nil
}

func (l *Loader) loadBinary(property string, binary map[string]*Binary) (*Document, error) {
	if property == "" {
		property = DefaultBinaryProperty
	}

	b, ok := binary[property]
	if !ok || b == nil {
		return nil, pdferrors.NewDataError("item has no binary property %q", property)
	}
	if b.MimeType != "" && b.MimeType != "application/pdf" && b.MimeType != "application/octet-stream" {
		return nil, pdferrors.NewDataError("binary property %q has MIME type %s, expected application/pdf", property, b.MimeType)
	}

	name := b.FileName
	if name == "" {
		name = "document.pdf"
	}
	return &Document{Data: b.Data, FileName: name}, nil
}

// verify applies the signature and size checks, then optionally parses the
// document
func (l *Loader) verify(doc *Document) error {
	if len(doc.Data) == 0 {
		return pdferrors.NewDataError("PDF data cannot be empty")
	}
	if l.opts.MaxSize > 0 && int64(len(doc.Data)) > l.opts.MaxSize {
		return pdferrors.NewDataError("PDF file too large: %d bytes (max: %d bytes)", len(doc.Data), l.opts.MaxSize)
	}
	if !bytes.HasPrefix(doc.Data, []byte("%PDF")) {
		return pdferrors.NewDataError("invalid PDF file format: %s does not appear to be a PDF", doc.FileName)
	}
	if l.opts.VerifyStructure {
		if err := VerifyStructure(doc.Data); err != nil {
			return pdferrors.WrapError(pdferrors.ErrorTypeData, err).WithContext(doc.FileName)
		}
	}
	return nil
}

// VerifyStructure parses the cross-reference table and page tree of data
func VerifyStructure(data []byte) (err error) {
	// The parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid PDF file: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("invalid PDF file: %w", err)
	}
	if r.NumPage() == 0 {
		return fmt.Errorf("invalid PDF file: document has no pages")
	}
	return nil
}
