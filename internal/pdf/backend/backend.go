// Package backend performs the actual PDF field introspection and filling.
package backend

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/a3tai/mcp-pdf-filler/internal/fieldmap"
	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
)

// Backend names accepted by New
const (
	NameNative  = "native"
	NameProcess = "process"
)

// pdfSignature is the header every PDF file starts with
var pdfSignature = []byte("%PDF")

// Inspector lists the fillable fields of a PDF
type Inspector interface {
	Inspect(ctx context.Context, pdf []byte) ([]fieldmap.FieldInfo, error)
}

// Filler writes resolved values into a PDF
type Filler interface {
	Fill(ctx context.Context, pdf []byte, values fieldmap.Values, opts FillOptions) (*FillResult, error)
}

// Backend is a complete PDF form backend
type Backend interface {
	Inspector
	Filler
	Name() string
}

// FillOptions controls the fill operation
type FillOptions struct {
	// Flatten makes the filled fields read-only in the output document
	Flatten bool `json:"flatten"`

	// Inventory is the already known field inventory of the document, if any
	Inventory []fieldmap.FieldInfo `json:"-"`
}

// FillResult is the output of a fill operation
type FillResult struct {
	Data             []byte        `json:"-"`
	FieldCount       int           `json:"fieldCount"`
	FilledFieldCount int           `json:"filledFieldCount"`
	ProcessingTime   time.Duration `json:"processingTime"`
}

// New creates the backend called name
func New(name string, maxSize int64, process ProcessOptions, logger *slog.Logger) (Backend, error) {
	switch name {
	case "", NameNative:
		return NewNativeBackend(maxSize, logger), nil
	case NameProcess:
		process.MaxSize = maxSize
		return NewProcessBackend(process, logger), nil
	default:
		return nil, pdferrors.NewConfigError("unknown backend %q (expected %s or %s)", name, NameNative, NameProcess)
	}
}

// filledCount counts values that carry content
func filledCount(values fieldmap.Values) int {
	n := 0
	for _, v := range values {
		if v != "" {
			n++
		}
	}
	return n
}

// checkInput performs the checks shared by all backends before any work
func checkInput(pdf []byte, maxSize int64) error {
	if len(pdf) == 0 {
		return pdferrors.NewDataError("PDF data cannot be empty")
	}
	if maxSize > 0 && int64(len(pdf)) > maxSize {
		return pdferrors.NewDataError("PDF file too large: %d bytes (max: %d bytes)", len(pdf), maxSize)
	}
	if !bytes.HasPrefix(pdf, pdfSignature) {
		return pdferrors.NewDataError("invalid PDF file format: file does not start with %%PDF")
	}
	return nil
}
