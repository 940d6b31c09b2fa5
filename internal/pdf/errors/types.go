package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/a3tai/mcp-pdf-filler/internal/fieldmap"
)

// PDFError is a categorized failure reported by the fill node
type PDFError struct {
	Type        ErrorType      `json:"errorType"`
	Message     string         `json:"error"`
	Context     string         `json:"context,omitempty"`
	Field       string         `json:"field,omitempty"`
	ItemIndex   int            `json:"itemIndex"`
	Recoverable bool           `json:"recoverable"`
	Details     map[string]any `json:"details,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Err         error          `json:"-"`
}

// ErrorType is the category of a failure as seen by the workflow host
type ErrorType int

const (
	ErrorTypeRuntime ErrorType = iota
	ErrorTypeData
	ErrorTypeConfig
)

// Error implements the error interface
func (e *PDFError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type.String(), e.Context, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
}

// Unwrap returns the wrapped cause
func (e *PDFError) Unwrap() error {
	return e.Err
}

// String returns the wire name of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeData:
		return "data"
	case ErrorTypeConfig:
		return "config"
	default:
		return "runtime"
	}
}

// ParseErrorType maps a wire name ("data", "config", "runtime") to an ErrorType
func ParseErrorType(s string) ErrorType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "data":
		return ErrorTypeData
	case "config":
		return ErrorTypeConfig
	default:
		return ErrorTypeRuntime
	}
}

// IsRecoverable reports whether a failure of this type may be reported per
// item while the rest of a batch continues
func (et ErrorType) IsRecoverable() bool {
	switch et {
	case ErrorTypeData:
		return true
	case ErrorTypeConfig:
		return false // every item would fail the same way
	default:
		return true
	}
}

// NewPDFError creates a new PDFError
func NewPDFError(errorType ErrorType, message string) *PDFError {
	return &PDFError{
		Type:        errorType,
		Message:     message,
		Recoverable: errorType.IsRecoverable(),
		Timestamp:   time.Now(),
	}
}

// NewDataError creates a data error (bad input relative to the PDF)
func NewDataError(format string, args ...any) *PDFError {
	return NewPDFError(ErrorTypeData, fmt.Sprintf(format, args...))
}

// NewConfigError creates a configuration error (bad node parameters)
func NewConfigError(format string, args ...any) *PDFError {
	return NewPDFError(ErrorTypeConfig, fmt.Sprintf(format, args...))
}

// NewRuntimeError creates a runtime error (environment or backend failure)
func NewRuntimeError(format string, args ...any) *PDFError {
	return NewPDFError(ErrorTypeRuntime, fmt.Sprintf(format, args...))
}

// WrapError wraps err as a PDFError of the given type
func WrapError(errorType ErrorType, err error) *PDFError {
	e := NewPDFError(errorType, err.Error())
	e.Err = err
	return e
}

// Wrap categorizes err with Classify and wraps it. An existing PDFError is
// returned as-is.
func Wrap(err error) *PDFError {
	if err == nil {
		return nil
	}
	var pe *PDFError
	if stderrors.As(err, &pe) {
		return pe
	}

	e := WrapError(Classify(err), err)
	if de, ok := fieldmap.AsDataError(err); ok {
		e.Field = de.Field
		e.Details = dataErrorDetails(de)
	}
	return e
}

// WithContext adds context to an existing PDFError
func (e *PDFError) WithContext(context string) *PDFError {
	e.Context = context
	return e
}

// WithField names the PDF field the error concerns
func (e *PDFError) WithField(field string) *PDFError {
	e.Field = field
	return e
}

// WithItem records which input item failed
func (e *PDFError) WithItem(index int) *PDFError {
	e.ItemIndex = index
	return e
}

// Classify determines the ErrorType of an arbitrary error. Mapping and value
// problems are data errors; the remaining errors are sniffed for the
// messages PDF libraries use for unreadable input.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrorTypeRuntime
	}

	var pe *PDFError
	if stderrors.As(err, &pe) {
		return pe.Type
	}
	if fieldmap.IsDataError(err) {
		return ErrorTypeData
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"corrupt", "damaged", "password", "encrypted", "not a pdf", "invalid pdf"} {
		if strings.Contains(msg, hint) {
			return ErrorTypeData
		}
	}
	return ErrorTypeRuntime
}

func dataErrorDetails(de *fieldmap.DataError) map[string]any {
	details := map[string]any{"reason": string(de.Reason)}
	if de.Expected != "" {
		details["expected"] = de.Expected
	}
	if de.Actual != "" {
		details["actual"] = de.Actual
	}
	if len(de.Options) > 0 {
		details["options"] = de.Options
	}
	if de.MaxLength > 0 {
		details["maxLength"] = de.MaxLength
		details["length"] = de.Length
	}
	return details
}

// ErrorCollection gathers per-item failures of a batch
type ErrorCollection struct {
	Errors []*PDFError `json:"errors"`
}

// NewErrorCollection creates an empty error collection
func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{Errors: make([]*PDFError, 0)}
}

// Add records an error
func (ec *ErrorCollection) Add(err *PDFError) {
	ec.Errors = append(ec.Errors, err)
}

// Count returns the number of recorded errors
func (ec *ErrorCollection) Count() int {
	return len(ec.Errors)
}

// Summary returns a one-line description of the collection
func (ec *ErrorCollection) Summary() string {
	if len(ec.Errors) == 0 {
		return "No errors"
	}

	byType := map[ErrorType]int{}
	for _, err := range ec.Errors {
		byType[err.Type]++
	}
	return fmt.Sprintf("%d item(s) failed (data: %d, config: %d, runtime: %d)",
		len(ec.Errors), byType[ErrorTypeData], byType[ErrorTypeConfig], byType[ErrorTypeRuntime])
}
