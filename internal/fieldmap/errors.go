package fieldmap

import (
	"errors"
	"fmt"
	"strings"
)

// Reason categorizes why a mapping could not be satisfied
type Reason string

const (
	ReasonFieldNotFound    Reason = "field_not_found"
	ReasonLengthExceeded   Reason = "length_exceeded"
	ReasonInvalidOption    Reason = "invalid_option"
	ReasonInvalidBoolean   Reason = "invalid_boolean"
	ReasonInvalidNumber    Reason = "invalid_number"
	ReasonUnsupportedType  Reason = "unsupported_type"
	ReasonExpressionFailed Reason = "expression_failed"
	ReasonNoEvaluator      Reason = "no_evaluator"
)

// DataError reports a problem with a mapping or its value relative to the
// field inventory. It carries enough context to render a message without
// re-deriving it. Data errors are always recoverable by the caller.
type DataError struct {
	Reason    Reason   `json:"reason"`
	Field     string   `json:"field"`
	Expected  string   `json:"expected,omitempty"`
	Actual    string   `json:"actual,omitempty"`
	Options   []string `json:"options,omitempty"`
	MaxLength int      `json:"maxLength,omitempty"`
	Length    int      `json:"length,omitempty"`
	Err       error    `json:"-"`
}

// Error implements the error interface
func (e *DataError) Error() string {
	switch e.Reason {
	case ReasonFieldNotFound:
		return fmt.Sprintf("field %q not found in PDF", e.Field)
	case ReasonLengthExceeded:
		return fmt.Sprintf("value for field %q exceeds maximum length: %d characters (max: %d)",
			e.Field, e.Length, e.MaxLength)
	case ReasonInvalidOption:
		return fmt.Sprintf("invalid value %q for field %q (valid options: %s)",
			e.Actual, e.Field, strings.Join(e.Options, ", "))
	case ReasonInvalidBoolean:
		return fmt.Sprintf("invalid checkbox value %q for field %q (expected %s)", e.Actual, e.Field, e.Expected)
	case ReasonInvalidNumber:
		return fmt.Sprintf("invalid numeric value %s for field %q", e.Actual, e.Field)
	case ReasonUnsupportedType:
		return fmt.Sprintf("field %q has unsupported type %q", e.Field, e.Actual)
	case ReasonExpressionFailed:
		if e.Err != nil {
			return fmt.Sprintf("expression for field %q failed: %v", e.Field, e.Err)
		}
		return fmt.Sprintf("expression for field %q failed", e.Field)
	case ReasonNoEvaluator:
		return fmt.Sprintf("field %q uses an expression but no evaluator is configured", e.Field)
	}
	return fmt.Sprintf("invalid data for field %q", e.Field)
}

// Unwrap returns the underlying cause, if any
func (e *DataError) Unwrap() error {
	return e.Err
}

// IsDataError reports whether err is or wraps a *DataError
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// AsDataError extracts the *DataError from err's chain
func AsDataError(err error) (*DataError, bool) {
	var de *DataError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
