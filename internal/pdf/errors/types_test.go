package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-filler/internal/fieldmap"
)

func TestErrorType_String(t *testing.T) {
	assert.Equal(t, "data", ErrorTypeData.String())
	assert.Equal(t, "config", ErrorTypeConfig.String())
	assert.Equal(t, "runtime", ErrorTypeRuntime.String())
}

func TestParseErrorType(t *testing.T) {
	assert.Equal(t, ErrorTypeData, ParseErrorType("data"))
	assert.Equal(t, ErrorTypeConfig, ParseErrorType(" CONFIG "))
	assert.Equal(t, ErrorTypeRuntime, ParseErrorType("runtime"))
	assert.Equal(t, ErrorTypeRuntime, ParseErrorType(""))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorType
	}{
		{"data error", &fieldmap.DataError{Reason: fieldmap.ReasonFieldNotFound, Field: "x"}, ErrorTypeData},
		{"wrapped data error", fmt.Errorf("item 2: %w", &fieldmap.DataError{Field: "x"}), ErrorTypeData},
		{"config error", NewConfigError("no mappings"), ErrorTypeConfig},
		{"corrupt pdf", stderrors.New("xref table is corrupt"), ErrorTypeData},
		{"encrypted", stderrors.New("PDF is Encrypted"), ErrorTypeData},
		{"other", stderrors.New("exec: python3 not found"), ErrorTypeRuntime},
		{"nil", nil, ErrorTypeRuntime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.err))
		})
	}
}

func TestWrap_DataErrorCarriesDetails(t *testing.T) {
	de := &fieldmap.DataError{
		Reason:   fieldmap.ReasonInvalidOption,
		Field:    "country",
		Actual:   "mexico",
		Expected: "one of: Canada, USA",
		Options:  []string{"Canada", "USA"},
	}

	pe := Wrap(fmt.Errorf("mapping failed: %w", de))
	require.NotNil(t, pe)
	assert.Equal(t, ErrorTypeData, pe.Type)
	assert.True(t, pe.Recoverable)
	assert.Equal(t, "country", pe.Field)
	assert.Equal(t, "invalid_option", pe.Details["reason"])
	assert.Equal(t, []string{"Canada", "USA"}, pe.Details["options"])
	assert.ErrorIs(t, pe, de)
}

func TestWrap_KeepsExistingPDFError(t *testing.T) {
	orig := NewRuntimeError("backend crashed").WithContext("fill")
	assert.Same(t, orig, Wrap(fmt.Errorf("outer: %w", orig)))
	assert.Nil(t, Wrap(nil))
}

func TestPDFError_Error(t *testing.T) {
	assert.Equal(t, "[config] no mappings", NewConfigError("no mappings").Error())
	assert.Equal(t, "[data] inspect: bad pdf", NewDataError("bad %s", "pdf").WithContext("inspect").Error())
	assert.False(t, NewConfigError("x").Recoverable)
}

func TestErrorCollection(t *testing.T) {
	ec := NewErrorCollection()
	assert.Equal(t, "No errors", ec.Summary())

	ec.Add(NewDataError("a").WithItem(0))
	ec.Add(NewDataError("b").WithItem(2))
	ec.Add(NewRuntimeError("c").WithItem(3))

	assert.Equal(t, 3, ec.Count())
	assert.Equal(t, "3 item(s) failed (data: 2, config: 0, runtime: 1)", ec.Summary())
}
