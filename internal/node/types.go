// Package node implements the PDF form filling step of a workflow: for every
// input item it loads the PDF template, resolves the field mappings against
// the item and emits the filled document.
package node

import (
	"github.com/a3tai/mcp-pdf-filler/internal/fieldmap"
	"github.com/a3tai/mcp-pdf-filler/internal/source"
	"github.com/a3tai/mcp-pdf-filler/internal/validation"
)

// Defaults applied by Params.withDefaults
const (
	DefaultOutputProperty = "data"
	DefaultConcurrency    = 1
	MimeTypePDF           = "application/pdf"
)

// Item is one workflow item: a JSON payload plus named binaries
type Item struct {
	JSON   map[string]any            `json:"json"`
	Binary map[string]*source.Binary `json:"binary,omitempty"`
}

// Params are the node parameters shared by every item of a run
type Params struct {
	Source   source.Spec             `json:"source"`
	Mappings []fieldmap.FieldMapping `json:"mappings"`

	// SkipMissing drops mappings whose field is not in the PDF
	SkipMissing bool `json:"skipMissing"`
	Flatten     bool `json:"flatten"`
	// ValidateFirst reports every missing field of an item at once instead
	// of stopping at the first one
	ValidateFirst bool `json:"validateFirst"`

	// OutputProperty is the binary property receiving the filled PDF
	OutputProperty string `json:"outputProperty,omitempty"`
	// OutputFileName may contain expressions; defaults to <template>-filled.pdf
	OutputFileName string `json:"outputFileName,omitempty"`

	ContinueOnFail bool `json:"continueOnFail"`
	// Concurrency is the number of items filled in parallel (0 means 1)
	Concurrency int `json:"concurrency,omitempty"`
}

// Validate checks the parameters and reports every problem at once as a
// configuration error
func (p Params) Validate() error {
	var r validation.Report
	validation.Source(&r, p.Source)
	validation.Mappings(&r, p.Mappings)
	validation.OutputProperty(&r, p.OutputProperty)
	validation.Concurrency(&r, p.Concurrency)
	return r.Err()
}

func (p Params) withDefaults() Params {
	if p.OutputProperty == "" {
		p.OutputProperty = DefaultOutputProperty
	}
	if p.Concurrency <= 0 {
		p.Concurrency = DefaultConcurrency
	}
	return p
}

// OutputItem is the node output for one input item
type OutputItem struct {
	JSON       Result                    `json:"json"`
	Binary     map[string]*source.Binary `json:"binary,omitempty"`
	PairedItem int                       `json:"pairedItem"`
}

// Result is the JSON metadata of an output item
type Result struct {
	Success          bool           `json:"success"`
	ExecutionID      string         `json:"executionId"`
	Source           source.Kind    `json:"source"`
	Backend          string         `json:"backend,omitempty"`
	FileName         string         `json:"fileName,omitempty"`
	FieldCount       int            `json:"fieldCount"`
	FilledFieldCount int            `json:"filledFieldCount"`
	MappedFields     []string       `json:"mappedFields,omitempty"`
	SkippedFields    []string       `json:"skippedFields,omitempty"`
	ProcessingTimeMs int64          `json:"processingTimeMs"`
	Error            string         `json:"error,omitempty"`
	ErrorType        string         `json:"errorType,omitempty"`
	Field            string         `json:"field,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
}
