package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/a3tai/mcp-pdf-filler/internal/fieldmap"
	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
)

// Format is the encoding of a mapping document
type Format string

const (
	FormatAuto Format = ""
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatAuto
}

// mappingSchema accepts a list of mappings, or an object with a "mappings"
// list and/or a "fields" object of field name to value shorthands
const mappingSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "mapping": {
      "type": "object",
      "required": ["pdfFieldName"],
      "properties": {
        "pdfFieldName": {"type": "string", "minLength": 1},
        "valueSource": {"enum": ["static", "expression"]},
        "staticValue": {"type": ["string", "number", "boolean", "null", "array", "object"]},
        "expression": {"type": "string"}
      },
      "additionalProperties": false,
      "if": {"required": ["valueSource"], "properties": {"valueSource": {"const": "expression"}}},
      "then": {"required": ["expression"], "properties": {"expression": {"minLength": 1}}}
    },
    "mappingList": {"type": "array", "items": {"$ref": "#/definitions/mapping"}}
  },
  "oneOf": [
    {"$ref": "#/definitions/mappingList"},
    {
      "type": "object",
      "properties": {
        "mappings": {"$ref": "#/definitions/mappingList"},
        "fields": {"type": "object"}
      },
      "additionalProperties": false,
      "minProperties": 1
    }
  ]
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("mappings.json", strings.NewReader(mappingSchema)); err != nil {
			schemaErr = fmt.Errorf("failed to load mapping schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("mappings.json")
	})
	return compiledSchema, schemaErr
}

type mappingDocument struct {
	Mappings []fieldmap.FieldMapping `json:"mappings"`
	Fields   map[string]any          `json:"fields"`
}

// LoadMappings decodes and validates a mapping document. Entries of the
// "fields" shorthand become expression mappings when the value is a string
// starting with "=" or containing "{{", static mappings otherwise; they
// follow the "mappings" list in field name order.
func LoadMappings(data []byte, format Format) ([]fieldmap.FieldMapping, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, pdferrors.NewConfigError("mapping document is empty")
	}

	if format == FormatAuto {
		format = FormatYAML
		if c := bytes.TrimSpace(data)[0]; c == '{' || c == '[' {
			format = FormatJSON
		}
	}

	doc, err := normalize(data, format)
	if err != nil {
		return nil, err
	}

	s, err := schema()
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeRuntime, err)
	}
	var generic any
	if err := json.Unmarshal(doc, &generic); err != nil {
		return nil, pdferrors.NewConfigError("invalid mapping document: %v", err)
	}
	if err := s.Validate(generic); err != nil {
		return nil, pdferrors.NewConfigError("mapping document does not match schema: %v", err)
	}

	if _, isList := generic.([]any); isList {
		var mappings []fieldmap.FieldMapping
		if err := json.Unmarshal(doc, &mappings); err != nil {
			return nil, pdferrors.NewConfigError("invalid mapping document: %v", err)
		}
		return mappings, nil
	}

	var md mappingDocument
	if err := json.Unmarshal(doc, &md); err != nil {
		return nil, pdferrors.NewConfigError("invalid mapping document: %v", err)
	}

	mappings := md.Mappings
	names := make([]string, 0, len(md.Fields))
	for name := range md.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := md.Fields[name]
		if str, ok := value.(string); ok && isExpression(str) {
			mappings = append(mappings, fieldmap.Expression(name, str))
			continue
		}
		mappings = append(mappings, fieldmap.Static(name, value))
	}
	return mappings, nil
}

// normalize converts the document to JSON
func normalize(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return data, nil
	case FormatYAML:
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, pdferrors.NewConfigError("invalid YAML mapping document: %v", err)
		}
		out, err := json.Marshal(v)
		if err != nil {
			return nil, pdferrors.NewConfigError("mapping document cannot be represented as JSON: %v", err)
		}
		return out, nil
	default:
		return nil, pdferrors.NewConfigError("unknown mapping document format %q", format)
	}
}
