package fieldmap

import (
	"encoding/json"
	"fmt"
)

// FieldType represents the type of a fillable PDF field
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeRadio    FieldType = "radio"
	FieldTypeDropdown FieldType = "dropdown"
)

// IsValid reports whether t is one of the supported field types
func (t FieldType) IsValid() bool {
	switch t {
	case FieldTypeText, FieldTypeCheckbox, FieldTypeRadio, FieldTypeDropdown:
		return true
	}
	return false
}

// FieldInfo describes one entry of a PDF's field inventory
type FieldInfo struct {
	Name         string    `json:"name"`
	Type         FieldType `json:"type"`
	Required     bool      `json:"required"`
	MaxLength    int       `json:"maxLength,omitempty"` // 0 means unlimited
	Options      []string  `json:"options,omitempty"`
	DefaultValue any       `json:"defaultValue,omitempty"`
}

// HasOptions reports whether the field constrains its value to an option list.
// Choice fields without options degrade to free text.
func (f FieldInfo) HasOptions() bool {
	return (f.Type == FieldTypeRadio || f.Type == FieldTypeDropdown) && len(f.Options) > 0
}

// SourceKind tags the variant of a ValueSource
type SourceKind string

const (
	SourceStatic     SourceKind = "static"
	SourceExpression SourceKind = "expression"
)

// ValueSource is where a mapping's raw value comes from. It is implemented
// only by StaticValue and ExpressionValue.
type ValueSource interface {
	Kind() SourceKind
	sealed()
}

// StaticValue is a literal supplied with the mapping (string, bool or number)
type StaticValue struct {
	Value any
}

// Kind implements ValueSource
func (StaticValue) Kind() SourceKind { return SourceStatic }
func (StaticValue) sealed()          {}

// ExpressionValue is evaluated per item by the host's expression evaluator
type ExpressionValue struct {
	Expression string
}

// Kind implements ValueSource
func (ExpressionValue) Kind() SourceKind { return SourceExpression }
func (ExpressionValue) sealed()          {}

// FieldMapping binds a value source to a target PDF field
type FieldMapping struct {
	PDFFieldName string
	Source       ValueSource
}

// Static builds a mapping with a literal value
func Static(field string, value any) FieldMapping {
	return FieldMapping{PDFFieldName: field, Source: StaticValue{Value: value}}
}

// Expression builds a mapping evaluated per item
func Expression(field, expression string) FieldMapping {
	return FieldMapping{PDFFieldName: field, Source: ExpressionValue{Expression: expression}}
}

// wireMapping is the JSON shape of a FieldMapping
type wireMapping struct {
	PDFFieldName string     `json:"pdfFieldName"`
	ValueSource  SourceKind `json:"valueSource"`
	StaticValue  any        `json:"staticValue,omitempty"`
	Expression   string     `json:"expression,omitempty"`
}

// MarshalJSON encodes the mapping with a valueSource tag
func (m FieldMapping) MarshalJSON() ([]byte, error) {
	w := wireMapping{PDFFieldName: m.PDFFieldName}
	switch src := m.Source.(type) {
	case StaticValue:
		w.ValueSource = SourceStatic
		w.StaticValue = src.Value
	case ExpressionValue:
		w.ValueSource = SourceExpression
		w.Expression = src.Expression
	case nil:
		return nil, fmt.Errorf("mapping for field %q has no value source", m.PDFFieldName)
	default:
		return nil, fmt.Errorf("mapping for field %q has unknown value source %T", m.PDFFieldName, src)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the tagged form. Only the member selected by
// valueSource is kept; an absent tag defaults to static.
func (m *FieldMapping) UnmarshalJSON(data []byte) error {
	var w wireMapping
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	m.PDFFieldName = w.PDFFieldName
	switch w.ValueSource {
	case SourceStatic, "":
		m.Source = StaticValue{Value: w.StaticValue}
	case SourceExpression:
		m.Source = ExpressionValue{Expression: w.Expression}
	default:
		return fmt.Errorf("invalid valueSource %q for field %q (must be one of: static, expression)",
			w.ValueSource, w.PDFFieldName)
	}
	return nil
}

// Values is the resolved value dictionary handed to the fill backend.
// Text, radio and dropdown fields carry strings; checkboxes carry "Yes" or "No".
type Values map[string]string

// Names returns the field names in v in no particular order
func (v Values) Names() []string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	return names
}

// Inventory indexes a field inventory by name
type Inventory map[string]FieldInfo

// NewInventory builds a name lookup. Later duplicates win.
func NewInventory(fields []FieldInfo) Inventory {
	inv := make(Inventory, len(fields))
	for _, f := range fields {
		inv[f.Name] = f
	}
	return inv
}
