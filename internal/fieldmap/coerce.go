package fieldmap

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	CheckboxOn  = "Yes"
	CheckboxOff = "No"
)

var (
	truthy = map[string]bool{"yes": true, "true": true, "1": true, "on": true}
	falsy  = map[string]bool{"no": true, "false": true, "0": true, "off": true}
)

const checkboxExpectation = "true/false, yes/no, 1/0 or on/off"

// Coerce converts a resolved raw value into the canonical representation
// the fill backend expects for field, or fails with a *DataError.
func Coerce(field FieldInfo, raw any) (string, error) {
	switch field.Type {
	case FieldTypeText:
		return coerceText(field, raw)
	case FieldTypeCheckbox:
		return coerceCheckbox(field, raw)
	case FieldTypeRadio, FieldTypeDropdown:
		if !field.HasOptions() {
			return coerceText(field, raw)
		}
		return coerceChoice(field, raw)
	default:
		return "", &DataError{
			Reason:   ReasonUnsupportedType,
			Field:    field.Name,
			Expected: "text, checkbox, radio or dropdown",
			Actual:   string(field.Type),
		}
	}
}

func coerceText(field FieldInfo, raw any) (string, error) {
	s, err := stringify(field.Name, raw)
	if err != nil {
		return "", err
	}

	if field.MaxLength > 0 {
		if n := utf8.RuneCountInString(s); n > field.MaxLength {
			return "", &DataError{
				Reason:    ReasonLengthExceeded,
				Field:     field.Name,
				Expected:  fmt.Sprintf("at most %d characters", field.MaxLength),
				Actual:    s,
				MaxLength: field.MaxLength,
				Length:    n,
			}
		}
	}
	return s, nil
}

func coerceCheckbox(field FieldInfo, raw any) (string, error) {
	invalid := func(actual string) error {
		return &DataError{
			Reason:   ReasonInvalidBoolean,
			Field:    field.Name,
			Expected: checkboxExpectation,
			Actual:   actual,
		}
	}

	switch v := raw.(type) {
	case bool:
		return checkboxValue(v), nil
	case string:
		key := strings.ToLower(strings.TrimSpace(v))
		if truthy[key] {
			return CheckboxOn, nil
		}
		if falsy[key] {
			return CheckboxOff, nil
		}
		return "", invalid(v)
	}

	if f, ok := toFloat(raw); ok {
		if math.IsNaN(f) {
			return "", invalid("NaN")
		}
		return checkboxValue(f != 0), nil
	}

	return "", invalid(fmt.Sprintf("%v", raw))
}

func checkboxValue(on bool) string {
	if on {
		return CheckboxOn
	}
	return CheckboxOff
}

func coerceChoice(field FieldInfo, raw any) (string, error) {
	s, err := stringify(field.Name, raw)
	if err != nil {
		return "", err
	}

	for _, opt := range field.Options {
		if strings.EqualFold(opt, s) {
			return opt, nil
		}
	}

	options := make([]string, len(field.Options))
	copy(options, field.Options)
	return "", &DataError{
		Reason:   ReasonInvalidOption,
		Field:    field.Name,
		Expected: "one of: " + strings.Join(options, ", "),
		Actual:   s,
		Options:  options,
	}
}

// stringify renders a scalar raw value as text
func stringify(fieldName string, raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case json.Number:
		return v.String(), nil
	case int:
		return strconv.Itoa(v), nil
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", v), nil
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case float32:
		return formatFloat(fieldName, float64(v), 32)
	case float64:
		return formatFloat(fieldName, v, 64)
	}

	// composite values that reached the coercer directly (static values)
	b, err := json.Marshal(raw)
	if err != nil {
		return ObjectPlaceholder, nil
	}
	return string(b), nil
}

func formatFloat(fieldName string, f float64, bits int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", &DataError{
			Reason:   ReasonInvalidNumber,
			Field:    fieldName,
			Expected: "a finite number",
			Actual:   strconv.FormatFloat(f, 'g', -1, bits),
		}
	}
	return strconv.FormatFloat(f, 'f', -1, bits), nil
}

// toFloat converts numeric raw values for checkbox evaluation
func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}
