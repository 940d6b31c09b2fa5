package fieldmap

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce_Text(t *testing.T) {
	field := FieldInfo{Name: "firstName", Type: FieldTypeText}

	tests := []struct {
		name     string
		raw      any
		expected string
	}{
		{name: "string", raw: "John", expected: "John"},
		{name: "empty string", raw: "", expected: ""},
		{name: "nil", raw: nil, expected: ""},
		{name: "integer", raw: 42, expected: "42"},
		{name: "int64", raw: int64(-7), expected: "-7"},
		{name: "float whole", raw: 42.0, expected: "42"},
		{name: "float fraction", raw: 3.25, expected: "3.25"},
		{name: "json number", raw: json.Number("1.50"), expected: "1.50"},
		{name: "bool true", raw: true, expected: "true"},
		{name: "bool false", raw: false, expected: "false"},
		{name: "map", raw: map[string]any{"a": 1}, expected: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(field, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCoerce_TextMaxLength(t *testing.T) {
	field := FieldInfo{Name: "code", Type: FieldTypeText, MaxLength: 10}

	got, err := Coerce(field, "0123456789")
	require.NoError(t, err)
	assert.Equal(t, "0123456789", got)

	_, err = Coerce(field, "01234567890")
	require.Error(t, err)

	de, ok := AsDataError(err)
	require.True(t, ok)
	assert.Equal(t, ReasonLengthExceeded, de.Reason)
	assert.Equal(t, "code", de.Field)
	assert.Equal(t, 10, de.MaxLength)
	assert.Equal(t, 11, de.Length)
	assert.Contains(t, err.Error(), "11")
	assert.Contains(t, err.Error(), "10")
}

func TestCoerce_TextMaxLengthCountsCharacters(t *testing.T) {
	field := FieldInfo{Name: "city", Type: FieldTypeText, MaxLength: 6}

	got, err := Coerce(field, "Zürich")
	require.NoError(t, err)
	assert.Equal(t, "Zürich", got)
}

func TestCoerce_TextRejectsNonFiniteNumbers(t *testing.T) {
	field := FieldInfo{Name: "amount", Type: FieldTypeText}

	for _, raw := range []any{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Coerce(field, raw)
		require.Error(t, err)
		de, ok := AsDataError(err)
		require.True(t, ok)
		assert.Equal(t, ReasonInvalidNumber, de.Reason)
	}
}

func TestCoerce_Checkbox(t *testing.T) {
	field := FieldInfo{Name: "agree", Type: FieldTypeCheckbox}

	for _, raw := range []any{true, "yes", "YES", "Yes", "true", "1", "on", " On ", 1, 2.5, int64(-1)} {
		got, err := Coerce(field, raw)
		require.NoError(t, err, "raw=%v", raw)
		assert.Equal(t, "Yes", got, "raw=%v", raw)
	}

	for _, raw := range []any{false, "no", "No", "false", "0", "off", "OFF", 0, 0.0} {
		got, err := Coerce(field, raw)
		require.NoError(t, err, "raw=%v", raw)
		assert.Equal(t, "No", got, "raw=%v", raw)
	}
}

func TestCoerce_CheckboxInvalid(t *testing.T) {
	field := FieldInfo{Name: "agree", Type: FieldTypeCheckbox}

	for _, raw := range []any{"maybe", "", "y", map[string]any{}, math.NaN()} {
		_, err := Coerce(field, raw)
		require.Error(t, err, "raw=%v", raw)
		de, ok := AsDataError(err)
		require.True(t, ok)
		assert.Equal(t, ReasonInvalidBoolean, de.Reason)
		assert.Equal(t, "agree", de.Field)
	}
}

func TestCoerce_Choice(t *testing.T) {
	for _, typ := range []FieldType{FieldTypeDropdown, FieldTypeRadio} {
		t.Run(string(typ), func(t *testing.T) {
			field := FieldInfo{Name: "country", Type: typ, Options: []string{"Canada", "USA"}}

			got, err := Coerce(field, "canada")
			require.NoError(t, err)
			assert.Equal(t, "Canada", got)

			got, err = Coerce(field, "usa")
			require.NoError(t, err)
			assert.Equal(t, "USA", got)

			_, err = Coerce(field, "mexico")
			require.Error(t, err)
			de, ok := AsDataError(err)
			require.True(t, ok)
			assert.Equal(t, ReasonInvalidOption, de.Reason)
			assert.Equal(t, "mexico", de.Actual)
			assert.Equal(t, []string{"Canada", "USA"}, de.Options)
			assert.Contains(t, err.Error(), "Canada, USA")
		})
	}
}

func TestCoerce_ChoiceNumericOption(t *testing.T) {
	field := FieldInfo{Name: "size", Type: FieldTypeRadio, Options: []string{"1", "2", "3"}}

	got, err := Coerce(field, 2)
	require.NoError(t, err)
	assert.Equal(t, "2", got)
}

func TestCoerce_ChoiceWithoutOptionsIsText(t *testing.T) {
	for _, options := range [][]string{nil, {}} {
		field := FieldInfo{Name: "notes", Type: FieldTypeDropdown, Options: options, MaxLength: 5}

		_, err := Coerce(field, "anything")
		if assert.Error(t, err) {
			de, _ := AsDataError(err)
			assert.Equal(t, ReasonLengthExceeded, de.Reason)
		}

		field.MaxLength = 0
		got, err := Coerce(field, "anything")
		require.NoError(t, err)
		assert.Equal(t, "anything", got)
	}
}

func TestCoerce_UnsupportedType(t *testing.T) {
	_, err := Coerce(FieldInfo{Name: "sig", Type: "signature"}, "x")
	require.Error(t, err)
	de, ok := AsDataError(err)
	require.True(t, ok)
	assert.Equal(t, ReasonUnsupportedType, de.Reason)
	assert.Equal(t, "signature", de.Actual)
}

func TestCoerce_Idempotent(t *testing.T) {
	fields := []FieldInfo{
		{Name: "t", Type: FieldTypeText, MaxLength: 20},
		{Name: "c", Type: FieldTypeCheckbox},
		{Name: "d", Type: FieldTypeDropdown, Options: []string{"Canada", "USA"}},
		{Name: "r", Type: FieldTypeRadio, Options: []string{"Red", "Green"}},
	}
	inputs := map[string][]any{
		"t": {"hello", 12, true},
		"c": {"yes", false, 1},
		"d": {"CANADA", "usa"},
		"r": {"green"},
	}

	for _, field := range fields {
		for _, raw := range inputs[field.Name] {
			once, err := Coerce(field, raw)
			require.NoError(t, err)
			twice, err := Coerce(field, once)
			require.NoError(t, err)
			assert.Equal(t, once, twice, "field %s raw %v", field.Name, raw)
		}
	}
}

func TestDataError_Messages(t *testing.T) {
	tests := []struct {
		err      *DataError
		contains []string
	}{
		{&DataError{Reason: ReasonFieldNotFound, Field: "x"}, []string{`"x"`, "not found"}},
		{&DataError{Reason: ReasonInvalidBoolean, Field: "c", Actual: "maybe", Expected: checkboxExpectation},
			[]string{"maybe", "yes/no"}},
		{&DataError{Reason: ReasonNoEvaluator, Field: "e"}, []string{"no evaluator"}},
		{&DataError{Reason: "other", Field: "z"}, []string{"invalid data", `"z"`}},
	}

	for _, tt := range tests {
		msg := tt.err.Error()
		for _, s := range tt.contains {
			assert.True(t, strings.Contains(msg, s), "%q should contain %q", msg, s)
		}
	}
}
