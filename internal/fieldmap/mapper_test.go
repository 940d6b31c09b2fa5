package fieldmap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInventory() []FieldInfo {
	return []FieldInfo{
		{Name: "firstName", Type: FieldTypeText, MaxLength: 50},
		{Name: "country", Type: FieldTypeDropdown, Options: []string{"USA", "Canada"}},
		{Name: "subscribe", Type: FieldTypeCheckbox},
		{Name: "color", Type: FieldTypeRadio, Options: []string{"Red", "Green", "Blue"}},
	}
}

func TestMapper_EndToEnd(t *testing.T) {
	inventory := []FieldInfo{
		{Name: "firstName", Type: FieldTypeText, MaxLength: 50},
		{Name: "country", Type: FieldTypeDropdown, Options: []string{"USA", "Canada"}},
	}
	mappings := []FieldMapping{
		Static("firstName", "John"),
		Static("country", "canada"),
	}

	values, err := NewMapper(nil, nil).MapFieldsToValues(context.Background(), mappings, inventory, 0, Options{})
	require.NoError(t, err)
	assert.Equal(t, Values{"firstName": "John", "country": "Canada"}, values)
}

func TestMapper_MixedSources(t *testing.T) {
	eval := &stubEvaluator{results: map[string]any{
		"$json.name":  "Ada",
		"$json.color": "GREEN",
		"$json.opt":   1,
	}}
	mappings := []FieldMapping{
		Expression("firstName", "$json.name"),
		Static("country", "usa"),
		Expression("subscribe", "$json.opt"),
		Expression("color", "$json.color"),
	}

	values, err := NewMapper(eval, nil).MapFieldsToValues(context.Background(), mappings, sampleInventory(), 0, Options{})
	require.NoError(t, err)
	assert.Equal(t, Values{
		"firstName": "Ada",
		"country":   "USA",
		"subscribe": "Yes",
		"color":     "Green",
	}, values)
}

func TestMapper_MissingField(t *testing.T) {
	mappings := []FieldMapping{
		Static("firstName", "John"),
		Static("middleName", "Q"),
		Static("country", "USA"),
	}
	m := NewMapper(nil, nil)

	values, err := m.MapFieldsToValues(context.Background(), mappings, sampleInventory(), 0, Options{})
	require.Error(t, err)
	assert.Nil(t, values)
	de, ok := AsDataError(err)
	require.True(t, ok)
	assert.Equal(t, ReasonFieldNotFound, de.Reason)
	assert.Equal(t, "middleName", de.Field)

	values, err = m.MapFieldsToValues(context.Background(), mappings, sampleInventory(), 0, Options{SkipMissing: true})
	require.NoError(t, err)
	assert.Equal(t, Values{"firstName": "John", "country": "USA"}, values)
	assert.NotContains(t, values, "middleName")
}

func TestMapper_LastWriteWins(t *testing.T) {
	eval := &stubEvaluator{results: map[string]any{"expr": "Blue"}}
	m := NewMapper(eval, nil)

	values, err := m.MapFieldsToValues(context.Background(), []FieldMapping{
		Static("color", "red"),
		Expression("color", "expr"),
	}, sampleInventory(), 0, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Blue", values["color"])

	values, err = m.MapFieldsToValues(context.Background(), []FieldMapping{
		Expression("color", "expr"),
		Static("color", "red"),
	}, sampleInventory(), 0, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Red", values["color"])
}

func TestMapper_ExpressionFailureAbortsItem(t *testing.T) {
	eval := &stubEvaluator{
		results: map[string]any{"ok": "fine"},
		errs:    map[string]error{"broken": errors.New("syntax error")},
	}
	mappings := []FieldMapping{
		Expression("firstName", "ok"),
		Expression("country", "broken"),
		Static("subscribe", true),
	}

	values, err := NewMapper(eval, nil).MapFieldsToValues(context.Background(), mappings, sampleInventory(), 0, Options{})
	require.Error(t, err)
	assert.Nil(t, values)

	de, ok := AsDataError(err)
	require.True(t, ok)
	assert.Equal(t, ReasonExpressionFailed, de.Reason)
	assert.Equal(t, "country", de.Field)
	assert.Contains(t, err.Error(), "country")
}

func TestMapper_CoercionFailureNamesField(t *testing.T) {
	_, err := NewMapper(nil, nil).MapFieldsToValues(context.Background(), []FieldMapping{
		Static("country", "mexico"),
	}, sampleInventory(), 0, Options{})

	de, ok := AsDataError(err)
	require.True(t, ok)
	assert.Equal(t, ReasonInvalidOption, de.Reason)
	assert.Equal(t, []string{"USA", "Canada"}, de.Options)
}

func TestMapper_EmptyOptionsDropdownAcceptsAnyText(t *testing.T) {
	inventory := []FieldInfo{{Name: "state", Type: FieldTypeDropdown, Options: []string{}}}

	values, err := NewMapper(nil, nil).MapFieldsToValues(context.Background(),
		[]FieldMapping{Static("state", "Anything Goes")}, inventory, 0, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Anything Goes", values["state"])
}

func TestMapper_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMapper(nil, nil).MapFieldsToValues(ctx, []FieldMapping{Static("firstName", "x")},
		sampleInventory(), 0, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMapper_FreshDictionaryPerItem(t *testing.T) {
	eval := EvaluatorFunc(func(_ context.Context, _ string, itemIndex int) (any, error) {
		return fmt.Sprintf("row-%d", itemIndex), nil
	})
	m := NewMapper(eval, nil)
	mappings := []FieldMapping{Expression("firstName", "$json.name")}
	inventory := sampleInventory()

	results := make([]Values, 20)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := m.MapFieldsToValues(context.Background(), mappings, inventory, i, Options{})
			if err == nil {
				results[i] = v
			}
		}(i)
	}
	wg.Wait()

	for i, v := range results {
		assert.Equal(t, Values{"firstName": fmt.Sprintf("row-%d", i)}, v)
	}
}

func TestValidateMappings(t *testing.T) {
	mappings := []FieldMapping{
		Static("firstName", "John"),
		Static("middleName", "Q"),
		Expression("nickname", "$json.nick"),
		Static("country", "USA"),
	}

	result := ValidateMappings(mappings, sampleInventory())
	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, []string{"middleName", "nickname"}, result.Missing)
	assert.Contains(t, result.Errors[0], "middleName")
	assert.Contains(t, result.Errors[0], "color, country, firstName, subscribe")
	assert.Contains(t, result.Errors[1], "nickname")
}

func TestValidateMappings_Valid(t *testing.T) {
	result := ValidateMappings([]FieldMapping{Static("firstName", "x")}, sampleInventory())
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.NotNil(t, result.Errors)
}

func TestValidateMappings_ListsAtMostTenFields(t *testing.T) {
	var inventory []FieldInfo
	for i := 0; i < 15; i++ {
		inventory = append(inventory, FieldInfo{Name: fmt.Sprintf("f%02d", i), Type: FieldTypeText})
	}

	result := ValidateMappings([]FieldMapping{Static("nope", "x")}, inventory)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "f09")
	assert.NotContains(t, result.Errors[0], "f10")
	assert.Contains(t, result.Errors[0], "(and 5 more)")
}

func TestValidateMappings_EmptyInventory(t *testing.T) {
	result := ValidateMappings([]FieldMapping{Static("a", 1)}, nil)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "(none)")
}

func TestSkippedFields(t *testing.T) {
	skipped := SkippedFields([]FieldMapping{
		Static("ghost", 1),
		Static("firstName", "x"),
		Static("ghost", 2),
		Static("phantom", 3),
	}, sampleInventory())
	assert.Equal(t, []string{"ghost", "phantom"}, skipped)
}
