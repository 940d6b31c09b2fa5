package expression

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := NewFromValues([]map[string]any{
		{
			"name":    "Ada Lovelace",
			"age":     36,
			"agree":   true,
			"address": map[string]any{"city": "London", "zip code": "W1"},
			"tags":    []any{"math", "poetry"},
			"a.b":     "dotted",
		},
		{
			"name": "Grace Hopper",
		},
		nil,
	})
	require.NoError(t, err)
	return e
}

func TestEvaluator_SinglePlaceholderKeepsType(t *testing.T) {
	e := newTestEvaluator(t)

	tests := []struct {
		expr     string
		expected any
	}{
		{"{{ $json.name }}", "Ada Lovelace"},
		{"={{ $json.name }}", "Ada Lovelace"},
		{"{{$json.age}}", float64(36)},
		{"{{ $json.agree }}", true},
		{"{{ $json.address.city }}", "London"},
		{`{{ $json.address["zip code"] }}`, "W1"},
		{`{{ $json['a.b'] }}`, "dotted"},
		{"{{ $json.tags[1] }}", "poetry"},
		{"{{ $json.tags }}", []any{"math", "poetry"}},
		{"{{ $json.nope }}", nil},
		{"{{ $index }}", 0},
		{"$json.name", "Ada Lovelace"},
		{"plain text", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := e.Evaluate(context.Background(), tt.expr, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEvaluator_Interpolation(t *testing.T) {
	e := newTestEvaluator(t)

	got, err := e.Evaluate(context.Background(), "={{ $json.name }} ({{ $json.age }}) #{{ $index }}", 0)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace (36) #0", got)

	got, err = e.Evaluate(context.Background(), "Dear {{ $json.name }}, {{ $json.missing }}!", 1)
	require.NoError(t, err)
	assert.Equal(t, "Dear Grace Hopper, !", got)
}

func TestEvaluator_NilItemIsEmptyObject(t *testing.T) {
	got, err := newTestEvaluator(t).Evaluate(context.Background(), "{{ $json.name }}", 2)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEvaluator_Errors(t *testing.T) {
	e := newTestEvaluator(t)

	tests := []struct {
		name  string
		expr  string
		index int
		msg   string
	}{
		{"unterminated", "{{ $json.name", 0, "unterminated"},
		{"empty placeholder", "{{  }}", 0, "empty placeholder"},
		{"stray close", "name }}", 0, "unexpected"},
		{"unknown root", "{{ $node.name }}", 0, "unknown reference"},
		{"bad accessor", "{{ $json..name }}", 0, "empty key"},
		{"bad index", "{{ $json.tags[x] }}", 0, "invalid index"},
		{"out of range", "{{ $json.name }}", 5, "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Evaluate(context.Background(), tt.expr, tt.index)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestEvaluator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEvaluator(t).Evaluate(ctx, "{{ $json.name }}", 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluator_RawItems(t *testing.T) {
	e := New([][]byte{[]byte(`{"n": 1.5}`)})

	got, err := e.Evaluate(context.Background(), "{{ $json.n }}", 0)
	require.NoError(t, err)
	assert.Equal(t, 1.5, got)

	got, err = e.Evaluate(context.Background(), "{{ $json }}", 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": 1.5}, got)
}
