// Package expression evaluates workflow expressions such as
// "={{ $json.customer.name }}" against the JSON of input items.
package expression

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Evaluator resolves expressions against a fixed batch of items.
// It is safe for concurrent use.
type Evaluator struct {
	items [][]byte
}

// New creates an evaluator over raw JSON items
func New(items [][]byte) *Evaluator {
	return &Evaluator{items: items}
}

// NewFromValues marshals each item's JSON payload and creates an evaluator
func NewFromValues(items []map[string]any) (*Evaluator, error) {
	raw := make([][]byte, len(items))
	for i, item := range items {
		if item == nil {
			raw[i] = []byte("{}")
			continue
		}
		b, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to encode item %d: %w", i, err)
		}
		raw[i] = b
	}
	return New(raw), nil
}

// Evaluate resolves expression for the item at itemIndex.
//
// An expression made of exactly one placeholder yields the referenced value
// with its JSON type (missing paths yield nil). Placeholders embedded in
// text are interpolated into a string. Without placeholders, a leading "$"
// marks a bare reference and anything else is returned as literal text.
func (e *Evaluator) Evaluate(ctx context.Context, expression string, itemIndex int) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if itemIndex < 0 || itemIndex >= len(e.items) {
		return nil, fmt.Errorf("item index %d out of range (items: %d)", itemIndex, len(e.items))
	}
	item := e.items[itemIndex]

	expr := strings.TrimPrefix(strings.TrimSpace(expression), "=")

	if !strings.Contains(expr, openDelim) {
		trimmed := strings.TrimSpace(expr)
		if strings.HasPrefix(trimmed, "$") {
			return e.lookup(item, trimmed, itemIndex)
		}
		if strings.Contains(expr, closeDelim) {
			return nil, fmt.Errorf("unexpected %q in expression %q", closeDelim, expression)
		}
		return expr, nil
	}

	segments, err := parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", expression, err)
	}

	if len(segments) == 1 && segments[0].ref {
		return e.lookup(item, segments[0].text, itemIndex)
	}

	var b strings.Builder
	for _, seg := range segments {
		if !seg.ref {
			b.WriteString(seg.text)
			continue
		}
		v, err := e.lookup(item, seg.text, itemIndex)
		if err != nil {
			return nil, err
		}
		b.WriteString(render(v))
	}
	return b.String(), nil
}

// segment is either literal text or a placeholder reference
type segment struct {
	text string
	ref  bool
}

func parse(expr string) ([]segment, error) {
	var segments []segment
	rest := expr

	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			if strings.Contains(rest, closeDelim) {
				return nil, fmt.Errorf("unexpected %q", closeDelim)
			}
			if rest != "" {
				segments = append(segments, segment{text: rest})
			}
			return segments, nil
		}

		if start > 0 {
			literal := rest[:start]
			if strings.Contains(literal, closeDelim) {
				return nil, fmt.Errorf("unexpected %q", closeDelim)
			}
			segments = append(segments, segment{text: literal})
		}

		rest = rest[start+len(openDelim):]
		end := strings.Index(rest, closeDelim)
		if end < 0 {
			return nil, fmt.Errorf("unterminated placeholder")
		}

		ref := strings.TrimSpace(rest[:end])
		if ref == "" {
			return nil, fmt.Errorf("empty placeholder")
		}
		segments = append(segments, segment{text: ref, ref: true})
		rest = rest[end+len(closeDelim):]
	}
}

// lookup resolves a single reference such as $json.a.b or $index
func (e *Evaluator) lookup(item []byte, ref string, itemIndex int) (any, error) {
	switch ref {
	case "$index", "$itemIndex":
		return itemIndex, nil
	case "$json":
		return gjson.ParseBytes(item).Value(), nil
	}

	rest, ok := strings.CutPrefix(ref, "$json")
	if !ok {
		return nil, fmt.Errorf("unknown reference %q (supported: $json, $index)", ref)
	}

	path, err := toGJSONPath(rest)
	if err != nil {
		return nil, fmt.Errorf("invalid reference %q: %w", ref, err)
	}

	result := gjson.GetBytes(item, path)
	if !result.Exists() {
		return nil, nil
	}
	return result.Value(), nil
}

// toGJSONPath converts ".a.b", "['a b'].c" and "[0]" accessors into a gjson path
func toGJSONPath(accessors string) (string, error) {
	var parts []string
	rest := accessors

	for rest != "" {
		switch rest[0] {
		case '.':
			rest = rest[1:]
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			key := rest[:end]
			if key == "" {
				return "", fmt.Errorf("empty key")
			}
			parts = append(parts, gjson.Escape(key))
			rest = rest[end:]
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return "", fmt.Errorf("unterminated bracket")
			}
			inner := strings.TrimSpace(rest[1:end])
			key, err := bracketKey(inner)
			if err != nil {
				return "", err
			}
			parts = append(parts, key)
			rest = rest[end+1:]
		default:
			return "", fmt.Errorf("unexpected %q", rest[0])
		}
	}

	if len(parts) == 0 {
		return "@this", nil
	}
	return strings.Join(parts, "."), nil
}

func bracketKey(inner string) (string, error) {
	if len(inner) >= 2 && (inner[0] == '"' || inner[0] == '\'') && inner[len(inner)-1] == inner[0] {
		return gjson.Escape(inner[1 : len(inner)-1]), nil
	}
	if _, err := strconv.Atoi(inner); err == nil {
		return inner, nil
	}
	return "", fmt.Errorf("invalid index %q", inner)
}

// render formats a looked-up value for string interpolation
func render(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
