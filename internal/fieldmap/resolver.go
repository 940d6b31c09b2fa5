package fieldmap

import (
	"context"
	"encoding/json"
	"reflect"
)

// ObjectPlaceholder stands in for values that cannot be stringified
const ObjectPlaceholder = "[Object]"

// Evaluator evaluates an expression in the context of one input item.
// It is owned by the host runtime; implementations may block.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, itemIndex int) (any, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface
type EvaluatorFunc func(ctx context.Context, expression string, itemIndex int) (any, error)

// Evaluate implements Evaluator
func (f EvaluatorFunc) Evaluate(ctx context.Context, expression string, itemIndex int) (any, error) {
	return f(ctx, expression, itemIndex)
}

// Resolver produces the raw value of a mapping for one item
type Resolver struct {
	evaluator Evaluator
}

// NewResolver creates a resolver. evaluator may be nil when only static
// mappings will be resolved.
func NewResolver(evaluator Evaluator) *Resolver {
	return &Resolver{evaluator: evaluator}
}

// Resolve returns the raw value for mapping. Static values are returned
// verbatim; expression results are normalized so that nil becomes "" and
// composite values become JSON text (or ObjectPlaceholder).
func (r *Resolver) Resolve(ctx context.Context, mapping FieldMapping, itemIndex int) (any, error) {
	switch src := mapping.Source.(type) {
	case StaticValue:
		return src.Value, nil
	case ExpressionValue:
		if r.evaluator == nil {
			return nil, &DataError{Reason: ReasonNoEvaluator, Field: mapping.PDFFieldName}
		}
		value, err := r.evaluator.Evaluate(ctx, src.Expression, itemIndex)
		if err != nil {
			return nil, &DataError{
				Reason: ReasonExpressionFailed,
				Field:  mapping.PDFFieldName,
				Actual: src.Expression,
				Err:    err,
			}
		}
		return normalizeDynamic(value), nil
	default:
		return nil, &DataError{
			Reason:   ReasonUnsupportedType,
			Field:    mapping.PDFFieldName,
			Expected: "static or expression value source",
			Actual:   reflect.TypeOf(mapping.Source).String(),
		}
	}
}

// normalizeDynamic flattens an evaluator result into something the coercer accepts
func normalizeDynamic(value any) any {
	switch v := value.(type) {
	case nil:
		return ""
	case string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return ""
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		// typed nil collections are absent values, not JSON null
		if (rv.Kind() == reflect.Map || rv.Kind() == reflect.Slice) && rv.IsNil() {
			return ""
		}
		b, err := json.Marshal(value)
		if err != nil {
			return ObjectPlaceholder
		}
		return string(b)
	// named scalar types (type Flag bool, type Code string, ...) and dereferenced pointers
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}

	return ObjectPlaceholder
}
