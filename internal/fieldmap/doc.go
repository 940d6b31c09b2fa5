// Package fieldmap turns workflow mapping declarations into the value
// dictionary a PDF fill backend consumes.
package fieldmap

/*
Field Mapping Rules

## Flow

	inventory + mappings -> Mapper -> (per mapping) Resolver -> raw value -> Coerce -> Values

The inventory is the list of fillable fields discovered in one PDF. Mappings
are authored per execution and are read-only. A new Values dictionary is
built for every item; nothing is shared between items except the inventory
and the mapping list, so distinct items may be mapped concurrently.

## Value sources

- static: the literal is returned as-is.
- expression: the Evaluator is called with (expression, itemIndex).
  Evaluator failures become ReasonExpressionFailed errors naming the field.
  nil results become "", maps/slices/structs become JSON text, and anything
  that cannot be encoded becomes "[Object]".

## Coercion by field type

- text: numbers render as decimal strings, booleans as "true"/"false".
  MaxLength is counted in characters and exceeding it is an error; values
  are never truncated. NaN and infinities are rejected.
- checkbox: booleans; strings yes/true/1/on and no/false/0/off in any case;
  numbers (zero is off). The output is always "Yes" or "No".
- radio, dropdown: case-insensitive match against Options, emitting the
  option's own casing. Without options the field behaves like text.

## Entry points

MapFieldsToValues fails on the first problem and returns no partial result.
Duplicate targets are last-write-wins in declaration order.

ValidateMappings never fails; it lists every mapping whose field is absent
so all problems can be shown before anything is filled.
*/
