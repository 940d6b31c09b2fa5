package fieldmap

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// maxListedFields limits how many available field names a validation message lists
const maxListedFields = 10

// Options controls how mappings are applied
type Options struct {
	// SkipMissing omits mappings whose target field is absent from the
	// inventory instead of failing.
	SkipMissing bool
}

// Mapper turns mapping declarations into a resolved value dictionary
type Mapper struct {
	resolver *Resolver
	logger   *slog.Logger
}

// NewMapper creates a mapper that resolves expressions with evaluator.
// A nil logger falls back to slog.Default().
func NewMapper(evaluator Evaluator, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{
		resolver: NewResolver(evaluator),
		logger:   logger,
	}
}

// MapFieldsToValues resolves and coerces every mapping for the item at
// itemIndex, in declaration order, and returns a fresh dictionary.
//
// It fails fast: the first unsatisfiable mapping aborts with a *DataError
// and no partial dictionary is returned. When the same field is mapped more
// than once the later declaration overwrites the earlier one.
func (m *Mapper) MapFieldsToValues(
	ctx context.Context, mappings []FieldMapping, inventory []FieldInfo, itemIndex int, opts Options,
) (Values, error) {
	fields := NewInventory(inventory)
	values := make(Values, len(mappings))

	for _, mapping := range mappings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		field, ok := fields[mapping.PDFFieldName]
		if !ok {
			if opts.SkipMissing {
				m.logger.Debug("skipping mapping for missing field",
					"field", mapping.PDFFieldName, "item", itemIndex)
				continue
			}
			return nil, &DataError{Reason: ReasonFieldNotFound, Field: mapping.PDFFieldName}
		}

		raw, err := m.resolver.Resolve(ctx, mapping, itemIndex)
		if err != nil {
			return nil, err
		}

		value, err := Coerce(field, raw)
		if err != nil {
			return nil, err
		}

		if _, dup := values[field.Name]; dup {
			m.logger.Debug("overwriting earlier mapping", "field", field.Name, "item", itemIndex)
		}
		values[field.Name] = value
	}

	return values, nil
}

// ValidationResult is the outcome of a structural pre-check
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Errors  []string `json:"errors"`
	Missing []string `json:"missing,omitempty"`
}

// ValidateMappings checks that every mapping targets a field present in
// the inventory. Unlike MapFieldsToValues it never fails: every problem is
// collected so the caller can report them all at once.
func ValidateMappings(mappings []FieldMapping, inventory []FieldInfo) ValidationResult {
	fields := NewInventory(inventory)
	result := ValidationResult{Valid: true, Errors: []string{}}

	var available string
	for _, mapping := range mappings {
		if _, ok := fields[mapping.PDFFieldName]; ok {
			continue
		}
		if available == "" {
			available = describeAvailable(inventory)
		}
		result.Valid = false
		result.Missing = append(result.Missing, mapping.PDFFieldName)
		result.Errors = append(result.Errors,
			fmt.Sprintf("field %q not found in PDF. Available fields: %s", mapping.PDFFieldName, available))
	}

	return result
}

// SkippedFields returns the mapped field names absent from inventory, in
// declaration order and without duplicates.
func SkippedFields(mappings []FieldMapping, inventory []FieldInfo) []string {
	fields := NewInventory(inventory)
	seen := make(map[string]bool)
	var skipped []string
	for _, mapping := range mappings {
		if _, ok := fields[mapping.PDFFieldName]; ok || seen[mapping.PDFFieldName] {
			continue
		}
		seen[mapping.PDFFieldName] = true
		skipped = append(skipped, mapping.PDFFieldName)
	}
	return skipped
}

func describeAvailable(inventory []FieldInfo) string {
	if len(inventory) == 0 {
		return "(none)"
	}

	names := make([]string, 0, len(inventory))
	for _, f := range inventory {
		names = append(names, f.Name)
	}
	sort.Strings(names)

	if len(names) <= maxListedFields {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s (and %d more)", strings.Join(names[:maxListedFields], ", "), len(names)-maxListedFields)
}
