// Package validation checks fill parameters and mapping documents before any
// item is processed. Every check collects all problems instead of stopping at
// the first one.
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/a3tai/mcp-pdf-filler/internal/fieldmap"
	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-filler/internal/source"
)

// Report collects the problems found by a validation pass
type Report struct {
	Problems []string `json:"problems"`
}

// Addf records a problem
func (r *Report) Addf(format string, args ...any) {
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

// OK reports whether no problem was recorded
func (r *Report) OK() bool {
	return len(r.Problems) == 0
}

// Err returns the problems as a single configuration error, or nil
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	pe := pdferrors.NewConfigError("invalid parameters: %s", strings.Join(r.Problems, "; "))
	pe.Details = map[string]any{"problems": r.Problems}
	return pe
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Source checks that spec names a known source and carries what it needs.
// Values containing expressions are only checked for presence.
func Source(r *Report, spec source.Spec) {
	switch spec.Kind {
	case source.KindUpload, source.KindPath:
		if strings.TrimSpace(spec.Path) == "" {
			r.Addf("PDF path is required for %s sources", spec.Kind)
		}
	case source.KindURL:
		if strings.TrimSpace(spec.URL) == "" {
			r.Addf("PDF URL is required for url sources")
		} else if !isExpression(spec.URL) {
			u, err := url.Parse(spec.URL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				r.Addf("PDF URL %q must be an absolute http or https URL", spec.URL)
			}
		}
	case source.KindBinary:
		if spec.BinaryProperty != "" && !identifier.MatchString(spec.BinaryProperty) {
			r.Addf("binary property %q is not a valid property name", spec.BinaryProperty)
		}
	case "":
		r.Addf("PDF source is required (upload, url or binary)")
	default:
		r.Addf("unknown PDF source %q (must be one of: upload, path, url, binary)", spec.Kind)
	}
}

// Mappings checks the mapping list on its own, without a field inventory
func Mappings(r *Report, mappings []fieldmap.FieldMapping) {
	if len(mappings) == 0 {
		r.Addf("at least one field mapping is required")
		return
	}

	for i, m := range mappings {
		if strings.TrimSpace(m.PDFFieldName) == "" {
			r.Addf("mapping %d: PDF field name is required", i+1)
			continue
		}
		switch src := m.Source.(type) {
		case fieldmap.ExpressionValue:
			if strings.TrimSpace(src.Expression) == "" {
				r.Addf("mapping %d (%s): expression is required", i+1, m.PDFFieldName)
			}
		case fieldmap.StaticValue:
		case nil:
			r.Addf("mapping %d (%s): value source is required", i+1, m.PDFFieldName)
		}
	}
}

// OutputProperty checks the name of the binary property the filled PDF is
// written to
func OutputProperty(r *Report, name string) {
	if name == "" {
		return
	}
	if !identifier.MatchString(name) {
		r.Addf("output property %q must start with a letter or underscore and contain only letters, digits and underscores", name)
	}
}

// Concurrency checks the number of items filled in parallel
func Concurrency(r *Report, n int) {
	if n < 0 {
		r.Addf("concurrency must be zero or positive, got %d", n)
	}
}

func isExpression(s string) bool {
	return strings.HasPrefix(s, "=") || strings.Contains(s, "{{")
}
