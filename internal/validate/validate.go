// Package validate performs static checks on a loaded catalog, suitable as
// a CI gate for the version-controlled file.
package validate

import (
	"fmt"
	"strings"

	"github.com/rbxkit/rbxsync/internal/catalog"
)

// Severity classifies validation issues.
type Severity int

const (
	SeverityError   Severity = iota // Blocks the command
	SeverityWarning                 // Reported but non-blocking
)

// Issue represents a single validation problem.
type Issue struct {
	Severity Severity
	Product  string
	Field    string
	Message  string
}

func (i Issue) String() string {
	sev := "ERROR"
	if i.Severity == SeverityWarning {
		sev = "WARN"
	}
	return fmt.Sprintf("[%s] %s: %s — %s", sev, i.Product, i.Field, i.Message)
}

// Result holds all validation issues.
type Result struct {
	Issues []Issue
}

// HasErrors reports whether any blocking issue exists.
func (r *Result) HasErrors() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (r *Result) add(sev Severity, product, field, message string) {
	r.Issues = append(r.Issues, Issue{Severity: sev, Product: product, Field: field, Message: message})
}

// Catalog checks metadata and every product of both kinds.
func Catalog(cat *catalog.Catalog) *Result {
	result := &Result{}

	if cat.Metadata.UniverseID == 0 {
		result.add(SeverityError, "metadata", "universe-id", "missing or zero")
	}
	if _, err := catalog.CompileFilters(cat.Metadata.NameFilters); err != nil {
		result.add(SeverityError, "metadata", "name-filters", err.Error())
	}
	if cat.Metadata.DiscountPrefix != nil && !strings.Contains(*cat.Metadata.DiscountPrefix, "{}") {
		result.add(SeverityWarning, "metadata", "discount-prefix", "template has no {} slot for the discount percentage")
	}

	validateCollection(result, "gamepasses", cat.Gamepasses)
	validateCollection(result, "products", cat.Products)
	return result
}

func validateCollection(result *Result, section string, products map[string]*catalog.Product) {
	seenIDs := make(map[uint64]string)

	for key, p := range products {
		name := section + "." + key

		if strings.TrimSpace(p.Name) == "" {
			result.add(SeverityError, name, "name", "must not be empty")
		}
		if p.Price < 0 {
			result.add(SeverityError, name, "price", fmt.Sprintf("must be non-negative, got %d", p.Price))
		}
		if p.Discount != nil && *p.Discount > 100 {
			result.add(SeverityError, name, "discount", fmt.Sprintf("must be at most 100, got %d", *p.Discount))
		}
		if p.Regional != nil && !*p.Regional {
			result.add(SeverityWarning, name, "regional-pricing", "explicit false should be omitted; a merge will normalize it")
		}
		if p.Description != nil && catalog.IsCensored(*p.Description) && *p.Description != "" {
			result.add(SeverityWarning, name, "description", "looks redacted by the platform")
		}

		if p.ID != nil {
			if other, dup := seenIDs[*p.ID]; dup {
				result.add(SeverityError, name, "id", fmt.Sprintf("duplicate remote id %d, also used by %s", *p.ID, other))
			}
			seenIDs[*p.ID] = name
		}
	}
}

// FormatResult renders all issues, errors first.
func FormatResult(r *Result) string {
	if len(r.Issues) == 0 {
		return "Catalog OK"
	}

	var b strings.Builder
	for _, sev := range []Severity{SeverityError, SeverityWarning} {
		for _, i := range r.Issues {
			if i.Severity == sev {
				b.WriteString(i.String())
				b.WriteString("\n")
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
