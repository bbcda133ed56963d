package catalog

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// defaultFilters strip decoration that must not affect product identity:
// our own discount prefix, bracketed tags, and exotic symbols.
var defaultFilters = []*regexp.Regexp{
	regexp.MustCompile(`💲.*?% OFF💲`),
	regexp.MustCompile(`\[.*?\]`),
	regexp.MustCompile(`[^a-zA-Z0-9!?,.\-\s]`),
}

// CompileFilters compiles the user-configured name filter patterns.
func CompileFilters(patterns []string) ([]*regexp.Regexp, error) {
	filters := make([]*regexp.Regexp, 0, len(patterns))
	for _, pat := range patterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("invalid name filter %q: %w", pat, err)
		}
		filters = append(filters, re)
	}
	return filters, nil
}

// Filters returns the compiled name filters, falling back to the built-in
// defaults when none are configured. Load rejects invalid patterns, so a
// compile failure here only happens for a hand-built Metadata and falls
// back to the defaults as well.
func (m *Metadata) Filters() []*regexp.Regexp {
	if len(m.NameFilters) > 0 {
		if filters, err := CompileFilters(m.NameFilters); err == nil {
			return filters
		}
	}
	return defaultFilters
}

// Canonicalize applies the ordered filter list to a product name, replacing
// every match with a single space, then collapses whitespace runs and trims.
// The result is stable under repeated application.
func Canonicalize(name string, filters []*regexp.Regexp) string {
	out := name
	for _, re := range filters {
		out = re.ReplaceAllString(out, " ")
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(out, " "))
}

// IsCensored reports whether a description looks like platform-side content
// redaction: nothing but the '#' placeholder and whitespace. An empty string
// counts, so a blanked remote description never clobbers a local one.
func IsCensored(s string) bool {
	for _, r := range s {
		if r != '#' && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// Slugify derives a catalog key from a canonical name: lowercase
// alphanumerics with whitespace runs turned into single hyphens.
func Slugify(name string) string {
	lower := strings.ToLower(name)
	var b strings.Builder
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(b.String()), "-")
}
