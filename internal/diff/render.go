package diff

import (
	"fmt"
	"strings"
)

// Render formats a single product diff for terminal output.
func Render(d *ProductDiff) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %q (id %d)\n", d.Kind, d.Name, d.ID)

	for _, f := range d.Fields {
		switch f.State {
		case Changed:
			fmt.Fprintf(&b, "  ~ %s: %v -> %v\n", f.Field, f.Old, f.New)
		case Created:
			fmt.Fprintf(&b, "  + %s: %v\n", f.Field, f.New)
		default:
			fmt.Fprintf(&b, "    %s: %v\n", f.Field, f.Old)
		}
	}
	return b.String()
}

// RenderSummary formats a diff set with a trailing count line.
func RenderSummary(diffs []ProductDiff) string {
	if len(diffs) == 0 {
		return "No differences between local catalog and remote state.\n"
	}

	var b strings.Builder
	for i := range diffs {
		b.WriteString(Render(&diffs[i]))
	}
	fmt.Fprintf(&b, "\n%d product(s) differ\n", len(diffs))
	return b.String()
}
