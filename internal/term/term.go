// Package term is the plain-terminal confirmation collaborator. It consumes
// only diff types; the reconciliation core never depends on it.
package term

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rbxkit/rbxsync/internal/diff"
)

// Prompter collects yes/no answers and diff selections from a terminal.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// New creates a Prompter on stdin/stdout.
func New() *Prompter {
	return NewWith(os.Stdin, os.Stdout)
}

// NewWith creates a Prompter on the given streams.
func NewWith(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Confirm asks a yes/no question, defaulting to no.
func (p *Prompter) Confirm(prompt string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N]: ", prompt)

	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// SelectDiffs shows each pending change and asks whether to include it.
func (p *Prompter) SelectDiffs(diffs []diff.ProductDiff) ([]diff.Confirmed, error) {
	var confirmed []diff.Confirmed

	fmt.Fprintf(p.out, "%d product(s) differ from remote state:\n\n", len(diffs))
	for i := range diffs {
		fmt.Fprint(p.out, diff.Render(&diffs[i]))

		ok, err := p.Confirm("Include this change?")
		if err != nil {
			return nil, err
		}
		if ok {
			confirmed = append(confirmed, diff.Confirmed{Kind: diffs[i].Kind, ID: diffs[i].ID})
		}
		fmt.Fprintln(p.out)
	}

	fmt.Fprintf(p.out, "%d of %d change(s) selected\n", len(confirmed), len(diffs))
	return confirmed, nil
}
