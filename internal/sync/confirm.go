package sync

import "github.com/rbxkit/rbxsync/internal/diff"

// Confirmer collects human approval for upload decisions. The reconciliation
// core only sees this interface; the terminal implementation lives in
// internal/term.
type Confirmer interface {
	// Confirm asks a single yes/no question.
	Confirm(prompt string) (bool, error)
	// SelectDiffs presents a diff set and returns the subset the operator
	// accepted for upload.
	SelectDiffs(diffs []diff.ProductDiff) ([]diff.Confirmed, error)
}

// AutoConfirmer approves every prompt and selects every diff. Wired behind
// the --yes flag.
type AutoConfirmer struct{}

func (AutoConfirmer) Confirm(string) (bool, error) { return true, nil }

func (AutoConfirmer) SelectDiffs(diffs []diff.ProductDiff) ([]diff.Confirmed, error) {
	confirmed := make([]diff.Confirmed, 0, len(diffs))
	for _, d := range diffs {
		confirmed = append(confirmed, diff.Confirmed{Kind: d.Kind, ID: d.ID})
	}
	return confirmed, nil
}
