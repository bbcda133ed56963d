// Package diff computes field-level differences between a local product and
// its remote counterpart.
package diff

import (
	"sort"

	"github.com/rbxkit/rbxsync/internal/catalog"
)

// Field identifies one of the compared product fields. The declaration
// order is the presentation order.
type Field int

const (
	FieldTitle Field = iota
	FieldDescription
	FieldPrice
	FieldRegionalPricing
	FieldActive
)

func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldDescription:
		return "description"
	case FieldPrice:
		return "price"
	case FieldRegionalPricing:
		return "regional-pricing"
	case FieldActive:
		return "active"
	default:
		return "unknown"
	}
}

// State tags a field comparison.
type State int

const (
	Unchanged State = iota
	Changed
	Created
)

// FieldDiff is a single field comparison carrying the remote (old) and
// local-effective (new) values.
type FieldDiff struct {
	Field Field
	State State
	Old   any
	New   any
}

// ProductDiff is the ordered field comparison for one matched product.
type ProductDiff struct {
	Kind   catalog.Kind
	Name   string
	ID     uint64
	Fields []FieldDiff
}

// HasChanges reports whether any field differs.
func (d *ProductDiff) HasChanges() bool {
	for _, f := range d.Fields {
		if f.State != Unchanged {
			return true
		}
	}
	return false
}

// Confirmed is a (kind, remote id) pair the operator accepted for upload.
type Confirmed struct {
	Kind catalog.Kind
	ID   uint64
}

// Compute compares a local product against the matching remote record over
// the fixed field set {title, description, price, regional-pricing, active}.
// Local values are effective ones (discount-adjusted price, prefixed title);
// remote values are compared raw, with a missing description treated as
// empty. Returns nil when every field matches.
func Compute(kind catalog.Kind, local, remote *catalog.Product) *ProductDiff {
	fields := []FieldDiff{
		compare(FieldTitle, remote.Name, local.Title()),
		compare(FieldDescription, remote.DescriptionOrEmpty(), local.DescriptionOrEmpty()),
		compare(FieldPrice, uint64(remote.Price), local.EffectivePrice()),
		compare(FieldRegionalPricing, remote.RegionalEnabled(), local.RegionalEnabled()),
		compare(FieldActive, remote.Active, local.Active),
	}

	d := &ProductDiff{
		Kind:   kind,
		Name:   local.Name,
		ID:     idOrZero(local),
		Fields: fields,
	}
	if !d.HasChanges() {
		return nil
	}
	return d
}

// ForCreation builds the presentation diff for a product that does not
// exist remotely: every field is Created and carries only the new value.
func ForCreation(kind catalog.Kind, local *catalog.Product) *ProductDiff {
	return &ProductDiff{
		Kind: kind,
		Name: local.Name,
		ID:   idOrZero(local),
		Fields: []FieldDiff{
			{Field: FieldTitle, State: Created, New: local.Title()},
			{Field: FieldDescription, State: Created, New: local.DescriptionOrEmpty()},
			{Field: FieldPrice, State: Created, New: local.EffectivePrice()},
			{Field: FieldRegionalPricing, State: Created, New: local.RegionalEnabled()},
			{Field: FieldActive, State: Created, New: local.Active},
		},
	}
}

// Sort orders diffs deterministically: one-time products before passes,
// then ascending remote id.
func Sort(diffs []ProductDiff) {
	sort.SliceStable(diffs, func(i, j int) bool {
		if diffs[i].Kind != diffs[j].Kind {
			return diffs[i].Kind < diffs[j].Kind
		}
		return diffs[i].ID < diffs[j].ID
	})
}

func compare[T comparable](f Field, old, new T) FieldDiff {
	state := Unchanged
	if old != new {
		state = Changed
	}
	return FieldDiff{Field: f, State: state, Old: old, New: new}
}

func idOrZero(p *catalog.Product) uint64 {
	if p.ID == nil {
		return 0
	}
	return *p.ID
}
