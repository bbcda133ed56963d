package catalog

import "math"

// Kind distinguishes the two monetization record kinds the platform exposes.
// Developer products sort before game passes everywhere ordering matters.
type Kind int

const (
	KindDevProduct Kind = iota
	KindGamePass
)

func (k Kind) String() string {
	switch k {
	case KindDevProduct:
		return "DevProduct"
	case KindGamePass:
		return "GamePass"
	default:
		return "Unknown"
	}
}

// Product is a single monetizable record in the local catalog.
// A nil ID means the product has not been created remotely yet.
type Product struct {
	ID          *uint64 `yaml:"id,omitempty"`
	Name        string  `yaml:"name"`
	Prefix      *string `yaml:"prefix,omitempty"`
	Description *string `yaml:"description,omitempty"`
	Active      bool    `yaml:"active"`
	Discount    *uint8  `yaml:"discount,omitempty"`
	Price       int64   `yaml:"price"`
	Regional    *bool   `yaml:"regional-pricing,omitempty"`
}

// Metadata holds catalog-wide settings.
type Metadata struct {
	UniverseID     uint64   `yaml:"universe-id"`
	DiscountPrefix *string  `yaml:"discount-prefix,omitempty"`
	LuauFile       *string  `yaml:"luau-file,omitempty"`
	NameFilters    []string `yaml:"name-filters,omitempty"`
}

// Catalog is the full local state: metadata plus the two keyed collections.
type Catalog struct {
	Metadata   Metadata            `yaml:"metadata"`
	Gamepasses map[string]*Product `yaml:"gamepasses"`
	Products   map[string]*Product `yaml:"products"`
}

// HasDiscount reports whether the product carries an active discount.
func (p *Product) HasDiscount() bool {
	return p.Discount != nil && *p.Discount > 0
}

// EffectivePrice returns the discount-adjusted price submitted to the
// platform and written to the Luau export.
func (p *Product) EffectivePrice() uint64 {
	if p.HasDiscount() {
		return uint64(math.Floor(float64(p.Price) * (1.0 - float64(*p.Discount)/100.0)))
	}
	return uint64(p.Price)
}

// Title returns the display title. A discounted product keeps its raw name;
// the discount prefix is applied separately just before upload.
func (p *Product) Title() string {
	if p.HasDiscount() {
		return p.Name
	}
	if p.Prefix != nil {
		return *p.Prefix + " " + p.Name
	}
	return p.Name
}

// DescriptionOrEmpty returns the description, defaulting to "".
func (p *Product) DescriptionOrEmpty() string {
	if p.Description == nil {
		return ""
	}
	return *p.Description
}

// RegionalEnabled returns the regional-pricing flag defaulted to false.
func (p *Product) RegionalEnabled() bool {
	return p.Regional != nil && *p.Regional
}

// Normalize folds degenerate field states into their canonical form:
// an explicit regional-pricing of false is stored as absent.
func (p *Product) Normalize() {
	if p.Regional != nil && !*p.Regional {
		p.Regional = nil
	}
}

// Clone returns a deep copy of the product.
func (p *Product) Clone() *Product {
	c := *p
	c.ID = clonePtr(p.ID)
	c.Prefix = clonePtr(p.Prefix)
	c.Description = clonePtr(p.Description)
	c.Discount = clonePtr(p.Discount)
	c.Regional = clonePtr(p.Regional)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ByKind returns the collection for the given record kind.
func (c *Catalog) ByKind(k Kind) map[string]*Product {
	if k == KindGamePass {
		return c.Gamepasses
	}
	return c.Products
}

// FindByID returns the catalog entry carrying the given remote id, if any.
func (c *Catalog) FindByID(k Kind, id uint64) (string, *Product, bool) {
	for key, p := range c.ByKind(k) {
		if p.ID != nil && *p.ID == id {
			return key, p, true
		}
	}
	return "", nil, false
}

// Len returns the total number of products across both collections.
func (c *Catalog) Len() int {
	return len(c.Gamepasses) + len(c.Products)
}
