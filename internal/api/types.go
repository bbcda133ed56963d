package api

import (
	"strconv"

	"github.com/rbxkit/rbxsync/internal/catalog"
)

// Feature flag the platform uses to signal regional pricing on a record.
const regionalPricingFeature = "RegionalPricing"

// PriceInformation is the nested pricing block shared by both record kinds.
type PriceInformation struct {
	DefaultPriceInRobux uint64   `json:"defaultPriceInRobux"`
	EnabledFeatures     []string `json:"enabledFeatures,omitempty"`
}

// GamePass is the platform-native shape of a pass.
type GamePass struct {
	GamePassID       uint64            `json:"gamePassId"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	IsForSale        bool              `json:"isForSale"`
	IconAssetID      uint64            `json:"iconAssetId"`
	CreatedTimestamp string            `json:"createdTimestamp"`
	UpdatedTimestamp string            `json:"updatedTimestamp"`
	PriceInformation *PriceInformation `json:"priceInformation,omitempty"`
}

// DevProduct is the platform-native shape of a one-time product.
type DevProduct struct {
	ProductID        uint64            `json:"productId"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	UniverseID       uint64            `json:"universeId"`
	IsForSale        bool              `json:"isForSale"`
	StorePageEnabled bool              `json:"storePageEnabled"`
	PriceInformation *PriceInformation `json:"priceInformation,omitempty"`
	IsImmutable      bool              `json:"isImmutable"`
	CreatedTimestamp string            `json:"createdTimestamp"`
	UpdatedTimestamp string            `json:"updatedTimestamp"`
}

type gamePassPage struct {
	GamePasses    []GamePass `json:"gamePasses"`
	NextPageToken string     `json:"nextPageToken"`
}

type devProductPage struct {
	DeveloperProducts []DevProduct `json:"developerProducts"`
	NextPageToken     string       `json:"nextPageToken"`
}

// Remote is a fetched record of either kind, already converted to the
// catalog representation.
type Remote struct {
	Kind    catalog.Kind
	Product *catalog.Product
}

// Product converts the pass to the catalog representation. A missing
// priceInformation block maps to price 0; a missing remote description maps
// to the empty string rather than an error.
func (gp *GamePass) Product() *catalog.Product {
	return remoteProduct(gp.GamePassID, gp.Name, gp.Description, gp.IsForSale, gp.PriceInformation)
}

// Product converts the one-time product to the catalog representation.
func (dp *DevProduct) Product() *catalog.Product {
	return remoteProduct(dp.ProductID, dp.Name, dp.Description, dp.IsForSale, dp.PriceInformation)
}

func remoteProduct(id uint64, name, description string, forSale bool, pi *PriceInformation) *catalog.Product {
	p := &catalog.Product{
		ID:          &id,
		Name:        name,
		Description: &description,
		Active:      forSale,
	}
	if pi != nil {
		p.Price = int64(pi.DefaultPriceInRobux)
		if pi.EnabledFeatures != nil {
			regional := false
			for _, f := range pi.EnabledFeatures {
				if f == regionalPricingFeature {
					regional = true
					break
				}
			}
			p.Regional = &regional
		}
	}
	return p
}

// UpdateRequest is the multipart form payload for create and update calls.
type UpdateRequest struct {
	Name            string
	Description     *string
	IsForSale       *bool
	Price           *uint64
	RegionalPricing *bool
}

// NewUpdateRequest builds the payload from a local product using its
// effective (discount-adjusted) values.
func NewUpdateRequest(p *catalog.Product) UpdateRequest {
	forSale := p.Active
	price := p.EffectivePrice()
	return UpdateRequest{
		Name:            p.Title(),
		Description:     p.Description,
		IsForSale:       &forSale,
		Price:           &price,
		RegionalPricing: p.Regional,
	}
}

// fields returns the form fields in submission order. A zero price is
// omitted, matching the platform's expectation for free records.
func (r *UpdateRequest) fields() [][2]string {
	fields := [][2]string{{"name", r.Name}}
	if r.Description != nil {
		fields = append(fields, [2]string{"description", *r.Description})
	}
	if r.IsForSale != nil {
		fields = append(fields, [2]string{"isForSale", strconv.FormatBool(*r.IsForSale)})
	}
	if r.Price != nil && *r.Price > 0 {
		fields = append(fields, [2]string{"price", strconv.FormatUint(*r.Price, 10)})
	}
	if r.RegionalPricing != nil {
		fields = append(fields, [2]string{"isRegionalPricingEnabled", strconv.FormatBool(*r.RegionalPricing)})
	}
	return fields
}
