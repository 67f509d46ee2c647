package kroger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/basketcase/pkg/types"
)

// StoreRecord is one location returned by /locations.
type StoreRecord struct {
	LocationID  string                     `json:"locationId"`
	Chain       string                     `json:"chain"`
	Name        string                     `json:"name"`
	Address     Address                    `json:"address"`
	Geolocation Geolocation                `json:"geolocation"`
	Hours       map[string]json.RawMessage `json:"hours"`
}

// Address mirrors the catalog's postal address payload.
type Address struct {
	AddressLine1 string `json:"addressLine1"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zipCode"`
}

// Line renders the address on one line, skipping empty parts.
func (a Address) Line() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{a.AddressLine1, a.City, strings.TrimSpace(a.State + " " + a.ZipCode)} {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, strings.TrimSpace(part))
		}
	}
	return strings.Join(parts, ", ")
}

type Geolocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type dayHours struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Open24 bool   `json:"open24"`
}

var weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// StoreHours flattens the per-day hours object into "open-close" windows. Days the catalog
// does not report are omitted.
func (s StoreRecord) StoreHours() types.StoreHours {
	hours := types.StoreHours{}
	for _, day := range weekdays {
		raw, ok := s.Hours[day]
		if !ok {
			continue
		}
		var dh dayHours
		if err := json.Unmarshal(raw, &dh); err != nil {
			continue
		}
		switch {
		case dh.Open24:
			hours[day] = "open 24 hours"
		case dh.Open != "" && dh.Close != "":
			hours[day] = fmt.Sprintf("%s-%s", dh.Open, dh.Close)
		}
	}
	return hours
}

// ProductRecord is one product returned by /products.
type ProductRecord struct {
	ProductID   string   `json:"productId"`
	UPC         string   `json:"upc"`
	Brand       string   `json:"brand"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
	Images      []Image  `json:"images"`
	Items       []Item   `json:"items"`
}

// Category returns the first catalog category, or "".
func (p ProductRecord) Category() string {
	for _, c := range p.Categories {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// Size returns the package size of the first item, or "".
func (p ProductRecord) Size() string {
	if len(p.Items) == 0 {
		return ""
	}
	return p.Items[0].Size
}

// ImageURL picks the featured image (or the first one) at the largest size listed first.
func (p ProductRecord) ImageURL() string {
	var chosen *Image
	for i := range p.Images {
		if p.Images[i].Featured {
			chosen = &p.Images[i]
			break
		}
	}
	if chosen == nil && len(p.Images) > 0 {
		chosen = &p.Images[0]
	}
	if chosen == nil {
		return ""
	}
	for _, size := range chosen.Sizes {
		if size.URL != "" {
			return size.URL
		}
	}
	return ""
}

type Image struct {
	Perspective string      `json:"perspective"`
	Featured    bool        `json:"featured"`
	Sizes       []ImageSize `json:"sizes"`
}

type ImageSize struct {
	Size string `json:"size"`
	URL  string `json:"url"`
}

// Item is one purchasable variant of a product at the requested location.
type Item struct {
	ItemID string `json:"itemId"`
	Size   string `json:"size"`
	Price  *Price `json:"price,omitempty"`
}

// Price carries the regular shelf price and the optional promotional price.
type Price struct {
	Regular decimal.NullDecimal `json:"regular"`
	Promo   decimal.NullDecimal `json:"promo"`
}

// PriceRecord is the per-product answer of GetPrices.
type PriceRecord struct {
	ProductID string `json:"productId"`
	Items     []Item `json:"items"`
}

// UsablePrice returns the regular and promo price of the first item. ok is false when the
// record has no items, no price, or a non-positive regular price. A zero promo is treated
// as no promo.
func (r PriceRecord) UsablePrice() (regular decimal.Decimal, promo decimal.NullDecimal, ok bool) {
	if len(r.Items) == 0 || r.Items[0].Price == nil {
		return decimal.Zero, decimal.NullDecimal{}, false
	}
	price := r.Items[0].Price
	if !price.Regular.Valid || !price.Regular.Decimal.IsPositive() {
		return decimal.Zero, decimal.NullDecimal{}, false
	}
	promo = price.Promo
	if promo.Valid && !promo.Decimal.IsPositive() {
		promo = decimal.NullDecimal{}
	}
	return price.Regular.Decimal, promo, true
}
