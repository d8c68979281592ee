package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is one catalog entry. Prices are kept as the display strings the
// catalog returns; Price parses them.
type Product struct {
	Name     string `json:"name"`
	NewPrice string `json:"newPrice"`
	OgPrice  string `json:"ogPrice,omitempty"`
	Currency string `json:"currency"`
	Image    string `json:"image"`
	Brand    string `json:"brand"`
	URL      string `json:"url"`
	IsOnSale bool   `json:"isOnSale,omitempty"`
}

// ProductID is the identity function for products: the product page URL.
func ProductID(p Product) string { return p.URL }

// Price parses NewPrice, tolerating a leading currency symbol and thousands
// separators. Unparseable prices are zero.
func (p Product) Price() decimal.Decimal {
	return ParsePrice(p.NewPrice)
}

// OriginalPrice parses OgPrice the same way as Price.
func (p Product) OriginalPrice() decimal.Decimal {
	return ParsePrice(p.OgPrice)
}

// SortTime implements sortview.Sortable. Products carry no timestamp.
func (p Product) SortTime() time.Time { return time.Time{} }

// SortPrice implements sortview.Sortable.
func (p Product) SortPrice() decimal.Decimal { return p.Price() }

// SortBrand implements sortview.Sortable.
func (p Product) SortBrand() string { return p.Brand }

// ParsePrice converts a display price such as "$1,299.00" to a decimal.
func ParsePrice(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9') && r != '-' && r != '.'
	})
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
