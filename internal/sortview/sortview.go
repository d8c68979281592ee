// Package sortview provides a stable, non-mutating sorted projection of a
// loaded list.
package sortview

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Sortable is implemented by items that can be projected by Sort.
type Sortable interface {
	SortTime() time.Time
	SortPrice() decimal.Decimal
	SortBrand() string
}

// Key selects the projection order.
type Key int

const (
	RecencyDescending Key = iota
	PriceAscending
	PriceDescending
	BrandNameAscending
)

// Keys lists every key in menu order.
var Keys = []Key{RecencyDescending, BrandNameAscending, PriceAscending, PriceDescending}

// String returns the CLI name of the key.
func (k Key) String() string {
	switch k {
	case PriceAscending:
		return "price-asc"
	case PriceDescending:
		return "price-desc"
	case BrandNameAscending:
		return "brand"
	default:
		return "recent"
	}
}

// Label returns the menu label shown to users.
func (k Key) Label() string {
	switch k {
	case PriceAscending:
		return "Price: Low to High"
	case PriceDescending:
		return "Price: High to Low"
	case BrandNameAscending:
		return "Brand Name"
	default:
		return "Most Recent"
	}
}

// ParseKey accepts a CLI name or a menu label, case-insensitively. Unknown
// input returns RecencyDescending with an error.
func ParseKey(s string) (Key, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if norm == "" {
		return RecencyDescending, nil
	}
	for _, k := range Keys {
		if norm == k.String() || norm == strings.ToLower(k.Label()) {
			return k, nil
		}
	}
	return RecencyDescending, fmt.Errorf("unknown sort key %q (want recent, price-asc, price-desc or brand)", s)
}

// Sort returns a new slice holding items in key order. Equal elements keep
// their relative order and items is never modified.
func Sort[T Sortable](items []T, key Key) []T {
	out := make([]T, len(items))
	copy(out, items)

	var less func(a, b T) bool
	switch key {
	case PriceAscending:
		less = func(a, b T) bool { return a.SortPrice().LessThan(b.SortPrice()) }
	case PriceDescending:
		less = func(a, b T) bool { return a.SortPrice().GreaterThan(b.SortPrice()) }
	case BrandNameAscending:
		less = func(a, b T) bool { return strings.ToLower(a.SortBrand()) < strings.ToLower(b.SortBrand()) }
	default:
		less = func(a, b T) bool { return a.SortTime().After(b.SortTime()) }
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
