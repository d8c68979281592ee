// Package models defines the data types shared by the fetch clients, the
// collection loader and the CLI.
package models

import (
	"strings"

	"github.com/faishion/tryon-client/internal/constants"
)

// Query describes one page request against a collection endpoint.
type Query struct {
	SearchText string
	Category   string // constants.AllCategories means no category filter
	Page       int    // 1-based
	PageSize   int
}

// NewQuery returns the first-page query with default filters.
func NewQuery(pageSize int) Query {
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}
	return Query{
		Category: constants.AllCategories,
		Page:     1,
		PageSize: pageSize,
	}
}

// Normalize returns q with an empty category mapped to "All" and the
// search text trimmed.
func (q Query) Normalize() Query {
	q.SearchText = strings.TrimSpace(q.SearchText)
	if q.Category == "" {
		q.Category = constants.AllCategories
	}
	return q
}

// HasCategory reports whether q filters by a specific category.
func (q Query) HasCategory() bool {
	return q.Category != "" && !strings.EqualFold(q.Category, constants.AllCategories)
}

// Equivalent reports whether a and b select the same collection, ignoring
// the page number.
func Equivalent(a, b Query) bool {
	a, b = a.Normalize(), b.Normalize()
	return a.SearchText == b.SearchText &&
		a.Category == b.Category &&
		a.PageSize == b.PageSize
}

// Page is one page of results.
type Page[T any] struct {
	Items   []T
	HasNext bool
}
