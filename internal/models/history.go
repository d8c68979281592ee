package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoryItem is one try-on record.
type HistoryItem struct {
	RecordID       string
	ResultImageURL string
	Timestamp      time.Time // zero when the backend sent none
	Product        HistoryProduct
}

// HistoryProduct is the product a try-on was made with.
type HistoryProduct struct {
	BrandName   string
	ProductName string
	Price       decimal.Decimal
	Currency    string
}

// HistoryItemID is the identity function for history records.
func HistoryItemID(h HistoryItem) string { return h.RecordID }

// SortTime implements sortview.Sortable.
func (h HistoryItem) SortTime() time.Time { return h.Timestamp }

// SortPrice implements sortview.Sortable.
func (h HistoryItem) SortPrice() decimal.Decimal { return h.Product.Price }

// SortBrand implements sortview.Sortable.
func (h HistoryItem) SortBrand() string { return h.Product.BrandName }
