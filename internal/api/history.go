package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/faishion/tryon-client/internal/models"
)

// Defaults applied to history rows with missing product info.
const (
	UnknownBrand    = "Unknown Brand"
	UnknownProduct  = "Unknown Product"
	DefaultCurrency = "$"
)

// ErrMissingUserID is returned by NewHistoryClient when no user id is given.
var ErrMissingUserID = errors.New("user id is required")

// HistoryClient fetches pages of one user's try-on history.
type HistoryClient struct {
	c      *client
	userID string
}

// NewHistoryClient creates a history client for userID.
func NewHistoryClient(httpClient *nethttp.Client, baseURL, userID string, timeout time.Duration) (*HistoryClient, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUserID
	}
	c, err := newClient(httpClient, baseURL, timeout, "history")
	if err != nil {
		return nil, err
	}
	return &HistoryClient{c: c, userID: userID}, nil
}

// UserID returns the user whose history this client reads.
func (hc *HistoryClient) UserID() string { return hc.userID }

// historyRecord is the wire shape of one history row.
type historyRecord struct {
	ProductInfo *struct {
		ProductURL  string          `json:"product_url"`
		BrandName   string          `json:"brand_name"`
		ProductName string          `json:"product_name"`
		Price       json.RawMessage `json:"price"`
		Currency    string          `json:"currency"`
	} `json:"productInfo"`
	TryOnImages     []string `json:"tryOnImages"`
	LatestTryOnDate string   `json:"latestTryOnDate"`
}

// Fetch requests one page of history.
//
//	GET /history?user_id=&page=&limit=
//
// The items are read from "data", or from the body itself when it is a bare
// array.
func (hc *HistoryClient) Fetch(ctx context.Context, q models.Query) (models.Page[models.HistoryItem], error) {
	q = q.Normalize()
	if err := validateQuery(q); err != nil {
		return models.Page[models.HistoryItem]{}, err
	}

	params := pageParams(q)
	params.Set("user_id", hc.userID)

	body, err := hc.c.get(ctx, "/history", params)
	if err != nil {
		return models.Page[models.HistoryItem]{}, err
	}

	rawURL := hc.c.baseURL + "/history?" + params.Encode()
	env, err := decodeEnvelope(body, "data", true)
	if err != nil {
		return models.Page[models.HistoryItem]{}, parseError(rawURL, err)
	}

	var records []historyRecord
	if env.items != nil {
		if err := json.Unmarshal(env.items, &records); err != nil {
			return models.Page[models.HistoryItem]{}, parseError(rawURL, err)
		}
	}

	offset := (q.Page - 1) * q.PageSize
	page := models.Page[models.HistoryItem]{
		Items:   make([]models.HistoryItem, 0, len(records)),
		HasNext: env.hasNext,
	}
	for i, rec := range records {
		page.Items = append(page.Items, rec.toItem(offset+i))
	}

	hc.c.logger.Debug().
		Int("page", q.Page).
		Int("items", len(page.Items)).
		Bool("has_next", page.HasNext).
		Msg("history page")

	return page, nil
}

// toItem applies the display fallbacks. index is the row's position across
// all pages and keys rows without a product URL.
func (r historyRecord) toItem(index int) models.HistoryItem {
	item := models.HistoryItem{
		RecordID:  fmt.Sprintf("item-%d", index),
		Timestamp: parseTimestamp(r.LatestTryOnDate),
		Product: models.HistoryProduct{
			BrandName:   UnknownBrand,
			ProductName: UnknownProduct,
			Price:       decimal.Zero,
			Currency:    DefaultCurrency,
		},
	}
	if len(r.TryOnImages) > 0 {
		item.ResultImageURL = r.TryOnImages[0]
	}

	info := r.ProductInfo
	if info == nil {
		return item
	}
	if info.ProductURL != "" {
		item.RecordID = info.ProductURL
	}
	if info.BrandName != "" {
		item.Product.BrandName = info.BrandName
	}
	if info.ProductName != "" {
		item.Product.ProductName = info.ProductName
	}
	if info.Currency != "" {
		item.Product.Currency = info.Currency
	}
	item.Product.Price = parseRawPrice(info.Price)
	return item
}

// parseRawPrice accepts a JSON number or a display string; anything else is zero.
func parseRawPrice(raw json.RawMessage) decimal.Decimal {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return decimal.Zero
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero
		}
		return models.ParsePrice(s)
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Zero
	}
	return d
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
