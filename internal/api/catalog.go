package api

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/faishion/tryon-client/internal/models"
)

// CatalogClient fetches pages of the product catalog.
type CatalogClient struct {
	c *client
}

// NewCatalogClient creates a catalog client rooted at baseURL. A timeout of
// zero uses constants.FetchTimeout.
func NewCatalogClient(httpClient *nethttp.Client, baseURL string, timeout time.Duration) (*CatalogClient, error) {
	c, err := newClient(httpClient, baseURL, timeout, "catalog")
	if err != nil {
		return nil, err
	}
	return &CatalogClient{c: c}, nil
}

// Fetch requests one page of products matching q.
//
//	GET /products?page=&limit=[&name=][&category=]
//
// name is omitted for an empty search and category for "All".
func (cc *CatalogClient) Fetch(ctx context.Context, q models.Query) (models.Page[models.Product], error) {
	q = q.Normalize()
	if err := validateQuery(q); err != nil {
		return models.Page[models.Product]{}, err
	}

	params := pageParams(q)
	if q.SearchText != "" {
		params.Set("name", q.SearchText)
	}
	if q.HasCategory() {
		params.Set("category", q.Category)
	}

	body, err := cc.c.get(ctx, "/products", params)
	if err != nil {
		return models.Page[models.Product]{}, err
	}

	rawURL := cc.c.baseURL + "/products?" + params.Encode()
	env, err := decodeEnvelope(body, "products", false)
	if err != nil {
		return models.Page[models.Product]{}, parseError(rawURL, err)
	}

	page := models.Page[models.Product]{
		Items:   []models.Product{},
		HasNext: env.hasNext,
	}
	if env.items != nil {
		if err := json.Unmarshal(env.items, &page.Items); err != nil {
			return models.Page[models.Product]{}, parseError(rawURL, err)
		}
	}

	cc.c.logger.Debug().
		Int("page", q.Page).
		Int("items", len(page.Items)).
		Bool("has_next", page.HasNext).
		Msg("catalog page")

	return page, nil
}
