// Package services provides frontend-agnostic business logic for the try-on
// client: it builds the collection loaders the CLI drives.
package services

import (
	"fmt"
	nethttp "net/http"

	"github.com/faishion/tryon-client/internal/api"
	"github.com/faishion/tryon-client/internal/config"
	"github.com/faishion/tryon-client/internal/events"
	"github.com/faishion/tryon-client/internal/loader"
	"github.com/faishion/tryon-client/internal/logging"
	"github.com/faishion/tryon-client/internal/models"
)

// CatalogService builds loaders over the product catalog.
// It is frontend-agnostic: no terminal handling, no printing.
type CatalogService struct {
	client   *api.CatalogClient
	pageSize int
	eventBus *events.EventBus
	logger   *logging.Logger
}

// NewCatalogService creates a CatalogService over client.
func NewCatalogService(client *api.CatalogClient, pageSize int, eventBus *events.EventBus) *CatalogService {
	return &CatalogService{
		client:   client,
		pageSize: pageSize,
		eventBus: eventBus,
		logger:   logging.NewLogger("catalog-service", eventBus),
	}
}

// NewCatalogServiceFromConfig wires a catalog client from cfg.
func NewCatalogServiceFromConfig(cfg *config.Config, httpClient *nethttp.Client, eventBus *events.EventBus) (*CatalogService, error) {
	client, err := api.NewCatalogClient(httpClient, cfg.CatalogURL, cfg.FetchTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog client: %w", err)
	}
	return NewCatalogService(client, cfg.PageSize, eventBus), nil
}

// DefaultQuery returns the query a product feed opens with.
func (cs *CatalogService) DefaultQuery() models.Query {
	return models.NewQuery(cs.pageSize)
}

// NewLoader returns an idle product loader for initial. A zero page size in
// initial takes the service's page size. The caller owns the loader and
// must Close it.
func (cs *CatalogService) NewLoader(initial models.Query) *loader.Loader[models.Product] {
	if initial.PageSize <= 0 {
		initial.PageSize = cs.pageSize
	}
	cs.logger.Debug().
		Str("search", initial.SearchText).
		Str("category", initial.Category).
		Int("page_size", initial.PageSize).
		Msg("new product loader")

	return loader.New[models.Product](cs.client, models.ProductID, initial, loader.Options{
		Source:   "products",
		EventBus: cs.eventBus,
	})
}
