package services

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/faishion/tryon-client/internal/api"
	"github.com/faishion/tryon-client/internal/config"
	"github.com/faishion/tryon-client/internal/events"
	"github.com/faishion/tryon-client/internal/loader"
	"github.com/faishion/tryon-client/internal/logging"
	"github.com/faishion/tryon-client/internal/models"
	"github.com/faishion/tryon-client/internal/session"
)

// ErrNotLoggedIn is returned when the session store holds no user id.
var ErrNotLoggedIn = errors.New("user not logged in")

// HistoryService builds loaders over the signed-in user's try-on history.
type HistoryService struct {
	httpClient *nethttp.Client
	baseURL    string
	timeout    time.Duration
	pageSize   int
	store      session.Store
	eventBus   *events.EventBus
	logger     *logging.Logger
}

// NewHistoryService creates a HistoryService. The user id is read from
// store each time a loader is built.
func NewHistoryService(httpClient *nethttp.Client, baseURL string, timeout time.Duration, pageSize int, store session.Store, eventBus *events.EventBus) *HistoryService {
	return &HistoryService{
		httpClient: httpClient,
		baseURL:    baseURL,
		timeout:    timeout,
		pageSize:   pageSize,
		store:      store,
		eventBus:   eventBus,
		logger:     logging.NewLogger("history-service", eventBus),
	}
}

// NewHistoryServiceFromConfig creates a HistoryService from cfg.
func NewHistoryServiceFromConfig(cfg *config.Config, httpClient *nethttp.Client, store session.Store, eventBus *events.EventBus) *HistoryService {
	return NewHistoryService(httpClient, cfg.HistoryURL, cfg.FetchTimeout, cfg.PageSize, store, eventBus)
}

// UserID returns the signed-in user's id, or ErrNotLoggedIn.
func (hs *HistoryService) UserID(ctx context.Context) (string, error) {
	if hs.store == nil {
		return "", ErrNotLoggedIn
	}
	userID, err := hs.store.Get(ctx, session.KeyUserID)
	if errors.Is(err, session.ErrNotFound) || (err == nil && userID == "") {
		return "", ErrNotLoggedIn
	}
	if err != nil {
		return "", fmt.Errorf("failed to read user id: %w", err)
	}
	return userID, nil
}

// NewLoader returns an idle history loader for the signed-in user. The
// caller owns the loader and must Close it.
func (hs *HistoryService) NewLoader(ctx context.Context) (*loader.Loader[models.HistoryItem], error) {
	userID, err := hs.UserID(ctx)
	if err != nil {
		return nil, err
	}

	client, err := api.NewHistoryClient(hs.httpClient, hs.baseURL, userID, hs.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create history client: %w", err)
	}

	hs.logger.Debug().Str("user_id", userID).Msg("new history loader")

	return loader.New[models.HistoryItem](client, models.HistoryItemID, models.NewQuery(hs.pageSize), loader.Options{
		Source:   "history",
		EventBus: hs.eventBus,
	}), nil
}
