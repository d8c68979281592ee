package cli

import (
	"fmt"
	nethttp "net/http"

	"github.com/faishion/tryon-client/internal/config"
	"github.com/faishion/tryon-client/internal/constants"
	"github.com/faishion/tryon-client/internal/events"
	"github.com/faishion/tryon-client/internal/http"
	"github.com/faishion/tryon-client/internal/session"
)

// app bundles what every command needs once the config is loaded.
type app struct {
	cfg        *config.Config
	httpClient *nethttp.Client
	bus        *events.EventBus
	store      session.Store
}

// newApp validates cfg and builds the shared HTTP client, event bus and
// session store. Close releases them.
func newApp(cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	httpClient, err := http.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	store, err := session.Open(cfg.SessionBackend, cfg.SessionPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	bus := newEventBus()
	return &app{
		cfg:        cfg,
		httpClient: httpClient,
		bus:        bus,
		store:      session.WithEvents(store, bus),
	}, nil
}

// newEventBus returns a bus whose traffic is mirrored to the debug log.
// Release it with closeEventBus.
func newEventBus() *events.EventBus {
	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	go logEvents(bus.SubscribeAll())
	return bus
}

func closeEventBus(bus *events.EventBus) {
	if dropped := bus.GetDroppedEventCount(); dropped > 0 {
		GetLogger().Debug().Int64("dropped", dropped).Msg("event bus dropped events")
	}
	bus.Close()
}

// logEvents mirrors bus traffic to the debug log until the bus closes.
// Log events are skipped; their sender already wrote them.
func logEvents(ch <-chan events.Event) {
	log := GetLogger()
	for ev := range ch {
		switch e := ev.(type) {
		case *events.LoaderEvent:
			log.Debug().
				Str("event", string(e.Type())).
				Str("source", e.Source).
				Str("status", e.Status).
				Str("origin", e.Origin).
				Int("count", e.Count).
				Int("page", e.Page).
				Uint64("epoch", e.Epoch).
				Msg("loader")
		case *events.SessionEvent:
			log.Debug().Str("key", e.Key).Bool("removed", e.Removed).Msg("session changed")
		case *events.SortEvent:
			log.Debug().Str("source", e.Source).Str("key", e.Key).Msg("sort changed")
		case *events.ErrorEvent:
			log.Debug().Err(e.Error).Str("source", e.Source).Str("stage", e.Stage).Msg("operation failed")
		case *events.ConfigChangedEvent:
			log.Debug().Str("path", e.Path).Msg("config changed")
		}
	}
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		GetLogger().Warn().Err(err).Msg("failed to close session store")
	}
	closeEventBus(a.bus)
}
