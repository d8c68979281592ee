// Package loader turns a paged remote collection plus a mutable filter into
// a consistent local list under concurrent filter, refresh and load-more
// triggers.
//
// Every request captures the loader's epoch when it is dispatched. A filter
// change or refresh bumps the epoch; load-more does not. A response is
// applied only if its captured epoch still matches and the loader has not
// been closed, so a superseded response can never overwrite newer state.
package loader

import (
	"context"
	"sync"
	"time"

	"github.com/faishion/tryon-client/internal/events"
	"github.com/faishion/tryon-client/internal/logging"
	"github.com/faishion/tryon-client/internal/models"
)

// Fetcher returns one page of a collection.
type Fetcher[T any] interface {
	Fetch(ctx context.Context, q models.Query) (models.Page[T], error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc[T any] func(ctx context.Context, q models.Query) (models.Page[T], error)

// Fetch calls f(ctx, q).
func (f FetcherFunc[T]) Fetch(ctx context.Context, q models.Query) (models.Page[T], error) {
	return f(ctx, q)
}

// FilterChange carries the filter fields to change; nil fields are kept.
type FilterChange struct {
	Search   *string
	Category *string
}

// Options configure a Loader.
type Options struct {
	// Source names the loader in events and logs ("products", "history").
	Source   string
	EventBus *events.EventBus
	Logger   *logging.Logger
}

// Loader is a paged collection loader. It is safe for concurrent use.
type Loader[T any] struct {
	fetcher  Fetcher[T]
	identity func(T) string
	source   string
	eventBus *events.EventBus
	logger   *logging.Logger

	mu         sync.Mutex
	state      State[T]
	dispatched bool
	disposed   bool

	rootCtx     context.Context
	rootCancel  context.CancelFunc
	epochCtx    context.Context // parent of requests in the current epoch
	epochCancel context.CancelFunc

	wg sync.WaitGroup
}

// New creates a loader for initial. Nothing is fetched until Start,
// SetFilter, Refresh or LoadMore is called.
func New[T any](fetcher Fetcher[T], identity func(T) string, initial models.Query, opts Options) *Loader[T] {
	q := initial.Normalize()
	q.Page = 1
	if q.PageSize <= 0 {
		q.PageSize = models.NewQuery(0).PageSize
	}

	source := opts.Source
	if source == "" {
		source = "loader"
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger(source, opts.EventBus)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	epochCtx, epochCancel := context.WithCancel(rootCtx)

	return &Loader[T]{
		fetcher:  fetcher,
		identity: identity,
		source:   source,
		eventBus: opts.EventBus,
		logger:   logger,
		state: State[T]{
			Items:       []T{},
			HasMore:     true,
			Status:      StatusIdle,
			ActiveQuery: q,
		},
		rootCtx:     rootCtx,
		rootCancel:  rootCancel,
		epochCtx:    epochCtx,
		epochCancel: epochCancel,
	}
}

// Start performs the initial load of the active query. Once something has
// been dispatched it behaves like Refresh.
func (l *Loader[T]) Start() bool {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return false
	}
	if l.dispatched {
		l.mu.Unlock()
		return l.Refresh()
	}
	l.beginReplaceLocked(l.state.ActiveQuery, OriginFilter)
	l.mu.Unlock()
	return true
}

// SetFilter applies change to the active query and reloads from page 1,
// clearing the list immediately. It is a no-op when the resulting query is
// equivalent to the active one and that query has already been dispatched.
// It returns whether a request was issued.
func (l *Loader[T]) SetFilter(change FilterChange) bool {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return false
	}

	next := l.state.ActiveQuery
	if change.Search != nil {
		next.SearchText = *change.Search
	}
	if change.Category != nil {
		next.Category = *change.Category
	}
	next = next.Normalize()
	next.Page = 1

	if l.dispatched && models.Equivalent(next, l.state.ActiveQuery) {
		l.mu.Unlock()
		l.logger.Debug().Str("search", next.SearchText).Str("category", next.Category).Msg("filter unchanged")
		return false
	}

	l.beginReplaceLocked(next, OriginFilter)
	l.mu.Unlock()
	return true
}

// Refresh reloads page 1 of the active query, keeping the current items
// visible until the response arrives. It is a no-op while a request is in
// flight. It returns whether a request was issued.
func (l *Loader[T]) Refresh() bool {
	l.mu.Lock()
	if l.disposed || l.busyLocked() {
		l.mu.Unlock()
		return false
	}
	l.beginReplaceLocked(l.state.ActiveQuery, OriginRefresh)
	l.mu.Unlock()
	return true
}

// LoadMore fetches the page after the last one applied and appends it. It is
// a no-op while a request is in flight or when the collection is exhausted.
// Before anything has been dispatched it performs the initial load. It
// returns whether a request was issued.
func (l *Loader[T]) LoadMore() bool {
	l.mu.Lock()
	if l.disposed || l.busyLocked() || !l.state.HasMore {
		l.mu.Unlock()
		return false
	}
	if !l.dispatched {
		l.beginReplaceLocked(l.state.ActiveQuery, OriginFilter)
		l.mu.Unlock()
		return true
	}

	q := l.state.ActiveQuery
	q.Page = l.state.Page + 1
	l.state.Status = StatusLoading
	l.state.Origin = OriginMore
	l.state.Err = nil
	epoch := l.state.Epoch
	l.launchLocked(epoch, q, OriginMore)
	l.publishStateLocked()
	l.mu.Unlock()
	return true
}

// State returns a snapshot of the loader.
func (l *Loader[T]) State() State[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Wait blocks until every dispatched request has completed or been
// discarded.
func (l *Loader[T]) Wait() {
	l.wg.Wait()
}

// WaitContext is Wait bounded by ctx.
func (l *Loader[T]) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disposes the loader: in-flight requests are cancelled and no later
// completion is applied. Subsequent operations are no-ops. Close does not
// wait; call Wait afterwards to join the request goroutines.
func (l *Loader[T]) Close() {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return
	}
	l.disposed = true
	l.mu.Unlock()

	l.rootCancel()
	l.logger.Debug().Msg("loader closed")
}

func (l *Loader[T]) busyLocked() bool {
	return l.state.Status == StatusLoading || l.state.Status == StatusRefreshing
}

// beginReplaceLocked starts a new epoch and requests page 1 of q.
func (l *Loader[T]) beginReplaceLocked(q models.Query, origin Origin) {
	l.epochCancel()
	l.epochCtx, l.epochCancel = context.WithCancel(l.rootCtx)

	l.state.Epoch++
	l.state.ActiveQuery = q
	l.state.Origin = origin
	l.state.Err = nil
	if origin == OriginFilter {
		l.state.Items = []T{}
		l.state.Page = 0
		l.state.HasMore = true
		l.state.Status = StatusLoading
	} else {
		l.state.Status = StatusRefreshing
	}
	l.dispatched = true

	l.launchLocked(l.state.Epoch, q, origin)
	l.publishStateLocked()
}

func (l *Loader[T]) launchLocked(epoch uint64, q models.Query, origin Origin) {
	parent := l.epochCtx
	l.logger.Debug().
		Uint64("epoch", epoch).
		Str("origin", origin.String()).
		Int("page", q.Page).
		Str("search", q.SearchText).
		Str("category", q.Category).
		Msg("dispatch")

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		ctx, cancel := context.WithCancel(parent)
		defer cancel()

		start := time.Now()
		page, err := l.fetcher.Fetch(ctx, q)
		l.complete(epoch, origin, q, page, err, time.Since(start))
	}()
}

// complete applies a response if it is still current.
func (l *Loader[T]) complete(epoch uint64, origin Origin, q models.Query, page models.Page[T], err error, elapsed time.Duration) {
	l.mu.Lock()
	if l.disposed || epoch != l.state.Epoch {
		current := l.state.Epoch
		disposed := l.disposed
		l.mu.Unlock()

		l.logger.Debug().
			Uint64("epoch", epoch).
			Uint64("current_epoch", current).
			Bool("disposed", disposed).
			Str("origin", origin.String()).
			Msg("discarded stale response")
		if !disposed {
			l.publish(&events.LoaderEvent{
				BaseEvent: events.BaseEvent{EventType: events.EventLoaderStale, Time: time.Now()},
				Source:    l.source,
				Origin:    origin.String(),
				Page:      q.Page,
				Epoch:     epoch,
				Error:     err,
			})
		}
		return
	}

	if err != nil {
		l.state.Err = err
		l.state.Status = StatusError
		if origin.replaces() {
			l.state.Items = []T{}
			l.state.Page = 0
			l.state.HasMore = false
		}
	} else {
		if origin.replaces() {
			l.state.Items = appendUnique(make([]T, 0, len(page.Items)), page.Items, l.identity)
			l.state.Page = 1
		} else {
			l.state.Items = appendUnique(l.state.Items, page.Items, l.identity)
			l.state.Page++
		}
		l.state.HasMore = page.HasNext
		l.state.Status = StatusIdle
		l.state.Err = nil
	}
	l.publishStateLocked()
	count, pageNo, hasMore := len(l.state.Items), l.state.Page, l.state.HasMore
	l.mu.Unlock()

	if err != nil {
		l.logger.Warnf("%s page %d failed (origin %s, epoch %d): %v", l.source, q.Page, origin, epoch, err)
	} else {
		l.logger.Debug().
			Uint64("epoch", epoch).
			Str("origin", origin.String()).
			Int("received", len(page.Items)).
			Int("count", count).
			Int("page", pageNo).
			Bool("has_more", hasMore).
			Dur("elapsed", elapsed).
			Msg("applied page")
	}
}

// appendUnique appends the items of src whose identity is not already in
// dst (or earlier in src) to dst.
func appendUnique[T any](dst, src []T, identity func(T) string) []T {
	seen := make(map[string]struct{}, len(dst)+len(src))
	for _, item := range dst {
		seen[identity(item)] = struct{}{}
	}
	for _, item := range src {
		id := identity(item)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		dst = append(dst, item)
	}
	return dst
}

func (l *Loader[T]) snapshotLocked() State[T] {
	s := l.state
	s.Items = make([]T, len(l.state.Items))
	copy(s.Items, l.state.Items)
	return s
}

// publishStateLocked publishes the current state. It runs under the lock so
// subscribers see transitions in order; the bus never blocks.
func (l *Loader[T]) publishStateLocked() {
	l.publish(&events.LoaderEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventLoaderState, Time: time.Now()},
		Source:    l.source,
		Status:    l.state.Status.String(),
		Origin:    l.state.Origin.String(),
		Count:     len(l.state.Items),
		Page:      l.state.Page,
		HasMore:   l.state.HasMore,
		Epoch:     l.state.Epoch,
		Error:     l.state.Err,
	})
}

func (l *Loader[T]) publish(ev events.Event) {
	if l.eventBus != nil {
		l.eventBus.Publish(ev)
	}
}
