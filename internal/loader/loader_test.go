package loader

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/faishion/tryon-client/internal/events"
	"github.com/faishion/tryon-client/internal/models"
)

type item struct {
	ID   string
	Name string
}

func itemID(i item) string { return i.ID }

// call is one pending Fetch. The fake ignores ctx so tests decide when and
// how each request completes, including after it has been superseded.
type call struct {
	q     models.Query
	ctx   context.Context
	reply chan result
}

type result struct {
	page models.Page[item]
	err  error
}

type fakeFetcher struct {
	calls chan *call
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{calls: make(chan *call, 16)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, q models.Query) (models.Page[item], error) {
	c := &call{q: q, ctx: ctx, reply: make(chan result, 1)}
	f.calls <- c
	r := <-c.reply
	return r.page, r.err
}

func (f *fakeFetcher) next(t *testing.T) *call {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a fetch")
		return nil
	}
}

func (f *fakeFetcher) expectNoCall(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected fetch for page %d", c.q.Page)
	case <-time.After(30 * time.Millisecond):
	}
}

func (c *call) succeed(hasNext bool, items ...item) {
	c.reply <- result{page: models.Page[item]{Items: items, HasNext: hasNext}}
}

func (c *call) fail(err error) {
	c.reply <- result{err: err}
}

func makeItems(prefix string, from, n int) []item {
	items := make([]item, n)
	for i := range items {
		id := fmt.Sprintf("%s-%d", prefix, from+i)
		items[i] = item{ID: id, Name: id}
	}
	return items
}

func newTestLoader(f *fakeFetcher, bus *events.EventBus) *Loader[item] {
	return New[item](f, itemID, models.NewQuery(20), Options{Source: "test", EventBus: bus})
}

func ptr(s string) *string { return &s }

func ids(items []item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestStartLoadsFirstPage(t *testing.T) {
	f := newFakeFetcher()
	l := newTestLoader(f, nil)
	defer l.Close()

	if !l.Start() {
		t.Fatal("Start() = false, want true")
	}
	st := l.State()
	if !st.IsLoading() || st.Origin != OriginFilter {
		t.Errorf("state after Start = %v/%v, want loading/filter", st.Status, st.Origin)
	}

	c := f.next(t)
	if c.q.Page != 1 || c.q.PageSize != 20 || c.q.Category != "All" {
		t.Errorf("first query = %+v", c.q)
	}
	c.succeed(true, makeItems("p", 0, 20)...)
	l.Wait()

	st = l.State()
	if len(st.Items) != 20 || st.Page != 1 || !st.HasMore || st.Status != StatusIdle || st.Err != nil {
		t.Errorf("state = {items:%d page:%d more:%v status:%v err:%v}", len(st.Items), st.Page, st.HasMore, st.Status, st.Err)
	}
}

func TestEndToEndTwentyPlusFive(t *testing.T) {
	f := newFakeFetcher()
	l := newTestLoader(f, nil)
	defer l.Close()

	l.SetFilter(FilterChange{})
	f.next(t).succeed(true, makeItems("p", 0, 20)...)
	l.Wait()

	if !l.LoadMore() {
		t.Fatal("LoadMore() = false, want true")
	}
	c := f.next(t)
	if c.q.Page != 2 {
		t.Errorf("LoadMore page = %d, want 2", c.q.Page)
	}
	c.succeed(false, makeItems("p", 20, 5)...)
	l.Wait()

	st := l.State()
	if len(st.Items) != 25 {
		t.Errorf("len(Items) = %d, want 25", len(st.Items))
	}
	if st.Page != 2 || st.HasMore {
		t.Errorf("Page = %d HasMore = %v, want 2 false", st.Page, st.HasMore)
	}
	if st.Items[0].ID != "p-0" || st.Items[24].ID != "p-24" {
		t.Errorf("order = %s..%s", st.Items[0].ID, st.Items[24].ID)
	}

	if l.LoadMore() {
		t.Error("LoadMore() after exhaustion = true, want no-op")
	}
	f.expectNoCall(t)
}

func TestSetFilterEquivalentIsNoop(t *testing.T) {
	f := newFakeFetcher()
	l := newTestLoader(f, nil)
	defer l.Close()

	l.SetFilter(FilterChange{Search: ptr("dress")})
	f.next(t).succeed(false, makeItems("d", 0, 3)...)
	l.Wait()
	before := l.State()

	if l.SetFilter(FilterChange{Search: ptr("  dress ")}) {
		t.Error("SetFilter() with equivalent query = true, want no-op")
	}
	if l.SetFilter(FilterChange{Category: ptr("")}) {
		t.Error("SetFilter() with empty category (= All) = true, want no-op")
	}
	f.expectNoCall(t)

	after := l.State()
	if after.Epoch != before.Epoch || len(after.Items) != len(before.Items) {
		t.Errorf("state changed on no-op: epoch %d->%d items %d->%d", before.Epoch, after.Epoch, len(before.Items), len(after.Items))
	}
}

func TestFirstSetFilterWithDefaultsDispatches(t *testing.T) {
	f := newFakeFetcher()
	l := newTestLoader(f, nil)
	defer l.Close()

	if !l.SetFilter(FilterChange{Category: ptr("All")}) {
		t.Fatal("initial SetFilter() = false, want a dispatch")
	}
	f.next(t).succeed(false)
	l.Wait()
}

func TestSetFilterReplacesAndClearsImmediately(t *testing.T) {
	f := newFakeFetcher()
	l := newTestLoader(f, nil)
	defer l.Close()

	l.Start()
	f.next(t).succeed(true, makeItems("all", 0, 20)...)
	l.Wait()
	l.LoadMore()
	f.next(t).succeed(true, makeItems("all", 20, 20)...)
	l.Wait()

	l.SetFilter(FilterChange{Category: ptr("Skirts")})
	st := l.State()
	if len(st.Items) != 0 || st.Page != 0 || !st.IsLoading() {
		t.Errorf("state after SetFilter = {items:%d page:%d status:%v}, want cleared and loading", len(st.Items), st.Page, st.Status)
	}

	c := f.next(t)
	if c.q.Category != "Skirts" || c.q.Page != 1 {
		t.Errorf("query = %+v, want Skirts page 1", c.q)
	}
	c.succeed(true, makeItems("skirt", 0, 4)...)
	l.Wait()

	st = l.State()
	if len(st.Items) != 4 || st.Items[0].ID != "skirt-0" || st.Page != 1 {
		t.Errorf("items = %v page = %d, want 4 skirts on page 1", ids(st.Items), st.Page)
	}
	if st.ActiveQuery.Category != "Skirts" {
		t.Errorf("ActiveQuery.Category = %q", st.ActiveQuery.Category)
	}
}

func TestStaleFilterResponseDiscarded(t *testing.T) {
	f := newFakeFetcher()
	bus := events.NewEventBus(100)
	defer bus.Close()
	staleCh := bus.Subscribe(events.EventLoaderStale)

	l := newTestLoader(f, bus)
	defer l.Close()

	l.SetFilter(FilterChange{Search: ptr("A")})
	first := f.next(t)
	l.SetFilter(FilterChange{Search: ptr("B")})
	second := f.next(t)

	if first.ctx.Err() == nil {
		t.Error("superseded request context was not cancelled")
	}

	second.succeed(false, item{ID: "b1"}, item{ID: "b2"})
	first.succeed(true, item{ID: "a1"})
	l.Wait()

	st := l.State()
	if got := ids(st.Items); len(got) != 2 || got[0] != "b1" || got[1] != "b2" {
		t.Errorf("items = %v, want [b1 b2]", got)
	}
	if st.HasMore {
		t.Error("HasMore = true, stale response leaked")
	}
	if st.ActiveQuery.SearchText != "B" {
		t.Errorf("ActiveQuery.SearchText = %q, want B", st.ActiveQuery.SearchText)
	}

	select {
	case ev := <-staleCh:
		le := ev.(*events.LoaderEvent)
		if le.Epoch != st.Epoch-1 {
			t.Errorf("stale event epoch = %d, want %d", le.Epoch, st.Epoch-1)
		}
	case <-time.After(time.Second):
		t.Error("no stale event published")
	}
}

func TestLoadMoreDiscardedAfterSetFilter(t *testing.T) {
	f := newFakeFetcher()
	l := newTestLoader(f, nil)
	defer l.Close()

	l.Start()
	f.next(t).succeed(true, makeItems("old", 0, 20)...)
	l.Wait()

	l.LoadMore()
	more := f.next(t)

	l.SetFilter(FilterChange{Search: ptr("new")})
	filter := f.next(t)

	more.succeed(true, makeItems("old", 20, 20)...)
	filter.succeed(false, makeItems("new", 0, 2)...)
	l.Wait()

	st := l.State()
	if got := ids(st.Items); len(got) != 2 || got[0] != "new-0" {
		t.Errorf("items = %v, want only the new filter's results", got)
	}
	if st.Page != 1 {
		t.Errorf("Page = %d, want 1", st.Page)
	}
}

func TestLoadMoreDoesNotBumpEpoch(t *testing.T) {
	f := newFakeFetcher()
	l := newTestLoader(f, nil)
	defer l.Close()

	l.Start()
	f.next(t).succeed(true, makeItems("p", 0, 20)...)
	l.Wait()
	epoch := l.State().Epoch

	l.LoadMore()
	if got := l.State().Epoch; got != epoch {
		t.Errorf("Epoch after LoadMore = %d, want %d", got, epoch)
	}
	f.next(t).succeed(false)
	l.Wait()

	l.Refresh()
	if got := l.State().Epoch; got != epoch+1 {
		t.Errorf("Epoch after Refresh = %d, want %d", got, epoch+1)
	}
	f.next(t).succeed(false)
	l.Wait()
}

func TestLoadMoreDeduplicates(t *testing.T) {
	f := newFakeFetcher()
	l := newTestLoader(f, nil)
	defer l.Close()

	l.Start()
	f.next(t).succeed(true, item{ID: "a"}, item{ID: "b"}, item{ID: "a"})
	l.Wait()

	if got := ids(l.State().Items); len(got) != 2 {
		t.Fatalf("items after first page = %v, want in-page duplicate dropped", got)
	}

	l.LoadMore()
	f.next(t).succeed(false, item{ID: "b"}, item{ID: "c"}, item{ID: "c"})
	l.Wait()

	got := ids(l.State().Items)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("items = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("items[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMutualExclusion(t *testing.T) {
	f := newFakeFetcher()
	l := newTestLoader(f, nil)
	defer l.Close()

	l.Start()
	first := f.next(t)

	if l.Refresh() {
		t.Error("Refresh() while loading = true, want no-op")
	}
	if l.LoadMore() {
		t.Error("LoadMore() while loading = true, want no-op")
	}
	f.expectNoCall(t)

	first.succeed(true, makeItems("p", 0, 20)...)
	l.Wait()

	if !l.Refresh() {
		t.Fatal("Refresh() when idle = false")
	}
	st := l.State()
	if !st.IsRefreshing() || st.IsLoading() {
		t.Errorf("IsRefreshing = %v IsLoading = %v, want true false", st.IsRefreshing(), st.IsLoading())
	}
	if len(st.Items) != 20 {
		t.Errorf("items during refresh = %d, want 20 still visible", len(st.Items))
	}
	if l.LoadMore() {
		t.Error("LoadMore() while refreshing = true, want no-op")
	}
	if l.Refresh() {
		t.Error("Refresh() while refreshing = true, want no-op")
	}

	f.next(t).succeed(true, makeItems("r", 0, 5)...)
	l.Wait()

	st = l.State()
	if got := ids(st.Items); len(got) != 5 || got[0] != "r-0" {
		t.Errorf("items after refresh = %v, want replaced", got)
	}
}

func TestFailedLoadMoreKeepsItems(t *testing.T) {
	f := newFakeFetcher()
	l := newTestLoader(f, nil)
	defer l.Close()

	l.Start()
	f.next(t).succeed(true, makeItems("p", 0, 20)...)
	l.Wait()

	wantErr := errors.New("connection reset")
	l.LoadMore()
	f.next(t).fail(wantErr)
	l.Wait()

	st := l.State()
	if !errors.Is(st.Err, wantErr) || st.Status != StatusError {
		t.Errorf("Err = %v Status = %v, want stored error", st.Err, st.Status)
	}
	if len(st.Items) != 20 || st.Page != 1 || !st.HasMore {
		t.Errorf("items = %d page = %d more = %v, want untouched", len(st.Items), st.Page, st.HasMore)
	}

	// Retrying asks for the same page again.
	if !l.LoadMore() {
		t.Fatal("LoadMore() after failure = false")
	}
	c := f.next(t)
	if c.q.Page != 2 {
		t.Errorf("retry page = %d, want 2", c.q.Page)
	}
	c.succeed(false, makeItems("p", 20, 1)...)
	l.Wait()
	if st := l.State(); st.Err != nil || len(st.Items) != 21 {
		t.Errorf("after retry err = %v items = %d", st.Err, len(st.Items))
	}
}

func TestFailedFilterLeavesEmptyWithError(t *testing.T) {
	f := newFakeFetcher()
	l := newTestLoader(f, nil)
	defer l.Close()

	l.Start()
	f.next(t).fail(errors.New("boom"))
	l.Wait()

	st := l.State()
	if st.Err == nil || len(st.Items) != 0 || st.Page != 0 {
		t.Errorf("state = {err:%v items:%d page:%d}, want error and empty", st.Err, len(st.Items), st.Page)
	}
	if st.IsEmptyResult() {
		t.Error("IsEmptyResult() = true for a failure")
	}
	if l.LoadMore() {
		t.Error("LoadMore() after failed filter = true, want no-op")
	}

	if !l.Refresh() {
		t.Fatal("Refresh() after failure = false")
	}
	f.next(t).succeed(false)
	l.Wait()

	st = l.State()
	if st.Err != nil || !st.IsEmptyResult() {
		t.Errorf("state = {err:%v empty:%v}, want an empty result", st.Err, st.IsEmptyResult())
	}
}

func TestFailedRefreshClearsItems(t *testing.T) {
	f := newFakeFetcher()
	l := newTestLoader(f, nil)
	defer l.Close()

	l.Start()
	f.next(t).succeed(true, makeItems("p", 0, 20)...)
	l.Wait()

	l.Refresh()
	f.next(t).fail(errors.New("503"))
	l.Wait()

	st := l.State()
	if st.Err == nil || len(st.Items) != 0 || st.Page != 0 {
		t.Errorf("state = {err:%v items:%d page:%d}, want empty with error", st.Err, len(st.Items), st.Page)
	}
}

func TestCloseDiscardsPending(t *testing.T) {
	f := newFakeFetcher()
	bus := events.NewEventBus(100)
	defer bus.Close()

	l := newTestLoader(f, bus)
	l.Start()
	c := f.next(t)

	ch := bus.Subscribe(events.EventLoaderState)
	l.Close()

	if c.ctx.Err() == nil {
		t.Error("in-flight context not cancelled by Close")
	}

	c.succeed(false, makeItems("p", 0, 3)...)
	l.Wait()

	st := l.State()
	if len(st.Items) != 0 || st.Page != 0 {
		t.Errorf("items = %d page = %d, completion applied after Close", len(st.Items), st.Page)
	}

	select {
	case ev := <-ch:
		t.Errorf("event published after Close: %+v", ev)
	case <-time.After(30 * time.Millisecond):
	}

	if l.Start() || l.Refresh() || l.LoadMore() || l.SetFilter(FilterChange{Search: ptr("x")}) {
		t.Error("operation after Close issued a request")
	}
	f.expectNoCall(t)
	l.Close()
}

func TestEmptyResultIsNotAnError(t *testing.T) {
	f := newFakeFetcher()
	l := newTestLoader(f, nil)
	defer l.Close()

	l.SetFilter(FilterChange{Search: ptr("zzzz")})
	f.next(t).succeed(false)
	l.Wait()

	st := l.State()
	if !st.IsEmptyResult() {
		t.Errorf("IsEmptyResult() = false, state = %+v", st)
	}
	if st.Err != nil {
		t.Errorf("Err = %v, want nil", st.Err)
	}
}

func TestLoadMoreBeforeStartDoesInitialLoad(t *testing.T) {
	f := newFakeFetcher()
	l := newTestLoader(f, nil)
	defer l.Close()

	if !l.LoadMore() {
		t.Fatal("LoadMore() before Start = false")
	}
	c := f.next(t)
	if c.q.Page != 1 {
		t.Errorf("page = %d, want 1", c.q.Page)
	}
	c.succeed(true, makeItems("p", 0, 1)...)
	l.Wait()

	if st := l.State(); st.Page != 1 || len(st.Items) != 1 {
		t.Errorf("state = {page:%d items:%d}", st.Page, len(st.Items))
	}
}

func TestStartAfterDispatchRefreshes(t *testing.T) {
	f := newFakeFetcher()
	l := newTestLoader(f, nil)
	defer l.Close()

	l.Start()
	f.next(t).succeed(true, makeItems("p", 0, 2)...)
	l.Wait()

	if !l.Start() {
		t.Fatal("second Start() = false")
	}
	if st := l.State(); !st.IsRefreshing() {
		t.Errorf("Status = %v, want refreshing", st.Status)
	}
	f.next(t).succeed(false)
	l.Wait()
}

func TestStateSnapshotIsCopy(t *testing.T) {
	f := newFakeFetcher()
	l := newTestLoader(f, nil)
	defer l.Close()

	l.Start()
	f.next(t).succeed(false, item{ID: "a"})
	l.Wait()

	snap := l.State()
	snap.Items[0].ID = "mutated"

	if l.State().Items[0].ID != "a" {
		t.Error("mutating a snapshot changed loader state")
	}
}

func TestLoaderEventsInOrder(t *testing.T) {
	f := newFakeFetcher()
	bus := events.NewEventBus(100)
	defer bus.Close()
	ch := bus.Subscribe(events.EventLoaderState)

	l := newTestLoader(f, bus)
	defer l.Close()

	l.Start()
	f.next(t).succeed(true, makeItems("p", 0, 20)...)
	l.Wait()
	l.LoadMore()
	f.next(t).succeed(false, makeItems("p", 20, 5)...)
	l.Wait()

	want := []struct {
		status string
		origin string
		count  int
	}{
		{"loading", "filter", 0},
		{"idle", "filter", 20},
		{"loading", "more", 20},
		{"idle", "more", 25},
	}

	for i, w := range want {
		select {
		case ev := <-ch:
			le := ev.(*events.LoaderEvent)
			if le.Source != "test" || le.Status != w.status || le.Origin != w.origin || le.Count != w.count {
				t.Errorf("event %d = {%s %s %s %d}, want {test %s %s %d}", i, le.Source, le.Status, le.Origin, le.Count, w.status, w.origin, w.count)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing event %d", i)
		}
	}
}

func TestWaitContext(t *testing.T) {
	f := newFakeFetcher()
	l := newTestLoader(f, nil)
	defer l.Close()

	l.Start()
	c := f.next(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.WaitContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitContext() = %v, want deadline exceeded", err)
	}

	c.succeed(false)
	if err := l.WaitContext(context.Background()); err != nil {
		t.Errorf("WaitContext() = %v, want nil", err)
	}
}

func TestFetcherFunc(t *testing.T) {
	var got models.Query
	fetch := FetcherFunc[item](func(ctx context.Context, q models.Query) (models.Page[item], error) {
		got = q
		return models.Page[item]{Items: []item{{ID: "x"}}}, nil
	})

	l := New[item](fetch, itemID, models.Query{SearchText: "hat", PageSize: 5}, Options{})
	defer l.Close()
	l.Start()
	l.Wait()

	if got.SearchText != "hat" || got.PageSize != 5 || got.Category != "All" {
		t.Errorf("query = %+v", got)
	}
	if st := l.State(); len(st.Items) != 1 {
		t.Errorf("items = %d, want 1", len(st.Items))
	}
}

func TestStatusAndOriginStrings(t *testing.T) {
	if StatusRefreshing.String() != "refreshing" || Status(9).String() != "unknown" {
		t.Error("Status.String() mismatch")
	}
	if OriginMore.String() != "more" || OriginNone.String() != "none" {
		t.Error("Origin.String() mismatch")
	}
}

func TestFailedFetchWarnsOnEventBus(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	logs := bus.Subscribe(events.EventLog)

	f := newFakeFetcher()
	l := newTestLoader(f, bus)
	defer l.Close()

	l.Start()
	f.next(t).fail(errors.New("boom"))
	l.Wait()

	select {
	case ev := <-logs:
		logEv := ev.(*events.LogEvent)
		if logEv.Level != events.WarnLevel {
			t.Errorf("Level = %v, want %v", logEv.Level, events.WarnLevel)
		}
		if logEv.Source != "test" {
			t.Errorf("Source = %q, want %q", logEv.Source, "test")
		}
		if want := "test page 1 failed (origin filter, epoch 1): boom"; logEv.Message != want {
			t.Errorf("Message = %q, want %q", logEv.Message, want)
		}
	case <-time.After(time.Second):
		t.Fatal("no warning published for the failed fetch")
	}
}
