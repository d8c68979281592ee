package services

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/faishion/tryon-client/internal/config"
	"github.com/faishion/tryon-client/internal/models"
	"github.com/faishion/tryon-client/internal/session"
)

// catalogServer serves pages of size limit out of total products.
func catalogServer(t *testing.T, total int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		start := (page - 1) * limit
		end := start + limit
		if end > total {
			end = total
		}

		w.Write([]byte(`{"products":[`))
		for i := start; i < end; i++ {
			if i > start {
				w.Write([]byte(","))
			}
			fmt.Fprintf(w, `{"name":"Item %d","newPrice":"$%d.00","url":"https://shop/%d","brand":"B"}`, i, i+1, i)
		}
		fmt.Fprintf(w, `],"pagination":{"has_next":%t}}`, end < total)
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(catalogURL, historyURL string) *config.Config {
	cfg := config.NewConfig()
	cfg.CatalogURL = catalogURL
	cfg.HistoryURL = historyURL
	cfg.PageSize = 20
	cfg.FetchTimeout = time.Second
	return cfg
}

func TestCatalogLoaderPagesThroughFeed(t *testing.T) {
	server := catalogServer(t, 25)
	svc, err := NewCatalogServiceFromConfig(testConfig(server.URL, server.URL), server.Client(), nil)
	if err != nil {
		t.Fatalf("NewCatalogServiceFromConfig() error = %v", err)
	}

	l := svc.NewLoader(svc.DefaultQuery())
	defer l.Close()

	if !l.Start() {
		t.Fatal("Start() = false")
	}
	l.Wait()
	s := l.State()
	if len(s.Items) != 20 || !s.HasMore || s.Page != 1 {
		t.Fatalf("after Start: items=%d hasMore=%v page=%d, want 20 true 1", len(s.Items), s.HasMore, s.Page)
	}

	if !l.LoadMore() {
		t.Fatal("LoadMore() = false")
	}
	l.Wait()
	s = l.State()
	if len(s.Items) != 25 || s.HasMore || s.Page != 2 {
		t.Fatalf("after LoadMore: items=%d hasMore=%v page=%d, want 25 false 2", len(s.Items), s.HasMore, s.Page)
	}
	if s.Err != nil {
		t.Errorf("Err = %v", s.Err)
	}

	if l.LoadMore() {
		t.Error("LoadMore() = true on an exhausted feed")
	}
}

func TestCatalogLoaderTakesServicePageSize(t *testing.T) {
	server := catalogServer(t, 5)
	svc, err := NewCatalogServiceFromConfig(testConfig(server.URL, server.URL), server.Client(), nil)
	if err != nil {
		t.Fatal(err)
	}

	l := svc.NewLoader(models.Query{SearchText: "dress"})
	defer l.Close()
	if got := l.State().ActiveQuery.PageSize; got != 20 {
		t.Errorf("PageSize = %d, want 20", got)
	}
	if got := l.State().ActiveQuery.Category; got != "All" {
		t.Errorf("Category = %q, want All", got)
	}
}

func TestNewCatalogServiceFromConfigRejectsEmptyURL(t *testing.T) {
	if _, err := NewCatalogServiceFromConfig(testConfig("", "http://h"), nil, nil); err == nil {
		t.Error("NewCatalogServiceFromConfig() should fail without a catalog URL")
	}
}

func TestHistoryLoaderRequiresUser(t *testing.T) {
	svc := NewHistoryServiceFromConfig(testConfig("http://c", "http://h"), nil, session.NewMemoryStore(), nil)

	if _, err := svc.NewLoader(context.Background()); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("NewLoader() error = %v, want ErrNotLoggedIn", err)
	}

	nilStore := NewHistoryServiceFromConfig(testConfig("http://c", "http://h"), nil, nil, nil)
	if _, err := nilStore.NewLoader(context.Background()); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("NewLoader() without store error = %v, want ErrNotLoggedIn", err)
	}
}

func TestHistoryLoaderUsesStoredUser(t *testing.T) {
	var gotUser string
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		gotUser = r.URL.Query().Get("user_id")
		w.Write([]byte(`{"data":[{"productInfo":{"product_url":"https://shop/a","brand_name":"Acme","price":10}}]}`))
	}))
	defer server.Close()

	store := session.NewMemoryStore()
	if err := store.Set(context.Background(), session.KeyUserID, "user-7"); err != nil {
		t.Fatal(err)
	}
	svc := NewHistoryServiceFromConfig(testConfig(server.URL, server.URL), server.Client(), store, nil)

	l, err := svc.NewLoader(context.Background())
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	defer l.Close()

	l.Start()
	l.Wait()

	if gotUser != "user-7" {
		t.Errorf("user_id = %q, want user-7", gotUser)
	}
	s := l.State()
	if len(s.Items) != 1 || s.Items[0].Product.BrandName != "Acme" {
		t.Errorf("Items = %+v", s.Items)
	}
	if s.HasMore {
		t.Error("HasMore = true, want false")
	}
}
