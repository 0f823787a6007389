package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestSite(t *testing.T, pages int, perPage int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/item/") {
			fmt.Fprintf(w, `<html><body>
				<header>Information</header>
				<table><tr><td>Brand:</td><td>Volvo</td></tr></table>
			</body></html>`)
			return
		}

		page := r.URL.Query().Get("currentPage")
		n := 0
		fmt.Sscanf(page, "%d", &n)
		if n > pages {
			fmt.Fprint(w, "<html><body><p>No results</p></body></html>")
			return
		}

		fmt.Fprint(w, "<html><body>")
		for i := 0; i < perPage; i++ {
			fmt.Fprintf(w, `<a href="/item/%d-%d#content">Car %d</a>`, n, i, i)
			// Cards also carry unrelated links that must be ignored.
			fmt.Fprintf(w, `<a href="/seller/%d">Seller</a>`, i)
		}
		fmt.Fprint(w, "</body></html>")
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchBatch(t *testing.T) {
	server := newTestSite(t, 2, 3)

	s := NewSiteScraper(server.URL+"/search?category=cars", 0)
	batch, err := s.FetchBatch(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if batch.Exhausted {
		t.Error("expected more pages")
	}
	if batch.NextCursor != 2 {
		t.Errorf("expected next cursor 2, got %d", batch.NextCursor)
	}
	if len(batch.Raw) != 3 {
		t.Fatalf("expected 3 raw listings, got %d", len(batch.Raw))
	}

	for _, raw := range batch.Raw {
		if !strings.HasSuffix(raw.URL, "/details") {
			t.Errorf("expected detail URL, got %s", raw.URL)
		}
		if strings.Contains(raw.URL, "#") {
			t.Errorf("expected fragment to be stripped, got %s", raw.URL)
		}
		if !strings.Contains(raw.HTML, "Volvo") {
			t.Error("expected detail HTML to be fetched")
		}
	}
}

func TestFetchBatchReturnsWholePage(t *testing.T) {
	server := newTestSite(t, 1, 5)

	// A size hint smaller than the page must not trim the batch: the
	// cursor has no way to address the trimmed-off listings later.
	s := NewSiteScraper(server.URL+"/search", 0)
	batch, err := s.FetchBatch(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Raw) != 5 {
		t.Errorf("expected all 5 listings on the page, got %d", len(batch.Raw))
	}
}

func TestWalkToExhaustionSeesEveryListing(t *testing.T) {
	server := newTestSite(t, 3, 5)

	s := NewSiteScraper(server.URL+"/search", 0)
	seen := map[string]bool{}
	cursor := 1
	for {
		batch, err := s.FetchBatch(context.Background(), cursor, 2)
		if err != nil {
			t.Fatalf("unexpected error at cursor %d: %v", cursor, err)
		}
		for _, raw := range batch.Raw {
			seen[raw.URL] = true
		}
		if batch.Exhausted {
			break
		}
		cursor = batch.NextCursor
	}

	if len(seen) != 15 {
		t.Errorf("site served 15 listings, walk collected %d", len(seen))
	}
}

func TestFetchBatchExhausted(t *testing.T) {
	server := newTestSite(t, 2, 3)

	s := NewSiteScraper(server.URL+"/search", 0)
	batch, err := s.FetchBatch(context.Background(), 3, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !batch.Exhausted {
		t.Error("expected exhaustion on empty page")
	}
	if len(batch.Raw) != 0 {
		t.Errorf("expected no listings, got %d", len(batch.Raw))
	}
}

func TestFetchBatchAuthFailureIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	s := NewSiteScraper(server.URL+"/search", 0)
	_, err := s.FetchBatch(context.Background(), 1, 10)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsFatal(err) {
		t.Errorf("expected fatal error, got %v", err)
	}
}

func TestFetchBatchServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	s := NewSiteScraper(server.URL+"/search", 0)
	_, err := s.FetchBatch(context.Background(), 1, 10)
	if err == nil {
		t.Fatal("expected error")
	}
	if IsFatal(err) {
		t.Errorf("expected transient error, got fatal: %v", err)
	}
}
