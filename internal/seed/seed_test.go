package seed

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const listingPage = `<html><body><div id="links">
<div class="result results_links"><div class="links_main"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&rut=abc">Go docs</a><a href="https://second.example/">second anchor</a></div></div>
<div class="result results_links"><div class="links_main"><a href="https://example.com/tour#start">Tour</a></div></div>
<div class="result results_links"><div class="links_main"><a href="https://example.com/tour">Tour again</a></div></div>
<div class="result results_links"><div class="links_main"><a href="javascript:void(0)">Script</a></div></div>
<div class="result results_links"><div class="links_main"><a href="/relative/page">Relative</a></div></div>
</div>
<div class="results_links"><div class="links_main"><a href="https://outside.example/">outside #links</a></div></div>
</body></html>`

func newListingServer(t *testing.T, status int, body string) (*httptest.Server, *string) {
	t.Helper()

	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server, &gotQuery
}

func TestListingSeeds(t *testing.T) {
	t.Parallel()

	server, gotQuery := newListingServer(t, http.StatusOK, listingPage)
	listing := NewListing(server.Client(), WithURLTemplate(server.URL+"/html/?q={query}"))

	seeds, err := listing.Seeds(t.Context(), "go concurrency", 12)
	if err != nil {
		t.Fatalf("Seeds() error: %v", err)
	}
	if *gotQuery != "go concurrency" {
		t.Errorf("listing received query %q", *gotQuery)
	}

	expected := []string{
		"https://go.dev/doc/",
		"https://second.example/",
		"https://example.com/tour",
		server.URL + "/relative/page",
	}
	if len(seeds) != len(expected) {
		t.Fatalf("Seeds() = %v, expected %v", seeds, expected)
	}
	for i := range expected {
		if seeds[i] != expected[i] {
			t.Errorf("seed %d = %q, expected %q", i, seeds[i], expected[i])
		}
	}
}

func TestListingSeedsLimit(t *testing.T) {
	t.Parallel()

	server, _ := newListingServer(t, http.StatusOK, listingPage)
	listing := NewListing(server.Client(), WithURLTemplate(server.URL+"/?q={query}"))

	seeds, err := listing.Seeds(t.Context(), "go", 2)
	if err != nil {
		t.Fatalf("Seeds() error: %v", err)
	}
	if len(seeds) != 2 {
		t.Errorf("len(seeds) = %d, expected 2", len(seeds))
	}
}

func TestListingSeedsErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		noSeeds bool
	}{
		{"server error", http.StatusServiceUnavailable, "busy", false},
		{"empty listing", http.StatusOK, "<html><body>No results.</body></html>", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server, _ := newListingServer(t, tt.status, tt.body)
			listing := NewListing(server.Client(), WithURLTemplate(server.URL+"/?q={query}"))

			_, err := listing.Seeds(t.Context(), "go", 12)
			if !errors.Is(err, ErrSeedFetch) {
				t.Errorf("expected ErrSeedFetch, got %v", err)
			}
			if errors.Is(err, ErrNoSeeds) != tt.noSeeds {
				t.Errorf("errors.Is(err, ErrNoSeeds) = %v, want %v", !tt.noSeeds, tt.noSeeds)
			}
			var se *SeedError
			if !errors.As(err, &se) || se.Query != "go" {
				t.Errorf("expected *SeedError for query go, got %v", err)
			}
		})
	}
}

func TestListingURL(t *testing.T) {
	t.Parallel()

	listing := NewListing(nil)
	if got := listing.ListingURL("c++ & go"); got != "https://html.duckduckgo.com/html/?q=c%2B%2B+%26+go" {
		t.Errorf("ListingURL() = %q", got)
	}
}

func TestStatic(t *testing.T) {
	t.Parallel()

	s := Static{"https://a.example/", "https://b.example/", "https://c.example/"}
	seeds, err := s.Seeds(t.Context(), "q", 2)
	if err != nil || len(seeds) != 2 {
		t.Errorf("Seeds() = %v, %v", seeds, err)
	}

	if _, err := Static(nil).Seeds(t.Context(), "q", 2); !errors.Is(err, ErrNoSeeds) {
		t.Errorf("expected ErrNoSeeds, got %v", err)
	}
}
