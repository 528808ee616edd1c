package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rewriteTransport sends every request to the test server regardless of the
// requested host, so fetches can use public-looking URLs that pass validation.
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = rt.target.Scheme
	req.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func newTestFetcher(t *testing.T, handler http.Handler, maxPages int) *SiteFetcher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	target, err := url.Parse(server.URL)
	require.NoError(t, err)

	return NewSiteFetcher(SiteFetcherOptions{
		HTTPClient: &http.Client{Transport: rewriteTransport{target: target}},
		MaxPages:   maxPages,
	})
}

func TestSiteFetcher_Fetch_LandingAndSubPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<a href="/about">About us</a>
			<a href="/pricing">Pricing</a>
			<a href="https://other.example.com/pricing">External pricing</a>
			<a href="/pricing#plans">Pricing anchor</a>
			<a href="/blog">Blog</a>
		</body></html>`))
	})
	mux.HandleFunc("/pricing", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>Plans</body></html>`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>Team</body></html>`))
	})

	fetcher := newTestFetcher(t, mux, 5)

	var visited []string
	pages, err := fetcher.Fetch(context.Background(), "https://example.com/", func(u string) {
		visited = append(visited, u)
	})
	require.NoError(t, err)

	// Landing page first, then keyword priority order with the duplicate and
	// off-host pricing links dropped.
	require.Len(t, pages, 3)
	assert.Equal(t, "https://example.com/", pages[0].URL)
	assert.Contains(t, pages[0].HTML, "Pricing")
	assert.Equal(t, "https://example.com/pricing", pages[1].URL)
	assert.Equal(t, "https://example.com/about", pages[2].URL)

	assert.Equal(t, []string{
		"https://example.com/",
		"https://example.com/pricing",
		"https://example.com/about",
	}, visited)
}

func TestSiteFetcher_Fetch_RespectsPageBudget(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<a href="/pricing">Pricing</a>
			<a href="/about">About</a>
			<a href="/features">Features</a>
		</body></html>`))
	})
	mux.HandleFunc("/pricing", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`ok`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`ok`))
	})
	mux.HandleFunc("/features", func(w http.ResponseWriter, _ *http.Request) {
		t.Error("features page should not be fetched past the budget")
	})

	fetcher := newTestFetcher(t, mux, 3)

	pages, err := fetcher.Fetch(context.Background(), "https://example.com/", nil)
	require.NoError(t, err)
	assert.Len(t, pages, 3)
}

func TestSiteFetcher_Fetch_SkipsFailingSubPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<a href="/pricing">Pricing</a>
			<a href="/about">About</a>
		</body></html>`))
	})
	mux.HandleFunc("/pricing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`ok`))
	})

	fetcher := newTestFetcher(t, mux, 5)

	pages, err := fetcher.Fetch(context.Background(), "https://example.com/", nil)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "https://example.com/about", pages[1].URL)
}

func TestSiteFetcher_Fetch_FailsOnLandingPageError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	fetcher := newTestFetcher(t, handler, 5)

	_, err := fetcher.Fetch(context.Background(), "https://example.com/", nil)
	assert.ErrorContains(t, err, "unexpected status 404")
}

func TestSiteFetcher_Fetch_RejectsInternalTargets(t *testing.T) {
	fetcher := NewSiteFetcher(SiteFetcherOptions{})

	for _, target := range []string{
		"http://localhost:8080/",
		"http://127.0.0.1/",
		"http://10.0.0.5/admin",
		"ftp://example.com/",
	} {
		_, err := fetcher.Fetch(context.Background(), target, nil)
		assert.Error(t, err, "target %s should be rejected", target)
	}
}

func TestSiteFetcher_Fetch_CancelledContext(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`ok`))
	})
	fetcher := newTestFetcher(t, handler, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetcher.Fetch(ctx, "https://example.com/", nil)
	assert.Error(t, err)
}
