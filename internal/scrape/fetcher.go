// Package scrape implements the extraction collaborators: a site fetcher and
// a structured-data analyzer. Both sit behind the core ports so alternative
// implementations can be swapped in.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/pagescope/scraper-engine/internal/core"
	"github.com/pagescope/scraper-engine/internal/domain/model"
)

const (
	defaultUserAgent   = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
	defaultMaxPages    = 5
	defaultFetchLimit  = 2 << 20 // 2 MiB per page
	defaultHTTPTimeout = 30 * time.Second
)

// Sub-page link keywords worth following from the landing page, in priority
// order.
var interestingPaths = []string{"pricing", "about", "features", "product", "contact"}

// SiteFetcherOptions configure the default Fetcher implementation.
type SiteFetcherOptions struct {
	HTTPClient *http.Client // Optional: defaults to a 30s-timeout client
	UserAgent  string       // Optional
	MaxPages   int          // Optional: total page budget including the landing page
}

// SiteFetcher fetches a site's landing page plus a bounded set of linked
// sub-pages that tend to carry product information.
type SiteFetcher struct {
	client    *http.Client
	userAgent string
	maxPages  int
}

// NewSiteFetcher constructs a SiteFetcher.
func NewSiteFetcher(opts SiteFetcherOptions) *SiteFetcher {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &SiteFetcher{client: client, userAgent: userAgent, maxPages: maxPages}
}

// Fetch retrieves the landing page and up to maxPages-1 interesting sub-pages.
// onPageRead fires before each page fetch. A failed landing-page fetch fails
// the whole call; failed sub-pages are skipped.
func (f *SiteFetcher) Fetch(ctx context.Context, rawURL string, onPageRead func(url string)) ([]core.Page, error) {
	if err := model.ValidateScrapeURL(rawURL); err != nil {
		return nil, err
	}

	if onPageRead != nil {
		onPageRead(rawURL)
	}
	landing, err := f.fetchPage(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	pages := []core.Page{{URL: rawURL, HTML: landing}}

	for _, sub := range f.selectSubPages(rawURL, landing) {
		if len(pages) >= f.maxPages {
			break
		}
		if onPageRead != nil {
			onPageRead(sub)
		}
		body, ferr := f.fetchPage(ctx, sub)
		if ferr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		pages = append(pages, core.Page{URL: sub, HTML: body})
	}

	return pages, nil
}

func (f *SiteFetcher) fetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, defaultFetchLimit))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// selectSubPages picks same-host links from the landing page whose path
// matches one of the interesting keywords, deduplicated, in keyword priority
// order.
func (f *SiteFetcher) selectSubPages(baseURL, landingHTML string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	links := extractLinks(landingHTML)

	seen := map[string]struct{}{normalizeURL(base): {}}
	var selected []string
	for _, keyword := range interestingPaths {
		for _, link := range links {
			resolved := resolveLink(base, link)
			if resolved == nil || resolved.Hostname() != base.Hostname() {
				continue
			}
			if !strings.Contains(strings.ToLower(resolved.Path), keyword) {
				continue
			}
			key := normalizeURL(resolved)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			selected = append(selected, resolved.String())
		}
	}
	return selected
}

// extractLinks returns every href on the page, in document order.
func extractLinks(rawHTML string) []string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" && attr.Val != "" && attr.Val != "#" {
					links = append(links, attr.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links
}

func resolveLink(base *url.URL, href string) *url.URL {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return nil
	}
	resolved.Fragment = ""
	return resolved
}

func normalizeURL(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawQuery = ""
	return strings.TrimSuffix(c.String(), "/")
}

var _ core.Fetcher = (*SiteFetcher)(nil)

// ErrNoContent indicates a fetch produced no usable pages.
var ErrNoContent = errors.New("no usable page content")
