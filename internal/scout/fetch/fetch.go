// Package fetch is the concrete traits.ContentFetcher adapter: the one
// surface through which the scout core touches the outside world. Built on
// net/http and encoding/xml (see DESIGN.md for why no third-party
// scraping/rendering library is used here), with a semaphore of 2 gating
// the page fetcher the way a real headless renderer would need to be
// gated.
package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"rootsignal.dev/scout/internal/scout/traits"
)

const (
	defaultTimeout  = 20 * time.Second
	headlessSlots   = 2
	maxResponseSize = 5 << 20 // 5MB
)

// Fetcher is the HTTP-backed traits.ContentFetcher. Search/SiteSearch
// require a search-provider client injected via SearchProvider, and
// Posts/SearchTopics require a SocialProvider; a nil provider makes its
// methods return an error.
type Fetcher struct {
	client   *http.Client
	headless chan struct{}
	search   SearchProvider
	social   SocialProvider
}

// SearchProvider performs web search queries (e.g. a Tavily-style API).
// Kept as an injected interface since SPEC_FULL's domain stack doesn't name
// a specific search SDK from the example corpus.
type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) ([]traits.SearchResult, error)
}

// SocialProvider fetches social media posts/topics for platforms the
// fetcher doesn't speak natively (reddit/twitter/instagram/etc. all have
// distinct, frequently-changing unofficial APIs; out of this module's
// scope to vendor one — see Non-goals).
type SocialProvider interface {
	Posts(ctx context.Context, identifier string, limit int) ([]traits.Post, error)
	SearchTopics(ctx context.Context, platformURL string, topics []string, limit int) ([]traits.Post, error)
}

// New builds a Fetcher. search/social may be nil in deployments that only
// exercise the Page/Feed surfaces (e.g. unit tests, curated-source-only
// regions).
func New(search SearchProvider, social SocialProvider) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: defaultTimeout},
		headless: make(chan struct{}, headlessSlots),
		search:   search,
		social:   social,
	}
}

var _ traits.ContentFetcher = (*Fetcher)(nil)

// Page fetches and renders a web page to a plain-text approximation of
// markdown: scripts/styles stripped, block tags become newlines. Serializes
// behind the headless semaphore since a future swap to a real headless
// renderer (the domain stack's likely next step) would need the same gate.
func (f *Fetcher) Page(ctx context.Context, pageURL string) (traits.ArchivedPage, error) {
	select {
	case f.headless <- struct{}{}:
	case <-ctx.Done():
		return traits.ArchivedPage{}, ctx.Err()
	}
	defer func() { <-f.headless }()

	body, finalURL, err := f.get(ctx, pageURL)
	if err != nil {
		return traits.ArchivedPage{}, fmt.Errorf("fetch: page %s: %w", pageURL, err)
	}

	title := extractTitle(body)
	markdown := htmlToText(body)
	links := extractLinks(body, finalURL)

	return traits.ArchivedPage{
		URL:           finalURL,
		Markdown:      markdown,
		RawHTML:       body,
		Title:         title,
		OutboundLinks: links,
		ContentHash:   contentHash(markdown),
	}, nil
}

// Feed fetches and parses an RSS/Atom feed via encoding/xml.
func (f *Fetcher) Feed(ctx context.Context, feedURL string) (traits.ArchivedFeed, error) {
	body, _, err := f.get(ctx, feedURL)
	if err != nil {
		return traits.ArchivedFeed{}, fmt.Errorf("fetch: feed %s: %w", feedURL, err)
	}
	items, err := parseFeed(body)
	if err != nil {
		return traits.ArchivedFeed{}, fmt.Errorf("fetch: parse feed %s: %w", feedURL, err)
	}
	return traits.ArchivedFeed{URL: feedURL, Items: items}, nil
}

// Posts delegates to the injected SocialProvider.
func (f *Fetcher) Posts(ctx context.Context, identifier string, limit int) ([]traits.Post, error) {
	if f.social == nil {
		return nil, fmt.Errorf("fetch: no social provider configured")
	}
	return f.social.Posts(ctx, identifier, limit)
}

// Search delegates to the injected SearchProvider.
func (f *Fetcher) Search(ctx context.Context, query string) (traits.ArchivedSearchResults, error) {
	if f.search == nil {
		return traits.ArchivedSearchResults{}, fmt.Errorf("fetch: no search provider configured")
	}
	results, err := f.search.Search(ctx, query, 10)
	if err != nil {
		return traits.ArchivedSearchResults{}, err
	}
	return traits.ArchivedSearchResults{Query: query, Results: results}, nil
}

// SearchTopics delegates to the injected SocialProvider.
func (f *Fetcher) SearchTopics(ctx context.Context, platformURL string, topics []string, limit int) ([]traits.Post, error) {
	if f.social == nil {
		return nil, fmt.Errorf("fetch: no social provider configured")
	}
	return f.social.SearchTopics(ctx, platformURL, topics, limit)
}

// SiteSearch delegates to the injected SearchProvider, scoped to one site.
func (f *Fetcher) SiteSearch(ctx context.Context, query string, maxResults int) (traits.ArchivedSearchResults, error) {
	if f.search == nil {
		return traits.ArchivedSearchResults{}, fmt.Errorf("fetch: no search provider configured")
	}
	results, err := f.search.Search(ctx, query, maxResults)
	if err != nil {
		return traits.ArchivedSearchResults{}, err
	}
	return traits.ArchivedSearchResults{Query: query, Results: results}, nil
}

func (f *Fetcher) get(ctx context.Context, target string) (body string, finalURL string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", "rootsignal-scout/1.0 (+civic signal discovery)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", "", fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", "", err
	}
	return string(data), resp.Request.URL.String(), nil
}

var (
	titleRE  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptRE = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagRE    = regexp.MustCompile(`(?is)<[^>]+>`)
	hrefRE   = regexp.MustCompile(`(?is)<a\s+[^>]*href\s*=\s*["']([^"']+)["']`)
	blockRE  = regexp.MustCompile(`(?is)</(p|div|br|li|h1|h2|h3|h4|h5|h6)\s*>`)
	spacesRE = regexp.MustCompile(`[ \t]+`)
	blanksRE = regexp.MustCompile(`\n{3,}`)
)

func extractTitle(html string) string {
	m := titleRE.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(tagRE.ReplaceAllString(m[1], ""))
}

func htmlToText(html string) string {
	stripped := scriptRE.ReplaceAllString(html, "")
	stripped = blockRE.ReplaceAllString(stripped, "\n")
	stripped = tagRE.ReplaceAllString(stripped, "")
	stripped = spacesRE.ReplaceAllString(stripped, " ")
	stripped = blanksRE.ReplaceAllString(stripped, "\n\n")
	return strings.TrimSpace(stripped)
}

func extractLinks(html, baseURL string) []string {
	base, err := url.Parse(baseURL)
	matches := hrefRE.FindAllStringSubmatch(html, -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		href := m[1]
		resolved := href
		if err == nil {
			if u, perr := url.Parse(href); perr == nil {
				resolved = base.ResolveReference(u).String()
			}
		}
		if seen[resolved] {
			continue
		}
		seen[resolved] = true
		out = append(out, resolved)
	}
	return out
}

func contentHash(text string) string {
	// A cheap, deterministic fingerprint for change detection
	// (ContentAlreadyProcessed / ContentUnchanged) — cryptographic strength
	// isn't needed since collisions only cost a redundant re-extraction.
	var h uint64 = 1469598103934665603 // FNV-1a offset basis
	for i := 0; i < len(text); i++ {
		h ^= uint64(text[i])
		h *= 1099511628211
	}
	return fmt.Sprintf("%016x", h)
}

// --- RSS/Atom parsing ---

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string `xml:"title"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
	Link      struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
}

func parseFeed(body string) ([]traits.FeedItem, error) {
	var rss rssFeed
	if err := xml.Unmarshal([]byte(body), &rss); err == nil && len(rss.Channel.Items) > 0 {
		items := make([]traits.FeedItem, 0, len(rss.Channel.Items))
		for _, it := range rss.Channel.Items {
			item := traits.FeedItem{URL: it.Link, Title: it.Title}
			if it.PubDate != "" {
				pd := it.PubDate
				item.PubDate = &pd
			}
			items = append(items, item)
		}
		return items, nil
	}

	var atom atomFeed
	if err := xml.Unmarshal([]byte(body), &atom); err != nil {
		return nil, err
	}
	items := make([]traits.FeedItem, 0, len(atom.Entries))
	for _, e := range atom.Entries {
		item := traits.FeedItem{URL: e.Link.Href, Title: e.Title}
		pd := e.Published
		if pd == "" {
			pd = e.Updated
		}
		if pd != "" {
			items = append(items[:len(items)], item)
			items[len(items)-1].PubDate = &pd
			continue
		}
		items = append(items, item)
	}
	return items, nil
}
