// Package traits defines the two (plus one read-only) interfaces the scout
// pipeline depends on for everything outside its own process: ContentFetcher
// for the archive/network boundary, SignalStore for graph writes, and
// SignalReader for the read-side queries discovery/linker/beacon need.
//
// Real implementations wrap an HTTP/headless-browser archive and a
// labeled-property-graph driver (internal/scout/store/arango). Test
// implementations are in-memory maps (internal/scout/store/memory). Prefer
// this small closed set of adapters over open-ended plugin loading.
package traits

import "context"

// ArchivedPage is a fetched and rendered web page.
type ArchivedPage struct {
	URL            string
	Markdown       string
	RawHTML        string
	Title          string
	OutboundLinks  []string
	PublishedAt    *string // RFC3339, optional
	ContentHash    string
}

// FeedItem is one entry from an RSS/Atom feed.
type FeedItem struct {
	URL     string
	Title   string
	PubDate *string
}

// ArchivedFeed is a fetched RSS/Atom feed.
type ArchivedFeed struct {
	URL   string
	Items []FeedItem
}

// Post is a single social media post.
type Post struct {
	Text        string
	Author      string
	Permalink   string
	Engagement  int
	Mentions    []string
	Hashtags    []string
	MediaType   string
	PublishedAt *string
}

// SearchResult is one hit from a web search.
type SearchResult struct {
	URL     string
	Title   string
	Snippet string
}

// ArchivedSearchResults is a fetched search-result set.
type ArchivedSearchResults struct {
	Query   string
	Results []SearchResult
}

// ContentFetcher is the only surface through which the core touches the
// outside world.
type ContentFetcher interface {
	// Page fetches and renders a web page to markdown.
	Page(ctx context.Context, url string) (ArchivedPage, error)
	// Feed fetches an RSS/Atom feed.
	Feed(ctx context.Context, url string) (ArchivedFeed, error)
	// Posts fetches social media posts for an account.
	Posts(ctx context.Context, identifier string, limit int) ([]Post, error)
	// Search runs a web search query.
	Search(ctx context.Context, query string) (ArchivedSearchResults, error)
	// SearchTopics searches social platforms by topic keywords.
	SearchTopics(ctx context.Context, platformURL string, topics []string, limit int) ([]Post, error)
	// SiteSearch runs a site-scoped web search.
	SiteSearch(ctx context.Context, query string, maxResults int) (ArchivedSearchResults, error)
}
