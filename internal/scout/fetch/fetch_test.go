package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPage_StripsScriptsAndResolvesLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Block Party</title><script>evil()</script></head>
<body><p>Join us Saturday.</p><a href="/rsvp">RSVP</a></body></html>`))
	}))
	defer srv.Close()

	f := New(nil, nil)
	page, err := f.Page(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "Block Party", page.Title)
	assert.Contains(t, page.Markdown, "Join us Saturday.")
	assert.NotContains(t, page.Markdown, "evil()")
	require.Len(t, page.OutboundLinks, 1)
	assert.Equal(t, srv.URL+"/rsvp", page.OutboundLinks[0])
	assert.NotEmpty(t, page.ContentHash)
}

func TestFeed_ParsesRSS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><rss><channel>
<item><title>Food Drive</title><link>https://example.com/food</link><pubDate>Mon, 01 Jan 2024 00:00:00 GMT</pubDate></item>
</channel></rss>`))
	}))
	defer srv.Close()

	f := New(nil, nil)
	feed, err := f.Feed(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "Food Drive", feed.Items[0].Title)
	assert.Equal(t, "https://example.com/food", feed.Items[0].URL)
	require.NotNil(t, feed.Items[0].PubDate)
}

func TestFeed_ParsesAtom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><feed>
<entry><title>Shelter Opening</title><link href="https://example.com/shelter"/><published>2024-01-01T00:00:00Z</published></entry>
</feed>`))
	}))
	defer srv.Close()

	f := New(nil, nil)
	feed, err := f.Feed(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "Shelter Opening", feed.Items[0].Title)
	assert.Equal(t, "https://example.com/shelter", feed.Items[0].URL)
}

func TestSearch_NoProviderConfigured(t *testing.T) {
	f := New(nil, nil)
	_, err := f.Search(context.Background(), "mutual aid minneapolis")
	assert.Error(t, err)
}

func TestPosts_NoProviderConfigured(t *testing.T) {
	f := New(nil, nil)
	_, err := f.Posts(context.Background(), "@example", 10)
	assert.Error(t, err)
}
