package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Markets</title>
    <item>
      <title>Feed story one</title>
      <link>https://example.com/markets/one</link>
      <description>First feed excerpt</description>
    </item>
    <item>
      <title>Feed story two</title>
      <link>https://example.com/markets/two</link>
      <description>Second feed excerpt</description>
    </item>
    <item>
      <title>No link, skipped</title>
      <description>orphan</description>
    </item>
  </channel>
</rss>`

func TestFeedFetcher_NextPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFeed)
	}))
	defer server.Close()

	f := NewFeedFetcher(map[string]string{"markets": server.URL})

	stubs, hasMore, err := f.NextPage(context.Background(), "markets", 0)
	require.NoError(t, err)
	assert.False(t, hasMore, "a feed is a single page")
	require.Len(t, stubs, 2, "entries without a link are skipped")
	assert.Equal(t, "Feed story one", stubs[0].Title)
	assert.Equal(t, "First feed excerpt", stubs[0].Summary)
	assert.Equal(t, "https://example.com/markets/one", stubs[0].Link)
}

func TestFeedFetcher_SecondPageIsEmpty(t *testing.T) {
	f := NewFeedFetcher(map[string]string{"markets": "http://unused.invalid/feed"})

	stubs, hasMore, err := f.NextPage(context.Background(), "markets", 1)
	require.NoError(t, err)
	assert.Empty(t, stubs)
	assert.False(t, hasMore)
}

func TestFeedFetcher_UnknownSection(t *testing.T) {
	f := NewFeedFetcher(map[string]string{})
	_, _, err := f.NextPage(context.Background(), "markets", 0)
	assert.Error(t, err)
}
