package fetch

import (
	"context"

	"github.com/mmcdole/gofeed"
	"github.com/pkg/errors"

	"newsharvest/article"
)

// FeedFetcher serves listing stubs from RSS or Atom feeds instead of HTML
// listing pages. A feed is a single page: the first request returns every
// entry and reports no further pages.
type FeedFetcher struct {
	feeds  map[string]string
	parser *gofeed.Parser
}

// NewFeedFetcher creates a fetcher over a section-name to feed-URL map.
func NewFeedFetcher(feeds map[string]string) *FeedFetcher {
	return &FeedFetcher{
		feeds:  feeds,
		parser: gofeed.NewParser(),
	}
}

// NextPage returns the feed entries for a section as listing stubs. gofeed
// detects RSS and Atom transparently.
func (f *FeedFetcher) NextPage(ctx context.Context, section string, page int) ([]article.Stub, bool, error) {
	url, ok := f.feeds[section]
	if !ok {
		return nil, false, errors.Errorf("no feed configured for section %q", section)
	}

	if page > 0 {
		return nil, false, nil
	}

	feed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, false, &TransientError{Op: "fetch feed " + url, Err: err}
	}

	stubs := make([]article.Stub, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}
		stubs = append(stubs, article.Stub{
			Title:   item.Title,
			Summary: item.Description,
			Link:    item.Link,
		})
	}

	return stubs, false, nil
}
