// Package normalize converts raw per-source payloads into the canonical
// Article record. It is the only place that knows the shape differences
// between the own-site detail payload and the enrichment search payload;
// callers pick the entry point for the shape they hold.
package normalize

import (
	"fmt"
	"time"

	"newsharvest/article"
)

// DetailTimeLayout is the fixed-width own-site timestamp format. It carries
// no timezone; values are taken as UTC.
const DetailTimeLayout = "2006-01-02T15:04:05"

// EnrichmentTimeLayout is the search-API timestamp format, with a trailing
// UTC marker.
const EnrichmentTimeLayout = time.RFC3339

// EnrichmentCategory is the fixed category assigned to every article that
// came from the enrichment source. It is not derived from content.
const EnrichmentCategory = "Enriched data"

// UnknownAuthor substitutes for a missing author in enrichment payloads.
const UnknownAuthor = "Unknown"

// Detail builds a canonical Article from a listing stub and its own-site
// detail payload. seq is the run-scoped sequence number to assign. A
// malformed timestamp or a payload without a category is an error for this
// one article; the caller drops it and continues with the rest of the
// batch.
func Detail(stub article.Stub, detail article.RawDetail, seq int, source string) (article.Article, error) {
	publishedAt, err := time.ParseInLocation(DetailTimeLayout, detail.Published, time.UTC)
	if err != nil {
		return article.Article{}, fmt.Errorf("malformed publish timestamp %q: %w", detail.Published, err)
	}

	// Every article carries at least one category.
	if detail.Category == "" {
		return article.Article{}, fmt.Errorf("missing category for %s", stub.Link)
	}

	title := detail.Headline
	if title == "" {
		title = stub.Title
	}
	summary := detail.Excerpt
	if summary == "" {
		summary = stub.Summary
	}

	return article.Article{
		SequenceNumber: seq,
		Title:          title,
		Summary:        summary,
		Authors:        append([]string{}, detail.Authors...),
		Link:           stub.Link,
		Tags:           append([]string{}, detail.Tags...),
		Categories:     []string{detail.Category},
		PublishedAt:    publishedAt,
		Source:         source,
	}, nil
}

// Enrichment builds a canonical Article from a search-API payload. The
// article is tagged with the search tag and filed under the fixed
// enrichment category. Missing author and description fall back to
// sentinel values rather than failing.
func Enrichment(raw article.RawEnrichment, tag string, seq int, source string) (article.Article, error) {
	publishedAt, err := time.Parse(EnrichmentTimeLayout, raw.PublishedAt)
	if err != nil {
		return article.Article{}, fmt.Errorf("malformed publish timestamp %q: %w", raw.PublishedAt, err)
	}

	author := raw.Author
	if author == "" {
		author = UnknownAuthor
	}

	return article.Article{
		SequenceNumber: seq,
		Title:          raw.Title,
		Summary:        raw.Description,
		Authors:        []string{author},
		Link:           raw.URL,
		Tags:           []string{tag},
		Categories:     []string{EnrichmentCategory},
		PublishedAt:    publishedAt,
		Source:         source,
	}, nil
}
