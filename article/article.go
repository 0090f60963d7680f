package article

import "time"

// Article is the canonical record produced by normalization. It is
// constructed once and never mutated afterwards; the persistence layer
// treats it as read-only input.
type Article struct {
	// SequenceNumber is assigned by the ingestion run in listing order,
	// starting at 1. It exists only for stop-condition checks and is not
	// stored as identity.
	SequenceNumber int

	Title   string
	Summary string

	// Authors preserves the order reported by the source. Enrichment
	// payloads without an author carry a single "Unknown" entry.
	Authors []string

	// Link is the absolute article URL and the natural dedup key at the
	// storage boundary.
	Link string

	Tags       []string
	Categories []string

	PublishedAt time.Time

	// Source names the site the article came from; relevance queries such
	// as tag popularity are scoped by it.
	Source string
}

// Stub is the minimal per-article data available on a listing page before
// the full article is fetched.
type Stub struct {
	Title   string
	Summary string
	Link    string
}

// RawDetail is the own-site per-article payload extracted from an article
// page. Published is a fixed-width timestamp without a timezone
// (YYYY-MM-DDTHH:MM:SS).
type RawDetail struct {
	Headline  string   `json:"headline"`
	Excerpt   string   `json:"excerpt"`
	Authors   []string `json:"authors"`
	Tags      []string `json:"tags"`
	Category  string   `json:"category"`
	Published string   `json:"published"`
}

// RawEnrichment is a third-party search-API article payload. PublishedAt
// carries a trailing Z (UTC marker). Author and Description may be empty.
type RawEnrichment struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}
