// Package enrich queries a third-party news search API for articles
// matching a tag. Results feed the same normalize-and-persist tail as the
// own-site pipeline.
package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"newsharvest/article"
	"newsharvest/log"
)

// Sort orders accepted by the search API.
const (
	SortPublishedAt = "publishedAt"
	SortPopularity  = "popularity"
	SortRelevancy   = "relevancy"
)

// MaxResultsLimit is the largest page size the API accepts.
const MaxResultsLimit = 100

const dateLayout = "2006-01-02"

// Params describes one search request. Validation happens before any
// network call.
type Params struct {
	Tag        string
	MaxResults int
	FromDate   string // YYYY-MM-DD, optional
	ToDate     string // YYYY-MM-DD, optional
	Domains    []string
	SortBy     string
}

// Validate fails fast with a descriptive configuration error for any
// out-of-contract parameter.
func (p Params) Validate() error {
	if p.Tag == "" {
		return errors.New("enrichment tag must not be empty")
	}
	if p.MaxResults < 1 || p.MaxResults > MaxResultsLimit {
		return errors.Errorf("max results must be between 1 and %d, got %d", MaxResultsLimit, p.MaxResults)
	}
	if p.FromDate != "" {
		if _, err := time.Parse(dateLayout, p.FromDate); err != nil {
			return errors.Errorf("from date %q is not in YYYY-MM-DD format", p.FromDate)
		}
	}
	if p.ToDate != "" {
		if _, err := time.Parse(dateLayout, p.ToDate); err != nil {
			return errors.Errorf("to date %q is not in YYYY-MM-DD format", p.ToDate)
		}
	}
	for _, domain := range p.Domains {
		if domain == "" || strings.ContainsAny(domain, ", ") {
			return errors.Errorf("invalid domain entry %q", domain)
		}
	}
	switch p.SortBy {
	case SortPublishedAt, SortPopularity, SortRelevancy:
	default:
		return errors.Errorf("sort order %q is not one of %s, %s, %s",
			p.SortBy, SortPublishedAt, SortPopularity, SortRelevancy)
	}
	return nil
}

// Client calls the search API.
type Client struct {
	baseURL       string
	apiKey        string
	excludeDomain string
	client        *http.Client
	log           zerolog.Logger
}

// NewClient creates a search client. excludeDomain keeps the harvested
// site's own articles out of enrichment results.
func NewClient(baseURL, apiKey, excludeDomain string, timeout time.Duration) *Client {
	return &Client{
		baseURL:       baseURL,
		apiKey:        apiKey,
		excludeDomain: excludeDomain,
		client: &http.Client{
			Timeout: timeout,
		},
		log: log.NewLogger("enrich"),
	}
}

type searchResponse struct {
	Status   string                  `json:"status"`
	Message  string                  `json:"message"`
	Articles []article.RawEnrichment `json:"articles"`
}

// Search validates params and returns the raw article payloads for a tag.
func (c *Client) Search(ctx context.Context, p Params) ([]article.RawEnrichment, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("q", p.Tag)
	query.Set("pageSize", strconv.Itoa(p.MaxResults))
	query.Set("language", "en")
	query.Set("sortBy", p.SortBy)
	query.Set("apiKey", c.apiKey)
	if c.excludeDomain != "" {
		query.Set("excludeDomains", c.excludeDomain)
	}
	if p.FromDate != "" {
		query.Set("from", p.FromDate)
	}
	if p.ToDate != "" {
		query.Set("to", p.ToDate)
	}
	if len(p.Domains) > 0 {
		query.Set("domains", strings.Join(p.Domains, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/everything?"+query.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create search request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "search request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// The body may carry a JSON error message, but error pages from
		// intermediaries are often not JSON at all.
		var decoded searchResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err == nil && decoded.Message != "" {
			return nil, errors.Errorf("search API error (HTTP %d): %s", resp.StatusCode, decoded.Message)
		}
		return nil, errors.Errorf("search API error (HTTP %d)", resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "failed to decode search response")
	}

	if decoded.Status != "ok" {
		return nil, errors.Errorf("search API error: %s", decoded.Message)
	}

	c.log.Info().Str("tag", p.Tag).Int("results", len(decoded.Articles)).Msg("Search completed")

	return decoded.Articles, nil
}
