// Package fetch implements the external collaborators of the ingestion
// pipeline: the paginated listing fetcher and the per-article detail
// fetcher for the harvested site, plus an RSS-backed listing alternative.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"newsharvest/article"
	"newsharvest/log"
)

// ErrArticleNotFound marks a permanent per-article failure: the page was
// removed or never existed. The controller drops the article and continues.
var ErrArticleNotFound = errors.New("article not found")

// TransientError wraps a retryable failure (timeout, network, non-OK
// status). A transient error aborts the whole run; the caller may retry it.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Sections maps the supported section names to their listing URL paths.
var Sections = map[string]string{
	"latest":     "/news",
	"tech":       "/news/tech",
	"business":   "/news/business",
	"people":     "/news/people",
	"regulation": "/news/policy-regulation",
	"features":   "/features",
	"opinion":    "/opinion",
	"markets":    "/markets",
}

// SectionPath resolves a section name to its URL path.
func SectionPath(section string) (string, error) {
	path, ok := Sections[section]
	if !ok {
		return "", errors.Errorf("unknown section %q", section)
	}
	return path, nil
}

// Listing page selectors.
const (
	stubSelector    = "div.story-stack a[title]"
	summarySelector = "p.excerpt"
	moreSelector    = "a.cta-story-stack"
)

// detailPayload is the wire shape embedded in an article page's
// __NEXT_DATA__ script tag.
type detailPayload struct {
	Headline string `json:"headline"`
	Excerpt  string `json:"excerpt"`
	Authors  []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Tags []struct {
		Name string `json:"name"`
	} `json:"tags"`
	Published string `json:"published"`
	Taxonomy  struct {
		Category string `json:"category"`
	} `json:"taxonomy"`
}

type nextData struct {
	Props struct {
		InitialProps struct {
			PageProps struct {
				Data *detailPayload `json:"data"`
			} `json:"pageProps"`
		} `json:"initialProps"`
	} `json:"props"`
}

// DetailResult carries the outcome of one detail fetch. Exactly one of
// Detail and Err is set.
type DetailResult struct {
	Link   string
	Detail *article.RawDetail
	Err    error
}

// SiteFetcher retrieves listing pages and article details over HTTP.
type SiteFetcher struct {
	baseURL     string
	client      *http.Client
	concurrency int
	log         zerolog.Logger
}

// NewSiteFetcher creates a fetcher for the site at baseURL. Every request
// enforces timeout; concurrency bounds in-flight detail fetches.
func NewSiteFetcher(baseURL string, timeout time.Duration, concurrency int) *SiteFetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SiteFetcher{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
		concurrency: concurrency,
		log:         log.NewLogger("fetch"),
	}
}

// NextPage fetches one listing page of a section. page is zero-based. The
// returned flag reports whether the listing advertises more pages.
func (f *SiteFetcher) NextPage(ctx context.Context, section string, page int) ([]article.Stub, bool, error) {
	path, err := SectionPath(section)
	if err != nil {
		return nil, false, err
	}

	url := f.baseURL + path
	if page > 0 {
		url = fmt.Sprintf("%s?page=%d", url, page+1)
	}

	doc, err := f.fetchDocument(ctx, url)
	if err != nil {
		return nil, false, err
	}

	var stubs []article.Stub
	doc.Find(stubSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		stubs = append(stubs, article.Stub{
			Title:   sel.AttrOr("title", sel.Text()),
			Summary: sel.Find(summarySelector).First().Text(),
			Link:    f.absoluteURL(href),
		})
	})

	hasMore := doc.Find(moreSelector).Length() > 0
	f.log.Debug().Str("section", section).Int("page", page).Int("stubs", len(stubs)).Bool("hasMore", hasMore).Msg("Fetched listing page")

	return stubs, hasMore, nil
}

// FetchDetails retrieves the full payload for every link concurrently. The
// result slice is order-preserving with one entry per input link; failures
// are reported per link, never by aborting the group.
func (f *SiteFetcher) FetchDetails(ctx context.Context, links []string) []DetailResult {
	results := make([]DetailResult, len(links))

	var eg errgroup.Group
	eg.SetLimit(f.concurrency)

	for i, link := range links {
		i, link := i, link
		eg.Go(func() error {
			detail, err := f.fetchDetail(ctx, link)
			results[i] = DetailResult{Link: link, Detail: detail, Err: err}
			return nil
		})
	}

	// Goroutines report through the results slice, so Wait cannot fail.
	_ = eg.Wait()

	return results
}

// fetchDetail retrieves one article page and extracts its embedded payload.
func (f *SiteFetcher) fetchDetail(ctx context.Context, link string) (*article.RawDetail, error) {
	doc, err := f.fetchDocument(ctx, link)
	if err != nil {
		return nil, err
	}

	raw := doc.Find("script#__NEXT_DATA__").First().Text()
	if raw == "" {
		return nil, errors.Wrap(ErrArticleNotFound, link)
	}

	var payload nextData
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, errors.Wrapf(err, "failed to decode article payload for %s", link)
	}

	data := payload.Props.InitialProps.PageProps.Data
	if data == nil {
		// The site serves its 404 page with an empty data key.
		return nil, errors.Wrap(ErrArticleNotFound, link)
	}

	detail := &article.RawDetail{
		Headline:  data.Headline,
		Excerpt:   data.Excerpt,
		Published: data.Published,
		Category:  data.Taxonomy.Category,
	}
	for _, a := range data.Authors {
		detail.Authors = append(detail.Authors, a.Name)
	}
	for _, t := range data.Tags {
		detail.Tags = append(detail.Tags, t.Name)
	}

	return detail, nil
}

// fetchDocument performs one GET and parses the response as HTML.
func (f *SiteFetcher) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", "newsharvest/1.0 (article ingestion pipeline)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransientError{Op: "fetch " + url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, errors.Wrap(ErrArticleNotFound, url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransientError{Op: "fetch " + url, Err: errors.Errorf("HTTP %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse HTML")
	}

	return doc, nil
}

// absoluteURL resolves a listing href against the fetcher's base URL.
func (f *SiteFetcher) absoluteURL(href string) string {
	if len(href) > 0 && href[0] == '/' {
		return f.baseURL + href
	}
	return href
}
