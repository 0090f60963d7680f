package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams() Params {
	return Params{
		Tag:        "bitcoin",
		MaxResults: 20,
		SortBy:     SortPublishedAt,
	}
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		wantOK bool
	}{
		{"valid", func(*Params) {}, true},
		{"empty tag", func(p *Params) { p.Tag = "" }, false},
		{"zero results", func(p *Params) { p.MaxResults = 0 }, false},
		{"too many results", func(p *Params) { p.MaxResults = 101 }, false},
		{"boundary results", func(p *Params) { p.MaxResults = 100 }, true},
		{"bad from date", func(p *Params) { p.FromDate = "14-08-2026" }, false},
		{"good from date", func(p *Params) { p.FromDate = "2026-08-14" }, true},
		{"bad to date", func(p *Params) { p.ToDate = "tomorrow" }, false},
		{"bad sort", func(p *Params) { p.SortBy = "newest" }, false},
		{"popularity sort", func(p *Params) { p.SortBy = SortPopularity }, true},
		{"relevancy sort", func(p *Params) { p.SortBy = SortRelevancy }, true},
		{"empty domain entry", func(p *Params) { p.Domains = []string{"a.com", ""} }, false},
		{"domain with comma", func(p *Params) { p.Domains = []string{"a.com,b.com"} }, false},
		{"good domains", func(p *Params) { p.Domains = []string{"a.com", "b.com"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantOK {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSearch_BuildsRequestAndDecodes(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/everything", r.URL.Path)
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{"status":"ok","articles":[
			{"title":"Elsewhere","description":"A take","author":"Casey Lee","url":"https://elsewhere.example/take","publishedAt":"2026-08-14T09:30:00Z"},
			{"title":"Anonymous","description":null,"author":null,"url":"https://elsewhere.example/anon","publishedAt":"2026-08-13T10:00:00Z"}
		]}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, "secret", "coindesk.com", 5*time.Second)
	p := validParams()
	p.FromDate = "2026-08-01"
	p.Domains = []string{"elsewhere.example"}

	raws, err := c.Search(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, "bitcoin", gotQuery.Get("q"))
	assert.Equal(t, "20", gotQuery.Get("pageSize"))
	assert.Equal(t, "en", gotQuery.Get("language"))
	assert.Equal(t, "publishedAt", gotQuery.Get("sortBy"))
	assert.Equal(t, "secret", gotQuery.Get("apiKey"))
	assert.Equal(t, "coindesk.com", gotQuery.Get("excludeDomains"))
	assert.Equal(t, "2026-08-01", gotQuery.Get("from"))
	assert.Equal(t, "elsewhere.example", gotQuery.Get("domains"))

	require.Len(t, raws, 2)
	assert.Equal(t, "Elsewhere", raws[0].Title)
	assert.Equal(t, "Casey Lee", raws[0].Author)
	assert.Empty(t, raws[1].Author, "null author decodes to the empty string")
}

func TestSearch_InvalidParamsFailBeforeNetwork(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer server.Close()

	c := NewClient(server.URL, "secret", "", time.Second)
	p := validParams()
	p.MaxResults = 0

	_, err := c.Search(context.Background(), p)
	require.Error(t, err)
	assert.False(t, called, "validation must fail fast, before any request")
}

func TestSearch_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"status":"error","message":"apiKey invalid"}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, "bad-key", "", time.Second)
	_, err := c.Search(context.Background(), validParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apiKey invalid")
}

func TestSearch_NonJSONErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "<html><body>502 Bad Gateway</body></html>")
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key", "", time.Second)
	_, err := c.Search(context.Background(), validParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
	assert.NotContains(t, err.Error(), "decode")
}
