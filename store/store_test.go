package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsharvest/article"
)

// Test helper: create a store backed by a temp database
func createTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	require.NoError(t, err, "should create store")
	t.Cleanup(func() { s.Close() })
	return s
}

// Test helper: a fully populated article
func newTestArticle(link string) article.Article {
	return article.Article{
		SequenceNumber: 1,
		Title:          "Regulators circle",
		Summary:        "A summary of the story",
		Authors:        []string{"Jane Roe", "Sam Doe"},
		Link:           link,
		Tags:           []string{"bitcoin", "regulation"},
		Categories:     []string{"policy"},
		PublishedAt:    time.Date(2026, 8, 14, 9, 30, 0, 0, time.UTC),
		Source:         "coindesk",
	}
}

func TestNew_CreatesSchema(t *testing.T) {
	s := createTestStore(t)

	counts, err := s.TableCounts()
	require.NoError(t, err, "all tables should exist")
	for table, n := range counts {
		assert.Zero(t, n, "table %s should start empty", table)
	}
}

func TestSaveBatch_RoundTrip(t *testing.T) {
	s := createTestStore(t)

	a := newTestArticle("https://example.com/story-1")
	require.NoError(t, s.SaveBatch([]article.Article{a}))

	stored, err := s.GetByURL(a.Link)
	require.NoError(t, err)
	require.NotNil(t, stored)

	assert.Equal(t, a.Title, stored.Title)
	assert.Equal(t, a.Summary, stored.Summary)
	assert.Equal(t, a.Authors, stored.Authors)
	assert.Equal(t, a.Link, stored.Link)
	assert.ElementsMatch(t, a.Tags, stored.Tags)
	assert.ElementsMatch(t, a.Categories, stored.Categories)
	assert.True(t, a.PublishedAt.Equal(stored.PublishedAt))
	assert.Equal(t, a.Source, stored.Source)
}

func TestGetByURL_Unknown(t *testing.T) {
	s := createTestStore(t)

	stored, err := s.GetByURL("https://example.com/nope")
	require.NoError(t, err, "an unknown URL is not an error")
	assert.Nil(t, stored)
}

// Two articles sharing an author name produce one author row and two
// relationship rows.
func TestSaveBatch_SharedEntitiesAreNotDuplicated(t *testing.T) {
	s := createTestStore(t)

	a := newTestArticle("https://example.com/story-1")
	b := newTestArticle("https://example.com/story-2")
	b.Title = "Second story"
	require.NoError(t, s.SaveBatch([]article.Article{a, b}))

	counts, err := s.TableCounts()
	require.NoError(t, err)
	assert.Equal(t, 2, counts["articles"])
	assert.Equal(t, 2, counts["authors"], "shared author names resolve to existing rows")
	assert.Equal(t, 4, counts["authors_in_articles"])
	assert.Equal(t, 2, counts["tags"])
	assert.Equal(t, 4, counts["tags_in_articles"])
	assert.Equal(t, 1, counts["categories"])
	assert.Equal(t, 2, counts["categories_in_articles"])
}

func TestSaveBatch_EntityResolutionAcrossBatches(t *testing.T) {
	s := createTestStore(t)

	a := newTestArticle("https://example.com/story-1")
	require.NoError(t, s.SaveBatch([]article.Article{a}))

	b := newTestArticle("https://example.com/story-2")
	require.NoError(t, s.SaveBatch([]article.Article{b}))

	counts, err := s.TableCounts()
	require.NoError(t, err)
	assert.Equal(t, 2, counts["authors"], "a later batch reuses existing entity ids")
}

func TestSaveBatch_NameMatchingIsCaseSensitive(t *testing.T) {
	s := createTestStore(t)

	a := newTestArticle("https://example.com/story-1")
	b := newTestArticle("https://example.com/story-2")
	b.Authors = []string{"jane roe", "sam doe"}
	require.NoError(t, s.SaveBatch([]article.Article{a, b}))

	counts, err := s.TableCounts()
	require.NoError(t, err)
	assert.Equal(t, 4, counts["authors"], "differently cased names are distinct entities")
}

func TestSaveBatch_DuplicateURLRejectedAndRolledBack(t *testing.T) {
	s := createTestStore(t)

	a := newTestArticle("https://example.com/story-1")
	require.NoError(t, s.SaveBatch([]article.Article{a}))

	// A later batch carrying a fresh article and a duplicate must commit
	// neither.
	fresh := newTestArticle("https://example.com/story-2")
	dup := newTestArticle("https://example.com/story-1")
	err := s.SaveBatch([]article.Article{fresh, dup})
	require.Error(t, err, "a duplicate link violates the unique constraint")

	stored, err := s.GetByURL(fresh.Link)
	require.NoError(t, err)
	assert.Nil(t, stored, "the failed batch must not be partially committed")

	n, err := s.CountArticles()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSaveBatch_EmptyBatchIsANoOp(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.SaveBatch(nil))
}

func TestTopTags_ScopedBySource(t *testing.T) {
	s := createTestStore(t)

	a := newTestArticle("https://example.com/story-1")
	a.Tags = []string{"bitcoin", "mining"}
	b := newTestArticle("https://example.com/story-2")
	b.Tags = []string{"bitcoin"}
	other := newTestArticle("https://elsewhere.example/story-3")
	other.Tags = []string{"ethereum"}
	other.Source = "elsewhere"
	require.NoError(t, s.SaveBatch([]article.Article{a, b, other}))

	tags, err := s.TopTags("coindesk", 10)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, TagCount{Name: "bitcoin", Count: 2}, tags[0])
	assert.Equal(t, TagCount{Name: "mining", Count: 1}, tags[1])
}

func TestReset_DropsAllRows(t *testing.T) {
	s := createTestStore(t)

	require.NoError(t, s.SaveBatch([]article.Article{newTestArticle("https://example.com/story-1")}))
	require.NoError(t, s.Reset())

	n, err := s.CountArticles()
	require.NoError(t, err)
	assert.Zero(t, n)

	// The schema is usable again after reset.
	require.NoError(t, s.SaveBatch([]article.Article{newTestArticle("https://example.com/story-1")}))
}
