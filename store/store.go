// Package store persists canonical articles into a normalized sqlite
// schema. Shared reference entities (authors, tags, categories) are created
// lazily: the first article naming an entity inserts the row, every later
// article reuses the same id.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"newsharvest/article"
)

// Store writes article batches transactionally and answers read-back and
// relevance queries. It owns a single connection; callers never run batches
// concurrently.
type Store struct {
	db *sql.DB
}

// StoredArticle is an article reconstructed from the relational schema.
type StoredArticle struct {
	Title       string
	Summary     string
	Authors     []string
	Link        string
	Tags        []string
	Categories  []string
	PublishedAt time.Time
	Source      string
}

// TagCount reports how many stored articles from one source carry a tag.
type TagCount struct {
	Name  string
	Count int
}

// New opens (or creates) the database at dbPath and ensures the schema
// exists.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates the tables if they don't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS summaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		summary TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		summary_id INTEGER NOT NULL UNIQUE,
		publication_date TEXT NOT NULL,
		url TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL,
		FOREIGN KEY(summary_id) REFERENCES summaries(id)
	);

	CREATE TABLE IF NOT EXISTS authors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS authors_in_articles (
		article_id INTEGER NOT NULL,
		author_id INTEGER NOT NULL,
		FOREIGN KEY(article_id) REFERENCES articles(id),
		FOREIGN KEY(author_id) REFERENCES authors(id)
	);

	CREATE TABLE IF NOT EXISTS tags_in_articles (
		article_id INTEGER NOT NULL,
		tag_id INTEGER NOT NULL,
		FOREIGN KEY(article_id) REFERENCES articles(id),
		FOREIGN KEY(tag_id) REFERENCES tags(id)
	);

	CREATE TABLE IF NOT EXISTS categories_in_articles (
		article_id INTEGER NOT NULL,
		category_id INTEGER NOT NULL,
		FOREIGN KEY(article_id) REFERENCES articles(id),
		FOREIGN KEY(category_id) REFERENCES categories(id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveBatch writes all articles in one transaction. On any error the whole
// batch is rolled back and the error is returned; the storage never holds a
// partially committed batch. A duplicate article URL surfaces here as a
// constraint violation rather than a silent overwrite.
func (s *Store) SaveBatch(articles []article.Article) error {
	if len(articles) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, a := range articles {
		if err := insertArticle(tx, a); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert article %s: %w", a.Link, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	return nil
}

// insertArticle writes one article and its reference rows inside tx.
func insertArticle(tx *sql.Tx, a article.Article) error {
	result, err := tx.Exec("INSERT INTO summaries (summary) VALUES (?)", a.Summary)
	if err != nil {
		return fmt.Errorf("failed to insert summary: %w", err)
	}
	summaryID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get summary id: %w", err)
	}

	result, err = tx.Exec(
		"INSERT INTO articles (title, summary_id, publication_date, url, source) VALUES (?, ?, ?, ?, ?)",
		a.Title, summaryID, a.PublishedAt.UTC().Format(time.RFC3339), a.Link, a.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to insert article row: %w", err)
	}
	articleID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get article id: %w", err)
	}

	for _, name := range a.Authors {
		authorID, err := lookupOrInsert(tx, "authors", "name", name)
		if err != nil {
			return fmt.Errorf("failed to resolve author %q: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO authors_in_articles (article_id, author_id) VALUES (?, ?)", articleID, authorID); err != nil {
			return fmt.Errorf("failed to link author %q: %w", name, err)
		}
	}

	for _, name := range a.Tags {
		tagID, err := lookupOrInsert(tx, "tags", "name", name)
		if err != nil {
			return fmt.Errorf("failed to resolve tag %q: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO tags_in_articles (article_id, tag_id) VALUES (?, ?)", articleID, tagID); err != nil {
			return fmt.Errorf("failed to link tag %q: %w", name, err)
		}
	}

	for _, name := range a.Categories {
		categoryID, err := lookupOrInsert(tx, "categories", "category", name)
		if err != nil {
			return fmt.Errorf("failed to resolve category %q: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO categories_in_articles (article_id, category_id) VALUES (?, ?)", articleID, categoryID); err != nil {
			return fmt.Errorf("failed to link category %q: %w", name, err)
		}
	}

	return nil
}

// lookupOrInsert resolves a reference entity by exact name, inserting it on
// first sight. Batches run strictly in sequence, so the read-then-write
// inside the shared transaction is race-free.
func lookupOrInsert(tx *sql.Tx, table, column, value string) (int64, error) {
	var id int64
	query := fmt.Sprintf("SELECT id FROM %s WHERE %s = ?", table, column)
	err := tx.QueryRow(query, value).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to query %s: %w", table, err)
	}

	result, err := tx.Exec(fmt.Sprintf("INSERT INTO %s (%s) VALUES (?)", table, column), value)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return result.LastInsertId()
}

// GetByURL reconstructs a stored article via its unique link. Returns nil
// when no article with that URL exists (not an error).
func (s *Store) GetByURL(url string) (*StoredArticle, error) {
	query := `
		SELECT a.id, a.title, su.summary, a.publication_date, a.url, a.source
		FROM articles a
		JOIN summaries su ON su.id = a.summary_id
		WHERE a.url = ?
	`

	var id int64
	var stored StoredArticle
	var publishedStr string

	err := s.db.QueryRow(query, url).Scan(
		&id, &stored.Title, &stored.Summary, &publishedStr, &stored.Link, &stored.Source,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query article: %w", err)
	}

	stored.PublishedAt, err = time.Parse(time.RFC3339, publishedStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored timestamp %q: %w", publishedStr, err)
	}

	stored.Authors, err = s.relatedNames(id,
		"SELECT au.name FROM authors au JOIN authors_in_articles r ON r.author_id = au.id WHERE r.article_id = ? ORDER BY r.rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to load authors: %w", err)
	}

	stored.Tags, err = s.relatedNames(id,
		"SELECT t.name FROM tags t JOIN tags_in_articles r ON r.tag_id = t.id WHERE r.article_id = ? ORDER BY r.rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}

	stored.Categories, err = s.relatedNames(id,
		"SELECT c.category FROM categories c JOIN categories_in_articles r ON r.category_id = c.id WHERE r.article_id = ? ORDER BY r.rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	return &stored, nil
}

// relatedNames collects the names joined to one article through a
// relationship table.
func (s *Store) relatedNames(articleID int64, query string) ([]string, error) {
	rows, err := s.db.Query(query, articleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// TopTags returns the most frequent tags among articles from one source,
// most used first. Ties break alphabetically.
func (s *Store) TopTags(source string, limit int) ([]TagCount, error) {
	query := `
		SELECT t.name, COUNT(*) AS uses
		FROM tags t
		JOIN tags_in_articles r ON r.tag_id = t.id
		JOIN articles a ON a.id = r.article_id
		WHERE a.source = ?
		GROUP BY t.name
		ORDER BY uses DESC, t.name ASC
		LIMIT ?
	`

	rows, err := s.db.Query(query, source, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query tag counts: %w", err)
	}
	defer rows.Close()

	var counts []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan tag count: %w", err)
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

// CountArticles reports the number of stored articles.
func (s *Store) CountArticles() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM articles").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return n, nil
}

// TableCounts reports the row count of every table, keyed by table name.
func (s *Store) TableCounts() (map[string]int, error) {
	tables := []string{
		"articles", "summaries", "authors", "tags", "categories",
		"authors_in_articles", "tags_in_articles", "categories_in_articles",
	}

	counts := make(map[string]int, len(tables))
	for _, table := range tables {
		var n int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// Reset drops every table and recreates the schema. This is the external
// full-reset operation; the ingestion pipeline itself never deletes rows.
func (s *Store) Reset() error {
	drops := []string{
		"DROP TABLE IF EXISTS authors_in_articles",
		"DROP TABLE IF EXISTS tags_in_articles",
		"DROP TABLE IF EXISTS categories_in_articles",
		"DROP TABLE IF EXISTS articles",
		"DROP TABLE IF EXISTS summaries",
		"DROP TABLE IF EXISTS authors",
		"DROP TABLE IF EXISTS tags",
		"DROP TABLE IF EXISTS categories",
	}

	for _, stmt := range drops {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}

	if err := s.initSchema(); err != nil {
		return fmt.Errorf("failed to recreate schema: %w", err)
	}
	return nil
}
