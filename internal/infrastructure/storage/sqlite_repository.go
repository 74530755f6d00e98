package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"newscollector/internal/domain"
	"newscollector/internal/ports"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS feeds (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	outlet        TEXT NOT NULL,
	url           TEXT NOT NULL UNIQUE,
	active        INTEGER NOT NULL DEFAULT 1,
	etag          TEXT NOT NULL DEFAULT '',
	last_modified TEXT NOT NULL DEFAULT '',
	last_checked  TIMESTAMP
);

CREATE TABLE IF NOT EXISTS articles (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	outlet        TEXT NOT NULL,
	feed_id       INTEGER,
	url           TEXT NOT NULL,
	canonical_url TEXT NOT NULL UNIQUE,
	title         TEXT NOT NULL DEFAULT '',
	summary       TEXT NOT NULL DEFAULT '',
	published_at  TIMESTAMP,
	author        TEXT NOT NULL DEFAULT '',
	html_sha256   TEXT NOT NULL DEFAULT '',
	html_path     TEXT NOT NULL DEFAULT '',
	body          TEXT NOT NULL DEFAULT '',
	hash_sha256   TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL,
	categories    TEXT,
	sentiment     TEXT,
	confidence    REAL,
	rationale     TEXT,
	tagged_at     TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles(created_at);
CREATE INDEX IF NOT EXISTS idx_articles_feed_id ON articles(feed_id);
`

// SQLiteRepository is the single-file storage backend, honoring the same
// contract as the Postgres implementation.
type SQLiteRepository struct {
	db           *sql.DB
	maxBodyChars int
}

var _ ports.ArticleRepository = (*SQLiteRepository)(nil)
var _ ports.TagRepository = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens (creating if needed) the database file and
// ensures the schema.
func NewSQLiteRepository(ctx context.Context, path string, maxBodyChars int) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &SQLiteRepository{db: db, maxBodyChars: maxBodyChars}, nil
}

// Close releases the underlying database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// UpsertFeed registers a feed URL once; an existing URL is a no-op.
func (r *SQLiteRepository) UpsertFeed(ctx context.Context, outlet, url string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO feeds (outlet, url, active) VALUES (?, ?, 1)
		 ON CONFLICT (url) DO NOTHING`,
		outlet, url,
	)
	if err != nil {
		return fmt.Errorf("upsert feed: %w", err)
	}
	return nil
}

// ListActiveFeeds returns all feeds with active=true.
func (r *SQLiteRepository) ListActiveFeeds(ctx context.Context) ([]domain.Feed, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, outlet, url, active, etag, last_modified, last_checked
		 FROM feeds WHERE active = 1 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	defer rows.Close()

	var feeds []domain.Feed
	for rows.Next() {
		var f domain.Feed
		var lastChecked sql.NullTime
		if err := rows.Scan(&f.ID, &f.Outlet, &f.URL, &f.Active, &f.ETag, &f.LastModified, &lastChecked); err != nil {
			return nil, fmt.Errorf("scan feed: %w", err)
		}
		if lastChecked.Valid {
			f.LastChecked = lastChecked.Time
		}
		feeds = append(feeds, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return feeds, nil
}

// UpdateFeedState stores conditional-GET tokens and refreshes last_checked.
func (r *SQLiteRepository) UpdateFeedState(ctx context.Context, feedID int64, etag, lastModified string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE feeds SET etag = ?, last_modified = ?, last_checked = ? WHERE id = ?`,
		etag, lastModified, time.Now().UTC(), feedID,
	)
	if err != nil {
		return fmt.Errorf("update feed state: %w", err)
	}
	return nil
}

// InsertArticle attempts the insert and maps the UNIQUE constraint failure
// onto the duplicate signal.
func (r *SQLiteRepository) InsertArticle(ctx context.Context, draft domain.ArticleDraft) (int64, error) {
	art := prepareArticle(draft, r.maxBodyChars)

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO articles (outlet, feed_id, url, canonical_url, title, summary,
		                       published_at, author, html_sha256, html_path, body, hash_sha256, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		art.Outlet, art.FeedID, art.URL, art.CanonicalURL, art.Title, art.Summary,
		art.PublishedAt, art.Author, art.HTMLSHA256, art.HTMLPath, art.Body, art.HashSHA256,
		time.Now().UTC(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, ports.ErrDuplicateArticle
		}
		return 0, fmt.Errorf("insert article: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// ListUntagged returns the most recent articles without a sentiment.
func (r *SQLiteRepository) ListUntagged(ctx context.Context, limit int) ([]domain.Article, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, outlet, canonical_url, title, body FROM articles
		 WHERE sentiment IS NULL ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list untagged: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		var a domain.Article
		if err := rows.Scan(&a.ID, &a.Outlet, &a.CanonicalURL, &a.Title, &a.Body); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return articles, nil
}

// SaveTag writes classification fields back for one article.
func (r *SQLiteRepository) SaveTag(ctx context.Context, articleID int64, tag domain.Tag) error {
	categories, err := json.Marshal(tag.Categories)
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE articles SET categories = ?, sentiment = ?, confidence = ?, rationale = ?, tagged_at = ?
		 WHERE id = ?`,
		string(categories), tag.Sentiment, tag.Confidence, tag.Rationale, time.Now().UTC(), articleID,
	)
	if err != nil {
		return fmt.Errorf("save tag: %w", err)
	}
	return nil
}
