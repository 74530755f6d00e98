package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"newscollector/internal/domain"
	"newscollector/internal/ports"
)

const pgUniqueViolation = "23505"

const pgSchema = `
CREATE TABLE IF NOT EXISTS feeds (
	id            BIGSERIAL PRIMARY KEY,
	outlet        VARCHAR(255) NOT NULL,
	url           TEXT NOT NULL UNIQUE,
	active        BOOLEAN NOT NULL DEFAULT TRUE,
	etag          VARCHAR(255) NOT NULL DEFAULT '',
	last_modified VARCHAR(255) NOT NULL DEFAULT '',
	last_checked  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS articles (
	id            BIGSERIAL PRIMARY KEY,
	outlet        VARCHAR(255) NOT NULL,
	feed_id       BIGINT,
	url           TEXT NOT NULL,
	canonical_url TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	summary       TEXT NOT NULL DEFAULT '',
	published_at  TIMESTAMPTZ,
	author        VARCHAR(255) NOT NULL DEFAULT '',
	html_sha256   VARCHAR(64) NOT NULL DEFAULT '',
	html_path     TEXT NOT NULL DEFAULT '',
	body          TEXT NOT NULL DEFAULT '',
	hash_sha256   VARCHAR(64) NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	categories    TEXT,
	sentiment     TEXT,
	confidence    DOUBLE PRECISION,
	rationale     TEXT,
	tagged_at     TIMESTAMPTZ,
	CONSTRAINT uix_canonical UNIQUE (canonical_url)
);
`

// PostgresRepository persists feeds and articles into Postgres. Duplicate
// articles are rejected by the uix_canonical constraint, not by a
// pre-check, so concurrent inserts of the same canonical URL resolve to
// exactly one row.
type PostgresRepository struct {
	db           *sql.DB
	maxBodyChars int
	builder      sq.StatementBuilderType
}

var _ ports.ArticleRepository = (*PostgresRepository)(nil)
var _ ports.TagRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB and ensures the schema exists.
func NewPostgresRepository(ctx context.Context, db *sql.DB, maxBodyChars int) (*PostgresRepository, error) {
	if _, err := db.ExecContext(ctx, pgSchema); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresRepository{
		db:           db,
		maxBodyChars: maxBodyChars,
		builder:      sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// UpsertFeed registers a feed URL once; an existing URL is a no-op.
func (r *PostgresRepository) UpsertFeed(ctx context.Context, outlet, url string) error {
	query, args, err := r.builder.
		Insert("feeds").
		Columns("outlet", "url", "active").
		Values(outlet, url, true).
		Suffix("ON CONFLICT (url) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert feed: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert feed: %w", err)
	}
	return nil
}

// ListActiveFeeds returns all feeds with active=true.
func (r *PostgresRepository) ListActiveFeeds(ctx context.Context) ([]domain.Feed, error) {
	query, args, err := r.builder.
		Select("id", "outlet", "url", "active", "etag", "last_modified", "last_checked").
		From("feeds").
		Where(sq.Eq{"active": true}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list feeds: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
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
func (r *PostgresRepository) UpdateFeedState(ctx context.Context, feedID int64, etag, lastModified string) error {
	query, args, err := r.builder.
		Update("feeds").
		Set("etag", etag).
		Set("last_modified", lastModified).
		Set("last_checked", time.Now().UTC()).
		Where(sq.Eq{"id": feedID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update feed state: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update feed state: %w", err)
	}
	return nil
}

// InsertArticle attempts an atomic uniqueness-constrained insert and maps
// the constraint violation onto the duplicate signal.
func (r *PostgresRepository) InsertArticle(ctx context.Context, draft domain.ArticleDraft) (int64, error) {
	art := prepareArticle(draft, r.maxBodyChars)

	query, args, err := r.builder.
		Insert("articles").
		Columns("outlet", "feed_id", "url", "canonical_url", "title", "summary",
			"published_at", "author", "html_sha256", "html_path", "body", "hash_sha256", "created_at").
		Values(art.Outlet, art.FeedID, art.URL, art.CanonicalURL, art.Title, art.Summary,
			art.PublishedAt, art.Author, art.HTMLSHA256, art.HTMLPath, art.Body, art.HashSHA256, time.Now().UTC()).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert article: %w", err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return 0, ports.ErrDuplicateArticle
		}
		return 0, fmt.Errorf("insert article: %w", err)
	}
	return id, nil
}

// ListUntagged returns the most recent articles the tagger has not yet
// classified.
func (r *PostgresRepository) ListUntagged(ctx context.Context, limit int) ([]domain.Article, error) {
	query, args, err := r.builder.
		Select("id", "outlet", "canonical_url", "title", "body").
		From("articles").
		Where("sentiment IS NULL").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list untagged: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
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

// SaveTag writes classification fields back; ingestion-owned columns are
// never touched here.
func (r *PostgresRepository) SaveTag(ctx context.Context, articleID int64, tag domain.Tag) error {
	categories, err := json.Marshal(tag.Categories)
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}

	query, args, err := r.builder.
		Update("articles").
		Set("categories", string(categories)).
		Set("sentiment", tag.Sentiment).
		Set("confidence", tag.Confidence).
		Set("rationale", tag.Rationale).
		Set("tagged_at", time.Now().UTC()).
		Where(sq.Eq{"id": articleID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build save tag: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save tag: %w", err)
	}
	return nil
}
