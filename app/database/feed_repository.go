package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ FeedRepository = (*FeedRepo)(nil)

// FeedRepo is the SQLite implementation of FeedRepository. Every call
// borrows one pooled connection for its duration.
type FeedRepo struct {
	pool *Pool
}

func NewFeedRepository(pool *Pool) *FeedRepo {
	return &FeedRepo{pool: pool}
}

const feedColumns = `id, url, title, category_id, site_url, icon_url, status,
	error_message, last_fetched_at, next_fetch_at, update_interval,
	extract_content, created_at, updated_at`

func scanFeed(row interface{ Scan(...any) error }) (*Feed, error) {
	var feed Feed
	var categoryID sql.NullString
	var lastFetched, nextFetch sql.NullTime
	var status string
	err := row.Scan(
		&feed.ID, &feed.URL, &feed.Title, &categoryID, &feed.SiteURL,
		&feed.IconURL, &status, &feed.ErrorMessage, &lastFetched, &nextFetch,
		&feed.UpdateInterval, &feed.ExtractContent, &feed.CreatedAt, &feed.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	feed.Status = FeedStatus(status)
	if categoryID.Valid {
		feed.CategoryID = &categoryID.String
	}
	if lastFetched.Valid {
		t := lastFetched.Time
		feed.LastFetchedAt = &t
	}
	if nextFetch.Valid {
		t := nextFetch.Time
		feed.NextFetchAt = &t
	}
	return &feed, nil
}

func (r *FeedRepo) getOne(ctx context.Context, query string, args ...any) (*Feed, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	feed, err := scanFeed(conn.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}
	return feed, nil
}

func (r *FeedRepo) getMany(ctx context.Context, query string, args ...any) ([]Feed, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}
	return feeds, nil
}

func (r *FeedRepo) GetByID(ctx context.Context, id string) (*Feed, error) {
	return r.getOne(ctx, `SELECT `+feedColumns+` FROM feeds WHERE id = ?`, id)
}

func (r *FeedRepo) GetByURL(ctx context.Context, url string) (*Feed, error) {
	return r.getOne(ctx, `SELECT `+feedColumns+` FROM feeds WHERE url = ?`, url)
}

func (r *FeedRepo) GetAll(ctx context.Context) ([]Feed, error) {
	return r.getMany(ctx, `SELECT `+feedColumns+` FROM feeds ORDER BY title COLLATE NOCASE, url`)
}

func (r *FeedRepo) GetByCategory(ctx context.Context, categoryID string) ([]Feed, error) {
	return r.getMany(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE category_id = ? ORDER BY title COLLATE NOCASE, url`,
		categoryID)
}

// GetDueForRefresh returns active feeds whose next fetch time has passed
// (or was never set), oldest first.
func (r *FeedRepo) GetDueForRefresh(ctx context.Context, now time.Time, limit int) ([]Feed, error) {
	return r.getMany(ctx, `
		SELECT `+feedColumns+`
		FROM feeds
		WHERE status != ?
		  AND (next_fetch_at IS NULL OR next_fetch_at <= ?)
		ORDER BY next_fetch_at
		LIMIT ?`,
		string(FeedStatusDisabled), now, limit)
}

func (r *FeedRepo) Save(ctx context.Context, feed *Feed) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if feed.ID == "" {
		feed.ID = uuid.NewString()
	}
	if feed.Status == "" {
		feed.Status = FeedStatusActive
	}
	now := time.Now().UTC()
	feed.CreatedAt = now
	feed.UpdatedAt = now

	_, err = conn.ExecContext(ctx, `
		INSERT INTO feeds (`+feedColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		feed.ID, feed.URL, feed.Title, feed.CategoryID, feed.SiteURL,
		feed.IconURL, string(feed.Status), feed.ErrorMessage,
		feed.LastFetchedAt, feed.NextFetchAt, feed.UpdateInterval,
		feed.ExtractContent, feed.CreatedAt, feed.UpdatedAt)
	if err != nil {
		return mapSQLError("failed to save feed", err)
	}
	return nil
}

// Update replaces the full row identified by feed.ID.
func (r *FeedRepo) Update(ctx context.Context, feed *Feed) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	feed.UpdatedAt = time.Now().UTC()
	_, err = conn.ExecContext(ctx, `
		UPDATE feeds
		SET url = ?, title = ?, category_id = ?, site_url = ?, icon_url = ?,
		    status = ?, error_message = ?, last_fetched_at = ?, next_fetch_at = ?,
		    update_interval = ?, extract_content = ?, updated_at = ?
		WHERE id = ?`,
		feed.URL, feed.Title, feed.CategoryID, feed.SiteURL, feed.IconURL,
		string(feed.Status), feed.ErrorMessage, feed.LastFetchedAt,
		feed.NextFetchAt, feed.UpdateInterval, feed.ExtractContent,
		feed.UpdatedAt, feed.ID)
	if err != nil {
		return mapSQLError("failed to update feed", err)
	}
	return nil
}

// UpdateFetchSchedule records the outcome of a fetch attempt. The sync
// engine is the only caller; the scheduling fields are never mutated
// anywhere else.
func (r *FeedRepo) UpdateFetchSchedule(ctx context.Context, id string, lastFetched, nextFetch time.Time, status FeedStatus, errorMessage string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.ExecContext(ctx, `
		UPDATE feeds
		SET last_fetched_at = ?, next_fetch_at = ?, status = ?, error_message = ?, updated_at = ?
		WHERE id = ?`,
		lastFetched, nextFetch, string(status), errorMessage, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update fetch schedule: %w", err)
	}
	return nil
}

func (r *FeedRepo) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.ExecContext(ctx, `DELETE FROM feeds WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}
	return nil
}

func (r *FeedRepo) Search(ctx context.Context, query string) ([]Feed, error) {
	pattern := likePattern(query)
	return r.getMany(ctx, `
		SELECT `+feedColumns+`
		FROM feeds
		WHERE lower(title) LIKE ? ESCAPE '\' OR lower(url) LIKE ? ESCAPE '\'
		ORDER BY title COLLATE NOCASE, url`,
		pattern, pattern)
}

func (r *FeedRepo) Count(ctx context.Context) (int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	var count int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM feeds`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count feeds: %w", err)
	}
	return count, nil
}
