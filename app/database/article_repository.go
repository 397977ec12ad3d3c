package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var _ ArticleRepository = (*ArticleRepo)(nil)

// ArticleRepo is the SQLite implementation of ArticleRepository.
type ArticleRepo struct {
	pool *Pool
}

func NewArticleRepository(pool *Pool) *ArticleRepo {
	return &ArticleRepo{pool: pool}
}

var articleColumns = []string{
	"id", "feed_id", "url", "title", "author", "content", "summary",
	"thumbnail_url", "published_at", "read", "favorite", "created_at", "updated_at",
}

const articleColumnList = `id, feed_id, url, title, author, content, summary,
	thumbnail_url, published_at, read, favorite, created_at, updated_at`

func scanArticle(row interface{ Scan(...any) error }) (*Article, error) {
	var a Article
	err := row.Scan(
		&a.ID, &a.FeedID, &a.URL, &a.Title, &a.Author, &a.Content, &a.Summary,
		&a.ThumbnailURL, &a.PublishedAt, &a.Read, &a.Favorite, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ArticleRepo) getOne(ctx context.Context, query string, args ...any) (*Article, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	article, err := scanArticle(conn.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return article, nil
}

func (r *ArticleRepo) getMany(ctx context.Context, query string, args ...any) ([]Article, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}
	return articles, nil
}

func (r *ArticleRepo) GetByID(ctx context.Context, id string) (*Article, error) {
	article, err := r.getOne(ctx, `SELECT `+articleColumnList+` FROM articles WHERE id = ?`, id)
	if err != nil || article == nil {
		return article, err
	}
	tags, err := r.TagsFor(ctx, article.ID)
	if err != nil {
		return nil, err
	}
	article.Tags = tags
	return article, nil
}

func (r *ArticleRepo) GetByURL(ctx context.Context, url string) (*Article, error) {
	return r.getOne(ctx, `SELECT `+articleColumnList+` FROM articles WHERE url = ?`, url)
}

// List runs a filtered article query, newest published first.
func (r *ArticleRepo) List(ctx context.Context, filter ArticleFilter) ([]Article, error) {
	builder := sq.Select(articleColumns...).From("articles")

	if filter.FeedID != "" {
		builder = builder.Where(sq.Eq{"feed_id": filter.FeedID})
	}
	if filter.CategoryID != "" {
		builder = builder.Where(`feed_id IN (SELECT id FROM feeds WHERE category_id = ?)`, filter.CategoryID)
	}
	if filter.Unread {
		builder = builder.Where(sq.Eq{"read": false})
	}
	if filter.Favorites {
		builder = builder.Where(sq.Eq{"favorite": true})
	}
	if filter.Tag != "" {
		builder = builder.Where(`id IN (
			SELECT article_id FROM article_tags
			JOIN tags ON tags.id = article_tags.tag_id
			WHERE tags.name = ?)`, filter.Tag)
	}
	if filter.From != nil {
		builder = builder.Where(sq.GtOrEq{"published_at": *filter.From})
	}
	if filter.To != nil {
		builder = builder.Where(sq.LtOrEq{"published_at": *filter.To})
	}
	if filter.Query != "" {
		pattern := likePattern(filter.Query)
		builder = builder.Where(`(lower(title) LIKE ? ESCAPE '\' OR lower(url) LIKE ? ESCAPE '\')`, pattern, pattern)
	}

	builder = builder.OrderBy("published_at DESC", "created_at DESC")
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article query: %w", err)
	}
	return r.getMany(ctx, query, args...)
}

func (r *ArticleRepo) GetByFeed(ctx context.Context, feedID string) ([]Article, error) {
	return r.List(ctx, ArticleFilter{FeedID: feedID})
}

func (r *ArticleRepo) GetUnread(ctx context.Context) ([]Article, error) {
	return r.List(ctx, ArticleFilter{Unread: true})
}

func (r *ArticleRepo) GetFavorites(ctx context.Context) ([]Article, error) {
	return r.List(ctx, ArticleFilter{Favorites: true})
}

func (r *ArticleRepo) GetByTag(ctx context.Context, tagName string) ([]Article, error) {
	return r.List(ctx, ArticleFilter{Tag: tagName})
}

func (r *ArticleRepo) GetByDateRange(ctx context.Context, from, to time.Time) ([]Article, error) {
	return r.List(ctx, ArticleFilter{From: &from, To: &to})
}

func (r *ArticleRepo) GetRecentlyUpdated(ctx context.Context, limit int) ([]Article, error) {
	return r.getMany(ctx,
		`SELECT `+articleColumnList+` FROM articles ORDER BY updated_at DESC LIMIT ?`, limit)
}

// GetForExtraction returns a feed's articles that still have no body
// content, newest first.
func (r *ArticleRepo) GetForExtraction(ctx context.Context, feedID string, limit int) ([]Article, error) {
	return r.getMany(ctx, `
		SELECT `+articleColumnList+`
		FROM articles
		WHERE feed_id = ? AND content = ''
		ORDER BY published_at DESC
		LIMIT ?`, feedID, limit)
}

func (r *ArticleRepo) Save(ctx context.Context, article *Article) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if article.ID == "" {
		article.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	article.CreatedAt = now
	article.UpdatedAt = now

	_, err = conn.ExecContext(ctx, `
		INSERT INTO articles (`+articleColumnList+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		article.ID, article.FeedID, article.URL, article.Title, article.Author,
		article.Content, article.Summary, article.ThumbnailURL,
		article.PublishedAt, article.Read, article.Favorite,
		article.CreatedAt, article.UpdatedAt)
	if err != nil {
		return mapSQLError("failed to save article", err)
	}
	return nil
}

// Update replaces the full row identified by article.ID. Tag associations
// are managed through AddTag/RemoveTag, not here.
func (r *ArticleRepo) Update(ctx context.Context, article *Article) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	article.UpdatedAt = time.Now().UTC()
	_, err = conn.ExecContext(ctx, `
		UPDATE articles
		SET feed_id = ?, url = ?, title = ?, author = ?, content = ?, summary = ?,
		    thumbnail_url = ?, published_at = ?, read = ?, favorite = ?, updated_at = ?
		WHERE id = ?`,
		article.FeedID, article.URL, article.Title, article.Author,
		article.Content, article.Summary, article.ThumbnailURL,
		article.PublishedAt, article.Read, article.Favorite,
		article.UpdatedAt, article.ID)
	if err != nil {
		return mapSQLError("failed to update article", err)
	}
	return nil
}

func (r *ArticleRepo) UpdateContent(ctx context.Context, id, content string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.ExecContext(ctx,
		`UPDATE articles SET content = ?, updated_at = ? WHERE id = ?`,
		content, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update article content: %w", err)
	}
	return nil
}

func (r *ArticleRepo) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM article_tags WHERE article_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete article tag links: %w", err)
	}
	return nil
}

func (r *ArticleRepo) Search(ctx context.Context, query string) ([]Article, error) {
	return r.List(ctx, ArticleFilter{Query: query})
}

// AddTag links the named tag to an article, creating the tag if it does not
// exist. The lookup-or-create and the link are one transaction, so a failed
// tag creation never leaves a dangling link. Adding an existing association
// is a no-op.
func (r *ArticleRepo) AddTag(ctx context.Context, articleID, tagName string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var tagID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, tagName).Scan(&tagID)
	if err == sql.ErrNoRows {
		tagID = uuid.NewString()
		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tags (id, name, description, color, created_at, updated_at)
			VALUES (?, ?, '', '', ?, ?)`, tagID, tagName, now, now)
	}
	if err != nil {
		return mapSQLError("failed to resolve tag", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO article_tags (article_id, tag_id, created_at)
		VALUES (?, ?, ?)`, articleID, tagID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to link tag to article: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tag link: %w", err)
	}
	return nil
}

// RemoveTag unlinks the named tag from an article. Removing an association
// that does not exist is a no-op.
func (r *ArticleRepo) RemoveTag(ctx context.Context, articleID, tagName string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.ExecContext(ctx, `
		DELETE FROM article_tags
		WHERE article_id = ? AND tag_id IN (SELECT id FROM tags WHERE name = ?)`,
		articleID, tagName)
	if err != nil {
		return fmt.Errorf("failed to unlink tag from article: %w", err)
	}
	return nil
}

func (r *ArticleRepo) TagsFor(ctx context.Context, articleID string) ([]string, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.QueryContext(ctx, `
		SELECT tags.name FROM tags
		JOIN article_tags ON article_tags.tag_id = tags.id
		WHERE article_tags.article_id = ?
		ORDER BY tags.name COLLATE NOCASE`, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query article tags: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan tag name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tag rows: %w", err)
	}
	return names, nil
}

func (r *ArticleRepo) Count(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM articles`)
}

func (r *ArticleRepo) CountUnread(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM articles WHERE read = 0`)
}

func (r *ArticleRepo) count(ctx context.Context, query string) (int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	var count int
	if err := conn.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return count, nil
}
