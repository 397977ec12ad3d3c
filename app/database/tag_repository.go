package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ TagRepository = (*TagRepo)(nil)

type TagRepo struct {
	pool *Pool
}

func NewTagRepository(pool *Pool) *TagRepo {
	return &TagRepo{pool: pool}
}

const tagColumns = `id, name, description, color, created_at, updated_at`

func scanTag(row interface{ Scan(...any) error }) (*Tag, error) {
	var t Tag
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Color, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TagRepo) getOne(ctx context.Context, query string, args ...any) (*Tag, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tag, err := scanTag(conn.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return tag, nil
}

func (r *TagRepo) GetByID(ctx context.Context, id string) (*Tag, error) {
	return r.getOne(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = ?`, id)
}

func (r *TagRepo) GetByName(ctx context.Context, name string) (*Tag, error) {
	return r.getOne(ctx, `SELECT `+tagColumns+` FROM tags WHERE name = ?`, name)
}

func (r *TagRepo) GetAll(ctx context.Context) ([]Tag, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.QueryContext(ctx,
		`SELECT `+tagColumns+` FROM tags ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		tags = append(tags, *tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tag rows: %w", err)
	}
	return tags, nil
}

func (r *TagRepo) Save(ctx context.Context, tag *Tag) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if tag.ID == "" {
		tag.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tag.CreatedAt = now
	tag.UpdatedAt = now

	_, err = conn.ExecContext(ctx, `
		INSERT INTO tags (`+tagColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tag.ID, tag.Name, tag.Description, tag.Color, tag.CreatedAt, tag.UpdatedAt)
	if err != nil {
		return mapSQLError("failed to save tag", err)
	}
	return nil
}

func (r *TagRepo) Update(ctx context.Context, tag *Tag) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tag.UpdatedAt = time.Now().UTC()
	_, err = conn.ExecContext(ctx, `
		UPDATE tags SET name = ?, description = ?, color = ?, updated_at = ? WHERE id = ?`,
		tag.Name, tag.Description, tag.Color, tag.UpdatedAt, tag.ID)
	if err != nil {
		return mapSQLError("failed to update tag", err)
	}
	return nil
}

func (r *TagRepo) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM article_tags WHERE tag_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete tag links: %w", err)
	}
	return nil
}
