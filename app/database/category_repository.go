package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrCategoryCycle is returned when an update would make a category its own
// ancestor.
var ErrCategoryCycle = errors.New("category parent cycle")

var _ CategoryRepository = (*CategoryRepo)(nil)

type CategoryRepo struct {
	pool *Pool
}

func NewCategoryRepository(pool *Pool) *CategoryRepo {
	return &CategoryRepo{pool: pool}
}

const categoryColumns = `id, name, description, parent_id, expanded, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }) (*Category, error) {
	var c Category
	var parentID sql.NullString
	err := row.Scan(&c.ID, &c.Name, &c.Description, &parentID, &c.Expanded, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		c.ParentID = &parentID.String
	}
	return &c, nil
}

func (r *CategoryRepo) getMany(ctx context.Context, query string, args ...any) ([]Category, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		categories = append(categories, *category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rows: %w", err)
	}
	return categories, nil
}

func (r *CategoryRepo) GetByID(ctx context.Context, id string) (*Category, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	category, err := scanCategory(conn.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return category, nil
}

func (r *CategoryRepo) GetAll(ctx context.Context) ([]Category, error) {
	return r.getMany(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name COLLATE NOCASE`)
}

func (r *CategoryRepo) GetChildren(ctx context.Context, parentID string) ([]Category, error) {
	return r.getMany(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE parent_id = ? ORDER BY name COLLATE NOCASE`,
		parentID)
}

func (r *CategoryRepo) Save(ctx context.Context, category *Category) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	category.CreatedAt = now
	category.UpdatedAt = now

	_, err = conn.ExecContext(ctx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		category.ID, category.Name, category.Description, category.ParentID,
		category.Expanded, category.CreatedAt, category.UpdatedAt)
	if err != nil {
		return mapSQLError("failed to save category", err)
	}
	return nil
}

// Update replaces the full row identified by category.ID. The parent chain
// is validated first: an update that would make the category its own
// ancestor fails with ErrCategoryCycle.
func (r *CategoryRepo) Update(ctx context.Context, category *Category) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if category.ParentID != nil {
		if err := r.checkCycle(ctx, conn, category.ID, *category.ParentID); err != nil {
			return err
		}
	}

	category.UpdatedAt = time.Now().UTC()
	_, err = conn.ExecContext(ctx, `
		UPDATE categories
		SET name = ?, description = ?, parent_id = ?, expanded = ?, updated_at = ?
		WHERE id = ?`,
		category.Name, category.Description, category.ParentID,
		category.Expanded, category.UpdatedAt, category.ID)
	if err != nil {
		return mapSQLError("failed to update category", err)
	}
	return nil
}

// checkCycle walks up from the proposed parent; hitting id means the update
// would close a loop.
func (r *CategoryRepo) checkCycle(ctx context.Context, conn *Conn, id, parentID string) error {
	current := parentID
	for current != "" {
		if current == id {
			return ErrCategoryCycle
		}
		var next sql.NullString
		err := conn.QueryRowContext(ctx,
			`SELECT parent_id FROM categories WHERE id = ?`, current).Scan(&next)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to walk category parents: %w", err)
		}
		if !next.Valid {
			return nil
		}
		current = next.String
	}
	return nil
}

func (r *CategoryRepo) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

func (r *CategoryRepo) Search(ctx context.Context, query string) ([]Category, error) {
	return r.getMany(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE lower(name) LIKE ? ESCAPE '\'
		ORDER BY name COLLATE NOCASE`,
		likePattern(query))
}
