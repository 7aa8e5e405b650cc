// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"inkpress/internal/apperror"
	"inkpress/internal/models"
)

// CategoryStore manages categories in the database.
type CategoryStore struct {
	db *sql.DB
}

// NewCategoryStore returns a new CategoryStore.
func NewCategoryStore(db *sql.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

const categoryColumns = `id, name, slug, description, sort_order, created_at, updated_at`

// scanCategory scans a row into a Category struct.
func scanCategory(row scanner) (*models.Category, error) {
	var c models.Category
	err := row.Scan(
		&c.ID, &c.Name, &c.Slug, &c.Description,
		&c.SortOrder, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns all categories ordered by sort_order, with visible article counts.
func (s *CategoryStore) List(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.slug, c.description, c.sort_order,
		       c.created_at, c.updated_at,
		       COUNT(a.id) AS article_count
		FROM categories c
		LEFT JOIN articles a ON a.category_id = c.id AND a.is_archived = FALSE
		GROUP BY c.id
		ORDER BY c.sort_order, c.name
	`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var items []models.Category
	for rows.Next() {
		var c models.Category
		err := rows.Scan(
			&c.ID, &c.Name, &c.Slug, &c.Description,
			&c.SortOrder, &c.CreatedAt, &c.UpdatedAt,
			&c.ArticleCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// Resolve finds a category by name or slug, case-insensitively.
// Returns nil if nothing matches.
func (s *CategoryStore) Resolve(ctx context.Context, nameOrSlug string) (*models.Category, error) {
	key := strings.ToLower(strings.TrimSpace(nameOrSlug))
	row := s.db.QueryRowContext(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE LOWER(name) = $1 OR slug = $1
		ORDER BY (slug = $1) DESC
		LIMIT 1
	`, key)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve category: %w", err)
	}
	return c, nil
}

// FindByID retrieves a category by ID. Returns nil if not found.
func (s *CategoryStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category by id: %w", err)
	}
	return c, nil
}

// Create inserts a new category at the end of the ordering and returns it.
func (s *CategoryStore) Create(ctx context.Context, c *models.Category) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO categories (name, slug, description, sort_order)
		VALUES ($1, $2, $3, (SELECT COALESCE(MAX(sort_order), -1) + 1 FROM categories WHERE slug <> $4))
		RETURNING `+categoryColumns,
		c.Name, c.Slug, c.Description, models.FallbackCategory,
	)
	result, err := scanCategory(row)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return nil, apperror.Conflict("name", "category already exists")
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	return result, nil
}

// Delete removes a category by slug after moving its articles to the
// fallback category. Returns the number of articles moved.
func (s *CategoryStore) Delete(ctx context.Context, slug string) (int64, error) {
	if slug == models.FallbackCategory {
		return 0, apperror.ValidationFailed("category", "the fallback category cannot be deleted")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var id uuid.UUID
	err = tx.QueryRowContext(ctx, `SELECT id FROM categories WHERE slug = $1 FOR UPDATE`, slug).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, apperror.NotFound("category", slug)
	}
	if err != nil {
		return 0, fmt.Errorf("lock category: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE articles SET category_id = (SELECT id FROM categories WHERE slug = $1), updated_at = NOW()
		WHERE category_id = $2
	`, models.FallbackCategory, id)
	if err != nil {
		return 0, fmt.Errorf("move articles: %w", err)
	}
	moved, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id); err != nil {
		return 0, fmt.Errorf("delete category: %w", err)
	}
	return moved, tx.Commit()
}
