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

// ArticleStore handles article persistence, including the tag set.
type ArticleStore struct {
	db *sql.DB
}

// NewArticleStore creates a new ArticleStore.
func NewArticleStore(db *sql.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

// articleSelect joins the author and category needed by every read.
const articleSelect = `
	SELECT a.id, a.slug, a.title, a.description, a.body, a.image_url,
	       a.author_id, u.username, u.display_name, u.avatar_url,
	       a.category_id, c.name, c.slug,
	       a.likes_count, a.dislikes_count, a.comments_count,
	       a.is_archived, a.created_at, a.updated_at
	FROM articles a
	JOIN users u ON u.id = a.author_id
	JOIN categories c ON c.id = a.category_id`

func scanArticle(row scanner) (*models.Article, error) {
	var a models.Article
	err := row.Scan(
		&a.ID, &a.Slug, &a.Title, &a.Description, &a.Body, &a.ImageURL,
		&a.AuthorID, &a.Author.Username, &a.Author.DisplayName, &a.Author.AvatarURL,
		&a.CategoryID, &a.Category.Name, &a.Category.Slug,
		&a.LikesCount, &a.DislikesCount, &a.CommentsCount,
		&a.IsArchived, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Author.ID = a.AuthorID
	return &a, nil
}

// Create inserts an article and its tags in one transaction and returns
// the stored article. A taken slug yields an apperror conflict.
func (s *ArticleStore) Create(ctx context.Context, a *models.Article, tags []string) (*models.Article, error) {
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO articles (slug, title, description, body, image_url, author_id, category_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, a.Slug, a.Title, a.Description, a.Body, a.ImageURL, a.AuthorID, a.CategoryID).Scan(&a.ID)
		if err != nil {
			if _, ok := uniqueViolation(err); ok {
				return apperror.Conflict("slug", "slug already exists")
			}
			return fmt.Errorf("create article: %w", err)
		}
		return replaceArticleTags(ctx, tx, a.ID, tags)
	})
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, a.ID)
}

// Update saves the editable fields of an article. When tags is non-nil it
// replaces the tag set in the same transaction.
func (s *ArticleStore) Update(ctx context.Context, a *models.Article, tags []string) (*models.Article, error) {
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE articles SET
				title = $1, description = $2, body = $3, image_url = $4,
				category_id = $5, updated_at = NOW()
			WHERE id = $6
		`, a.Title, a.Description, a.Body, a.ImageURL, a.CategoryID, a.ID)
		if err != nil {
			return fmt.Errorf("update article: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.NotFound("article", a.Slug)
		}
		if tags == nil {
			return nil
		}
		return replaceArticleTags(ctx, tx, a.ID, tags)
	})
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, a.ID)
}

func (s *ArticleStore) findOne(ctx context.Context, where string, arg any) (*models.Article, error) {
	row := s.db.QueryRowContext(ctx, articleSelect+` WHERE `+where, arg)
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	articles := []models.Article{*a}
	if err := loadTags(ctx, s.db, articles); err != nil {
		return nil, err
	}
	return &articles[0], nil
}

// FindBySlug retrieves an article, archived or not. Returns nil if not found.
func (s *ArticleStore) FindBySlug(ctx context.Context, slug string) (*models.Article, error) {
	a, err := s.findOne(ctx, `a.slug = $1`, slug)
	if err != nil {
		return nil, fmt.Errorf("find article by slug: %w", err)
	}
	return a, nil
}

// FindByID retrieves an article by ID. Returns nil if not found.
func (s *ArticleStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Article, error) {
	a, err := s.findOne(ctx, `a.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("find article by id: %w", err)
	}
	return a, nil
}

// SlugExists reports whether any article uses the slug.
func (s *ArticleStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM articles WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

// filterClause builds the WHERE clause shared by List and its count.
func filterClause(f models.ArticleFilter) (string, []any) {
	conds := []string{"a.is_archived = FALSE"}
	var args []any
	if f.Tag != "" {
		args = append(args, strings.ToLower(f.Tag))
		conds = append(conds, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM article_tags at JOIN tags t ON t.id = at.tag_id
			WHERE at.article_id = a.id AND t.name = $%d)`, len(args)))
	}
	if f.Category != "" {
		args = append(args, strings.ToLower(f.Category))
		conds = append(conds, fmt.Sprintf("c.slug = $%d", len(args)))
	}
	if f.Author != "" {
		args = append(args, f.Author)
		conds = append(conds, fmt.Sprintf("u.username = $%d", len(args)))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of visible articles matching the filter, newest
// first, together with the total number of matches.
func (s *ArticleStore) List(ctx context.Context, f models.ArticleFilter) ([]models.Article, int, error) {
	where, args := filterClause(f)

	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM articles a
		JOIN users u ON u.id = a.author_id
		JOIN categories c ON c.id = a.category_id`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := s.db.QueryContext(ctx, articleSelect+where+fmt.Sprintf(`
		ORDER BY a.created_at DESC, a.id
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	items := []models.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan article: %w", err)
		}
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := loadTags(ctx, s.db, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// SetArchived toggles the archive flag.
func (s *ArticleStore) SetArchived(ctx context.Context, id uuid.UUID, archived bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE articles SET is_archived = $1, updated_at = NOW() WHERE id = $2
	`, archived, id)
	if err != nil {
		return fmt.Errorf("set archived: %w", err)
	}
	return nil
}

// Delete removes an article together with the reactions on it and on its
// comments. Comments and tag links cascade.
func (s *ArticleStore) Delete(ctx context.Context, id uuid.UUID) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM reactions
			WHERE (target_type = 'article' AND target_id = $1)
			   OR (target_type = 'comment' AND target_id IN (SELECT id FROM comments WHERE article_id = $1))
		`, id); err != nil {
			return fmt.Errorf("delete article reactions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete article: %w", err)
		}
		return nil
	})
}
