package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"inkpress/internal/apperror"
	"inkpress/internal/models"
)

// CommentStore handles article comments and the comments_count cache.
type CommentStore struct {
	db *sql.DB
}

// NewCommentStore creates a new CommentStore.
func NewCommentStore(db *sql.DB) *CommentStore {
	return &CommentStore{db: db}
}

const commentSelect = `
	SELECT cm.id, cm.article_id, cm.author_id, u.username, u.display_name, u.avatar_url,
	       cm.body, cm.likes_count, cm.dislikes_count, cm.created_at, cm.updated_at
	FROM comments cm
	JOIN users u ON u.id = cm.author_id`

func scanComment(row scanner) (*models.Comment, error) {
	var c models.Comment
	err := row.Scan(
		&c.ID, &c.ArticleID, &c.AuthorID, &c.Author.Username, &c.Author.DisplayName, &c.Author.AvatarURL,
		&c.Body, &c.LikesCount, &c.DislikesCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Author.ID = c.AuthorID
	return &c, nil
}

// Create inserts a comment and bumps the article's comments_count.
func (s *CommentStore) Create(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE articles SET comments_count = comments_count + 1 WHERE id = $1
		`, c.ArticleID)
		if err != nil {
			return fmt.Errorf("bump comments count: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.NotFound("article", c.ArticleID.String())
		}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO comments (article_id, author_id, body) VALUES ($1, $2, $3)
			RETURNING id
		`, c.ArticleID, c.AuthorID, c.Body).Scan(&c.ID)
		if err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, c.ID)
}

// FindByID retrieves a comment. Returns nil if not found.
func (s *CommentStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	row := s.db.QueryRowContext(ctx, commentSelect+` WHERE cm.id = $1`, id)
	c, err := scanComment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find comment: %w", err)
	}
	return c, nil
}

// ListByArticle returns an article's comments, oldest first.
func (s *CommentStore) ListByArticle(ctx context.Context, articleID uuid.UUID) ([]models.Comment, error) {
	rows, err := s.db.QueryContext(ctx, commentSelect+`
		WHERE cm.article_id = $1
		ORDER BY cm.created_at, cm.id
	`, articleID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := []models.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

// Delete removes a comment and its reactions and decrements the article's
// comments_count.
func (s *CommentStore) Delete(ctx context.Context, c *models.Comment) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, c.ID)
		if err != nil {
			return fmt.Errorf("delete comment: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.NotFound("comment", c.ID.String())
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM reactions WHERE target_type = 'comment' AND target_id = $1
		`, c.ID); err != nil {
			return fmt.Errorf("delete comment reactions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE articles SET comments_count = GREATEST(comments_count - 1, 0) WHERE id = $1
		`, c.ArticleID); err != nil {
			return fmt.Errorf("drop comments count: %w", err)
		}
		return nil
	})
}
