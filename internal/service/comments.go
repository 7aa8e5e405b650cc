package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"inkpress/internal/apperror"
	"inkpress/internal/events"
	"inkpress/internal/models"
)

// CommentService manages reader comments on articles.
type CommentService struct {
	comments CommentRepository
	articles ArticleRepository
	events   events.Publisher
}

func NewCommentService(comments CommentRepository, articles ArticleRepository, publisher events.Publisher) *CommentService {
	return &CommentService{comments: comments, articles: articles, events: publisher}
}

// visibleArticle loads an article that comments can be read or written on.
// Archived articles are hidden from everyone but their author and admins.
func (s *CommentService) visibleArticle(ctx context.Context, slugStr string, viewer *models.User) (*models.Article, error) {
	a, err := s.articles.FindBySlug(ctx, slugStr)
	if err != nil {
		return nil, err
	}
	if a == nil || hiddenFrom(viewer, a) {
		return nil, apperror.NotFound("article", slugStr)
	}
	return a, nil
}

// List returns an article's comments, oldest first.
func (s *CommentService) List(ctx context.Context, slugStr string, viewer *models.User) ([]models.Comment, error) {
	a, err := s.visibleArticle(ctx, slugStr, viewer)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByArticle(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return comments, nil
}

// Create adds a comment by author to the article.
func (s *CommentService) Create(ctx context.Context, author *models.User, slugStr, body string) (*models.Comment, error) {
	body = strings.TrimSpace(body)
	if err := validateComment(body); err != nil {
		return nil, err
	}
	a, err := s.visibleArticle(ctx, slugStr, author)
	if err != nil {
		return nil, err
	}
	c, err := s.comments.Create(ctx, &models.Comment{
		ArticleID: a.ID,
		AuthorID:  author.ID,
		Body:      body,
	})
	if err != nil {
		return nil, err
	}

	if err := s.events.Publish(ctx, events.New(events.CommentCreated, author.ID, string(models.TargetComment), c.ID, map[string]any{
		"article_id": a.ID,
	})); err != nil {
		slog.Warn("publish event failed", "type", events.CommentCreated, "error", err)
	}
	return c, nil
}

// Delete removes a comment. The comment's author, the article's author
// and admins may delete it. Comments on an article hidden from user are
// reported as not found.
func (s *CommentService) Delete(ctx context.Context, user *models.User, id uuid.UUID) error {
	c, err := s.comments.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return apperror.NotFound("comment", id.String())
	}
	a, err := s.articles.FindByID(ctx, c.ArticleID)
	if err != nil {
		return err
	}
	if a == nil || hiddenFrom(user, a) {
		return apperror.NotFound("comment", id.String())
	}
	if !user.IsAdmin() && c.AuthorID != user.ID && !a.IsAuthoredBy(user.ID) {
		return apperror.Forbidden("only the comment author, the article author or an admin can delete this comment")
	}
	return s.comments.Delete(ctx, c)
}
