package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"inkpress/internal/apperror"
	"inkpress/internal/models"
	"inkpress/internal/slug"
)

// CategoryService manages the category list. Changes are admin-only; the
// router enforces that.
type CategoryService struct {
	categories CategoryRepository
}

func NewCategoryService(categories CategoryRepository) *CategoryService {
	return &CategoryService{categories: categories}
}

// List returns all categories in sort order with their article counts.
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	cats, err := s.categories.List(ctx)
	if err != nil {
		return nil, err
	}
	if cats == nil {
		cats = []models.Category{}
	}
	return cats, nil
}

// Create adds a category with a slug generated from its name.
func (s *CategoryService) Create(ctx context.Context, name, description string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if utf8.RuneCountInString(name) > maxCategoryLen {
		return nil, apperror.ValidationFailed("name", "name is too long (max 50 characters)")
	}
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		return nil, apperror.ValidationFailed("description", "description is too long (max 1,000 characters)")
	}
	catSlug := slug.Generate(name)
	if catSlug == "" {
		return nil, apperror.ValidationFailed("name", "name must contain letters or digits")
	}

	created, err := s.categories.Create(ctx, &models.Category{
		Name:        name,
		Slug:        catSlug,
		Description: strings.TrimSpace(description),
	})
	if err != nil {
		return nil, err
	}
	slog.Info("category created", "slug", created.Slug)
	return created, nil
}

// Delete removes a category and moves its articles to the fallback
// category. The fallback category itself cannot be deleted.
func (s *CategoryService) Delete(ctx context.Context, slugStr string) (int64, error) {
	if slugStr == models.FallbackCategory {
		return 0, apperror.ValidationFailed("slug", "the fallback category cannot be deleted")
	}
	moved, err := s.categories.Delete(ctx, slugStr)
	if err != nil {
		return 0, err
	}
	slog.Info("category deleted", "slug", slugStr, "moved_articles", moved)
	return moved, nil
}
