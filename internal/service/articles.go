// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"inkpress/internal/apperror"
	"inkpress/internal/events"
	"inkpress/internal/markdown"
	"inkpress/internal/models"
	"inkpress/internal/slug"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100

	untitledSlug = "article"
)

// ArticleService implements article CRUD, category fallback and tagging.
type ArticleService struct {
	articles   ArticleRepository
	categories CategoryRepository
	tags       TagRepository
	events     events.Publisher
}

// NewArticleService creates an ArticleService.
func NewArticleService(articles ArticleRepository, categories CategoryRepository, tags TagRepository, publisher events.Publisher) *ArticleService {
	return &ArticleService{
		articles:   articles,
		categories: categories,
		tags:       tags,
		events:     publisher,
	}
}

// ArticleInput is the payload of a create request.
type ArticleInput struct {
	Title       string
	Description string
	Body        string
	Category    string
	Tags        []string
	ImageURL    *string
}

// Create stores a new article by author. An empty category selects
// "other"; an unknown one also selects "other" and is kept as a tag.
func (s *ArticleService) Create(ctx context.Context, author *models.User, in ArticleInput) (*models.Article, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if err := validateArticle(title, description, in.Body); err != nil {
		return nil, err
	}
	imageURL, err := normalizeImageURL(in.ImageURL)
	if err != nil {
		return nil, err
	}
	tags, err := NormalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}
	cat, unknown, err := resolveCategory(ctx, s.categories, in.Category)
	if err != nil {
		return nil, err
	}
	if unknown {
		tags = appendFallbackTag(tags, in.Category)
	}

	a := &models.Article{
		Title:       title,
		Description: description,
		Body:        in.Body,
		ImageURL:    imageURL,
		AuthorID:    author.ID,
		CategoryID:  cat.ID,
	}
	a.Slug, err = s.freeSlug(ctx, title)
	if err != nil {
		return nil, err
	}

	created, err := s.articles.Create(ctx, a, tags)
	if errors.Is(err, apperror.ErrConflict) {
		// Another article took the slug since freeSlug checked it.
		a.Slug = slug.WithSuffix(a.Slug)
		created, err = s.articles.Create(ctx, a, tags)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("article created", "article_id", created.ID, "slug", created.Slug, "author_id", author.ID)

	if err := s.events.Publish(ctx, events.New(events.ArticleCreated, author.ID, string(models.TargetArticle), created.ID, map[string]any{
		"slug": created.Slug,
	})); err != nil {
		slog.Warn("publish event failed", "type", events.ArticleCreated, "error", err)
	}
	return render(created)
}

// freeSlug derives a slug from title and appends a unique suffix when the
// plain slug is already used.
func (s *ArticleService) freeSlug(ctx context.Context, title string) (string, error) {
	base := slug.Generate(title)
	if base == "" {
		base = untitledSlug
	}
	exists, err := s.articles.SlugExists(ctx, base)
	if err != nil {
		return "", err
	}
	if exists {
		return slug.WithSuffix(base), nil
	}
	return base, nil
}

// Get returns an article with its rendered body. Archived articles are
// only visible to their author and admins; viewer may be nil.
func (s *ArticleService) Get(ctx context.Context, slugStr string, viewer *models.User) (*models.Article, error) {
	a, err := s.find(ctx, slugStr)
	if err != nil {
		return nil, err
	}
	if hiddenFrom(viewer, a) {
		return nil, apperror.NotFound("article", slugStr)
	}
	return render(a)
}

// ListInput selects a page of articles.
type ListInput struct {
	Page     int
	PerPage  int
	Tag      string
	Category string
	Author   string
}

// ArticlePage is one page of a listing.
type ArticlePage struct {
	Articles []models.Article `json:"articles"`
	Page     int              `json:"page"`
	PerPage  int              `json:"perPage"`
	Total    int              `json:"total"`
}

// List returns non-archived articles, newest first.
func (s *ArticleService) List(ctx context.Context, in ListInput) (*ArticlePage, error) {
	page, perPage := clampPage(in.Page, in.PerPage)
	filter := models.ArticleFilter{
		Category: strings.ToLower(strings.TrimSpace(in.Category)),
		Author:   strings.TrimSpace(in.Author),
		Limit:    perPage,
		Offset:   (page - 1) * perPage,
	}
	if tag := strings.TrimSpace(in.Tag); tag != "" {
		filter.Tag = strings.ToLower(strings.Join(strings.Fields(tag), " "))
	}

	articles, total, err := s.articles.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range articles {
		articles[i].ReadingTime = models.ReadingTime(articles[i].Body)
	}
	if articles == nil {
		articles = []models.Article{}
	}
	return &ArticlePage{Articles: articles, Page: page, PerPage: perPage, Total: total}, nil
}

// clampPage applies listing defaults: page starts at 1, perPage defaults
// to DefaultPerPage and never exceeds MaxPerPage.
func clampPage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case perPage < 1:
		perPage = DefaultPerPage
	case perPage > MaxPerPage:
		perPage = MaxPerPage
	}
	return page, perPage
}

// ArticleUpdate is a partial update. Nil fields are left unchanged; a nil
// Tags slice keeps the current tags and an empty one clears them.
type ArticleUpdate struct {
	Title       *string
	Description *string
	Body        *string
	Category    *string
	Tags        []string
	ImageURL    *string
}

// Update edits an article. Only its author or an admin may do so. The slug
// does not follow title changes.
func (s *ArticleService) Update(ctx context.Context, user *models.User, slugStr string, in ArticleUpdate) (*models.Article, error) {
	a, err := s.findEditable(ctx, user, slugStr)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		a.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		a.Description = strings.TrimSpace(*in.Description)
	}
	if in.Body != nil {
		a.Body = *in.Body
	}
	if err := validateArticle(a.Title, a.Description, a.Body); err != nil {
		return nil, err
	}
	if in.ImageURL != nil {
		a.ImageURL, err = normalizeImageURL(in.ImageURL)
		if err != nil {
			return nil, err
		}
	}

	var tags []string
	if in.Tags != nil {
		if tags, err = NormalizeTags(in.Tags); err != nil {
			return nil, err
		}
	}
	if in.Category != nil {
		cat, unknown, err := resolveCategory(ctx, s.categories, *in.Category)
		if err != nil {
			return nil, err
		}
		a.CategoryID = cat.ID
		if unknown {
			if tags == nil {
				tags = append([]string{}, a.Tags...)
			}
			tags = appendFallbackTag(tags, *in.Category)
		}
	}

	updated, err := s.articles.Update(ctx, a, tags)
	if err != nil {
		return nil, err
	}
	return render(updated)
}

// Delete removes an article with its comments and reactions.
func (s *ArticleService) Delete(ctx context.Context, user *models.User, slugStr string) error {
	a, err := s.findEditable(ctx, user, slugStr)
	if err != nil {
		return err
	}
	if err := s.articles.Delete(ctx, a.ID); err != nil {
		return err
	}
	slog.Info("article deleted", "article_id", a.ID, "slug", a.Slug, "by", user.ID)
	return nil
}

// SetArchived archives or restores an article.
func (s *ArticleService) SetArchived(ctx context.Context, user *models.User, slugStr string, archived bool) (*models.Article, error) {
	a, err := s.findEditable(ctx, user, slugStr)
	if err != nil {
		return nil, err
	}
	if err := s.articles.SetArchived(ctx, a.ID, archived); err != nil {
		return nil, err
	}
	a.IsArchived = archived
	return render(a)
}

// Tags lists every tag with its article count.
func (s *ArticleService) Tags(ctx context.Context) ([]models.Tag, error) {
	tags, err := s.tags.List(ctx)
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	return tags, nil
}

func (s *ArticleService) find(ctx context.Context, slugStr string) (*models.Article, error) {
	a, err := s.articles.FindBySlug(ctx, slugStr)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperror.NotFound("article", slugStr)
	}
	return a, nil
}

func (s *ArticleService) findEditable(ctx context.Context, user *models.User, slugStr string) (*models.Article, error) {
	a, err := s.find(ctx, slugStr)
	if err != nil {
		return nil, err
	}
	if hiddenFrom(user, a) {
		return nil, apperror.NotFound("article", slugStr)
	}
	if !canModify(user, a) {
		return nil, apperror.Forbidden("only the author or an admin can change this article")
	}
	return a, nil
}

func canModify(user *models.User, a *models.Article) bool {
	return user.IsAdmin() || a.IsAuthoredBy(user.ID)
}

// hiddenFrom reports whether viewer must not learn that a exists: archived
// articles are visible to their author and admins only. viewer may be nil.
func hiddenFrom(viewer *models.User, a *models.Article) bool {
	return a.IsArchived && (viewer == nil || !canModify(viewer, a))
}

func normalizeImageURL(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	u := strings.TrimSpace(*raw)
	if u == "" {
		return nil, nil
	}
	if !isHTTPURL(u) {
		return nil, apperror.ValidationFailed("imageUrl", "image URL must be an http(s) URL")
	}
	return &u, nil
}

// render fills the derived fields of a single-article response.
func render(a *models.Article) (*models.Article, error) {
	html, err := markdown.ToHTML(a.Body)
	if err != nil {
		return nil, fmt.Errorf("render article %s: %w", a.Slug, err)
	}
	a.BodyHTML = html
	a.ReadingTime = models.ReadingTime(a.Body)
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return a, nil
}
