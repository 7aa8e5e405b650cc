// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"inkpress/internal/middleware"
	"inkpress/internal/service"
)

// Articles groups article, tag and listing handlers.
type Articles struct {
	articles *service.ArticleService
}

// NewArticles creates a new Articles handler group.
func NewArticles(articles *service.ArticleService) *Articles {
	return &Articles{articles: articles}
}

type articleRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Body        string   `json:"body"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	ImageURL    *string  `json:"imageUrl"`
}

// Create publishes a new article by the caller.
func (h *Articles) Create(w http.ResponseWriter, r *http.Request) {
	var req articleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	a, err := h.articles.Create(r.Context(), middleware.UserFromCtx(r.Context()), service.ArticleInput{
		Title:       req.Title,
		Description: req.Description,
		Body:        req.Body,
		Category:    req.Category,
		Tags:        req.Tags,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, "article created", "article", a)
}

// Get returns a single article with its rendered body.
func (h *Articles) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.articles.Get(r.Context(), chi.URLParam(r, "slug"), middleware.UserFromCtx(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"article": a})
}

// List returns a page of non-archived articles, newest first, optionally
// filtered by tag, category slug or author username.
func (h *Articles) List(w http.ResponseWriter, r *http.Request) {
	in, err := listInput(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writePage(w, r, in)
}

// TagArticles is List restricted to the tag in the path.
func (h *Articles) TagArticles(w http.ResponseWriter, r *http.Request) {
	in, err := listInput(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in.Tag = chi.URLParam(r, "name")
	h.writePage(w, r, in)
}

func (h *Articles) writePage(w http.ResponseWriter, r *http.Request, in service.ListInput) {
	page, err := h.articles.List(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func listInput(r *http.Request) (service.ListInput, error) {
	page, err := intQuery(r, "page")
	if err != nil {
		return service.ListInput{}, err
	}
	perPage, err := intQuery(r, "perPage")
	if err != nil {
		return service.ListInput{}, err
	}
	q := r.URL.Query()
	return service.ListInput{
		Page:     page,
		PerPage:  perPage,
		Tag:      q.Get("tag"),
		Category: q.Get("category"),
		Author:   q.Get("author"),
	}, nil
}

type articleUpdateRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Body        *string  `json:"body"`
	Category    *string  `json:"category"`
	Tags        []string `json:"tags"` // absent or null keeps the current tags
	ImageURL    *string  `json:"imageUrl"`
}

// Update applies a partial edit. Only the author or an admin may edit.
func (h *Articles) Update(w http.ResponseWriter, r *http.Request) {
	var req articleUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	a, err := h.articles.Update(r.Context(), middleware.UserFromCtx(r.Context()), chi.URLParam(r, "slug"), service.ArticleUpdate{
		Title:       req.Title,
		Description: req.Description,
		Body:        req.Body,
		Category:    req.Category,
		Tags:        req.Tags,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "article updated", "article", a)
}

// Delete removes an article together with its comments and reactions.
func (h *Articles) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.articles.Delete(r.Context(), middleware.UserFromCtx(r.Context()), chi.URLParam(r, "slug")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "article deleted", "", nil)
}

// Archive hides an article from listings and from readers.
func (h *Articles) Archive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true)
}

// Unarchive makes an archived article public again.
func (h *Articles) Unarchive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false)
}

func (h *Articles) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	a, err := h.articles.SetArchived(r.Context(), middleware.UserFromCtx(r.Context()), chi.URLParam(r, "slug"), archived)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := "article unarchived"
	if archived {
		msg = "article archived"
	}
	writeMessage(w, http.StatusOK, msg, "article", a)
}

// Tags lists every tag with its count of visible articles.
func (h *Articles) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.articles.Tags(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"tags": tags})
}
