package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"inkpress/internal/service"
)

// Categories groups category handlers. Writes are admin only.
type Categories struct {
	categories *service.CategoryService
}

// NewCategories creates a new Categories handler group.
func NewCategories(categories *service.CategoryService) *Categories {
	return &Categories{categories: categories}
}

// List returns every category with its article count.
func (h *Categories) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.categories.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"categories": list})
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create adds a category.
func (h *Categories) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.categories.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, "category created", "category", c)
}

// Delete removes a category; its articles move to "other".
func (h *Categories) Delete(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	moved, err := h.categories.Delete(r.Context(), slug)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("category deleted", "slug", slug, "articles_moved", moved)
	writeJSON(w, http.StatusOK, envelope{"message": "category deleted", "articlesMoved": moved})
}
