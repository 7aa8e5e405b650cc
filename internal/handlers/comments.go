package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"inkpress/internal/middleware"
	"inkpress/internal/service"
)

// Comments groups article comment handlers.
type Comments struct {
	comments *service.CommentService
}

// NewComments creates a new Comments handler group.
func NewComments(comments *service.CommentService) *Comments {
	return &Comments{comments: comments}
}

// List returns the comments on an article, oldest first.
func (h *Comments) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.comments.List(r.Context(), chi.URLParam(r, "slug"), middleware.UserFromCtx(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"comments": list})
}

type commentRequest struct {
	Body string `json:"body"`
}

// Create adds a comment by the caller.
func (h *Comments) Create(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.comments.Create(r.Context(), middleware.UserFromCtx(r.Context()), chi.URLParam(r, "slug"), req.Body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, "comment added", "comment", c)
}

// Delete removes a comment. Its author, the article's author and admins
// may do so.
func (h *Comments) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "comment")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.comments.Delete(r.Context(), middleware.UserFromCtx(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "comment deleted", "", nil)
}
