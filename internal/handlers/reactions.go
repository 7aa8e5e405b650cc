package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"inkpress/internal/middleware"
	"inkpress/internal/models"
	"inkpress/internal/service"
)

// Reactions serves like and dislike endpoints for articles and comments.
type Reactions struct {
	reactions *service.ReactionService
}

// NewReactions creates a new Reactions handler group.
func NewReactions(reactions *service.ReactionService) *Reactions {
	return &Reactions{reactions: reactions}
}

// Article returns the handler for one article reaction route, e.g.
// Article(models.ReactionLike, false) for POST /articles/{slug}/like.
func (h *Reactions) Article(kind models.ReactionKind, remove bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := h.reactions.ReactArticle(r.Context(), middleware.UserFromCtx(r.Context()),
			chi.URLParam(r, "slug"), kind, remove)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeMessage(w, reactionStatus(out), out.Message, "article", out.Article)
	}
}

// Comment returns the handler for one comment reaction route.
func (h *Reactions) Comment(kind models.ReactionKind, remove bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id", "comment")
		if err != nil {
			writeError(w, r, err)
			return
		}
		out, err := h.reactions.ReactComment(r.Context(), middleware.UserFromCtx(r.Context()), id, kind, remove)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeMessage(w, reactionStatus(out), out.Message, "comment", out.Comment)
	}
}

// reactionStatus is 201 only when a new reaction row was inserted.
func reactionStatus(out *service.ReactionOutcome) int {
	if out.Created {
		return http.StatusCreated
	}
	return http.StatusOK
}
