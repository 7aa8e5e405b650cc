// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"inkpress/internal/apperror"
	"inkpress/internal/events"
	"inkpress/internal/metrics"
	"inkpress/internal/models"
)

type eventKey struct {
	target models.TargetType
	kind   models.ReactionKind
	remove bool
}

var reactionEvents = map[eventKey]string{
	{models.TargetArticle, models.ReactionLike, false}:    events.ArticleLiked,
	{models.TargetArticle, models.ReactionDislike, false}: events.ArticleDisliked,
	{models.TargetArticle, models.ReactionLike, true}:     events.ArticleLikeRemoved,
	{models.TargetArticle, models.ReactionDislike, true}:  events.ArticleDislikeRemoved,
	{models.TargetComment, models.ReactionLike, false}:    events.CommentLiked,
	{models.TargetComment, models.ReactionDislike, false}: events.CommentDisliked,
	{models.TargetComment, models.ReactionLike, true}:     events.CommentLikeRemoved,
	{models.TargetComment, models.ReactionDislike, true}:  events.CommentDislikeRemoved,
}

var actionLabels = map[models.ReactionAction]string{
	models.ActionInsert: "insert",
	models.ActionSwitch: "switch",
	models.ActionDelete: "delete",
}

// ReactionService applies likes and dislikes to articles and comments.
type ReactionService struct {
	reactions ReactionRepository
	articles  ArticleRepository
	comments  CommentRepository
	events    events.Publisher
}

func NewReactionService(reactions ReactionRepository, articles ArticleRepository, comments CommentRepository, publisher events.Publisher) *ReactionService {
	return &ReactionService{
		reactions: reactions,
		articles:  articles,
		comments:  comments,
		events:    publisher,
	}
}

// ReactionOutcome is the result of a like or dislike request. Created is
// true only when a new reaction row was inserted.
type ReactionOutcome struct {
	Message string
	Created bool
	Article *models.Article
	Comment *models.Comment
}

// ReactArticle sets (remove=false) or withdraws (remove=true) the user's
// like or dislike on an article. Setting the reaction the user already
// holds changes nothing. Withdrawing one the user does not hold is a
// not-found error.
func (s *ReactionService) ReactArticle(ctx context.Context, user *models.User, slugStr string, kind models.ReactionKind, remove bool) (*ReactionOutcome, error) {
	if !kind.Valid() {
		return nil, apperror.ValidationFailed("kind", "unknown reaction")
	}
	a, err := s.articles.FindBySlug(ctx, slugStr)
	if err != nil {
		return nil, err
	}
	if a == nil || hiddenFrom(user, a) {
		return nil, apperror.NotFound("article", slugStr)
	}

	res, err := s.apply(ctx, models.TargetArticle, a.ID, user.ID, kind, remove)
	if err != nil {
		return nil, err
	}
	a.LikesCount = res.Counts.Likes
	a.DislikesCount = res.Counts.Dislikes
	if a.Tags == nil {
		a.Tags = []string{}
	}
	a.ReadingTime = models.ReadingTime(a.Body)
	return &ReactionOutcome{
		Message: reactionMessage(models.TargetArticle, kind, res.Action),
		Created: res.Action == models.ActionInsert,
		Article: a,
	}, nil
}

// ReactComment is ReactArticle for comments. Comments under an article
// hidden from user are not found.
func (s *ReactionService) ReactComment(ctx context.Context, user *models.User, commentID uuid.UUID, kind models.ReactionKind, remove bool) (*ReactionOutcome, error) {
	if !kind.Valid() {
		return nil, apperror.ValidationFailed("kind", "unknown reaction")
	}
	c, err := s.comments.FindByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperror.NotFound("comment", commentID.String())
	}
	a, err := s.articles.FindByID(ctx, c.ArticleID)
	if err != nil {
		return nil, err
	}
	if a == nil || hiddenFrom(user, a) {
		return nil, apperror.NotFound("comment", commentID.String())
	}

	res, err := s.apply(ctx, models.TargetComment, c.ID, user.ID, kind, remove)
	if err != nil {
		return nil, err
	}
	c.LikesCount = res.Counts.Likes
	c.DislikesCount = res.Counts.Dislikes
	return &ReactionOutcome{
		Message: reactionMessage(models.TargetComment, kind, res.Action),
		Created: res.Action == models.ActionInsert,
		Comment: c,
	}, nil
}

// apply runs the transition and records it. Requests that change nothing
// are neither counted nor published.
func (s *ReactionService) apply(ctx context.Context, target models.TargetType, targetID, userID uuid.UUID, kind models.ReactionKind, remove bool) (*models.ReactionResult, error) {
	res, err := s.reactions.Apply(ctx, target, targetID, userID, kind, remove)
	if err != nil {
		return nil, err
	}
	switch res.Action {
	case models.ActionAbsent:
		return nil, apperror.NotFoundf("%s not found", kind)
	case models.ActionNone:
		return res, nil
	}

	metrics.Reactions.WithLabelValues(string(target), string(kind), actionLabels[res.Action]).Inc()
	eventType := reactionEvents[eventKey{target, kind, remove}]
	ev := events.New(eventType, userID, string(target), targetID, map[string]any{
		"likes_count":    res.Counts.Likes,
		"dislikes_count": res.Counts.Dislikes,
	})
	if err := s.events.Publish(ctx, ev); err != nil {
		slog.Warn("publish event failed", "type", eventType, "error", err)
	}
	return res, nil
}

// reactionMessage builds the response message, e.g. "article liked",
// "comment already disliked" or "like removed".
func reactionMessage(target models.TargetType, kind models.ReactionKind, action models.ReactionAction) string {
	switch action {
	case models.ActionDelete:
		return fmt.Sprintf("%s removed", kind)
	case models.ActionNone:
		return fmt.Sprintf("%s already %sd", target, kind)
	default:
		return fmt.Sprintf("%s %sd", target, kind)
	}
}
