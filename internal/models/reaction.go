package models

import (
	"time"

	"github.com/google/uuid"
)

// TargetType names the table a reaction points at.
type TargetType string

const (
	TargetArticle TargetType = "article"
	TargetComment TargetType = "comment"
)

// ReactionKind is either a like or a dislike.
type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

// Opposite returns the other reaction kind.
func (k ReactionKind) Opposite() ReactionKind {
	if k == ReactionLike {
		return ReactionDislike
	}
	return ReactionLike
}

// Valid reports whether k is a known reaction kind.
func (k ReactionKind) Valid() bool {
	return k == ReactionLike || k == ReactionDislike
}

// Reaction is one user's like or dislike on an article or comment.
// (TargetType, TargetID, UserID) is unique.
type Reaction struct {
	ID         uuid.UUID    `json:"id"`
	TargetType TargetType   `json:"targetType"`
	TargetID   uuid.UUID    `json:"targetId"`
	UserID     uuid.UUID    `json:"userId"`
	Kind       ReactionKind `json:"kind"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// ReactionAction is the row change needed to move a user's reaction
// from its current state to the requested one.
type ReactionAction int

const (
	ActionNone   ReactionAction = iota // already in the requested state
	ActionInsert                       // no row yet
	ActionSwitch                       // row exists with the opposite kind
	ActionDelete                       // row exists and is being withdrawn
	ActionAbsent                       // withdraw requested but no matching row
)

// NextReaction decides the action for a request. current is nil when the
// user has not reacted. remove withdraws want instead of setting it.
func NextReaction(current *ReactionKind, want ReactionKind, remove bool) ReactionAction {
	switch {
	case remove && (current == nil || *current != want):
		return ActionAbsent
	case remove:
		return ActionDelete
	case current == nil:
		return ActionInsert
	case *current == want:
		return ActionNone
	default:
		return ActionSwitch
	}
}

// Counts holds the recalculated totals of a reaction target.
type Counts struct {
	Likes    int `json:"likesCount"`
	Dislikes int `json:"dislikesCount"`
}

// ReactionResult describes what applying a reaction request did.
type ReactionResult struct {
	Action ReactionAction
	Counts Counts
}
