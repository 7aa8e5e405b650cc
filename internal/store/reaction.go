package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"inkpress/internal/apperror"
	"inkpress/internal/models"
)

// ReactionStore applies likes and dislikes and keeps the denormalized
// counters on the target equal to the reaction rows.
type ReactionStore struct {
	db *sql.DB
}

// NewReactionStore creates a new ReactionStore.
func NewReactionStore(db *sql.DB) *ReactionStore {
	return &ReactionStore{db: db}
}

// errRetryReaction signals a lost insert race inside Apply.
var errRetryReaction = errors.New("concurrent reaction insert")

// reactionTables whitelists the tables that carry reaction counters.
var reactionTables = map[models.TargetType]string{
	models.TargetArticle: "articles",
	models.TargetComment: "comments",
}

// Apply moves the user's reaction on a target towards the requested state.
// With remove set it withdraws a reaction of the given kind. The target row
// and the existing reaction are locked, and the counters are recomputed
// from the reaction rows before commit.
func (s *ReactionStore) Apply(ctx context.Context, target models.TargetType, targetID, userID uuid.UUID, kind models.ReactionKind, remove bool) (*models.ReactionResult, error) {
	table, ok := reactionTables[target]
	if !ok {
		return nil, fmt.Errorf("unknown reaction target %q", target)
	}

	res, err := s.apply(ctx, table, target, targetID, userID, kind, remove)
	if errors.Is(err, errRetryReaction) {
		// The unique index rejected a racing insert; the second pass sees the row.
		res, err = s.apply(ctx, table, target, targetID, userID, kind, remove)
	}
	return res, err
}

func (s *ReactionStore) apply(ctx context.Context, table string, target models.TargetType, targetID, userID uuid.UUID, kind models.ReactionKind, remove bool) (*models.ReactionResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var counts models.Counts
	err = tx.QueryRowContext(ctx, `
		SELECT likes_count, dislikes_count FROM `+table+` WHERE id = $1 FOR UPDATE
	`, targetID).Scan(&counts.Likes, &counts.Dislikes)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound(string(target), targetID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", target, err)
	}

	var current *models.ReactionKind
	var existing models.ReactionKind
	err = tx.QueryRowContext(ctx, `
		SELECT kind FROM reactions
		WHERE target_type = $1 AND target_id = $2 AND user_id = $3
		FOR UPDATE
	`, target, targetID, userID).Scan(&existing)
	switch {
	case err == nil:
		current = &existing
	case err != sql.ErrNoRows:
		return nil, fmt.Errorf("find reaction: %w", err)
	}

	action := models.NextReaction(current, kind, remove)
	switch action {
	case models.ActionInsert:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO reactions (target_type, target_id, user_id, kind) VALUES ($1, $2, $3, $4)
		`, target, targetID, userID, kind)
		if _, dup := uniqueViolation(err); dup {
			return nil, errRetryReaction
		}
	case models.ActionSwitch:
		_, err = tx.ExecContext(ctx, `
			UPDATE reactions SET kind = $1, created_at = NOW()
			WHERE target_type = $2 AND target_id = $3 AND user_id = $4
		`, kind, target, targetID, userID)
	case models.ActionDelete:
		_, err = tx.ExecContext(ctx, `
			DELETE FROM reactions WHERE target_type = $1 AND target_id = $2 AND user_id = $3
		`, target, targetID, userID)
	default:
		return &models.ReactionResult{Action: action, Counts: counts}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("write reaction: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE `+table+` SET
			likes_count = (SELECT COUNT(*) FROM reactions WHERE target_type = $1 AND target_id = $2 AND kind = 'like'),
			dislikes_count = (SELECT COUNT(*) FROM reactions WHERE target_type = $1 AND target_id = $2 AND kind = 'dislike')
		WHERE id = $2
		RETURNING likes_count, dislikes_count
	`, target, targetID).Scan(&counts.Likes, &counts.Dislikes)
	if err != nil {
		return nil, fmt.Errorf("recount reactions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reaction: %w", err)
	}
	return &models.ReactionResult{Action: action, Counts: counts}, nil
}

// Find returns the user's current reaction on a target, or nil.
func (s *ReactionStore) Find(ctx context.Context, target models.TargetType, targetID, userID uuid.UUID) (*models.Reaction, error) {
	r := &models.Reaction{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, target_type, target_id, user_id, kind, created_at FROM reactions
		WHERE target_type = $1 AND target_id = $2 AND user_id = $3
	`, target, targetID, userID).Scan(&r.ID, &r.TargetType, &r.TargetID, &r.UserID, &r.Kind, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find reaction: %w", err)
	}
	return r, nil
}
