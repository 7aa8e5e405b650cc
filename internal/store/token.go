package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"inkpress/internal/apperror"
	"inkpress/internal/models"
)

// TokenStore manages one-time tokens for email verification and password reset.
type TokenStore struct {
	db *sql.DB
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

// errInvalidToken is returned for unknown, used, or expired tokens.
var errInvalidToken = apperror.ValidationFailed("token", "invalid or expired token")

// Create stores a token hash for the given purpose. Earlier unused tokens
// for the same user and purpose are invalidated so only the newest works.
func (s *TokenStore) Create(ctx context.Context, userID uuid.UUID, purpose models.TokenPurpose, hash string, ttl time.Duration) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE one_time_tokens SET used_at = NOW()
			WHERE user_id = $1 AND purpose = $2 AND used_at IS NULL
		`, userID, purpose); err != nil {
			return fmt.Errorf("invalidate tokens: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO one_time_tokens (user_id, purpose, token_hash, expires_at)
			VALUES ($1, $2, $3, $4)
		`, userID, purpose, hash, time.Now().Add(ttl)); err != nil {
			return fmt.Errorf("create token: %w", err)
		}
		return nil
	})
}

// consume marks a live token used inside tx and returns its owner.
func consume(ctx context.Context, tx *sql.Tx, purpose models.TokenPurpose, hash string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := tx.QueryRowContext(ctx, `
		UPDATE one_time_tokens SET used_at = NOW()
		WHERE token_hash = $1 AND purpose = $2 AND used_at IS NULL AND expires_at > NOW()
		RETURNING user_id
	`, hash, purpose).Scan(&userID)
	if err == sql.ErrNoRows {
		return uuid.Nil, errInvalidToken
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("consume token: %w", err)
	}
	return userID, nil
}

// VerifyEmail consumes a verification token and marks its user verified.
func (s *TokenStore) VerifyEmail(ctx context.Context, hash string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		if userID, err = consume(ctx, tx, models.TokenVerifyEmail, hash); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1
		`, userID); err != nil {
			return fmt.Errorf("mark verified: %w", err)
		}
		return nil
	})
	return userID, err
}

// ResetPassword consumes a reset token, stores the new password hash and
// revokes every session of the user.
func (s *TokenStore) ResetPassword(ctx context.Context, hash, passwordHash string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		if userID, err = consume(ctx, tx, models.TokenResetPassword, hash); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2
		`, passwordHash, userID); err != nil {
			return fmt.Errorf("set password: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE sessions SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL
		`, userID); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		return nil
	})
	return userID, err
}
