package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"inkpress/internal/apperror"
	"inkpress/internal/models"
)

// UserStore handles all user-related database operations.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a new UserStore with the given database connection.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, email, username, display_name, bio, avatar_url, password_hash,
	role, email_verified, totp_secret, totp_enabled, created_at, updated_at`

func scanUser(row scanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.DisplayName, &u.Bio, &u.AvatarURL, &u.PasswordHash,
		&u.Role, &u.EmailVerified, &u.TOTPSecret, &u.TOTPEnabled, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// userConflict maps a unique violation on users to a client-facing conflict.
func userConflict(err error) error {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return nil
	}
	if strings.Contains(constraint, "username") {
		return apperror.Conflict("username", "username is already taken")
	}
	return apperror.Conflict("email", "email is already registered")
}

func (s *UserStore) findOne(ctx context.Context, where string, arg any) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// FindByEmail retrieves a user by email address (case-insensitive). Returns nil if not found.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := s.findOne(ctx, `email = $1`, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

// FindByID retrieves a user by their UUID. Returns nil if not found.
func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := s.findOne(ctx, `id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

// FindByUsername retrieves a user by username. Returns nil if not found.
func (s *UserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := s.findOne(ctx, `username = $1`, username)
	if err != nil {
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	return u, nil
}

// Create inserts a new user. The password hash is computed by the caller.
// Duplicate email or username yields an apperror conflict.
func (s *UserStore) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, username, display_name, bio, avatar_url, password_hash, role, email_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+userColumns,
		strings.ToLower(strings.TrimSpace(u.Email)), u.Username, u.DisplayName, u.Bio,
		u.AvatarURL, u.PasswordHash, u.Role, u.EmailVerified,
	)
	created, err := scanUser(row)
	if err != nil {
		if conflict := userConflict(err); conflict != nil {
			return nil, conflict
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// UpdateProfile saves the editable profile fields.
func (s *UserStore) UpdateProfile(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET display_name = $1, bio = $2, avatar_url = $3, updated_at = NOW()
		WHERE id = $4
	`, u.DisplayName, u.Bio, u.AvatarURL, u.ID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// SetTOTPSecret saves the TOTP secret for a user (during 2FA setup).
func (s *UserStore) SetTOTPSecret(ctx context.Context, userID uuid.UUID, secret string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET totp_secret = $1, totp_enabled = FALSE, updated_at = NOW() WHERE id = $2
	`, secret, userID)
	if err != nil {
		return fmt.Errorf("set totp secret: %w", err)
	}
	return nil
}

// EnableTOTP marks 2FA as active for a user (after successful code verification).
func (s *UserStore) EnableTOTP(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET totp_enabled = TRUE, updated_at = NOW() WHERE id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("enable totp: %w", err)
	}
	return nil
}

// ResetTOTP clears the TOTP secret and disables 2FA for a user.
func (s *UserStore) ResetTOTP(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET totp_secret = NULL, totp_enabled = FALSE, updated_at = NOW() WHERE id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("reset totp: %w", err)
	}
	return nil
}

// FindByIdentity resolves a social login to its linked user. Returns nil if unlinked.
func (s *UserStore) FindByIdentity(ctx context.Context, provider, providerUserID string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+prefixColumns("u", userColumns)+`
		FROM user_identities i JOIN users u ON u.id = i.user_id
		WHERE i.provider = $1 AND i.provider_user_id = $2
	`, provider, providerUserID)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by identity: %w", err)
	}
	return u, nil
}

// LinkIdentity attaches a social account to an existing user and marks
// the email verified, since the provider vouched for it.
func (s *UserStore) LinkIdentity(ctx context.Context, userID uuid.UUID, provider, providerUserID string) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_identities (provider, provider_user_id, user_id) VALUES ($1, $2, $3)
			ON CONFLICT (provider, provider_user_id) DO NOTHING
		`, provider, providerUserID, userID); err != nil {
			return fmt.Errorf("link identity: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1
		`, userID); err != nil {
			return fmt.Errorf("verify linked user: %w", err)
		}
		return nil
	})
}

// CreateWithIdentity inserts a social-login user and its identity link atomically.
func (s *UserStore) CreateWithIdentity(ctx context.Context, u *models.User, provider, providerUserID string) (*models.User, error) {
	var created *models.User
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO users (email, username, display_name, avatar_url, role, email_verified)
			VALUES ($1, $2, $3, $4, 'user', TRUE)
			RETURNING `+userColumns,
			strings.ToLower(strings.TrimSpace(u.Email)), u.Username, u.DisplayName, u.AvatarURL,
		)
		var err error
		created, err = scanUser(row)
		if err != nil {
			if conflict := userConflict(err); conflict != nil {
				return conflict
			}
			return fmt.Errorf("create social user: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_identities (provider, provider_user_id, user_id) VALUES ($1, $2, $3)
		`, provider, providerUserID, created.ID); err != nil {
			return fmt.Errorf("create identity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// prefixColumns qualifies a comma-separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
