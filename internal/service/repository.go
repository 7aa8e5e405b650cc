// Package service holds the business rules of inkpress. It sits between
// the HTTP handlers and the stores:
//
//	handlers (HTTP) → service (rules) → store (SQL)
//
// Services accept the narrow interfaces declared here so they can be unit
// tested with in-memory fakes. The concrete implementations live in
// internal/store, internal/jobs and internal/events.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"inkpress/internal/models"
)

// UserRepository reads and writes user accounts.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, u *models.User) (*models.User, error)
	UpdateProfile(ctx context.Context, u *models.User) error
	SetTOTPSecret(ctx context.Context, userID uuid.UUID, secret string) error
	EnableTOTP(ctx context.Context, userID uuid.UUID) error
	ResetTOTP(ctx context.Context, userID uuid.UUID) error
	FindByIdentity(ctx context.Context, provider, providerUserID string) (*models.User, error)
	LinkIdentity(ctx context.Context, userID uuid.UUID, provider, providerUserID string) error
	CreateWithIdentity(ctx context.Context, u *models.User, provider, providerUserID string) (*models.User, error)
}

// TokenRepository stores one-time token hashes and consumes them.
type TokenRepository interface {
	Create(ctx context.Context, userID uuid.UUID, purpose models.TokenPurpose, hash string, ttl time.Duration) error
	VerifyEmail(ctx context.Context, hash string) (uuid.UUID, error)
	ResetPassword(ctx context.Context, hash, passwordHash string) (uuid.UUID, error)
}

// SessionLister lists a user's live sessions.
type SessionLister interface {
	ListActive(ctx context.Context, userID uuid.UUID) ([]models.Session, error)
}

// CategoryRepository manages article categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]models.Category, error)
	Resolve(ctx context.Context, nameOrSlug string) (*models.Category, error)
	Create(ctx context.Context, c *models.Category) (*models.Category, error)
	Delete(ctx context.Context, slug string) (int64, error)
}

// ArticleRepository persists articles and their tag sets.
type ArticleRepository interface {
	Create(ctx context.Context, a *models.Article, tags []string) (*models.Article, error)
	Update(ctx context.Context, a *models.Article, tags []string) (*models.Article, error)
	FindBySlug(ctx context.Context, slug string) (*models.Article, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Article, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context, f models.ArticleFilter) ([]models.Article, int, error)
	SetArchived(ctx context.Context, id uuid.UUID, archived bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// TagRepository lists tags with usage counts.
type TagRepository interface {
	List(ctx context.Context) ([]models.Tag, error)
}

// CommentRepository persists comments and keeps comments_count in step.
type CommentRepository interface {
	Create(ctx context.Context, c *models.Comment) (*models.Comment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	ListByArticle(ctx context.Context, articleID uuid.UUID) ([]models.Comment, error)
	Delete(ctx context.Context, c *models.Comment) error
}

// ReactionRepository applies like/dislike transitions transactionally.
type ReactionRepository interface {
	Apply(ctx context.Context, target models.TargetType, targetID, userID uuid.UUID, kind models.ReactionKind, remove bool) (*models.ReactionResult, error)
}

// MediaRepository stores uploaded image metadata.
type MediaRepository interface {
	Create(ctx context.Context, m *models.Media) (*models.Media, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Media, error)
	ListByUploader(ctx context.Context, uploaderID uuid.UUID, limit, offset int) ([]models.Media, error)
	Delete(ctx context.Context, id uuid.UUID) (*models.Media, error)
}

// EmailQueue hands transactional emails to the background worker.
type EmailQueue interface {
	EnqueueVerifyEmail(ctx context.Context, to, name, token string) error
	EnqueuePasswordReset(ctx context.Context, to, name, token string) error
}
