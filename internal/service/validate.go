package service

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"inkpress/internal/apperror"
	"inkpress/internal/auth"
)

// Validation limits for user and article fields.
const (
	maxTitleLen       = 300
	maxDescriptionLen = 1_000
	maxBodyLen        = 100_000
	maxCommentLen     = 5_000
	maxDisplayNameLen = 100
	maxBioLen         = 500
	maxEmailLen       = 254
	minPasswordLen    = 8
	maxCategoryLen    = 50
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

// validateEmail checks that email is a bare, well-formed address.
func validateEmail(email string) error {
	if email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}
	if len(email) > maxEmailLen {
		return apperror.ValidationFailed("email", "email is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@"):], ".") {
		return apperror.ValidationFailed("email", "email is invalid")
	}
	return nil
}

func validateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return apperror.ValidationFailed("username", "username must be 3-30 characters of a-z, 0-9 or _")
	}
	return nil
}

// validatePassword enforces the length bounds. The upper bound is bcrypt's
// input limit, counted in bytes.
func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return apperror.ValidationFailed("password", "password must be at least 8 characters")
	}
	if len(password) > auth.MaxPasswordBytes {
		return apperror.ValidationFailed("password", "password must be at most 72 bytes")
	}
	return nil
}

// validateArticle checks article inputs and returns the first error found.
func validateArticle(title, description, body string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return apperror.ValidationFailed("title", "title is too long (max 300 characters)")
	}
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		return apperror.ValidationFailed("description", "description is too long (max 1,000 characters)")
	}
	if strings.TrimSpace(body) == "" {
		return apperror.ValidationFailed("body", "body is required")
	}
	if utf8.RuneCountInString(body) > maxBodyLen {
		return apperror.ValidationFailed("body", "body is too long (max 100,000 characters)")
	}
	return nil
}

func validateComment(body string) error {
	if strings.TrimSpace(body) == "" {
		return apperror.ValidationFailed("body", "comment is required")
	}
	if utf8.RuneCountInString(body) > maxCommentLen {
		return apperror.ValidationFailed("body", "comment is too long (max 5,000 characters)")
	}
	return nil
}

// validateProfile checks optional profile fields.
func validateProfile(displayName, bio string, avatarURL *string) error {
	if utf8.RuneCountInString(displayName) > maxDisplayNameLen {
		return apperror.ValidationFailed("displayName", "display name is too long (max 100 characters)")
	}
	if utf8.RuneCountInString(bio) > maxBioLen {
		return apperror.ValidationFailed("bio", "bio is too long (max 500 characters)")
	}
	if avatarURL != nil && *avatarURL != "" && !isHTTPURL(*avatarURL) {
		return apperror.ValidationFailed("avatarUrl", "avatar URL must be an http(s) URL")
	}
	return nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}
