package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"inkpress/internal/apperror"
)

func fieldOf(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

func TestValidateArticle(t *testing.T) {
	tests := []struct {
		name              string
		title, desc, body string
		field             string
	}{
		{"valid", "Hello", "", "Body", ""},
		{"empty title", "   ", "", "Body", "title"},
		{"long title", strings.Repeat("t", 301), "", "Body", "title"},
		{"title at limit", strings.Repeat("t", 300), "", "Body", ""},
		{"long description", "Hello", strings.Repeat("d", 1001), "Body", "description"},
		{"empty body", "Hello", "", "\n\t", "body"},
		{"long body", "Hello", "", strings.Repeat("b", 100_001), "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateArticle(tt.title, tt.desc, tt.body)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, apperror.ErrValidation))
			assert.Equal(t, tt.field, fieldOf(err))
		})
	}
}

func TestValidateEmail(t *testing.T) {
	for _, ok := range []string{"a@example.com", "first.last+tag@sub.example.org"} {
		assert.NoError(t, validateEmail(ok), ok)
	}
	for _, bad := range []string{"", "plain", "a@localhost", "a@b@c.com", "<a@example.com>", strings.Repeat("a", 250) + "@x.io"} {
		assert.Error(t, validateEmail(bad), bad)
	}
}

func TestValidateComment(t *testing.T) {
	assert.NoError(t, validateComment("nice post"))
	assert.Error(t, validateComment(" "))
	assert.Error(t, validateComment(strings.Repeat("c", 5001)))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, validatePassword("12345678"))
	assert.NoError(t, validatePassword(strings.Repeat("p", 72)))
	assert.Error(t, validatePassword("1234567"))
	// 25 three-byte runes: long enough in characters, too long in bytes.
	assert.Error(t, validatePassword(strings.Repeat("€", 25)))
}
