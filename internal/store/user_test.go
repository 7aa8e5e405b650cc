// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkpress/internal/apperror"
	"inkpress/internal/models"
)

func TestUserStoreCreate(t *testing.T) {
	db := testDB(t)
	user := createUser(t, db)

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.False(t, user.TOTPEnabled, "new users start without 2FA")
	assert.True(t, user.HasPassword())
}

func TestUserStoreCreateDuplicate(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()
	existing := createUser(t, db)

	t.Run("email differs only in case", func(t *testing.T) {
		_, err := s.Create(ctx, &models.User{
			Email:    "  " + strings.ToUpper(existing.Email),
			Username: "u_" + xid.New().String(),
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperror.ErrConflict))

		var appErr *apperror.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "email", appErr.Field)
	})

	t.Run("username", func(t *testing.T) {
		_, err := s.Create(ctx, &models.User{
			Email:    xid.New().String() + "@store-test.local",
			Username: existing.Username,
		})
		var appErr *apperror.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "username", appErr.Field)
	})
}

func TestUserStoreFind(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()

	missing, err := s.FindByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing, "random UUID must not match")

	created := createUser(t, db)

	byEmail, err := s.FindByEmail(ctx, strings.ToUpper(created.Email))
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, created.ID, byEmail.ID)

	byName, err := s.FindByUsername(ctx, created.Username)
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, created.Email, byName.Email)
}

func TestUserStoreUpdateProfile(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()
	u := createUser(t, db)

	avatar := "https://cdn.example.com/a.png"
	u.DisplayName = "Renamed"
	u.Bio = "Writes about Go."
	u.AvatarURL = &avatar
	require.NoError(t, s.UpdateProfile(ctx, u))

	got, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.DisplayName)
	assert.Equal(t, "Writes about Go.", got.Bio)
	require.NotNil(t, got.AvatarURL)
	assert.Equal(t, avatar, *got.AvatarURL)
}

func TestUserStoreTOTP(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()
	u := createUser(t, db)

	require.NoError(t, s.SetTOTPSecret(ctx, u.ID, "JBSWY3DPEHPK3PXP"))
	got, _ := s.FindByID(ctx, u.ID)
	require.NotNil(t, got.TOTPSecret)
	assert.False(t, got.TOTPEnabled, "secret alone must not enable 2FA")

	require.NoError(t, s.EnableTOTP(ctx, u.ID))
	got, _ = s.FindByID(ctx, u.ID)
	assert.True(t, got.TOTPEnabled)

	require.NoError(t, s.ResetTOTP(ctx, u.ID))
	got, _ = s.FindByID(ctx, u.ID)
	assert.Nil(t, got.TOTPSecret)
	assert.False(t, got.TOTPEnabled)
}

func TestUserStoreIdentities(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()
	providerID := xid.New().String()

	none, err := s.FindByIdentity(ctx, "github", providerID)
	require.NoError(t, err)
	assert.Nil(t, none)

	created, err := s.CreateWithIdentity(ctx, &models.User{
		Email:    "social-" + providerID + "@store-test.local",
		Username: "s_" + providerID,
	}, "github", providerID)
	require.NoError(t, err)
	t.Cleanup(func() { db.Exec("DELETE FROM users WHERE id = $1", created.ID) })

	assert.True(t, created.EmailVerified)
	assert.False(t, created.HasPassword())

	found, err := s.FindByIdentity(ctx, "github", providerID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	// Linking a second provider to an unverified password user verifies it.
	other := createUser(t, db)
	_, err = db.Exec("UPDATE users SET email_verified = FALSE WHERE id = $1", other.ID)
	require.NoError(t, err)
	require.NoError(t, s.LinkIdentity(ctx, other.ID, "google", providerID))

	linked, err := s.FindByIdentity(ctx, "google", providerID)
	require.NoError(t, err)
	require.NotNil(t, linked)
	assert.Equal(t, other.ID, linked.ID)
	assert.True(t, linked.EmailVerified)
}

func TestPrefixColumns(t *testing.T) {
	assert.Equal(t, "u.id, u.email", prefixColumns("u", "id, email"))
}
