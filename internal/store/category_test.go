package store

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkpress/internal/apperror"
	"inkpress/internal/models"
)

func TestCategoryStoreListSeeded(t *testing.T) {
	db := testDB(t)
	cats, err := NewCategoryStore(db).List(context.Background())
	require.NoError(t, err)

	var slugs []string
	for _, c := range cats {
		slugs = append(slugs, c.Slug)
	}
	for _, want := range []string{"technology", "lifestyle", "travel", "food", "health", "business", "other"} {
		assert.Contains(t, slugs, want)
	}
	assert.Equal(t, models.FallbackCategory, slugs[len(slugs)-1], "fallback sorts last")
}

func TestCategoryStoreResolve(t *testing.T) {
	db := testDB(t)
	s := NewCategoryStore(db)
	ctx := context.Background()

	tests := []struct {
		input string
		want  string
	}{
		{"technology", "technology"},
		{"  Technology ", "technology"},
		{"TRAVEL", "travel"},
		{"gardening", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c, err := s.Resolve(ctx, tt.input)
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, c)
				return
			}
			require.NotNil(t, c)
			assert.Equal(t, tt.want, c.Slug)
		})
	}
}

func TestCategoryStoreCreateAndDelete(t *testing.T) {
	db := testDB(t)
	s := NewCategoryStore(db)
	ctx := context.Background()

	name := "cat-" + xid.New().String()
	created, err := s.Create(ctx, &models.Category{Name: name, Slug: name})
	require.NoError(t, err)
	t.Cleanup(func() { db.Exec("DELETE FROM categories WHERE id = $1", created.ID) })
	assert.Less(t, created.SortOrder, 100, "new categories sort before the fallback")

	_, err = s.Create(ctx, &models.Category{Name: name, Slug: name})
	assert.True(t, errors.Is(err, apperror.ErrConflict))

	// An article in the category moves to the fallback on delete.
	author := createUser(t, db)
	article := createArticle(t, db, author)
	_, err = db.Exec("UPDATE articles SET category_id = $1 WHERE id = $2", created.ID, article.ID)
	require.NoError(t, err)

	moved, err := s.Delete(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, int64(1), moved)

	got, err := NewArticleStore(db).FindByID(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FallbackCategory, got.Category.Slug)

	_, err = s.Delete(ctx, name)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestCategoryStoreDeleteFallbackRejected(t *testing.T) {
	db := testDB(t)
	_, err := NewCategoryStore(db).Delete(context.Background(), models.FallbackCategory)
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}
