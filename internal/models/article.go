// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// wordsPerMinute is the reading speed used for ReadingTime.
const wordsPerMinute = 200

// Article is a blog post. LikesCount and DislikesCount mirror the number
// of reaction rows and are only written by the reaction store.
type Article struct {
	ID            uuid.UUID   `json:"id"`
	Slug          string      `json:"slug"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Body          string      `json:"body"`
	BodyHTML      string      `json:"bodyHtml,omitempty"`
	ImageURL      *string     `json:"imageUrl"`
	AuthorID      uuid.UUID   `json:"-"`
	Author        Author      `json:"author"`
	CategoryID    uuid.UUID   `json:"-"`
	Category      CategoryRef `json:"category"`
	Tags          []string    `json:"tags"`
	LikesCount    int         `json:"likesCount"`
	DislikesCount int         `json:"dislikesCount"`
	CommentsCount int         `json:"commentsCount"`
	ReadingTime   int         `json:"readingTime"`
	IsArchived    bool        `json:"isArchived"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// IsAuthoredBy reports whether userID wrote the article.
func (a *Article) IsAuthoredBy(userID uuid.UUID) bool {
	return a.AuthorID == userID
}

// ReadingTime estimates minutes to read body, never less than one.
func ReadingTime(body string) int {
	words := len(strings.Fields(body))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}

// ArticleFilter narrows article listings. Zero values mean "any".
type ArticleFilter struct {
	Tag      string
	Category string // category slug
	Author   string // username
	Limit    int
	Offset   int
}

// Comment is a reader response on an article.
type Comment struct {
	ID            uuid.UUID `json:"id"`
	ArticleID     uuid.UUID `json:"articleId"`
	AuthorID      uuid.UUID `json:"-"`
	Author        Author    `json:"author"`
	Body          string    `json:"body"`
	LikesCount    int       `json:"likesCount"`
	DislikesCount int       `json:"dislikesCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
