// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// FallbackCategory is the category assigned when none is given or the
// requested one does not exist.
const FallbackCategory = "other"

// Category groups articles. Every article belongs to exactly one.
type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	SortOrder   int       `json:"sortOrder"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// Virtual field populated by store methods.
	ArticleCount int `json:"articleCount"`
}

// CategoryRef is the short form embedded in articles.
type CategoryRef struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Tag is a free-form label attached to articles.
type Tag struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	ArticleCount int       `json:"articleCount"`
}
