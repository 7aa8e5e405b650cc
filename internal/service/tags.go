package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"inkpress/internal/apperror"
	"inkpress/internal/models"
)

const (
	// MaxTags is the most tags an article carries.
	MaxTags = 15

	minTagLen = 2
	maxTagLen = 50
)

// ErrInvalidTags is returned when a tag is too short or too long.
var ErrInvalidTags = apperror.ValidationFailed("tags", "invalid tags")

// NormalizeTags trims, collapses inner whitespace and lower-cases each tag,
// drops duplicates keeping first-seen order, and caps the list at MaxTags.
// A tag shorter than 2 or longer than 50 runes fails the whole list.
func NormalizeTags(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.Join(strings.Fields(t), " "))
		n := utf8.RuneCountInString(t)
		if n < minTagLen || n > maxTagLen {
			return nil, ErrInvalidTags
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) > MaxTags {
		out = out[:MaxTags]
	}
	return out, nil
}

// appendFallbackTag adds the name of an unknown category to tags. The list
// is cut to MaxTags-1 first so the fallback tag survives the cap. Names that
// do not make a valid tag, or are already present, leave tags unchanged.
func appendFallbackTag(tags []string, category string) []string {
	norm, err := NormalizeTags([]string{category})
	if err != nil || len(norm) == 0 {
		return tags
	}
	tag := norm[0]
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	if len(tags) >= MaxTags {
		tags = tags[:MaxTags-1]
	}
	return append(tags, tag)
}

// resolveCategory maps a requested category to a stored one. An empty name
// selects the fallback category. An unknown name also selects the fallback
// and reports unknown=true so the caller can keep the name as a tag.
func resolveCategory(ctx context.Context, categories CategoryRepository, name string) (cat *models.Category, unknown bool, err error) {
	name = strings.TrimSpace(name)
	if name != "" {
		cat, err = categories.Resolve(ctx, name)
		if err != nil {
			return nil, false, err
		}
		if cat != nil {
			return cat, false, nil
		}
		unknown = true
	}
	cat, err = categories.Resolve(ctx, models.FallbackCategory)
	if err != nil {
		return nil, false, err
	}
	if cat == nil {
		return nil, false, apperror.NotFound("category", models.FallbackCategory)
	}
	return cat, unknown, nil
}
