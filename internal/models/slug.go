package models

import (
	"regexp"
	"strings"
)

const slugMaxWords = 5

var slugInvalid = regexp.MustCompile(`[^a-z0-9_]`)

// GenerateSlug derives a stable filesystem-safe identifier from an article
// idea: the first five words, lowercased, joined with underscores.
func GenerateSlug(idea string) string {
	words := strings.Fields(idea)
	if len(words) > slugMaxWords {
		words = words[:slugMaxWords]
	}
	slug := strings.ToLower(strings.Join(words, "_"))
	return slugInvalid.ReplaceAllString(slug, "")
}
