// Package models defines the shared data structures of the rxrag pipeline.
package models

import (
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a catalog slug: lowercase, runs of non-alphanumerics
// collapsed to a single hyphen, no leading or trailing hyphen.
func Slugify(parts ...string) string {
	s := strings.ToLower(strings.Join(parts, " "))
	s = nonSlugChars.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
