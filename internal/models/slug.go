package models

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const fallbackSlug = "post"

// reservedSlugs collide with fixed routes under /posts/.
var reservedSlugs = map[string]bool{"new": true}

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugSeparate = regexp.MustCompile(`[-\s]+`)
)

// Slugify turns a title into a lowercase, hyphen-separated ASCII token
// sequence. Accented letters are decomposed and their marks dropped; any
// other non-ASCII character is removed.
func Slugify(title string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(title) {
		if r <= unicode.MaxASCII {
			b.WriteRune(r)
		}
	}

	s := slugStrip.ReplaceAllString(strings.ToLower(b.String()), "")
	s = slugSeparate.ReplaceAllString(s, "-")
	return strings.Trim(s, "-_")
}

// UniqueSlug returns base if it is unused, otherwise the first free
// base-1, base-2, ... according to exists. Reserved route names are never
// returned.
func UniqueSlug(base string, exists func(slug string) (bool, error)) (string, error) {
	if base == "" {
		base = fallbackSlug
	}

	slug := base
	for counter := 1; ; counter++ {
		taken, err := exists(slug)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", slug, err)
		}
		if !taken && !reservedSlugs[slug] {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, counter)
	}
}
