package workdir

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// DirSlugLength bounds slugs used for work directory names.
	DirSlugLength = 60
	// TitleSlugLength bounds slugs embedded in clip file names.
	TitleSlugLength = 40
)

var (
	slugDisallowed = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	slugSeparators = regexp.MustCompile(`[\s_-]+`)
)

// Slugify lowercases text, drops accents and punctuation, joins words with
// underscores and truncates to maxLen bytes without leaving a trailing
// separator. The result may be empty when text has no letters or digits.
func Slugify(text string, maxLen int) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), text)
	if err != nil {
		folded = text
	}
	slug := strings.ToLower(strings.TrimSpace(folded))
	slug = slugDisallowed.ReplaceAllString(slug, "")
	slug = slugSeparators.ReplaceAllString(slug, "_")
	slug = strings.Trim(slug, "_")
	if maxLen > 0 && len(slug) > maxLen {
		slug = truncateRunes(slug, maxLen)
	}
	return strings.TrimRight(slug, "_")
}

func truncateRunes(s string, maxBytes int) string {
	end := 0
	for idx, r := range s {
		next := idx + utf8.RuneLen(r)
		if next > maxBytes {
			break
		}
		end = next
	}
	return s[:end]
}
