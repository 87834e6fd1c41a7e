// Package sanitize cleans generated text before it reaches a reader.
//
// Both cleaners are deterministic, never fail, and are idempotent: each pass
// either leaves the text unchanged or makes it strictly shorter, and the pass
// is repeated until nothing changes.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reMarkdownImage = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	reImgTag        = regexp.MustCompile(`(?i)<img[^>]*>`)
	reImageURL      = regexp.MustCompile(`(?i)https?://\S+\.(?:jpe?g|png|gif|webp|svg)`)
	reStyleBlock    = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	reTag           = regexp.MustCompile(`<[^>]+>`)
	reURL           = regexp.MustCompile(`https?://\S+`)
	reManyNewlines  = regexp.MustCompile(`\n{3,}`)
	reHorizontalWS  = regexp.MustCompile(`[ \t]+`)
	reShortObject   = regexp.MustCompile(`\{[^}]{0,200}\}`)
	reParagraphGap  = regexp.MustCompile(`\n\s*\n`)
	reWrapped       = regexp.MustCompile(`(?s)^[\{\[].*[\}\]]$`)
	reUpperLabel    = regexp.MustCompile(`^[A-Z_]+:`)
	reHeadingMarker = regexp.MustCompile(`(?m)^#{1,3}[ \t]+`)
)

// Translation removes structured data, images, styling, markup and URLs from
// a translated article and drops paragraphs that look like metadata.
func Translation(s string) string {
	return fixedPoint(s, translationPass)
}

// Commentary strips markdown heading markers and excess blank lines.
func Commentary(s string) string {
	return fixedPoint(s, commentaryPass)
}

// fixedPoint applies pass until the text stops changing. Every pass either
// returns its input or a strictly shorter string, so the loop terminates.
func fixedPoint(s string, pass func(string) string) string {
	for {
		next := pass(s)
		if next == s {
			return s
		}
		s = next
	}
}

func translationPass(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = removeStructuredData(s)

	s = reMarkdownImage.ReplaceAllString(s, "")
	s = reImgTag.ReplaceAllString(s, "")
	s = reImageURL.ReplaceAllString(s, "")

	s = reStyleBlock.ReplaceAllString(s, "")
	s = removeMediaQueries(s)

	s = reTag.ReplaceAllString(s, " ")
	s = reURL.ReplaceAllString(s, "")

	s = reManyNewlines.ReplaceAllString(s, "\n\n")
	s = reHorizontalWS.ReplaceAllString(s, " ")
	s = reShortObject.ReplaceAllString(s, "")

	parts := reParagraphGap.Split(s, -1)
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if keepParagraph(p) {
			kept = append(kept, p)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n\n"))
}

func keepParagraph(p string) bool {
	if p == "" {
		return false
	}
	if reWrapped.MatchString(p) {
		return false
	}
	if strings.Contains(p, `"@type"`) || strings.Contains(p, `"@context"`) {
		return false
	}
	if utf8.RuneCountInString(p) < 20 && reUpperLabel.MatchString(p) {
		return false
	}
	return true
}

func commentaryPass(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = reHeadingMarker.ReplaceAllString(s, "")
	s = reManyNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
